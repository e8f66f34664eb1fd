// Package exposition renders metric families in the Prometheus text format.
//
// Every collector builds Family values (name, help, kind, ordered samples)
// and hands them to Write, which converts them to client_model DTOs and
// serializes them with expfmt. Write is called once per family per server,
// so a document covering several servers repeats HELP/TYPE headers for the
// same family name. Prometheus accepts this.
package exposition
