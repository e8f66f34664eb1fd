// Package scraper turns the configured servers into a metrics document.
//
// A ServerScraper collects one server in three independent phases: the
// install directory size, the live session counts, and the per-player
// statistics records. A Fleet runs the servers one after another and writes
// each server's families to the output as soon as that server is done.
package scraper
