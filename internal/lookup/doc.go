// Package lookup resolves player identifiers to display names.
//
// HTTPResolver asks the name-history API for
// <base_url>/user/profiles/<id>/names and returns the entry with the latest
// change timestamp. Entries without a timestamp count as the oldest. Every
// call goes to the network; results are not cached between scrapes. Calls
// share a rate limiter sized by lookup.rate_limit and lookup.burst.
//
// Failures are reported as ErrLookupFailed (transport or HTTP status),
// ErrLookupEmpty (no history) or ErrLookupMalformed (unparseable body).
package lookup
