// Package session collects live player counts from a running server over
// RCON.
//
// Collector dials the server (Dialer; RCONDialer wraps gorcon/rcon), issues
// the configured status command ("list") and hands the reply to a Parser.
// ListParser understands the current vanilla wording
//
//	There are <current> of a max of <max> players online: <names>
//
// and the pre-1.13 "There are <current>/<max> players online:" form. Any
// other wording, for example a localized server, yields ErrUnparseable so
// the caller can drop just this phase. Keeping the grammar behind Parser
// lets a different wire format be plugged in without touching aggregation.
package session
