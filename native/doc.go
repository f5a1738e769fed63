// Package native is a transfer engine with a flat, handle based API.
//
// A Session is configured with integer Option identifiers whose value
// encodes the category of value they accept (see Option.Type), queried with
// Info keys that encode the type they report (see Info.Type), and run with
// Perform. Every call reports a Code. Callbacks are plain function types
// that receive an opaque userdata value registered through a companion data
// option.
//
// Protocol work is delegated to net/http, quic-go's http3, jlaffaye/ftp and
// the os package; the engine maps options onto those libraries and funnels
// their events back to callbacks on the goroutine that called Perform.
//
// The engine follows the ownership rules of a C library: a Session, SList or
// HTTPPost chain must be released exactly once, and releasing one twice
// panics.
package native
