// Package errors provides structured errors for the context-group runtime.
//
// Every error carries a Phase (where it happened) and a Kind (what went
// wrong). errors.Is matches on the (Phase, Kind) pair, so call sites can
// test against a bare constructor result:
//
//	if errors.Is(err, jserrors.Defunct("")) { ... }
package errors
