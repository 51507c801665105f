// Package license holds the license entity and the pure evaluation rules
// that decide whether a presented key/HWID pair is accepted.
//
// The package performs no I/O. Persistence lives in internal/store and
// orchestration in internal/services; everything here is deterministic
// given a license record, a presented hardware ID, and a clock reading.
//
// Evaluation order is fixed: a paused license rejects before expiry is
// considered, an expired license rejects before any binding logic runs,
// and an unbound license binds to the first HWID it sees. A bound license
// only ever accepts the HWID it was bound to; rebinding requires an
// explicit admin reset.
package license
