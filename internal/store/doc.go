// Package store provides the persistent record store for license
// records, keyed by license key.
//
// The production backend is Google Cloud Firestore, initialized once at
// process startup from service-account credentials and shared for the
// process lifetime. A mutex-guarded in-memory implementation with the
// same semantics backs tests and development mode.
//
// Binding a hardware ID is an atomic conditional update: the HWID is
// written only if the record currently has none, so two concurrent
// first-use validations cannot both win.
package store
