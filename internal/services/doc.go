// Package services implements the business logic layer: the license
// service that orchestrates the evaluation rules in internal/license
// against the record store in internal/store.
//
// Services are interface-driven for testability, propagate
// context.Context through every store call, and record per-operation
// metrics and spans. The layer holds no state of its own; every call
// reads and writes through the store.
package services
