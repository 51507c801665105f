// Package app provides application initialization and lifecycle
// management for the license server. It wires configuration, logging,
// observability, the record store, the license service, and the HTTP
// router together at startup, and handles graceful shutdown.
//
// # Initialization Flow
//
// The typical initialization sequence:
//
//	1. Load configuration from environment and optional YAML file
//	2. Initialize logging and OpenTelemetry providers
//	3. Create the record store client and verify connectivity (fatal on failure)
//	4. Initialize the license service with its dependencies
//	5. Set up HTTP handlers and middleware
//	6. Start the HTTP server and wait for shutdown signals
package app
