// Package server implements the liveness verification intake HTTP server.
// It wires the routes, the on-disk artifact store and the optional sinks
// (Postgres index, MinIO mirror, event publishers), and provides the
// lifecycle helpers used by tests and the production binary.
package server
