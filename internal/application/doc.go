// Package application provides application initialization and dependency wiring.
// It opens the catalog source, loads the in-memory snapshot and builds the
// optimizer, handlers, metrics registry and HTTP server, keeping the main
// package focused on CLI parsing and orchestration.
package application
