// Package server holds the HTTP server configuration.
//
// While the main application entry point handles the server startup, this package
// defines the configuration structure embedded by core/config.
//
// # Configuration
//
// The Config struct defines the HTTP port, the API key protecting the sync triggers, and the
// graceful shutdown timeout.
package server
