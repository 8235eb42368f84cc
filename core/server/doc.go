// Package server holds the HTTP server configuration.
//
// The start command owns the fiber app and its lifecycle; this package only
// describes where it listens and which API key protects the routes.
//
// # Configuration
//
// The Config struct defines the HTTP port and the API key. An empty API key
// disables authentication, which is only meant for local runs.
package server
