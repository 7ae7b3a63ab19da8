// Package driving defines the inbound ports: the interfaces through which
// callers (CLI, embedding applications) drive the core services.
package driving
