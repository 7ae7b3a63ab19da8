// Package driven defines the outbound ports: interfaces the core services
// depend on, implemented by storage and config adapters.
package driven
