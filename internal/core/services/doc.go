// Package services contains the core access-control logic: the AccessLedger,
// which maps allow-list reads and writes onto the secret store across the
// current and legacy storage keys, and the AccessRegistry, which maintains
// the cached membership view and deduplicates change notifications.
package services
