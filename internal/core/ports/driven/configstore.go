package driven

// ConfigStore provides persistent application configuration.
// Implementations must be safe for concurrent use.
type ConfigStore interface {
	// Get retrieves a raw configuration value by key.
	Get(key string) (any, bool)

	// GetString retrieves a string configuration value, or "" if unset.
	GetString(key string) string

	// Set stores a configuration value and persists it.
	Set(key string, value any) error

	// Load reads configuration from storage.
	Load() error

	// Path returns the location of the backing store, for user messaging.
	Path() string
}
