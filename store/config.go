package store

// Config holds configuration for the Store.
type Config struct {
	// StatePath is the unified state document.
	// Default: "data/mib_state.json"
	StatePath string

	// LegacyScalarsPath is the pre-unification scalar overrides file, read
	// once when StatePath does not exist yet.
	// Default: "data/overrides.json"
	LegacyScalarsPath string

	// LegacyTablesPath is the pre-unification table instances file, read
	// once when StatePath does not exist yet.
	// Default: "data/table_instances.json"
	LegacyTablesPath string
}

// DefaultConfig returns the conventional on-disk layout.
func DefaultConfig() Config {
	return Config{
		StatePath:         "data/mib_state.json",
		LegacyScalarsPath: "data/overrides.json",
		LegacyTablesPath:  "data/table_instances.json",
	}
}

// validate ensures config values are usable.
func (c *Config) validate() {
	if c.StatePath == "" {
		c.StatePath = "data/mib_state.json"
	}
	if c.LegacyScalarsPath == "" {
		c.LegacyScalarsPath = "data/overrides.json"
	}
	if c.LegacyTablesPath == "" {
		c.LegacyTablesPath = "data/table_instances.json"
	}
}
