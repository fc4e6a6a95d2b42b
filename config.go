package testns

import "github.com/giantswarm/testns/internal/core"

// envConfig holds configuration for an Env. This unexported type wraps
// core.Config via embedding, keeping internal/core types out of the public
// API signature while avoiding field-by-field duplication.
type envConfig struct {
	core.Config

	// Store selects and configures the storage provider.
	Store core.StoreConfig
}

// toCoreConfig returns the embedded core.Config.
func (c envConfig) toCoreConfig() core.Config {
	return c.Config
}
