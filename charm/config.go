// ABOUTME: Configuration for Charm KV backend connection
// ABOUTME: Server host, database name and auto-sync preference

package charm

const (
	// DefaultCharmHost is the self-hosted 2389 research server.
	DefaultCharmHost = "charm.2389.dev"

	// AppName is the default charm KV database name.
	AppName = "kith"
)

// Config holds charm connection settings.
type Config struct {
	// Host is the charm server hostname (default: charm.2389.dev)
	Host string `json:"host,omitempty"`

	// Database names the KV database; empty means AppName
	Database string `json:"database,omitempty"`

	// AutoSync enables automatic sync after every write operation
	AutoSync bool `json:"auto_sync"`
}

// DefaultConfig returns a new config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Host:     DefaultCharmHost,
		AutoSync: true,
	}
}

func (c *Config) appName() string {
	if c.Database == "" {
		return AppName
	}
	return c.Database
}
