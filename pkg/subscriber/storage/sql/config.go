package sql

// Config is the configuration for the storage object
type Config struct {
	DSN string `yaml:"dsn"` // the 'data source name', which the sqlite3 client uses to connect
}

// NewConfig returns the default Config (database in-memory only, gone on Close)
func NewConfig() *Config {
	return &Config{
		DSN: ":memory:",
	}
}
