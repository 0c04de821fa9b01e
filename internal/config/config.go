package config

import "time"

// ServerConfig holds configuration for the branchq server.
type ServerConfig struct {
	Addr      string // Listen address (default ":8080")
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: text, json

	BranchDir   string // Directory of branch topology YAML files
	JournalPath string // SQLite journal path ("" disables, ":memory:" for testing)

	DispatchRule string // simple, max_waiting_time, max_life_time, custom
	PolicyURL    string // Remote dispatch policy endpoint (custom rule only)
	DataBusURL   string // Event bus endpoint ("" logs events instead)
	SenderID     string // Identity stamped on published events

	ScriptTimeout    time.Duration // Segmentation script execution budget
	AutoCallInterval time.Duration // Auto-call loop poll interval
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:             ":8080",
		LogLevel:         "info",
		LogFormat:        "text",
		DispatchRule:     "simple",
		SenderID:         "branchq",
		ScriptTimeout:    500 * time.Millisecond,
		AutoCallInterval: 2 * time.Second,
	}
}
