package am

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// DefaultEndpoint is the public Wikidata Query Service
const DefaultEndpoint = "https://query.wikidata.org/sparql"

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.path", "softwaremap.db")

	// Wikidata defaults
	v.SetDefault("wikidata.endpoint", DefaultEndpoint)
	v.SetDefault("wikidata.language", "en")
	v.SetDefault("wikidata.timeout_seconds", 65)       // WDQS hard limit is 60s, leave headroom for transfer
	v.SetDefault("wikidata.max_attempts", 3)           // 1 try + 2 retries
	v.SetDefault("wikidata.initial_backoff_ms", 1000)  // 1s, 2s, 4s...
	v.SetDefault("wikidata.max_backoff_seconds", 60)   // cap for Retry-After and backoff
	v.SetDefault("wikidata.requests_per_minute", 30)   // polite pacing for a batch job
	v.SetDefault("wikidata.batch_size", 500)

	// Reconcile defaults
	v.SetDefault("reconcile.dispute_threshold_years", 10)

	// Blurb defaults
	v.SetDefault("blurbs.overwrite_manual", false)

	// Pulse defaults
	v.SetDefault("pulse.interval_seconds", 86400) // daily
	v.SetDefault("pulse.tasks", KnownTasks)
}

// BindSensitiveEnvVars explicitly binds configuration that is commonly set
// per deployment to environment variables
func BindSensitiveEnvVars(v *viper.Viper) {
	v.BindEnv("database.path", "SWMAP_DATABASE_PATH")
	v.BindEnv("wikidata.endpoint", "SWMAP_WIKIDATA_ENDPOINT")
	v.BindEnv("wikidata.contact", "SWMAP_WIKIDATA_CONTACT")
}

// GetDatabasePath returns the configured database path
func (c *Config) GetDatabasePath() string {
	if c.Database.Path == "" {
		return "softwaremap.db"
	}
	return c.Database.Path
}

// GetServerPort returns the configured server port or DefaultServerPort
func (c *Config) GetServerPort() int {
	if c.Server.Port == nil {
		return DefaultServerPort
	}
	return *c.Server.Port
}

// GetPulseInterval returns the run interval; zero means manual runs only
func (c *Config) GetPulseInterval() time.Duration {
	return time.Duration(c.Pulse.IntervalSeconds) * time.Second
}

// GetPulseTasks returns configured tasks in canonical order
func (c *Config) GetPulseTasks() []string {
	if len(c.Pulse.Tasks) == 0 {
		return KnownTasks
	}
	wanted := make(map[string]bool, len(c.Pulse.Tasks))
	for _, t := range c.Pulse.Tasks {
		wanted[t] = true
	}
	var ordered []string
	for _, t := range KnownTasks {
		if wanted[t] {
			ordered = append(ordered, t)
		}
	}
	return ordered
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf("Config{Database: %s, Wikidata: %s, Pulse: {Interval: %ds}}",
		c.Database.Path, c.Wikidata.Endpoint, c.Pulse.IntervalSeconds)
}
