package am

// Config represents the softwaremap configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database" toml:"database" yaml:"database" json:"database"`
	Wikidata  WikidataConfig  `mapstructure:"wikidata" toml:"wikidata" yaml:"wikidata" json:"wikidata"`
	Reconcile ReconcileConfig `mapstructure:"reconcile" toml:"reconcile" yaml:"reconcile" json:"reconcile"`
	Blurbs    BlurbsConfig    `mapstructure:"blurbs" toml:"blurbs" yaml:"blurbs" json:"blurbs"`
	Pulse     PulseConfig     `mapstructure:"pulse" toml:"pulse" yaml:"pulse" json:"pulse"`
	Server    ServerConfig    `mapstructure:"server" toml:"server" yaml:"server" json:"server"`
}

// DatabaseConfig configures the SQLite annotation store
type DatabaseConfig struct {
	Path string `mapstructure:"path" toml:"path" yaml:"path" json:"path"`
}

// WikidataConfig configures the SPARQL query executor
type WikidataConfig struct {
	Endpoint          string `mapstructure:"endpoint" toml:"endpoint" yaml:"endpoint" json:"endpoint"`
	Contact           string `mapstructure:"contact" toml:"contact" yaml:"contact" json:"contact"`                                     // appended to the User-Agent
	Language          string `mapstructure:"language" toml:"language" yaml:"language" json:"language"`                                 // label/description language (default: en)
	TimeoutSeconds    int    `mapstructure:"timeout_seconds" toml:"timeout_seconds" yaml:"timeout_seconds" json:"timeout_seconds"`     // per request; the public endpoint stops at 60s
	MaxAttempts       int    `mapstructure:"max_attempts" toml:"max_attempts" yaml:"max_attempts" json:"max_attempts"`                 // total attempts per query (default: 3)
	InitialBackoffMS  int    `mapstructure:"initial_backoff_ms" toml:"initial_backoff_ms" yaml:"initial_backoff_ms" json:"initial_backoff_ms"`
	MaxBackoffSeconds int    `mapstructure:"max_backoff_seconds" toml:"max_backoff_seconds" yaml:"max_backoff_seconds" json:"max_backoff_seconds"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute" toml:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"` // 0 = unlimited
	BatchSize         int    `mapstructure:"batch_size" toml:"batch_size" yaml:"batch_size" json:"batch_size"`                         // entities per write batch / VALUES clause
}

// ReconcileConfig configures the date reconciler
type ReconcileConfig struct {
	// Observations of the winning kind further apart than this are flagged
	// as disputed. 0 disables dispute detection.
	DisputeThresholdYears int `mapstructure:"dispute_threshold_years" toml:"dispute_threshold_years" yaml:"dispute_threshold_years" json:"dispute_threshold_years"`
}

// BlurbsConfig configures knowledge-base blurb enrichment
type BlurbsConfig struct {
	OverwriteManual bool `mapstructure:"overwrite_manual" toml:"overwrite_manual" yaml:"overwrite_manual" json:"overwrite_manual"` // let scraped descriptions replace manual ones
}

// PulseConfig configures periodic batch runs
type PulseConfig struct {
	IntervalSeconds int      `mapstructure:"interval_seconds" toml:"interval_seconds" yaml:"interval_seconds" json:"interval_seconds"` // 0 = manual runs only
	Tasks           []string `mapstructure:"tasks" toml:"tasks" yaml:"tasks" json:"tasks"`                                             // subset of: software, dates, genres, blurbs
}

// ServerConfig configures the read-only HTTP API
type ServerConfig struct {
	Port *int `mapstructure:"port" toml:"port,omitempty" yaml:"port,omitempty" json:"port,omitempty"` // nil = DefaultServerPort, 0 is invalid
}

// Server port constants
const (
	DefaultServerPort = 8080
)

// Task names accepted in pulse.tasks
const (
	TaskSoftware = "software"
	TaskDates    = "dates"
	TaskGenres   = "genres"
	TaskBlurbs   = "blurbs"
)

// KnownTasks lists the tasks in the order a full run executes them.
// Software discovery goes first so dates attach to freshly created entities.
var KnownTasks = []string{TaskSoftware, TaskDates, TaskGenres, TaskBlurbs}

// File system constants
const (
	DefaultDirPermissions  = 0755 // Standard directory permissions (rwxr-xr-x)
	DefaultFilePermissions = 0644 // Standard file permissions (rw-r--r--)
)
