package am

import (
	"net/url"

	"github.com/teranos/softwaremap/errors"
	"github.com/teranos/softwaremap/kb/wikidata"
)

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	// Server port: 0 is invalid (omit for default), negative is invalid
	if c.Server.Port != nil && *c.Server.Port == 0 {
		return errors.Newf("server.port cannot be 0 (omit for default port %d)", DefaultServerPort)
	}
	if c.Server.Port != nil && *c.Server.Port < 0 {
		return errors.Newf("server.port must be positive, got %d", *c.Server.Port)
	}

	if c.Wikidata.Endpoint == "" {
		return errors.New("wikidata.endpoint cannot be empty")
	}
	u, err := url.Parse(c.Wikidata.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.Newf("wikidata.endpoint must be an http(s) URL, got %q", c.Wikidata.Endpoint)
	}

	if c.Wikidata.Language != "" && !wikidata.ValidLanguage(c.Wikidata.Language) {
		return errors.Newf("wikidata.language must be a language tag such as en or pt-br, got %q", c.Wikidata.Language)
	}

	// Attempts: at least one request must be made
	if c.Wikidata.MaxAttempts < 1 {
		return errors.Newf("wikidata.max_attempts must be >= 1, got %d", c.Wikidata.MaxAttempts)
	}
	if c.Wikidata.TimeoutSeconds <= 0 {
		return errors.Newf("wikidata.timeout_seconds must be > 0, got %d", c.Wikidata.TimeoutSeconds)
	}

	// Zero means zero: no backoff, no pacing, no dispute detection
	if c.Wikidata.InitialBackoffMS < 0 {
		return errors.Newf("wikidata.initial_backoff_ms must be >= 0, got %d", c.Wikidata.InitialBackoffMS)
	}
	if c.Wikidata.MaxBackoffSeconds < 0 {
		return errors.Newf("wikidata.max_backoff_seconds must be >= 0, got %d", c.Wikidata.MaxBackoffSeconds)
	}
	if c.Wikidata.RequestsPerMinute < 0 {
		return errors.Newf("wikidata.requests_per_minute must be >= 0, got %d", c.Wikidata.RequestsPerMinute)
	}
	if c.Wikidata.BatchSize <= 0 {
		return errors.Newf("wikidata.batch_size must be > 0, got %d", c.Wikidata.BatchSize)
	}
	if c.Reconcile.DisputeThresholdYears < 0 {
		return errors.Newf("reconcile.dispute_threshold_years must be >= 0, got %d", c.Reconcile.DisputeThresholdYears)
	}

	if c.Pulse.IntervalSeconds < 0 {
		return errors.Newf("pulse.interval_seconds must be >= 0, got %d", c.Pulse.IntervalSeconds)
	}
	for _, task := range c.Pulse.Tasks {
		if !isKnownTask(task) {
			return errors.WithHintf(
				errors.Newf("pulse.tasks contains unknown task %q", task),
				"known tasks: %v", KnownTasks,
			)
		}
	}

	return nil
}

func isKnownTask(task string) bool {
	for _, known := range KnownTasks {
		if task == known {
			return true
		}
	}
	return false
}
