package provider

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/collectorvault/appraise/internal/resilience"
)

// AdapterConfig holds the settings shared by all adapters. Each adapter
// supplies its own default rate ceiling; RateLimit overrides it.
type AdapterConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`

	// RateLimit caps requests per sliding 60s window. Zero uses the
	// adapter's default.
	RateLimit int `yaml:"rate_limit" mapstructure:"rate_limit"`

	// Resilience overrides; zero values use the guard defaults.
	FailureThreshold int           `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	Cooldown         time.Duration `yaml:"cooldown" mapstructure:"cooldown"`
	MaxAttempts      int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoff   time.Duration `yaml:"initial_backoff" mapstructure:"initial_backoff"`

	// HistoryThresholdDays triggers historical time-series merging on
	// adapters that support it, when the query window is longer. Zero
	// means 30.
	HistoryThresholdDays int `yaml:"history_threshold_days" mapstructure:"history_threshold_days"`
}

func (c AdapterConfig) newGuard(name string, defaultRate int, events resilience.Events) *resilience.Guard {
	gc := resilience.DefaultGuardConfig(name)
	gc.Events = events
	gc.MaxRequests = defaultRate
	if c.RateLimit > 0 {
		gc.MaxRequests = c.RateLimit
	}
	if c.FailureThreshold > 0 {
		gc.FailureThreshold = c.FailureThreshold
	}
	if c.Cooldown > 0 {
		gc.Cooldown = c.Cooldown
	}
	if c.MaxAttempts > 0 {
		gc.MaxAttempts = c.MaxAttempts
	}
	if c.InitialBackoff > 0 {
		gc.InitialBackoff = c.InitialBackoff
	}
	return resilience.NewGuard(gc)
}

func (c AdapterConfig) historyThreshold() int {
	if c.HistoryThresholdDays > 0 {
		return c.HistoryThresholdDays
	}
	return 30
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// parseObservedAt accepts the timestamp shapes the sources actually emit:
// RFC 3339, date-time without zone, and bare dates.
func parseObservedAt(s string) (time.Time, error) {
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, eris.Errorf("provider: unparseable timestamp %q", s)
}
