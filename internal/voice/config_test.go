package voice

import (
	"testing"
	"time"
)

func TestConfig_JobPollBudgetFitsWatchdog(t *testing.T) {
	tests := []struct {
		name     string
		interval time.Duration
		attempts int
		timeout  time.Duration
		want     int
	}{
		{"defaults", 0, 0, 0, DefaultConfig().JobMaxAttempts},
		{"over budget", 2 * time.Second, 30, 45 * time.Second, 21},
		{"interval longer than watchdog", time.Minute, 5, 45 * time.Second, 1},
		{"no wait between polls", 0, 50, 45 * time.Second, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			if tt.name != "defaults" {
				cfg.JobPollInterval = tt.interval
				cfg.JobMaxAttempts = tt.attempts
				cfg.ProcessingTimeout = tt.timeout
			}
			got := cfg.withDefaults()
			if got.JobMaxAttempts != tt.want {
				t.Errorf("JobMaxAttempts = %d, want %d", got.JobMaxAttempts, tt.want)
			}
			if got.JobPollInterval > 0 {
				budget := time.Duration(got.JobMaxAttempts) * got.JobPollInterval
				if budget >= got.ProcessingTimeout && got.JobMaxAttempts > 1 {
					t.Errorf("poll budget %v not inside watchdog %v", budget, got.ProcessingTimeout)
				}
			}
		})
	}
}
