package config

import (
	"fmt"
	"strings"
)

// NotifyConfig holds the configuration for start/exit mail notifications.
// Notifications are best-effort: a send failure never affects the run.
type NotifyConfig struct {
	Recipients []string `json:"recipients,omitempty" yaml:"recipients,omitempty"`
	SMTPHost   string   `json:"smtp_host,omitempty" yaml:"smtp_host,omitempty"`
	SMTPPort   int      `json:"smtp_port,omitempty" yaml:"smtp_port,omitempty"`
	From       string   `json:"from,omitempty" yaml:"from,omitempty"`
}

// Enabled reports whether any recipients are configured.
func (nc *NotifyConfig) Enabled() bool {
	return len(nc.Recipients) > 0
}

// Validate validates the notification configuration.
func (nc *NotifyConfig) Validate() error {
	if !nc.Enabled() {
		return nil
	}
	for _, r := range nc.Recipients {
		if !strings.Contains(r, "@") {
			return fmt.Errorf("invalid recipient address: %q", r)
		}
	}
	if nc.SMTPHost == "" {
		return fmt.Errorf("smtp host is required when recipients are set")
	}
	if nc.SMTPPort <= 0 || nc.SMTPPort > 65535 {
		return fmt.Errorf("smtp port must be between 1 and 65535")
	}
	if nc.From == "" {
		return fmt.Errorf("smtp sender address is required when recipients are set")
	}
	return nil
}
