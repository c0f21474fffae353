package config

import (
	"strings"

	"melodypath/internal/placement"
	"melodypath/internal/trajectory"
)

// Override applies the per-request or per-invocation knobs shared by the
// CLI flags and the HTTP query string. Empty values leave cfg unchanged.
func (c *Config) Override(preset, policy, mode string) error {
	if p := strings.TrimSpace(preset); p != "" {
		if err := c.ApplyPreset(p); err != nil {
			return err
		}
	}
	if p := strings.TrimSpace(policy); p != "" {
		k, err := placement.ParseKind(p)
		if err != nil {
			return err
		}
		c.Placement.Policy = k
	}
	if m := strings.TrimSpace(mode); m != "" {
		parsed, err := trajectory.ParseMode(m)
		if err != nil {
			return err
		}
		c.Trajectory.Mode = parsed
	}
	return nil
}
