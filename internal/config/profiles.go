package config

import "fmt"

// Profile mutates the traffic mixes to a named shape. Profiles replace
// ad-hoc per-run overrides with declared presets.
type Profile struct {
	Name        string
	Description string
	Apply       func(*Config)
}

// Profiles is the named traffic-mix preset table.
var Profiles = map[string]Profile{
	"auth-only": {
		Name:        "auth-only",
		Description: "All rule-engine traffic on the AUTH evaluate path",
		Apply: func(c *Config) {
			c.RuleEng.TrafficMix = RuleEngineTrafficMix{Auth: 1.0}
		},
	},
	"monitoring-heavy": {
		Name:        "monitoring-heavy",
		Description: "Post-authorization monitoring dominates the rule-engine mix",
		Apply: func(c *Config) {
			c.RuleEng.TrafficMix = RuleEngineTrafficMix{Auth: 0.2, Monitoring: 0.8}
		},
	},
	"read-only": {
		Name:        "read-only",
		Description: "No writes: queries and lists only",
		Apply: func(c *Config) {
			c.RuleMgmt.TrafficMix = RuleMgmtTrafficMix{ListRules: 0.7, GetRule: 0.3}
			c.TransMgmt.TrafficMix = TransMgmtTrafficMix{ListQuery: 0.7, DetailQuery: 0.3}
			c.OpsAgent.TrafficMix = OpsAnalystTrafficMix{Worklist: 0.6, Insights: 0.4}
		},
	},
}

// ApplyProfile applies a named profile to the config. Empty name is a no-op.
func ApplyProfile(cfg *Config, name string) error {
	if name == "" {
		return nil
	}
	p, ok := Profiles[name]
	if !ok {
		return fmt.Errorf("unknown profile: %s", name)
	}
	p.Apply(cfg)
	return nil
}
