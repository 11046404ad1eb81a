package generators

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// Ruleset types, matching the rule engine's evaluation modes.
const (
	RulesetTypeAuth       = "AUTH"
	RulesetTypeMonitoring = "MONITORING"
)

// Condition is one node of a rule condition tree.
type Condition struct {
	Op     string      `json:"op"`
	Field  string      `json:"field,omitempty"`
	Value  interface{} `json:"value,omitempty"`
	Values []string    `json:"values,omitempty"`
	Args   []Condition `json:"args,omitempty"`
}

// Action is what a rule does on match. AUTH rules decide; MONITORING rules
// tag with a severity.
type Action struct {
	Decision   string   `json:"decision,omitempty"`
	ReasonCode string   `json:"reason_code,omitempty"`
	Severity   string   `json:"severity,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

// Rule is one synthetic fraud rule.
type Rule struct {
	RuleID      string    `json:"rule_id"`
	RuleVersion int       `json:"rule_version"`
	Enabled     bool      `json:"enabled"`
	Priority    int       `json:"priority"`
	Condition   Condition `json:"condition"`
	Action      Action    `json:"action"`
}

// RulesetMetadata carries provenance for a generated ruleset.
type RulesetMetadata struct {
	CreatedAt string `json:"created_at"`
	Source    string `json:"source"`
}

// Ruleset is a complete versioned rule bundle in the rule management format.
type Ruleset struct {
	RulesetID   string          `json:"ruleset_id"`
	RulesetKey  string          `json:"ruleset_key"`
	Country     string          `json:"country"`
	Region      string          `json:"region"`
	Environment string          `json:"environment"`
	Version     int             `json:"version"`
	Type        string          `json:"type"`
	Enabled     bool            `json:"enabled"`
	Rules       []Rule          `json:"rules"`
	Metadata    RulesetMetadata `json:"metadata"`
}

// regionByCountry maps countries to governance regions; unknown countries
// fall into GLOBAL.
var regionByCountry = map[string]string{
	"US": "AMERICAS", "CA": "AMERICAS", "MX": "AMERICAS", "BR": "AMERICAS",
	"IN": "APAC", "SG": "APAC", "AU": "APAC",
	"GB": "EMEA", "DE": "EMEA", "FR": "EMEA",
}

// rulesetKeyByType maps generator ruleset types to standard ruleset keys.
var rulesetKeyByType = map[string]string{
	RulesetTypeAuth:       "CARD_AUTH",
	RulesetTypeMonitoring: "CARD_MONITORING",
}

// RuleGenerator produces seeded synthetic rules and rulesets.
type RuleGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRuleGenerator creates a generator seeded for reproducibility.
func NewRuleGenerator(seed int64) *RuleGenerator {
	return &RuleGenerator{rng: rand.New(rand.NewSource(seed))}
}

// Generate produces one rule of the given type.
func (g *RuleGenerator) Generate(ruleType string) Rule {
	g.mu.Lock()
	defer g.mu.Unlock()

	pool := []Condition{
		{Op: "GT", Field: "amount", Value: 5000},
		{Op: "EQ", Field: "card_network", Value: "VISA"},
		{Op: "IN", Field: "mcc", Values: []string{"7995", "5816"}},
		{Op: "EXISTS", Field: "is_3ds_verified", Value: false},
	}

	k := 1 + g.rng.Intn(2)
	args := make([]Condition, 0, k)
	for _, i := range g.rng.Perm(len(pool))[:k] {
		args = append(args, pool[i])
	}

	rule := Rule{
		RuleID:      fmt.Sprintf("R-%d", 1000+g.rng.Intn(9000)),
		RuleVersion: 1,
		Enabled:     true,
		Priority:    1 + g.rng.Intn(100),
		Condition:   Condition{Op: "AND", Args: args},
	}

	if ruleType == RulesetTypeAuth {
		rule.Action = Action{
			Decision:   pick(g.rng, "DECLINE", "REVIEW"),
			ReasonCode: fmt.Sprintf("RULE_%d", 100+g.rng.Intn(900)),
		}
	} else {
		tags := make([]string, 1+g.rng.Intn(3))
		for i := range tags {
			tags[i] = fmt.Sprintf("tag_%d", i)
		}
		rule.Action = Action{
			Severity: pick(g.rng, "LOW", "MEDIUM", "HIGH"),
			Tags:     tags,
		}
	}

	return rule
}

// GenerateBatch produces count rules of the given type.
func (g *RuleGenerator) GenerateBatch(count int, ruleType string) []Rule {
	out := make([]Rule, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, g.Generate(ruleType))
	}
	return out
}

// GenerateRuleset produces a complete ruleset with ruleCount rules.
func (g *RuleGenerator) GenerateRuleset(ruleType string, ruleCount int, country, environment string) Ruleset {
	rules := g.GenerateBatch(ruleCount, ruleType)

	g.mu.Lock()
	defer g.mu.Unlock()

	key, ok := rulesetKeyByType[ruleType]
	if !ok {
		key = "CARD_AUTH"
	}
	region, ok := regionByCountry[country]
	if !ok {
		region = "GLOBAL"
	}

	return Ruleset{
		RulesetID:   fmt.Sprintf("rs_%s", hexID(g.rng, 12)),
		RulesetKey:  key,
		Country:     country,
		Region:      region,
		Environment: environment,
		Version:     1,
		Type:        ruleType,
		Enabled:     true,
		Rules:       rules,
		Metadata: RulesetMetadata{
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
			Source:    "load-test",
		},
	}
}
