// Package config holds load test configuration: target services, traffic
// mixes, latency thresholds, and scenario presets. Everything is resolved
// once at startup and passed down; nothing re-reads the environment mid-run.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Service names accepted by the CLI.
const (
	ServiceRuleEngine      = "rule-engine"
	ServiceRuleManagement  = "rule-mgmt"
	ServiceTransactionMgmt = "trans-mgmt"
	ServiceOpsAnalyst      = "ops-analyst"
	ServiceAll             = "all"
)

// HealthPaths maps each service to its health endpoint. The rule engine
// exposes health under its evaluate namespace; the management APIs use the
// common /api/v1 path.
var HealthPaths = map[string]string{
	ServiceRuleEngine:      "/v1/evaluate/health",
	ServiceRuleManagement:  "/api/v1/health",
	ServiceTransactionMgmt: "/api/v1/health",
	ServiceOpsAnalyst:      "/api/v1/health",
}

// Config is the top-level load test configuration.
type Config struct {
	Services  ServicesConfig        `yaml:"services"`
	Storage   StorageConfig         `yaml:"storage"`
	Reports   ReportsConfig         `yaml:"reports"`
	Harness   HarnessConfig         `yaml:"harness"`
	RuleEng   RuleEngineConfig      `yaml:"rule_engine"`
	RuleMgmt  RuleManagementConfig  `yaml:"rule_management"`
	TransMgmt TransactionMgmtConfig `yaml:"transaction_management"`
	OpsAgent  OpsAnalystConfig      `yaml:"ops_analyst"`
}

// ServicesConfig holds target service base URLs.
type ServicesConfig struct {
	RuleEngineURL           string `yaml:"rule_engine_url"`
	RuleEngineMonitoringURL string `yaml:"rule_engine_monitoring_url"`
	RuleManagementURL       string `yaml:"rule_management_url"`
	TransactionMgmtURL      string `yaml:"transaction_mgmt_url"`
	OpsAnalystURL           string `yaml:"ops_analyst_url"`
}

// URLFor returns the base URL for a service name.
func (s ServicesConfig) URLFor(service string) string {
	switch service {
	case ServiceRuleEngine:
		return s.RuleEngineURL
	case ServiceRuleManagement:
		return s.RuleManagementURL
	case ServiceTransactionMgmt:
		return s.TransactionMgmtURL
	case ServiceOpsAnalyst:
		return s.OpsAnalystURL
	}
	return ""
}

// StorageConfig configures the artifact object store (MinIO/S3).
type StorageConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Secure    bool   `yaml:"secure"`
}

// ReportsConfig configures report output.
type ReportsConfig struct {
	OutputDir string `yaml:"output_dir"`
}

// HarnessConfig configures run lifecycle behavior.
type HarnessConfig struct {
	EnableSeed     bool `yaml:"enable_seed"`
	EnableTeardown bool `yaml:"enable_teardown"`
	// StrictSeed makes any failed artifact publish fail the seed phase.
	// Default is best-effort: log and continue.
	StrictSeed bool `yaml:"strict_seed"`
}

// RuleEngineTrafficMix weights AUTH vs MONITORING evaluations.
type RuleEngineTrafficMix struct {
	Auth       float64 `yaml:"auth"`
	Monitoring float64 `yaml:"monitoring"`
}

// Normalize clamps negative weights to zero and scales the mix to sum to 1.
// An all-zero mix degenerates to AUTH-only, which keeps the hot path covered.
func (m RuleEngineTrafficMix) Normalize() RuleEngineTrafficMix {
	auth, monitoring := m.Auth, m.Monitoring
	if auth < 0 {
		auth = 0
	}
	if monitoring < 0 {
		monitoring = 0
	}
	total := auth + monitoring
	if total <= 0 {
		return RuleEngineTrafficMix{Auth: 1.0}
	}
	return RuleEngineTrafficMix{Auth: auth / total, Monitoring: monitoring / total}
}

// RuleEngineConfig targets the core decisioning engine.
// Priority: HIGH. Target: 10,000+ RPS, P50 < 5ms, P95 < 15ms, P99 < 30ms.
type RuleEngineConfig struct {
	TargetRPS    int                  `yaml:"target_rps"`
	P50MaxMS     float64              `yaml:"p50_max_ms"`
	P95MaxMS     float64              `yaml:"p95_max_ms"`
	P99MaxMS     float64              `yaml:"p99_max_ms"`
	ErrorRateMax float64              `yaml:"error_rate_max"`
	UsersNormal  int                  `yaml:"users_normal"`
	TrafficMix   RuleEngineTrafficMix `yaml:"traffic_mix"`
}

// RuleMgmtTrafficMix weights governance API operations.
type RuleMgmtTrafficMix struct {
	ListRules  float64 `yaml:"list_rules"`
	GetRule    float64 `yaml:"get_rule"`
	CreateRule float64 `yaml:"create_rule"`
	UpdateRule float64 `yaml:"update_rule"`
}

// RuleManagementConfig targets the governance API.
// Priority: LOW, infrequent writes.
type RuleManagementConfig struct {
	TargetRPS    int                `yaml:"target_rps"`
	P99MaxMS     float64            `yaml:"p99_max_ms"`
	ErrorRateMax float64            `yaml:"error_rate_max"`
	UsersNormal  int                `yaml:"users_normal"`
	TrafficMix   RuleMgmtTrafficMix `yaml:"traffic_mix"`
}

// TransMgmtTrafficMix weights ingestion vs query traffic.
type TransMgmtTrafficMix struct {
	Ingestion   float64 `yaml:"ingestion"`
	ListQuery   float64 `yaml:"list_query"`
	DetailQuery float64 `yaml:"detail_query"`
}

// TransactionMgmtConfig targets the transaction management API.
type TransactionMgmtConfig struct {
	TargetRPS    int                 `yaml:"target_rps"`
	P99MaxMS     float64             `yaml:"p99_max_ms"`
	ErrorRateMax float64             `yaml:"error_rate_max"`
	UsersNormal  int                 `yaml:"users_normal"`
	TrafficMix   TransMgmtTrafficMix `yaml:"traffic_mix"`
}

// OpsAnalystTrafficMix weights analyst investigation traffic.
type OpsAnalystTrafficMix struct {
	Investigations float64 `yaml:"investigations"`
	Worklist       float64 `yaml:"worklist"`
	Insights       float64 `yaml:"insights"`
}

// OpsAnalystConfig targets the advisory investigation engine.
// Higher latency tolerance than the decisioning path.
type OpsAnalystConfig struct {
	TargetRPS    int                  `yaml:"target_rps"`
	P99MaxMS     float64              `yaml:"p99_max_ms"`
	ErrorRateMax float64              `yaml:"error_rate_max"`
	UsersNormal  int                  `yaml:"users_normal"`
	TrafficMix   OpsAnalystTrafficMix `yaml:"traffic_mix"`
}

// Default returns the baseline configuration for local testing.
func Default() *Config {
	return &Config{
		Services: ServicesConfig{
			RuleEngineURL:           "http://localhost:8081",
			RuleEngineMonitoringURL: "http://localhost:8082",
			RuleManagementURL:       "http://localhost:8000",
			TransactionMgmtURL:      "http://localhost:8002",
			OpsAnalystURL:           "http://localhost:8003",
		},
		Storage: StorageConfig{
			Endpoint:  "localhost:9000",
			AccessKey: "minioadmin",
			SecretKey: "minioadmin",
			Bucket:    "fraud-gov-artifacts",
		},
		Reports: ReportsConfig{OutputDir: "html-reports"},
		Harness: HarnessConfig{EnableSeed: true, EnableTeardown: true},
		RuleEng: RuleEngineConfig{
			TargetRPS:    10000,
			P50MaxMS:     5,
			P95MaxMS:     15,
			P99MaxMS:     30,
			ErrorRateMax: 0.01,
			UsersNormal:  1000,
			TrafficMix:   RuleEngineTrafficMix{Auth: 1.0, Monitoring: 0.0},
		},
		RuleMgmt: RuleManagementConfig{
			TargetRPS:    200,
			P99MaxMS:     500,
			ErrorRateMax: 0.01,
			UsersNormal:  50,
			TrafficMix: RuleMgmtTrafficMix{
				ListRules: 0.50, GetRule: 0.30, CreateRule: 0.10, UpdateRule: 0.10,
			},
		},
		TransMgmt: TransactionMgmtConfig{
			TargetRPS:    2000,
			P99MaxMS:     200,
			ErrorRateMax: 0.01,
			UsersNormal:  200,
			TrafficMix: TransMgmtTrafficMix{
				Ingestion: 0.40, ListQuery: 0.40, DetailQuery: 0.20,
			},
		},
		OpsAgent: OpsAnalystConfig{
			TargetRPS:    500,
			P99MaxMS:     2000,
			ErrorRateMax: 0.01,
			UsersNormal:  25,
			TrafficMix: OpsAnalystTrafficMix{
				Investigations: 0.40, Worklist: 0.40, Insights: 0.20,
			},
		},
	}
}

// Load reads a YAML config file over the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Scenario is a named load shape preset.
type Scenario struct {
	Name        string        `yaml:"name"`
	Users       int           `yaml:"users"`
	SpawnRate   int           `yaml:"spawn_rate"`
	Duration    time.Duration `yaml:"duration"`
	Description string        `yaml:"description"`
}

// Scenarios is the preset table keyed by scenario name.
var Scenarios = map[string]Scenario{
	"smoke": {
		Name: "smoke", Users: 50, SpawnRate: 10, Duration: 2 * time.Minute,
		Description: "Quick validation that services are operational",
	},
	"baseline": {
		Name: "baseline", Users: 1000, SpawnRate: 100, Duration: 10 * time.Minute,
		Description: "Establish baseline performance metrics",
	},
	"stress": {
		Name: "stress", Users: 5000, SpawnRate: 500, Duration: 30 * time.Minute,
		Description: "Find breaking point and measure degradation",
	},
	"soak": {
		Name: "soak", Users: 1000, SpawnRate: 50, Duration: time.Hour,
		Description: "Detect memory leaks and resource exhaustion",
	},
	"spike": {
		Name: "spike", Users: 5000, SpawnRate: 1000, Duration: 5 * time.Minute,
		Description: "Sudden traffic spike to test burst handling",
	},
	"seed-only": {
		Name: "seed-only", Users: 1, SpawnRate: 1, Duration: time.Minute,
		Description: "Seed artifacts and validate visibility without sustained load",
	},
}

// GetScenario looks up a scenario preset by name.
func GetScenario(name string) (Scenario, error) {
	sc, ok := Scenarios[name]
	if !ok {
		return Scenario{}, fmt.Errorf("unknown scenario: %s", name)
	}
	return sc, nil
}

// ValidService reports whether name is a known service selection.
func ValidService(name string) bool {
	switch name {
	case ServiceAll, ServiceRuleEngine, ServiceRuleManagement,
		ServiceTransactionMgmt, ServiceOpsAnalyst:
		return true
	}
	return false
}

// ServicesFor expands a service selection into concrete service names.
func ServicesFor(selection string) []string {
	if selection == ServiceAll {
		return []string{
			ServiceRuleEngine, ServiceRuleManagement,
			ServiceTransactionMgmt, ServiceOpsAnalyst,
		}
	}
	return []string{selection}
}
