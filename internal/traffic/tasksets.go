// Package traffic builds vegeta task sets for each service under test and
// drives them at weighted rates.
package traffic

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	vegeta "github.com/tsenart/vegeta/v12/lib"

	"github.com/FairForge/fraudgov-loadtest/internal/config"
	"github.com/FairForge/fraudgov-loadtest/internal/generators"
)

// Operation names, used as attack names so every result carries its
// operation through the pipeline.
const (
	OpAuthEvaluate       = "rule-engine.auth"
	OpMonitoringEvaluate = "rule-engine.monitoring"
	OpDecisionIngest     = "trans-mgmt.ingest"
	OpTransactionList    = "trans-mgmt.list"
	OpTransactionDetail  = "trans-mgmt.detail"
	OpRuleList           = "rule-mgmt.list"
	OpRuleGet            = "rule-mgmt.get"
	OpRuleCreate         = "rule-mgmt.create"
	OpRuleUpdate         = "rule-mgmt.update"
	OpWorklist           = "ops-analyst.worklist"
	OpInvestigationRun   = "ops-analyst.investigations"
	OpInsights           = "ops-analyst.insights"
)

// TaskSet is one weighted operation: a name for metric attribution and a
// targeter that produces its requests.
type TaskSet struct {
	Name     string
	Weight   float64
	Targeter vegeta.Targeter
}

var jsonHeader = http.Header{"Content-Type": []string{"application/json"}}

// idRing remembers recently used identifiers so detail and update
// operations hit plausible resources instead of random 404s.
type idRing struct {
	mu  sync.Mutex
	ids []string
	pos int
}

func newIDRing(capacity int, seedIDs ...string) *idRing {
	r := &idRing{ids: make([]string, 0, capacity)}
	r.ids = append(r.ids, seedIDs...)
	return r
}

func (r *idRing) put(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.ids) < cap(r.ids) {
		r.ids = append(r.ids, id)
		return
	}
	r.ids[r.pos] = id
	r.pos = (r.pos + 1) % len(r.ids)
}

func (r *idRing) get(rng *lockedRand) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ids[rng.Intn(len(r.ids))]
}

// lockedRand is a seeded rand safe for vegeta's attack goroutines.
type lockedRand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newLockedRand(seed int64) *lockedRand {
	return &lockedRand{rng: rand.New(rand.NewSource(seed))}
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rng.Intn(n)
}

func (l *lockedRand) pick(options ...string) string {
	return options[l.Intn(len(options))]
}

// RuleEngineTaskSets builds the AUTH and MONITORING evaluate task sets with
// weights from the configured traffic mix.
func RuleEngineTaskSets(cfg *config.Config, gen *generators.TransactionGenerator) []TaskSet {
	mix := cfg.RuleEng.TrafficMix.Normalize()
	monitoringURL := cfg.Services.RuleEngineMonitoringURL
	if monitoringURL == "" {
		monitoringURL = cfg.Services.RuleEngineURL
	}

	authTargeter := func(t *vegeta.Target) error {
		tx := gen.Generate("", generators.RiskNormal)
		body, err := json.Marshal(tx)
		if err != nil {
			return err
		}
		t.Method = http.MethodPost
		t.URL = cfg.Services.RuleEngineURL + "/v1/evaluate/auth"
		t.Body = body
		t.Header = jsonHeader
		return nil
	}

	monitoringTargeter := func(t *vegeta.Target) error {
		tx := gen.GenerateMonitoring("")
		body, err := json.Marshal(tx)
		if err != nil {
			return err
		}
		t.Method = http.MethodPost
		t.URL = monitoringURL + "/v1/evaluate/monitoring"
		t.Body = body
		t.Header = jsonHeader
		return nil
	}

	return []TaskSet{
		{Name: OpAuthEvaluate, Weight: mix.Auth, Targeter: authTargeter},
		{Name: OpMonitoringEvaluate, Weight: mix.Monitoring, Targeter: monitoringTargeter},
	}
}

// TransactionMgmtTaskSets builds ingestion, list-query, and detail-query
// task sets. Detail queries pick from recently ingested transaction IDs so
// they hit real records.
func TransactionMgmtTaskSets(cfg *config.Config, gen *generators.TransactionGenerator, seed int64) []TaskSet {
	mix := cfg.TransMgmt.TrafficMix
	base := cfg.Services.TransactionMgmtURL
	rng := newLockedRand(seed)

	// Seed one synthetic ID so a detail query before any ingest still has
	// something to ask for.
	ring := newIDRing(256, "txn_000000000000seed")

	ingest := func(t *vegeta.Target) error {
		ev := gen.GenerateDecisionEvent()
		body, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		ring.put(ev.TransactionID)
		t.Method = http.MethodPost
		t.URL = base + "/api/v1/decision-events"
		t.Body = body
		t.Header = jsonHeader
		return nil
	}

	list := func(t *vegeta.Target) error {
		q := url.Values{}
		switch rng.Intn(3) {
		case 0:
			q.Set("card_id", fmt.Sprintf("%s********%04d",
				rng.pick("4111", "5411", "3700"), 1000+rng.Intn(9000)))
			q.Set("page_size", "50")
		case 1:
			q.Set("merchant_id", fmt.Sprintf("M%d", 10000+rng.Intn(90000)))
			q.Set("page_size", "100")
		default:
			q.Set("page_size", "50")
		}
		t.Method = http.MethodGet
		t.URL = base + "/api/v1/transactions?" + q.Encode()
		return nil
	}

	detail := func(t *vegeta.Target) error {
		t.Method = http.MethodGet
		t.URL = base + "/api/v1/transactions/" + ring.get(rng)
		return nil
	}

	return []TaskSet{
		{Name: OpDecisionIngest, Weight: mix.Ingestion, Targeter: ingest},
		{Name: OpTransactionList, Weight: mix.ListQuery, Targeter: list},
		{Name: OpTransactionDetail, Weight: mix.DetailQuery, Targeter: detail},
	}
}

// RuleManagementTaskSets builds governance API task sets: list (plain and
// filtered), get, create, and update.
func RuleManagementTaskSets(cfg *config.Config, ruleGen *generators.RuleGenerator, seed int64) []TaskSet {
	mix := cfg.RuleMgmt.TrafficMix
	base := cfg.Services.RuleManagementURL
	rng := newLockedRand(seed)

	ring := newIDRing(128, "R-1000")

	list := func(t *vegeta.Target) error {
		q := url.Values{}
		q.Set("page_size", "50")
		// Half the list traffic filters, matching analyst behavior.
		if rng.Intn(2) == 0 {
			q.Set("rule_type", rng.pick("AUTH", "MONITORING"))
			q.Set("enabled", "true")
		}
		t.Method = http.MethodGet
		t.URL = base + "/api/v1/rules?" + q.Encode()
		return nil
	}

	get := func(t *vegeta.Target) error {
		t.Method = http.MethodGet
		t.URL = base + "/api/v1/rules/" + ring.get(rng)
		return nil
	}

	create := func(t *vegeta.Target) error {
		rule := ruleGen.Generate(rng.pick(generators.RulesetTypeAuth, generators.RulesetTypeMonitoring))
		ring.put(rule.RuleID)
		payload := map[string]interface{}{
			"rule_name":      fmt.Sprintf("Load Test Rule %d", 1000+rng.Intn(9000)),
			"description":    "Generated rule for load testing",
			"rule_type":      ruleTypeFor(rule),
			"priority":       rule.Priority,
			"condition_tree": rule.Condition,
			"action":         rule.Action,
		}
		body, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		t.Method = http.MethodPost
		t.URL = base + "/api/v1/rules"
		t.Body = body
		t.Header = jsonHeader
		return nil
	}

	update := func(t *vegeta.Target) error {
		body, err := json.Marshal(map[string]interface{}{
			"enabled":  rng.Intn(2) == 0,
			"priority": 1 + rng.Intn(100),
		})
		if err != nil {
			return err
		}
		t.Method = http.MethodPut
		t.URL = base + "/api/v1/rules/" + ring.get(rng)
		t.Body = body
		t.Header = jsonHeader
		return nil
	}

	return []TaskSet{
		{Name: OpRuleList, Weight: mix.ListRules, Targeter: list},
		{Name: OpRuleGet, Weight: mix.GetRule, Targeter: get},
		{Name: OpRuleCreate, Weight: mix.CreateRule, Targeter: create},
		{Name: OpRuleUpdate, Weight: mix.UpdateRule, Targeter: update},
	}
}

func ruleTypeFor(rule generators.Rule) string {
	if rule.Action.Decision != "" {
		return generators.RulesetTypeAuth
	}
	return generators.RulesetTypeMonitoring
}

// OpsAnalystTaskSets builds worklist, investigation, and insight task sets.
// Investigation and insight calls target seeded transaction IDs.
func OpsAnalystTaskSets(cfg *config.Config, seededTxnIDs []string, seed int64) []TaskSet {
	mix := cfg.OpsAgent.TrafficMix
	base := cfg.Services.OpsAnalystURL
	rng := newLockedRand(seed)

	if len(seededTxnIDs) == 0 {
		seededTxnIDs = []string{"txn_000000000000seed"}
	}
	pickTxn := func() string {
		return seededTxnIDs[rng.Intn(len(seededTxnIDs))]
	}

	worklist := func(t *vegeta.Target) error {
		q := url.Values{}
		q.Set("limit", strconv.Itoa([]int{10, 25, 50}[rng.Intn(3)]))
		if sev := rng.pick("", "LOW", "MEDIUM", "HIGH"); sev != "" {
			q.Set("severity", sev)
		}
		t.Method = http.MethodGet
		t.URL = base + "/api/v1/ops-agent/worklist/recommendations?" + q.Encode()
		return nil
	}

	investigate := func(t *vegeta.Target) error {
		body, err := json.Marshal(map[string]string{
			"transaction_id": pickTxn(),
			"mode":           "quick",
		})
		if err != nil {
			return err
		}
		t.Method = http.MethodPost
		t.URL = base + "/api/v1/ops-agent/investigations/run"
		t.Body = body
		t.Header = jsonHeader
		return nil
	}

	insights := func(t *vegeta.Target) error {
		t.Method = http.MethodGet
		t.URL = base + "/api/v1/ops-agent/transactions/" + pickTxn() + "/insights"
		return nil
	}

	return []TaskSet{
		{Name: OpWorklist, Weight: mix.Worklist, Targeter: worklist},
		{Name: OpInvestigationRun, Weight: mix.Investigations, Targeter: investigate},
		{Name: OpInsights, Weight: mix.Insights, Targeter: insights},
	}
}

// TaskSetsFor assembles task sets for the requested services.
func TaskSetsFor(cfg *config.Config, services []string, seed int64, seededTxnIDs []string) []TaskSet {
	txGen := generators.NewTransactionGenerator(seed)
	ruleGen := generators.NewRuleGenerator(seed)

	var out []TaskSet
	for _, svc := range services {
		switch svc {
		case config.ServiceRuleEngine:
			out = append(out, RuleEngineTaskSets(cfg, txGen)...)
		case config.ServiceTransactionMgmt:
			out = append(out, TransactionMgmtTaskSets(cfg, txGen, seed)...)
		case config.ServiceRuleManagement:
			out = append(out, RuleManagementTaskSets(cfg, ruleGen, seed)...)
		case config.ServiceOpsAnalyst:
			out = append(out, OpsAnalystTaskSets(cfg, seededTxnIDs, seed)...)
		}
	}
	return out
}

// RPSFor returns the configured target rate for one service.
func RPSFor(cfg *config.Config, service string) int {
	switch service {
	case config.ServiceRuleEngine:
		return cfg.RuleEng.TargetRPS
	case config.ServiceTransactionMgmt:
		return cfg.TransMgmt.TargetRPS
	case config.ServiceRuleManagement:
		return cfg.RuleMgmt.TargetRPS
	case config.ServiceOpsAnalyst:
		return cfg.OpsAgent.TargetRPS
	}
	return 0
}
