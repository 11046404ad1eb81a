// Package generators produces seeded synthetic test data: card transactions,
// decision events, cardholders, rules, and rulesets.
package generators

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Risk levels used to shape transaction amounts.
const (
	RiskNormal     = "normal"
	RiskHigh       = "high"
	RiskSuspicious = "suspicious"
)

// Transaction is a synthetic card transaction in the rule engine's
// evaluate request shape.
type Transaction struct {
	TransactionID   string  `json:"transaction_id"`
	CardHash        string  `json:"card_hash"`
	CardNetwork     string  `json:"card_network"`
	MerchantID      string  `json:"merchant_id"`
	MCC             string  `json:"mcc"`
	IPAddress       string  `json:"ip_address"`
	Amount          float64 `json:"amount"`
	Currency        string  `json:"currency"`
	CountryCode     string  `json:"country_code"`
	TransactionType string  `json:"transaction_type"`
	Decision        string  `json:"decision,omitempty"`
	Timestamp       string  `json:"timestamp"`
}

// DecisionEvent is the transaction-management ingestion payload.
type DecisionEvent struct {
	EventVersion   string           `json:"event_version"`
	TransactionID  string           `json:"transaction_id"`
	EvaluationType string           `json:"evaluation_type"`
	OccurredAt     string           `json:"occurred_at"`
	ProducedAt     string           `json:"produced_at"`
	Decision       string           `json:"decision"`
	DecisionReason string           `json:"decision_reason"`
	Transaction    EventTransaction `json:"transaction"`
	MatchedRules   []string         `json:"matched_rules"`
}

// EventTransaction is the transaction body nested in a decision event.
type EventTransaction struct {
	CardID      string  `json:"card_id"`
	CardLast4   string  `json:"card_last4"`
	CardNetwork string  `json:"card_network"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Country     string  `json:"country"`
	MerchantID  string  `json:"merchant_id"`
	MCC         string  `json:"mcc"`
}

// countryTemplate shapes country-specific transaction fields.
type countryTemplate struct {
	country      string
	cardNetworks []string
	mccs         []string
	currency     string
	amountRanges [][2]float64
}

var countryTemplates = map[string]countryTemplate{
	"IN": {
		country:      "IN",
		cardNetworks: []string{"VISA", "MASTERCARD", "RUPAY"},
		mccs:         []string{"5411", "5812", "4111", "7995", "5311", "5541", "5732"},
		currency:     "INR",
		amountRanges: [][2]float64{{100, 5000}, {5001, 25000}, {25001, 100000}, {100001, 500000}},
	},
	"US": {
		country:      "US",
		cardNetworks: []string{"VISA", "MASTERCARD", "AMEX", "DISCOVER"},
		mccs:         []string{"5411", "5812", "4111", "7995", "5311", "5541", "5732"},
		currency:     "USD",
		amountRanges: [][2]float64{{100, 5000}, {5001, 50000}, {50001, 200000}, {200001, 1000000}},
	},
}

var templateCountries = []string{"IN", "US"}

// TransactionGenerator produces seeded synthetic transactions. Safe for
// concurrent use: vegeta targeters call it from many attack goroutines.
type TransactionGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewTransactionGenerator creates a generator seeded for reproducibility.
func NewTransactionGenerator(seed int64) *TransactionGenerator {
	return &TransactionGenerator{rng: rand.New(rand.NewSource(seed))}
}

// Generate produces one transaction for the given country and risk level.
// Empty country picks one at random.
func (g *TransactionGenerator) Generate(country, riskLevel string) Transaction {
	g.mu.Lock()
	defer g.mu.Unlock()

	if country == "" {
		country = templateCountries[g.rng.Intn(len(templateCountries))]
	}
	tpl, ok := countryTemplates[country]
	if !ok {
		tpl = countryTemplates["IN"]
	}

	tx := Transaction{
		TransactionID:   fmt.Sprintf("txn_%s", uuid.New().String()[:16]),
		CardHash:        fmt.Sprintf("card_%s", hexID(g.rng, 12)),
		CardNetwork:     tpl.cardNetworks[g.rng.Intn(len(tpl.cardNetworks))],
		MerchantID:      fmt.Sprintf("M%d", 10000+g.rng.Intn(90000)),
		MCC:             tpl.mccs[g.rng.Intn(len(tpl.mccs))],
		IPAddress:       randomIPv4(g.rng),
		Amount:          g.amountFor(tpl, riskLevel),
		Currency:        tpl.currency,
		CountryCode:     tpl.country,
		TransactionType: "PURCHASE",
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
	}

	// Suspicious traffic originates from a private address, which several
	// seeded velocity rules key on.
	if riskLevel == RiskSuspicious {
		tx.IPAddress = "192.168.1.1"
	}

	return tx
}

// GenerateMonitoring produces a post-authorization transaction carrying the
// upstream decision.
func (g *TransactionGenerator) GenerateMonitoring(country string) Transaction {
	tx := g.Generate(country, RiskNormal)

	g.mu.Lock()
	defer g.mu.Unlock()
	tx.Decision = pick(g.rng, "APPROVE", "DECLINE")
	return tx
}

// GenerateBatch produces count transactions with the default risk
// distribution: 80% normal, 15% high, 5% suspicious.
func (g *TransactionGenerator) GenerateBatch(count int, country string) []Transaction {
	out := make([]Transaction, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, g.Generate(country, g.rollRisk()))
	}
	return out
}

func (g *TransactionGenerator) rollRisk() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	r := g.rng.Float64()
	switch {
	case r < 0.80:
		return RiskNormal
	case r < 0.95:
		return RiskHigh
	default:
		return RiskSuspicious
	}
}

// GenerateDecisionEvent produces one ingestion payload.
func (g *TransactionGenerator) GenerateDecisionEvent() DecisionEvent {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	return DecisionEvent{
		EventVersion:   "1.0",
		TransactionID:  fmt.Sprintf("txn_%s", hexID(g.rng, 16)),
		EvaluationType: pick(g.rng, "AUTH", "MONITORING"),
		OccurredAt:     now,
		ProducedAt:     now,
		Decision:       pick(g.rng, "APPROVE", "DECLINE"),
		DecisionReason: pick(g.rng, "RULE_MATCH", "DEFAULT_ALLOW"),
		Transaction: EventTransaction{
			CardID:      fmt.Sprintf("tok_%s", hexID(g.rng, 12)),
			CardLast4:   fmt.Sprintf("%d", 1000+g.rng.Intn(9000)),
			CardNetwork: pick(g.rng, "VISA", "MASTERCARD", "AMEX"),
			Amount:      roundCents(100 + g.rng.Float64()*4900),
			Currency:    "USD",
			Country:     pick(g.rng, "IN", "US", "SG"),
			MerchantID:  fmt.Sprintf("M%d", 10000+g.rng.Intn(90000)),
			MCC:         pick(g.rng, "5411", "5812", "4111", "7995", "5311"),
		},
		MatchedRules: []string{},
	}
}

func (g *TransactionGenerator) amountFor(tpl countryTemplate, riskLevel string) float64 {
	switch riskLevel {
	case RiskHigh:
		r := tpl.amountRanges[2]
		return roundCents(r[0] + g.rng.Float64()*(r[1]-r[0]))
	case RiskSuspicious:
		r := tpl.amountRanges[3]
		return roundCents(r[0] + g.rng.Float64()*(r[1]-r[0]))
	default:
		r := tpl.amountRanges[0]
		return roundCents(r[0] + g.rng.Float64()*(r[1]-r[0]))
	}
}

func roundCents(v float64) float64 {
	return float64(int(v*100)) / 100
}

func randomIPv4(rng *rand.Rand) string {
	return fmt.Sprintf("%d.%d.%d.%d",
		1+rng.Intn(223), rng.Intn(256), rng.Intn(256), 1+rng.Intn(254))
}

func pick(rng *rand.Rand, options ...string) string {
	return options[rng.Intn(len(options))]
}

const hexDigits = "0123456789abcdef"

func hexID(rng *rand.Rand, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = hexDigits[rng.Intn(len(hexDigits))]
	}
	return string(b)
}
