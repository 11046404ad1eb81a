package generators

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionGenerator_Deterministic(t *testing.T) {
	a := NewTransactionGenerator(42)
	b := NewTransactionGenerator(42)

	// Transaction IDs and timestamps are intentionally unique per call, so
	// compare the seed-derived fields only.
	for i := 0; i < 50; i++ {
		ta := a.Generate("IN", RiskNormal)
		tb := b.Generate("IN", RiskNormal)
		assert.Equal(t, ta.CardHash, tb.CardHash)
		assert.Equal(t, ta.CardNetwork, tb.CardNetwork)
		assert.Equal(t, ta.MerchantID, tb.MerchantID)
		assert.Equal(t, ta.MCC, tb.MCC)
		assert.Equal(t, ta.Amount, tb.Amount)
	}
}

func TestTransactionGenerator_CountryTemplates(t *testing.T) {
	g := NewTransactionGenerator(1)

	t.Run("india", func(t *testing.T) {
		tx := g.Generate("IN", RiskNormal)
		assert.Equal(t, "IN", tx.CountryCode)
		assert.Equal(t, "INR", tx.Currency)
		assert.NotEmpty(t, tx.TransactionID)
		assert.NotEmpty(t, tx.CardHash)
		assert.Greater(t, tx.Amount, 0.0)
	})

	t.Run("us", func(t *testing.T) {
		tx := g.Generate("US", RiskNormal)
		assert.Equal(t, "US", tx.CountryCode)
		assert.Equal(t, "USD", tx.Currency)
	})

	t.Run("unknown country falls back to india template", func(t *testing.T) {
		tx := g.Generate("ZZ", RiskNormal)
		assert.Equal(t, "INR", tx.Currency)
	})
}

func TestTransactionGenerator_RiskShapesAmount(t *testing.T) {
	g := NewTransactionGenerator(7)

	for i := 0; i < 30; i++ {
		normal := g.Generate("IN", RiskNormal)
		assert.LessOrEqual(t, normal.Amount, 5000.0)

		high := g.Generate("IN", RiskHigh)
		assert.GreaterOrEqual(t, high.Amount, 25001.0)

		sus := g.Generate("IN", RiskSuspicious)
		assert.GreaterOrEqual(t, sus.Amount, 100001.0)
		assert.Equal(t, "192.168.1.1", sus.IPAddress)
	}
}

func TestTransactionGenerator_Monitoring(t *testing.T) {
	g := NewTransactionGenerator(7)
	tx := g.GenerateMonitoring("US")
	assert.Contains(t, []string{"APPROVE", "DECLINE"}, tx.Decision)
}

func TestTransactionGenerator_Batch(t *testing.T) {
	g := NewTransactionGenerator(9)
	batch := g.GenerateBatch(200, "IN")
	require.Len(t, batch, 200)
	ids := make(map[string]struct{}, len(batch))
	for _, tx := range batch {
		ids[tx.TransactionID] = struct{}{}
	}
	assert.Equal(t, 200, len(ids), "transaction IDs must be unique within a batch")
}

func TestTransactionGenerator_DecisionEvent(t *testing.T) {
	g := NewTransactionGenerator(3)
	ev := g.GenerateDecisionEvent()
	assert.Equal(t, "1.0", ev.EventVersion)
	assert.True(t, strings.HasPrefix(ev.TransactionID, "txn_"))
	assert.Contains(t, []string{"AUTH", "MONITORING"}, ev.EvaluationType)
	assert.Contains(t, []string{"APPROVE", "DECLINE"}, ev.Decision)
	assert.NotEmpty(t, ev.Transaction.CardID)
	assert.Len(t, ev.Transaction.CardLast4, 4)
	assert.NotNil(t, ev.MatchedRules)
}

func TestUserGenerator(t *testing.T) {
	g := NewUserGenerator(11)

	t.Run("deterministic", func(t *testing.T) {
		a := NewUserGenerator(5)
		b := NewUserGenerator(5)
		for i := 0; i < 20; i++ {
			ua, ub := a.Generate("IN"), b.Generate("IN")
			assert.Equal(t, ua.Name, ub.Name)
			assert.Equal(t, ua.Email, ub.Email)
			assert.Equal(t, ua.CardNumber, ub.CardNumber)
		}
	})

	t.Run("card number shape", func(t *testing.T) {
		for i := 0; i < 50; i++ {
			u := g.Generate("US")
			require.Len(t, u.CardNumber, 16)
			assert.Contains(t, []string{"3", "4", "5", "6"}, u.CardNumber[:1],
				"card %s should carry a known network prefix", u.CardNumber)
		}
	})

	t.Run("country propagates to address", func(t *testing.T) {
		u := g.Generate("SG")
		assert.Equal(t, "SG", u.Country)
		assert.Equal(t, "SG", u.Address.Country)
	})

	t.Run("batch", func(t *testing.T) {
		users := g.GenerateBatch(25)
		assert.Len(t, users, 25)
	})
}

func TestRuleGenerator_AuthAction(t *testing.T) {
	g := NewRuleGenerator(13)
	for i := 0; i < 30; i++ {
		r := g.Generate(RulesetTypeAuth)
		assert.Contains(t, []string{"DECLINE", "REVIEW"}, r.Action.Decision)
		assert.NotEmpty(t, r.Action.ReasonCode)
		assert.Empty(t, r.Action.Severity)
		assert.Equal(t, "AND", r.Condition.Op)
		assert.NotEmpty(t, r.Condition.Args)
	}
}

func TestRuleGenerator_MonitoringAction(t *testing.T) {
	g := NewRuleGenerator(13)
	for i := 0; i < 30; i++ {
		r := g.Generate(RulesetTypeMonitoring)
		assert.Contains(t, []string{"LOW", "MEDIUM", "HIGH"}, r.Action.Severity)
		assert.NotEmpty(t, r.Action.Tags)
		assert.Empty(t, r.Action.Decision)
	}
}

func TestRuleGenerator_Ruleset(t *testing.T) {
	g := NewRuleGenerator(21)

	t.Run("auth ruleset", func(t *testing.T) {
		rs := g.GenerateRuleset(RulesetTypeAuth, 5, "IN", "perf")
		assert.Equal(t, "CARD_AUTH", rs.RulesetKey)
		assert.Equal(t, "APAC", rs.Region)
		assert.Equal(t, "IN", rs.Country)
		assert.Equal(t, "perf", rs.Environment)
		assert.Equal(t, 1, rs.Version)
		assert.Len(t, rs.Rules, 5)
		assert.True(t, strings.HasPrefix(rs.RulesetID, "rs_"))
	})

	t.Run("monitoring ruleset", func(t *testing.T) {
		rs := g.GenerateRuleset(RulesetTypeMonitoring, 3, "US", "perf")
		assert.Equal(t, "CARD_MONITORING", rs.RulesetKey)
		assert.Equal(t, "AMERICAS", rs.Region)
	})

	t.Run("unknown country maps to global region", func(t *testing.T) {
		rs := g.GenerateRuleset(RulesetTypeAuth, 1, "ZZ", "perf")
		assert.Equal(t, "GLOBAL", rs.Region)
	})
}
