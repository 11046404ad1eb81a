package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FairForge/fraudgov-loadtest/internal/config"
	"github.com/FairForge/fraudgov-loadtest/internal/generators"
	"github.com/FairForge/fraudgov-loadtest/internal/reporting"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRunCommand_RejectsUnknownService(t *testing.T) {
	_, err := execute(t, "run", "--service", "nonexistent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown service")
}

func TestRunCommand_RejectsUnknownScenario(t *testing.T) {
	_, err := execute(t, "run", "--scenario", "tsunami")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown scenario")
}

func TestRunCommand_RejectsUnknownProfile(t *testing.T) {
	_, err := execute(t, "run", "--profile", "everything-at-once")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown profile")
}

func TestGenerateCommand(t *testing.T) {
	t.Run("transactions", func(t *testing.T) {
		dir := t.TempDir()
		out, err := execute(t, "generate", "transactions", "-n", "10", "--country", "US", "-o", dir)
		require.NoError(t, err)
		assert.Contains(t, out, filepath.Join(dir, "transactions.json"))

		data, err := os.ReadFile(filepath.Join(dir, "transactions.json"))
		require.NoError(t, err)
		var txs []generators.Transaction
		require.NoError(t, json.Unmarshal(data, &txs))
		require.Len(t, txs, 10)
		assert.Equal(t, "US", txs[0].CountryCode)
	})

	t.Run("rulesets", func(t *testing.T) {
		dir := t.TempDir()
		_, err := execute(t, "generate", "rulesets", "-n", "5", "-o", dir)
		require.NoError(t, err)

		data, err := os.ReadFile(filepath.Join(dir, "rulesets.json"))
		require.NoError(t, err)
		var sets []generators.Ruleset
		require.NoError(t, json.Unmarshal(data, &sets))
		require.Len(t, sets, 2)
		assert.Equal(t, "CARD_AUTH", sets[0].RulesetKey)
		assert.Equal(t, "CARD_MONITORING", sets[1].RulesetKey)
		assert.Len(t, sets[0].Rules, 5)
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := execute(t, "generate", "nonsense")
		require.Error(t, err)
	})
}

func TestReportCommand(t *testing.T) {
	t.Run("no summaries", func(t *testing.T) {
		dir := t.TempDir()
		_, err := execute(t, "report", "--reports-dir", dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no run summaries")
	})

	t.Run("renders existing summaries", func(t *testing.T) {
		dir := t.TempDir()
		summary := reporting.BuildSummary("lt-clitest0001", "smoke",
			[]string{config.ServiceRuleEngine}, nil, nil, nil, nil)
		_, err := reporting.WriteJSON(summary, dir)
		require.NoError(t, err)

		out, err := execute(t, "report", "--reports-dir", dir)
		require.NoError(t, err)
		assert.Contains(t, out, "load-test-report.html")

		data, err := os.ReadFile(filepath.Join(dir, "load-test-report.html"))
		require.NoError(t, err)
		assert.Contains(t, string(data), "lt-clitest0001")
	})
}

func TestRateScale(t *testing.T) {
	cfg := config.Default()

	t.Run("zero users means full rate", func(t *testing.T) {
		assert.Equal(t, 1.0, rateScale(cfg, config.ServicesFor(config.ServiceAll), 0))
	})

	t.Run("users scale against normal capacity", func(t *testing.T) {
		// rule-engine alone runs 1000 users at full rate.
		got := rateScale(cfg, []string{config.ServiceRuleEngine}, 500)
		assert.InDelta(t, 0.5, got, 0.001)
	})

	t.Run("all services pool their capacity", func(t *testing.T) {
		total := cfg.RuleEng.UsersNormal + cfg.RuleMgmt.UsersNormal +
			cfg.TransMgmt.UsersNormal + cfg.OpsAgent.UsersNormal
		got := rateScale(cfg, config.ServicesFor(config.ServiceAll), total)
		assert.InDelta(t, 1.0, got, 0.001)
	})
}

func TestStoreEndpoint(t *testing.T) {
	cfg := config.Default()

	cfg.Storage.Endpoint = "localhost:9000"
	assert.Equal(t, "http://localhost:9000", storeEndpoint(cfg))

	cfg.Storage.Secure = true
	assert.Equal(t, "https://localhost:9000", storeEndpoint(cfg))

	cfg.Storage.Endpoint = "http://minio.internal:9000"
	assert.Equal(t, "http://minio.internal:9000", storeEndpoint(cfg))
}

func TestSeededTransactionIDs(t *testing.T) {
	ids := seededTransactionIDs(7)
	require.Len(t, ids, 20)
	for _, id := range ids {
		assert.Contains(t, id, "txn_")
	}
}
