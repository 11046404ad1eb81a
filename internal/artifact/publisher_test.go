package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FairForge/fraudgov-loadtest/internal/generators"
)

func testRuleset(t *testing.T, ruleType, country string) generators.Ruleset {
	t.Helper()
	g := generators.NewRuleGenerator(42)
	return g.GenerateRuleset(ruleType, 3, country, "perf")
}

func TestPublisher_Publish(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	pub := NewPublisher(store, "fraud-gov-artifacts", "lt-abc123def456", zap.NewNop())

	rs := testRuleset(t, generators.RulesetTypeAuth, "IN")
	art, err := pub.Publish(ctx, rs)
	require.NoError(t, err)

	t.Run("key layout carries the run prefix", func(t *testing.T) {
		assert.Equal(t,
			"loadtest/lt-abc123def456/rulesets/perf/IN/CARD_AUTH/v1/ruleset.json",
			art.ObjectKey)
		assert.Equal(t,
			"loadtest/lt-abc123def456/rulesets/perf/IN/CARD_AUTH/v1/manifest.json",
			art.ManifestKey)
	})

	t.Run("checksum covers the stored bytes", func(t *testing.T) {
		require.True(t, strings.HasPrefix(art.Checksum, "sha256:"))

		body, err := store.Get(ctx, "fraud-gov-artifacts", art.ObjectKey)
		require.NoError(t, err)
		defer body.Close()
		data, err := io.ReadAll(body)
		require.NoError(t, err)

		var stored generators.Ruleset
		require.NoError(t, json.Unmarshal(data, &stored))
		assert.Equal(t, rs.RulesetID, stored.RulesetID)
	})

	t.Run("manifest fields", func(t *testing.T) {
		body, err := store.Get(ctx, "fraud-gov-artifacts", art.ManifestKey)
		require.NoError(t, err)
		defer body.Close()

		var m Manifest
		require.NoError(t, json.NewDecoder(body).Decode(&m))
		assert.Equal(t, ManifestSchemaVersion, m.SchemaVersion)
		assert.Equal(t, "perf", m.Environment)
		assert.Equal(t, "APAC", m.Region)
		assert.Equal(t, "IN", m.Country)
		assert.Equal(t, "CARD_AUTH", m.RulesetKey)
		assert.Equal(t, 1, m.RulesetVersion)
		assert.Equal(t, "s3://fraud-gov-artifacts/"+art.ObjectKey, m.ArtifactURI)
		assert.Equal(t, art.Checksum, m.Checksum)
		assert.NotEmpty(t, m.PublishedAt)
	})
}

func TestPublisher_PublishRejectsInvalidRuleset(t *testing.T) {
	pub := NewPublisher(NewMemoryStore(), "b", "lt-1", zap.NewNop())

	rs := testRuleset(t, generators.RulesetTypeAuth, "IN")
	rs.Rules = nil
	_, err := pub.Publish(context.Background(), rs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validate ruleset")
}

func TestPublisher_FetchRuleset(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	pub := NewPublisher(store, "b", "lt-1", zap.NewNop())

	rs := testRuleset(t, generators.RulesetTypeMonitoring, "US")
	art, err := pub.Publish(ctx, rs)
	require.NoError(t, err)

	t.Run("round trip verifies checksum", func(t *testing.T) {
		got, err := pub.FetchRuleset(ctx, art.ObjectKey, art.ManifestKey)
		require.NoError(t, err)
		assert.Equal(t, rs.RulesetID, got.RulesetID)
		assert.Equal(t, "CARD_MONITORING", got.RulesetKey)
		assert.Len(t, got.Rules, 3)
	})

	t.Run("tampered object fails the checksum", func(t *testing.T) {
		err := store.Upload(ctx, "b", art.ObjectKey, strings.NewReader(`{"ruleset_id":"x"}`))
		require.NoError(t, err)

		_, err = pub.FetchRuleset(ctx, art.ObjectKey, art.ManifestKey)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "checksum mismatch")
	})
}

func TestPublisher_ListAndCleanup(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	pub := NewPublisher(store, "b", "lt-seedrun", zap.NewNop())

	// Two rulesets, each with a sibling manifest behind the run prefix.
	_, err := pub.Publish(ctx, testRuleset(t, generators.RulesetTypeAuth, "IN"))
	require.NoError(t, err)
	_, err = pub.Publish(ctx, testRuleset(t, generators.RulesetTypeMonitoring, "IN"))
	require.NoError(t, err)

	// An object from another run must survive this run's teardown.
	require.NoError(t, store.Upload(ctx, "b",
		"loadtest/lt-other/rulesets/perf/IN/CARD_AUTH/v1/ruleset.json",
		strings.NewReader("{}")))

	keys, err := pub.ListRun(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 4, "two rulesets plus two manifests")
	for _, k := range keys {
		assert.True(t, strings.HasPrefix(k, "loadtest/lt-seedrun/"), k)
	}

	// Artifact granularity: a ruleset and its manifest count once.
	artifacts, err := pub.ListRunArtifacts(ctx)
	require.NoError(t, err)
	assert.Len(t, artifacts, 2)
	for _, k := range artifacts {
		assert.True(t, strings.HasSuffix(k, "/ruleset.json"), k)
	}

	deleted, err := pub.CleanupRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	t.Run("everything under the prefix is gone", func(t *testing.T) {
		remaining, err := pub.ListRun(ctx)
		require.NoError(t, err)
		assert.Empty(t, remaining)
	})

	t.Run("teardown is idempotent", func(t *testing.T) {
		deleted, err := pub.CleanupRun(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, deleted)
	})

	t.Run("other runs untouched", func(t *testing.T) {
		other, err := store.List(ctx, "b", "loadtest/lt-other/")
		require.NoError(t, err)
		assert.Len(t, other, 1)
	})
}

func TestValidateRuleset(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		rs := testRuleset(t, generators.RulesetTypeAuth, "IN")
		data, err := json.Marshal(rs)
		require.NoError(t, err)
		assert.NoError(t, ValidateRuleset(data))
	})

	t.Run("bad ruleset key", func(t *testing.T) {
		rs := testRuleset(t, generators.RulesetTypeAuth, "IN")
		rs.RulesetKey = "CARD_BOGUS"
		data, err := json.Marshal(rs)
		require.NoError(t, err)
		assert.Error(t, ValidateRuleset(data))
	})

	t.Run("missing required fields", func(t *testing.T) {
		assert.Error(t, ValidateRuleset([]byte(`{"ruleset_id":"x"}`)))
	})
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	require.NoError(t, m.EnsureBucket(ctx, "b"))
	require.NoError(t, m.Upload(ctx, "b", "a/1", strings.NewReader("one")))
	require.NoError(t, m.Upload(ctx, "b", "a/2", strings.NewReader("two")))
	require.NoError(t, m.Upload(ctx, "b", "z/3", strings.NewReader("three")))

	keys, err := m.List(ctx, "b", "a/")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/1", "a/2"}, keys)

	body, err := m.Get(ctx, "b", "a/1")
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))

	require.NoError(t, m.Delete(ctx, "b", "a/1"))
	_, err = m.Get(ctx, "b", "a/1")
	assert.Error(t, err)

	// Deleting again is a no-op, matching S3 semantics.
	assert.NoError(t, m.Delete(ctx, "b", "a/1"))

	_, err = m.Get(ctx, "nope", fmt.Sprintf("k-%d", 1))
	assert.Error(t, err)
}
