package traffic

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vegeta "github.com/tsenart/vegeta/v12/lib"
	"go.uber.org/zap"

	"github.com/FairForge/fraudgov-loadtest/internal/config"
	"github.com/FairForge/fraudgov-loadtest/internal/metrics"
)

func TestBuildPlans_ScalesRates(t *testing.T) {
	cfg := config.Default()

	plans := BuildPlans(cfg, []string{config.ServiceRuleEngine, config.ServiceOpsAnalyst}, 0.5, 1, nil)
	require.Len(t, plans, 2)
	assert.Equal(t, 5000, plans[0].RPS)
	assert.Equal(t, 250, plans[1].RPS)

	t.Run("zero or negative scale means full rate", func(t *testing.T) {
		plans := BuildPlans(cfg, []string{config.ServiceRuleEngine}, 0, 1, nil)
		assert.Equal(t, 10000, plans[0].RPS)
	})

	t.Run("tiny scale still drives at least one request per second", func(t *testing.T) {
		plans := BuildPlans(cfg, []string{config.ServiceOpsAnalyst}, 0.0001, 1, nil)
		assert.Equal(t, 1, plans[0].RPS)
	})
}

func TestResolveAttacks_WeightedSplit(t *testing.T) {
	noop := func(*vegeta.Target) error { return nil }
	plans := []ServicePlan{{
		Service: config.ServiceRuleEngine,
		RPS:     100,
		TaskSets: []TaskSet{
			{Name: "a", Weight: 0.8, Targeter: noop},
			{Name: "b", Weight: 0.2, Targeter: noop},
			{Name: "c", Weight: 0, Targeter: noop},
		},
	}}
	d := NewDriver(plans, DriverOptions{}, metrics.NewCollector(), zap.NewNop())

	attacks := d.resolveAttacks()
	require.Len(t, attacks, 2, "zero-weight task sets are dropped")
	assert.Equal(t, "a", attacks[0].name)
	assert.Equal(t, 80, attacks[0].freq)
	assert.Equal(t, "b", attacks[1].name)
	assert.Equal(t, 20, attacks[1].freq)

	t.Run("weights not summing to one are normalized", func(t *testing.T) {
		plans[0].TaskSets = []TaskSet{
			{Name: "a", Weight: 3, Targeter: noop},
			{Name: "b", Weight: 1, Targeter: noop},
		}
		d := NewDriver(plans, DriverOptions{}, metrics.NewCollector(), zap.NewNop())
		attacks := d.resolveAttacks()
		assert.Equal(t, 75, attacks[0].freq)
		assert.Equal(t, 25, attacks[1].freq)
	})

	t.Run("small weight never rounds to zero", func(t *testing.T) {
		plans[0].TaskSets = []TaskSet{
			{Name: "a", Weight: 0.999, Targeter: noop},
			{Name: "b", Weight: 0.001, Targeter: noop},
		}
		plans[0].RPS = 10
		d := NewDriver(plans, DriverOptions{}, metrics.NewCollector(), zap.NewNop())
		attacks := d.resolveAttacks()
		assert.Equal(t, 1, attacks[1].freq)
	})
}

func TestDriver_Run(t *testing.T) {
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	target := func(t *vegeta.Target) error {
		t.Method = http.MethodGet
		t.URL = srv.URL + "/v1/evaluate/auth"
		return nil
	}

	plans := []ServicePlan{{
		Service:  config.ServiceRuleEngine,
		RPS:      20,
		TaskSets: []TaskSet{{Name: OpAuthEvaluate, Weight: 1, Targeter: target}},
	}}

	collector := metrics.NewCollector()
	d := NewDriver(plans, DriverOptions{Duration: time.Second, Timeout: 5 * time.Second}, collector, zap.NewNop())

	vm, err := d.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, vm)

	assert.Greater(t, atomic.LoadInt64(&hits), int64(0))
	assert.Equal(t, uint64(atomic.LoadInt64(&hits)), vm.Requests)

	snap := collector.Stats(OpAuthEvaluate)
	require.NotNil(t, snap, "results are attributed to the operation name")
	assert.Equal(t, int64(vm.Requests), snap.Count)
	assert.Zero(t, snap.Errors)
}

func TestDriver_RunRecordsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	target := func(t *vegeta.Target) error {
		t.Method = http.MethodGet
		t.URL = srv.URL + "/api/v1/rules"
		return nil
	}

	collector := metrics.NewCollector()
	d := NewDriver([]ServicePlan{{
		Service:  config.ServiceRuleManagement,
		RPS:      10,
		TaskSets: []TaskSet{{Name: OpRuleList, Weight: 1, Targeter: target}},
	}}, DriverOptions{Duration: time.Second}, collector, zap.NewNop())

	_, err := d.Run(context.Background())
	require.NoError(t, err)

	snap := collector.Stats(OpRuleList)
	require.NotNil(t, snap)
	assert.Greater(t, snap.Count, int64(0))
	assert.Equal(t, snap.Count, snap.Errors, "every 500 counts as a failure")
}

func TestDriver_RunCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	target := func(t *vegeta.Target) error {
		t.Method = http.MethodGet
		t.URL = srv.URL
		return nil
	}

	collector := metrics.NewCollector()
	d := NewDriver([]ServicePlan{{
		Service:  config.ServiceRuleEngine,
		RPS:      10,
		TaskSets: []TaskSet{{Name: OpAuthEvaluate, Weight: 1, Targeter: target}},
	}}, DriverOptions{Duration: time.Minute}, collector, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(500 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	vm, err := d.Run(ctx)
	require.NoError(t, err, "cancellation is a clean stop, not an error")
	require.NotNil(t, vm)
	assert.Less(t, time.Since(start), 10*time.Second, "run must stop well before the full minute")
}

func TestDriver_RunRejectsEmptyPlans(t *testing.T) {
	d := NewDriver(nil, DriverOptions{Duration: time.Second}, metrics.NewCollector(), zap.NewNop())
	_, err := d.Run(context.Background())
	assert.Error(t, err)
}
