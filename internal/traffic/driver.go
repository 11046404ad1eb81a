package traffic

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	vegeta "github.com/tsenart/vegeta/v12/lib"
	"go.uber.org/zap"

	"github.com/FairForge/fraudgov-loadtest/internal/config"
	"github.com/FairForge/fraudgov-loadtest/internal/metrics"
)

// ServicePlan is one service's slice of the load phase: its target rate and
// the weighted task sets that share it.
type ServicePlan struct {
	Service  string
	RPS      int
	TaskSets []TaskSet
}

// BuildPlans assembles per-service attack plans. Scale multiplies each
// service's configured target rate, so scenarios can shrink or grow the
// whole run uniformly.
func BuildPlans(cfg *config.Config, services []string, scale float64, seed int64, seededTxnIDs []string) []ServicePlan {
	if scale <= 0 {
		scale = 1.0
	}

	plans := make([]ServicePlan, 0, len(services))
	for _, svc := range services {
		rps := int(math.Round(float64(RPSFor(cfg, svc)) * scale))
		if rps < 1 {
			rps = 1
		}
		plans = append(plans, ServicePlan{
			Service:  svc,
			RPS:      rps,
			TaskSets: TaskSetsFor(cfg, []string{svc}, seed, seededTxnIDs),
		})
	}
	return plans
}

// DriverOptions tunes the attack machinery.
type DriverOptions struct {
	Duration time.Duration
	Timeout  time.Duration
	Workers  uint64
}

// Driver runs every plan concurrently, one vegeta attack per task set, and
// funnels results into the collector keyed by operation name.
type Driver struct {
	plans     []ServicePlan
	opts      DriverOptions
	collector *metrics.Collector
	logger    *zap.Logger
}

// NewDriver creates a driver over the given plans.
func NewDriver(plans []ServicePlan, opts DriverOptions, collector *metrics.Collector, logger *zap.Logger) *Driver {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Workers == 0 {
		opts.Workers = 10
	}
	return &Driver{plans: plans, opts: opts, collector: collector, logger: logger}
}

// attack is one scheduled task set with its resolved rate.
type attack struct {
	name     string
	targeter vegeta.Targeter
	freq     int
}

// resolveAttacks splits each plan's RPS across its task sets by normalized
// weight. Zero-weight task sets are dropped; nonzero weights always get at
// least 1 req/s so a configured operation is never silently absent.
func (d *Driver) resolveAttacks() []attack {
	var attacks []attack
	for _, plan := range d.plans {
		var sum float64
		for _, ts := range plan.TaskSets {
			if ts.Weight > 0 {
				sum += ts.Weight
			}
		}
		if sum <= 0 {
			continue
		}
		for _, ts := range plan.TaskSets {
			if ts.Weight <= 0 {
				continue
			}
			freq := int(math.Round(float64(plan.RPS) * ts.Weight / sum))
			if freq < 1 {
				freq = 1
			}
			attacks = append(attacks, attack{name: ts.Name, targeter: ts.Targeter, freq: freq})
		}
	}
	return attacks
}

// Run executes the load phase and blocks until the duration elapses or ctx
// is cancelled. Partial results are still aggregated on cancellation so an
// interrupted run reports whatever it measured.
func (d *Driver) Run(ctx context.Context) (*vegeta.Metrics, error) {
	attacks := d.resolveAttacks()
	if len(attacks) == 0 {
		return nil, fmt.Errorf("no task sets with positive weight")
	}

	attackers := make([]*vegeta.Attacker, 0, len(attacks))
	results := make(chan *vegeta.Result, 4096)

	var wg sync.WaitGroup
	for _, a := range attacks {
		attacker := vegeta.NewAttacker(
			vegeta.Timeout(d.opts.Timeout),
			vegeta.Workers(d.opts.Workers),
		)
		attackers = append(attackers, attacker)

		d.logger.Info("starting attack",
			zap.String("operation", a.name),
			zap.Int("rps", a.freq),
			zap.Duration("duration", d.opts.Duration))

		ch := attacker.Attack(a.targeter,
			vegeta.Rate{Freq: a.freq, Per: time.Second},
			d.opts.Duration, a.name)

		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := range ch {
				results <- r
			}
		}()
	}

	// Cancellation stops every attacker; their result channels then drain
	// and close normally.
	stopOnce := sync.Once{}
	stop := func() {
		stopOnce.Do(func() {
			for _, a := range attackers {
				a.Stop()
			}
		})
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			d.logger.Warn("load phase cancelled, stopping attackers")
			stop()
		case <-done:
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var vm vegeta.Metrics
	for r := range results {
		vm.Add(r)
		success := r.Error == "" && r.Code >= 200 && r.Code < 400
		latencyMS := float64(r.Latency) / float64(time.Millisecond)
		d.collector.RecordTime(r.Attack, latencyMS, success)
	}
	close(done)
	vm.Close()

	d.logger.Info("load phase complete",
		zap.Uint64("requests", vm.Requests),
		zap.Float64("success_ratio", vm.Success),
		zap.Duration("p99", vm.Latencies.P99))

	if err := ctx.Err(); err != nil && err != context.Canceled {
		return &vm, err
	}
	return &vm, nil
}
