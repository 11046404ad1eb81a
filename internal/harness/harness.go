// Package harness coordinates a load-test run: identity, environment seeding,
// health gating, teardown, and the run metadata record.
package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/FairForge/fraudgov-loadtest/internal/artifact"
	"github.com/FairForge/fraudgov-loadtest/internal/generators"
)

// Options configures a run coordinator.
type Options struct {
	RunID          string // empty generates one
	Bucket         string
	EnableSeed     bool
	EnableTeardown bool
	// StrictSeed turns a failed ruleset publish into a seed failure instead
	// of log-and-continue.
	StrictSeed bool
}

// Harness owns one run from seed to teardown.
type Harness struct {
	runID     string
	opts      Options
	publisher *artifact.Publisher
	logger    *zap.Logger

	mu        sync.Mutex
	startedAt *time.Time
	endedAt   *time.Time
	seeded    []string
	tornDown  bool
}

// NewRunID generates a run identifier of the form lt-<12 hex>.
func NewRunID() string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "lt-" + raw[:12]
}

// New creates a harness. A nil store disables all object storage work.
func New(opts Options, store artifact.ObjectStore, logger *zap.Logger) *Harness {
	if opts.RunID == "" {
		opts.RunID = NewRunID()
	}

	h := &Harness{
		runID:  opts.RunID,
		opts:   opts,
		logger: logger.With(zap.String("run_id", opts.RunID)),
	}
	if store != nil {
		h.publisher = artifact.NewPublisher(store, opts.Bucket, opts.RunID, h.logger)
	}
	return h
}

// RunID returns this run's identifier.
func (h *Harness) RunID() string { return h.runID }

// Publisher exposes the run-scoped artifact publisher, nil when storage is
// disabled.
func (h *Harness) Publisher() *artifact.Publisher { return h.publisher }

// MarkStarted records the load-phase start time.
func (h *Harness) MarkStarted() {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := time.Now().UTC()
	h.startedAt = &now
}

// MarkEnded records the load-phase end time.
func (h *Harness) MarkEnded() {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := time.Now().UTC()
	h.endedAt = &now
}

// Seed publishes the given rulesets under the run prefix. Disabled seeding is
// a successful no-op. Individual publish failures are logged and skipped
// unless StrictSeed is set.
func (h *Harness) Seed(ctx context.Context, rulesets []generators.Ruleset) error {
	if !h.opts.EnableSeed {
		h.logger.Info("seeding disabled, skipping")
		return nil
	}
	if h.publisher == nil {
		return fmt.Errorf("seed: no object store configured")
	}

	published := 0
	for _, rs := range rulesets {
		art, err := h.publisher.Publish(ctx, rs)
		if err != nil {
			if h.opts.StrictSeed {
				return fmt.Errorf("seed ruleset %s/%s: %w", rs.Country, rs.RulesetKey, err)
			}
			h.logger.Warn("seed ruleset failed, continuing",
				zap.String("ruleset_key", rs.RulesetKey),
				zap.String("country", rs.Country),
				zap.Error(err))
			continue
		}
		published++

		h.mu.Lock()
		h.seeded = append(h.seeded, art.ObjectKey)
		h.mu.Unlock()
	}

	// Re-list to confirm the artifacts are actually visible before any
	// service is pointed at them.
	keys, err := h.publisher.ListRunArtifacts(ctx)
	if err != nil {
		return fmt.Errorf("seed verification: %w", err)
	}
	h.logger.Info("seed complete",
		zap.Int("rulesets_published", published),
		zap.Int("artifacts_visible", len(keys)))
	return nil
}

// SeededKeys returns the object keys published by Seed.
func (h *Harness) SeededKeys() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.seeded))
	copy(out, h.seeded)
	return out
}

// Teardown removes everything the run published and records the end time.
// Safe to call more than once; force runs cleanup even when teardown is
// disabled in config.
func (h *Harness) Teardown(ctx context.Context, force bool) (int, error) {
	if !h.opts.EnableTeardown && !force {
		h.logger.Info("teardown disabled, skipping")
		return 0, nil
	}

	h.mu.Lock()
	if h.endedAt == nil {
		now := time.Now().UTC()
		h.endedAt = &now
	}
	h.tornDown = true
	h.mu.Unlock()

	if h.publisher == nil {
		return 0, nil
	}

	deleted, err := h.publisher.CleanupRun(ctx)
	if err != nil {
		return deleted, fmt.Errorf("teardown: %w", err)
	}
	return deleted, nil
}

// RunMetadataSnapshot returns the current run record without writing it.
func (h *Harness) RunMetadataSnapshot() RunMetadata {
	h.mu.Lock()
	defer h.mu.Unlock()
	return RunMetadata{
		RunID:           h.runID,
		Bucket:          h.opts.Bucket,
		SeedEnabled:     h.opts.EnableSeed,
		TeardownEnabled: h.opts.EnableTeardown,
		StartedAt:       h.startedAt,
		EndedAt:         h.endedAt,
		Seeded:          append([]string(nil), h.seeded...),
		TornDown:        h.tornDown,
	}
}

// RunMetadata is the persisted record of one run.
type RunMetadata struct {
	RunID           string                 `json:"run_id"`
	Bucket          string                 `json:"bucket"`
	SeedEnabled     bool                   `json:"seed_enabled"`
	TeardownEnabled bool                   `json:"teardown_enabled"`
	StartedAt       *time.Time             `json:"started_at"`
	EndedAt         *time.Time             `json:"ended_at"`
	Seeded          []string               `json:"seeded_artifacts"`
	TornDown        bool                   `json:"torn_down"`
	Extra           map[string]interface{} `json:"extra,omitempty"`
}

// WriteRunMetadata writes run-metadata-<run_id>.json into dir, overwriting
// any previous version. Start and end times are null if never recorded.
func (h *Harness) WriteRunMetadata(dir string, extra map[string]interface{}) (string, error) {
	meta := h.RunMetadataSnapshot()
	meta.Extra = extra

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create metadata dir: %w", err)
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal run metadata: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("run-metadata-%s.json", h.runID))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write run metadata: %w", err)
	}
	return path, nil
}
