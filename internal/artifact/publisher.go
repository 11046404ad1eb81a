package artifact

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/FairForge/fraudgov-loadtest/internal/generators"
)

// ManifestSchemaVersion is written into every manifest.
const ManifestSchemaVersion = "1.0"

// Manifest is the sibling document published next to each ruleset, in the
// shape the rule engine's artifact loader consumes.
type Manifest struct {
	SchemaVersion  string `json:"schema_version"`
	Environment    string `json:"environment"`
	Region         string `json:"region"`
	Country        string `json:"country"`
	RulesetKey     string `json:"ruleset_key"`
	RulesetVersion int    `json:"ruleset_version"`
	ArtifactURI    string `json:"artifact_uri"`
	Checksum       string `json:"checksum"`
	PublishedAt    string `json:"published_at"`
}

// PublishedArtifact reports where a ruleset landed.
type PublishedArtifact struct {
	RulesetKey  string
	ObjectKey   string
	ManifestKey string
	Checksum    string
}

// Publisher writes rulesets and manifests under a run-scoped prefix so
// concurrent runs never touch each other's objects.
type Publisher struct {
	store  ObjectStore
	bucket string
	runID  string
	logger *zap.Logger
}

// NewPublisher creates a publisher scoped to one run.
func NewPublisher(store ObjectStore, bucket, runID string, logger *zap.Logger) *Publisher {
	return &Publisher{store: store, bucket: bucket, runID: runID, logger: logger}
}

// Store exposes the underlying object store.
func (p *Publisher) Store() ObjectStore { return p.store }

// runPrefix is the root of everything this run writes.
func (p *Publisher) runPrefix() string {
	return fmt.Sprintf("loadtest/%s/", p.runID)
}

func (p *Publisher) rulesetKey(rs generators.Ruleset) string {
	return fmt.Sprintf("%srulesets/%s/%s/%s/v%d/ruleset.json",
		p.runPrefix(), rs.Environment, rs.Country, rs.RulesetKey, rs.Version)
}

func (p *Publisher) manifestKey(rs generators.Ruleset) string {
	return fmt.Sprintf("%srulesets/%s/%s/%s/v%d/manifest.json",
		p.runPrefix(), rs.Environment, rs.Country, rs.RulesetKey, rs.Version)
}

// Publish validates the ruleset, uploads it, and uploads a manifest whose
// checksum covers the exact serialized bytes.
func (p *Publisher) Publish(ctx context.Context, rs generators.Ruleset) (*PublishedArtifact, error) {
	data, err := json.MarshalIndent(rs, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal ruleset %s: %w", rs.RulesetID, err)
	}

	if err := ValidateRuleset(data); err != nil {
		return nil, fmt.Errorf("validate ruleset %s: %w", rs.RulesetID, err)
	}

	sum := sha256.Sum256(data)
	checksum := "sha256:" + hex.EncodeToString(sum[:])

	objectKey := p.rulesetKey(rs)
	if err := p.store.Upload(ctx, p.bucket, objectKey, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("upload ruleset: %w", err)
	}

	manifest := Manifest{
		SchemaVersion:  ManifestSchemaVersion,
		Environment:    rs.Environment,
		Region:         rs.Region,
		Country:        rs.Country,
		RulesetKey:     rs.RulesetKey,
		RulesetVersion: rs.Version,
		ArtifactURI:    fmt.Sprintf("s3://%s/%s", p.bucket, objectKey),
		Checksum:       checksum,
		PublishedAt:    time.Now().UTC().Format(time.RFC3339),
	}
	manifestData, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}

	manifestKey := p.manifestKey(rs)
	if err := p.store.Upload(ctx, p.bucket, manifestKey, bytes.NewReader(manifestData)); err != nil {
		return nil, fmt.Errorf("upload manifest: %w", err)
	}

	p.logger.Info("published ruleset",
		zap.String("ruleset_key", rs.RulesetKey),
		zap.String("country", rs.Country),
		zap.String("object_key", objectKey),
		zap.String("checksum", checksum))

	return &PublishedArtifact{
		RulesetKey:  rs.RulesetKey,
		ObjectKey:   objectKey,
		ManifestKey: manifestKey,
		Checksum:    checksum,
	}, nil
}

// FetchRuleset reads back a published ruleset and verifies it against the
// manifest checksum.
func (p *Publisher) FetchRuleset(ctx context.Context, objectKey, manifestKey string) (*generators.Ruleset, error) {
	body, err := p.store.Get(ctx, p.bucket, objectKey)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read ruleset %s: %w", objectKey, err)
	}

	mbody, err := p.store.Get(ctx, p.bucket, manifestKey)
	if err != nil {
		return nil, err
	}
	defer mbody.Close()

	var manifest Manifest
	if err := json.NewDecoder(mbody).Decode(&manifest); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", manifestKey, err)
	}

	sum := sha256.Sum256(data)
	got := "sha256:" + hex.EncodeToString(sum[:])
	if got != manifest.Checksum {
		return nil, fmt.Errorf("checksum mismatch for %s: manifest %s, object %s",
			objectKey, manifest.Checksum, got)
	}

	var rs generators.Ruleset
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("decode ruleset %s: %w", objectKey, err)
	}
	return &rs, nil
}

// ListRun lists every object key this run published, manifests included.
func (p *Publisher) ListRun(ctx context.Context) ([]string, error) {
	return p.store.List(ctx, p.bucket, p.runPrefix())
}

// ListRunArtifacts lists the run's published rulesets, one key per artifact.
// Sibling manifests do not appear; a ruleset and its manifest are one
// artifact.
func (p *Publisher) ListRunArtifacts(ctx context.Context) ([]string, error) {
	keys, err := p.ListRun(ctx)
	if err != nil {
		return nil, err
	}
	artifacts := make([]string, 0, len(keys))
	for _, key := range keys {
		if strings.HasSuffix(key, "/ruleset.json") {
			artifacts = append(artifacts, key)
		}
	}
	return artifacts, nil
}

// CleanupRun deletes everything under the run prefix and returns how many
// artifacts were removed. Manifests are deleted along with their rulesets
// but do not count toward the total. Partial failures are logged and skipped
// so a flaky delete never wedges teardown.
func (p *Publisher) CleanupRun(ctx context.Context) (int, error) {
	keys, err := p.ListRun(ctx)
	if err != nil {
		return 0, fmt.Errorf("list run objects: %w", err)
	}

	deleted := 0
	for _, key := range keys {
		if err := p.store.Delete(ctx, p.bucket, key); err != nil {
			p.logger.Warn("cleanup delete failed", zap.String("key", key), zap.Error(err))
			continue
		}
		if strings.HasSuffix(key, "/ruleset.json") {
			deleted++
		}
	}

	p.logger.Info("cleaned up run artifacts",
		zap.String("run_id", p.runID), zap.Int("deleted", deleted))
	return deleted, nil
}
