// Package e2e drives the production pipeline wiring end to end against
// a real Neo4j: a pushed alert is collected, masked, clustered,
// investigated, decided on, given a drafted playbook, and parked in
// review. Only the LLM client is replaced, with a scripted generator;
// everything else is the same code the controller runs in production.
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/strands/pkg/audit"
	"github.com/codeready-toolchain/strands/pkg/controller"
	"github.com/codeready-toolchain/strands/pkg/decision"
	"github.com/codeready-toolchain/strands/pkg/graph"
	"github.com/codeready-toolchain/strands/pkg/ingest"
	"github.com/codeready-toolchain/strands/pkg/masking"
	"github.com/codeready-toolchain/strands/pkg/playbook"
	"github.com/codeready-toolchain/strands/pkg/recommend"
	"github.com/codeready-toolchain/strands/pkg/review"
	"github.com/codeready-toolchain/strands/pkg/swarm"
	"github.com/codeready-toolchain/strands/test/graphdb"
)

const systemIdentity = "strands-controller"

// draftResponse is what the scripted generator answers for every draft
// request. The shape matches the JSON structure the drafter asks the
// model for.
const draftResponse = `{
  "title": "Restart the degraded deployment",
  "description": "Roll the pods behind the failing service and verify recovery",
  "steps": [
    {
      "step": 1,
      "title": "Restart the deployment",
      "description": "Trigger a rolling restart of the affected workload",
      "commands": ["kubectl rollout restart deployment/checkout"],
      "expected_output": "deployment.apps/checkout restarted",
      "rollback_command": "kubectl rollout undo deployment/checkout"
    },
    {
      "step": 2,
      "title": "Watch the rollout",
      "commands": ["kubectl rollout status deployment/checkout"],
      "expected_output": "successfully rolled out"
    }
  ],
  "estimated_time_minutes": 10,
  "automation_level": "assisted",
  "risk_level": "low",
  "prerequisites": ["kubectl access to the production cluster"],
  "success_criteria": ["error rate back to baseline for 10 minutes"],
  "rollback_procedure": "Undo the rollout and page the service owner"
}`

// scriptedGenerator stands in for the LLM client. Tick runs the pipeline
// on one goroutine, so the call counter needs no locking.
type scriptedGenerator struct {
	response string
	err      error
	calls    int
}

func (g *scriptedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return g.response, nil
}

// pipeline bundles the wired components a test interacts with.
type pipeline struct {
	graph     *graph.Store
	webhook   *ingest.WebhookProvider
	ctrl      *controller.Controller
	playbooks *playbook.Store
	reviews   *review.Service
	generator *scriptedGenerator
	audit     *bytes.Buffer
}

// startPipeline wires the full production stack over an empty database.
// The controller is never started; tests drive it one Tick at a time.
func startPipeline(t *testing.T) *pipeline {
	t.Helper()

	store := graphdb.Connect(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	masker, err := masking.New(masking.DefaultConfig(), logger)
	require.NoError(t, err)

	webhook, err := ingest.NewWebhookProvider(ingest.WebhookProviderConfig{
		Enabled:   true,
		Priority:  10,
		QueueSize: 64,
	}, logger)
	require.NoError(t, err)
	registry, err := ingest.NewRegistry(webhook)
	require.NoError(t, err)
	collector := ingest.NewCollector(registry,
		ingest.NewNormalizer(ingest.DefaultNormalizerConfig(), masker, logger), logger)

	decider, err := decision.NewEngine(decision.Config{}, logger)
	require.NoError(t, err)
	t.Cleanup(decider.Close)

	playbooks := playbook.NewStore(store, logger)
	generator := &scriptedGenerator{response: draftResponse}
	recommender := recommend.NewRecommender(playbooks,
		recommend.NewGenerator(generator, logger), logger)
	reviews := review.NewService(store, playbooks, systemIdentity, logger)

	auditBuf := &bytes.Buffer{}
	ctrl, err := controller.New(controller.Config{
		TickInterval:   time.Minute,
		SystemIdentity: systemIdentity,
	}, controller.Deps{
		Collector:   collector,
		Swarm:       swarm.NewOrchestrator(swarm.DefaultConfig(), logger, swarm.NewGraphContext(store, logger)),
		Decider:     decider,
		Recommender: recommender,
		Reviews:     reviews,
		Graph:       store,
		Trail:       audit.New(auditBuf, logger),
	}, logger)
	require.NoError(t, err)

	return &pipeline{
		graph:     store,
		webhook:   webhook,
		ctrl:      ctrl,
		playbooks: playbooks,
		reviews:   reviews,
		generator: generator,
		audit:     auditBuf,
	}
}

// criticalAlert builds a pushed alert the way the HTTP handler hands it
// to the webhook provider.
func criticalAlert(fingerprint, service, description string) ingest.RawAlert {
	return ingest.RawAlert{
		Fingerprint: fingerprint,
		Severity:    "critical",
		Description: description,
		Labels:      map[string]string{"service": service, "alertname": "ServiceDegraded"},
		Status:      "firing",
		StartsAt:    time.Now().UTC(),
	}
}

// decisionID returns the id of the single persisted decision.
func (p *pipeline) decisionID(t *testing.T) string {
	t.Helper()
	rows, err := p.graph.Query(context.Background(),
		"MATCH (d:Decision) RETURN d.id AS id", nil)
	require.NoError(t, err)
	require.Len(t, rows, 1, "expected exactly one persisted decision")
	id, ok := rows[0]["id"].(string)
	require.True(t, ok, "decision id is not a string: %v", rows[0]["id"])
	require.NotEmpty(t, id)
	return id
}

// auditEvents returns the event_type of every recorded audit line, in
// order.
func (p *pipeline) auditEvents(t *testing.T) []string {
	t.Helper()
	var events []string
	for _, line := range strings.Split(strings.TrimSpace(p.audit.String()), "\n") {
		if line == "" {
			continue
		}
		var e struct {
			EventType string `json:"event_type"`
		}
		require.NoError(t, json.Unmarshal([]byte(line), &e), "audit line is not JSON: %s", line)
		events = append(events, e.EventType)
	}
	return events
}
