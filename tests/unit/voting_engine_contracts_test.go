package unit

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	votingengine "ballotbox/contexts/election-core/voting-engine"
)

func TestVotingEngineOpenAPIContractIncludesImplementedRoutes(t *testing.T) {
	root, err := findRepoRoot()
	if err != nil {
		t.Fatalf("resolve repo root: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root, "contracts", "api", "v1", "voting-engine.openapi.json"))
	if err != nil {
		t.Fatalf("read voting-engine openapi: %v", err)
	}

	var doc struct {
		Paths map[string]map[string]any `json:"paths"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode voting-engine openapi: %v", err)
	}

	expected := map[string][]string{
		"/v1/elections/{election_id}/ballot":  {"get"},
		"/v1/elections/{election_id}/votes":   {"post"},
		"/v1/elections/{election_id}/results": {"get"},
		"/v1/elections/{election_id}/turnout": {"get"},
		"/v1/roster/voters/{voter_id}":        {"get"},
	}

	for path, methods := range expected {
		ops, ok := doc.Paths[path]
		if !ok {
			t.Fatalf("missing path in openapi contract: %s", path)
		}
		for _, method := range methods {
			if _, ok := ops[method]; !ok {
				t.Fatalf("missing method %s for path %s in openapi contract", method, path)
			}
		}
	}
}

func TestVotingEngineEventSchemaCoversVoteCast(t *testing.T) {
	root, err := findRepoRoot()
	if err != nil {
		t.Fatalf("resolve repo root: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(root, "contracts", "events", "v1", "vote.cast.schema.json"))
	if err != nil {
		t.Fatalf("read vote.cast schema: %v", err)
	}

	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil {
		t.Fatalf("decode vote.cast schema: %v", err)
	}

	if title, _ := schema["title"].(string); title != "vote.cast" {
		t.Fatalf("schema has wrong title: %q", title)
	}

	requiredEnvelopeFields := []string{
		"event_id",
		"event_type",
		"occurred_at",
		"source_service",
		"trace_id",
		"schema_version",
		"partition_key_path",
		"partition_key",
		"data",
	}
	required, _ := schema["required"].([]any)
	for _, key := range requiredEnvelopeFields {
		if !containsAnyString(required, key) {
			t.Fatalf("schema missing required envelope key %s", key)
		}
	}

	properties, _ := schema["properties"].(map[string]any)
	partitionPathProp, _ := properties["partition_key_path"].(map[string]any)
	if partitionConst, _ := partitionPathProp["const"].(string); partitionConst != "election_id" {
		t.Fatalf("schema has wrong partition_key_path const: %q", partitionConst)
	}

	dataProp, _ := properties["data"].(map[string]any)
	dataProperties, _ := dataProp["properties"].(map[string]any)
	if _, exists := dataProperties["voter_id"]; exists {
		t.Fatalf("vote.cast data schema must not expose voter_id")
	}
}

func TestVotingEngineEmittedEnvelopeContractConsistency(t *testing.T) {
	module := votingengine.NewInMemoryModule([]byte("unit-secret"), nil)
	seedCouncilElection(module, time.Now().UTC())
	ctx := context.Background()

	castSingleChoice(t, module, "election-1", "voter-1", "pos-president", "cand-1")

	pendingOutbox, err := module.Store.ListPendingOutbox(ctx, 100)
	if err != nil {
		t.Fatalf("list pending outbox failed: %v", err)
	}
	if len(pendingOutbox) != 1 {
		t.Fatalf("expected one pending outbox row, got %d", len(pendingOutbox))
	}

	var envelope map[string]any
	if err := json.Unmarshal(pendingOutbox[0].Payload, &envelope); err != nil {
		t.Fatalf("decode outbox envelope failed: %v", err)
	}

	if eventType, _ := envelope["event_type"].(string); eventType != "vote.cast" {
		t.Fatalf("unexpected event type %q", eventType)
	}
	if sourceService, _ := envelope["source_service"].(string); sourceService != "voting-engine" {
		t.Fatalf("event has invalid source_service %q", sourceService)
	}
	if traceID, _ := envelope["trace_id"].(string); strings.TrimSpace(traceID) == "" {
		t.Fatalf("event missing trace_id")
	}
	if partitionPath, _ := envelope["partition_key_path"].(string); partitionPath != "election_id" {
		t.Fatalf("event has invalid partition_key_path %q", partitionPath)
	}

	partitionKey, _ := envelope["partition_key"].(string)
	data, _ := envelope["data"].(map[string]any)
	dataElectionID, _ := data["election_id"].(string)
	if dataElectionID != partitionKey {
		t.Fatalf("partition mismatch: data.election_id=%q partition_key=%q", dataElectionID, partitionKey)
	}
	if _, exposed := data["voter_id"]; exposed {
		t.Fatalf("vote.cast event must not carry voter_id")
	}
}
