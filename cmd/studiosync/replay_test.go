package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"pkt.systems/studiosync/internal/realtime"
	"pkt.systems/studiosync/schema"
)

const replayLog = `# recorded push channel
{"action":"typings","data":{"lib.d.ts":"declare const a: number;"}}
{"action":"environment.status","identifier":"env-1","data":{"status":"running"}}
{"action":"environment.status","identifier":"env-1","data":{"status":"running"}}

{"action":"chat.message","data":{}}
{"action":"environment.status","data":{"status":"running"}}
not json
`

func TestReplayEnvelopesCountsResults(t *testing.T) {
	report, err := replayEnvelopes(context.Background(), strings.NewReader(replayLog))
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if report.Envelopes != 6 {
		t.Fatalf("expected 6 envelopes, got %d", report.Envelopes)
	}
	tests := []struct {
		result realtime.Result
		want   int
	}{
		{result: realtime.ResultApplied, want: 3},
		{result: realtime.ResultUnknown, want: 1},
		{result: realtime.ResultRejected, want: 2},
	}
	for _, tc := range tests {
		if got := report.Results[tc.result]; got != tc.want {
			t.Fatalf("%s: got %d, want %d", tc.result, got, tc.want)
		}
	}
	if got := report.Revisions[schema.StoreEnvironment]; got != 1 {
		t.Fatalf("expected duplicate status to be idempotent, revision %d", got)
	}
	if got := report.Revisions[schema.StoreTypings]; got != 1 {
		t.Fatalf("expected typings revision 1, got %d", got)
	}
	if got := report.Revisions[schema.StoreVersion]; got != 0 {
		t.Fatalf("expected version store untouched, got %d", got)
	}
}

func TestReplayCommandWritesYAML(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetIn(strings.NewReader(replayLog))
	root.SetArgs([]string{"replay", "-"})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("replay command: %v", err)
	}
	var decoded map[string]any
	if err := yaml.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("decode yaml: %v\n%s", err, out.String())
	}
	if decoded["envelopes"] != 6 {
		t.Fatalf("expected envelopes 6, got %v", decoded["envelopes"])
	}
	if !strings.Contains(out.String(), "env-1") {
		t.Fatalf("expected environment in output:\n%s", out.String())
	}
}

func TestReplayCommandMissingFile(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"replay", t.TempDir() + "/missing.jsonl"})
	if err := root.ExecuteContext(context.Background()); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
