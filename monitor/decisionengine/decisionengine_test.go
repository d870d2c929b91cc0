package decisionengine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wayfind/Cortex/domain/decision"
	"github.com/wayfind/Cortex/domain/intent"
	"github.com/wayfind/Cortex/domain/report"
	"github.com/wayfind/Cortex/platform/logging"
)

func testLogger() *logging.Logger {
	return logging.New(logging.Config{Level: "error"})
}

type fakeLLM struct {
	response string
	err      error
}

func (f *fakeLLM) Complete(ctx context.Context, prompt string) (string, error) {
	return f.response, f.err
}

type fakeIntentRecorder struct {
	records []intent.Record
}

func (f *fakeIntentRecorder) Record(ctx context.Context, rec intent.Record) error {
	f.records = append(f.records, rec)
	return nil
}

func TestNewDefaultsTimeout(t *testing.T) {
	e := New(&fakeLLM{}, nil, 0, testLogger())
	if e.Timeout != 20*time.Second {
		t.Errorf("expected default timeout of 20s, got %s", e.Timeout)
	}
}

func TestAnalyzeApprovedDecision(t *testing.T) {
	llm := &fakeLLM{response: "DECISION: APPROVE\nREASON: safe to proceed\nANALYSIS: low risk"}
	recorder := &fakeIntentRecorder{}
	e := New(llm, recorder, time.Second, testLogger())

	d := e.Analyze(context.Background(), Issue{AgentID: "agent-1", Type: "disk_full", Severity: report.SeverityHigh}, time.Now())

	if d.Status != decision.StatusApproved {
		t.Errorf("expected approved status, got %s", d.Status)
	}
	if d.Reason != "safe to proceed" {
		t.Errorf("expected parsed reason, got %q", d.Reason)
	}
	if d.LLMAnalysis != llm.response {
		t.Errorf("expected raw LLM response preserved, got %q", d.LLMAnalysis)
	}
	if len(recorder.records) != 1 {
		t.Errorf("expected an intent record for the decision, got %d", len(recorder.records))
	}
}

func TestAnalyzeRejectedDecision(t *testing.T) {
	llm := &fakeLLM{response: "DECISION: REJECT\nREASON: too risky"}
	e := New(llm, nil, time.Second, testLogger())

	d := e.Analyze(context.Background(), Issue{AgentID: "agent-1", Type: "service_restart"}, time.Now())

	if d.Status != decision.StatusRejected {
		t.Errorf("expected rejected status, got %s", d.Status)
	}
	if d.Reason != "too risky" {
		t.Errorf("expected parsed reason, got %q", d.Reason)
	}
}

func TestAnalyzeDegradesOnLLMFailure(t *testing.T) {
	llm := &fakeLLM{err: errors.New("provider unavailable")}
	e := New(llm, nil, time.Second, testLogger())

	d := e.Analyze(context.Background(), Issue{AgentID: "agent-1", Type: "disk_full"}, time.Now())

	if d.Status != decision.StatusRejected {
		t.Errorf("expected llm failure to degrade to rejected, got %s", d.Status)
	}
	if d.Reason == "" {
		t.Errorf("expected a reason describing the llm failure")
	}
}

func TestAnalyzeDegradesOnUnparseableResponse(t *testing.T) {
	llm := &fakeLLM{response: "I am not sure what to do here."}
	e := New(llm, nil, time.Second, testLogger())

	d := e.Analyze(context.Background(), Issue{AgentID: "agent-1", Type: "disk_full"}, time.Now())

	if d.Status != decision.StatusRejected {
		t.Errorf("expected unparseable response to degrade to rejected, got %s", d.Status)
	}
	if d.Reason != "unparseable llm response" {
		t.Errorf("unexpected reason: %q", d.Reason)
	}
}

func TestAnalyzeDefaultsMissingReason(t *testing.T) {
	llm := &fakeLLM{response: "DECISION: APPROVE"}
	e := New(llm, nil, time.Second, testLogger())

	d := e.Analyze(context.Background(), Issue{AgentID: "agent-1", Type: "disk_full"}, time.Now())

	if d.Reason != "no reason provided" {
		t.Errorf("expected default reason text, got %q", d.Reason)
	}
}

func TestBatchAnalyzeProcessesEveryIssueIndependently(t *testing.T) {
	llm := &fakeLLM{response: "DECISION: APPROVE\nREASON: ok"}
	e := New(llm, nil, time.Second, testLogger())

	issues := []Issue{
		{AgentID: "agent-1", Type: "disk_full"},
		{AgentID: "agent-2", Type: "service_restart"},
	}
	decisions := e.BatchAnalyze(context.Background(), issues, time.Now())

	if len(decisions) != 2 {
		t.Fatalf("expected 2 decisions, got %d", len(decisions))
	}
	for _, d := range decisions {
		if d.Status != decision.StatusApproved {
			t.Errorf("expected every decision approved, got %s", d.Status)
		}
	}
}
