package monitorapi

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandleIngestReportAutoRegistersAndPersists(t *testing.T) {
	fx := newTestFixture()
	body := `{
		"agent_id": "agent-1",
		"status": "healthy",
		"metrics": {"cpu_percent": 10, "memory_percent": 20, "disk_percent": 30, "load_average": [0.1, 0.2, 0.3], "uptime_seconds": 100}
	}`
	req := httptest.NewRequest("POST", "/api/v1/reports", strings.NewReader(body))
	rec := httptest.NewRecorder()

	fx.server.handleIngestReport(rec, req)
	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if _, err := fx.agents.Get(req.Context(), "agent-1"); err != nil {
		t.Fatalf("expected the unknown agent to be auto-registered, got %v", err)
	}
}

func TestHandleIngestReportDispatchesL2ToLocalEngine(t *testing.T) {
	fx := newTestFixture()
	body := `{
		"agent_id": "agent-1",
		"status": "warning",
		"metrics": {"cpu_percent": 10, "memory_percent": 20, "disk_percent": 30, "load_average": [0.1, 0.2, 0.3], "uptime_seconds": 100},
		"issues": [{"level": "L2", "type": "memory_leak", "description": "steady climb", "severity": "high"}]
	}`
	req := httptest.NewRequest("POST", "/api/v1/reports", strings.NewReader(body))
	rec := httptest.NewRecorder()

	fx.server.handleIngestReport(rec, req)
	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "l2_decisions") {
		t.Errorf("expected l2_decisions in response, got %s", rec.Body.String())
	}
}

func TestHandleIngestReportCreatesAlertForL3Issue(t *testing.T) {
	fx := newTestFixture()
	body := `{
		"agent_id": "agent-1",
		"status": "critical",
		"metrics": {"cpu_percent": 10, "memory_percent": 20, "disk_percent": 30, "load_average": [0.1, 0.2, 0.3], "uptime_seconds": 100},
		"issues": [{"level": "L3", "type": "disk_full", "description": "disk at 99%", "severity": "critical"}]
	}`
	req := httptest.NewRequest("POST", "/api/v1/reports", strings.NewReader(body))
	rec := httptest.NewRecorder()

	fx.server.handleIngestReport(rec, req)
	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"l3_alerts_triggered":1`) {
		t.Errorf("expected exactly one alert triggered, got %s", rec.Body.String())
	}
}
