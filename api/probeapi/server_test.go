package probeapi

import (
	"context"
	"time"

	"github.com/wayfind/Cortex/domain/report"
	"github.com/wayfind/Cortex/platform/config"
	"github.com/wayfind/Cortex/platform/logging"
	"github.com/wayfind/Cortex/probe/scheduler"
)

func testLogger() *logging.Logger {
	return logging.New(logging.Config{Level: "error"})
}

func newTestServer(run scheduler.RunFunc) *Server {
	if run == nil {
		run = func(ctx context.Context, now time.Time) (report.Report, error) {
			return report.Report{ID: "r1", AgentID: "agent-1", Timestamp: now}, nil
		}
	}
	return &Server{
		Scheduler: scheduler.New("@every 1h", time.Second, 10, run),
		Config:    config.Default(),
		AgentID:   "agent-1",
		Log:       testLogger(),
	}
}
