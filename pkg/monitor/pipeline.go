// Package monitor wires one job execution through the probe, the result
// store and the alert dispatcher, with an explicit error boundary at each
// stage.
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/ankalabs/pulse/dao"
	"github.com/ankalabs/pulse/dao/model"
	"github.com/ankalabs/pulse/pkg/alert"
	"github.com/ankalabs/pulse/pkg/logutils"
	"github.com/ankalabs/pulse/pkg/metrics"
	"github.com/ankalabs/pulse/pkg/probe"
	"github.com/ankalabs/pulse/pkg/queue"
)

// Pipeline is the worker-side job handler: probe, persist, alert.
type Pipeline struct {
	executor *probe.Executor
	store    *dao.Store
	alerts   *alert.Dispatcher
	region   string
}

func NewPipeline(executor *probe.Executor, store *dao.Store, alerts *alert.Dispatcher, region string) *Pipeline {
	return &Pipeline{
		executor: executor,
		store:    store,
		alerts:   alerts,
		region:   region,
	}
}

// Handle executes one probe job. Error semantics per stage:
//   - a failed probe is a valid outcome, not an error;
//   - a store failure is returned, making the job retryable;
//   - an alert failure is logged and swallowed so it can never block the
//     pipeline or occupy a worker slot with retries.
func (p *Pipeline) Handle(ctx context.Context, payload queue.Payload) error {
	outcome := p.executor.Run(ctx, payload.URL, time.Duration(payload.Timeout)*time.Second, payload.ExpectedStatus)
	metrics.ObserveProbe(outcome.Success, outcome.LatencyMs)

	result := &model.CheckResult{
		CheckID:      payload.CheckID,
		Region:       p.region,
		StatusCode:   outcome.StatusCode,
		LatencyMs:    outcome.LatencyMs,
		Success:      outcome.Success,
		ErrorMessage: outcome.ErrorMessage,
	}
	if err := p.store.RecordResult(ctx, result); err != nil {
		return fmt.Errorf("record result for check %d: %w", payload.CheckID, err)
	}

	logutils.Log.Debugf("monitor: check %d probed from %s: success=%t status=%d latency=%dms",
		payload.CheckID, p.region, outcome.Success, outcome.StatusCode, outcome.LatencyMs)

	if !outcome.Success {
		if err := p.alerts.HandleFailure(ctx, payload.CheckID, result.ID); err != nil {
			logutils.Log.Errorf("monitor: %v", err)
		}
	}
	return nil
}
