package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/evfleetops/alloc-core/internal/domain"
)

// Subjects a run's results are published to.
const (
	SubjectAllocationResult = "alloc.allocation_result"
	SubjectChargePlan       = "alloc.charge_plan"
	SubjectUnifiedResult    = "alloc.unified_result"
)

// ResultPublisher implements ports.ResultPublisher over a
// MessageQueue. Publish failures are returned to the caller, who logs
// them rather than failing the run.
type ResultPublisher struct {
	mq MessageQueue
}

func NewResultPublisher(mq MessageQueue) *ResultPublisher {
	return &ResultPublisher{mq: mq}
}

func (p *ResultPublisher) PublishAllocationResult(ctx context.Context, result domain.AllocationResult) error {
	return p.publish(SubjectAllocationResult, result)
}

func (p *ResultPublisher) PublishChargePlan(ctx context.Context, plan domain.ChargePlan) error {
	return p.publish(SubjectChargePlan, plan)
}

func (p *ResultPublisher) PublishUnifiedResult(ctx context.Context, result domain.UnifiedResult) error {
	return p.publish(SubjectUnifiedResult, result)
}

func (p *ResultPublisher) publish(subject string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", subject, err)
	}
	return p.mq.Publish(subject, data)
}
