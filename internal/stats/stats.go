// Package stats is the read side of the audit trail: advisory summaries
// computed from the event stream. It never mutates and treats partial
// data leniently; a missing metadata field zero-fills rather than errors.
package stats

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Louguiman/tekra-store-sub002/internal/audit"
	dErrors "github.com/Louguiman/tekra-store-sub002/pkg/domain-errors"
)

// EventSource is the slice of the event store the aggregator reads.
type EventSource interface {
	ListRange(ctx context.Context, start, end *time.Time) ([]audit.Event, error)
}

// Statistics summarizes the event stream over an optional date range.
type Statistics struct {
	TotalEvents  int            `json:"totalEvents"`
	FailedEvents int            `json:"failedEvents"`
	SuccessRate  float64        `json:"successRate"`
	ByAction     map[string]int `json:"byAction"`
	ByResource   map[string]int `json:"byResource"`
	BySeverity   map[string]int `json:"bySeverity"`

	Validation ValidationMetrics `json:"validation"`
	AI         AIMetrics         `json:"ai"`
}

// ValidationMetrics summarizes human validation activity.
type ValidationMetrics struct {
	TotalValidations         int     `json:"totalValidations"`
	ApprovedProducts         int     `json:"approvedProducts"`
	RejectedProducts         int     `json:"rejectedProducts"`
	ApprovalRate             float64 `json:"approvalRate"`
	RejectionRate            float64 `json:"rejectionRate"`
	UniqueValidators         int     `json:"uniqueValidators"`
	AvgProductsPerValidation float64 `json:"avgProductsPerValidation"`
}

// AIMetrics summarizes AI extraction runs.
type AIMetrics struct {
	Runs                   int     `json:"runs"`
	Successful             int     `json:"successful"`
	Failed                 int     `json:"failed"`
	TotalExtractedProducts int     `json:"totalExtractedProducts"`
	AvgExtractedProducts   float64 `json:"avgExtractedProducts"`
	AvgProcessingTimeMs    float64 `json:"avgProcessingTimeMs"`
	AvgConfidence          float64 `json:"avgConfidence"`
}

// Aggregator computes statistics from the event store. It holds no state
// of its own: every call derives its answer from a fresh read.
type Aggregator struct {
	events EventSource
}

// New constructs an Aggregator over the given event source.
func New(events EventSource) (*Aggregator, error) {
	if events == nil {
		return nil, errors.New("event source is required")
	}
	return &Aggregator{events: events}, nil
}

var approveActions = map[audit.Action]bool{
	audit.ActionApprove:     true,
	audit.ActionBulkApprove: true,
}

var rejectActions = map[audit.Action]bool{
	audit.ActionReject:     true,
	audit.ActionBulkReject: true,
}

// Statistics computes the full summary in one pass over the range.
func (a *Aggregator) Statistics(ctx context.Context, start, end *time.Time) (Statistics, error) {
	events, err := a.events.ListRange(ctx, start, end)
	if err != nil {
		return Statistics{}, dErrors.Wrap(err, dErrors.CodeInternal, "list events for statistics")
	}

	stats := Statistics{
		ByAction:   make(map[string]int),
		ByResource: make(map[string]int),
		BySeverity: make(map[string]int),
	}
	validators := make(map[string]struct{})
	var (
		confidenceSum   float64
		confidenceCount int
		timeSum         float64
		timeCount       int
	)

	for _, e := range events {
		stats.TotalEvents++
		if !e.Success {
			stats.FailedEvents++
		}
		stats.ByAction[string(e.Action)]++
		stats.ByResource[string(e.Resource)]++
		stats.BySeverity[string(e.Severity)]++

		isApprove := approveActions[e.Action]
		isReject := rejectActions[e.Action]
		if isApprove || isReject {
			stats.Validation.TotalValidations++
			if e.ActorID != "" {
				validators[e.ActorID] = struct{}{}
			}
			// productCount defaults to 1: a plain approve/reject without
			// metadata still validated one product.
			count := metaInt(e.Metadata, "productCount", 1)
			if isApprove {
				stats.Validation.ApprovedProducts += count
			} else {
				stats.Validation.RejectedProducts += count
			}
		}

		if e.Action == audit.ActionAIProcessing {
			stats.AI.Runs++
			if e.Success {
				stats.AI.Successful++
			} else {
				stats.AI.Failed++
			}
			stats.AI.TotalExtractedProducts += metaInt(e.Metadata, "extractedProducts", 0)
			if ms, ok := metaFloat(e.Metadata, "processingTimeMs"); ok {
				timeSum += ms
				timeCount++
			}
			if conf, ok := metaFloat(e.Metadata, "avgConfidence"); ok {
				confidenceSum += conf
				confidenceCount++
			}
		}
	}

	// Success rate is 100 when there is nothing to fail; every other
	// ratio is 0 on an empty denominator.
	stats.SuccessRate = 100
	if stats.TotalEvents > 0 {
		stats.SuccessRate = float64(stats.TotalEvents-stats.FailedEvents) / float64(stats.TotalEvents) * 100
	}

	v := &stats.Validation
	v.UniqueValidators = len(validators)
	if decided := v.ApprovedProducts + v.RejectedProducts; decided > 0 {
		v.ApprovalRate = float64(v.ApprovedProducts) / float64(decided) * 100
		v.RejectionRate = float64(v.RejectedProducts) / float64(decided) * 100
	}
	if v.TotalValidations > 0 {
		v.AvgProductsPerValidation = float64(v.ApprovedProducts+v.RejectedProducts) / float64(v.TotalValidations)
	}

	ai := &stats.AI
	if ai.Runs > 0 {
		ai.AvgExtractedProducts = float64(ai.TotalExtractedProducts) / float64(ai.Runs)
	}
	if timeCount > 0 {
		ai.AvgProcessingTimeMs = timeSum / float64(timeCount)
	}
	if confidenceCount > 0 {
		ai.AvgConfidence = confidenceSum / float64(confidenceCount)
	}

	return stats, nil
}

// metaFloat reads a numeric metadata value. JSONB roundtrips turn numbers
// into float64; in-process writes keep their Go type, so both are handled.
func metaFloat(metadata map[string]any, key string) (float64, bool) {
	raw, ok := metadata[key]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func metaInt(metadata map[string]any, key string, fallback int) int {
	if f, ok := metaFloat(metadata, key); ok {
		return int(f)
	}
	return fallback
}
