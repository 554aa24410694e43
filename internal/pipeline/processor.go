// Package pipeline wires detection to the store: workflow record in,
// signatures detected, occurrences recorded, statistics refreshed.
package pipeline

import (
	"fmt"

	"go.uber.org/zap"

	"patrol/internal/detector"
	"patrol/internal/store"
	"patrol/internal/workflow"
)

// ItemResult reports the outcome of processing one workflow record.
type ItemResult struct {
	WorkflowID  string
	Signatures  []string
	NewPatterns int
	Err         error
}

// BatchResult summarizes a batch run.
type BatchResult struct {
	Processed int
	Failed    int
	Items     []ItemResult
}

// Processor runs the detection flow.
type Processor struct {
	store    *store.Store
	detector *detector.Detector
	log      *zap.Logger
}

// NewProcessor creates a processor.
func NewProcessor(st *store.Store, det *detector.Detector, log *zap.Logger) *Processor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Processor{store: st, detector: det, log: log}
}

// ProcessWorkflow validates the record, detects its signatures, and for
// each one records the occurrence and refreshes pattern statistics.
// Re-processing the same workflow is a no-op at the store layer.
func (p *Processor) ProcessWorkflow(rec workflow.Record) (ItemResult, error) {
	rec = rec.Normalized()
	result := ItemResult{WorkflowID: rec.WorkflowID}

	if err := rec.Validate(); err != nil {
		result.Err = err
		return result, err
	}

	sigs := p.detector.Detect(rec)
	chars := p.detector.ExtractCharacteristics(rec).Encode()

	for _, sig := range sigs {
		_, isNew, recorded, err := p.store.RecordOccurrence(sig, rec, chars)
		if err != nil {
			result.Err = err
			return result, fmt.Errorf("record occurrence for %s: %w", sig, err)
		}
		if isNew {
			result.NewPatterns++
		}
		result.Signatures = append(result.Signatures, sig)

		// A replayed occurrence leaves the statistics alone: folding the
		// same record into the running averages twice would drift them
		// away from the mean over the pattern's occurrences.
		if !recorded {
			p.log.Debug("occurrence already recorded, statistics unchanged",
				zap.String("workflow_id", rec.WorkflowID),
				zap.String("signature", sig))
			continue
		}

		pattern, err := p.store.GetPatternBySignature(sig)
		if err != nil {
			result.Err = err
			return result, err
		}
		if err := p.store.UpdateStatistics(pattern.ID, rec); err != nil {
			result.Err = err
			return result, fmt.Errorf("update statistics for %s: %w", sig, err)
		}
	}

	p.log.Debug("workflow processed",
		zap.String("workflow_id", rec.WorkflowID),
		zap.Strings("signatures", result.Signatures),
		zap.Int("new_patterns", result.NewPatterns))
	return result, nil
}

// ProcessBatch runs the detection flow over a batch sequentially with
// per-item error isolation: one malformed record is logged and skipped,
// never aborting the rest of the batch.
func (p *Processor) ProcessBatch(recs []workflow.Record) BatchResult {
	batch := BatchResult{Items: make([]ItemResult, 0, len(recs))}

	for i, rec := range recs {
		item, err := p.ProcessWorkflow(rec)
		if err != nil {
			batch.Failed++
			p.log.Warn("workflow skipped",
				zap.Int("index", i),
				zap.String("workflow_id", rec.WorkflowID),
				zap.Error(err))
		} else {
			batch.Processed++
		}
		batch.Items = append(batch.Items, item)
	}

	p.log.Info("batch complete",
		zap.Int("processed", batch.Processed),
		zap.Int("failed", batch.Failed))
	return batch
}
