// Package detector turns workflow records into operation-pattern
// signatures and auxiliary characteristics.
//
// Detection unions three sources: the signature generator over the
// description, a scan of the failure message (a generic description can
// still fail with "pytest failed"), and a coarse template-name fallback
// for records with no free text at all.
package detector

import (
	"strings"

	"go.uber.org/zap"

	"patrol/internal/signature"
	"patrol/internal/workflow"
)

// Detector extracts signatures and characteristics from workflow records.
type Detector struct {
	gen *signature.Generator
	log *zap.Logger
}

// NewDetector creates a detector around the given signature generator.
func NewDetector(gen *signature.Generator, log *zap.Logger) *Detector {
	if log == nil {
		log = zap.NewNop()
	}
	return &Detector{gen: gen, log: log}
}

// templateFallbacks maps template-name fragments to coarse signatures.
// This is the only path that produces the sdlc, patch, deploy, and
// review categories; nothing in free text is specific enough for them.
var templateFallbacks = []struct {
	fragment string
	sig      string
}{
	{"test", "test:generic:all"},
	{"build", "build:generic:all"},
	{"ci", "build:generic:all"},
	{"format", "format:generic:all"},
	{"lint", "format:generic:all"},
	{"deploy", "deploy:generic:all"},
	{"release", "deploy:generic:all"},
	{"review", "review:generic:all"},
	{"patch", "patch:generic:all"},
	{"hotfix", "patch:generic:all"},
	{"sdlc", "sdlc:generic:all"},
	{"docs", "docs:generic:all"},
	{"deps", "deps:generic:all"},
	{"upgrade", "deps:generic:all"},
	{"sync", "git:generic:all"},
}

// Detect returns the deduplicated set of signatures observed in the
// record, in stable first-seen order.
func (d *Detector) Detect(rec workflow.Record) []string {
	rec = rec.Normalized()

	var sigs []string
	seen := make(map[string]bool)
	add := func(sig string) {
		if sig != "" && !seen[sig] && signature.Validate(sig) {
			seen[sig] = true
			sigs = append(sigs, sig)
		}
	}

	// Source A: the description itself.
	if sig, ok := d.gen.Generate(rec.Description, rec.TemplateHint); ok {
		add(sig)
	}

	// Source B: the failure message. A failure message naming a test
	// framework means a test operation was attempted even if the
	// description was generic.
	if rec.FailureMessage != "" {
		if sig, ok := d.gen.Generate(rec.FailureMessage, rec.TemplateHint); ok {
			add(sig)
		}
	}

	// Source C: template-name fallback, only when there is no free-text
	// signal at all.
	if rec.Description == "" && rec.FailureMessage == "" && rec.TemplateHint != "" {
		hint := strings.ToLower(rec.TemplateHint)
		for _, fb := range templateFallbacks {
			if strings.Contains(hint, fb.fragment) {
				add(fb.sig)
				break
			}
		}
	}

	d.log.Debug("detection complete",
		zap.String("workflow_id", rec.WorkflowID),
		zap.Int("signatures", len(sigs)))
	return sigs
}
