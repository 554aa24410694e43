package detector

import (
	"encoding/json"
	"regexp"
	"strings"

	"patrol/internal/workflow"
)

// Characteristic bucket values.
const (
	DurationShort  = "short"  // < 180s
	DurationMedium = "medium" // < 600s
	DurationLong   = "long"   // >= 600s

	ComplexitySimple  = "simple"
	ComplexityMedium  = "medium"
	ComplexityComplex = "complex"
)

// Characteristics are the auxiliary features extracted from a workflow,
// independent of signature detection. Extraction always succeeds:
// missing text is treated as empty, missing numerics as zero.
type Characteristics struct {
	Keywords         []string `json:"keywords,omitempty"`
	Paths            []string `json:"paths,omitempty"`
	DurationBucket   string   `json:"duration_bucket"`
	ComplexityBucket string   `json:"complexity_bucket"`
}

// operationVocabulary is the fixed keyword vocabulary scanned out of
// descriptions. Order determines output order.
var operationVocabulary = []string{
	"test", "build", "format", "lint", "commit", "merge", "deploy",
	"install", "upgrade", "refactor", "fix", "review", "document",
	"backend", "frontend", "api", "database", "docker", "ci",
}

// Path-like substrings: rooted project prefixes or known extensions.
var pathPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:^|[\s"'` + "`" + `(])((?:src|internal|cmd|pkg|tests?|lib|app|scripts?)/[\w./-]+)`),
	regexp.MustCompile(`(?:^|[\s"'` + "`" + `(])([\w][\w./-]*\.(?:py|go|js|jsx|ts|tsx|json|ya?ml|toml|md|txt|sql|sh))\b`),
}

// ExtractCharacteristics tokenizes the description for the fixed
// vocabulary, pulls out path-like substrings, and buckets duration and
// complexity.
func (d *Detector) ExtractCharacteristics(rec workflow.Record) Characteristics {
	rec = rec.Normalized()
	text := strings.ToLower(rec.Description)

	var keywords []string
	for _, kw := range operationVocabulary {
		if strings.Contains(text, kw) {
			keywords = append(keywords, kw)
		}
	}

	var paths []string
	seen := make(map[string]bool)
	for _, re := range pathPatterns {
		for _, m := range re.FindAllStringSubmatch(rec.Description, -1) {
			p := m[1]
			if !seen[p] {
				seen[p] = true
				paths = append(paths, p)
			}
		}
	}

	return Characteristics{
		Keywords:         keywords,
		Paths:            paths,
		DurationBucket:   bucketDuration(rec.DurationSeconds),
		ComplexityBucket: bucketComplexity(rec.Description, rec.ErrorCount),
	}
}

// Encode serializes characteristics for the occurrence row.
func (c Characteristics) Encode() string {
	data, err := json.Marshal(c)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func bucketDuration(seconds float64) string {
	switch {
	case seconds < 180:
		return DurationShort
	case seconds < 600:
		return DurationMedium
	default:
		return DurationLong
	}
}

func bucketComplexity(description string, errorCount int) string {
	words := len(strings.Fields(description))
	switch {
	case words > 60 || errorCount > 3:
		return ComplexityComplex
	case words > 20 || errorCount > 0:
		return ComplexityMedium
	default:
		return ComplexitySimple
	}
}
