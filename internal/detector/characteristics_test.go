package detector

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"patrol/internal/workflow"
)

func TestExtractCharacteristics(t *testing.T) {
	det := newTestDetector()

	got := det.ExtractCharacteristics(workflow.Record{
		WorkflowID:      "wf-1",
		Description:     "Run backend tests in tests/api/test_users.py and fix lint in src/app/main.py",
		DurationSeconds: 250,
		ErrorCount:      1,
	})

	want := Characteristics{
		Keywords:         []string{"test", "lint", "fix", "backend", "api"},
		Paths:            []string{"tests/api/test_users.py", "src/app/main.py"},
		DurationBucket:   DurationMedium,
		ComplexityBucket: ComplexityMedium,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("characteristics mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractCharacteristicsEmptyRecord(t *testing.T) {
	det := newTestDetector()

	// Absent text and numeric fields must extract without raising.
	got := det.ExtractCharacteristics(workflow.Record{WorkflowID: "wf-2"})

	assert.Empty(t, got.Keywords)
	assert.Empty(t, got.Paths)
	assert.Equal(t, DurationShort, got.DurationBucket)
	assert.Equal(t, ComplexitySimple, got.ComplexityBucket)
}

func TestDurationBuckets(t *testing.T) {
	assert.Equal(t, DurationShort, bucketDuration(0))
	assert.Equal(t, DurationShort, bucketDuration(179))
	assert.Equal(t, DurationMedium, bucketDuration(180))
	assert.Equal(t, DurationMedium, bucketDuration(599))
	assert.Equal(t, DurationLong, bucketDuration(600))
	assert.Equal(t, DurationLong, bucketDuration(4000))
}

func TestComplexityBuckets(t *testing.T) {
	short := "run tests"
	long := ""
	for i := 0; i < 70; i++ {
		long += "word "
	}

	assert.Equal(t, ComplexitySimple, bucketComplexity(short, 0))
	assert.Equal(t, ComplexityMedium, bucketComplexity(short, 1))
	assert.Equal(t, ComplexityComplex, bucketComplexity(short, 4))
	assert.Equal(t, ComplexityComplex, bucketComplexity(long, 0))
}

func TestCharacteristicsEncode(t *testing.T) {
	c := Characteristics{
		Keywords:         []string{"test"},
		DurationBucket:   DurationShort,
		ComplexityBucket: ComplexitySimple,
	}

	var decoded Characteristics
	assert.NoError(t, json.Unmarshal([]byte(c.Encode()), &decoded))
	assert.Equal(t, c, decoded)
}
