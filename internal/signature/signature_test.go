package signature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateDeterministicClassification(t *testing.T) {
	gen := NewGenerator(nil)

	sig, ok := gen.Generate("Run the backend test suite with pytest", "")
	require.True(t, ok)
	assert.Equal(t, "test:pytest:backend", sig)
}

func TestGenerateNoFalseClassification(t *testing.T) {
	gen := NewGenerator(nil)

	// Creative work must never classify: a wrong classification can
	// silently route an implementation task to a trivial tool.
	for _, desc := range []string{
		"implement user authentication with JWT",
		"add rate limiting middleware",
		"design the new billing schema",
		"",
	} {
		sig, ok := gen.Generate(desc, "")
		assert.False(t, ok, "description %q classified as %q", desc, sig)
	}
}

func TestGeneratePriorityOrder(t *testing.T) {
	gen := NewGenerator(nil)

	// test outranks format regardless of keyword counts.
	sig, ok := gen.Generate("lint and format before running the test suite", "")
	require.True(t, ok)
	assert.Equal(t, Category("test"), CategoryOf(sig))
}

func TestGenerateTargets(t *testing.T) {
	gen := NewGenerator(nil)

	tests := []struct {
		desc string
		hint string
		want string
	}{
		{"run pytest on the backend", "", "test:pytest:backend"},
		{"run jest for the frontend", "", "test:jest:frontend"},
		{"run tests for backend and frontend", "", "test:generic:both"},
		{"run the unittest suite", "nightly", "test:unittest:nightly"},
		{"run the test suite", "", "test:generic:all"},
		{"run the test suite", "Nightly CI!", "test:generic:nightly-ci"},
	}
	for _, tt := range tests {
		sig, ok := gen.Generate(tt.desc, tt.hint)
		require.True(t, ok, "description %q", tt.desc)
		assert.Equal(t, tt.want, sig, "description %q", tt.desc)
	}
}

func TestGenerateSubcategories(t *testing.T) {
	gen := NewGenerator(nil)

	tests := []struct {
		desc string
		want string
	}{
		{"build the docker image for the api service", "build:docker:backend"},
		{"format the codebase with black", "format:black:all"},
		{"commit the staged changes", "git:commit:all"},
		{"pip install the new requirements.txt", "deps:pip:all"},
		{"update the README documentation", "docs:readme:all"},
	}
	for _, tt := range tests {
		sig, ok := gen.Generate(tt.desc, "")
		require.True(t, ok, "description %q", tt.desc)
		assert.Equal(t, tt.want, sig)
	}
}

func TestValidate(t *testing.T) {
	assert.True(t, Validate("test:pytest:backend"))
	assert.True(t, Validate("deploy:generic:all"))

	assert.False(t, Validate(""))
	assert.False(t, Validate("test:pytest"))
	assert.False(t, Validate("test:pytest:backend:extra"))
	assert.False(t, Validate("test::backend"))
	assert.False(t, Validate(":pytest:backend"))
	assert.False(t, Validate("juggling:pytest:backend"))
}

func TestSanitizeHint(t *testing.T) {
	assert.Equal(t, "nightly", sanitizeHint("  Nightly "))
	assert.Equal(t, "a-b-c", sanitizeHint("a b:c"))
	assert.Equal(t, "", sanitizeHint("   "))
	assert.Equal(t, "", sanitizeHint("::"))
}
