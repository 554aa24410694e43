// Package signature maps free-text operation descriptions to normalized
// category:subcategory:target classification strings.
//
// Classification is deliberately conservative: ambiguous or creative-work
// input ("implement authentication") yields no signature at all. A false
// positive can silently route an implementation task to a trivial tool,
// so false negatives are the cheaper failure.
package signature

import (
	"strings"

	"go.uber.org/zap"
)

// Category is one of the closed operation category set.
type Category string

const (
	CategoryTest   Category = "test"
	CategoryBuild  Category = "build"
	CategoryFormat Category = "format"
	CategoryGit    Category = "git"
	CategoryDeps   Category = "deps"
	CategoryDocs   Category = "docs"
	CategorySDLC   Category = "sdlc"
	CategoryPatch  Category = "patch"
	CategoryDeploy Category = "deploy"
	CategoryReview Category = "review"
)

// knownCategories is the closed enumeration accepted by Validate.
var knownCategories = map[Category]bool{
	CategoryTest:   true,
	CategoryBuild:  true,
	CategoryFormat: true,
	CategoryGit:    true,
	CategoryDeps:   true,
	CategoryDocs:   true,
	CategorySDLC:   true,
	CategoryPatch:  true,
	CategoryDeploy: true,
	CategoryReview: true,
}

// TargetAll is the target scope used when neither keywords nor the
// template hint narrow the scope.
const TargetAll = "all"

// Classifier recognizes one operation category in lower-cased text.
// Classifiers are consulted in a fixed priority order; the first one
// whose keyword set hits wins the category outright.
type Classifier interface {
	// Category returns the category this classifier produces.
	Category() Category

	// Matches reports whether any category keyword appears in text.
	Matches(text string) bool

	// Subcategory selects the subcategory for matched text.
	Subcategory(text string) string
}

// Generator produces signatures from descriptions.
type Generator struct {
	classifiers []Classifier
	log         *zap.Logger
}

// NewGenerator creates a generator with the default classifier chain in
// priority order: test, build, format, git, deps, docs.
func NewGenerator(log *zap.Logger) *Generator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{
		classifiers: defaultClassifiers(),
		log:         log,
	}
}

// Generate maps a description to a signature. The boolean is false when
// no category keyword hits, which is the expected outcome for creative
// or ambiguous work.
func (g *Generator) Generate(description, templateHint string) (string, bool) {
	text := strings.ToLower(strings.TrimSpace(description))
	if text == "" {
		return "", false
	}

	for _, c := range g.classifiers {
		if !c.Matches(text) {
			continue
		}
		sub := c.Subcategory(text)
		target := detectTarget(text, templateHint)
		sig := string(c.Category()) + ":" + sub + ":" + target
		g.log.Debug("signature generated",
			zap.String("signature", sig),
			zap.String("category", string(c.Category())))
		return sig, true
	}

	g.log.Debug("no signature for description", zap.Int("length", len(text)))
	return "", false
}

// Validate reports whether sig is a well-formed signature: exactly three
// non-empty colon-separated segments with a known category.
func Validate(sig string) bool {
	parts := strings.Split(sig, ":")
	if len(parts) != 3 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
	}
	return knownCategories[Category(parts[0])]
}

// CategoryOf returns the category segment of a well-formed signature.
func CategoryOf(sig string) Category {
	parts := strings.SplitN(sig, ":", 2)
	return Category(parts[0])
}

// detectTarget resolves the target scope: scope keywords first, then the
// template hint, then "all".
func detectTarget(text, templateHint string) string {
	backend := containsAny(text, backendKeywords)
	frontend := containsAny(text, frontendKeywords)

	switch {
	case backend && frontend:
		return "both"
	case backend:
		return "backend"
	case frontend:
		return "frontend"
	}

	if hint := sanitizeHint(templateHint); hint != "" {
		return hint
	}
	return TargetAll
}

// sanitizeHint lower-cases the template hint and replaces characters
// that would break the three-segment signature format.
func sanitizeHint(hint string) string {
	hint = strings.ToLower(strings.TrimSpace(hint))
	if hint == "" {
		return ""
	}
	var b strings.Builder
	for _, r := range hint {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-")
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
