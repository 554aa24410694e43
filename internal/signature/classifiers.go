package signature

import "strings"

// =============================================================================
// KEYWORD CLASSIFIERS - ONE PER CATEGORY, CONSULTED IN PRIORITY ORDER
// =============================================================================

// Target scope keywords shared by all classifiers.
var (
	backendKeywords  = []string{"backend", "server", "api "}
	frontendKeywords = []string{"frontend", "front-end", "ui ", "client", "webapp"}
)

// subcatRule maps keywords to a subcategory name. Rules are checked in
// order; the first hit wins.
type subcatRule struct {
	name     string
	keywords []string
}

// keywordClassifier implements Classifier with flat keyword containment.
type keywordClassifier struct {
	category Category
	keywords []string
	subcats  []subcatRule
}

func (c *keywordClassifier) Category() Category { return c.category }

func (c *keywordClassifier) Matches(text string) bool {
	for _, kw := range c.keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func (c *keywordClassifier) Subcategory(text string) string {
	for _, rule := range c.subcats {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				return rule.name
			}
		}
	}
	return "generic"
}

// defaultClassifiers returns the classifier chain in priority order.
// Categories are mutually exclusive by this order, not by best match:
// "format and test the backend" classifies as test because test outranks
// format, regardless of keyword counts.
//
// New categories register a new entry here rather than growing a
// conditional chain.
func defaultClassifiers() []Classifier {
	return []Classifier{
		&keywordClassifier{
			category: CategoryTest,
			keywords: []string{"test", "pytest", "jest", "unittest", "coverage", "spec file"},
			subcats: []subcatRule{
				{name: "pytest", keywords: []string{"pytest", "py.test"}},
				{name: "jest", keywords: []string{"jest"}},
				{name: "unittest", keywords: []string{"unittest"}},
				{name: "vitest", keywords: []string{"vitest"}},
				{name: "gotest", keywords: []string{"go test"}},
			},
		},
		&keywordClassifier{
			category: CategoryBuild,
			keywords: []string{"build", "compile", "bundle", "webpack", "docker image"},
			subcats: []subcatRule{
				{name: "docker", keywords: []string{"docker"}},
				{name: "webpack", keywords: []string{"webpack"}},
				{name: "vite", keywords: []string{"vite"}},
				{name: "make", keywords: []string{"make ", "makefile"}},
			},
		},
		&keywordClassifier{
			category: CategoryFormat,
			keywords: []string{"format", "lint", "prettier", "black", "ruff", "eslint", "gofmt"},
			subcats: []subcatRule{
				{name: "black", keywords: []string{"black"}},
				{name: "prettier", keywords: []string{"prettier"}},
				{name: "eslint", keywords: []string{"eslint"}},
				{name: "ruff", keywords: []string{"ruff"}},
				{name: "gofmt", keywords: []string{"gofmt", "go fmt"}},
			},
		},
		&keywordClassifier{
			category: CategoryGit,
			keywords: []string{"git ", "commit", "merge", "rebase", "branch", "cherry-pick"},
			subcats: []subcatRule{
				{name: "commit", keywords: []string{"commit"}},
				{name: "merge", keywords: []string{"merge"}},
				{name: "rebase", keywords: []string{"rebase"}},
				{name: "branch", keywords: []string{"branch"}},
			},
		},
		&keywordClassifier{
			category: CategoryDeps,
			keywords: []string{"dependenc", "npm install", "pip install", "requirements.txt", "package.json", "go.mod", "bump version"},
			subcats: []subcatRule{
				{name: "npm", keywords: []string{"npm", "package.json", "yarn"}},
				{name: "pip", keywords: []string{"pip", "requirements"}},
				{name: "gomod", keywords: []string{"go.mod", "go get"}},
			},
		},
		&keywordClassifier{
			category: CategoryDocs,
			keywords: []string{"document", "docs", "readme", "changelog", "docstring"},
			subcats: []subcatRule{
				{name: "readme", keywords: []string{"readme"}},
				{name: "changelog", keywords: []string{"changelog"}},
				{name: "docstring", keywords: []string{"docstring"}},
			},
		},
	}
}
