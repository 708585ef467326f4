// Package classify assigns a file type tag to each scanned file using
// an ordered table of extension/name rules, the same data-driven
// dispatch shape as the teacher's internal/extractor registry of
// ordered regexes. A WASM plugin host (see plugin.go) lets a project
// load additional filename classifiers without a core rebuild.
package classify

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Rule maps a filename pattern to a (tag, category) classification.
// Rules are evaluated in order; the first match wins, so more specific
// rules (e.g. "*_test.go") must precede general ones (e.g. "*.go").
type Rule struct {
	Tag       string
	Category  string
	Extension string         // exact extension match (with leading dot), empty to skip
	NamePattern *regexp.Regexp // matched against the base filename, nil to skip
}

// defaultRules is the built-in classification table. Grounded on the
// file-type breadth the teacher's schema implies (issue_type/mol_type
// style tagging) generalized here to source-file classification.
var defaultRules = []Rule{
	{Tag: "go_test", Category: "test", NamePattern: regexp.MustCompile(`_test\.go$`)},
	{Tag: "go", Category: "language", Extension: ".go"},
	{Tag: "python", Category: "language", Extension: ".py"},
	{Tag: "javascript", Category: "language", Extension: ".js"},
	{Tag: "typescript", Category: "language", Extension: ".ts"},
	{Tag: "jsx", Category: "language", Extension: ".jsx"},
	{Tag: "tsx", Category: "language", Extension: ".tsx"},
	{Tag: "rust", Category: "language", Extension: ".rs"},
	{Tag: "java", Category: "language", Extension: ".java"},
	{Tag: "c", Category: "language", Extension: ".c"},
	{Tag: "cpp", Category: "language", Extension: ".cpp"},
	{Tag: "header", Category: "language", Extension: ".h"},
	{Tag: "ruby", Category: "language", Extension: ".rb"},
	{Tag: "shell", Category: "language", Extension: ".sh"},
	{Tag: "sql_migration", Category: "data", NamePattern: regexp.MustCompile(`^\d+_.*\.sql$`)},
	{Tag: "sql", Category: "data", Extension: ".sql"},
	{Tag: "json", Category: "data", Extension: ".json"},
	{Tag: "yaml", Category: "data", Extension: ".yaml"},
	{Tag: "yaml", Category: "data", Extension: ".yml"},
	{Tag: "toml", Category: "data", Extension: ".toml"},
	{Tag: "markdown", Category: "doc", Extension: ".md"},
	{Tag: "text", Category: "doc", Extension: ".txt"},
	{Tag: "dockerfile", Category: "build", NamePattern: regexp.MustCompile(`^Dockerfile`)},
	{Tag: "makefile", Category: "build", NamePattern: regexp.MustCompile(`^Makefile$`)},
}

// binaryExtensions short-circuits classification for file kinds that
// are never treated as text regardless of a name-pattern match.
var binaryExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".ico": true,
	".pdf": true, ".zip": true, ".tar": true, ".gz": true, ".zst": true,
	".so": true, ".dylib": true, ".dll": true, ".exe": true, ".wasm": true,
}

// Classifier is an ordered rule table plus any plugin-contributed
// rules registered at runtime.
type Classifier struct {
	rules []Rule
}

// New returns a Classifier seeded with the built-in rule table.
func New() *Classifier {
	c := &Classifier{}
	c.rules = append(c.rules, defaultRules...)
	return c
}

// Register adds a rule ahead of the built-in table, so project-local
// or plugin-contributed rules take precedence.
func (c *Classifier) Register(r Rule) {
	c.rules = append([]Rule{r}, c.rules...)
}

// Classify returns the (tag, category, isText) classification for a
// file by base name, falling back to "unknown"/"unknown" with isText
// inferred from extension when nothing matches.
func (c *Classifier) Classify(path string) (tag, category string, isText bool) {
	base := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(base))

	if binaryExtensions[ext] {
		return "binary", "binary", false
	}

	for _, r := range c.rules {
		if r.Extension != "" && strings.ToLower(r.Extension) == ext {
			return r.Tag, r.Category, true
		}
		if r.NamePattern != nil && r.NamePattern.MatchString(base) {
			return r.Tag, r.Category, true
		}
	}

	return "unknown", "unknown", true
}
