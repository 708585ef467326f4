package classify

import "testing"

func TestClassifyLanguageExtensions(t *testing.T) {
	c := New()
	cases := map[string]string{
		"main.go":       "go",
		"handler_test.go": "go_test",
		"script.py":     "python",
		"app.tsx":       "tsx",
		"README.md":     "markdown",
		"Dockerfile":    "dockerfile",
		"Makefile":      "makefile",
	}
	for path, wantTag := range cases {
		tag, _, isText := c.Classify(path)
		if tag != wantTag {
			t.Errorf("Classify(%q) tag = %q, want %q", path, tag, wantTag)
		}
		if !isText {
			t.Errorf("Classify(%q) expected isText=true", path)
		}
	}
}

func TestClassifySQLMigrationTakesPrecedenceOverPlainSQL(t *testing.T) {
	c := New()
	tag, category, _ := c.Classify("0001_create_tables.sql")
	if tag != "sql_migration" || category != "data" {
		t.Fatalf("expected sql_migration/data, got %s/%s", tag, category)
	}

	tag, _, _ = c.Classify("query.sql")
	if tag != "sql" {
		t.Fatalf("expected plain .sql to classify as sql, got %s", tag)
	}
}

func TestClassifyBinaryExtensionsAreNeverText(t *testing.T) {
	c := New()
	tag, category, isText := c.Classify("logo.png")
	if tag != "binary" || category != "binary" || isText {
		t.Fatalf("expected binary classification for .png, got tag=%s category=%s isText=%v", tag, category, isText)
	}
}

func TestClassifyUnknownExtensionFallsBack(t *testing.T) {
	c := New()
	tag, category, isText := c.Classify("data.xyz123")
	if tag != "unknown" || category != "unknown" || !isText {
		t.Fatalf("expected unknown/unknown/isText=true fallback, got tag=%s category=%s isText=%v", tag, category, isText)
	}
}

func TestRegisterOverridesBuiltInRule(t *testing.T) {
	c := New()
	c.Register(Rule{Tag: "custom-go", Category: "custom", Extension: ".go"})

	tag, category, _ := c.Classify("main.go")
	if tag != "custom-go" || category != "custom" {
		t.Fatalf("expected registered rule to take precedence, got tag=%s category=%s", tag, category)
	}
}
