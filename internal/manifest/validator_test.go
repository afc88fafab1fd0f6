package manifest

import (
	"testing"
)

func TestValidate_Valid(t *testing.T) {
	result, err := Validate([]byte(`{"version":"1.1.0","download_url":"https://example.com/pkg.zip","extra":true}`))
	if err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if !result.Valid {
		for _, issue := range result.Issues {
			t.Errorf("  path=%s keyword=%s message=%s", issue.Path, issue.Keyword, issue.Message)
		}
		t.Fatal("expected valid manifest")
	}
}

func TestValidate_MissingRequired(t *testing.T) {
	result, err := Validate([]byte(`{"version":"1.1.0"}`))
	if err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if result.Valid {
		t.Fatal("expected invalid manifest")
	}
	found := false
	for _, issue := range result.Issues {
		if issue.Keyword == "required" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a 'required' issue, got %+v", result.Issues)
	}
}

func TestValidate_BadSectionType(t *testing.T) {
	result, err := Validate([]byte(`{"version":"1.1.0","download_url":"https://e.com/p.zip","sections":{"changelog":5}}`))
	if err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if result.Valid {
		t.Fatal("expected invalid manifest")
	}
	if result.Issues[0].Path != "/sections/changelog" {
		t.Errorf("Path = %q, want /sections/changelog", result.Issues[0].Path)
	}
}

func TestValidate_MalformedJSON(t *testing.T) {
	if _, err := Validate([]byte("not valid json{{{")); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestDeduplicateIssues(t *testing.T) {
	issues := []ValidationIssue{
		{Path: "/version", Keyword: "type", Message: "m"},
		{Path: "/version", Keyword: "type", Message: "m"},
		{Path: "/slug", Keyword: "pattern", Message: "m"},
	}
	if got := deduplicateIssues(issues); len(got) != 2 {
		t.Errorf("deduplicateIssues returned %d issues, want 2", len(got))
	}
}
