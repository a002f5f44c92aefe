package seed

import (
	"strings"
	"testing"
)

func TestParseKeepsFileOrder(t *testing.T) {
	raw := `
assessments:
  - id: go
    title: Go
    durationMinutes: 10
    items:
      - id: b
        prompt: second in the alphabet, first in the file
        options: ["x", "y"]
        correctOption: 1
      - id: a
        prompt: first in the alphabet
        options: ["x", "y", "z"]
        correctOption: 2
`
	catalog, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(catalog.Assessments) != 1 || catalog.Assessments[0].ItemCount != 2 || catalog.Assessments[0].Title != "Go" {
		t.Fatalf("unexpected assessments: %+v", catalog.Assessments)
	}
	if len(catalog.Items) != 2 || catalog.Items[0].ID != "b" || catalog.Items[1].AssessmentID != "go" {
		t.Fatalf("unexpected items: %+v", catalog.Items)
	}
	if !catalog.Items[0].CreatedAt.Before(catalog.Items[1].CreatedAt) {
		t.Fatalf("creation times must follow file order")
	}
}

func TestParseRejectsInvalidSeeds(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "zero duration",
			raw:  "assessments:\n  - id: a\n    durationMinutes: 0\n",
			want: "duration",
		},
		{
			name: "correct option out of range",
			raw:  "assessments:\n  - id: a\n    durationMinutes: 1\n    items:\n      - id: i\n        options: [x, y]\n        correctOption: 2\n",
			want: "out of range",
		},
		{
			name: "single option",
			raw:  "assessments:\n  - id: a\n    durationMinutes: 1\n    items:\n      - id: i\n        options: [x]\n",
			want: "two options",
		},
		{
			name: "duplicate item",
			raw:  "assessments:\n  - id: a\n    durationMinutes: 1\n    items:\n      - id: i\n        options: [x, y]\n      - id: i\n        options: [x, y]\n",
			want: "duplicate",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.raw))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestExampleSeedFileLoads(t *testing.T) {
	catalog, err := Load("../../config/seed.yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(catalog.Assessments) != 2 || len(catalog.Items) != 5 {
		t.Fatalf("unexpected catalog: %d assessments, %d items", len(catalog.Assessments), len(catalog.Items))
	}
}
