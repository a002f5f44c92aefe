// Package seed reads catalog fixtures (assessments with their items) from YAML.
package seed

import (
	"fmt"
	"os"
	"time"

	"assessment-session-service/internal/domain"
	"gopkg.in/yaml.v3"
)

// File is the on-disk layout of a seed file.
type File struct {
	Assessments []Assessment `yaml:"assessments"`
}

// Assessment is an assessment with its items inlined in presentation order.
type Assessment struct {
	domain.Assessment `yaml:",inline"`
	Items             []domain.Item `yaml:"items"`
}

// Catalog is a validated seed ready to be loaded into a store.
type Catalog struct {
	Assessments []domain.Assessment
	Items       []domain.Item
}

// Load reads and validates a seed file.
func Load(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, err
	}
	return Parse(data)
}

// Parse validates raw YAML. Items without a creation time get one that preserves file order.
func Parse(data []byte) (Catalog, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Catalog{}, err
	}

	base := time.Now().UTC().Truncate(time.Second)
	seenAssessments := make(map[string]bool)
	seenItems := make(map[string]bool)
	var out Catalog
	for _, a := range f.Assessments {
		if a.ID == "" {
			return Catalog{}, fmt.Errorf("assessment without id")
		}
		if seenAssessments[a.ID] {
			return Catalog{}, fmt.Errorf("assessment %s: duplicate id", a.ID)
		}
		seenAssessments[a.ID] = true
		if a.DurationMinutes <= 0 {
			return Catalog{}, fmt.Errorf("assessment %s: duration must be positive", a.ID)
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = base
		}

		for i, it := range a.Items {
			if it.ID == "" {
				return Catalog{}, fmt.Errorf("assessment %s: item %d without id", a.ID, i)
			}
			if seenItems[it.ID] {
				return Catalog{}, fmt.Errorf("item %s: duplicate id", it.ID)
			}
			seenItems[it.ID] = true
			if len(it.Options) < 2 {
				return Catalog{}, fmt.Errorf("item %s: needs at least two options", it.ID)
			}
			if it.CorrectOption < 0 || it.CorrectOption >= len(it.Options) {
				return Catalog{}, fmt.Errorf("item %s: correct option %d out of range", it.ID, it.CorrectOption)
			}
			it.AssessmentID = a.ID
			if it.CreatedAt.IsZero() {
				it.CreatedAt = a.CreatedAt.Add(time.Duration(i) * time.Millisecond)
			}
			out.Items = append(out.Items, it)
		}

		assessment := a.Assessment
		assessment.ItemCount = len(a.Items)
		out.Assessments = append(out.Assessments, assessment)
	}
	return out, nil
}
