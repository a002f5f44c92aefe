package memory

import (
	"context"
	"sort"
	"sync"

	"assessment-session-service/internal/domain"
)

// Catalog is an in-memory assessment catalog and item bank (useful for tests/demos).
type Catalog struct {
	mu          sync.RWMutex
	assessments map[string]domain.Assessment
	items       map[string][]domain.Item
}

func NewCatalog(assessments []domain.Assessment, items []domain.Item) *Catalog {
	c := &Catalog{
		assessments: make(map[string]domain.Assessment, len(assessments)),
		items:       make(map[string][]domain.Item),
	}
	for _, a := range assessments {
		c.assessments[a.ID] = a
	}
	for _, it := range items {
		c.items[it.AssessmentID] = append(c.items[it.AssessmentID], it)
	}
	for id := range c.items {
		sortItems(c.items[id])
	}
	return c
}

func (c *Catalog) GetAssessment(_ context.Context, assessmentID string) (domain.Assessment, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.assessments[assessmentID]
	if !ok {
		return domain.Assessment{}, domain.ErrNotFound
	}
	a.ItemCount = len(c.items[assessmentID])
	return a, nil
}

func (c *Catalog) ListAssessments(_ context.Context) ([]domain.Assessment, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Assessment, 0, len(c.assessments))
	for id, a := range c.assessments {
		a.ItemCount = len(c.items[id])
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ArchiveAssessment flips the archived flag; archiving twice is a no-op.
func (c *Catalog) ArchiveAssessment(_ context.Context, assessmentID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.assessments[assessmentID]
	if !ok {
		return domain.ErrNotFound
	}
	a.Archived = true
	c.assessments[assessmentID] = a
	return nil
}

func (c *Catalog) ListItems(_ context.Context, assessmentID string) ([]domain.Item, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.assessments[assessmentID]; !ok {
		return nil, domain.ErrNotFound
	}
	items := c.items[assessmentID]
	out := make([]domain.Item, len(items))
	copy(out, items)
	return out, nil
}

// sortItems orders by creation time, keeping insertion order on ties.
func sortItems(items []domain.Item) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
}
