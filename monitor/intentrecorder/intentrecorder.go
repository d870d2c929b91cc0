// Package intentrecorder exposes query and summary operations over the
// append-only intent audit log (spec.md §4.16), independent of whichever
// store backend persists it.
package intentrecorder

import (
	"context"
	"sort"
	"time"

	"github.com/wayfind/Cortex/domain/intent"
)

// Store is the subset of the intent store the recorder needs.
type Store interface {
	Record(ctx context.Context, rec intent.Record) error
	Query(ctx context.Context, f intent.Filter) ([]intent.Record, error)
	Get(ctx context.Context, id string) (intent.Record, error)
}

// Summary groups intent counts by kind, tier, agent, and top categories
// over a window (spec.md §4.16).
type Summary struct {
	ByKind       map[string]int `json:"by_kind"`
	ByTier       map[string]int `json:"by_tier"`
	ByAgent      map[string]int `json:"by_agent"`
	TopCategories []CategoryCount `json:"top_categories"`
}

// CategoryCount is one entry of Summary.TopCategories.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// Recorder exposes query and summary endpoints over the intent log.
type Recorder struct {
	store Store
}

// New builds a Recorder.
func New(store Store) *Recorder {
	return &Recorder{store: store}
}

// Query filters the intent log, newest first, paginated.
func (r *Recorder) Query(ctx context.Context, f intent.Filter) ([]intent.Record, error) {
	return r.store.Query(ctx, f)
}

// Get returns one intent record by id.
func (r *Recorder) Get(ctx context.Context, id string) (intent.Record, error) {
	return r.store.Get(ctx, id)
}

// Summarize computes counts by kind/tier/agent/top-category over the
// window starting at since.
func (r *Recorder) Summarize(ctx context.Context, since time.Time, topN int) (Summary, error) {
	recs, err := r.store.Query(ctx, intent.Filter{Since: since, Limit: 0})
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{ByKind: map[string]int{}, ByTier: map[string]int{}, ByAgent: map[string]int{}}
	categoryCounts := map[string]int{}
	for _, rec := range recs {
		sum.ByKind[string(rec.Kind)]++
		if rec.Tier != nil {
			sum.ByTier[string(*rec.Tier)]++
		}
		sum.ByAgent[rec.AgentID]++
		if rec.Category != "" {
			categoryCounts[rec.Category]++
		}
	}

	for cat, count := range categoryCounts {
		sum.TopCategories = append(sum.TopCategories, CategoryCount{Category: cat, Count: count})
	}
	sort.Slice(sum.TopCategories, func(i, j int) bool {
		if sum.TopCategories[i].Count != sum.TopCategories[j].Count {
			return sum.TopCategories[i].Count > sum.TopCategories[j].Count
		}
		return sum.TopCategories[i].Category < sum.TopCategories[j].Category
	})
	if topN > 0 && topN < len(sum.TopCategories) {
		sum.TopCategories = sum.TopCategories[:topN]
	}

	return sum, nil
}
