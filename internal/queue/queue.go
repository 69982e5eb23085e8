package queue

import (
	"math/rand"
	"time"

	"github.com/samber/lo"

	"github.com/example/fasecards/pkg/models"
)

// Shuffler randomises the order of n elements through swap. *rand.Rand satisfies it.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// Options tune how items are split between the two queue segments
type Options struct {
	// NewItemsFirst puts never-reviewed items in the high-priority segment
	NewItemsFirst bool
	// FailThreshold is the quality below which the latest review counts as failed.
	// Zero means the default of 3.
	FailThreshold int
}

func (o Options) withDefaults() Options {
	if o.FailThreshold <= 0 {
		o.FailThreshold = DefaultOptions().FailThreshold
	}
	return o
}

// DefaultOptions returns the options used in production
func DefaultOptions() Options {
	return Options{FailThreshold: 3}
}

// Builder orders a collection's items for the next session
type Builder struct {
	rnd  Shuffler
	opts Options
}

// NewBuilder creates a builder drawing randomness from src
func NewBuilder(src rand.Source, opts Options) *Builder {
	return &Builder{rnd: rand.New(src), opts: opts.withDefaults()}
}

// NewBuilderWithShuffler creates a builder around an existing Shuffler
func NewBuilderWithShuffler(rnd Shuffler, opts Options) *Builder {
	return &Builder{rnd: rnd, opts: opts.withDefaults()}
}

// Build returns every item of the collection: high-priority items first in collection
// order, then the rest in a fresh random order. metrics holds the latest metric per item id.
func (b *Builder) Build(collection *models.PrivateCollection, metrics map[string]models.ItemMetric, now time.Time) []models.Item {
	if collection == nil || len(collection.Items) == 0 {
		return []models.Item{}
	}

	high, low := b.Partition(collection.Items, metrics, now)

	b.rnd.Shuffle(len(low), func(i, j int) {
		low[i], low[j] = low[j], low[i]
	})

	return append(high, low...)
}

// Partition splits items the same way Build does, without shuffling
func (b *Builder) Partition(items []models.Item, metrics map[string]models.ItemMetric, now time.Time) (high, low []models.Item) {
	priority := func(item models.Item, _ int) bool {
		return b.isHighPriority(metrics, item.ID, now)
	}
	return lo.Filter(items, priority), lo.Reject(items, priority)
}

func (b *Builder) isHighPriority(metrics map[string]models.ItemMetric, itemID string, now time.Time) bool {
	m, ok := metrics[itemID]
	if !ok {
		return b.opts.NewItemsFirst
	}
	return m.IsDue(now) || m.ReviewQuality < b.opts.FailThreshold
}
