// Package alloc provides tagged allocation accounting.
//
// The garbage collector owns memory; what the engine still needs is proof
// that frame-shared resources are retained and released in matched pairs.
// Each acquisition is charged to a diagnostic tag, and over-releasing a tag
// is treated as a caller bug.
package alloc

import (
	"fmt"
	"sort"
	"sync"
)

// Tag names an accounting bucket. Tags affect diagnostics only.
type Tag string

const (
	// TagPairList accounts the frame-shared candidate pair list.
	TagPairList Tag = "collision.pairs"
	// TagHitBatch accounts worker-local hit batches.
	TagHitBatch Tag = "collision.hits"
	// TagScene accounts loaded scene documents.
	TagScene Tag = "engine.scene"
)

// Tracker counts live and total acquisitions per tag. Safe for concurrent
// use from workers and the driving thread.
type Tracker struct {
	mu       sync.Mutex
	live     map[Tag]int64
	acquired map[Tag]int64
	released map[Tag]int64
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		live:     make(map[Tag]int64),
		acquired: make(map[Tag]int64),
		released: make(map[Tag]int64),
	}
}

// Acquire charges one allocation to tag.
func (t *Tracker) Acquire(tag Tag) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.live[tag]++
	t.acquired[tag]++
}

// Release returns one allocation charged to tag. Releasing more than was
// acquired indicates a double free and panics.
func (t *Tracker) Release(tag Tag) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.live[tag] == 0 {
		panic(fmt.Sprintf("alloc: release of tag %q with no live allocation", tag))
	}
	t.live[tag]--
	t.released[tag]++
}

// Live returns the number of outstanding allocations for tag.
func (t *Tracker) Live(tag Tag) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.live[tag]
}

// Acquired returns the total number of acquisitions for tag.
func (t *Tracker) Acquired(tag Tag) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.acquired[tag]
}

// Released returns the total number of releases for tag.
func (t *Tracker) Released(tag Tag) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.released[tag]
}

// Snapshot returns the live counts for every tag that ever saw traffic,
// in stable tag order.
func (t *Tracker) Snapshot() []TagCount {
	t.mu.Lock()
	defer t.mu.Unlock()

	counts := make([]TagCount, 0, len(t.acquired))
	for tag := range t.acquired {
		counts = append(counts, TagCount{Tag: tag, Live: t.live[tag], Acquired: t.acquired[tag]})
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].Tag < counts[j].Tag })
	return counts
}

// TagCount is one row of a tracker snapshot.
type TagCount struct {
	Tag      Tag
	Live     int64
	Acquired int64
}
