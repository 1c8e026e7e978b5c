package scheduler

import "sort"

const (
	DefaultK = 5
	MaxK     = 20
)

func clampK(k int) int {
	switch {
	case k <= 0:
		return DefaultK
	case k > MaxK:
		return MaxK
	}
	return k
}

// bestK keeps the k cheapest schedules with distinct footprints.
type bestK struct {
	capacity int
	items    []*Schedule
}

func newBestK(k int) *bestK {
	k = clampK(k)
	return &bestK{capacity: k, items: make([]*Schedule, 0, k)}
}

// Offer inserts the schedule when it ranks among the best k. A schedule sharing a
// footprint with a kept one replaces it only when it ranks ahead.
func (b *bestK) Offer(s *Schedule) bool {
	for i, kept := range b.items {
		if kept.footprint != s.footprint {
			continue
		}
		if !Better(s, kept) {
			return false
		}
		b.items = append(b.items[:i], b.items[i+1:]...)
		break
	}
	if len(b.items) >= b.capacity && !Better(s, b.items[len(b.items)-1]) {
		return false
	}
	idx := sort.Search(len(b.items), func(i int) bool { return Better(s, b.items[i]) })
	b.items = append(b.items, nil)
	copy(b.items[idx+1:], b.items[idx:])
	b.items[idx] = s
	if len(b.items) > b.capacity {
		b.items = b.items[:b.capacity]
	}
	return true
}

func (b *bestK) Len() int { return len(b.items) }

func (b *bestK) Full() bool { return len(b.items) >= b.capacity }

func (b *bestK) Worst() *Schedule {
	if len(b.items) == 0 {
		return nil
	}
	return b.items[len(b.items)-1]
}

func (b *bestK) Items() []*Schedule {
	return append([]*Schedule(nil), b.items...)
}
