// Package queue provides the bounded priority queue used to rank search
// candidates.
package queue

// Item is a candidate ranked by Cost.
type Item struct {
	Fragment int
	Cost     float64
}

// before reports whether a ranks ahead of b. Ties break on the fragment
// index so results are deterministic.
func before(a, b Item) bool {
	if a.Cost != b.Cost {
		return a.Cost < b.Cost
	}
	return a.Fragment < b.Fragment
}

// TopK keeps the k best items seen so far. It is a max-heap on rank, so the
// worst kept item sits at the root and is the one evicted.
type TopK struct {
	k     int
	items []Item
}

// NewTopK creates a queue that keeps at most k items.
func NewTopK(k int) *TopK {
	k = max(k, 1)
	return &TopK{k: k, items: make([]Item, 0, k)}
}

// Len returns the number of kept items.
func (q *TopK) Len() int { return len(q.items) }

// Full reports whether k items are kept.
func (q *TopK) Full() bool { return len(q.items) == q.k }

// Worst returns the lowest ranked kept item.
func (q *TopK) Worst() (Item, bool) {
	if len(q.items) == 0 {
		return Item{}, false
	}
	return q.items[0], true
}

// Push offers an item and reports whether it was kept.
func (q *TopK) Push(it Item) bool {
	if len(q.items) < q.k {
		q.items = append(q.items, it)
		q.siftUp(len(q.items) - 1)
		return true
	}
	if !before(it, q.items[0]) {
		return false
	}
	q.items[0] = it
	q.siftDown(0)
	return true
}

// Sorted drains the queue and returns the items best first.
func (q *TopK) Sorted() []Item {
	out := make([]Item, len(q.items))
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = q.pop()
	}
	return out
}

// Reset clears the queue for reuse.
func (q *TopK) Reset() {
	q.items = q.items[:0]
}

func (q *TopK) pop() Item {
	n := len(q.items)
	root := q.items[0]
	q.items[0] = q.items[n-1]
	q.items = q.items[:n-1]
	if n > 1 {
		q.siftDown(0)
	}
	return root
}

// less orders the heap: worse items towards the root.
func (q *TopK) less(i, j int) bool {
	return before(q.items[j], q.items[i])
}

func (q *TopK) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !q.less(i, p) {
			return
		}
		q.items[i], q.items[p] = q.items[p], q.items[i]
		i = p
	}
}

func (q *TopK) siftDown(i int) {
	n := len(q.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		best := l
		if r := l + 1; r < n && q.less(r, l) {
			best = r
		}
		if !q.less(best, i) {
			return
		}
		q.items[i], q.items[best] = q.items[best], q.items[i]
		i = best
	}
}
