package scheduling

import (
	"container/heap"

	"github.com/examcell/duty-roster/internal/domain"
)

// Queue hands out candidates least-loaded first. Re-inserting a candidate
// after its load changed keeps the ordering without a full re-sort.
type Queue struct {
	h candidateHeap
}

// NewQueue builds a queue from ranked candidates.
func NewQueue(candidates []Candidate) *Queue {
	q := &Queue{h: make(candidateHeap, len(candidates))}
	copy(q.h, candidates)
	heap.Init(&q.h)
	return q
}

// NewPool queues every record that still has capacity, in roster order for ties.
func NewPool(records []*domain.StaffRecord) *Queue {
	candidates := make([]Candidate, 0, len(records))
	for i, rec := range records {
		if rec == nil || !rec.HasCapacity() {
			continue
		}
		candidates = append(candidates, Candidate{Record: rec, Load: rec.AssignedDuties, seq: i})
	}
	return NewQueue(candidates)
}

// Refresh re-reads the load from the candidate's record.
func (c Candidate) Refresh() Candidate {
	c.Load = c.Record.AssignedDuties
	return c
}

func (q *Queue) Len() int {
	return q.h.Len()
}

// Pop removes the front candidate. ok is false when the queue is empty.
func (q *Queue) Pop() (Candidate, bool) {
	if q.h.Len() == 0 {
		return Candidate{}, false
	}
	return heap.Pop(&q.h).(Candidate), true
}

// Push re-inserts a candidate with its current load.
func (q *Queue) Push(c Candidate) {
	heap.Push(&q.h, c)
}

type candidateHeap []Candidate

func (h candidateHeap) Len() int           { return len(h) }
func (h candidateHeap) Less(i, j int) bool { return compareCandidates(h[i], h[j]) < 0 }
func (h candidateHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *candidateHeap) Push(x any) {
	*h = append(*h, x.(Candidate))
}

func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
