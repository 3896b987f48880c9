package scheduler

import "sort"

type syncPointHeap []SyncPoint

func (h syncPointHeap) Len() int { return len(h) }

func (h syncPointHeap) Less(i, j int) bool {
	if h[i].Time != h[j].Time {
		return h[i].Time < h[j].Time
	}

	return h[i].seq < h[j].seq
}

func (h syncPointHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *syncPointHeap) Push(x any) {
	*h = append(*h, x.(SyncPoint))
}

func (h *syncPointHeap) Pop() any {
	old := *h
	n := len(old)
	sp := old[n-1]
	old[n-1] = SyncPoint{}
	*h = old[:n-1]

	return sp
}

// sorted returns a copy of the queue in firing order.
func (s *Scheduler) sorted() []SyncPoint {
	list := make(syncPointHeap, len(s.queue))
	copy(list, s.queue)
	sort.Sort(list)

	return list
}
