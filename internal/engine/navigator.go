package engine

import (
	"sort"

	"github.com/stemsi/exstem-practice/internal/model"
)

// Navigator owns the current question pointer and the review overlay.
// It is not safe for concurrent use; the Runner goroutine owns it.
type Navigator struct {
	examType model.ExamType
	total    int
	current  int
	marked   map[int]struct{}
}

// NewNavigator creates a Navigator positioned at start (clamped into range).
func NewNavigator(examType model.ExamType, total, start int) *Navigator {
	if start < 0 {
		start = 0
	}
	if total > 0 && start >= total {
		start = total - 1
	}
	return &Navigator{
		examType: examType,
		total:    total,
		current:  start,
		marked:   make(map[int]struct{}),
	}
}

// Current returns the pointer.
func (n *Navigator) Current() int {
	return n.current
}

// MoveTo sets the pointer to target if the mode allows it and returns the
// resulting pointer. A rejected move leaves the pointer unchanged.
func (n *Navigator) MoveTo(target int) (int, bool) {
	if target < 0 || target >= n.total {
		return n.current, false
	}
	if n.examType == model.ExamTypeStrict && target < n.current {
		return n.current, false
	}
	n.current = target
	return n.current, true
}

// CanAnswer reports whether index may still receive an answer.
// Strict mode locks every question behind the pointer.
func (n *Navigator) CanAnswer(index int) bool {
	return n.examType != model.ExamTypeStrict || index >= n.current
}

// MarkForReview sets or clears the review flag of index.
func (n *Navigator) MarkForReview(index int, flag bool) error {
	if index < 0 || index >= n.total {
		return ErrIndexOutOfRange
	}
	if flag {
		n.marked[index] = struct{}{}
	} else {
		delete(n.marked, index)
	}
	return nil
}

// IsMarked reports whether index is flagged for review.
func (n *Navigator) IsMarked(index int) bool {
	_, ok := n.marked[index]
	return ok
}

// Marked returns the flagged indices in ascending order.
func (n *Navigator) Marked() []int {
	out := make([]int, 0, len(n.marked))
	for i := range n.marked {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}
