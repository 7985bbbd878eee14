package module

import (
	"context"
	"sync/atomic"
)

// Task is deferred work queued on a tick unit or the main-thread queue.
type Task func(ctx context.Context)

type taskNode struct {
	next atomic.Pointer[taskNode]
	task Task
}

// taskQueue is a lock-free multi-producer single-consumer queue. Any
// goroutine may push; only the goroutine running the owning unit pops.
// The consumer's tail always points at a spent node whose successor holds
// the next task.
type taskQueue struct {
	head atomic.Pointer[taskNode]
	tail *taskNode
}

func newTaskQueue() *taskQueue {
	stub := &taskNode{}
	q := &taskQueue{tail: stub}
	q.head.Store(stub)
	return q
}

func (q *taskQueue) push(t Task) {
	n := &taskNode{task: t}
	prev := q.head.Swap(n)
	prev.next.Store(n)
}

// pop returns false when the queue is empty or a producer is between its
// swap and its link; that task is picked up by the next drain.
func (q *taskQueue) pop() (Task, bool) {
	next := q.tail.next.Load()
	if next == nil {
		return nil, false
	}
	q.tail = next
	t := next.task
	next.task = nil
	return t, true
}

// drain runs every queued task and returns how many ran.
func (q *taskQueue) drain(ctx context.Context) int {
	n := 0
	for {
		t, ok := q.pop()
		if !ok {
			return n
		}
		t(ctx)
		n++
	}
}
