/*
@Author: Lzww
@LastEditTime: 2025-10-03 10:35:00
@Description: Heap-based callback timer for periodic background tasks
@Language: Go 1.23.4
*/

package scheduler

import (
	"container/heap"
	"sync"
	"time"
)

// timedFunc represents a function that should be executed at a specific time.
type timedFunc struct {
	execute func()
	ts      time.Time
}

// Timer orders scheduled callbacks on a single scheduling goroutine using a
// heap-based priority queue, and starts each due callback on a goroutine of
// its own. Callbacks run on Timer-owned goroutines, so
// anything scheduled here must be safe to call off the caller's goroutine -
// in particular Timer must never be pointed at a rtpafec.Queue, which is
// single-threaded by contract; see transport.Receiver's pollInterval for how
// queue timeout polling stays on the queue's own goroutine.
type Timer struct {
	prependTasks    []timedFunc
	prependLock     sync.Mutex
	chPrependNotify chan struct{}

	chTask chan timedFunc

	closeOnce sync.Once
	close     chan struct{}
}

// NewTimer starts a Timer with its scheduling goroutine and the goroutine
// that hands newly Put tasks to it.
func NewTimer() *Timer {
	t := &Timer{
		chTask:          make(chan timedFunc),
		close:           make(chan struct{}),
		chPrependNotify: make(chan struct{}, 1),
	}
	go t.sched()
	go t.prepend()
	return t
}

type timeFuncHeap []timedFunc

func (h timeFuncHeap) Len() int {
	return len(h)
}

func (h timeFuncHeap) Less(i, j int) bool {
	return h[i].ts.Before(h[j].ts)
}

func (h timeFuncHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *timeFuncHeap) Push(x any) {
	*h = append(*h, x.(timedFunc))
}

func (h *timeFuncHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

func (t *Timer) sched() {
	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	var tasks timeFuncHeap

	for {
		select {
		case task := <-t.chTask:
			now := time.Now()
			if now.After(task.ts) {
				go task.execute()
				continue
			}
			heap.Push(&tasks, task)
			timer.Reset(time.Until(tasks[0].ts))

		case now := <-timer.C:
			for tasks.Len() > 0 && !now.Before(tasks[0].ts) {
				task := heap.Pop(&tasks).(timedFunc)
				go task.execute()
			}
			if tasks.Len() > 0 {
				timer.Reset(time.Until(tasks[0].ts))
			}

		case <-t.close:
			return
		}
	}
}

func (t *Timer) prepend() {
	for {
		select {
		case <-t.chPrependNotify:
			t.prependLock.Lock()
			tasks := append([]timedFunc(nil), t.prependTasks...)
			t.prependTasks = t.prependTasks[:0]
			t.prependLock.Unlock()

			for _, task := range tasks {
				select {
				case t.chTask <- task:
				case <-t.close:
					return
				}
			}
		case <-t.close:
			return
		}
	}
}

// Put schedules f to run once at deadline.
func (t *Timer) Put(f func(), deadline time.Time) {
	t.prependLock.Lock()
	t.prependTasks = append(t.prependTasks, timedFunc{f, deadline})
	t.prependLock.Unlock()

	select {
	case t.chPrependNotify <- struct{}{}:
	default:
	}
}

// Every reschedules f to run repeatedly at interval until Close, starting
// one interval from now.
func (t *Timer) Every(f func(), interval time.Duration) {
	var run func()
	run = func() {
		f()
		t.Put(run, time.Now().Add(interval))
	}
	t.Put(run, time.Now().Add(interval))
}

// Close shuts the timer down. Safe to call more than once.
func (t *Timer) Close() {
	t.closeOnce.Do(func() {
		close(t.close)
	})
}
