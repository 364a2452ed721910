package scan

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
)

// Entry is one regular file discovered under a configured root.
type Entry struct {
	Root string
	Path string
	Name string
}

// dirQueue is an unbounded, concurrency-safe queue of directory paths with a
// pending counter so walkers know when traversal is complete.
//
// Termination protocol:
//   - push increments pending BEFORE enqueuing (caller owns the increment).
//   - done decrements pending AFTER all children of a directory have been
//     pushed. When pending reaches 0, done closes the queue and broadcasts.
type dirQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []string
	pending atomic.Int64
	closed  bool
}

func newDirQueue() *dirQueue {
	q := &dirQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *dirQueue) push(dir string) {
	q.mu.Lock()
	q.items = append(q.items, dir)
	q.mu.Unlock()
	q.cond.Signal()
}

// pop blocks until an item is available or the queue is closed.
// Returns ("", false) when the queue is closed and empty.
func (q *dirQueue) pop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return "", false
	}
	item := q.items[len(q.items)-1]
	q.items = q.items[:len(q.items)-1]
	return item, true
}

// done must be called once per directory after its children were pushed.
func (q *dirQueue) done() {
	if q.pending.Add(-1) == 0 {
		q.mu.Lock()
		q.closed = true
		q.mu.Unlock()
		q.cond.Broadcast()
	}
}

// Collect walks every reachable root with numWorkers concurrent walkers and
// returns the flat list of discovered files plus the configured roots that
// could not be reached. A missing root is skipped, not fatal; the caller
// decides whether reconciliation is still safe.
func Collect(ctx context.Context, roots []string, numWorkers int) ([]Entry, []string) {
	var live, unreachable []string
	for _, root := range roots {
		if _, err := os.Stat(root); err != nil {
			slog.Warn("media root unreachable, skipping", "root", root, "error", err)
			unreachable = append(unreachable, root)
			continue
		}
		live = append(live, root)
	}

	if numWorkers < 1 {
		numWorkers = 1
	}

	out := make(chan Entry, 1024)
	go walk(ctx, live, numWorkers, out)

	var entries []Entry
	for e := range out {
		entries = append(entries, e)
	}
	return entries, unreachable
}

// walk traverses roots concurrently and sends every regular file to out,
// closing it when traversal finishes.
func walk(ctx context.Context, roots []string, numWorkers int, out chan<- Entry) {
	defer close(out)

	if len(roots) == 0 {
		return
	}

	q := newDirQueue()
	for _, root := range roots {
		q.pending.Add(1)
		q.push(root)
	}

	// Walkers need the owning root for each file; carry it alongside the
	// directory by mapping every queued dir to its root prefix lazily.
	rootOf := func(dir string) string {
		for _, root := range roots {
			if dir == root || len(dir) > len(root) && dir[:len(root)] == root && dir[len(root)] == os.PathSeparator {
				return root
			}
		}
		return dir
	}

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			walkerWorker(ctx, q, rootOf, out)
		}()
	}
	wg.Wait()
}

// walkerWorker pops directories, enqueues sub-directories (incrementing
// pending first), sends files to out, then calls q.done().
func walkerWorker(ctx context.Context, q *dirQueue, rootOf func(string) string, out chan<- Entry) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		dir, ok := q.pop()
		if !ok {
			return
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			slog.Warn("read dir during walk", "dir", dir, "error", err)
			q.done()
			continue
		}

		root := rootOf(dir)
		for _, entry := range entries {
			path := filepath.Join(dir, entry.Name())

			if entry.IsDir() {
				// Increment BEFORE pushing so pending never hits zero early.
				q.pending.Add(1)
				q.push(path)
				continue
			}
			if entry.Type()&fs.ModeSymlink != 0 || !entry.Type().IsRegular() {
				continue
			}

			select {
			case <-ctx.Done():
				q.done()
				return
			case out <- Entry{Root: root, Path: path, Name: entry.Name()}:
			}
		}

		q.done()
	}
}
