package scan

import (
	"sync"
	"time"
)

// Stage is the scan state machine position. Transitions:
// idle → queued → start → collected → processing → {done → finished | error}.
type Stage string

const (
	StageIdle       Stage = "idle"
	StageQueued     Stage = "queued"
	StageStart      Stage = "start"
	StageCollected  Stage = "collected"
	StageProcessing Stage = "processing"
	StageDone       Stage = "done"
	StageFinished   Stage = "finished"
	StageError      Stage = "error"
)

// State is a point-in-time copy of the process-wide scan state. Exactly one
// live State exists, owned by a Tracker; consumers only ever see copies.
type State struct {
	Running        bool      `json:"running"`
	Stage          Stage     `json:"stage"`
	Done           int       `json:"done"`
	Total          int       `json:"total"`
	Message        string    `json:"message"`
	ElapsedSeconds float64   `json:"elapsed_seconds,omitempty"`
	LastUpdate     time.Time `json:"last_update"`
}

// Terminal reports whether this snapshot ends a progress stream.
func (s State) Terminal() bool {
	return !s.Running && (s.Stage == StageFinished || s.Stage == StageError)
}

// Tracker owns the shared scan state. Every read and write takes its mutex;
// writers merge partial updates and stamp LastUpdate.
type Tracker struct {
	mu    sync.Mutex
	state State
}

// NewTracker returns a Tracker in the idle state.
func NewTracker() *Tracker {
	return &Tracker{state: State{Stage: StageIdle}}
}

// Snapshot returns an atomic copy of the current state.
func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// update applies a partial mutation under the lock and stamps LastUpdate.
func (t *Tracker) update(mutate func(*State)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	mutate(&t.state)
	t.state.LastUpdate = time.Now()
}

// TryBegin atomically claims the single-scan slot. Returns false when a scan
// is already running; otherwise resets counters and enters StageQueued.
func (t *Tracker) TryBegin() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Running {
		return false
	}
	t.state = State{
		Running:    true,
		Stage:      StageQueued,
		Message:    "Queued to start",
		LastUpdate: time.Now(),
	}
	return true
}

// MarkStart enters StageStart.
func (t *Tracker) MarkStart() {
	t.update(func(s *State) {
		s.Stage = StageStart
		s.Message = "Scan started"
	})
}

// MarkCollected records the total discovered file count.
func (t *Tracker) MarkCollected(total int) {
	t.update(func(s *State) {
		s.Stage = StageCollected
		s.Total = total
		s.Message = ""
	})
}

// MarkProcessed advances the done counter. Failed files count too, so the
// reported total stays exact.
func (t *Tracker) MarkProcessed(done int) {
	t.update(func(s *State) {
		s.Stage = StageProcessing
		s.Done = done
	})
}

// MarkDone records completion of all per-file work and the elapsed time.
func (t *Tracker) MarkDone(elapsed time.Duration) {
	t.update(func(s *State) {
		s.Stage = StageDone
		s.ElapsedSeconds = elapsed.Seconds()
	})
}

// MarkFinished releases the scan slot with a terminal finished stage.
func (t *Tracker) MarkFinished(msg string) {
	t.update(func(s *State) {
		s.Running = false
		s.Stage = StageFinished
		s.Message = msg
	})
}

// MarkError releases the scan slot with a terminal error stage.
func (t *Tracker) MarkError(msg string) {
	t.update(func(s *State) {
		s.Running = false
		s.Stage = StageError
		s.Message = msg
	})
}
