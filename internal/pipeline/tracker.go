package pipeline

import (
	"sync"
	"time"

	"github.com/timmy/docloader/internal/domain"
)

// StateName is the position of the pipeline in its run state machine.
type StateName string

const (
	StateIdle     StateName = "idle"
	StateFetching StateName = "fetching"
	StateLoading  StateName = "loading"
	StateFailed   StateName = "failed"
)

// State is a point-in-time view of the running pipeline.
type State struct {
	Name         StateName       `json:"state"`
	Phase        domain.RunPhase `json:"phase,omitempty"`
	RunID        string          `json:"run_id,omitempty"`
	DocumentType string          `json:"document_type,omitempty"`
	Link         string          `json:"link,omitempty"`
	First        int             `json:"first,omitempty"`
	Last         int             `json:"last,omitempty"`
	Error        string          `json:"error,omitempty"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Tracker holds the run state. Only one run may be active at a time.
type Tracker struct {
	mu    sync.RWMutex
	state State
}

// NewTracker returns a tracker in the idle state.
func NewTracker() *Tracker {
	return &Tracker{state: State{Name: StateIdle, UpdatedAt: time.Now()}}
}

// Begin claims the tracker for a new run. A failed run does not block new
// runs; the failure stays visible until then.
func (t *Tracker) Begin(phase domain.RunPhase, runID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.Name == StateFetching || t.state.Name == StateLoading {
		return domain.ErrPipelineBusy
	}

	name := StateFetching
	if phase == domain.RunPhaseLoad {
		name = StateLoading
	}
	t.state = State{Name: name, Phase: phase, RunID: runID, UpdatedAt: time.Now()}
	return nil
}

// Fetching records the link currently being downloaded.
func (t *Tracker) Fetching(documentType, link string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state.Name = StateFetching
	t.state.DocumentType = documentType
	t.state.Link = link
	t.state.UpdatedAt = time.Now()
}

// Loading records the document range currently being submitted.
func (t *Tracker) Loading(documentType string, first, last int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state.Name = StateLoading
	t.state.DocumentType = documentType
	t.state.First = first
	t.state.Last = last
	t.state.UpdatedAt = time.Now()
}

// Finish ends the run, moving to Failed when err is non-nil.
func (t *Tracker) Finish(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err != nil {
		t.state.Name = StateFailed
		t.state.Error = err.Error()
	} else {
		t.state = State{Name: StateIdle, Phase: t.state.Phase, RunID: t.state.RunID}
	}
	t.state.UpdatedAt = time.Now()
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}
