package session

import (
	"sync"
	"time"

	cerrors "github.com/adalundhe/crews/core/errors"
	"github.com/adalundhe/crews/core/selection"
)

// Spec describes the run being started.
type Spec struct {
	Crew     selection.CrewKind
	Provider selection.Provider
	Model    string

	// Notice is a non-blocking warning shown alongside the run.
	Notice string
}

// Run is one execution of a crew.
type Run struct {
	ID        string
	SessionID string
	Spec      Spec
	Log       *Log

	mu         sync.RWMutex
	state      State
	artifact   string
	err        error
	startedAt  time.Time
	finishedAt time.Time
	done       chan struct{}
}

func newRun(id, sessionID string, spec Spec, logLines int) *Run {
	return &Run{
		ID:        id,
		SessionID: sessionID,
		Spec:      spec,
		Log:       NewLog(logLines),
		state:     StateRunning,
		startedAt: time.Now(),
		done:      make(chan struct{}),
	}
}

func (r *Run) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Artifact returns the final output. It is empty unless the run completed.
func (r *Run) Artifact() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.artifact
}

func (r *Run) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.err
}

// Done is closed when the run finishes.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// finish records the outcome. A failed run keeps no artifact.
func (r *Run) finish(artifact string, err error) State {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.finishedAt = time.Now()
	if err != nil {
		r.state = StateFailed
		r.err = err
	} else {
		r.state = StateCompleted
		r.artifact = artifact
	}
	return r.state
}

// release wakes Done waiters and ends log subscriptions.
func (r *Run) release() {
	close(r.done)
	r.Log.Close()
}

// Snapshot is the JSON view of a run.
type Snapshot struct {
	ID           string     `json:"id"`
	Crew         string     `json:"crew"`
	Provider     string     `json:"provider"`
	Model        string     `json:"model"`
	State        string     `json:"state"`
	Notice       string     `json:"notice,omitempty"`
	Error        string     `json:"error,omitempty"`
	ErrorKind    string     `json:"error_kind,omitempty"`
	Artifact     string     `json:"artifact,omitempty"`
	DownloadName string     `json:"download_name"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

func (r *Run) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Snapshot{
		ID:           r.ID,
		Crew:         r.Spec.Crew.String(),
		Provider:     r.Spec.Provider.String(),
		Model:        r.Spec.Model,
		State:        r.state.String(),
		Notice:       r.Spec.Notice,
		Artifact:     r.artifact,
		DownloadName: r.Spec.Crew.DownloadName(),
		StartedAt:    r.startedAt,
	}
	if r.err != nil {
		s.Error = cerrors.UserMessage(r.err)
		s.ErrorKind = cerrors.KindOf(r.err).String()
	}
	if !r.finishedAt.IsZero() {
		finished := r.finishedAt
		s.FinishedAt = &finished
	}
	return s
}
