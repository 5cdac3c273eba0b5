package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"

	cerrors "github.com/adalundhe/crews/core/errors"
)

const (
	DefaultMaxSessions = 1024
	DefaultSessionTTL  = 24 * time.Hour
	DefaultMaxRuns     = 256
)

// Executor performs the work of a run and returns its artifact.
type Executor func(ctx context.Context, run *Run) (string, error)

type Config struct {
	// LogLines bounds each run's log.
	LogLines int

	MaxSessions int
	SessionTTL  time.Duration

	// MaxRuns bounds how many runs stay addressable by id.
	MaxRuns int

	Logger *slog.Logger
}

func DefaultConfig() Config {
	return Config{
		LogLines:    DefaultLogLines,
		MaxSessions: DefaultMaxSessions,
		SessionTTL:  DefaultSessionTTL,
		MaxRuns:     DefaultMaxRuns,
		Logger:      slog.Default(),
	}
}

// Session is one browser session. It runs at most one crew at a time.
type Session struct {
	ID string

	state   atomic.Int32
	mu      sync.RWMutex
	current *Run
}

func (s *Session) State() State {
	return State(s.state.Load())
}

// Current returns the latest run, or nil before the first one.
func (s *Session) Current() *Run {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Session) transition(from, to State) error {
	if !CanTransition(from, to) {
		return ErrInvalidTransition
	}
	if !s.state.CompareAndSwap(int32(from), int32(to)) {
		return ErrInvalidTransition
	}
	return nil
}

// Manager owns sessions and their runs.
type Manager struct {
	config   Config
	sessions *expirable.LRU[string, *Session]
	runs     *lru.Cache[string, *Run]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	active map[string]context.CancelFunc
	closed bool

	// busy pins sessions with an executing run so eviction cannot reset them.
	busy map[string]*Session
}

func NewManager(config Config) (*Manager, error) {
	d := DefaultConfig()
	if config.LogLines <= 0 {
		config.LogLines = d.LogLines
	}
	if config.MaxSessions <= 0 {
		config.MaxSessions = d.MaxSessions
	}
	if config.SessionTTL <= 0 {
		config.SessionTTL = d.SessionTTL
	}
	if config.MaxRuns <= 0 {
		config.MaxRuns = d.MaxRuns
	}
	if config.Logger == nil {
		config.Logger = d.Logger
	}

	runs, err := lru.New[string, *Run](config.MaxRuns)
	if err != nil {
		return nil, fmt.Errorf("create run index: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		config:   config,
		sessions: expirable.NewLRU[string, *Session](config.MaxSessions, nil, config.SessionTTL),
		runs:     runs,
		ctx:      ctx,
		cancel:   cancel,
		active:   make(map[string]context.CancelFunc),
		busy:     make(map[string]*Session),
	}, nil
}

// Session returns the session for id, creating it when unknown. An empty id
// gets a fresh session.
func (m *Manager) Session(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionLocked(id)
}

func (m *Manager) sessionLocked(id string) *Session {
	if id != "" {
		if s, ok := m.busy[id]; ok {
			if _, cached := m.sessions.Get(id); !cached {
				m.sessions.Add(id, s)
			}
			return s
		}
		if s, ok := m.sessions.Get(id); ok {
			return s
		}
	} else {
		id = uuid.NewString()
	}
	s := &Session{ID: id}
	m.sessions.Add(id, s)
	return s
}

// Start launches exec as the session's new run. It fails with
// ErrRunInProgress while the session's previous run is still executing.
func (m *Manager) Start(sessionID string, spec Spec, exec Executor) (*Run, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrManagerClosed
	}

	sess := m.sessionLocked(sessionID)
	if _, ok := m.busy[sess.ID]; ok {
		m.mu.Unlock()
		return nil, ErrRunInProgress
	}
	if err := sess.transition(sess.State(), StateRunning); err != nil {
		m.mu.Unlock()
		return nil, ErrRunInProgress
	}

	run := newRun(uuid.NewString(), sess.ID, spec, m.config.LogLines)
	sess.mu.Lock()
	sess.current = run
	sess.mu.Unlock()
	m.runs.Add(run.ID, run)
	m.busy[sess.ID] = sess

	ctx, cancel := context.WithCancel(m.ctx)
	m.active[run.ID] = cancel
	m.wg.Add(1)
	m.mu.Unlock()

	m.config.Logger.Info("run started",
		"run", run.ID, "session", sess.ID, "crew", spec.Crew, "provider", spec.Provider, "model", spec.Model)

	go m.execute(ctx, sess, run, exec)
	return run, nil
}

func (m *Manager) execute(ctx context.Context, sess *Session, run *Run, exec Executor) {
	defer m.wg.Done()

	artifact, err := m.call(ctx, run, exec)
	state := run.finish(artifact, err)

	m.mu.Lock()
	if terr := sess.transition(StateRunning, state); terr != nil {
		m.config.Logger.Error("session state out of sync", "session", sess.ID, "error", terr)
	}
	delete(m.busy, sess.ID)
	if cancel, ok := m.active[run.ID]; ok {
		cancel()
		delete(m.active, run.ID)
	}
	m.mu.Unlock()
	run.release()

	if err != nil {
		m.config.Logger.Warn("run failed", "run", run.ID, "error", err)
		return
	}
	m.config.Logger.Info("run completed", "run", run.ID)
}

func (m *Manager) call(ctx context.Context, run *Run, exec Executor) (artifact string, err error) {
	defer func() {
		if p := recover(); p != nil {
			artifact = ""
			err = cerrors.Newf(cerrors.KindPipelineExecution, "panic in run %s: %v", run.ID, p)
		}
	}()
	return exec(ctx, run)
}

// Run returns a run by id.
func (m *Manager) Run(id string) (*Run, error) {
	run, ok := m.runs.Get(id)
	if !ok {
		return nil, ErrRunNotFound
	}
	return run, nil
}

// Active returns how many runs are executing.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// Shutdown cancels every executing run and waits for them to finish or for
// ctx to expire.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
