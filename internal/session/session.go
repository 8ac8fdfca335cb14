// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package session exposes the workflow engine to out-of-process callers
// over a request/response transport, preserving the engine's synchronous
// handle(checkpoint) -> decision contract internally via channels
// (§4.10).
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/paper-search/internal/workflow"
	"github.com/mesh-intelligence/paper-search/pkg/types"
)

// ErrSessionNotFound is returned when an operation names an unknown
// session id.
var ErrSessionNotFound = errors.New("session not found")

// ErrNoPendingCheckpoint is returned by Decide when the session has no
// checkpoint awaiting a decision.
var ErrNoPendingCheckpoint = errors.New("session has no pending checkpoint")

// checkpointHandler implements workflow.Handler by pausing Handle until
// an external caller supplies a Decision via SetDecision.
type checkpointHandler struct {
	mu         sync.Mutex
	current    *workflow.Checkpoint
	decisionCh chan workflow.Decision
}

func newCheckpointHandler() *checkpointHandler {
	return &checkpointHandler{decisionCh: make(chan workflow.Decision)}
}

func (h *checkpointHandler) Handle(ctx context.Context, ckpt workflow.Checkpoint) (workflow.Decision, error) {
	h.mu.Lock()
	h.current = &ckpt
	h.mu.Unlock()

	select {
	case decision := <-h.decisionCh:
		return decision, nil
	case <-ctx.Done():
		return workflow.Decision{}, ctx.Err()
	}
}

// SetDecision unblocks a pending Handle call.
func (h *checkpointHandler) SetDecision(d workflow.Decision) {
	h.decisionCh <- d
}

func (h *checkpointHandler) hasPendingCheckpoint() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current != nil
}

func (h *checkpointHandler) currentCheckpoint() *workflow.Checkpoint {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

func (h *checkpointHandler) clearCheckpoint() {
	h.mu.Lock()
	h.current = nil
	h.mu.Unlock()
}

func (h *checkpointHandler) checkpointSignature() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current == nil {
		return ""
	}
	return h.current.Signature()
}

// WorkflowSession tracks a single in-flight or completed run.
type WorkflowSession struct {
	ID             string
	Query          string
	PollIntervalS  float64
	DecideTimeoutS float64

	mu           sync.Mutex
	handler      *checkpointHandler
	result       *types.PaperCollection
	err          error
	isComplete   bool
	phase        string
	phaseDetails map[string]any
	phaseUpdated time.Time
	startedAt    time.Time
	cancel       context.CancelFunc
}

func (s *WorkflowSession) updateProgress(phase string, details map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = phase
	s.phaseDetails = details
	s.phaseUpdated = time.Now()
}

// SessionManager creates, drives, and cleans up WorkflowSessions.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*WorkflowSession
}

// NewSessionManager returns an empty SessionManager.
func NewSessionManager() *SessionManager {
	return &SessionManager{sessions: map[string]*WorkflowSession{}}
}

// Create starts a new session running query against cfg in the
// background and returns its id immediately.
func (m *SessionManager) Create(cfg types.AppConfig, query string) (string, error) {
	id := uuid.NewString()
	handler := newCheckpointHandler()

	pollInterval := cfg.SessionPollIntervalS
	if pollInterval <= 0 {
		pollInterval = 0.05
	}
	decideTimeout := cfg.SessionDecideTimeoutS
	if decideTimeout <= 0 {
		decideTimeout = 15.0
	}

	runCtx, cancel := context.WithCancel(context.Background())
	sess := &WorkflowSession{
		ID:             id,
		Query:          query,
		PollIntervalS:  pollInterval,
		DecideTimeoutS: decideTimeout,
		handler:        handler,
		phase:          "created",
		phaseDetails:   map[string]any{},
		startedAt:      time.Now(),
		cancel:         cancel,
	}

	wf, err := workflow.FromConfig(runCtx, cfg,
		workflow.WithCheckpointHandler(handler),
		workflow.WithProgressReporter(sess.updateProgress),
	)
	if err != nil {
		cancel()
		return "", err
	}

	m.mu.Lock()
	m.sessions[id] = sess
	m.mu.Unlock()

	sess.updateProgress("starting", map[string]any{})
	go runWorkflow(runCtx, sess, wf, query)

	return id, nil
}

func runWorkflow(ctx context.Context, sess *WorkflowSession, wf *workflow.SearchWorkflow, query string) {
	result, err := wf.Run(ctx, query)

	sess.mu.Lock()
	if err != nil {
		sess.err = err
	} else {
		sess.result = &result
	}
	sess.isComplete = true
	sess.mu.Unlock()

	if err != nil {
		sess.updateProgress("error", map[string]any{"message": err.Error()})
	} else {
		sess.updateProgress("completed", map[string]any{"paper_count": len(result.Papers)})
	}
}

// Get returns the session with the given id, or ErrSessionNotFound.
func (m *SessionManager) Get(id string) (*WorkflowSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Result returns the completed PaperCollection for a session, or an
// error if the session is unknown, still running, or failed.
func (m *SessionManager) Result(id string) (*types.PaperCollection, error) {
	sess, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if !sess.isComplete {
		return nil, errors.New("session not complete yet")
	}
	if sess.err != nil {
		return nil, sess.err
	}
	if sess.result == nil {
		return nil, errors.New("no results available")
	}
	return sess.result, nil
}

// DecideTimeout returns how long Decide should wait for the session to
// advance past the checkpoint it is being handed a decision for.
func (m *SessionManager) DecideTimeout(id string) time.Duration {
	sess, err := m.Get(id)
	if err != nil {
		return 15 * time.Second
	}
	return pollToDuration(sess.DecideTimeoutS)
}

func pollToDuration(seconds float64) time.Duration {
	if seconds <= 0 {
		seconds = 15.0
	}
	return time.Duration(seconds * float64(time.Second))
}

// WaitForCheckpointOrComplete blocks until the session hits a checkpoint
// or completes, up to timeout, then returns a Snapshot.
func (m *SessionManager) WaitForCheckpointOrComplete(id string, timeout time.Duration) (Snapshot, error) {
	sess, err := m.Get(id)
	if err != nil {
		return Snapshot{}, err
	}

	deadline := time.Now().Add(timeout)
	for {
		sess.mu.Lock()
		complete := sess.isComplete
		sess.mu.Unlock()
		if complete || sess.handler.hasPendingCheckpoint() {
			break
		}
		if time.Now().After(deadline) {
			break
		}
		time.Sleep(pollInterval(sess.PollIntervalS))
	}
	return buildSnapshot(sess), nil
}

// Decide submits a Decision to the session's pending checkpoint and
// waits for the next distinct checkpoint (or completion) before
// returning, so callers never observe the same checkpoint twice.
func (m *SessionManager) Decide(id string, decision workflow.Decision, timeout time.Duration) (Snapshot, error) {
	sess, err := m.Get(id)
	if err != nil {
		return Snapshot{}, err
	}
	sess.mu.Lock()
	complete := sess.isComplete
	sess.mu.Unlock()
	if complete {
		return Snapshot{}, ErrNoPendingCheckpoint
	}
	if !sess.handler.hasPendingCheckpoint() {
		return Snapshot{}, ErrNoPendingCheckpoint
	}

	previousSig := sess.handler.checkpointSignature()
	sess.handler.clearCheckpoint()
	sess.handler.SetDecision(decision)

	deadline := time.Now().Add(timeout)
	for {
		sess.mu.Lock()
		complete := sess.isComplete
		sess.mu.Unlock()
		if complete {
			break
		}
		currentSig := sess.handler.checkpointSignature()
		if currentSig != "" && currentSig != previousSig {
			break
		}
		if time.Now().After(deadline) {
			break
		}
		time.Sleep(pollInterval(sess.PollIntervalS))
	}
	return buildSnapshot(sess), nil
}

func pollInterval(seconds float64) time.Duration {
	if seconds <= 0 {
		seconds = 0.05
	}
	return time.Duration(seconds * float64(time.Second))
}

// Cleanup cancels the session's background run, if any, and removes it.
func (m *SessionManager) Cleanup(id string) {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok && sess.cancel != nil {
		sess.cancel()
	}
}
