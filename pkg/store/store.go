// Package store provides in-memory storage for named scripts and their
// executions.
package store

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lemonberrylabs/uriel/pkg/types"
)

// ExecutionState represents the state of a script execution.
type ExecutionState string

const (
	ExecutionActive    ExecutionState = "ACTIVE"
	ExecutionSucceeded ExecutionState = "SUCCEEDED"
	ExecutionFailed    ExecutionState = "FAILED"
	ExecutionCancelled ExecutionState = "CANCELLED"
)

// Script is a stored source text.
type Script struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	RevisionID  string    `json:"revisionId"`
	CreateTime  time.Time `json:"createTime"`
	UpdateTime  time.Time `json:"updateTime"`
	Source      string    `json:"source"`
}

// Execution is one run of a stored script.
type Execution struct {
	ID         string          `json:"id"`
	Script     string          `json:"script"`
	State      ExecutionState  `json:"state"`
	Argument   types.Value     `json:"argument"`
	Result     types.Value     `json:"result"`
	Error      *ExecutionError `json:"error,omitempty"`
	StartTime  time.Time       `json:"startTime"`
	EndTime    time.Time       `json:"endTime,omitempty"`
	RevisionID string          `json:"revisionId"`
}

// ExecutionError describes why an execution failed.
type ExecutionError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ErrNotFound is wrapped by every lookup failure.
var ErrNotFound = fmt.Errorf("not found")

// ErrExists is returned when creating a script whose name is taken.
var ErrExists = fmt.Errorf("already exists")

// ErrNotActive is returned when cancelling a finished execution.
var ErrNotActive = fmt.Errorf("not active")

// Store is a thread-safe in-memory storage for scripts and executions.
type Store struct {
	mu         sync.RWMutex
	scripts    map[string]*Script
	executions map[string]*Execution

	revCounter int64
}

// New creates a new empty store.
func New() *Store {
	return &Store{
		scripts:    make(map[string]*Script),
		executions: make(map[string]*Execution),
	}
}

// CreateScript stores a new script.
func (s *Store) CreateScript(name, source, description string) (*Script, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.scripts[name]; exists {
		return nil, fmt.Errorf("script %q %w", name, ErrExists)
	}

	now := time.Now()
	sc := &Script{
		Name:        name,
		Description: description,
		RevisionID:  s.nextRevision(),
		CreateTime:  now,
		UpdateTime:  now,
		Source:      source,
	}
	s.scripts[name] = sc
	return sc.clone(), nil
}

// GetScript retrieves a script by name.
func (s *Store) GetScript(name string) (*Script, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sc, ok := s.scripts[name]
	if !ok {
		return nil, fmt.Errorf("script %q %w", name, ErrNotFound)
	}
	return sc.clone(), nil
}

// ListScripts returns every script sorted by name.
func (s *Store) ListScripts() []*Script {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Script, 0, len(s.scripts))
	for _, sc := range s.scripts {
		result = append(result, sc.clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// UpdateScript replaces a script's source and starts a new revision.
func (s *Store) UpdateScript(name, source, description string) (*Script, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, ok := s.scripts[name]
	if !ok {
		return nil, fmt.Errorf("script %q %w", name, ErrNotFound)
	}

	sc.Source = source
	if description != "" {
		sc.Description = description
	}
	sc.RevisionID = s.nextRevision()
	sc.UpdateTime = time.Now()
	return sc.clone(), nil
}

// DeleteScript removes a script and the executions recorded for it.
func (s *Store) DeleteScript(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.scripts[name]; !ok {
		return fmt.Errorf("script %q %w", name, ErrNotFound)
	}
	delete(s.scripts, name)
	for id, exec := range s.executions {
		if exec.Script == name {
			delete(s.executions, id)
		}
	}
	return nil
}

// CreateExecution records a new active execution of a script.
func (s *Store) CreateExecution(script string, argument types.Value) (*Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, ok := s.scripts[script]
	if !ok {
		return nil, fmt.Errorf("script %q %w", script, ErrNotFound)
	}

	exec := &Execution{
		ID:         uuid.NewString(),
		Script:     script,
		State:      ExecutionActive,
		Argument:   argument,
		Result:     types.Null,
		StartTime:  time.Now(),
		RevisionID: sc.RevisionID,
	}
	s.executions[exec.ID] = exec
	return exec.clone(), nil
}

// GetExecution retrieves an execution by ID.
func (s *Store) GetExecution(id string) (*Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	exec, ok := s.executions[id]
	if !ok {
		return nil, fmt.Errorf("execution %q %w", id, ErrNotFound)
	}
	return exec.clone(), nil
}

// ListExecutions returns the executions of a script, oldest first.
func (s *Store) ListExecutions(script string) []*Execution {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Execution
	for _, exec := range s.executions {
		if exec.Script == script {
			result = append(result, exec.clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].StartTime.Equal(result[j].StartTime) {
			return result[i].ID < result[j].ID
		}
		return result[i].StartTime.Before(result[j].StartTime)
	})
	return result
}

// CompleteExecution marks an execution as succeeded with a result. A
// cancelled execution keeps its state.
func (s *Store) CompleteExecution(id string, result types.Value) error {
	return s.finish(id, func(exec *Execution) {
		exec.State = ExecutionSucceeded
		exec.Result = result
	})
}

// FailExecution marks an execution as failed with an error.
func (s *Store) FailExecution(id string, err error) error {
	return s.finish(id, func(exec *Execution) {
		exec.State = ExecutionFailed
		exec.Error = &ExecutionError{Kind: types.KindOf(err).String(), Message: err.Error()}
	})
}

// CancelExecution marks an active execution as cancelled.
func (s *Store) CancelExecution(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	exec, ok := s.executions[id]
	if !ok {
		return fmt.Errorf("execution %q %w", id, ErrNotFound)
	}
	if exec.State != ExecutionActive {
		return fmt.Errorf("execution %q is %w (state: %s)", id, ErrNotActive, exec.State)
	}
	exec.State = ExecutionCancelled
	exec.EndTime = time.Now()
	return nil
}

func (s *Store) finish(id string, set func(*Execution)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	exec, ok := s.executions[id]
	if !ok {
		return fmt.Errorf("execution %q %w", id, ErrNotFound)
	}
	if exec.State != ExecutionActive {
		return nil
	}
	set(exec)
	exec.EndTime = time.Now()
	return nil
}

func (s *Store) nextRevision() string {
	s.revCounter++
	return fmt.Sprintf("%06d-%s", s.revCounter, strings.Split(uuid.NewString(), "-")[0])
}

func (sc *Script) clone() *Script {
	c := *sc
	return &c
}

func (e *Execution) clone() *Execution {
	c := *e
	if e.Error != nil {
		errCopy := *e.Error
		c.Error = &errCopy
	}
	return &c
}
