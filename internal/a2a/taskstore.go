package a2a

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// DefaultMaxTasks bounds how many tasks a TaskStore keeps.
const DefaultMaxTasks = 256

// NewID returns a random identifier for messages, contexts and artifacts.
func NewID() string {
	return uuid.NewString()
}

// TaskStore is a concurrency-safe in-memory record of editorial runs. Tasks
// are kept in insertion order for deterministic pagination. Once the store
// is full the oldest finished task is evicted to make room.
type TaskStore struct {
	mu       sync.RWMutex
	tasks    map[string]*Task
	orderIDs []string
	limit    int
}

// NewTaskStore returns a TaskStore holding at most limit tasks. A limit of
// zero or less uses DefaultMaxTasks.
func NewTaskStore(limit int) *TaskStore {
	if limit <= 0 {
		limit = DefaultMaxTasks
	}
	return &TaskStore{
		tasks: make(map[string]*Task),
		limit: limit,
	}
}

// Create stores a new task. It fails if the ID is taken or the store is full
// of unfinished tasks.
func (s *TaskStore) Create(task Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[task.ID]; exists {
		return fmt.Errorf("a2a: task %q already exists", task.ID)
	}
	if len(s.orderIDs) >= s.limit && !s.evictLocked() {
		return fmt.Errorf("a2a: task store full (%d running)", len(s.orderIDs))
	}
	s.tasks[task.ID] = deepCopyTask(&task)
	s.orderIDs = append(s.orderIDs, task.ID)
	return nil
}

// evictLocked drops the oldest task in a terminal state.
func (s *TaskStore) evictLocked() bool {
	for i, id := range s.orderIDs {
		if s.tasks[id].Status.State.IsTerminal() {
			delete(s.tasks, id)
			s.orderIDs = slices.Delete(s.orderIDs, i, i+1)
			return true
		}
	}
	return false
}

// Get returns a copy of the task with the given ID. A non-nil historyLength
// keeps only that many of the most recent history messages.
func (s *TaskStore) Get(id string, historyLength *int) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("a2a: task %q: %w", id, ErrTaskNotFound)
	}
	out := deepCopyTask(t)
	if historyLength != nil && len(out.History) > *historyLength {
		out.History = out.History[len(out.History)-max(*historyLength, 0):]
	}
	return out, nil
}

// Update applies fn to the stored task under the write lock and returns a
// copy of the result.
func (s *TaskStore) Update(id string, fn func(*Task)) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("a2a: task %q: %w", id, ErrTaskNotFound)
	}
	fn(t)
	return deepCopyTask(t), nil
}

// Len returns the number of stored tasks.
func (s *TaskStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orderIDs)
}

// List returns tasks matching the filter.
//
// PageToken is the ID of the last task of the previous page. PageSize <= 0
// returns every match. Artifacts are stripped unless IncludeArtifacts is set.
func (s *TaskStore) List(filter ListTasksRequest) (*ListTasksResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	startIdx := 0
	if filter.PageToken != "" {
		i := slices.Index(s.orderIDs, filter.PageToken)
		if i < 0 {
			return nil, fmt.Errorf("a2a: page token %q: %w", filter.PageToken, ErrInvalidParams)
		}
		startIdx = i + 1
	}

	total := 0
	matched := []Task{}
	for i, id := range s.orderIDs {
		t := s.tasks[id]
		if !matchesFilter(t, filter) {
			continue
		}
		total++
		if i < startIdx {
			continue
		}
		c := deepCopyTask(t)
		if !filter.IncludeArtifacts {
			c.Artifacts = nil
		}
		matched = append(matched, *c)
	}

	var next string
	if filter.PageSize > 0 && len(matched) > filter.PageSize {
		next = matched[filter.PageSize-1].ID
		matched = matched[:filter.PageSize]
	}

	return &ListTasksResponse{
		Tasks:         matched,
		TotalSize:     total,
		NextPageToken: next,
	}, nil
}

func matchesFilter(t *Task, filter ListTasksRequest) bool {
	if filter.ContextID != "" && t.ContextID != filter.ContextID {
		return false
	}
	if filter.Status != "" && string(t.Status.State) != filter.Status {
		return false
	}
	return true
}

func deepCopyTask(src *Task) *Task {
	dst := *src

	if src.Artifacts != nil {
		dst.Artifacts = make([]Artifact, len(src.Artifacts))
		for i, a := range src.Artifacts {
			a.Parts = copyParts(a.Parts)
			dst.Artifacts[i] = a
		}
	}
	if src.History != nil {
		dst.History = make([]Message, len(src.History))
		for i, m := range src.History {
			dst.History[i] = copyMessage(m)
		}
	}
	dst.Metadata = copyRaw(src.Metadata)
	if src.Status.Message != nil {
		m := copyMessage(*src.Status.Message)
		dst.Status.Message = &m
	}
	return &dst
}

func copyMessage(src Message) Message {
	dst := src
	dst.Parts = copyParts(src.Parts)
	dst.Metadata = copyRaw(src.Metadata)
	return dst
}

func copyParts(src []Part) []Part {
	if src == nil {
		return nil
	}
	dst := make([]Part, len(src))
	for i, p := range src {
		p.Data = copyRaw(p.Data)
		dst[i] = p
	}
	return dst
}

func copyRaw(src json.RawMessage) json.RawMessage {
	if src == nil {
		return nil
	}
	return append(json.RawMessage(nil), src...)
}
