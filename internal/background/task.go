package background

import (
	"context"
	"sort"
	"sync"
	"time"
)

// TaskStatus represents the status of a background task
type TaskStatus string

const (
	TaskStatusAccepted   TaskStatus = "ACCEPTED"
	TaskStatusProcessing TaskStatus = "PROCESSING"
	TaskStatusSuccess    TaskStatus = "SUCCESS"
	TaskStatusFailure    TaskStatus = "FAILURE"
)

// Terminal reports whether the task has finished.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusSuccess || s == TaskStatusFailure
}

// TaskType represents the type of background task
type TaskType string

const (
	TaskTypeGenerate TaskType = "generate"
)

// TaskResult represents the result of a background task
type TaskResult struct {
	ProcessID      string                 `json:"processId"`
	RequestID      string                 `json:"requestId,omitempty"`
	Type           TaskType               `json:"type"`
	Status         TaskStatus             `json:"status"`
	Data           *GenerateTaskData      `json:"data,omitempty"`
	Error          string                 `json:"error,omitempty"`
	ErrorCode      string                 `json:"errorCode,omitempty"`
	CreatedAt      time.Time              `json:"createdAt"`
	CompletedAt    *time.Time             `json:"completedAt,omitempty"`
	ProcessingTime *time.Duration         `json:"processingTime,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`

	// Artifact is served by the download endpoint and never serialized.
	Artifact *Artifact `json:"-"`
}

// Artifact is the file a finished task produced: a PDF, or annotated LaTeX
// source when compilation could not succeed.
type Artifact struct {
	Name        string
	ContentType string
	Data        []byte
	Location    string
}

func (r *TaskResult) clone() *TaskResult {
	cp := *r
	if r.Metadata != nil {
		cp.Metadata = make(map[string]interface{}, len(r.Metadata))
		for k, v := range r.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

// TaskStore defines the interface for storing and retrieving task results.
// Implementations hand out copies; callers write back with Update.
type TaskStore interface {
	// Store stores a task result
	Store(ctx context.Context, result *TaskResult) error

	// Get retrieves a task result by process ID
	Get(ctx context.Context, processID string) (*TaskResult, error)

	// Update updates a task result
	Update(ctx context.Context, result *TaskResult) error

	// Delete removes a task result
	Delete(ctx context.Context, processID string) error

	// Cleanup removes finished results older than maxAge and reports how
	// many were removed
	Cleanup(ctx context.Context, maxAge time.Duration) (int, error)

	// List returns all task results (for monitoring)
	List(ctx context.Context) ([]*TaskResult, error)
}

// InMemoryTaskStore implements TaskStore using in-memory storage
type InMemoryTaskStore struct {
	mu    sync.RWMutex
	tasks map[string]*TaskResult
	now   func() time.Time
}

// NewInMemoryTaskStore creates a new in-memory task store
func NewInMemoryTaskStore() *InMemoryTaskStore {
	return &InMemoryTaskStore{
		tasks: make(map[string]*TaskResult),
		now:   time.Now,
	}
}

func (s *InMemoryTaskStore) Store(_ context.Context, result *TaskResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks[result.ProcessID] = result.clone()
	return nil
}

func (s *InMemoryTaskStore) Get(_ context.Context, processID string) (*TaskResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result, exists := s.tasks[processID]
	if !exists {
		return nil, ErrTaskNotFound
	}
	return result.clone(), nil
}

func (s *InMemoryTaskStore) Update(_ context.Context, result *TaskResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[result.ProcessID]; !exists {
		return ErrTaskNotFound
	}
	s.tasks[result.ProcessID] = result.clone()
	return nil
}

func (s *InMemoryTaskStore) Delete(_ context.Context, processID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[processID]; !exists {
		return ErrTaskNotFound
	}
	delete(s.tasks, processID)
	return nil
}

// Cleanup never removes a task that is still queued or running.
func (s *InMemoryTaskStore) Cleanup(_ context.Context, maxAge time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-maxAge)
	removed := 0
	for processID, result := range s.tasks {
		if result.Status.Terminal() && result.CreatedAt.Before(cutoff) {
			delete(s.tasks, processID)
			removed++
		}
	}
	return removed, nil
}

// List returns results ordered by creation time.
func (s *InMemoryTaskStore) List(_ context.Context) ([]*TaskResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]*TaskResult, 0, len(s.tasks))
	for _, result := range s.tasks {
		results = append(results, result.clone())
	}
	sort.Slice(results, func(i, j int) bool { return results[i].CreatedAt.Before(results[j].CreatedAt) })
	return results, nil
}

// Common errors
var (
	ErrTaskNotFound  = NewTaskError("task not found", "TASK_NOT_FOUND")
	ErrQueueFull     = NewTaskError("task queue is full", "QUEUE_FULL")
	ErrNotRunning    = NewTaskError("task manager is not healthy", "TASK_MANAGER_UNAVAILABLE")
	ErrDuplicateTask = NewTaskError("task already exists", "DUPLICATE_TASK")
)

// TaskError represents a background task error
type TaskError struct {
	Message string
	Code    string
}

func NewTaskError(message, code string) *TaskError {
	return &TaskError{
		Message: message,
		Code:    code,
	}
}

func (e *TaskError) Error() string {
	return e.Message
}
