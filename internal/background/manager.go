package background

import (
	"context"
	"fmt"
	"sync"
	"time"

	"resumetex/internal/config"
	"resumetex/internal/logging"
	"resumetex/internal/logging/types"
	"resumetex/internal/pipeline"
)

// Task manager configuration constants
const (
	// Default configuration values
	DefaultMaxWorkers   = 10
	DefaultMaxQueueSize = 100

	// Minimum configuration values to prevent misconfiguration
	MinWorkers   = 1
	MinQueueSize = 1

	// Maximum configuration values for safety
	MaxWorkers   = 1000
	MaxQueueSize = 10000
)

// TaskManager defines the interface for managing background tasks
type TaskManager interface {
	// Start starts the task manager
	Start(ctx context.Context) error

	// Stop stops the task manager gracefully
	Stop(ctx context.Context) error

	// SubmitGenerateTask queues a generation for background processing
	SubmitGenerateTask(ctx context.Context, processID string, request GenerateRequest) error

	// GetTaskResult retrieves the result of a task by process ID
	GetTaskResult(ctx context.Context, processID string) (*TaskResult, error)

	// GetTaskStatus retrieves the status of a task by process ID
	GetTaskStatus(ctx context.Context, processID string) (TaskStatus, error)

	// ListTasks lists all active tasks (for monitoring)
	ListTasks(ctx context.Context) ([]*TaskResult, error)

	// Stats reports queue occupancy
	Stats() Stats

	// IsHealthy checks if the task manager is healthy
	IsHealthy() bool
}

// Stats is a point-in-time view of the worker pool.
type Stats struct {
	Workers    int  `json:"workers"`
	QueueSize  int  `json:"queueSize"`
	QueueDepth int  `json:"queueDepth"`
	Running    bool `json:"running"`
}

// TaskManagerImpl implements the TaskManager interface
type TaskManagerImpl struct {
	config       *config.Config
	store        TaskStore
	generator    *Generator
	logger       *TaskCompletionLogger
	appLogger    types.Logger
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	mu           sync.RWMutex
	running      bool
	taskChan     chan *TaskExecution
	maxWorkers   int
	maxQueueSize int
}

// TaskExecution represents a task execution context
type TaskExecution struct {
	ProcessID   string
	Type        TaskType
	ExecuteFunc func(context.Context) (*GenerateTaskData, *Artifact, error)
}

// validateTaskManagerConfig validates and returns safe configuration values
func validateTaskManagerConfig(cfg *config.Config) (maxWorkers, maxQueueSize int, err error) {
	maxWorkers = cfg.Workers.PoolSize
	if maxWorkers <= 0 {
		maxWorkers = DefaultMaxWorkers
	} else if maxWorkers < MinWorkers {
		return 0, 0, fmt.Errorf("worker pool size (%d) is below minimum (%d)", maxWorkers, MinWorkers)
	} else if maxWorkers > MaxWorkers {
		return 0, 0, fmt.Errorf("worker pool size (%d) exceeds maximum (%d)", maxWorkers, MaxWorkers)
	}

	maxQueueSize = cfg.Workers.QueueSize
	if maxQueueSize <= 0 {
		maxQueueSize = DefaultMaxQueueSize
	} else if maxQueueSize < MinQueueSize {
		return 0, 0, fmt.Errorf("queue size (%d) is below minimum (%d)", maxQueueSize, MinQueueSize)
	} else if maxQueueSize > MaxQueueSize {
		return 0, 0, fmt.Errorf("queue size (%d) exceeds maximum (%d)", maxQueueSize, MaxQueueSize)
	}

	return maxWorkers, maxQueueSize, nil
}

// NewTaskManager creates a new task manager. completion may be nil, in which
// case completions are only logged.
func NewTaskManager(cfg *config.Config, generator *Generator, completion *TaskCompletionLogger) *TaskManagerImpl {
	logger := logging.GetGlobalLogger()

	maxWorkers, maxQueueSize, err := validateTaskManagerConfig(cfg)
	if err != nil {
		logger.Warn("Task manager configuration validation failed, using defaults", map[string]interface{}{
			"error": err.Error(),
		})
		maxWorkers = DefaultMaxWorkers
		maxQueueSize = DefaultMaxQueueSize
	}

	logger.Info("Task manager configuration initialized", map[string]interface{}{
		"max_workers":    maxWorkers,
		"max_queue_size": maxQueueSize,
		"using_defaults": err != nil,
	})

	if completion == nil {
		completion = NewTaskCompletionLogger()
	}

	return &TaskManagerImpl{
		config:       cfg,
		store:        NewInMemoryTaskStore(),
		generator:    generator,
		logger:       completion,
		appLogger:    logger,
		maxWorkers:   maxWorkers,
		maxQueueSize: maxQueueSize,
		taskChan:     make(chan *TaskExecution, maxQueueSize),
	}
}

// Start starts the task manager
func (tm *TaskManagerImpl) Start(ctx context.Context) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.running {
		return fmt.Errorf("task manager already running")
	}

	tm.ctx, tm.cancel = context.WithCancel(ctx)
	tm.running = true

	for i := 0; i < tm.maxWorkers; i++ {
		tm.wg.Add(1)
		go tm.worker(i)
	}

	tm.wg.Add(1)
	go tm.cleanupRoutine()

	tm.appLogger.Info("Task manager started", map[string]interface{}{
		"max_workers": tm.maxWorkers,
	})
	return nil
}

// Stop stops the task manager gracefully. Queued tasks that no worker has
// picked up are abandoned.
func (tm *TaskManagerImpl) Stop(ctx context.Context) error {
	tm.mu.Lock()
	if !tm.running {
		tm.mu.Unlock()
		return nil
	}
	tm.appLogger.Info("Stopping task manager...")
	tm.running = false
	tm.cancel()
	close(tm.taskChan)
	tm.mu.Unlock()

	done := make(chan struct{})
	go func() {
		tm.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		tm.appLogger.Info("Task manager stopped gracefully")
	case <-ctx.Done():
		tm.appLogger.Warn("Task manager shutdown timed out")
	}
	return nil
}

// SubmitGenerateTask queues a generation task.
func (tm *TaskManagerImpl) SubmitGenerateTask(ctx context.Context, processID string, request GenerateRequest) error {
	if tm.generator == nil {
		return fmt.Errorf("no generator configured")
	}

	result := &TaskResult{
		ProcessID: processID,
		RequestID: request.RequestID,
		Type:      TaskTypeGenerate,
		Status:    TaskStatusAccepted,
		CreatedAt: time.Now(),
		Metadata: map[string]interface{}{
			"job_description_length": len(request.JobDescription),
			"master_resume_length":   len(request.MasterResume),
		},
	}

	return tm.submit(ctx, result, func(execCtx context.Context) (*GenerateTaskData, *Artifact, error) {
		return tm.generator.Execute(execCtx, processID, request)
	})
}

func (tm *TaskManagerImpl) submit(ctx context.Context, result *TaskResult, fn func(context.Context) (*GenerateTaskData, *Artifact, error)) error {
	// the read lock keeps Stop from closing taskChan mid-send
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	if !tm.running {
		return ErrNotRunning
	}
	if _, err := tm.store.Get(ctx, result.ProcessID); err == nil {
		return ErrDuplicateTask
	}
	if err := tm.store.Store(ctx, result); err != nil {
		return fmt.Errorf("failed to store task result: %w", err)
	}

	execution := &TaskExecution{
		ProcessID:   result.ProcessID,
		Type:        result.Type,
		ExecuteFunc: fn,
	}

	select {
	case tm.taskChan <- execution:
		tm.logger.LogTaskAccepted(result.ProcessID, result.Type)
		return nil
	case <-ctx.Done():
		_ = tm.store.Delete(context.Background(), result.ProcessID)
		return ctx.Err()
	default:
		_ = tm.store.Delete(context.Background(), result.ProcessID)
		return ErrQueueFull
	}
}

// GetTaskResult retrieves the result of a task by process ID
func (tm *TaskManagerImpl) GetTaskResult(ctx context.Context, processID string) (*TaskResult, error) {
	return tm.store.Get(ctx, processID)
}

// GetTaskStatus retrieves the status of a task by process ID
func (tm *TaskManagerImpl) GetTaskStatus(ctx context.Context, processID string) (TaskStatus, error) {
	result, err := tm.store.Get(ctx, processID)
	if err != nil {
		return "", err
	}
	return result.Status, nil
}

// ListTasks lists all active tasks (for monitoring)
func (tm *TaskManagerImpl) ListTasks(ctx context.Context) ([]*TaskResult, error) {
	return tm.store.List(ctx)
}

func (tm *TaskManagerImpl) Stats() Stats {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return Stats{
		Workers:    tm.maxWorkers,
		QueueSize:  tm.maxQueueSize,
		QueueDepth: len(tm.taskChan),
		Running:    tm.running,
	}
}

// IsHealthy checks if the task manager is healthy
func (tm *TaskManagerImpl) IsHealthy() bool {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return tm.running && tm.ctx.Err() == nil
}

// worker processes tasks from the task channel
func (tm *TaskManagerImpl) worker(workerID int) {
	defer tm.wg.Done()

	for {
		select {
		case <-tm.ctx.Done():
			return
		case task, ok := <-tm.taskChan:
			if !ok {
				return
			}
			tm.processTask(workerID, task)
		}
	}
}

// processTask processes a single task
func (tm *TaskManagerImpl) processTask(workerID int, task *TaskExecution) {
	startTime := time.Now()

	tm.appLogger.Info("Processing task", map[string]interface{}{
		"worker_id":  workerID,
		"process_id": task.ProcessID,
		"task_type":  task.Type,
	})

	result, err := tm.store.Get(context.Background(), task.ProcessID)
	if err != nil {
		tm.appLogger.Error("Task vanished before processing", map[string]interface{}{
			"process_id": task.ProcessID,
			"error":      err.Error(),
		})
		return
	}
	result.Status = TaskStatusProcessing
	if err := tm.store.Update(context.Background(), result); err != nil {
		tm.appLogger.Error("Failed to update task status to processing", map[string]interface{}{
			"error": err.Error(),
		})
	}
	tm.logger.LogTaskStart(task.ProcessID, task.Type)

	// the task outlives the HTTP request that created it
	taskCtx, cancel := context.WithTimeout(tm.ctx, tm.taskTimeout())
	data, artifact, execErr := task.ExecuteFunc(taskCtx)
	cancel()

	processingTime := time.Since(startTime)
	completedAt := time.Now()
	result.ProcessingTime = &processingTime
	result.CompletedAt = &completedAt

	if execErr != nil {
		result.Status = TaskStatusFailure
		result.Error = execErr.Error()
		result.ErrorCode = string(pipeline.Kind(execErr))
		tm.logger.LogTaskError(task.ProcessID, task.Type, execErr)
	} else {
		result.Status = TaskStatusSuccess
		result.Data = data
		result.Artifact = artifact
		tm.logger.LogTaskSuccess(task.ProcessID, task.Type, processingTime)
	}

	if err := tm.store.Update(context.Background(), result); err != nil {
		tm.appLogger.Error("Failed to store task result", map[string]interface{}{
			"error": err.Error(),
		})
	}

	if err := tm.logger.LogTaskCompletion(result); err != nil {
		tm.appLogger.Error("Failed to log task completion", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (tm *TaskManagerImpl) taskTimeout() time.Duration {
	if tm.config.BackgroundTasks.TaskTimeout > 0 {
		return tm.config.BackgroundTasks.TaskTimeout
	}
	return 5 * time.Minute
}

// cleanupRoutine periodically cleans up old task results
func (tm *TaskManagerImpl) cleanupRoutine() {
	defer tm.wg.Done()

	interval := tm.config.BackgroundTasks.CleanupInterval
	if interval <= 0 {
		interval = time.Hour
	}
	maxAge := tm.config.BackgroundTasks.MaxTaskAge
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-tm.ctx.Done():
			return
		case <-ticker.C:
			removed, err := tm.store.Cleanup(context.Background(), maxAge)
			if err != nil {
				tm.appLogger.Error("Failed to cleanup old task results", map[string]interface{}{
					"error": err.Error(),
				})
				continue
			}
			if removed > 0 {
				tm.appLogger.Debug("Removed expired task results", map[string]interface{}{
					"removed": removed,
				})
			}
		}
	}
}
