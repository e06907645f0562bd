package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const (
	defaultMaxRetries    = 3
	defaultBaseDelay     = 5 * time.Second
	defaultQueueTimeout  = 5 * time.Second
	defaultDelayedPoll   = 10 * time.Second
	defaultMetricsPrefix = "spacemania:queue:metrics"

	cleanupTimeout = 5 * time.Second
)

// RedisQueue implements Queue on a Redis list (ready tasks), a sorted set
// scored by execute time (delayed tasks) and a processing list that holds a
// task while its handler runs.
type RedisQueue struct {
	client          *redis.Client
	mainQueue       string
	delayedQueue    string
	processingQueue string
	retryManager    *RetryManager
	dlqHandler      DLQHandler
	config          *RedisQueueConfig
	stopChan        chan struct{}
	stopOnce        sync.Once
	wg              sync.WaitGroup
}

// RedisQueueConfig contains configuration for RedisQueue
type RedisQueueConfig struct {
	MainQueue       string
	DelayedQueue    string
	ProcessingQueue string
	DLQ             string

	MaxRetries    int
	BaseDelay     time.Duration
	QueueTimeout  time.Duration
	DelayedPoll   time.Duration
	EnableDLQ     bool
	EnableMetrics bool
}

// DefaultRedisQueueConfig returns default configuration
func DefaultRedisQueueConfig() *RedisQueueConfig {
	return &RedisQueueConfig{
		MainQueue:       "spacemania:tasks",
		DelayedQueue:    "spacemania:tasks:delayed",
		ProcessingQueue: "spacemania:tasks:processing",
		DLQ:             "spacemania:dlq",
		MaxRetries:      defaultMaxRetries,
		BaseDelay:       defaultBaseDelay,
		QueueTimeout:    defaultQueueTimeout,
		DelayedPoll:     defaultDelayedPoll,
		EnableDLQ:       true,
		EnableMetrics:   true,
	}
}

// NewRedisQueue creates a queue on an existing client. Nil retry manager and
// DLQ handler are built from cfg.
func NewRedisQueue(client *redis.Client, cfg *RedisQueueConfig, retryManager *RetryManager, dlqHandler DLQHandler) *RedisQueue {
	if cfg == nil {
		cfg = DefaultRedisQueueConfig()
	}
	if cfg.QueueTimeout <= 0 {
		cfg.QueueTimeout = defaultQueueTimeout
	}
	if cfg.DelayedPoll <= 0 {
		cfg.DelayedPoll = defaultDelayedPoll
	}

	if retryManager == nil {
		retryManager = NewRetryManager(cfg.MaxRetries, cfg.BaseDelay)
	}

	if dlqHandler == nil && cfg.EnableDLQ {
		dlqHandler = NewDefaultDLQHandler(client, cfg.DLQ, cfg.MainQueue)
	}

	logrus.WithFields(logrus.Fields{
		"main":    cfg.MainQueue,
		"delayed": cfg.DelayedQueue,
		"dlq":     cfg.DLQ,
	}).Info("RedisQueue initialized")

	return &RedisQueue{
		client:          client,
		mainQueue:       cfg.MainQueue,
		delayedQueue:    cfg.DelayedQueue,
		processingQueue: cfg.ProcessingQueue,
		retryManager:    retryManager,
		dlqHandler:      dlqHandler,
		config:          cfg,
		stopChan:        make(chan struct{}),
	}
}

// Publish sends a task to the main list, or to the delayed set when it is
// scheduled in the future.
func (r *RedisQueue) Publish(ctx context.Context, task *Task) error {
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}

	r.applyDefaults(task)
	if err := task.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	taskData, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	if task.ExecuteAt.After(time.Now()) {
		err = r.client.ZAdd(ctx, r.delayedQueue, &redis.Z{
			Score:  float64(task.ExecuteAt.UnixNano()) / 1e9,
			Member: taskData,
		}).Err()
		if err != nil {
			return fmt.Errorf("failed to publish delayed task: %w", err)
		}
		r.incrementMetric(ctx, "tasks_delayed")
		return nil
	}

	if err := r.client.LPush(ctx, r.mainQueue, taskData).Err(); err != nil {
		return fmt.Errorf("failed to publish task: %w", err)
	}
	r.incrementMetric(ctx, "tasks_queued")
	return nil
}

// Subscribe starts the consumer and the delayed-task mover. It returns
// immediately; Close or ctx cancellation stops both. Tasks left in the
// processing list by a consumer that stopped mid-handler are delivered again.
func (r *RedisQueue) Subscribe(ctx context.Context, handler func(*Task) error) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	recovered, err := r.RequeueProcessing(ctx)
	if err != nil {
		return err
	}
	if recovered > 0 {
		logrus.WithField("count", recovered).Warn("Requeued tasks left in the processing queue")
	}

	r.wg.Add(2)
	go r.processDelayedTasks(ctx)
	go r.processMainQueue(ctx, handler)

	logrus.Info("RedisQueue subscriber started")
	return nil
}

func (r *RedisQueue) processMainQueue(ctx context.Context, handler func(*Task) error) {
	defer r.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopChan:
			return
		default:
			if _, err := r.ProcessNext(ctx, handler); err != nil && ctx.Err() == nil {
				logrus.WithError(err).Error("Error processing task")
				time.Sleep(time.Second)
			}
		}
	}
}

// ProcessNext blocks up to the queue timeout for one task and runs handler
// on it. It reports whether a task was taken.
func (r *RedisQueue) ProcessNext(ctx context.Context, handler func(*Task) error) (bool, error) {
	taskData, err := r.client.BRPopLPush(ctx, r.mainQueue, r.processingQueue, r.config.QueueTimeout).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to move task to processing queue: %w", err)
	}

	// an unsettled task stays in the processing list for RequeueProcessing
	settled := false
	defer func() {
		if !settled {
			return
		}
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
		defer cancel()
		if err := r.client.LRem(cleanupCtx, r.processingQueue, 1, taskData).Err(); err != nil {
			logrus.WithError(err).Warn("Failed to remove task from processing queue")
		}
	}()

	var task Task
	if err := json.Unmarshal([]byte(taskData), &task); err != nil {
		r.moveToDLQ(ctx, &Task{
			ID:        fmt.Sprintf("corrupted_%d", time.Now().UnixNano()),
			Type:      "corrupted",
			Data:      map[string]interface{}{"raw_data": taskData},
			CreatedAt: time.Now(),
		}, fmt.Errorf("invalid task format: %w", err))
		settled = true
		return true, nil
	}

	task.Attempts++
	entry := logrus.WithFields(logrus.Fields{
		"task_id":   task.ID,
		"task_type": task.Type,
		"attempt":   task.Attempts,
	})

	handlerErr := handler(&task)
	if handlerErr == nil {
		settled = true
		r.incrementMetric(ctx, "tasks_success")
		entry.Debug("Task completed")
		return true, nil
	}
	r.incrementMetric(ctx, "tasks_failure")

	retry, delay := r.retryManager.ShouldRetry(&task, handlerErr)
	if !retry {
		entry.WithError(handlerErr).Error("Task failed permanently")
		r.moveToDLQ(ctx, &task, handlerErr)
		settled = true
		return true, nil
	}

	entry.WithError(handlerErr).WithField("retry_in", delay).Warn("Task failed, scheduling retry")
	task.ExecuteAt = time.Now().Add(delay)
	if err := r.Publish(ctx, &task); err != nil {
		return true, fmt.Errorf("failed to reschedule task %s: %w", task.ID, err)
	}
	settled = true
	return true, nil
}

// RequeueProcessing moves every task in the processing list back onto the
// main list and returns how many were moved.
func (r *RedisQueue) RequeueProcessing(ctx context.Context) (int, error) {
	moved := 0
	for {
		err := r.client.RPopLPush(ctx, r.processingQueue, r.mainQueue).Err()
		if errors.Is(err, redis.Nil) {
			return moved, nil
		}
		if err != nil {
			return moved, fmt.Errorf("failed to requeue processing tasks: %w", err)
		}
		moved++
	}
}

func (r *RedisQueue) processDelayedTasks(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.DelayedPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopChan:
			return
		case <-ticker.C:
			if _, err := r.MoveReadyDelayedTasks(ctx, time.Now()); err != nil {
				logrus.WithError(err).Error("Failed to process delayed tasks")
			}
		}
	}
}

// MoveReadyDelayedTasks moves delayed tasks due at or before now onto the
// main list and returns how many were moved.
func (r *RedisQueue) MoveReadyDelayedTasks(ctx context.Context, now time.Time) (int, error) {
	maxScore := strconv.FormatFloat(float64(now.UnixNano())/1e9, 'f', -1, 64)

	tasks, err := r.client.ZRangeByScore(ctx, r.delayedQueue, &redis.ZRangeBy{
		Min: "-inf",
		Max: maxScore,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get delayed tasks: %w", err)
	}
	if len(tasks) == 0 {
		return 0, nil
	}

	pipe := r.client.TxPipeline()
	for _, taskData := range tasks {
		pipe.LPush(ctx, r.mainQueue, taskData)
		pipe.ZRem(ctx, r.delayedQueue, taskData)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to move delayed tasks: %w", err)
	}

	return len(tasks), nil
}

// moveToDLQ records the failure even when the consumer context is done.
func (r *RedisQueue) moveToDLQ(ctx context.Context, task *Task, err error) {
	if !r.config.EnableDLQ || r.dlqHandler == nil {
		return
	}

	dlqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	r.dlqHandler.HandleFailedTask(dlqCtx, task, err)
	r.incrementMetric(dlqCtx, "tasks_dlq")
}

func (r *RedisQueue) applyDefaults(task *Task) {
	now := time.Now()
	if task.ID == "" {
		task.ID = generateTaskID()
	}
	if task.Data == nil {
		task.Data = make(map[string]interface{})
	}
	if task.MaxRetries == 0 {
		task.MaxRetries = r.config.MaxRetries
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	if task.ExecuteAt.IsZero() {
		task.ExecuteAt = now
	}
}

func (r *RedisQueue) incrementMetric(ctx context.Context, metric string) {
	if !r.config.EnableMetrics {
		return
	}

	if err := r.client.HIncrBy(ctx, defaultMetricsPrefix, metric, 1).Err(); err != nil {
		logrus.WithError(err).Debug("Failed to record queue metric")
	}
}

// GetQueueStats returns current queue statistics
func (r *RedisQueue) GetQueueStats(ctx context.Context) (*QueueStats, error) {
	pipe := r.client.Pipeline()

	mainLen := pipe.LLen(ctx, r.mainQueue)
	delayedLen := pipe.ZCard(ctx, r.delayedQueue)
	processingLen := pipe.LLen(ctx, r.processingQueue)
	dlqLen := pipe.ZCard(ctx, r.config.DLQ)

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to get queue stats: %w", err)
	}

	return &QueueStats{
		MainQueue:       mainLen.Val(),
		DelayedQueue:    delayedLen.Val(),
		ProcessingQueue: processingLen.Val(),
		DLQ:             dlqLen.Val(),
		Timestamp:       time.Now(),
	}, nil
}

// Close stops the consumer goroutines. The Redis client is owned by the caller.
func (r *RedisQueue) Close() error {
	r.stopOnce.Do(func() { close(r.stopChan) })
	r.wg.Wait()

	logrus.Info("RedisQueue closed")
	return nil
}

// QueueStats contains statistics about queue state
type QueueStats struct {
	MainQueue       int64     `json:"main_queue"`
	DelayedQueue    int64     `json:"delayed_queue"`
	ProcessingQueue int64     `json:"processing_queue"`
	DLQ             int64     `json:"dlq"`
	Timestamp       time.Time `json:"timestamp"`
}

func generateTaskID() string {
	return fmt.Sprintf("task_%d_%d", time.Now().UnixNano(), rand.Int63())
}
