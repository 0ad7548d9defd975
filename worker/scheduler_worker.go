package worker

import (
	"context"
	"log"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"

	"tahseel/models"
	"tahseel/utils"
)

// lockTTL covers the longest plausible continuation (render, SMTP dial, save).
const lockTTL = 2 * time.Minute

// SchedulerWorker polls for executions whose dwell time has elapsed and
// drives them through the executor. The executor itself has no timer; this
// worker is the only thing that wakes sleeping executions.
type SchedulerWorker struct {
	DB       *gorm.DB
	Executor *utils.SequenceExecutor
	Redis    *redis.Client // nil disables cross-instance locking
	Logger   *log.Logger

	Interval time.Duration
	PoolSize int
}

func NewSchedulerWorker(db *gorm.DB, executor *utils.SequenceExecutor, rdb *redis.Client, logger *log.Logger, interval time.Duration, poolSize int) *SchedulerWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	if poolSize <= 0 {
		poolSize = 8
	}
	return &SchedulerWorker{
		DB:       db,
		Executor: executor,
		Redis:    rdb,
		Logger:   logger,
		Interval: interval,
		PoolSize: poolSize,
	}
}

func (sw *SchedulerWorker) Start(ctx context.Context) {
	// Initial delay to let the server start up
	time.Sleep(10 * time.Second)

	sw.Logger.Println("Scheduler worker started")

	ticker := time.NewTicker(sw.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sw.Logger.Println("Scheduler worker shutting down...")
			return
		case <-ticker.C:
			sw.processDueExecutions(ctx)
		}
	}
}

// processDueExecutions fans due executions out over a bounded pool and waits
// for the batch before returning to the ticker.
func (sw *SchedulerWorker) processDueExecutions(ctx context.Context) {
	var due []models.SequenceExecution
	err := sw.DB.
		Where("status IN ? AND next_execution_at IS NOT NULL AND next_execution_at <= ?",
			[]string{models.ExecutionPending, models.ExecutionActive}, time.Now()).
		Order("next_execution_at ASC").
		Limit(200).
		Find(&due).Error
	if err != nil {
		sw.Logger.Printf("Error fetching due executions: %v", err)
		return
	}
	if len(due) == 0 {
		return
	}

	sw.Logger.Printf("Processing %d due executions", len(due))

	sem := make(chan struct{}, sw.PoolSize)
	done := make(chan struct{})
	for _, execution := range due {
		execution := execution
		sem <- struct{}{}
		go func() {
			defer func() {
				<-sem
				done <- struct{}{}
			}()
			sw.runOne(ctx, execution.ID)
		}()
	}
	for range due {
		<-done
	}
}

// runOne continues a single execution under a redis lock so two scheduler
// instances never dispatch the same step twice.
func (sw *SchedulerWorker) runOne(ctx context.Context, executionID uint) {
	if sw.Redis != nil {
		key := utils.ExecutionLockKey(executionID)
		ok, err := sw.Redis.SetNX(ctx, key, "1", lockTTL).Result()
		if err != nil {
			sw.Logger.Printf("Lock error for execution %d: %v", executionID, err)
			return
		}
		if !ok {
			return // another instance holds it
		}
		defer sw.Redis.Del(ctx, key)
	}

	result, err := sw.Executor.ContinueSequenceExecution(ctx, executionID)
	if err != nil {
		sw.Logger.Printf("Execution %d failed: %v", executionID, err)
		sentry.CaptureException(err)
		return
	}
	if result != nil && !result.Success && len(result.Errors) > 0 {
		sw.Logger.Printf("Execution %d did not advance: %v", executionID, result.Errors)
	}
}

// RetryErroredExecutions drives ERROR executions through one continuation
// attempt. ERROR is resumable, so a transient SMTP outage heals here; a
// persistent failure lands back in ERROR and waits for operator attention.
// Called once on startup to recover from a crash mid-dispatch.
func (sw *SchedulerWorker) RetryErroredExecutions(ctx context.Context) {
	var errored []models.SequenceExecution
	if err := sw.DB.Where("status = ?", models.ExecutionError).Find(&errored).Error; err != nil {
		sw.Logger.Printf("Error fetching errored executions: %v", err)
		return
	}
	if len(errored) == 0 {
		return
	}

	sw.Logger.Printf("Retrying %d errored executions", len(errored))
	for _, execution := range errored {
		sw.runOne(ctx, execution.ID)
	}
}
