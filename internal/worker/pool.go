package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"studyplan-backend/internal/models"
	"studyplan-backend/internal/services"
)

const (
	maxAttempts = 3
	lockTTL     = 10 * time.Minute
	popTimeout  = 30 * time.Second
)

// QueueName is the Redis list a job type is pushed to.
func QueueName(jobType string) string {
	return "queue:" + jobType
}

func lockKey(jobID uuid.UUID) string {
	return fmt.Sprintf("job_lock:%s", jobID.String())
}

// RedisQueue pushes jobs onto their type's list.
type RedisQueue struct {
	redis *redis.Client
}

func NewRedisQueue(redisClient *redis.Client) *RedisQueue {
	return &RedisQueue{redis: redisClient}
}

func (q *RedisQueue) Enqueue(ctx context.Context, job *models.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", job.ID, err)
	}
	return q.redis.LPush(ctx, QueueName(job.Type), string(data)).Err()
}

type jobStore interface {
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	UpdateError(ctx context.Context, id uuid.UUID, errMsg string, retryCount int) error
	SetResult(ctx context.Context, id uuid.UUID, result interface{}) error
}

type backfiller interface {
	Backfill(ctx context.Context, userID uuid.UUID) (*models.BackfillResult, error)
}

type Pool struct {
	redis       *redis.Client
	queue       *RedisQueue
	jobs        jobStore
	estimates   backfiller
	publisher   services.EventPublisher
	workerCount int
	stopChan    chan struct{}

	// requeue schedules a retry; replaced in tests.
	requeue func(job *models.Job, delay time.Duration)
}

func NewPool(
	redisClient *redis.Client,
	jobs jobStore,
	estimates backfiller,
	publisher services.EventPublisher,
	workerCount int,
) *Pool {
	p := &Pool{
		redis:       redisClient,
		queue:       NewRedisQueue(redisClient),
		jobs:        jobs,
		estimates:   estimates,
		publisher:   publisher,
		workerCount: workerCount,
		stopChan:    make(chan struct{}),
	}
	p.requeue = p.requeueAfter
	return p
}

func (p *Pool) Start() {
	queues := []string{
		QueueName(models.JobTypeEstimateBackfill),
	}

	for i := 0; i < p.workerCount; i++ {
		go p.worker(i, queues)
	}

	log.Printf("Started %d worker goroutines", p.workerCount)
}

func (p *Pool) Stop() {
	close(p.stopChan)
}

func (p *Pool) worker(id int, queues []string) {
	for {
		select {
		case <-p.stopChan:
			log.Printf("Worker %d shutting down", id)
			return
		default:
		}

		ctx := context.Background()

		result, err := p.redis.BLPop(ctx, popTimeout, queues...).Result()
		if err != nil {
			continue // Timeout or error, retry
		}
		if len(result) < 2 {
			continue
		}

		var job models.Job
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			log.Printf("Worker %d: failed to parse job: %v", id, err)
			continue
		}

		locked, err := p.redis.SetNX(ctx, lockKey(job.ID), "1", lockTTL).Result()
		if err != nil || !locked {
			continue // Another worker has this job
		}

		log.Printf("Worker %d: processing job %s (type: %s)", id, job.ID, job.Type)
		p.process(ctx, &job)

		p.redis.Del(ctx, lockKey(job.ID))
	}
}

// process runs one dequeued job to success or its next failure step.
func (p *Pool) process(ctx context.Context, job *models.Job) {
	if err := p.jobs.UpdateStatus(ctx, job.ID, models.JobStatusProcessing); err != nil {
		log.Printf("Job %s: failed to mark processing: %v", job.ID, err)
	}

	var (
		result interface{}
		err    error
	)
	switch job.Type {
	case models.JobTypeEstimateBackfill:
		result, err = p.processBackfill(ctx, job)
	default:
		err = fmt.Errorf("unknown job type: %s", job.Type)
	}

	if err != nil {
		p.handleFailure(ctx, job, err)
		return
	}
	p.handleSuccess(ctx, job, result)
}

func (p *Pool) processBackfill(ctx context.Context, job *models.Job) (*models.BackfillResult, error) {
	res, err := p.estimates.Backfill(ctx, job.UserID)
	if err != nil {
		return nil, fmt.Errorf("backfill estimates: %w", err)
	}

	p.publish(ctx, job.UserID, models.WSMessage{
		Type: models.EventEstimatesUpdated,
		Payload: models.EstimatesUpdatedEvent{
			JobID:   job.ID,
			Updated: res.Updated,
		},
	})
	return res, nil
}

func (p *Pool) handleSuccess(ctx context.Context, job *models.Job, result interface{}) {
	if result != nil {
		if err := p.jobs.SetResult(ctx, job.ID, result); err != nil {
			log.Printf("Job %s: failed to store result: %v", job.ID, err)
		}
	}
	p.jobs.UpdateStatus(ctx, job.ID, models.JobStatusCompleted)

	log.Printf("Job %s completed successfully", job.ID)
}

func (p *Pool) handleFailure(ctx context.Context, job *models.Job, err error) {
	job.RetryCount++
	errMsg := err.Error()

	if job.RetryCount < maxAttempts {
		log.Printf("Job %s failed (attempt %d): %s, retrying", job.ID, job.RetryCount, errMsg)
		p.jobs.UpdateStatus(ctx, job.ID, models.JobStatusPending)
		p.jobs.UpdateError(ctx, job.ID, errMsg, job.RetryCount)

		backoff := time.Duration(1<<uint(job.RetryCount)) * time.Second
		p.requeue(job, backoff)
		return
	}

	log.Printf("Job %s failed permanently: %s", job.ID, errMsg)
	p.jobs.UpdateStatus(ctx, job.ID, models.JobStatusFailed)
	p.jobs.UpdateError(ctx, job.ID, errMsg, job.RetryCount)

	p.publish(ctx, job.UserID, models.WSMessage{
		Type: models.EventJobFailed,
		Payload: models.ErrorEvent{
			JobID:        job.ID,
			ErrorCode:    "JOB_FAILED",
			ErrorMessage: errMsg,
		},
	})
}

func (p *Pool) requeueAfter(job *models.Job, delay time.Duration) {
	retry := *job
	time.AfterFunc(delay, func() {
		if err := p.queue.Enqueue(context.Background(), &retry); err != nil {
			log.Printf("Job %s: failed to requeue: %v", retry.ID, err)
		}
	})
}

func (p *Pool) publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(ctx, userID, msg); err != nil {
		log.Printf("failed to publish %s for user %s: %v", msg.Type, userID, err)
	}
}
