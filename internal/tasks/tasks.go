package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"greendrake/dunning/internal/config"
	"greendrake/dunning/internal/dunning"
	"greendrake/dunning/internal/logger"
	"greendrake/dunning/internal/storage"
)

// TaskType defines the type of a background task.
const (
	TypeDunningRun = "dunning:run"
)

// QueueDunning is the queue dunning runs are processed on.
const QueueDunning = "dunning"

// DunningRunPayload is the JSON payload of a dunning:run task. Zero values mean
// all orgs, the configured batch size and a live run.
type DunningRunPayload struct {
	OrgID     string `json:"org_id,omitempty"`
	BatchSize int    `json:"batch_size,omitempty"`
	DryRun    bool   `json:"dry_run,omitempty"`
}

// DunningRunner is the engine as seen by the task handler.
type DunningRunner interface {
	Run(ctx context.Context, opts dunning.RunOptions) dunning.RunResult
}

// --- Task Client (Enqueuing tasks) ---

func redisOpt(rdb *redis.Client) asynq.RedisClientOpt {
	opts := rdb.Options()
	return asynq.RedisClientOpt{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}
}

func NewClient(rdb *redis.Client) *asynq.Client {
	return asynq.NewClient(redisOpt(rdb))
}

// NewDunningRunTask builds a dunning:run task. Runs are not retried by asynq:
// per-invoice failures are picked up by the next scheduled run.
func NewDunningRunTask(payload DunningRunPayload, timeout time.Duration) (*asynq.Task, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal dunning run payload: %w", err)
	}
	opts := []asynq.Option{asynq.Queue(QueueDunning), asynq.MaxRetry(0)}
	if timeout > 0 {
		opts = append(opts, asynq.Timeout(timeout))
	}
	return asynq.NewTask(TypeDunningRun, payloadBytes, opts...), nil
}

// EnqueueDunningRun enqueues a one-off run and returns the task id.
func EnqueueDunningRun(ctx context.Context, client *asynq.Client, payload DunningRunPayload, timeout time.Duration) (string, error) {
	task, err := NewDunningRunTask(payload, timeout)
	if err != nil {
		return "", err
	}
	info, err := client.EnqueueContext(ctx, task)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue dunning run: %w", err)
	}
	return info.ID, nil
}

// NewScheduler registers the periodic dunning run on DUNNING_CRON, evaluated in
// the business timezone.
func NewScheduler(rdb *redis.Client, cfg *config.Config) (*asynq.Scheduler, error) {
	scheduler := asynq.NewScheduler(redisOpt(rdb), &asynq.SchedulerOpts{
		Location: cfg.DunningLocation,
	})
	task, err := NewDunningRunTask(DunningRunPayload{}, cfg.DunningRunLockTTL)
	if err != nil {
		return nil, err
	}
	entryID, err := scheduler.Register(cfg.DunningCron, task)
	if err != nil {
		return nil, fmt.Errorf("failed to register dunning cron %q: %w", cfg.DunningCron, err)
	}
	logger.Get().Info().Str("cron", cfg.DunningCron).Str("entry_id", entryID).Msg("Registered scheduled dunning run")
	return scheduler, nil
}

// --- Task Server (Processing tasks) ---

// TaskProcessor handles the processing of tasks.
// It holds dependencies needed by task handlers.
type TaskProcessor struct {
	cfg     *config.Config
	runner  DunningRunner
	reports storage.IReportStore
	log     zerolog.Logger
}

// NewTaskProcessor creates a TaskProcessor. reports may be nil.
func NewTaskProcessor(cfg *config.Config, runner DunningRunner, reports storage.IReportStore) *TaskProcessor {
	return &TaskProcessor{
		cfg:     cfg,
		runner:  runner,
		reports: reports,
		log:     logger.Component("tasks"),
	}
}

// SetupServer configures an Asynq server and its handlers. The caller starts it.
func SetupServer(rdb *redis.Client, processor *TaskProcessor) (*asynq.Server, *asynq.ServeMux) {
	log := processor.log
	srv := asynq.NewServer(
		redisOpt(rdb),
		asynq.Config{
			// A single worker keeps runs strictly sequential.
			Concurrency: 1,
			Queues: map[string]int{
				QueueDunning: 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Error().Err(err).Str("task_type", task.Type()).Bytes("payload", task.Payload()).Msg("Task failed")
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeDunningRun, processor.HandleDunningRunTask)
	log.Info().Msg("Registered dunning task handlers")
	return srv, mux
}

// --- Task Handlers ---

// HandleDunningRunTask runs one dunning pass. Per-invoice failures are part of
// the summary and never fail the task.
func (p *TaskProcessor) HandleDunningRunTask(ctx context.Context, t *asynq.Task) error {
	var payload DunningRunPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("failed to unmarshal dunning run payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	if payload.BatchSize < 0 {
		return fmt.Errorf("invalid batch size %d: %w", payload.BatchSize, asynq.SkipRetry)
	}

	res := p.runner.Run(ctx, dunning.RunOptions{
		OrgID:     payload.OrgID,
		BatchSize: payload.BatchSize,
		DryRun:    payload.DryRun,
	})

	log := p.log.With().Str("run_id", res.RunID).Logger()
	log.Info().
		Int("candidates", res.Candidates).
		Int("sent", res.Sent).
		Int("skipped", res.Skipped).
		Int("failed", res.Failed).
		Strs("errors", res.Errors).
		Msg("Dunning run task processed")

	p.archive(ctx, log, res)
	return nil
}

func (p *TaskProcessor) archive(ctx context.Context, log zerolog.Logger, res dunning.RunResult) {
	if p.reports == nil {
		return
	}
	body, err := json.Marshal(res)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal run report")
		return
	}
	key, err := p.reports.PutRunReport(ctx, res.RunID, res.StartedAt, body)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to archive run report")
		return
	}
	log.Info().Str("key", key).Msg("Run report archived")
}
