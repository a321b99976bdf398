package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"villagestay/config"
	"villagestay/models"
	"villagestay/services/booking"

	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const TypeReconcileBookings = "booking:reconcile"

// ReconcilePayload optionally overrides the batch size of one run.
type ReconcilePayload struct {
	Limit int `json:"limit,omitempty"`
}

// Reconciler is the part of the booking service the worker drives.
type Reconciler interface {
	PendingBookings(ctx context.Context, limit int) ([]models.BookingDocument, error)
	ResecureBatch(ctx context.Context, bookingIDs []string) []booking.ResecureResult
}

// ReconcileSummary counts what one reconciliation run did.
type ReconcileSummary struct {
	Scanned  int
	Verified int
	Partial  int
	Failed   int
	Skipped  int
}

// ReconcileWorker resumes archiving and anchoring for bookings that were
// confirmed while the archive or ledger was unavailable.
type ReconcileWorker struct {
	svc     Reconciler
	limiter *rate.Limiter
	batch   int
	logger  *zap.Logger
}

// NewReconcileWorker resecures pending bookings in chunks of batch, paced at
// perSecond bookings so a backlog does not flood the archive or the chain.
func NewReconcileWorker(svc Reconciler, batch int, perSecond float64, logger *zap.Logger) *ReconcileWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if batch <= 0 {
		batch = 25
	}
	return &ReconcileWorker{
		svc:     svc,
		limiter: rate.NewLimiter(rate.Limit(perSecond), batch),
		batch:   batch,
		logger:  logger,
	}
}

// Run reconciles up to limit pending bookings; limit <= 0 uses the worker's
// batch size.
func (w *ReconcileWorker) Run(ctx context.Context, limit int) (ReconcileSummary, error) {
	var sum ReconcileSummary
	if limit <= 0 {
		limit = w.batch
	}

	pending, err := w.svc.PendingBookings(ctx, limit)
	if err != nil {
		return sum, err
	}

	for start := 0; start < len(pending); start += w.batch {
		chunk := pending[start:min(start+w.batch, len(pending))]
		if err := w.limiter.WaitN(ctx, len(chunk)); err != nil {
			return sum, err
		}
		ids := make([]string, len(chunk))
		for i, doc := range chunk {
			ids[i] = doc.Booking.ID
		}

		for _, res := range w.svc.ResecureBatch(ctx, ids) {
			sum.Scanned++
			switch {
			case booking.CodeOf(res.Err) == booking.CodeInProgress:
				sum.Skipped++
			case res.Err != nil:
				sum.Failed++
				w.logger.Warn("Reconcile failed", zap.String("bookingId", res.BookingID), zap.Error(res.Err))
			case res.Level == models.IntegrityVerified:
				sum.Verified++
			case res.Level == models.IntegrityPartiallyVerified:
				sum.Partial++
			}
		}
	}

	if sum.Scanned > 0 {
		w.logger.Info("Reconcile run finished",
			zap.Int("scanned", sum.Scanned),
			zap.Int("verified", sum.Verified),
			zap.Int("partial", sum.Partial),
			zap.Int("failed", sum.Failed),
			zap.Int("skipped", sum.Skipped))
	}
	return sum, nil
}

// HandleTask is the asynq handler for TypeReconcileBookings.
func (w *ReconcileWorker) HandleTask(ctx context.Context, task *asynq.Task) error {
	var p ReconcilePayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			w.logger.Error("Invalid reconcile payload", zap.Error(err))
			return fmt.Errorf("invalid reconcile payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	_, err := w.Run(ctx, p.Limit)
	return err
}

// NewReconcileTask builds a task that asks for one reconciliation run.
func NewReconcileTask(limit int) (*asynq.Task, error) {
	payload, err := json.Marshal(ReconcilePayload{Limit: limit})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeReconcileBookings, payload, asynq.MaxRetry(3), asynq.Timeout(10*time.Minute)), nil
}

func redisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	}
}

// InitReconcileWorker starts the asynq server and the periodic scheduler in
// the background. The returned function stops both.
func InitReconcileWorker(ctx context.Context, w *ReconcileWorker) (stop func()) {
	opts := redisOpt()

	srv := asynq.NewServer(opts, asynq.Config{
		Concurrency: 1,
		Queues:      map[string]int{"default": 1},
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeReconcileBookings, w.HandleTask)

	scheduler := asynq.NewScheduler(opts, &asynq.SchedulerOpts{})
	task, err := NewReconcileTask(0)
	if err == nil {
		_, err = scheduler.Register(config.AppConfig.ReconcileInterval, task, asynq.Unique(time.Minute))
	}
	if err != nil {
		w.logger.Error("Failed to register reconcile schedule", zap.String("interval", config.AppConfig.ReconcileInterval), zap.Error(err))
	}

	monitorCtx, cancel := context.WithCancel(ctx)
	go monitorRedisConnection(monitorCtx, w.logger)

	go func() {
		w.logger.Info("Starting reconcile worker")
		const maxAttempts = 5

		for attempts := 1; attempts <= maxAttempts; attempts++ {
			err := srv.Start(mux)
			if err == nil {
				break
			}
			w.logger.Warn("Reconcile worker failed to start", zap.Int("attempt", attempts), zap.Int("maxAttempts", maxAttempts), zap.Error(err))
			if attempts == maxAttempts {
				w.logger.Error("Max retry attempts reached, reconciliation disabled")
				return
			}
			time.Sleep(time.Duration(attempts*2) * time.Second)
		}
		if err := scheduler.Start(); err != nil {
			w.logger.Error("Reconcile scheduler failed to start", zap.Error(err))
		}
	}()

	return func() {
		cancel()
		scheduler.Shutdown()
		srv.Shutdown()
	}
}

// monitorRedisConnection pings the queue Redis periodically to detect failures at runtime.
func monitorRedisConnection(ctx context.Context, logger *zap.Logger) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	})
	defer client.Close()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := client.Ping(ctx).Err(); err != nil && ctx.Err() == nil {
				logger.Warn("Queue Redis connection lost", zap.Error(err))
			}
		}
	}
}
