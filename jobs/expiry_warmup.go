package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/bakeledger/bakeledger/internal/jobs"
	"github.com/bakeledger/bakeledger/internal/ledger"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// ExpiryWarmupJob pre-computes the per-product availability view for the
// next few days, so the first candidate listing of the morning is served
// from cache instead of the aggregate query.
type ExpiryWarmupJob struct {
	Ledger  *ledger.Service
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewExpiryWarmupJob wires dependencies for the warmup handler.
func NewExpiryWarmupJob(ledgerSvc *ledger.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *ExpiryWarmupJob {
	return &ExpiryWarmupJob{
		Ledger:  ledgerSvc,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes expiry warmup tasks.
func (j *ExpiryWarmupJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Ledger == nil {
		return errors.New("expiry warmup: handler not configured")
	}
	var payload ExpiryWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.DaysAhead < 0 || payload.DaysAhead > 7 {
		payload.DaysAhead = 1
	}

	tracker := j.metrics().Track(TaskLedgerExpiryWarmup)
	defer func() {
		err = tracker.End(err)
	}()

	now := j.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	logger := j.logger().With(slog.Int("days_ahead", payload.DaysAhead))
	logger.Info("starting availability warmup")

	for offset := 0; offset <= payload.DaysAhead; offset++ {
		date := today.AddDate(0, 0, offset)
		products, loadErr := j.Ledger.ProductAvailability(ctx, date)
		if loadErr != nil {
			logger.Error("warm availability", slog.String("date", date.Format("2006-01-02")), slog.Any("error", loadErr))
			return loadErr
		}
		logger.Info("warmed availability", slog.String("date", date.Format("2006-01-02")), slog.Int("products", len(products)))
	}
	return nil
}

func (j *ExpiryWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *ExpiryWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *ExpiryWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
