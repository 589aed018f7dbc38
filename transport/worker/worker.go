package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/X1ag/RemindBot/internal/domain"
	"github.com/X1ag/RemindBot/internal/metrics"
)

const (
	DefaultInterval     = 30 * time.Second
	DefaultStoreTimeout = 5 * time.Second
	DefaultSendTimeout  = 10 * time.Second
	DefaultConcurrency  = 10
)

type Config struct {
	Interval     time.Duration
	StoreTimeout time.Duration
	SendTimeout  time.Duration
	Concurrency  int
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = DefaultStoreTimeout
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = DefaultSendTimeout
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	return c
}

// ScanResult summarizes one scan pass.
type ScanResult struct {
	Due       int
	Delivered int
	Failed    int
	Err       error
}

type Worker struct {
	reminderRepo domain.ReminderRepository
	notifier     domain.Notifier
	cfg          Config
	observer     metrics.ScanObserver
	logger       *slog.Logger
	now          func() time.Time
}

type Option func(*Worker)

func WithObserver(o metrics.ScanObserver) Option {
	return func(w *Worker) {
		if o != nil {
			w.observer = o
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(w *Worker) { w.now = now }
}

func NewWorker(reminderRepo domain.ReminderRepository, notifier domain.Notifier, cfg Config, opts ...Option) *Worker {
	w := &Worker{
		reminderRepo: reminderRepo,
		notifier:     notifier,
		cfg:          cfg.withDefaults(),
		observer:     metrics.Nop{},
		logger:       slog.Default(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With("component", "worker")
	return w
}

// ReminderMessage is the text delivered for a due reminder.
func ReminderMessage(text string) string {
	return "⏰ Напоминание: " + text
}

// Run scans immediately and then every interval until ctx is cancelled. A
// pass in progress is allowed to finish before Run returns.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("due-scan loop started", "interval", w.cfg.Interval)
	defer w.logger.Info("due-scan loop stopped")

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	w.ScanDue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.ScanDue(ctx)
		}
	}
}

// ScanDue delivers every due reminder once. Failures are logged and leave the
// reminder pending for the next pass; nothing here is fatal.
func (w *Worker) ScanDue(ctx context.Context) ScanResult {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()

	fetchCtx, cancel := context.WithTimeout(ctx, w.cfg.StoreTimeout)
	due, err := w.reminderRepo.FetchDue(fetchCtx, w.now())
	cancel()
	if err != nil {
		err = domain.NewStorageError("fetch due", err)
		w.logger.Error("error fetching due reminders", "error", err)
		w.observer.RecordScan(time.Since(start), 0, err)
		return ScanResult{Err: err}
	}

	var delivered, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(w.cfg.Concurrency)
	for _, reminder := range due {
		reminder := reminder
		g.Go(func() error {
			if w.deliver(ctx, reminder) {
				delivered.Add(1)
			} else {
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	w.observer.RecordScan(time.Since(start), len(due), nil)
	if len(due) > 0 {
		w.logger.Info("scan pass finished", "due", len(due), "delivered", delivered.Load(), "failed", failed.Load())
	}
	return ScanResult{Due: len(due), Delivered: int(delivered.Load()), Failed: int(failed.Load())}
}

func (w *Worker) deliver(ctx context.Context, reminder *domain.Reminder) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("panic delivering reminder", "reminder_id", reminder.ID, "panic", fmt.Sprint(r))
			w.observer.RecordDelivery(metrics.ResultPanic)
			ok = false
		}
	}()

	sendCtx, cancel := context.WithTimeout(ctx, w.cfg.SendTimeout)
	err := w.notifier.Send(sendCtx, reminder.ChatID, ReminderMessage(reminder.Text))
	cancel()
	if err != nil {
		err = &domain.DeliveryError{ReminderID: reminder.ID, ChatID: reminder.ChatID, Err: err}
		w.logger.Warn("error sending reminder", "error", err)
		w.observer.RecordDelivery(metrics.ResultFailed)
		return false
	}

	markCtx, cancel := context.WithTimeout(ctx, w.cfg.StoreTimeout)
	defer cancel()
	if err := w.reminderRepo.MarkDone(markCtx, reminder.ID); err != nil {
		// already sent; it will be sent again on the next pass
		w.logger.Error("error marking reminder done", "reminder_id", reminder.ID, "error", err)
		w.observer.RecordDelivery(metrics.ResultFailed)
		return false
	}

	w.logger.Info("reminder sent", "reminder_id", reminder.ID, "chat_id", reminder.ChatID)
	w.observer.RecordDelivery(metrics.ResultSent)
	return true
}
