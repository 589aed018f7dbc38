package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/X1ag/RemindBot/internal/domain"
	"github.com/X1ag/RemindBot/internal/parser"
)

const DefaultStoreTimeout = 5 * time.Second

// Confirmation echoes an accepted reminder back to the user.
type Confirmation struct {
	ID         int64
	Text       string
	RemindTime time.Time
}

// FormattedTime renders RemindTime as DD.MM.YYYY HH:MM.
func (c Confirmation) FormattedTime() string {
	return c.RemindTime.Format(domain.DisplayLayout)
}

type ReminderUsecase struct {
	reminderRepo domain.ReminderRepository
	storeTimeout time.Duration
	now          func() time.Time
	logger       *slog.Logger
}

type Option func(*ReminderUsecase)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(u *ReminderUsecase) { u.now = now }
}

// WithStoreTimeout bounds every repository call.
func WithStoreTimeout(d time.Duration) Option {
	return func(u *ReminderUsecase) {
		if d > 0 {
			u.storeTimeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(u *ReminderUsecase) {
		if logger != nil {
			u.logger = logger
		}
	}
}

func NewReminderUsecase(reminderRepo domain.ReminderRepository, opts ...Option) *ReminderUsecase {
	u := &ReminderUsecase{
		reminderRepo: reminderRepo,
		storeTimeout: DefaultStoreTimeout,
		now:          time.Now,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(u)
	}
	u.logger = u.logger.With("component", "reminders")
	return u
}

// Intake parses "<date> <time> <text>" and stores the reminder. Parse failures
// return a *domain.FormatError and leave the store untouched.
func (u *ReminderUsecase) Intake(ctx context.Context, userID, chatID int64, rawText string) (Confirmation, error) {
	req, err := parser.Parse(rawText, u.now())
	if err != nil {
		u.logger.Warn("rejected reminder input", "user_id", userID, "input", rawText, "error", err)
		return Confirmation{}, err
	}

	reminder := &domain.Reminder{
		UserID:     userID,
		ChatID:     chatID,
		Text:       req.Text,
		RemindTime: req.RemindTime,
	}
	ctx, cancel := context.WithTimeout(ctx, u.storeTimeout)
	defer cancel()
	if err := u.reminderRepo.Create(ctx, reminder); err != nil {
		return Confirmation{}, domain.NewStorageError("create", err)
	}

	u.logger.Info("reminder created",
		"user_id", userID, "reminder_id", reminder.ID, "text", reminder.Text,
		"remind_time", reminder.RemindTime.Format(domain.DisplayLayout))
	return Confirmation{ID: reminder.ID, Text: reminder.Text, RemindTime: reminder.RemindTime}, nil
}

// ListActive returns the user's not-done reminders, earliest first. An empty
// list is not an error.
func (u *ReminderUsecase) ListActive(ctx context.Context, userID int64) ([]*domain.Reminder, error) {
	ctx, cancel := context.WithTimeout(ctx, u.storeTimeout)
	defer cancel()
	reminders, err := u.reminderRepo.FetchActiveByUser(ctx, userID)
	if err != nil {
		return nil, domain.NewStorageError("fetch active", err)
	}
	return reminders, nil
}

// Complete marks the index-th (1-based) reminder of a freshly fetched active
// list as done. Indices shift whenever the list changes.
func (u *ReminderUsecase) Complete(ctx context.Context, userID int64, index int) (*domain.Reminder, error) {
	reminders, err := u.ListActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	if index < 1 || index > len(reminders) {
		u.logger.Warn("no such task", "user_id", userID, "index", index, "active", len(reminders))
		return nil, &domain.IndexError{Index: index, Count: len(reminders)}
	}

	target := reminders[index-1]
	ctx, cancel := context.WithTimeout(ctx, u.storeTimeout)
	defer cancel()
	if err := u.reminderRepo.MarkDone(ctx, target.ID); err != nil {
		return nil, domain.NewStorageError("mark done", err)
	}
	target.IsDone = true

	u.logger.Info("reminder completed", "user_id", userID, "reminder_id", target.ID, "index", index)
	return target, nil
}
