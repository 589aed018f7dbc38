package domain

import (
	"context"
	"time"
)

// DisplayLayout is the user-visible date format: DD.MM.YYYY HH:MM.
const DisplayLayout = "02.01.2006 15:04"

type Reminder struct {
	ID         int64     `db:"id"`
	UserID     int64     `db:"user_id"`
	ChatID     int64     `db:"chat_id"`
	Text       string    `db:"text"`
	RemindTime time.Time `db:"remind_time"`
	IsDone     bool      `db:"is_done"`
}

// Due reports whether r should be delivered at now.
func (r *Reminder) Due(now time.Time) bool {
	return !r.IsDone && !r.RemindTime.After(now)
}

// ReminderRepository is the persistent reminder table. Implementations assign
// IDs on Create and own the is_done transition.
type ReminderRepository interface {
	Create(ctx context.Context, reminder *Reminder) error
	FetchDue(ctx context.Context, now time.Time) ([]*Reminder, error)
	FetchActiveByUser(ctx context.Context, userID int64) ([]*Reminder, error)
	MarkDone(ctx context.Context, id int64) error
}

// Notifier delivers a text message to a chat.
type Notifier interface {
	Send(ctx context.Context, chatID int64, text string) error
}
