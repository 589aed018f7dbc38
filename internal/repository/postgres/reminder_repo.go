package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/X1ag/RemindBot/internal/domain"
)

// dbPool is the subset of *pgxpool.Pool the repository uses.
type dbPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type ReminderRepository struct {
	db dbPool
}

func NewReminderRepository(db dbPool) *ReminderRepository {
	return &ReminderRepository{
		db: db,
	}
}

func (r *ReminderRepository) Create(ctx context.Context, reminder *domain.Reminder) error {
	query := `INSERT INTO reminders (user_id, chat_id, text, remind_time)
						VALUES ($1, $2, $3, $4)
						RETURNING id`
	err := r.db.QueryRow(ctx, query, reminder.UserID, reminder.ChatID, reminder.Text, reminder.RemindTime).Scan(&reminder.ID)
	if err != nil {
		return domain.NewStorageError("create", err)
	}
	reminder.IsDone = false

	return nil
}

func (r *ReminderRepository) MarkDone(ctx context.Context, id int64) error {
	query := `UPDATE reminders SET is_done = TRUE WHERE id = $1`
	if _, err := r.db.Exec(ctx, query, id); err != nil {
		return domain.NewStorageError("mark done", err)
	}
	return nil
}

func (r *ReminderRepository) FetchDue(ctx context.Context, now time.Time) ([]*domain.Reminder, error) {
	query := `SELECT id, user_id, chat_id, text, remind_time, is_done
						FROM reminders
						WHERE remind_time <= $1 AND is_done = FALSE
						ORDER BY id`
	due, err := r.fetch(ctx, query, now)
	if err != nil {
		return nil, domain.NewStorageError("fetch due", err)
	}
	return due, nil
}

func (r *ReminderRepository) FetchActiveByUser(ctx context.Context, userID int64) ([]*domain.Reminder, error) {
	query := `SELECT id, user_id, chat_id, text, remind_time, is_done
						FROM reminders
						WHERE user_id = $1 AND is_done = FALSE
						ORDER BY remind_time, id`
	active, err := r.fetch(ctx, query, userID)
	if err != nil {
		return nil, domain.NewStorageError("fetch active", err)
	}
	return active, nil
}

func (r *ReminderRepository) fetch(ctx context.Context, query string, args ...any) ([]*domain.Reminder, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reminders := make([]*domain.Reminder, 0, 10)
	for rows.Next() {
		reminder := &domain.Reminder{}
		err := rows.Scan(&reminder.ID, &reminder.UserID, &reminder.ChatID, &reminder.Text, &reminder.RemindTime, &reminder.IsDone)
		if err != nil {
			return nil, err
		}
		reminder.RemindTime = localWallClock(reminder.RemindTime)
		reminders = append(reminders, reminder)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return reminders, nil
}

// localWallClock reinterprets a TIMESTAMP value, which pgx decodes as UTC, in
// the process-local zone without shifting the wall clock.
func localWallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.Local)
}
