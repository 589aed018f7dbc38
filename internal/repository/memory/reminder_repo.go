package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/X1ag/RemindBot/internal/domain"
)

// ReminderRepository keeps reminders in process memory. Returned reminders are
// copies; callers cannot mutate stored state.
type ReminderRepository struct {
	mu        sync.RWMutex
	nextID    int64
	reminders []domain.Reminder
}

func NewReminderRepository() *ReminderRepository {
	return &ReminderRepository{}
}

func (r *ReminderRepository) Create(ctx context.Context, reminder *domain.Reminder) error {
	if err := ctx.Err(); err != nil {
		return domain.NewStorageError("create", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	reminder.ID = r.nextID
	reminder.IsDone = false
	r.reminders = append(r.reminders, *reminder)
	return nil
}

func (r *ReminderRepository) FetchDue(ctx context.Context, now time.Time) ([]*domain.Reminder, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewStorageError("fetch due", err)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	due := make([]*domain.Reminder, 0)
	for i := range r.reminders {
		if r.reminders[i].Due(now) {
			rem := r.reminders[i]
			due = append(due, &rem)
		}
	}
	return due, nil
}

func (r *ReminderRepository) FetchActiveByUser(ctx context.Context, userID int64) ([]*domain.Reminder, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewStorageError("fetch active", err)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	active := make([]*domain.Reminder, 0)
	for i := range r.reminders {
		if r.reminders[i].UserID == userID && !r.reminders[i].IsDone {
			rem := r.reminders[i]
			active = append(active, &rem)
		}
	}
	// stable on equal times: insertion (id) order
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].RemindTime.Before(active[j].RemindTime)
	})
	return active, nil
}

func (r *ReminderRepository) MarkDone(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return domain.NewStorageError("mark done", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.reminders {
		if r.reminders[i].ID == id {
			r.reminders[i].IsDone = true
			return nil
		}
	}
	return nil
}

// Get returns a copy of the reminder with id.
func (r *ReminderRepository) Get(id int64) (domain.Reminder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rem := range r.reminders {
		if rem.ID == id {
			return rem, true
		}
	}
	return domain.Reminder{}, false
}
