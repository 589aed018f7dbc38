package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/X1ag/RemindBot/internal/domain"
	"github.com/X1ag/RemindBot/internal/repository/memory"
)

var noon = time.Date(2024, time.January, 1, 12, 0, 0, 0, time.Local)

func clock() time.Time { return noon }

type sentMessage struct {
	ChatID int64
	Text   string
}

// fakeNotifier records messages and fails while failing is set.
type fakeNotifier struct {
	mu      sync.Mutex
	sent    []sentMessage
	failing bool
	panics  bool
}

func (n *fakeNotifier) Send(_ context.Context, chatID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.panics {
		panic("boom")
	}
	if n.failing {
		return errors.New("chat unreachable")
	}
	n.sent = append(n.sent, sentMessage{ChatID: chatID, Text: text})
	return nil
}

func (n *fakeNotifier) setFailing(v bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failing = v
}

func (n *fakeNotifier) messages() []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentMessage(nil), n.sent...)
}

// flakyRepo fails FetchDue a fixed number of times and counts calls.
type flakyRepo struct {
	*memory.ReminderRepository
	fetchFailures atomic.Int32
	fetches       atomic.Int32
	markErr       error
}

func (r *flakyRepo) FetchDue(ctx context.Context, now time.Time) ([]*domain.Reminder, error) {
	r.fetches.Add(1)
	if r.fetchFailures.Load() > 0 {
		r.fetchFailures.Add(-1)
		return nil, errors.New("store unavailable")
	}
	return r.ReminderRepository.FetchDue(ctx, now)
}

func (r *flakyRepo) MarkDone(ctx context.Context, id int64) error {
	if r.markErr != nil {
		return r.markErr
	}
	return r.ReminderRepository.MarkDone(ctx, id)
}

func addReminder(t *testing.T, repo domain.ReminderRepository, chatID int64, text string, at time.Time) int64 {
	t.Helper()
	rem := &domain.Reminder{UserID: chatID, ChatID: chatID, Text: text, RemindTime: at}
	require.NoError(t, repo.Create(context.Background(), rem))
	return rem.ID
}

func TestScanDueDeliversAndMarksDone(t *testing.T) {
	repo := memory.NewReminderRepository()
	notifier := &fakeNotifier{}
	w := NewWorker(repo, notifier, Config{}, WithClock(clock))

	due := addReminder(t, repo, 10, "Позвонить клиенту", noon.Add(-time.Minute))
	future := addReminder(t, repo, 20, "later", noon.Add(time.Minute))

	res := w.ScanDue(context.Background())
	assert.Equal(t, ScanResult{Due: 1, Delivered: 1}, res)
	assert.Equal(t, []sentMessage{{ChatID: 10, Text: "⏰ Напоминание: Позвонить клиенту"}}, notifier.messages())

	got, _ := repo.Get(due)
	assert.True(t, got.IsDone)
	got, _ = repo.Get(future)
	assert.False(t, got.IsDone)

	res = w.ScanDue(context.Background())
	assert.Equal(t, 0, res.Due)
	assert.Len(t, notifier.messages(), 1)
}

func TestScanDueRetriesFailedDeliveryOnNextPass(t *testing.T) {
	repo := memory.NewReminderRepository()
	notifier := &fakeNotifier{failing: true}
	w := NewWorker(repo, notifier, Config{}, WithClock(clock))
	id := addReminder(t, repo, 10, "x", noon.Add(-time.Hour))

	res := w.ScanDue(context.Background())
	assert.Equal(t, ScanResult{Due: 1, Failed: 1}, res)
	got, _ := repo.Get(id)
	assert.False(t, got.IsDone)

	res = w.ScanDue(context.Background())
	assert.Equal(t, 1, res.Failed)

	notifier.setFailing(false)
	res = w.ScanDue(context.Background())
	assert.Equal(t, ScanResult{Due: 1, Delivered: 1}, res)
	got, _ = repo.Get(id)
	assert.True(t, got.IsDone)
	assert.Len(t, notifier.messages(), 1)
}

func TestScanDueSkipsCompletedReminders(t *testing.T) {
	repo := memory.NewReminderRepository()
	notifier := &fakeNotifier{}
	w := NewWorker(repo, notifier, Config{}, WithClock(clock))
	id := addReminder(t, repo, 10, "x", noon.Add(-time.Hour))
	require.NoError(t, repo.MarkDone(context.Background(), id))

	res := w.ScanDue(context.Background())
	assert.Equal(t, 0, res.Due)
	assert.Empty(t, notifier.messages())
}

func TestScanDueFetchFailureIsReported(t *testing.T) {
	repo := &flakyRepo{ReminderRepository: memory.NewReminderRepository()}
	repo.fetchFailures.Store(1)
	w := NewWorker(repo, &fakeNotifier{}, Config{}, WithClock(clock))

	res := w.ScanDue(context.Background())
	assert.ErrorIs(t, res.Err, domain.ErrStorage)
	assert.Equal(t, 0, res.Due)
}

func TestScanDueMarkDoneFailureLeavesReminderPending(t *testing.T) {
	repo := &flakyRepo{ReminderRepository: memory.NewReminderRepository(), markErr: errors.New("db down")}
	notifier := &fakeNotifier{}
	w := NewWorker(repo, notifier, Config{}, WithClock(clock))
	id := addReminder(t, repo, 10, "x", noon)

	res := w.ScanDue(context.Background())
	assert.Equal(t, ScanResult{Due: 1, Failed: 1}, res)
	got, _ := repo.Get(id)
	assert.False(t, got.IsDone)
}

func TestScanDueRecoversPanics(t *testing.T) {
	repo := memory.NewReminderRepository()
	notifier := &fakeNotifier{panics: true}
	w := NewWorker(repo, notifier, Config{}, WithClock(clock))
	id := addReminder(t, repo, 10, "x", noon)

	res := w.ScanDue(context.Background())
	assert.Equal(t, ScanResult{Due: 1, Failed: 1}, res)
	got, _ := repo.Get(id)
	assert.False(t, got.IsDone)
}

func TestScanDueFailuresAreIndependent(t *testing.T) {
	repo := memory.NewReminderRepository()
	notifier := &selectiveNotifier{bad: 13}
	w := NewWorker(repo, notifier, Config{Concurrency: 2}, WithClock(clock))
	var ids []int64
	for chat := int64(10); chat < 16; chat++ {
		ids = append(ids, addReminder(t, repo, chat, "x", noon))
	}

	res := w.ScanDue(context.Background())
	assert.Equal(t, ScanResult{Due: 6, Delivered: 5, Failed: 1}, res)
	for i, id := range ids {
		got, _ := repo.Get(id)
		assert.Equal(t, int64(10+i) != 13, got.IsDone, "chat %d", 10+i)
	}
}

type selectiveNotifier struct{ bad int64 }

func (n *selectiveNotifier) Send(_ context.Context, chatID int64, _ string) error {
	if chatID == n.bad {
		return errors.New("blocked by user")
	}
	return nil
}

func TestScanDueCompletesBatchAfterCancel(t *testing.T) {
	repo := memory.NewReminderRepository()
	notifier := &fakeNotifier{}
	w := NewWorker(repo, notifier, Config{}, WithClock(clock))
	addReminder(t, repo, 10, "x", noon)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := w.ScanDue(ctx)
	assert.Equal(t, 1, res.Delivered)
}

func TestRunSurvivesFetchFailuresAndStops(t *testing.T) {
	repo := &flakyRepo{ReminderRepository: memory.NewReminderRepository()}
	repo.fetchFailures.Store(2)
	notifier := &fakeNotifier{}
	w := NewWorker(repo, notifier, Config{Interval: 5 * time.Millisecond}, WithClock(clock))
	id := addReminder(t, repo, 10, "x", noon)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		got, _ := repo.Get(id)
		return got.IsDone
	}, 2*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, repo.fetches.Load(), int32(3))

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Len(t, notifier.messages(), 1)
}
