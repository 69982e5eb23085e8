package scheduler

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/fasecards/internal/clock"
	"github.com/example/fasecards/internal/database"
)

type fakeSource struct {
	due   []database.DueReminder
	err   error
	asked time.Time
}

func (f *fakeSource) DueReminders(ctx context.Context, now time.Time) ([]database.DueReminder, error) {
	f.asked = now
	return f.due, f.err
}

type sent struct {
	chatID int64
	count  int
}

type fakeNotifier struct {
	sent    []sent
	failFor int64
}

func (f *fakeNotifier) SendReminder(chatID int64, name string, dueCollections int) error {
	if chatID == f.failFor {
		return errors.New("blocked by user")
	}
	f.sent = append(f.sent, sent{chatID, dueCollections})
	return nil
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestCheckAndSendReminders(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	source := &fakeSource{due: []database.DueReminder{
		{LearnerID: "a", TelegramChatID: 1, DueCollections: 2},
		{LearnerID: "b", TelegramChatID: 2, DueCollections: 1},
		{LearnerID: "c", TelegramChatID: 3, DueCollections: 1},
	}}
	notifier := &fakeNotifier{failFor: 2}
	s := New(source, notifier, clock.NewManual(now), Window{StartHour: 8, EndHour: 20}, quietLogger())

	n, err := s.CheckAndSendReminders(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, n)
	assert.Equal(t, []sent{{1, 2}, {3, 1}}, notifier.sent)
	assert.True(t, now.Equal(source.asked))
}

func TestCheckAndSendRemindersOutsideWindow(t *testing.T) {
	clk := clock.NewManual(time.Date(2025, 6, 15, 21, 0, 0, 0, time.UTC))
	source := &fakeSource{due: []database.DueReminder{{TelegramChatID: 1, DueCollections: 1}}}
	notifier := &fakeNotifier{}
	s := New(source, notifier, clk, Window{StartHour: 8, EndHour: 20}, quietLogger())

	n, err := s.CheckAndSendReminders(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, notifier.sent)

	clk.Set(time.Date(2025, 6, 16, 20, 59, 0, 0, time.UTC))
	n, err = s.CheckAndSendReminders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCheckAndSendRemindersSourceError(t *testing.T) {
	clk := clock.NewManual(time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC))
	s := New(&fakeSource{err: errors.New("db down")}, &fakeNotifier{}, clk, Window{StartHour: 0, EndHour: 23}, quietLogger())

	_, err := s.CheckAndSendReminders(context.Background())
	assert.Error(t, err)
}

func TestStartAndStop(t *testing.T) {
	s := New(&fakeSource{}, &fakeNotifier{}, clock.NewManual(time.Now()), Window{StartHour: 0, EndHour: 23}, quietLogger())
	require.NoError(t, s.Start(context.Background()))
	s.Stop()
}
