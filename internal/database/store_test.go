package database

import (
	"context"
	"io"
	"math/rand"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/fasecards/internal/clock"
	"github.com/example/fasecards/internal/progression"
	"github.com/example/fasecards/internal/queue"
	"github.com/example/fasecards/internal/session"
	"github.com/example/fasecards/internal/spaced_repetition"
	"github.com/example/fasecards/pkg/models"
)

var t0 = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return newTestStoreWithClock(t, clock.NewManual(t0))
}

func newTestStoreWithClock(t *testing.T, clk clock.Clock) *Store {
	t.Helper()
	db, err := Connect(context.Background(), Config{Type: TypeSQLite, SQLitePath: ":memory:"})
	require.NoError(t, err)
	store := NewStore(db, clk, quietLogger())
	t.Cleanup(func() { store.Close() })
	return store
}

type seeded struct {
	learner *models.Learner
	phases  []*models.Collection
}

// seed creates three phased decks, the last one only phased through its title
func seed(t *testing.T, store *Store) seeded {
	t.Helper()
	ctx := context.Background()

	phases := []*models.Collection{
		{Title: "Fase 1: Basics", Phase: 1, Items: []models.Item{{Prompt: "hola", Answer: "hello"}, {Prompt: "adiós", Answer: "bye"}}},
		{Title: "Fase 2: Verbs", Phase: 2, Items: []models.Item{{Prompt: "ser", Answer: "to be"}}},
		{Title: "Fase 3: Tenses", Items: []models.Item{{Prompt: "fui", Answer: "I went"}}},
	}
	for _, c := range phases {
		require.NoError(t, store.Collections.CreateCollection(ctx, c))
	}

	learner := &models.Learner{Name: "Ana", TelegramChatID: 42, CreatedAt: t0}
	require.NoError(t, store.Learners.Create(ctx, learner))
	created, err := store.Learners.ProvisionLearner(ctx, learner.ID)
	require.NoError(t, err)
	require.Equal(t, 3, created)

	return seeded{learner: learner, phases: phases}
}

func TestProvisionLearner(t *testing.T) {
	store := newTestStore(t)
	s := seed(t, store)
	ctx := context.Background()

	owned, err := store.Collections.ListPrivateCollections(ctx, s.learner.ID)
	require.NoError(t, err)
	require.Len(t, owned, 3)

	assert.Equal(t, 1, owned[0].Phase)
	assert.False(t, owned[0].IsLocked)
	assert.True(t, owned[1].IsLocked)
	assert.Equal(t, 3, owned[2].Phase, "phase resolved from the title")
	assert.True(t, owned[2].IsLocked)

	again, err := store.Learners.ProvisionLearner(ctx, s.learner.ID)
	require.NoError(t, err)
	assert.Zero(t, again)
}

func TestGetPrivateCollectionWithItems(t *testing.T) {
	store := newTestStore(t)
	s := seed(t, store)
	ctx := context.Background()

	pc, err := store.Collections.GetPrivateCollection(ctx, s.learner.ID, s.phases[0].ID)
	require.NoError(t, err)
	require.NotNil(t, pc)
	require.Len(t, pc.Items, 2)
	assert.Equal(t, "hola", pc.Items[0].Prompt)
	assert.Equal(t, 1, pc.Items[1].Position)

	missing, err := store.Collections.GetPrivateCollection(ctx, s.learner.ID, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUpdatePrivateCollectionIsMonotonic(t *testing.T) {
	store := newTestStore(t)
	s := seed(t, store)
	ctx := context.Background()
	id := s.phases[1].ID

	high, low := 80.0, 30.0
	require.NoError(t, store.Collections.UpdatePrivateCollection(ctx, s.learner.ID, id, models.CollectionUpdate{Score: &high, Unlock: true}))
	require.NoError(t, store.Collections.UpdatePrivateCollection(ctx, s.learner.ID, id, models.CollectionUpdate{Score: &low}))

	pc, err := store.Collections.GetPrivateCollection(ctx, s.learner.ID, id)
	require.NoError(t, err)
	assert.Equal(t, 80.0, pc.Score)
	assert.False(t, pc.IsLocked)

	err = store.Collections.UpdatePrivateCollection(ctx, s.learner.ID, "nope", models.CollectionUpdate{Score: &high})
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestGetPrivateCollectionByPhaseMatchesLegacyTitles(t *testing.T) {
	store := newTestStore(t)
	s := seed(t, store)
	ctx := context.Background()

	other := &models.Learner{Name: "Ben", CreatedAt: t0}
	require.NoError(t, store.Learners.Create(ctx, other))
	// a copy made before phases were stored
	ok, err := store.Collections.CreatePrivateCollection(ctx, &models.PrivateCollection{
		LearnerID:    other.ID,
		CollectionID: s.phases[2].ID,
		Title:        s.phases[2].Title,
		IsLocked:     true,
	})
	require.NoError(t, err)
	require.True(t, ok)

	found, err := store.Collections.GetPrivateCollectionByPhase(ctx, other.ID, models.KindDeck, 3)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, s.phases[2].ID, found.CollectionID)
	assert.Len(t, found.Items, 1)

	none, err := store.Collections.GetPrivateCollectionByPhase(ctx, other.ID, models.KindDeck, 4)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestAtomicallyRollsBack(t *testing.T) {
	store := newTestStore(t)
	s := seed(t, store)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.Atomically(ctx, func(collections session.CollectionStore, _ session.ResponseLog) error {
		if err := collections.UpdatePrivateCollection(ctx, s.learner.ID, s.phases[1].ID, models.CollectionUpdate{Unlock: true}); err != nil {
			return err
		}
		return boom
	})
	assert.Equal(t, boom, err)

	pc, err := store.Collections.GetPrivateCollection(ctx, s.learner.ID, s.phases[1].ID)
	require.NoError(t, err)
	assert.True(t, pc.IsLocked)
}

func newService(store *Store, clk clock.Clock) *session.Service {
	rec := session.NewRecorder(store, spaced_repetition.NewSM2(), progression.NewController(progression.DefaultPolicy(), quietLogger()), clk, quietLogger())
	builder := queue.NewBuilder(rand.NewSource(1), queue.DefaultOptions())
	return session.NewService(rec, store.Collections, store.Responses, builder, clk)
}

func TestRecordSessionAgainstStore(t *testing.T) {
	store := newTestStore(t)
	s := seed(t, store)
	ctx := context.Background()
	clk := clock.NewManual(t0)
	svc := newService(store, clk)

	first := s.phases[0]
	hola, adios := first.Items[0].ID, first.Items[1].ID

	res, err := svc.RecordSession(ctx, session.Submission{
		LearnerID:    s.learner.ID,
		CollectionID: first.ID,
		Reviews:      []session.ItemReview{{ItemID: hola, Quality: 5}, {ItemID: adios, Quality: 2}},
		Score:        50,
	})
	require.NoError(t, err)
	assert.True(t, res.Progress.Unlocked)

	second, err := store.Collections.GetPrivateCollection(ctx, s.learner.ID, s.phases[1].ID)
	require.NoError(t, err)
	assert.False(t, second.IsLocked)

	pc, err := store.Collections.GetPrivateCollection(ctx, s.learner.ID, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 50.0, pc.Score)
	require.NotNil(t, pc.NextReviewDate)
	assert.True(t, t0.Add(4*time.Hour).Equal(*pc.NextReviewDate))
	assert.True(t, t0.Equal(pc.LastAccessed))

	clk.Advance(5 * time.Hour)
	_, err = svc.RecordSession(ctx, session.Submission{
		LearnerID:    s.learner.ID,
		CollectionID: first.ID,
		Reviews:      []session.ItemReview{{ItemID: hola, Quality: 4}},
		Score:        20,
	})
	require.NoError(t, err)

	latest, err := store.Responses.GetLatestMetric(ctx, s.learner.ID, hola)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 2, latest.Attempts)
	assert.True(t, t0.Add(5*time.Hour+12*time.Hour).Equal(latest.NextReviewDate))

	history, err := svc.History(ctx, s.learner.ID, first.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, []string{hola, adios}, history[0].ItemIDs)
	assert.Len(t, history[0].Metrics, 2)
	assert.Equal(t, 20.0, history[1].Score)

	pc, err = store.Collections.GetPrivateCollection(ctx, s.learner.ID, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 50.0, pc.Score, "best score is kept")

	// adiós failed and is due, so it leads the queue
	q, err := svc.NextQueue(ctx, s.learner.ID, first.ID)
	require.NoError(t, err)
	require.Len(t, q, 2)
	assert.Equal(t, adios, q[0].ID)
}

func TestRecordSessionRollsBackOnUnknownItem(t *testing.T) {
	store := newTestStore(t)
	s := seed(t, store)
	ctx := context.Background()
	svc := newService(store, clock.NewManual(t0))

	_, err := svc.RecordSession(ctx, session.Submission{
		LearnerID:    s.learner.ID,
		CollectionID: s.phases[0].ID,
		Reviews: []session.ItemReview{
			{ItemID: s.phases[0].Items[0].ID, Quality: 5},
			{ItemID: s.phases[1].Items[0].ID, Quality: 5},
		},
		Score: 100,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInvalidInput))

	history, err := svc.History(ctx, s.learner.ID, s.phases[0].ID)
	require.NoError(t, err)
	assert.Empty(t, history)

	latest, err := store.Responses.GetLatestMetric(ctx, s.learner.ID, s.phases[0].Items[0].ID)
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestLatestMetrics(t *testing.T) {
	store := newTestStore(t)
	s := seed(t, store)
	ctx := context.Background()
	clk := clock.NewManual(t0)
	svc := newService(store, clk)
	item := s.phases[0].Items[0].ID

	for i := 0; i < 3; i++ {
		_, err := svc.RecordSession(ctx, session.Submission{
			LearnerID:    s.learner.ID,
			CollectionID: s.phases[0].ID,
			Reviews:      []session.ItemReview{{ItemID: item, Quality: 5}},
		})
		require.NoError(t, err)
		clk.Advance(time.Hour)
	}

	metrics, err := store.Responses.LatestMetrics(ctx, s.learner.ID, []string{item, s.phases[0].Items[1].ID})
	require.NoError(t, err)
	require.Len(t, metrics, 1)
	assert.Equal(t, 3, metrics[item].Attempts)

	empty, err := store.Responses.LatestMetrics(ctx, s.learner.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestDueRemindersAndStatistics(t *testing.T) {
	store := newTestStore(t)
	s := seed(t, store)
	ctx := context.Background()
	svc := newService(store, clock.NewManual(t0))

	due, err := store.Learners.DueReminders(ctx, t0)
	require.NoError(t, err)
	assert.Empty(t, due, "nothing scheduled yet")

	_, err = svc.RecordSession(ctx, session.Submission{
		LearnerID:    s.learner.ID,
		CollectionID: s.phases[0].ID,
		Reviews:      []session.ItemReview{{ItemID: s.phases[0].Items[0].ID, Quality: 1}},
		Score:        10,
	})
	require.NoError(t, err)

	due, err = store.Learners.DueReminders(ctx, t0.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, due)

	due, err = store.Learners.DueReminders(ctx, t0.Add(4*time.Hour))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, int64(42), due[0].TelegramChatID)
	assert.Equal(t, 1, due[0].DueCollections)

	stats, err := store.Statistics.ForLearner(ctx, s.learner.ID)
	require.NoError(t, err)
	require.Len(t, stats, 3)
	assert.Equal(t, 1, stats[0].Sessions)
	assert.Equal(t, 2, stats[0].ItemsTotal)
	assert.Equal(t, 1, stats[0].ItemsSeen)
	assert.Zero(t, stats[0].ItemsMastered)
	assert.Equal(t, 10.0, stats[0].BestScore)
	assert.False(t, stats[1].IsLocked)
	assert.True(t, stats[2].IsLocked)
}

func TestProvisionAllPicksUpNewCollections(t *testing.T) {
	store := newTestStore(t)
	s := seed(t, store)
	ctx := context.Background()

	require.NoError(t, store.Collections.CreateCollection(ctx, &models.Collection{Title: "Fase 4: Subjunctive", Phase: 4}))

	n, err := store.Learners.ProvisionAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	fourth, err := store.Collections.GetPrivateCollectionByPhase(ctx, s.learner.ID, models.KindDeck, 4)
	require.NoError(t, err)
	require.NotNil(t, fourth)
	assert.True(t, fourth.IsLocked)
	assert.Empty(t, fourth.Items)
}

func TestGetCollection(t *testing.T) {
	store := newTestStore(t)
	s := seed(t, store)
	ctx := context.Background()

	c, err := store.Collections.GetCollection(ctx, s.phases[0].ID)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, models.KindDeck, c.Kind)
	assert.Len(t, c.Items, 2)

	missing, err := store.Collections.GetCollection(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRepositoriesStampTimesFromClock(t *testing.T) {
	clk := clock.NewManual(t0)
	store := newTestStoreWithClock(t, clk)
	ctx := context.Background()

	c := &models.Collection{Title: "Fase 1: Basics", Phase: 1}
	require.NoError(t, store.Collections.CreateCollection(ctx, c))
	learner := &models.Learner{Name: "Ana"}
	require.NoError(t, store.Learners.Create(ctx, learner))
	_, err := store.Learners.ProvisionLearner(ctx, learner.ID)
	require.NoError(t, err)

	got, err := store.Learners.GetByID(ctx, learner.ID)
	require.NoError(t, err)
	assert.True(t, t0.Equal(got.CreatedAt))
	assert.True(t, t0.Equal(c.CreatedAt))

	pc, err := store.Collections.GetPrivateCollection(ctx, learner.ID, c.ID)
	require.NoError(t, err)
	assert.True(t, t0.Equal(pc.CreatedAt))
	assert.True(t, t0.Equal(pc.UpdatedAt))

	clk.Advance(2 * time.Hour)
	score := 10.0
	require.NoError(t, store.Collections.UpdatePrivateCollection(ctx, learner.ID, c.ID, models.CollectionUpdate{Score: &score}))

	pc, err = store.Collections.GetPrivateCollection(ctx, learner.ID, c.ID)
	require.NoError(t, err)
	assert.True(t, t0.Add(2*time.Hour).Equal(pc.UpdatedAt))
}

func TestCreateCollectionRejectsDuplicatePhase(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Collections.CreateCollection(ctx, &models.Collection{Title: "Verbs", Phase: 2}))
	require.NoError(t, store.Collections.CreateCollection(ctx, &models.Collection{Title: "Verbs quiz", Kind: models.KindQuiz, Phase: 2}))
	assert.Error(t, store.Collections.CreateCollection(ctx, &models.Collection{Title: "More verbs", Phase: 2}))
}

func TestRecordSessionUnlocksSameKindSuccessor(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	deck1 := &models.Collection{Title: "Fase 1: Basics", Phase: 1, Items: []models.Item{{Prompt: "hola", Answer: "hello"}}}
	quiz2 := &models.Collection{Title: "Fase 2: Quiz verbs", Kind: models.KindQuiz, Phase: 2, Items: []models.Item{{Prompt: "ser?", Answer: "to be"}}}
	deck2 := &models.Collection{Title: "Fase 2: Verbs", Phase: 2, Items: []models.Item{{Prompt: "ser", Answer: "to be"}}}
	for _, c := range []*models.Collection{deck1, quiz2, deck2} {
		require.NoError(t, store.Collections.CreateCollection(ctx, c))
	}
	learner := &models.Learner{Name: "Ana"}
	require.NoError(t, store.Learners.Create(ctx, learner))
	_, err := store.Learners.ProvisionLearner(ctx, learner.ID)
	require.NoError(t, err)

	svc := newService(store, clock.NewManual(t0))
	res, err := svc.RecordSession(ctx, session.Submission{
		LearnerID:    learner.ID,
		CollectionID: deck1.ID,
		Reviews:      []session.ItemReview{{ItemID: deck1.Items[0].ID, Quality: 5}},
		Score:        90,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Progress.Successor)
	assert.Equal(t, deck2.ID, res.Progress.Successor.CollectionID)

	gotDeck, err := store.Collections.GetPrivateCollection(ctx, learner.ID, deck2.ID)
	require.NoError(t, err)
	assert.False(t, gotDeck.IsLocked)

	gotQuiz, err := store.Collections.GetPrivateCollection(ctx, learner.ID, quiz2.ID)
	require.NoError(t, err)
	assert.True(t, gotQuiz.IsLocked)
}
