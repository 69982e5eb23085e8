package session

import (
	"context"
	"sort"
	"sync"

	"github.com/example/fasecards/internal/progression"
	"github.com/example/fasecards/pkg/models"
)

type collectionKey struct{ learnerID, collectionID string }

// memStore is an in-memory UnitOfWork. Atomically works on a copy and only
// swaps it in when fn succeeds.
type memStore struct {
	mu          sync.Mutex
	collections map[collectionKey]models.PrivateCollection
	responses   []models.SessionResponse
	failAppend  error
}

func newMemStore(collections ...models.PrivateCollection) *memStore {
	s := &memStore{collections: make(map[collectionKey]models.PrivateCollection)}
	for _, c := range collections {
		s.collections[collectionKey{c.LearnerID, c.CollectionID}] = c
	}
	return s
}

func (s *memStore) Atomically(ctx context.Context, fn func(CollectionStore, ResponseLog) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		collections: make(map[collectionKey]models.PrivateCollection, len(s.collections)),
		responses:   append([]models.SessionResponse(nil), s.responses...),
		failAppend:  s.failAppend,
	}
	for k, v := range s.collections {
		tx.collections[k] = v
	}
	if err := fn(tx, tx); err != nil {
		return err
	}
	s.collections = tx.collections
	s.responses = tx.responses
	return nil
}

func (s *memStore) live() *memTx {
	return &memTx{collections: s.collections, responses: s.responses}
}

func (s *memStore) GetPrivateCollection(ctx context.Context, learnerID, collectionID string) (*models.PrivateCollection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live().GetPrivateCollection(ctx, learnerID, collectionID)
}

func (s *memStore) GetPrivateCollectionByPhase(ctx context.Context, learnerID string, kind models.CollectionKind, phase int) (*models.PrivateCollection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live().GetPrivateCollectionByPhase(ctx, learnerID, kind, phase)
}

func (s *memStore) UpdatePrivateCollection(ctx context.Context, learnerID, collectionID string, update models.CollectionUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live().UpdatePrivateCollection(ctx, learnerID, collectionID, update)
}

func (s *memStore) GetLatestMetric(ctx context.Context, learnerID, itemID string) (*models.ItemMetric, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live().GetLatestMetric(ctx, learnerID, itemID)
}

func (s *memStore) LatestMetrics(ctx context.Context, learnerID string, itemIDs []string) (map[string]models.ItemMetric, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live().LatestMetrics(ctx, learnerID, itemIDs)
}

func (s *memStore) AppendSessionResponse(ctx context.Context, response *models.SessionResponse) (*models.SessionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := s.live()
	out, err := tx.AppendSessionResponse(ctx, response)
	s.responses = tx.responses
	return out, err
}

func (s *memStore) ListSessionResponses(ctx context.Context, learnerID, collectionID string) ([]models.SessionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live().ListSessionResponses(ctx, learnerID, collectionID)
}

func (s *memStore) collection(learnerID, collectionID string) models.PrivateCollection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collections[collectionKey{learnerID, collectionID}]
}

type memTx struct {
	collections map[collectionKey]models.PrivateCollection
	responses   []models.SessionResponse
	failAppend  error
}

func (t *memTx) GetPrivateCollection(ctx context.Context, learnerID, collectionID string) (*models.PrivateCollection, error) {
	c, ok := t.collections[collectionKey{learnerID, collectionID}]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (t *memTx) GetPrivateCollectionByPhase(ctx context.Context, learnerID string, kind models.CollectionKind, phase int) (*models.PrivateCollection, error) {
	var owned []models.PrivateCollection
	for k, c := range t.collections {
		if k.learnerID == learnerID {
			owned = append(owned, c)
		}
	}
	sort.Slice(owned, func(i, j int) bool { return owned[i].CollectionID < owned[j].CollectionID })
	return progression.FindPhase(owned, kind, phase, nil), nil
}

func (t *memTx) UpdatePrivateCollection(ctx context.Context, learnerID, collectionID string, update models.CollectionUpdate) error {
	k := collectionKey{learnerID, collectionID}
	c, ok := t.collections[k]
	if !ok {
		return models.ErrNotFound
	}
	update.Apply(&c)
	t.collections[k] = c
	return nil
}

func (t *memTx) GetLatestMetric(ctx context.Context, learnerID, itemID string) (*models.ItemMetric, error) {
	for i := len(t.responses) - 1; i >= 0; i-- {
		r := t.responses[i]
		if r.LearnerID != learnerID {
			continue
		}
		for j := len(r.Metrics) - 1; j >= 0; j-- {
			if r.Metrics[j].ItemID == itemID {
				m := r.Metrics[j]
				return &m, nil
			}
		}
	}
	return nil, nil
}

func (t *memTx) LatestMetrics(ctx context.Context, learnerID string, itemIDs []string) (map[string]models.ItemMetric, error) {
	out := make(map[string]models.ItemMetric)
	for _, id := range itemIDs {
		m, _ := t.GetLatestMetric(ctx, learnerID, id)
		if m != nil {
			out[id] = *m
		}
	}
	return out, nil
}

func (t *memTx) AppendSessionResponse(ctx context.Context, response *models.SessionResponse) (*models.SessionResponse, error) {
	if t.failAppend != nil {
		return nil, t.failAppend
	}
	t.responses = append(t.responses, *response)
	out := *response
	return &out, nil
}

func (t *memTx) ListSessionResponses(ctx context.Context, learnerID, collectionID string) ([]models.SessionResponse, error) {
	var out []models.SessionResponse
	for _, r := range t.responses {
		if r.LearnerID == learnerID && r.CollectionID == collectionID {
			out = append(out, r)
		}
	}
	return out, nil
}
