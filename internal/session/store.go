package session

import (
	"context"

	"github.com/example/fasecards/internal/progression"
	"github.com/example/fasecards/pkg/models"
)

// CollectionStore reads and updates a learner's private collections.
// Lookups return nil, nil when nothing matches.
type CollectionStore interface {
	progression.Store
	GetPrivateCollection(ctx context.Context, learnerID, collectionID string) (*models.PrivateCollection, error)
}

// ResponseLog is the append-only history of review sessions.
// GetLatestMetric returns nil, nil for an item the learner never reviewed.
type ResponseLog interface {
	GetLatestMetric(ctx context.Context, learnerID, itemID string) (*models.ItemMetric, error)
	LatestMetrics(ctx context.Context, learnerID string, itemIDs []string) (map[string]models.ItemMetric, error)
	AppendSessionResponse(ctx context.Context, response *models.SessionResponse) (*models.SessionResponse, error)
	ListSessionResponses(ctx context.Context, learnerID, collectionID string) ([]models.SessionResponse, error)
}

// UnitOfWork runs fn against stores whose writes become visible together or not at all
type UnitOfWork interface {
	Atomically(ctx context.Context, fn func(collections CollectionStore, log ResponseLog) error) error
}
