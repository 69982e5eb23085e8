package database

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/example/fasecards/internal/clock"
	"github.com/example/fasecards/internal/progression"
	"github.com/example/fasecards/pkg/models"
)

const privateCollectionColumns = `learner_id, collection_id, kind, title, phase, score, is_locked,
	last_accessed, next_review_date, created_at, updated_at`

const itemColumns = `id, collection_id, position, prompt, answer, practice_example, explanation, category, difficulty`

// CollectionRepository handles database operations for shared and private collections
type CollectionRepository struct {
	q     sqlx.ExtContext
	clock clock.Clock
	log   logrus.FieldLogger
}

// NewCollectionRepository creates a new repository instance
func NewCollectionRepository(q sqlx.ExtContext, clk clock.Clock, log logrus.FieldLogger) *CollectionRepository {
	return &CollectionRepository{q: q, clock: clk, log: log}
}

// CreateCollection inserts a shared collection and its items
func (r *CollectionRepository) CreateCollection(ctx context.Context, c *models.Collection) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = r.clock.Now()
	}
	c.Kind = c.Kind.OrDefault()

	query := r.q.Rebind(`
		INSERT INTO collections (id, kind, title, phase, theme, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if _, err := r.q.ExecContext(ctx, query, c.ID, c.Kind, c.Title, c.Phase, c.Theme, c.Description, c.CreatedAt); err != nil {
		return errors.Wrapf(err, "failed to create collection %q", c.Title)
	}

	for i := range c.Items {
		c.Items[i].Position = i
		if err := r.AddItem(ctx, c.ID, &c.Items[i]); err != nil {
			return err
		}
	}
	return nil
}

// AddItem appends an item to a shared collection
func (r *CollectionRepository) AddItem(ctx context.Context, collectionID string, item *models.Item) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item.CollectionID = collectionID

	query := r.q.Rebind(`
		INSERT INTO items (` + itemColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := r.q.ExecContext(ctx, query,
		item.ID,
		item.CollectionID,
		item.Position,
		item.Prompt,
		item.Answer,
		item.PracticeExample,
		item.Explanation,
		item.Category,
		item.Difficulty,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to add item %q", item.Prompt)
	}
	return nil
}

// GetCollection returns a shared collection with its items, or nil if it doesn't exist
func (r *CollectionRepository) GetCollection(ctx context.Context, id string) (*models.Collection, error) {
	return r.getCollection(ctx, "id", id)
}

// GetCollectionByTitle returns a shared collection with its items, or nil if it doesn't exist
func (r *CollectionRepository) GetCollectionByTitle(ctx context.Context, title string) (*models.Collection, error) {
	return r.getCollection(ctx, "title", title)
}

func (r *CollectionRepository) getCollection(ctx context.Context, column, value string) (*models.Collection, error) {
	var c models.Collection
	query := r.q.Rebind(`
		SELECT id, kind, title, phase, theme, description, created_at
		FROM collections WHERE ` + column + ` = ?
	`)
	err := sqlx.GetContext(ctx, r.q, &c, query, value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get collection")
	}

	items, err := r.items(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	c.Items = items
	return &c, nil
}

// ListCollections returns all shared collections without items, ordered by phase
func (r *CollectionRepository) ListCollections(ctx context.Context) ([]models.Collection, error) {
	var collections []models.Collection
	err := sqlx.SelectContext(ctx, r.q, &collections, `
		SELECT id, kind, title, phase, theme, description, created_at
		FROM collections
		ORDER BY phase, title
	`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list collections")
	}
	return collections, nil
}

func (r *CollectionRepository) items(ctx context.Context, collectionID string) ([]models.Item, error) {
	items := []models.Item{}
	query := r.q.Rebind(`SELECT ` + itemColumns + ` FROM items WHERE collection_id = ? ORDER BY position`)
	if err := sqlx.SelectContext(ctx, r.q, &items, query, collectionID); err != nil {
		return nil, errors.Wrap(err, "failed to get items")
	}
	return items, nil
}

// CreatePrivateCollection clones a shared collection for a learner.
// Returns false when the learner already has a copy.
func (r *CollectionRepository) CreatePrivateCollection(ctx context.Context, pc *models.PrivateCollection) (bool, error) {
	if pc.CreatedAt.IsZero() {
		pc.CreatedAt = r.clock.Now()
	}
	pc.Kind = pc.Kind.OrDefault()
	if pc.LastAccessed.IsZero() {
		pc.LastAccessed = pc.CreatedAt
	}
	pc.UpdatedAt = pc.CreatedAt

	query := r.q.Rebind(`
		INSERT INTO private_collections (` + privateCollectionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (learner_id, collection_id) DO NOTHING
	`)
	result, err := r.q.ExecContext(ctx, query,
		pc.LearnerID,
		pc.CollectionID,
		pc.Kind,
		pc.Title,
		pc.Phase,
		pc.Score,
		pc.IsLocked,
		pc.LastAccessed,
		pc.NextReviewDate,
		pc.CreatedAt,
		pc.UpdatedAt,
	)
	if err != nil {
		return false, errors.Wrap(err, "failed to create private collection")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to get rows affected")
	}
	return rows > 0, nil
}

// GetPrivateCollection returns the learner's copy of a collection with its items, or nil
func (r *CollectionRepository) GetPrivateCollection(ctx context.Context, learnerID, collectionID string) (*models.PrivateCollection, error) {
	var pc models.PrivateCollection
	query := r.q.Rebind(`
		SELECT ` + privateCollectionColumns + `
		FROM private_collections
		WHERE learner_id = ? AND collection_id = ?
	`)
	err := sqlx.GetContext(ctx, r.q, &pc, query, learnerID, collectionID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get private collection")
	}

	if pc.Items, err = r.items(ctx, pc.CollectionID); err != nil {
		return nil, err
	}
	return &pc, nil
}

// GetPrivateCollectionByPhase returns the learner's collection of kind at phase, or nil.
// Rows created before phases were stored explicitly (phase = 0) are matched on their title.
func (r *CollectionRepository) GetPrivateCollectionByPhase(ctx context.Context, learnerID string, kind models.CollectionKind, phase int) (*models.PrivateCollection, error) {
	kind = kind.OrDefault()

	var candidates []models.PrivateCollection
	query := r.q.Rebind(`
		SELECT ` + privateCollectionColumns + `
		FROM private_collections
		WHERE learner_id = ? AND kind = ? AND (phase = ? OR phase = 0)
		ORDER BY phase DESC, collection_id
	`)
	if err := sqlx.SelectContext(ctx, r.q, &candidates, query, learnerID, kind, phase); err != nil {
		return nil, errors.Wrap(err, "failed to get private collection by phase")
	}

	found := progression.FindPhase(candidates, kind, phase, r.log.WithField("learner_id", learnerID))
	if found == nil {
		return nil, nil
	}

	items, err := r.items(ctx, found.CollectionID)
	if err != nil {
		return nil, err
	}
	found.Items = items
	return found, nil
}

// ListPrivateCollections returns all of a learner's collections without items, ordered by phase
func (r *CollectionRepository) ListPrivateCollections(ctx context.Context, learnerID string) ([]models.PrivateCollection, error) {
	var collections []models.PrivateCollection
	query := r.q.Rebind(`
		SELECT ` + privateCollectionColumns + `
		FROM private_collections
		WHERE learner_id = ?
		ORDER BY phase, title
	`)
	if err := sqlx.SelectContext(ctx, r.q, &collections, query, learnerID); err != nil {
		return nil, errors.Wrap(err, "failed to list private collections")
	}
	return collections, nil
}

// UpdatePrivateCollection applies update to the learner's collection.
// The score only moves up and the lock can only be cleared, so concurrent
// writers cannot undo each other's progress.
func (r *CollectionRepository) UpdatePrivateCollection(ctx context.Context, learnerID, collectionID string, update models.CollectionUpdate) error {
	sets := []string{"updated_at = ?"}
	args := []interface{}{r.clock.Now()}

	if update.Score != nil {
		sets = append(sets, "score = CASE WHEN ? > score THEN ? ELSE score END")
		args = append(args, *update.Score, *update.Score)
	}
	if update.Unlock {
		sets = append(sets, "is_locked = FALSE")
	}
	if update.LastAccessed != nil {
		sets = append(sets, "last_accessed = ?")
		args = append(args, *update.LastAccessed)
	}
	if update.NextReviewDate != nil {
		sets = append(sets, "next_review_date = ?")
		args = append(args, *update.NextReviewDate)
	}
	args = append(args, learnerID, collectionID)

	query := r.q.Rebind(`
		UPDATE private_collections SET ` + strings.Join(sets, ", ") + `
		WHERE learner_id = ? AND collection_id = ?
	`)
	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "failed to update private collection")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.Wrapf(models.ErrNotFound, "private collection %s for learner %s", collectionID, learnerID)
	}
	return nil
}
