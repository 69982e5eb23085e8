package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/example/fasecards/internal/clock"
	"github.com/example/fasecards/pkg/models"
)

// DueReminder is a learner with unlocked collections waiting for review
type DueReminder struct {
	LearnerID      string `db:"learner_id"`
	Name           string `db:"name"`
	TelegramChatID int64  `db:"telegram_chat_id"`
	DueCollections int    `db:"due_collections"`
}

// LearnerRepository handles database operations for learners
type LearnerRepository struct {
	q     sqlx.ExtContext
	clock clock.Clock
	log   logrus.FieldLogger
}

// NewLearnerRepository creates a new repository instance
func NewLearnerRepository(q sqlx.ExtContext, clk clock.Clock, log logrus.FieldLogger) *LearnerRepository {
	return &LearnerRepository{q: q, clock: clk, log: log}
}

// Create inserts a new learner
func (r *LearnerRepository) Create(ctx context.Context, learner *models.Learner) error {
	if learner.ID == "" {
		learner.ID = uuid.NewString()
	}
	if learner.CreatedAt.IsZero() {
		learner.CreatedAt = r.clock.Now()
	}

	query := r.q.Rebind(`INSERT INTO learners (id, name, telegram_chat_id, created_at) VALUES (?, ?, ?, ?)`)
	if _, err := r.q.ExecContext(ctx, query, learner.ID, learner.Name, learner.TelegramChatID, learner.CreatedAt); err != nil {
		return errors.Wrap(err, "failed to create learner")
	}
	return nil
}

// GetByID returns a learner, or nil if it doesn't exist
func (r *LearnerRepository) GetByID(ctx context.Context, id string) (*models.Learner, error) {
	var learner models.Learner
	query := r.q.Rebind(`SELECT id, name, telegram_chat_id, created_at FROM learners WHERE id = ?`)
	err := sqlx.GetContext(ctx, r.q, &learner, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get learner")
	}
	return &learner, nil
}

// GetAll returns all learners
func (r *LearnerRepository) GetAll(ctx context.Context) ([]models.Learner, error) {
	var learners []models.Learner
	err := sqlx.SelectContext(ctx, r.q, &learners, `SELECT id, name, telegram_chat_id, created_at FROM learners ORDER BY created_at`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get learners")
	}
	return learners, nil
}

// ProvisionLearner gives the learner a private copy of every shared collection they don't have yet.
// Phase 1 starts unlocked, every other phase starts locked. Returns the number of copies created.
func (r *LearnerRepository) ProvisionLearner(ctx context.Context, learnerID string) (int, error) {
	collections := NewCollectionRepository(r.q, r.clock, r.log)

	shared, err := collections.ListCollections(ctx)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, c := range shared {
		phase, err := c.PhaseNumber()
		if err != nil {
			r.log.WithError(err).WithField("collection_id", c.ID).Warn("collection has no phase, provisioning it locked")
		}

		ok, err := collections.CreatePrivateCollection(ctx, &models.PrivateCollection{
			LearnerID:    learnerID,
			CollectionID: c.ID,
			Kind:         c.Kind,
			Title:        c.Title,
			Phase:        phase,
			IsLocked:     phase != 1,
		})
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}
	return created, nil
}

// ProvisionAll runs ProvisionLearner for every learner, picking up newly imported collections
func (r *LearnerRepository) ProvisionAll(ctx context.Context) (int, error) {
	learners, err := r.GetAll(ctx)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, l := range learners {
		n, err := r.ProvisionLearner(ctx, l.ID)
		if err != nil {
			return total, errors.Wrapf(err, "failed to provision learner %s", l.ID)
		}
		total += n
	}
	return total, nil
}

// DueReminders returns learners with a chat id whose unlocked collections are due at now
func (r *LearnerRepository) DueReminders(ctx context.Context, now time.Time) ([]DueReminder, error) {
	var due []DueReminder
	query := r.q.Rebind(`
		SELECT l.id AS learner_id, l.name, l.telegram_chat_id, COUNT(*) AS due_collections
		FROM private_collections pc
		JOIN learners l ON l.id = pc.learner_id
		WHERE pc.is_locked = FALSE
		AND pc.next_review_date IS NOT NULL
		AND pc.next_review_date <= ?
		AND l.telegram_chat_id <> 0
		GROUP BY l.id, l.name, l.telegram_chat_id
		ORDER BY l.id
	`)
	if err := sqlx.SelectContext(ctx, r.q, &due, query, now); err != nil {
		return nil, errors.Wrap(err, "failed to get due reminders")
	}
	return due, nil
}
