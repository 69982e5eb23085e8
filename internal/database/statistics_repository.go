package database

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/example/fasecards/internal/spaced_repetition"
	"github.com/example/fasecards/pkg/models"
)

// StatisticsRepository computes progress summaries
type StatisticsRepository struct {
	q   sqlx.ExtContext
	sm2 *spaced_repetition.SM2
}

// NewStatisticsRepository creates a new repository instance
func NewStatisticsRepository(q sqlx.ExtContext) *StatisticsRepository {
	return &StatisticsRepository{q: q, sm2: spaced_repetition.NewSM2()}
}

type latestMetricRow struct {
	CollectionID string `db:"collection_id"`
	models.ItemMetric
}

// ForLearner returns one summary per private collection of the learner, ordered by phase
func (r *StatisticsRepository) ForLearner(ctx context.Context, learnerID string) ([]models.Statistics, error) {
	var stats []models.Statistics
	query := r.q.Rebind(`
		SELECT pc.collection_id, pc.title, pc.phase, pc.is_locked, pc.score, pc.next_review_date,
			(SELECT COUNT(*) FROM session_responses sr
				WHERE sr.learner_id = pc.learner_id AND sr.collection_id = pc.collection_id) AS sessions,
			(SELECT COUNT(*) FROM items i
				WHERE i.collection_id = pc.collection_id) AS items_total
		FROM private_collections pc
		WHERE pc.learner_id = ?
		ORDER BY pc.phase, pc.title
	`)
	if err := sqlx.SelectContext(ctx, r.q, &stats, query, learnerID); err != nil {
		return nil, errors.Wrap(err, "failed to get statistics")
	}

	var latest []latestMetricRow
	query = r.q.Rebind(`
		SELECT i.collection_id, ` + qualifiedMetricColumns("m") + `
		FROM item_metrics m
		JOIN items i ON i.id = m.item_id
		WHERE m.id IN (SELECT MAX(id) FROM item_metrics WHERE learner_id = ? GROUP BY item_id)
	`)
	if err := sqlx.SelectContext(ctx, r.q, &latest, query, learnerID); err != nil {
		return nil, errors.Wrap(err, "failed to get latest metrics")
	}

	byCollection := make(map[string]*models.Statistics, len(stats))
	for i := range stats {
		byCollection[stats[i].CollectionID] = &stats[i]
	}
	for _, row := range latest {
		s, ok := byCollection[row.CollectionID]
		if !ok {
			continue
		}
		s.ItemsSeen++
		if r.sm2.IsMastered(row.ItemMetric) {
			s.ItemsMastered++
		}
	}
	return stats, nil
}
