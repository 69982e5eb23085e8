package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/example/fasecards/pkg/models"
)

const metricColumns = `learner_id, item_id, attempts, ease_factor, review_quality, next_review_date, last_attempt`

func qualifiedMetricColumns(alias string) string {
	cols := strings.Split(metricColumns, ", ")
	return alias + "." + strings.Join(cols, ", "+alias+".")
}

// ResponseRepository is the append-only log of session responses and the item metrics they produced
type ResponseRepository struct {
	q sqlx.ExtContext
}

// NewResponseRepository creates a new repository instance
func NewResponseRepository(q sqlx.ExtContext) *ResponseRepository {
	return &ResponseRepository{q: q}
}

type responseRow struct {
	ID           string    `db:"id"`
	LearnerID    string    `db:"learner_id"`
	CollectionID string    `db:"collection_id"`
	ItemIDs      string    `db:"item_ids"`
	Score        float64   `db:"score"`
	CreatedAt    time.Time `db:"created_at"`
}

type metricRow struct {
	ResponseID string `db:"response_id"`
	models.ItemMetric
}

// AppendSessionResponse stores a response and its metrics. Responses are never updated.
func (r *ResponseRepository) AppendSessionResponse(ctx context.Context, response *models.SessionResponse) (*models.SessionResponse, error) {
	itemIDs, err := json.Marshal(lo.Ternary(response.ItemIDs == nil, []string{}, response.ItemIDs))
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode item ids")
	}

	query := r.q.Rebind(`
		INSERT INTO session_responses (id, learner_id, collection_id, item_ids, score, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	_, err = r.q.ExecContext(ctx, query,
		response.ID,
		response.LearnerID,
		response.CollectionID,
		string(itemIDs),
		response.Score,
		response.CreatedAt,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to insert session response")
	}

	metricQuery := r.q.Rebind(`
		INSERT INTO item_metrics (response_id, ` + metricColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	for _, m := range response.Metrics {
		_, err := r.q.ExecContext(ctx, metricQuery,
			response.ID,
			m.LearnerID,
			m.ItemID,
			m.Attempts,
			m.EaseFactor,
			m.ReviewQuality,
			m.NextReviewDate,
			m.LastAttempt,
		)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to insert metric for item %s", m.ItemID)
		}
	}

	out := *response
	return &out, nil
}

// GetLatestMetric returns the most recent metric of an item for a learner, or nil if it was never reviewed
func (r *ResponseRepository) GetLatestMetric(ctx context.Context, learnerID, itemID string) (*models.ItemMetric, error) {
	var m models.ItemMetric
	query := r.q.Rebind(`
		SELECT ` + metricColumns + `
		FROM item_metrics
		WHERE learner_id = ? AND item_id = ?
		ORDER BY id DESC
		LIMIT 1
	`)
	err := sqlx.GetContext(ctx, r.q, &m, query, learnerID, itemID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get latest metric")
	}
	return &m, nil
}

// LatestMetrics returns the most recent metric per item for the given items
func (r *ResponseRepository) LatestMetrics(ctx context.Context, learnerID string, itemIDs []string) (map[string]models.ItemMetric, error) {
	out := make(map[string]models.ItemMetric, len(itemIDs))
	if len(itemIDs) == 0 {
		return out, nil
	}

	query, args, err := sqlx.In(`
		SELECT `+metricColumns+`
		FROM item_metrics
		WHERE id IN (
			SELECT MAX(id) FROM item_metrics
			WHERE learner_id = ? AND item_id IN (?)
			GROUP BY item_id
		)
	`, learnerID, itemIDs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build metrics query")
	}

	var metrics []models.ItemMetric
	if err := sqlx.SelectContext(ctx, r.q, &metrics, r.q.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "failed to get latest metrics")
	}
	for _, m := range metrics {
		out[m.ItemID] = m
	}
	return out, nil
}

// ListSessionResponses returns a learner's responses for a collection in the order they were recorded
func (r *ResponseRepository) ListSessionResponses(ctx context.Context, learnerID, collectionID string) ([]models.SessionResponse, error) {
	var rows []responseRow
	query := r.q.Rebind(`
		SELECT id, learner_id, collection_id, item_ids, score, created_at
		FROM session_responses
		WHERE learner_id = ? AND collection_id = ?
		ORDER BY seq
	`)
	if err := sqlx.SelectContext(ctx, r.q, &rows, query, learnerID, collectionID); err != nil {
		return nil, errors.Wrap(err, "failed to list session responses")
	}
	if len(rows) == 0 {
		return []models.SessionResponse{}, nil
	}

	metricsQuery, args, err := sqlx.In(`
		SELECT response_id, `+metricColumns+`
		FROM item_metrics
		WHERE response_id IN (?)
		ORDER BY id
	`, lo.Map(rows, func(row responseRow, _ int) string { return row.ID }))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build metrics query")
	}
	var metrics []metricRow
	if err := sqlx.SelectContext(ctx, r.q, &metrics, r.q.Rebind(metricsQuery), args...); err != nil {
		return nil, errors.Wrap(err, "failed to get session metrics")
	}
	byResponse := lo.GroupBy(metrics, func(m metricRow) string { return m.ResponseID })

	responses := make([]models.SessionResponse, 0, len(rows))
	for _, row := range rows {
		resp := models.SessionResponse{
			ID:           row.ID,
			LearnerID:    row.LearnerID,
			CollectionID: row.CollectionID,
			Score:        row.Score,
			CreatedAt:    row.CreatedAt,
			Metrics:      lo.Map(byResponse[row.ID], func(m metricRow, _ int) models.ItemMetric { return m.ItemMetric }),
		}
		if err := json.Unmarshal([]byte(row.ItemIDs), &resp.ItemIDs); err != nil {
			return nil, errors.Wrapf(err, "failed to decode item ids of response %s", row.ID)
		}
		responses = append(responses, resp)
	}
	return responses, nil
}
