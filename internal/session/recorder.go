package session

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/example/fasecards/internal/clock"
	"github.com/example/fasecards/internal/progression"
	"github.com/example/fasecards/internal/spaced_repetition"
	"github.com/example/fasecards/pkg/models"
)

// ItemReview is the learner's rating of a single item in a session
type ItemReview struct {
	ItemID  string `json:"item_id"`
	Quality int    `json:"quality"`
}

// Submission is one completed session as sent by the learner
type Submission struct {
	LearnerID    string       `json:"learner_id"`
	CollectionID string       `json:"collection_id"`
	Reviews      []ItemReview `json:"reviews"`
	Score        float64      `json:"score"`
}

// Result is the recorded response plus what happened to the learner's progression
type Result struct {
	Response   *models.SessionResponse   `json:"response"`
	Collection *models.PrivateCollection `json:"collection"`
	Progress   *progression.Outcome      `json:"progress"`
}

// Recorder turns a session submission into updated metrics, collection state and a log entry
type Recorder struct {
	uow        UnitOfWork
	sm2        *spaced_repetition.SM2
	controller *progression.Controller
	clock      clock.Clock
	log        logrus.FieldLogger
}

// NewRecorder wires a recorder
func NewRecorder(uow UnitOfWork, sm2 *spaced_repetition.SM2, controller *progression.Controller, clk clock.Clock, log logrus.FieldLogger) *Recorder {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Recorder{uow: uow, sm2: sm2, controller: controller, clock: clk, log: log}
}

// RecordSession stores one session. Re-submitting the same session records it again:
// every call appends a response and counts another attempt for each item.
func (r *Recorder) RecordSession(ctx context.Context, sub Submission) (*Result, error) {
	if err := validate(sub); err != nil {
		return nil, err
	}

	var result *Result

	err := r.uow.Atomically(ctx, func(collections CollectionStore, responses ResponseLog) error {
		res, err := r.record(ctx, collections, responses, sub)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.log.WithFields(logrus.Fields{
		"learner_id":    sub.LearnerID,
		"collection_id": sub.CollectionID,
		"items":         len(sub.Reviews),
		"score":         sub.Score,
		"unlocked":      result.Progress.Unlocked,
	}).Info("session recorded")

	return result, nil
}

func (r *Recorder) record(ctx context.Context, collections CollectionStore, responses ResponseLog, sub Submission) (*Result, error) {
	now := r.clock.Now()

	current, err := collections.GetPrivateCollection(ctx, sub.LearnerID, sub.CollectionID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load private collection")
	}
	if current == nil {
		return nil, errors.Wrapf(models.ErrPreconditionNotMet, "learner %s has no private collection %s", sub.LearnerID, sub.CollectionID)
	}
	if _, err := current.PhaseNumber(); err != nil {
		return nil, errors.Wrapf(err, "collection %s", current.CollectionID)
	}

	metrics := make([]models.ItemMetric, 0, len(sub.Reviews))
	// an item reviewed twice in one session chains on its in-session result
	latest := make(map[string]models.ItemMetric, len(sub.Reviews))
	for _, review := range sub.Reviews {
		if !current.HasItem(review.ItemID) {
			return nil, errors.Wrapf(models.ErrInvalidInput, "item %s is not part of collection %s", review.ItemID, current.CollectionID)
		}

		var prev *models.ItemMetric
		if seen, ok := latest[review.ItemID]; ok {
			prev = &seen
		} else {
			prev, err = responses.GetLatestMetric(ctx, sub.LearnerID, review.ItemID)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to load metric for item %s", review.ItemID)
			}
		}

		next, err := r.sm2.Update(prev, review.Quality, now)
		if err != nil {
			return nil, errors.Wrapf(err, "item %s", review.ItemID)
		}
		next.LearnerID = sub.LearnerID
		next.ItemID = review.ItemID

		metrics = append(metrics, next)
		latest[review.ItemID] = next
	}

	nextReview := spaced_repetition.Aggregate(metrics, now)
	update := models.CollectionUpdate{
		LastAccessed:   &now,
		NextReviewDate: &nextReview,
	}
	if best, improved := progression.HighWater(current.Score, sub.Score); improved {
		update.Score = &best
	}
	if err := collections.UpdatePrivateCollection(ctx, sub.LearnerID, sub.CollectionID, update); err != nil {
		return nil, errors.Wrap(err, "failed to update private collection")
	}
	update.Apply(current)

	outcome, err := r.controller.Advance(ctx, collections, current, sub.Score)
	if err != nil {
		return nil, err
	}

	itemIDs := lo.Uniq(lo.Map(metrics, func(m models.ItemMetric, _ int) string { return m.ItemID }))

	response, err := responses.AppendSessionResponse(ctx, &models.SessionResponse{
		ID:           uuid.NewString(),
		LearnerID:    sub.LearnerID,
		CollectionID: sub.CollectionID,
		ItemIDs:      itemIDs,
		Score:        sub.Score,
		CreatedAt:    now,
		Metrics:      metrics,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to append session response")
	}

	return &Result{Response: response, Collection: current, Progress: outcome}, nil
}

func validate(sub Submission) error {
	if sub.LearnerID == "" || sub.CollectionID == "" {
		return errors.Wrap(models.ErrInvalidInput, "learner and collection are required")
	}
	if sub.Score < 0 {
		return errors.Wrapf(models.ErrInvalidInput, "negative score %v", sub.Score)
	}
	for _, review := range sub.Reviews {
		if err := spaced_repetition.ValidateQuality(review.Quality); err != nil {
			return errors.Wrapf(err, "item %s", review.ItemID)
		}
	}
	return nil
}
