package progression

import (
	"context"
	"errors"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/example/fasecards/pkg/models"
)

// Store is the part of the collection store the controller needs.
// Decks and quizzes are separate sequences, so the phase lookup is scoped by kind.
// GetPrivateCollectionByPhase returns nil, nil when the learner has no collection at that phase.
type Store interface {
	GetPrivateCollectionByPhase(ctx context.Context, learnerID string, kind models.CollectionKind, phase int) (*models.PrivateCollection, error)
	UpdatePrivateCollection(ctx context.Context, learnerID, collectionID string, update models.CollectionUpdate) error
}

// Outcome describes what Advance did
type Outcome struct {
	Phase     int                       `json:"phase"`     // phase of the submitted collection
	Eligible  bool                      `json:"eligible"`  // the unlock policy accepted the score
	Successor *models.PrivateCollection `json:"successor"` // nil when the phase is the last one
	Unlocked  bool                      `json:"unlocked"`  // the successor went from locked to unlocked
}

// Controller moves learners through the ordered sequence of their private collections
type Controller struct {
	policy UnlockPolicy
	log    logrus.FieldLogger
}

// NewController creates a controller applying policy
func NewController(policy UnlockPolicy, log logrus.FieldLogger) *Controller {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Controller{policy: policy, log: log}
}

// Advance unlocks the phase after current when the policy allows it.
// The current collection's phase must resolve; a successor that cannot be resolved
// is treated as missing so the session is still recorded.
func (c *Controller) Advance(ctx context.Context, store Store, current *models.PrivateCollection, score float64) (*Outcome, error) {
	if current == nil {
		return nil, pkgerrors.Wrap(models.ErrPreconditionNotMet, "current collection not provisioned")
	}

	phase, err := current.PhaseNumber()
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "collection %s", current.CollectionID)
	}

	kind := current.Kind.OrDefault()
	out := &Outcome{Phase: phase, Eligible: c.policy.Allows(score)}
	log := c.log.WithFields(logrus.Fields{
		"learner_id":    current.LearnerID,
		"collection_id": current.CollectionID,
		"kind":          kind,
		"phase":         phase,
	})
	if !out.Eligible {
		log.WithField("score", score).Debug("score below unlock threshold")
		return out, nil
	}

	successor, err := store.GetPrivateCollectionByPhase(ctx, current.LearnerID, kind, phase+1)
	if errors.Is(err, models.ErrInvalidInput) {
		log.WithError(err).Warn("successor phase unresolvable, treating as last phase")
		return out, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to look up next phase")
	}
	if successor == nil {
		log.Debug("no next phase")
		return out, nil
	}

	out.Successor = successor
	if !successor.IsLocked {
		return out, nil
	}

	if err := store.UpdatePrivateCollection(ctx, current.LearnerID, successor.CollectionID, models.CollectionUpdate{Unlock: true}); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unlock phase %d", phase+1)
	}
	successor.IsLocked = false
	out.Unlocked = true
	log.WithField("unlocked_collection_id", successor.CollectionID).Info("next phase unlocked")

	return out, nil
}

// FindPhase picks the collection of the given kind at phase from candidates.
// Candidates whose phase cannot be resolved are logged and skipped.
func FindPhase(candidates []models.PrivateCollection, kind models.CollectionKind, phase int, log logrus.FieldLogger) *models.PrivateCollection {
	kind = kind.OrDefault()
	for i := range candidates {
		if candidates[i].Kind.OrDefault() != kind {
			continue
		}
		n, err := candidates[i].PhaseNumber()
		if err != nil {
			if log != nil {
				log.WithError(err).WithField("collection_id", candidates[i].CollectionID).Warn("skipping collection without phase")
			}
			continue
		}
		if n == phase {
			return &candidates[i]
		}
	}
	return nil
}
