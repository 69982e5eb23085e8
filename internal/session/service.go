package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/example/fasecards/internal/clock"
	"github.com/example/fasecards/internal/queue"
	"github.com/example/fasecards/internal/spaced_repetition"
	"github.com/example/fasecards/pkg/models"
)

// QuizAnswer is one answered quiz question
type QuizAnswer struct {
	ItemID    string        `json:"item_id"`
	Correct   bool          `json:"correct"`
	TimeSpent time.Duration `json:"time_spent"`
}

// QuizSubmission is a finished quiz. Qualities are derived from correctness and speed.
type QuizSubmission struct {
	LearnerID    string        `json:"learner_id"`
	CollectionID string        `json:"collection_id"`
	Answers      []QuizAnswer  `json:"answers"`
	Score        float64       `json:"score"`
	Expected     time.Duration `json:"expected"` // time a confident answer should take
}

type quizAnswerJSON struct {
	ItemID    string `json:"item_id"`
	Correct   bool   `json:"correct"`
	TimeSpent string `json:"time_spent"`
}

// MarshalJSON writes TimeSpent as a duration string such as "4s"
func (a QuizAnswer) MarshalJSON() ([]byte, error) {
	return json.Marshal(quizAnswerJSON{ItemID: a.ItemID, Correct: a.Correct, TimeSpent: a.TimeSpent.String()})
}

func (a *QuizAnswer) UnmarshalJSON(data []byte) error {
	var raw quizAnswerJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	spent, err := parseDuration(raw.TimeSpent)
	if err != nil {
		return errors.Wrapf(err, "item %s", raw.ItemID)
	}
	*a = QuizAnswer{ItemID: raw.ItemID, Correct: raw.Correct, TimeSpent: spent}
	return nil
}

type quizSubmissionAlias QuizSubmission

type quizSubmissionJSON struct {
	quizSubmissionAlias
	Expected string `json:"expected"`
}

// MarshalJSON writes Expected as a duration string such as "15s"
func (s QuizSubmission) MarshalJSON() ([]byte, error) {
	return json.Marshal(quizSubmissionJSON{quizSubmissionAlias: quizSubmissionAlias(s), Expected: s.Expected.String()})
}

func (s *QuizSubmission) UnmarshalJSON(data []byte) error {
	var raw quizSubmissionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	expected, err := parseDuration(raw.Expected)
	if err != nil {
		return errors.Wrap(err, "expected")
	}
	*s = QuizSubmission(raw.quizSubmissionAlias)
	s.Expected = expected
	return nil
}

// parseDuration accepts an empty string as zero
func parseDuration(v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, errors.Wrapf(models.ErrInvalidInput, "invalid duration %q", v)
	}
	return d, nil
}

// Service is the entry point used by the CLI and the reminder job
type Service struct {
	recorder    *Recorder
	collections CollectionStore
	responses   ResponseLog
	builder     *queue.Builder
	clock       clock.Clock
}

// NewService creates a service
func NewService(recorder *Recorder, collections CollectionStore, responses ResponseLog, builder *queue.Builder, clk clock.Clock) *Service {
	return &Service{
		recorder:    recorder,
		collections: collections,
		responses:   responses,
		builder:     builder,
		clock:       clk,
	}
}

// RecordSession records a flashcard session
func (s *Service) RecordSession(ctx context.Context, sub Submission) (*Result, error) {
	return s.recorder.RecordSession(ctx, sub)
}

// RecordQuiz converts quiz answers into review qualities and records the session
func (s *Service) RecordQuiz(ctx context.Context, sub QuizSubmission) (*Result, error) {
	reviews := lo.Map(sub.Answers, func(a QuizAnswer, _ int) ItemReview {
		return ItemReview{
			ItemID:  a.ItemID,
			Quality: spaced_repetition.QualityFromAnswer(a.Correct, a.TimeSpent, sub.Expected),
		}
	})
	return s.recorder.RecordSession(ctx, Submission{
		LearnerID:    sub.LearnerID,
		CollectionID: sub.CollectionID,
		Reviews:      reviews,
		Score:        sub.Score,
	})
}

// NextQueue returns the items of the learner's next session in review order
func (s *Service) NextQueue(ctx context.Context, learnerID, collectionID string) ([]models.Item, error) {
	collection, err := s.collections.GetPrivateCollection(ctx, learnerID, collectionID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load private collection")
	}
	if collection == nil {
		return nil, errors.Wrapf(models.ErrPreconditionNotMet, "learner %s has no private collection %s", learnerID, collectionID)
	}

	itemIDs := lo.Map(collection.Items, func(it models.Item, _ int) string { return it.ID })
	metrics, err := s.responses.LatestMetrics(ctx, learnerID, itemIDs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load item metrics")
	}

	return s.builder.Build(collection, metrics, s.clock.Now()), nil
}

// History lists the learner's recorded sessions for a collection, oldest first
func (s *Service) History(ctx context.Context, learnerID, collectionID string) ([]models.SessionResponse, error) {
	return s.responses.ListSessionResponses(ctx, learnerID, collectionID)
}
