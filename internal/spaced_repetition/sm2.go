package spaced_repetition

import (
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/example/fasecards/pkg/models"
)

// SM2 implements an hour-based variant of the SuperMemo-2 algorithm.
// Reviews are expected within a day, so intervals are measured in hours instead of days.
type SM2 struct {
	// Answers at or above this quality count as recalled
	PassThreshold int
	// Interval used after a failed recall, whatever the attempt count
	LapseInterval time.Duration
	// Fixed intervals for the first successful attempts (index = attempts-1)
	InitialIntervals []time.Duration
	// Later intervals are ceil(GrowthBase * easeFactor), in whole hours
	GrowthBase time.Duration
	// Upper bound for any interval
	MaxInterval time.Duration
	// Ease factor for an item that has never been reviewed
	InitialEase float64
	// Ease factor never drops below this
	MinEase float64
}

// NewSM2 creates a new SM2 instance with default settings
func NewSM2() *SM2 {
	return &SM2{
		PassThreshold:    3,
		LapseInterval:    4 * time.Hour,
		InitialIntervals: []time.Duration{6 * time.Hour, 12 * time.Hour},
		GrowthBase:       12 * time.Hour,
		MaxInterval:      24 * time.Hour,
		InitialEase:      2.5,
		MinEase:          1.3,
	}
}

// QualityResponse represents the quality of response in SM-2
type QualityResponse int

const (
	// Complete blackout, unable to recall
	QualityBlackout QualityResponse = 0
	// Incorrect response but remembered upon seeing the correct answer
	QualityIncorrect QualityResponse = 1
	// Incorrect response but the correct answer felt familiar
	QualityIncorrectFamiliar QualityResponse = 2
	// Correct response but required significant effort
	QualityCorrectDifficult QualityResponse = 3
	// Correct response after some hesitation
	QualityCorrectHesitation QualityResponse = 4
	// Perfect response with no hesitation
	QualityPerfect QualityResponse = 5
)

// ValidateQuality rejects qualities outside 0..5
func ValidateQuality(quality int) error {
	if quality < int(QualityBlackout) || quality > int(QualityPerfect) {
		return errors.Wrapf(models.ErrInvalidInput, "quality %d outside [0,5]", quality)
	}
	return nil
}

// Update computes the metric that supersedes previous after a review of the given quality.
// previous is nil for the first review of an item. The result is a new value; previous is not modified.
func (sm *SM2) Update(previous *models.ItemMetric, quality int, now time.Time) (models.ItemMetric, error) {
	if err := ValidateQuality(quality); err != nil {
		return models.ItemMetric{}, err
	}

	attempts := 0
	ease := sm.InitialEase
	next := models.ItemMetric{}
	if previous != nil {
		attempts = previous.Attempts
		ease = previous.EaseFactor
		next.LearnerID = previous.LearnerID
		next.ItemID = previous.ItemID
	}

	next.Attempts = attempts + 1
	next.EaseFactor = sm.Ease(ease, quality)
	next.ReviewQuality = quality
	next.LastAttempt = now
	next.NextReviewDate = now.Add(sm.Interval(next.Attempts, quality, next.EaseFactor))

	return next, nil
}

// Ease applies the SM-2 ease adjustment for quality and enforces the floor
func (sm *SM2) Ease(ease float64, quality int) float64 {
	miss := float64(5 - quality)
	newEF := ease + (0.1 - miss*(0.08+miss*0.02))
	if newEF < sm.MinEase {
		newEF = sm.MinEase
	}
	return newEF
}

// Interval returns how long to wait before the next review.
// attempts is the attempt count including the review being scored.
func (sm *SM2) Interval(attempts, quality int, ease float64) time.Duration {
	// A lapse does not reset attempts, it only shortens the wait
	if quality < sm.PassThreshold {
		return sm.LapseInterval
	}

	if attempts >= 1 && attempts <= len(sm.InitialIntervals) {
		return sm.InitialIntervals[attempts-1]
	}

	hours := math.Ceil(sm.GrowthBase.Hours() * ease)
	interval := time.Duration(hours) * time.Hour
	if interval > sm.MaxInterval {
		interval = sm.MaxInterval
	}
	return interval
}

// IsMastered determines if an item is considered "mastered":
// reviewed at least 5 times with a latest quality of 4 or 5
func (sm *SM2) IsMastered(metric models.ItemMetric) bool {
	return metric.Attempts >= 5 && metric.ReviewQuality >= int(QualityCorrectHesitation)
}

// QualityFromAnswer derives an SM-2 quality from a scored quiz answer.
// expected is the time a confident answer should take; zero disables the speed bonus.
func QualityFromAnswer(correct bool, timeSpent, expected time.Duration) int {
	if !correct {
		return int(QualityIncorrect)
	}
	if expected <= 0 {
		return int(QualityCorrectHesitation)
	}

	switch ratio := float64(timeSpent) / float64(expected); {
	case ratio <= 0.5:
		return int(QualityPerfect)
	case ratio <= 1:
		return int(QualityCorrectHesitation)
	default:
		return int(QualityCorrectDifficult)
	}
}
