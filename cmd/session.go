package cmd

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/example/fasecards/internal/session"
	"github.com/example/fasecards/pkg/models"
)

var queueCmd = &cobra.Command{
	Use:   "queue <learner-id> <collection-id>",
	Short: "Print the items of the next session in review order",
	Args:  cobra.ExactArgs(2),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		items, err := a.service.NextQueue(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), items)
	}),
}

var recordCmd = &cobra.Command{
	Use:     "record <learner-id> <collection-id>",
	Short:   "Record a finished flashcard session",
	Example: `  fasecards record L1 C1 --score 80 --review item-1=5 --review item-2=2`,
	Args:    cobra.ExactArgs(2),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		raw, _ := cmd.Flags().GetStringArray("review")
		reviews, err := parseReviews(raw)
		if err != nil {
			return err
		}
		score, _ := cmd.Flags().GetFloat64("score")

		result, err := a.service.RecordSession(cmd.Context(), session.Submission{
			LearnerID:    args[0],
			CollectionID: args[1],
			Reviews:      reviews,
			Score:        score,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), result)
	}),
}

var quizCmd = &cobra.Command{
	Use:     "quiz <learner-id> <collection-id>",
	Short:   "Record a finished quiz",
	Example: `  fasecards quiz L1 C1 --score 50 --expected 10s --answer item-1=true:4s --answer item-2=false:20s
  fasecards quiz L1 C1 --file quiz.json`,
	Args: cobra.ExactArgs(2),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		if path, _ := cmd.Flags().GetString("file"); path != "" {
			sub, err := readQuizFile(path)
			if err != nil {
				return err
			}
			sub.LearnerID, sub.CollectionID = args[0], args[1]
			result, err := a.service.RecordQuiz(cmd.Context(), *sub)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		}

		raw, _ := cmd.Flags().GetStringArray("answer")
		answers, err := parseAnswers(raw)
		if err != nil {
			return err
		}
		score, _ := cmd.Flags().GetFloat64("score")
		expected, _ := cmd.Flags().GetDuration("expected")

		result, err := a.service.RecordQuiz(cmd.Context(), session.QuizSubmission{
			LearnerID:    args[0],
			CollectionID: args[1],
			Answers:      answers,
			Score:        score,
			Expected:     expected,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), result)
	}),
}

var historyCmd = &cobra.Command{
	Use:   "history <learner-id> <collection-id>",
	Short: "List recorded sessions of a collection",
	Args:  cobra.ExactArgs(2),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		responses, err := a.service.History(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), responses)
	}),
}

var statsCmd = &cobra.Command{
	Use:   "stats <learner-id>",
	Short: "Show progress per collection",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		stats, err := a.store.Statistics.ForLearner(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), stats)
	}),
}

func init() {
	recordCmd.Flags().StringArray("review", nil, "item review as <item-id>=<quality 0-5>, repeatable")
	recordCmd.Flags().Float64("score", 0, "session score")

	quizCmd.Flags().StringArray("answer", nil, "quiz answer as <item-id>=<true|false>:<time spent>, repeatable")
	quizCmd.Flags().Float64("score", 0, "quiz score")
	quizCmd.Flags().Duration("expected", 15*time.Second, "time a confident answer should take")
	quizCmd.Flags().String("file", "", "JSON quiz submission; durations are strings such as \"4s\"")
}

// readQuizFile decodes a quiz submission, defaulting Expected like the --expected flag
func readQuizFile(path string) (*session.QuizSubmission, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read quiz file")
	}
	var sub session.QuizSubmission
	if err := json.Unmarshal(data, &sub); err != nil {
		return nil, errors.Wrapf(err, "failed to decode quiz file %s", path)
	}
	if sub.Expected == 0 {
		sub.Expected = 15 * time.Second
	}
	return &sub, nil
}

// parseReviews reads item=quality pairs
func parseReviews(raw []string) ([]session.ItemReview, error) {
	reviews := make([]session.ItemReview, 0, len(raw))
	for _, r := range raw {
		itemID, value, ok := strings.Cut(r, "=")
		if !ok || itemID == "" {
			return nil, errors.Wrapf(models.ErrInvalidInput, "review %q is not <item-id>=<quality>", r)
		}
		quality, err := strconv.Atoi(value)
		if err != nil {
			return nil, errors.Wrapf(models.ErrInvalidInput, "review %q has a non-numeric quality", r)
		}
		reviews = append(reviews, session.ItemReview{ItemID: itemID, Quality: quality})
	}
	return reviews, nil
}

// parseAnswers reads item=correct:duration triples
func parseAnswers(raw []string) ([]session.QuizAnswer, error) {
	answers := make([]session.QuizAnswer, 0, len(raw))
	for _, r := range raw {
		itemID, value, ok := strings.Cut(r, "=")
		if !ok || itemID == "" {
			return nil, errors.Wrapf(models.ErrInvalidInput, "answer %q is not <item-id>=<correct>:<time>", r)
		}
		correctStr, spentStr, _ := strings.Cut(value, ":")
		correct, err := strconv.ParseBool(correctStr)
		if err != nil {
			return nil, errors.Wrapf(models.ErrInvalidInput, "answer %q: bad correctness", r)
		}
		var spent time.Duration
		if spentStr != "" {
			if spent, err = time.ParseDuration(spentStr); err != nil {
				return nil, errors.Wrapf(models.ErrInvalidInput, "answer %q: bad time spent", r)
			}
		}
		answers = append(answers, session.QuizAnswer{ItemID: itemID, Correct: correct, TimeSpent: spent})
	}
	return answers, nil
}
