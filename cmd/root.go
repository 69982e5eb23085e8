package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/example/fasecards/internal/clock"
	"github.com/example/fasecards/internal/config"
	"github.com/example/fasecards/internal/database"
	"github.com/example/fasecards/internal/progression"
	"github.com/example/fasecards/internal/queue"
	"github.com/example/fasecards/internal/session"
	"github.com/example/fasecards/internal/spaced_repetition"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:           "fasecards",
	Short:         "Phased spaced-repetition engine for flashcard decks and quizzes",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and runs it
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd, importCmd, collectionCmd, learnerCmd, queueCmd, recordCmd, quizCmd, historyCmd, statsCmd)
}

// app is everything a command needs, built from the environment
type app struct {
	cfg     *config.Config
	log     *logrus.Logger
	clock   clock.Clock
	store   *database.Store
	service *session.Service
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	log := cfg.Logger()

	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, errors.Wrap(err, "connect database")
	}

	clk := clock.System{}
	store := database.NewStore(db, clk, log)
	recorder := session.NewRecorder(
		store,
		spaced_repetition.NewSM2(),
		progression.NewController(cfg.Unlock, log),
		clk,
		log,
	)
	opts := queue.DefaultOptions()
	opts.NewItemsFirst = cfg.NewItemsFirst
	builder := queue.NewBuilder(rand.NewSource(time.Now().UnixNano()), opts)

	return &app{
		cfg:     cfg,
		log:     log,
		clock:   clk,
		store:   store,
		service: session.NewService(recorder, store.Collections, store.Responses, builder, clk),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.WithError(err).Warn("failed to close database")
	}
}

// withApp wraps a command body with app setup and teardown
func withApp(run func(cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return run(cmd, args, a)
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
