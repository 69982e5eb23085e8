package database

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/example/fasecards/internal/clock"
	"github.com/example/fasecards/internal/session"
)

// Repositories groups the repositories bound to one connection or transaction
type Repositories struct {
	Collections *CollectionRepository
	Responses   *ResponseRepository
	Learners    *LearnerRepository
	Statistics  *StatisticsRepository
}

func newRepositories(q sqlx.ExtContext, clk clock.Clock, log logrus.FieldLogger) *Repositories {
	return &Repositories{
		Collections: NewCollectionRepository(q, clk, log),
		Responses:   NewResponseRepository(q),
		Learners:    NewLearnerRepository(q, clk, log),
		Statistics:  NewStatisticsRepository(q),
	}
}

// Store owns the connection and hands out repositories
type Store struct {
	db    *sqlx.DB
	clock clock.Clock
	log   logrus.FieldLogger
	*Repositories
}

// NewStore creates a store on an open connection. Timestamps written by the
// repositories come from clk.
func NewStore(db *sqlx.DB, clk clock.Clock, log logrus.FieldLogger) *Store {
	if clk == nil {
		clk = clock.System{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Store{db: db, clock: clk, log: log, Repositories: newRepositories(db, clk, log)}
}

// DB returns the underlying connection
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// WithTx runs fn inside a transaction and commits only if fn succeeds
func (s *Store) WithTx(ctx context.Context, fn func(repos *Repositories) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to start transaction")
	}

	if err := fn(newRepositories(tx, s.clock, s.log)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.log.WithError(rbErr).Error("rollback failed")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	return nil
}

// Atomically implements session.UnitOfWork
func (s *Store) Atomically(ctx context.Context, fn func(session.CollectionStore, session.ResponseLog) error) error {
	return s.WithTx(ctx, func(repos *Repositories) error {
		return fn(repos.Collections, repos.Responses)
	})
}
