package service

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	appErrors "github.com/noah-isme/crime-report-api/pkg/errors"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// txScope is one request's unit of work. Hooks registered with OnCommit run only after a successful commit.
type txScope struct {
	*sqlx.Tx
	afterCommit []func()
}

// OnCommit defers fn until the transaction commits.
func (t *txScope) OnCommit(fn func()) {
	t.afterCommit = append(t.afterCommit, fn)
}

type commitNotifier interface {
	OnCommit(fn func())
}

// afterCommit runs fn once exec commits, or immediately when exec is not transactional.
func afterCommit(exec sqlx.ExtContext, fn func()) {
	if notifier, ok := exec.(commitNotifier); ok {
		notifier.OnCommit(fn)
		return
	}
	fn()
}

// withTx runs fn in a transaction. Any error from fn, or a panic, rolls the whole unit back.
func withTx(ctx context.Context, provider txProvider, fn func(tx *txScope) error) (err error) {
	if provider == nil {
		return appErrors.Clone(appErrors.ErrInternal, "transaction provider unavailable")
	}
	raw, err := provider.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Internal(err, "failed to begin transaction")
	}
	scope := &txScope{Tx: raw}
	defer func() {
		if p := recover(); p != nil {
			_ = raw.Rollback()
			panic(p)
		}
		if err != nil {
			_ = raw.Rollback()
		}
	}()

	if err = fn(scope); err != nil {
		return err
	}
	if err = raw.Commit(); err != nil {
		return appErrors.Internal(err, "failed to commit transaction")
	}
	for _, hook := range scope.afterCommit {
		hook()
	}
	return nil
}
