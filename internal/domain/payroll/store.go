package payroll

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	cryptoutil "crewpay/internal/platform/crypto"
	"crewpay/internal/platform/querier"
)

type Store struct {
	DB     querier.Querier
	crypto *cryptoutil.Cipher
}

func NewStore(db querier.Querier, crypto *cryptoutil.Cipher) *Store {
	return &Store{DB: db, crypto: crypto}
}

// inTx runs fn in a transaction and rolls back unless fn and the commit succeed.
func (s *Store) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	committed = true
	return nil
}

// lockDraft takes a row lock on the run and fails unless it is still a draft.
// Item writers share the lock; status changes take it exclusively.
func lockDraft(ctx context.Context, tx pgx.Tx, runID string, exclusive bool) error {
	lock := "FOR SHARE"
	if exclusive {
		lock = "FOR UPDATE"
	}
	var status string
	err := tx.QueryRow(ctx, `SELECT status FROM payroll_runs WHERE id = $1 `+lock, runID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrRunNotFound
	}
	if err != nil {
		return err
	}
	if RunStatus(status) != RunStatusDraft {
		return ErrItemFrozen
	}
	return nil
}
