package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/hongminglow/rewear-be/internal/models"
	"github.com/hongminglow/rewear-be/internal/storage"
)

// UpdateUserPoints locks the user row, applies change and appends the ledger entry.
func (s *Store) UpdateUserPoints(ctx context.Context, change storage.PointsChange) (models.User, error) {
	if err := change.Validate(); err != nil {
		return models.User{}, err
	}
	var updated models.User
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		user, err := applyPoints(ctx, tx, change)
		if err != nil {
			return err
		}
		updated = user
		return nil
	})
	if err != nil {
		return models.User{}, err
	}
	return updated, nil
}

func applyPoints(ctx context.Context, q queryable, change storage.PointsChange) (models.User, error) {
	var current int64
	if err := q.QueryRow(ctx, `SELECT points FROM users WHERE id = $1 FOR UPDATE`, change.UserID).Scan(&current); err != nil {
		return models.User{}, mapError(err)
	}
	next, err := change.Apply(current)
	if err != nil {
		return models.User{}, err
	}

	query := `UPDATE users SET points = $2, updated_at = NOW() WHERE id = $1 RETURNING ` + userColumns
	user, err := scanUser(q.QueryRow(ctx, query, change.UserID, next))
	if err != nil {
		return models.User{}, fmt.Errorf("update points for user %s: %w", change.UserID, mapError(err))
	}

	_, err = q.Exec(ctx, `
		INSERT INTO points_transactions (user_id, amount, type, description, related_swap_id)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)`,
		change.UserID, change.Amount, string(change.Type), change.Description, change.RelatedSwapID)
	if err != nil {
		return models.User{}, fmt.Errorf("record points transaction for user %s: %w", change.UserID, mapError(err))
	}
	return user, nil
}

// ListTransactions returns the user's ledger, newest first. A non-positive limit returns everything.
func (s *Store) ListTransactions(ctx context.Context, userID string, limit int) ([]models.PointsTransaction, error) {
	query := `
		SELECT id, user_id, amount, type, description, related_swap_id, created_at
		FROM points_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	txs := make([]models.PointsTransaction, 0)
	for rows.Next() {
		var tx models.PointsTransaction
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Amount, &tx.Type, &tx.Description, &tx.RelatedSwapID, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan points transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate points transactions: %w", err)
	}
	return txs, nil
}
