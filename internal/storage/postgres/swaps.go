package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/hongminglow/rewear-be/internal/models"
	"github.com/hongminglow/rewear-be/internal/storage"
)

const swapSelect = `
	SELECT s.id, s.requester_id, s.owner_id, s.item_id, s.offered_item_id, s.points_offered,
	       s.status, s.message, s.created_at, s.updated_at,
	       i.title, i.images, oi.title, oi.images,
	       ru.full_name, ru.email, ru.avatar_url, ou.full_name, ou.email, ou.avatar_url
	FROM swaps s
	JOIN items i ON i.id = s.item_id
	LEFT JOIN items oi ON oi.id = s.offered_item_id
	JOIN users ru ON ru.id = s.requester_id
	JOIN users ou ON ou.id = s.owner_id`

// CreateSwap inserts a pending swap request.
func (s *Store) CreateSwap(ctx context.Context, swap models.Swap) (models.Swap, error) {
	const query = `
		INSERT INTO swaps (requester_id, owner_id, item_id, offered_item_id, points_offered, status, message)
		VALUES ($1, $2, $3, $4, $5, 'pending', $6)
		RETURNING id`
	var id string
	err := s.pool.QueryRow(ctx, query,
		swap.RequesterID, swap.OwnerID, swap.ItemID, swap.OfferedItemID, swap.PointsOffered, swap.Message,
	).Scan(&id)
	if err != nil {
		return models.Swap{}, mapError(err)
	}
	return s.FindSwap(ctx, id)
}

// FindSwap fetches one swap with joined summaries.
func (s *Store) FindSwap(ctx context.Context, id string) (models.Swap, error) {
	swap, err := scanSwap(s.pool.QueryRow(ctx, swapSelect+` WHERE s.id = $1`, id))
	return swap, mapError(err)
}

// ListSwapsForUser returns swaps where userID is either party, newest first.
func (s *Store) ListSwapsForUser(ctx context.Context, userID string) ([]models.Swap, error) {
	rows, err := s.pool.Query(ctx, swapSelect+`
		WHERE s.requester_id = $1 OR s.owner_id = $1
		ORDER BY s.created_at DESC`, userID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	swaps := make([]models.Swap, 0)
	for rows.Next() {
		swap, err := scanSwap(rows)
		if err != nil {
			return nil, fmt.Errorf("scan swap: %w", err)
		}
		swaps = append(swaps, swap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate swaps: %w", err)
	}
	return swaps, nil
}

// AcceptSwap reserves both items and moves the offered points in one transaction.
func (s *Store) AcceptSwap(ctx context.Context, id string) (models.Swap, error) {
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		swap, err := lockSwap(ctx, tx, id, models.SwapPending)
		if err != nil {
			return err
		}

		itemIDs := []string{swap.ItemID}
		if swap.OfferedItemID != nil {
			itemIDs = append(itemIDs, *swap.OfferedItemID)
		}
		var listed int
		err = tx.QueryRow(ctx, `
			SELECT COUNT(*) FROM (
				SELECT id FROM items
				WHERE id = ANY($1::uuid[]) AND status = 'approved' AND is_available
				FOR UPDATE
			) locked`, itemIDs).Scan(&listed)
		if err != nil {
			return mapError(err)
		}
		if listed != len(itemIDs) {
			return fmt.Errorf("%w: item no longer available", storage.ErrConflict)
		}

		if swap.PointsOffered > 0 {
			swapID := swap.ID
			if _, err := applyPoints(ctx, tx, storage.PointsChange{
				UserID: swap.RequesterID, Amount: -swap.PointsOffered, Type: models.TransactionSpent,
				Description: "Swap accepted", RelatedSwapID: &swapID,
			}); err != nil {
				return err
			}
			if _, err := applyPoints(ctx, tx, storage.PointsChange{
				UserID: swap.OwnerID, Amount: swap.PointsOffered, Type: models.TransactionEarned,
				Description: "Swap accepted", RelatedSwapID: &swapID,
			}); err != nil {
				return err
			}
		}

		if _, err := tx.Exec(ctx, `UPDATE items SET is_available = FALSE, updated_at = NOW() WHERE id = ANY($1::uuid[])`, itemIDs); err != nil {
			return mapError(err)
		}
		_, err = tx.Exec(ctx, `UPDATE swaps SET status = 'accepted', updated_at = NOW() WHERE id = $1`, id)
		return mapError(err)
	})
	if err != nil {
		return models.Swap{}, err
	}
	return s.FindSwap(ctx, id)
}

// RejectSwap declines a pending swap.
func (s *Store) RejectSwap(ctx context.Context, id string) (models.Swap, error) {
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := lockSwap(ctx, tx, id, models.SwapPending); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `UPDATE swaps SET status = 'rejected', updated_at = NOW() WHERE id = $1`, id)
		return mapError(err)
	})
	if err != nil {
		return models.Swap{}, err
	}
	return s.FindSwap(ctx, id)
}

// CompleteSwap marks an accepted swap done and both items swapped.
func (s *Store) CompleteSwap(ctx context.Context, id string) (models.Swap, error) {
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		swap, err := lockSwap(ctx, tx, id, models.SwapAccepted)
		if err != nil {
			return err
		}
		itemIDs := []string{swap.ItemID}
		if swap.OfferedItemID != nil {
			itemIDs = append(itemIDs, *swap.OfferedItemID)
		}
		if _, err := tx.Exec(ctx, `
			UPDATE items SET status = 'swapped', is_available = FALSE, updated_at = NOW()
			WHERE id = ANY($1::uuid[])`, itemIDs); err != nil {
			return mapError(err)
		}
		_, err = tx.Exec(ctx, `UPDATE swaps SET status = 'completed', updated_at = NOW() WHERE id = $1`, id)
		return mapError(err)
	})
	if err != nil {
		return models.Swap{}, err
	}
	return s.FindSwap(ctx, id)
}

// lockSwap reads the swap row FOR UPDATE and checks its status.
func lockSwap(ctx context.Context, tx pgx.Tx, id string, want models.SwapStatus) (models.Swap, error) {
	var swap models.Swap
	err := tx.QueryRow(ctx, `
		SELECT id, requester_id, owner_id, item_id, offered_item_id, points_offered, status
		FROM swaps WHERE id = $1 FOR UPDATE`, id).Scan(
		&swap.ID, &swap.RequesterID, &swap.OwnerID, &swap.ItemID, &swap.OfferedItemID, &swap.PointsOffered, &swap.Status,
	)
	if err != nil {
		return models.Swap{}, mapError(err)
	}
	if swap.Status != want {
		return models.Swap{}, fmt.Errorf("%w: swap is %s", storage.ErrConflict, swap.Status)
	}
	return swap, nil
}

func scanSwap(row pgx.Row) (models.Swap, error) {
	var (
		swap             models.Swap
		item             models.ItemSummary
		offeredTitle     *string
		offeredImages    []string
		requester, owner models.UserSummary
	)
	if err := row.Scan(
		&swap.ID,
		&swap.RequesterID,
		&swap.OwnerID,
		&swap.ItemID,
		&swap.OfferedItemID,
		&swap.PointsOffered,
		&swap.Status,
		&swap.Message,
		&swap.CreatedAt,
		&swap.UpdatedAt,
		&item.Title,
		&item.Images,
		&offeredTitle,
		&offeredImages,
		&requester.FullName,
		&requester.Email,
		&requester.AvatarURL,
		&owner.FullName,
		&owner.Email,
		&owner.AvatarURL,
	); err != nil {
		return models.Swap{}, err
	}
	item.ID = swap.ItemID
	swap.Item = &item
	if swap.OfferedItemID != nil && offeredTitle != nil {
		swap.OfferedItem = &models.ItemSummary{ID: *swap.OfferedItemID, Title: *offeredTitle, Images: offeredImages}
	}
	requester.ID = swap.RequesterID
	owner.ID = swap.OwnerID
	swap.Requester = &requester
	swap.Owner = &owner
	return swap, nil
}
