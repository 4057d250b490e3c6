package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/hongminglow/rewear-be/internal/models"
	"github.com/hongminglow/rewear-be/internal/storage"
)

const itemSelect = `
	SELECT i.id, i.user_id, i.title, i.description, i.category, i.type, i.size, i.condition,
	       i.tags, i.images, i.points_value, i.status, i.is_available, i.created_at, i.updated_at,
	       u.full_name, u.email, u.avatar_url
	FROM items i
	JOIN users u ON u.id = i.user_id`

// CreateItem inserts a listing.
func (s *Store) CreateItem(ctx context.Context, item models.Item) (models.Item, error) {
	const query = `
		INSERT INTO items (user_id, title, description, category, type, size, condition, tags, images, points_value, status, is_available, approval_awarded)
		VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, '{}'::text[]), COALESCE($9, '{}'::text[]), $10, $11, $12, $11 = 'approved')
		RETURNING id`
	var id string
	err := s.pool.QueryRow(ctx, query,
		item.UserID,
		item.Title,
		item.Description,
		item.Category,
		item.Type,
		item.Size,
		string(item.Condition),
		item.Tags,
		item.Images,
		item.PointsValue,
		string(item.Status),
		item.IsAvailable,
	).Scan(&id)
	if err != nil {
		return models.Item{}, mapError(err)
	}
	return s.FindItem(ctx, id)
}

// FindItem fetches a listing with its owner summary.
func (s *Store) FindItem(ctx context.Context, id string) (models.Item, error) {
	item, err := scanItem(s.pool.QueryRow(ctx, itemSelect+` WHERE i.id = $1`, id))
	return item, mapError(err)
}

// ListItems returns listings matching filter, newest first.
func (s *Store) ListItems(ctx context.Context, filter storage.ItemFilter) ([]models.Item, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("i.status = $%d", len(args)))
	}
	if filter.AvailableOnly {
		where = append(where, "i.is_available")
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		where = append(where, fmt.Sprintf("i.user_id = $%d", len(args)))
	}

	query := itemSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY i.created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	items := make([]models.Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

// UpdateItemStatus sets the moderation status and reports the previous one.
func (s *Store) UpdateItemStatus(ctx context.Context, id string, status models.ItemStatus) (storage.ItemStatusChange, error) {
	var (
		previous models.ItemStatus
		awarded  bool
	)
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `SELECT status, approval_awarded FROM items WHERE id = $1 FOR UPDATE`, id).Scan(&previous, &awarded)
		if err != nil {
			return mapError(err)
		}
		_, err = tx.Exec(ctx, `
			UPDATE items
			SET status = $2,
			    approval_awarded = approval_awarded OR $2 = 'approved',
			    updated_at = NOW()
			WHERE id = $1`, id, string(status))
		return mapError(err)
	})
	if err != nil {
		return storage.ItemStatusChange{}, err
	}
	item, err := s.FindItem(ctx, id)
	if err != nil {
		return storage.ItemStatusChange{}, err
	}
	return storage.ItemStatusChange{
		Item:          item,
		Previous:      previous,
		FirstApproval: status == models.ItemApproved && !awarded,
	}, nil
}

// DeleteItem removes a listing; swaps requesting it cascade.
func (s *Store) DeleteItem(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanItem(row pgx.Row) (models.Item, error) {
	var (
		item  models.Item
		owner models.UserSummary
	)
	if err := row.Scan(
		&item.ID,
		&item.UserID,
		&item.Title,
		&item.Description,
		&item.Category,
		&item.Type,
		&item.Size,
		&item.Condition,
		&item.Tags,
		&item.Images,
		&item.PointsValue,
		&item.Status,
		&item.IsAvailable,
		&item.CreatedAt,
		&item.UpdatedAt,
		&owner.FullName,
		&owner.Email,
		&owner.AvatarURL,
	); err != nil {
		return models.Item{}, err
	}
	owner.ID = item.UserID
	item.User = &owner
	return item, nil
}
