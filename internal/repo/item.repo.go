package repo

import (
	"context"
	"database/sql"

	"storefront-checkout/internal/domain"

	"github.com/google/uuid"
)

// ItemRepo owns the order_items table. Items are written once, inside the
// same transaction as their order, and never updated.
type ItemRepo interface {
	CreateItems(ctx context.Context, tx *sql.Tx, items []domain.OrderItem) error
	FindByOrderID(ctx context.Context, orderID uuid.UUID) ([]domain.OrderItem, error)
}

type itemRepo struct {
	db *sql.DB
}

func NewItemRepo(db *sql.DB) ItemRepo {
	return &itemRepo{db: db}
}

func (r *itemRepo) CreateItems(ctx context.Context, tx *sql.Tx, items []domain.OrderItem) error {
	query := `
		INSERT INTO order_items (order_id, product_id, variant_id, name, quantity, unit_price, line_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	for _, item := range items {
		var variantID sql.NullString
		if item.VariantID != "" {
			variantID = sql.NullString{String: item.VariantID, Valid: true}
		}
		_, err := tx.ExecContext(ctx, query,
			item.OrderID, item.ProductID, variantID, item.Name,
			item.Quantity, item.UnitPrice, item.LineTotal,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *itemRepo) FindByOrderID(ctx context.Context, orderID uuid.UUID) ([]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT order_id, product_id, variant_id, name, quantity, unit_price, line_total
		FROM order_items
		WHERE order_id = $1
		ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var (
			item      domain.OrderItem
			variantID sql.NullString
		)
		if err := rows.Scan(
			&item.OrderID,
			&item.ProductID,
			&variantID,
			&item.Name,
			&item.Quantity,
			&item.UnitPrice,
			&item.LineTotal,
		); err != nil {
			return nil, err
		}
		item.VariantID = variantID.String
		items = append(items, item)
	}
	return items, rows.Err()
}
