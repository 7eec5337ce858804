package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ItemRow is an inventory row as stored. Quantity is left untyped because
// legacy rows may hold it as text; callers normalize it.
type ItemRow struct {
	Row      int
	ID       string
	Name     string
	Quantity any
	History  string
}

// CreateItem provisions a new inventory row at the next free position.
// quantity may be nil, an integer, or a string.
func CreateItem(ctx context.Context, db DBTX, name string, quantity any) (*ItemRow, error) {
	var next int
	err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(row), 1) + 1 FROM items`).Scan(&next)
	if err != nil {
		return nil, fmt.Errorf("finding next item row: %w", err)
	}

	if err := InsertItem(ctx, db, next, name, quantity); err != nil {
		return nil, err
	}
	return GetItem(ctx, db, next)
}

// InsertItem provisions an inventory row at a fixed position.
func InsertItem(ctx context.Context, db DBTX, row int, name string, quantity any) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO items (row, name, quantity) VALUES (?, ?, ?)`,
		row, name, quantity,
	)
	if err != nil {
		return fmt.Errorf("creating item: %w", err)
	}
	return nil
}

// GetItem returns the inventory row at the given position, or nil if absent.
func GetItem(ctx context.Context, db DBTX, row int) (*ItemRow, error) {
	it := &ItemRow{}
	err := db.QueryRowContext(ctx,
		`SELECT row, id, name, quantity, history FROM items WHERE row = ?`, row,
	).Scan(&it.Row, &it.ID, &it.Name, &it.Quantity, &it.History)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return it, nil
}

// ListItems returns all inventory rows in sheet order.
func ListItems(ctx context.Context, db DBTX) ([]ItemRow, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT row, id, name, quantity, history FROM items ORDER BY row`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []ItemRow
	for rows.Next() {
		var it ItemRow
		if err := rows.Scan(&it.Row, &it.ID, &it.Name, &it.Quantity, &it.History); err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// UpdateItemStock writes a new quantity together with the item's id and
// rendered history.
func UpdateItemStock(ctx context.Context, db DBTX, row int, id string, quantity int, history string, at time.Time) error {
	res, err := db.ExecContext(ctx,
		`UPDATE items SET id = ?, quantity = ?, history = ?, updated_at = ? WHERE row = ?`,
		id, quantity, history, formatTime(at), row,
	)
	if err != nil {
		return fmt.Errorf("updating stock: %w", err)
	}
	return requireOneRow(res, "item")
}

// SetItemID stores an item's identifier.
func SetItemID(ctx context.Context, db DBTX, row int, id string) error {
	_, err := db.ExecContext(ctx, `UPDATE items SET id = ? WHERE row = ?`, id, row)
	if err != nil {
		return fmt.Errorf("setting item id: %w", err)
	}
	return nil
}

// SetItemName updates an item's name.
func SetItemName(ctx context.Context, db DBTX, row int, name string, at time.Time) error {
	res, err := db.ExecContext(ctx,
		`UPDATE items SET name = ?, updated_at = ? WHERE row = ?`,
		name, formatTime(at), row,
	)
	if err != nil {
		return fmt.Errorf("updating item name: %w", err)
	}
	return requireOneRow(res, "item")
}

// SetItemQuantity overwrites an item's quantity without touching its history.
func SetItemQuantity(ctx context.Context, db DBTX, row int, quantity int, at time.Time) error {
	res, err := db.ExecContext(ctx,
		`UPDATE items SET quantity = ?, updated_at = ? WHERE row = ?`,
		quantity, formatTime(at), row,
	)
	if err != nil {
		return fmt.Errorf("updating item quantity: %w", err)
	}
	return requireOneRow(res, "item")
}

// ClearItemHistories wipes the rotating history of every item and returns the
// number of rows that had any.
func ClearItemHistories(ctx context.Context, db DBTX) (int64, error) {
	res, err := db.ExecContext(ctx, `UPDATE items SET history = '' WHERE history != ''`)
	if err != nil {
		return 0, fmt.Errorf("clearing item histories: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func requireOneRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s not found", what)
	}
	return nil
}
