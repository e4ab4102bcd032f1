package listing

import (
	"context"

	"github.com/jackc/pgx/v5"

	"hrdesk/internal/platform/db"
)

// FetchPage runs the count and page queries for d and scans the rows.
func FetchPage[T any](ctx context.Context, q db.DBTX, d Descriptor, columns string, query Query, scan func(pgx.Row) (T, error), id func(T) string) (PageResult, error) {
	countSQL, countArgs := d.CountSQL(query.Filter)
	var total int
	if err := q.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return PageResult{}, err
	}
	sql, args := d.PageSQL(columns, query)
	items := []T{}
	ids := []string{}
	err := ForEach(ctx, q, sql, args, scan, func(item T) error {
		items = append(items, item)
		ids = append(ids, id(item))
		return nil
	})
	if err != nil {
		return PageResult{}, err
	}
	return PageResult{Items: items, IDs: ids, Total: total}, nil
}

func FetchIDs(ctx context.Context, q db.DBTX, d Descriptor, f Filter, limit int) ([]string, error) {
	sql, args := d.IDsSQL(f, limit)
	ids := []string{}
	err := ForEach(ctx, q, sql, args, func(row pgx.Row) (string, error) {
		var id string
		err := row.Scan(&id)
		return id, err
	}, func(id string) error {
		ids = append(ids, id)
		return nil
	})
	return ids, err
}

func Collect[T any](ctx context.Context, q db.DBTX, sql string, args []any, scan func(pgx.Row) (T, error)) ([]T, error) {
	var out []T
	err := ForEach(ctx, q, sql, args, scan, func(item T) error {
		out = append(out, item)
		return nil
	})
	return out, err
}

func ForEach[T any](ctx context.Context, q db.DBTX, sql string, args []any, scan func(pgx.Row) (T, error), fn func(T) error) error {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return err
		}
		if err := fn(item); err != nil {
			return err
		}
	}
	return rows.Err()
}
