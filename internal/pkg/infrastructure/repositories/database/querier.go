package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// RawQuerier executes a raw SELECT statement and returns the rows as maps.
// It backs the natural language query surface; the statement is validated
// for read-only safety before it ever reaches this point.
type RawQuerier interface {
	SelectRows(ctx context.Context, query string) ([]map[string]any, error)
}

func NewRawQuerier(db *gorm.DB) RawQuerier {
	return &rawQuerier{
		db: db,
	}
}

type rawQuerier struct {
	db *gorm.DB
}

func (q *rawQuerier) SelectRows(ctx context.Context, query string) ([]map[string]any, error) {
	rows, err := q.db.WithContext(ctx).Raw(query).Rows()
	if err != nil {
		return nil, fmt.Errorf("query execution failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}

	results := make([]map[string]any, 0)

	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}

		err = rows.Scan(pointers...)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}

		row := make(map[string]any, len(columns))
		for i, column := range columns {
			if b, ok := values[i].([]byte); ok {
				row[column] = string(b)
			} else {
				row[column] = values[i]
			}
		}

		results = append(results, row)
	}

	return results, rows.Err()
}
