package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/beanhop/backend/supabase/client"
)

// =============================================================================
// Generic PostgREST helpers
// =============================================================================

// checkResponse folds transport and API errors into the repository sentinels.
func checkResponse(op string, resp *client.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	apiErr := resp.Error()
	if apiErr == nil {
		return nil
	}
	switch {
	case client.IsUniqueViolation(apiErr):
		return fmt.Errorf("%s: %w: %v", op, ErrConflict, apiErr)
	case errors.Is(apiErr, client.ErrNoRows):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	default:
		return fmt.Errorf("%s: %w", op, apiErr)
	}
}

// GenericList executes q and decodes every row.
func GenericList[T any](ctx context.Context, op string, q *client.QueryBuilder) ([]T, error) {
	resp, err := q.Execute(ctx)
	if err := checkResponse(op, resp, err); err != nil {
		return nil, err
	}
	rows := []T{}
	if err := resp.JSON(&rows); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", op, err)
	}
	return rows, nil
}

// GenericGetOne executes q as a single-object read and returns ErrNotFound when nothing matches.
func GenericGetOne[T any](ctx context.Context, op string, q *client.QueryBuilder) (*T, error) {
	resp, err := q.Single().Execute(ctx)
	if err := checkResponse(op, resp, err); err != nil {
		return nil, err
	}
	var row T
	if err := resp.JSON(&row); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", op, err)
	}
	return &row, nil
}

// GenericInsert inserts data and, when into is non-nil, decodes the stored rows into it.
func GenericInsert(ctx context.Context, op string, q *client.QueryBuilder, data any, into any) error {
	resp, err := q.ExecuteInsert(ctx, data)
	if err := checkResponse(op, resp, err); err != nil {
		return err
	}
	if into == nil {
		return nil
	}
	if err := resp.JSON(into); err != nil {
		return fmt.Errorf("%s: decode: %w", op, err)
	}
	return nil
}

// GenericUpdate patches rows matched by q and returns the updated rows.
func GenericUpdate[T any](ctx context.Context, op string, q *client.QueryBuilder, fields map[string]any) ([]T, error) {
	resp, err := q.ExecuteUpdate(ctx, fields)
	if err := checkResponse(op, resp, err); err != nil {
		return nil, err
	}
	rows := []T{}
	if err := resp.JSON(&rows); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", op, err)
	}
	return rows, nil
}
