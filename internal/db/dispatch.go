package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/soochol/txsched/internal/txsched"
)

const dispatchColumns = `id, transaction_id, user_id, kind, sequence, status, error, ack, started_at, completed_at`

// CreateDispatch stores a dispatch attempt.
func (d *DB) CreateDispatch(ctx context.Context, r *txsched.DispatchRecord) error {
	var ack any
	if len(r.Ack) > 0 {
		ack = string(r.Ack)
	}

	_, err := d.Pool.ExecContext(ctx, d.rebind(
		`INSERT INTO dispatches (`+dispatchColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		r.ID, r.TransactionID, r.UserID, string(r.Kind), r.Sequence,
		string(r.Status), r.Error, ack,
		d.timeArg(r.StartedAt), d.timeArg(r.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("insert dispatch: %w", err)
	}
	return nil
}

// GetDispatch retrieves a dispatch attempt by ID.
func (d *DB) GetDispatch(ctx context.Context, id string) (*txsched.DispatchRecord, error) {
	row := d.Pool.QueryRowContext(ctx, d.rebind(
		`SELECT `+dispatchColumns+` FROM dispatches WHERE id = ?`), id)
	r, err := scanDispatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: dispatch %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get dispatch: %w", err)
	}
	return r, nil
}

// ListDispatches returns matching attempts, newest first, with the total
// number of matches.
func (d *DB) ListDispatches(ctx context.Context, f txsched.DispatchFilter) ([]*txsched.DispatchRecord, int, error) {
	var (
		conds []string
		args  []any
	)
	if f.TransactionID != "" {
		conds = append(conds, "transaction_id = ?")
		args = append(args, f.TransactionID)
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := d.Pool.QueryRowContext(ctx, d.rebind(`SELECT COUNT(*) FROM dispatches`+where), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count dispatches: %w", err)
	}

	rows, err := d.Pool.QueryContext(ctx, d.rebind(
		`SELECT `+dispatchColumns+` FROM dispatches`+where+
			` ORDER BY started_at DESC, sequence DESC LIMIT ? OFFSET ?`),
		append(args, f.Limit, f.Offset)...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list dispatches: %w", err)
	}
	defer rows.Close()

	var result []*txsched.DispatchRecord
	for rows.Next() {
		r, err := scanDispatch(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan dispatch: %w", err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list dispatches: %w", err)
	}
	return result, total, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDispatch(s rowScanner) (*txsched.DispatchRecord, error) {
	r := &txsched.DispatchRecord{}
	var (
		kind, status string
		errMsg, ack  sql.NullString
	)
	if err := s.Scan(&r.ID, &r.TransactionID, &r.UserID, &kind, &r.Sequence,
		&status, &errMsg, &ack,
		timeValue{&r.StartedAt}, timeValue{&r.CompletedAt},
	); err != nil {
		return nil, err
	}

	r.Kind = txsched.JobKind(kind)
	r.Status = txsched.DispatchStatus(status)
	if errMsg.Valid {
		r.Error = &errMsg.String
	}
	if ack.Valid && ack.String != "" {
		r.Ack = []byte(ack.String)
	}
	return r, nil
}
