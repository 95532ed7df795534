// Package casedb persists case documents in Postgres. Each case is stored
// as one jsonb document; reads and writes move the whole document, matching
// the aggregate's last-write-wins semantics.
package casedb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"casefile/internal/cases"
)

var ErrNotFound = errors.New("case not found")

// ErrAlreadyExists is returned when creating a case whose id is taken.
var ErrAlreadyExists = errors.New("case already exists")

type CaseStore struct {
	conn *pgxpool.Pool
}

func NewCaseStore(conn *pgxpool.Pool) *CaseStore {
	return &CaseStore{conn: conn}
}

func (s *CaseStore) Create(ctx context.Context, c cases.Case) error {
	doc, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal case %s: %w", c.ID, err)
	}

	_, err = s.conn.Exec(ctx, `INSERT INTO cases (id, doc) VALUES ($1, $2)`, c.ID, doc)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to insert case %s: %w", c.ID, err)
	}
	return nil
}

func (s *CaseStore) Get(ctx context.Context, id string) (cases.Case, error) {
	var doc []byte
	err := s.conn.QueryRow(ctx, `SELECT doc FROM cases WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return cases.Case{}, ErrNotFound
	}
	if err != nil {
		return cases.Case{}, fmt.Errorf("failed to get case %s: %w", id, err)
	}

	var c cases.Case
	if err := json.Unmarshal(doc, &c); err != nil {
		return cases.Case{}, fmt.Errorf("failed to unmarshal case %s: %w", id, err)
	}
	return c, nil
}

func (s *CaseStore) Replace(ctx context.Context, c cases.Case) error {
	doc, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal case %s: %w", c.ID, err)
	}

	tag, err := s.conn.Exec(ctx, `UPDATE cases SET doc = $2 WHERE id = $1`, c.ID, doc)
	if err != nil {
		return fmt.Errorf("failed to replace case %s: %w", c.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *CaseStore) Delete(ctx context.Context, id string) error {
	tag, err := s.conn.Exec(ctx, `DELETE FROM cases WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete case %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns the listing projection of every case, without loading full
// documents.
func (s *CaseStore) List(ctx context.Context) ([]cases.Summary, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT doc->>'id', doc->>'description', doc->>'status'
		FROM cases
		ORDER BY doc->>'id'
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	defer rows.Close()

	var out []cases.Summary
	for rows.Next() {
		var sum cases.Summary
		var status string
		if err := rows.Scan(&sum.ID, &sum.Description, &status); err != nil {
			return nil, fmt.Errorf("failed to scan case row: %w", err)
		}
		sum.Status = cases.Status(status)
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	return out, nil
}

// UpdateStatus applies a validated status transition to a case.
func (s *CaseStore) UpdateStatus(ctx context.Context, id string, to cases.Status) error {
	c, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := c.SetStatus(to); err != nil {
		return err
	}
	return s.Replace(ctx, c)
}
