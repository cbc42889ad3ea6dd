package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS nutrition_analyses (
    id          uuid PRIMARY KEY,
    user_id     text        NOT NULL,
    model       text        NOT NULL DEFAULT '',
    fallback    boolean     NOT NULL DEFAULT false,
    estimate    jsonb       NOT NULL,
    created_at  timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS nutrition_analyses_user_created_idx
    ON nutrition_analyses (user_id, created_at DESC);
`

type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

type NutritionAnalysis struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Model     string          `json:"model"`
	Fallback  bool            `json:"fallback"`
	Estimate  json.RawMessage `json:"estimate"`
	CreatedAt time.Time       `json:"created_at"`
}

const createNutritionAnalysis = `
INSERT INTO nutrition_analyses (id, user_id, model, fallback, estimate)
VALUES ($1::uuid, $2, $3, $4, $5::jsonb)
RETURNING id::text, user_id, model, fallback, estimate, created_at
`

type CreateNutritionAnalysisParams struct {
	UserID   string
	Model    string
	Fallback bool
	Estimate json.RawMessage
}

func (q *Queries) CreateNutritionAnalysis(ctx context.Context, arg CreateNutritionAnalysisParams) (NutritionAnalysis, error) {
	if arg.UserID == "" {
		return NutritionAnalysis{}, fmt.Errorf("create nutrition analysis: empty user id")
	}
	if !json.Valid(arg.Estimate) {
		return NutritionAnalysis{}, fmt.Errorf("create nutrition analysis: estimate is not valid JSON")
	}

	row := q.db.QueryRow(ctx, createNutritionAnalysis,
		uuid.NewString(),
		arg.UserID,
		arg.Model,
		arg.Fallback,
		string(arg.Estimate),
	)
	var i NutritionAnalysis
	err := scanAnalysis(row, &i)
	return i, err
}

const listNutritionAnalyses = `
SELECT id::text, user_id, model, fallback, estimate, created_at
FROM nutrition_analyses
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2
`

func (q *Queries) ListNutritionAnalyses(ctx context.Context, userID string, limit int) ([]NutritionAnalysis, error) {
	rows, err := q.db.Query(ctx, listNutritionAnalyses, userID, ClampHistoryLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []NutritionAnalysis{}
	for rows.Next() {
		var i NutritionAnalysis
		if err := scanAnalysis(rows, &i); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// ClampHistoryLimit maps a caller supplied page size into [1, MaxHistoryLimit].
func ClampHistoryLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	default:
		return limit
	}
}

func scanAnalysis(row pgx.Row, i *NutritionAnalysis) error {
	var estimate []byte
	if err := row.Scan(&i.ID, &i.UserID, &i.Model, &i.Fallback, &estimate, &i.CreatedAt); err != nil {
		return err
	}
	i.Estimate = json.RawMessage(estimate)
	return nil
}
