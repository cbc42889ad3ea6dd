package database

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampHistoryLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{in: -1, want: DefaultHistoryLimit},
		{in: 0, want: DefaultHistoryLimit},
		{in: 1, want: 1},
		{in: 50, want: 50},
		{in: MaxHistoryLimit + 1, want: MaxHistoryLimit},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClampHistoryLimit(tt.in))
	}
}

func TestCreateNutritionAnalysis_ValidatesInput(t *testing.T) {
	// Validation happens before the database is touched, so a nil DBTX is fine.
	q := New(nil)

	_, err := q.CreateNutritionAnalysis(context.Background(), CreateNutritionAnalysisParams{
		Estimate: json.RawMessage(`{}`),
	})
	assert.ErrorContains(t, err, "empty user id")

	_, err = q.CreateNutritionAnalysis(context.Background(), CreateNutritionAnalysisParams{
		UserID:   "u1",
		Estimate: json.RawMessage(`{`),
	})
	assert.ErrorContains(t, err, "not valid JSON")
}
