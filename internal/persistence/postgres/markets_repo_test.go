package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/kalshirun/internal/engine"
)

func mockMarketsRepo(t *testing.T) (*marketsRepo, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	db := sqlx.NewDb(mockDB, "postgres")
	return &marketsRepo{db: db, timeout: 5 * time.Second}, mock
}

func TestUpdateOrderbookScores_TouchesOnlyScoreColumns(t *testing.T) {
	repo, mock := mockMarketsRepo(t)

	// The expectation pins the full statement shape: three deep-scan
	// columns and nothing else, so updated_at keeps tracking data-hash
	// changes alone.
	mock.ExpectExec(`UPDATE markets SET score_orderbook = \$2, taker_potential_orderbook = \$3, maker_potential_orderbook = \$4 WHERE ticker = \$1`).
		WithArgs("KX-TEST", 0.62, 0.7, 0.5).
		WillReturnResult(sqlmock.NewResult(0, 1))

	bundle := engine.ScoreBundle{Score: 0.62, TakerPotential: 0.7, MakerPotential: 0.5}
	err := repo.UpdateOrderbookScores(context.Background(), "KX-TEST", bundle)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateOrderbookScores_UnknownTicker(t *testing.T) {
	repo, mock := mockMarketsRepo(t)

	mock.ExpectExec(`UPDATE markets SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateOrderbookScores(context.Background(), "KX-GONE", engine.ScoreBundle{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
