package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stampURL = "https://dghpsh.agcontrol.gob.ar/matafuegos/datosEstampilla.jsp?id=42"

func newMockRepo(t *testing.T) (*ExtinguisherRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewExtinguisherRepository(db), mock
}

func TestRegisterScanCreates(t *testing.T) {
	repo, mock := newMockRepo(t)
	at := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO extintores").
		WithArgs(stampURL, at, "OT-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))
	mock.ExpectExec("INSERT INTO historial_escaneos").
		WithArgs(int64(42), at, "app_android").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM historial_escaneos")).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectCommit()

	res, err := repo.RegisterScan(context.Background(), stampURL, "OT-1", "app_android", at)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, 1, res.TotalScans)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// When the url already exists, ON CONFLICT DO NOTHING returns no row and
// raises nothing: the transaction stays usable, the loser locks the existing
// row and still appends its ScanEvent.
func TestRegisterScanConflictRace(t *testing.T) {
	repo, mock := newMockRepo(t)
	at := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO extintores").
		WithArgs(stampURL, at, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"})) // conflict: no row back
	mock.ExpectQuery("SELECT id, nro_orden FROM extintores").
		WithArgs(stampURL).
		WillReturnRows(sqlmock.NewRows([]string{"id", "nro_orden"}).AddRow(7, "OT-0"))
	mock.ExpectExec("INSERT INTO historial_escaneos").
		WithArgs(int64(7), at, "app_android").
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM historial_escaneos")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectCommit()

	res, err := repo.RegisterScan(context.Background(), stampURL, "", "app_android", at)
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, 2, res.TotalScans)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterScanConflictBackfillsNroOrden(t *testing.T) {
	repo, mock := newMockRepo(t)
	at := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO extintores").
		WithArgs(stampURL, at, "OT-9").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery("SELECT id, nro_orden FROM extintores").
		WithArgs(stampURL).
		WillReturnRows(sqlmock.NewRows([]string{"id", "nro_orden"}).AddRow(7, nil))
	mock.ExpectExec("UPDATE extintores SET nro_orden").
		WithArgs("OT-9", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO historial_escaneos").
		WithArgs(int64(7), at, "app_android").
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM historial_escaneos")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectCommit()

	res, err := repo.RegisterScan(context.Background(), stampURL, "OT-9", "app_android", at)
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.NoError(t, mock.ExpectationsWereMet())
}
