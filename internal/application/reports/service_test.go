package reports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	domain "github.com/hst-srl/matafuegos-sync/internal/domain/extinguishers"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type fakeRepo struct {
	domain.Repository

	statuses domain.StatusSummary
	expiries []string
	controls []domain.ControlRow
}

func (r *fakeRepo) Summary(context.Context) (domain.StatusSummary, error) {
	return r.statuses, nil
}

func (r *fakeRepo) MaintenanceExpiries(context.Context) ([]string, error) {
	return r.expiries, nil
}

func (r *fakeRepo) ListControls(_ context.Context, _ domain.ControlFilters, limit, _ int) ([]domain.ControlRow, error) {
	if len(r.controls) > limit {
		return r.controls[:limit], nil
	}
	return r.controls, nil
}

func TestSummarize(t *testing.T) {
	repo := &fakeRepo{
		statuses: domain.StatusSummary{Pending: 2, Enriched: 5, Error: 1, Total: 8},
		expiries: []string{
			"01/2020",    // long expired
			"10/07/2025", // within 30 days
			"01/09/2025", // within 90
			"12/2030",    // current
			"",           // never scraped a date
		},
	}
	svc := New(repo, fixedClock{t: time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)}, zap.NewNop())

	sum, err := svc.Summarize(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 8, sum.Estados.Total)
	assert.Equal(t, 1, sum.Vencimientos.Expired)
	assert.Equal(t, 1, sum.Vencimientos.Soon)
	assert.Equal(t, 1, sum.Vencimientos.Later)
	assert.Equal(t, 1, sum.Vencimientos.Current)
	assert.Equal(t, 1, sum.Vencimientos.Unknown)
}

func TestControlsDefaultLimit(t *testing.T) {
	repo := &fakeRepo{controls: make([]domain.ControlRow, 150)}
	svc := New(repo, fixedClock{t: time.Now()}, zap.NewNop())

	rows, err := svc.Controls(context.Background(), domain.ControlFilters{}, 0, 0)
	require.NoError(t, err)
	assert.Len(t, rows, 100)
}

func TestControlsExcel(t *testing.T) {
	at := time.Date(2025, 6, 15, 9, 30, 0, 0, time.UTC)
	repo := &fakeRepo{controls: []domain.ControlRow{
		{
			Control: domain.PeriodicControl{
				OccurredAt:  at,
				ChargeState: domain.ChargeStateCharged,
				PlateTag:    "Si",
				Comment:     "ok",
				Origin:      "app_android",
			},
			URL:         "https://dghpsh.agcontrol.gob.ar/matafuegos/datosEstampilla.jsp?id=1",
			Domicilio:   "Av. Siempreviva 742",
			NroOrden:    "OT-3",
			NroExtintor: "A-1",
		},
	}}
	svc := New(repo, fixedClock{t: at}, zap.NewNop())

	data, err := svc.ControlsExcel(context.Background(), domain.ControlFilters{})
	require.NoError(t, err)
	// xlsx files are zip archives
	require.Greater(t, len(data), 4)
	assert.Equal(t, []byte{'P', 'K'}, data[:2])
}
