package ingest

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

// fakeRepo implements just enough of domain.Repository for the ingestion
// use-cases, with the same upsert-by-url semantics as the SQL repos.
type fakeRepo struct {
	domain.Repository

	scansByURL    map[string]int
	nroOrdenByURL map[string]string
	controlsByURL map[string]int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		scansByURL:    map[string]int{},
		nroOrdenByURL: map[string]string{},
		controlsByURL: map[string]int{},
	}
}

func (r *fakeRepo) RegisterScan(_ context.Context, url, nroOrden, _ string, _ time.Time) (domain.IngestResult, error) {
	created := r.scansByURL[url] == 0
	r.scansByURL[url]++
	if r.nroOrdenByURL[url] == "" {
		r.nroOrdenByURL[url] = nroOrden
	}
	return domain.IngestResult{Created: created, TotalScans: r.scansByURL[url]}, nil
}

func (r *fakeRepo) RegisterControl(_ context.Context, url string, _ domain.ChargeState, _, _, _ string, _ time.Time) (int, error) {
	if r.scansByURL[url] == 0 {
		return 0, domain.ErrNotFound
	}
	r.controlsByURL[url]++
	return r.controlsByURL[url], nil
}

func newService(repo domain.Repository) *Service {
	return New(repo, fixedClock{t: time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)}, zap.NewNop())
}

const stampURL = "https://dghpsh.agcontrol.gob.ar/matafuegos/datosEstampilla.jsp?id=1234"

func TestIngestScanFirstTime(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo)

	res, err := svc.IngestScan(context.Background(), IngestScanCommand{URL: stampURL, NroOrden: "OT-77"})
	require.NoError(t, err)

	assert.True(t, res.Created)
	assert.Equal(t, 1, res.TotalScans)
	assert.Equal(t, "OT-77", repo.nroOrdenByURL[stampURL])
}

func TestIngestScanDuplicateAppendsHistory(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo)

	_, err := svc.IngestScan(context.Background(), IngestScanCommand{URL: stampURL})
	require.NoError(t, err)

	res, err := svc.IngestScan(context.Background(), IngestScanCommand{URL: stampURL})
	require.NoError(t, err)

	assert.False(t, res.Created)
	assert.Equal(t, 2, res.TotalScans)
	assert.Contains(t, res.Message, "Re-escaneo #2")
}

func TestIngestScanNormalizesBeforeDedup(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo)

	_, err := svc.IngestScan(context.Background(), IngestScanCommand{
		URL: "http://dghpsh.agcontrol.gob.ar:80/matafuegos/datosEstampilla.jsp?id=1234",
	})
	require.NoError(t, err)

	res, err := svc.IngestScan(context.Background(), IngestScanCommand{URL: stampURL})
	require.NoError(t, err)

	// both spellings land on the same row
	assert.False(t, res.Created)
	assert.Len(t, repo.scansByURL, 1)
}

func TestIngestScanNroOrdenFirstWriteWins(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo)

	_, err := svc.IngestScan(context.Background(), IngestScanCommand{URL: stampURL, NroOrden: "OT-1"})
	require.NoError(t, err)
	_, err = svc.IngestScan(context.Background(), IngestScanCommand{URL: stampURL, NroOrden: "OT-2"})
	require.NoError(t, err)

	assert.Equal(t, "OT-1", repo.nroOrdenByURL[stampURL])
}

func TestIngestScanRejectsForeignURL(t *testing.T) {
	svc := newService(newFakeRepo())

	_, err := svc.IngestScan(context.Background(), IngestScanCommand{URL: "https://example.com/qr"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestIngestControl(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo)

	_, err := svc.IngestScan(context.Background(), IngestScanCommand{URL: stampURL})
	require.NoError(t, err)

	res, err := svc.IngestControl(context.Background(), IngestControlCommand{
		URL:         stampURL,
		ChargeState: "Cargado",
		PlateTag:    "Si",
		Comment:     "todo en orden",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalControls)
	assert.Contains(t, res.Message, "#1")
}

func TestIngestControlBeforeScanFails(t *testing.T) {
	svc := newService(newFakeRepo())

	_, err := svc.IngestControl(context.Background(), IngestControlCommand{
		URL:         stampURL,
		ChargeState: "Descargado",
		PlateTag:    "No",
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIngestControlValidation(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo)

	_, err := svc.IngestScan(context.Background(), IngestScanCommand{URL: stampURL})
	require.NoError(t, err)

	t.Run("bad charge state", func(t *testing.T) {
		_, err := svc.IngestControl(context.Background(), IngestControlCommand{
			URL:         stampURL,
			ChargeState: "Medio",
			PlateTag:    "Si",
		})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("missing plate tag", func(t *testing.T) {
		_, err := svc.IngestControl(context.Background(), IngestControlCommand{
			URL:         stampURL,
			ChargeState: "Cargado",
		})
		assert.ErrorIs(t, err, ErrValidation)
	})
}
