package enrich

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hst-srl/matafuegos-sync/internal/application"
	domain "github.com/hst-srl/matafuegos-sync/internal/domain/extinguishers"
)

// Service pulls not-yet-enriched extinguishers, scrapes the AGC registry for
// each and advances the pendiente -> cargado | error state machine. Failures
// are per-record; only infrastructure faults abort a batch.
type Service struct {
	Repo      domain.Repository
	Registry  domain.Registry
	Snapshots domain.SnapshotStore // optional, nil disables archival
	Clock     application.Clock
	Logger    *zap.Logger

	// FetchDelay is the courtesy pause between registry requests within a
	// batch. Tests set it to zero.
	FetchDelay time.Duration
}

type BatchResult struct {
	Enriched       int `json:"ok"`
	Failed         int `json:"fail"`
	TotalAttempted int `json:"total"`
}

// RunBatch processes up to maxBatch pending/error records, oldest first.
func (s *Service) RunBatch(ctx context.Context, maxBatch int) (BatchResult, error) {
	if maxBatch <= 0 {
		maxBatch = 20
	}

	pending, err := s.Repo.SelectForEnrichment(ctx, maxBatch)
	if err != nil {
		return BatchResult{}, fmt.Errorf("selecting pending records: %w", err)
	}

	var res BatchResult
	res.TotalAttempted = len(pending)

	for i, ext := range pending {
		if i > 0 && s.FetchDelay > 0 {
			select {
			case <-time.After(s.FetchDelay):
			case <-ctx.Done():
				return res, ctx.Err()
			}
		}

		if s.enrichOne(ctx, ext) {
			res.Enriched++
		} else {
			res.Failed++
		}
	}

	s.Logger.Info("lote de sincronizacion completado",
		zap.Int("ok", res.Enriched),
		zap.Int("fail", res.Failed),
		zap.Int("total", res.TotalAttempted),
	)
	return res, nil
}

// enrichOne fetches and parses one registry page. Returns true on success.
// A failed attempt flips status to error but never clears fields stored by an
// earlier successful pass.
func (s *Service) enrichOne(ctx context.Context, ext *domain.Extinguisher) bool {
	page, err := s.Registry.Fetch(ctx, ext.URL)
	if err != nil {
		s.Logger.Warn("scrape AGC fallido",
			zap.Int64("id", ext.ID),
			zap.String("url", ext.URL),
			zap.Error(err),
		)
		if err := s.Repo.MarkError(ctx, ext.ID); err != nil {
			s.Logger.Error("no se pudo marcar error", zap.Int64("id", ext.ID), zap.Error(err))
		}
		return false
	}

	if !page.Fields.Meaningful() {
		s.Logger.Warn("pagina AGC sin datos utiles", zap.Int64("id", ext.ID), zap.String("url", ext.URL))
		if err := s.Repo.MarkError(ctx, ext.ID); err != nil {
			s.Logger.Error("no se pudo marcar error", zap.Int64("id", ext.ID), zap.Error(err))
		}
		return false
	}

	snapshotURL := ""
	if s.Snapshots != nil && len(page.RawHTML) > 0 {
		key := fmt.Sprintf("agc/%d/%s.html", ext.ID, uuid.New().String())
		u, err := s.Snapshots.UploadHTML(ctx, key, page.RawHTML)
		if err != nil {
			// archival is best-effort; the enrichment itself still counts
			s.Logger.Warn("no se pudo archivar snapshot", zap.Int64("id", ext.ID), zap.Error(err))
		} else {
			snapshotURL = u
		}
	}

	if err := s.Repo.MarkEnriched(ctx, ext.ID, page.Fields, snapshotURL, s.Clock.Now()); err != nil {
		s.Logger.Error("no se pudo guardar datos", zap.Int64("id", ext.ID), zap.Error(err))
		return false
	}

	s.Logger.Info("extintor sincronizado",
		zap.Int64("id", ext.ID),
		zap.String("domicilio", page.Fields.Domicilio),
	)
	return true
}
