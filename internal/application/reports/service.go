package reports

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hst-srl/matafuegos-sync/internal/application"
	domain "github.com/hst-srl/matafuegos-sync/internal/domain/extinguishers"
)

// Service is the read side consumed by dashboards: filtered listings, status
// and expiry summaries, and the periodic-controls report.
type Service struct {
	Repo   domain.Repository
	Clock  application.Clock
	Logger *zap.Logger
}

func New(repo domain.Repository, clock application.Clock, logger *zap.Logger) *Service {
	return &Service{Repo: repo, Clock: clock, Logger: logger}
}

// List returns a page of extinguishers matching the filters.
func (s *Service) List(ctx context.Context, f domain.ListFilters, page, pageSize int) (domain.PaginatedResult, error) {
	return s.Repo.List(ctx, f, page, pageSize)
}

// ExpirySummary counts enriched rows per maintenance-expiry bucket.
type ExpirySummary struct {
	Expired int `json:"vencidos"`
	Soon    int `json:"por_vencer"`
	Later   int `json:"vencen_pronto"`
	Current int `json:"vigentes"`
	Unknown int `json:"sin_fecha"`
}

type Summary struct {
	Estados      domain.StatusSummary `json:"estados"`
	Vencimientos ExpirySummary        `json:"vencimientos"`
}

// Summarize aggregates status counts plus expiry buckets as of "today".
func (s *Service) Summarize(ctx context.Context) (Summary, error) {
	statuses, err := s.Repo.Summary(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("status summary: %w", err)
	}

	dates, err := s.Repo.MaintenanceExpiries(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("expiry dates: %w", err)
	}

	today := s.Clock.Now()
	var exp ExpirySummary
	for _, d := range dates {
		switch domain.ClassifyExpiry(d, today).Class {
		case domain.ExpiryExpired:
			exp.Expired++
		case domain.ExpirySoon:
			exp.Soon++
		case domain.ExpiryLater:
			exp.Later++
		case domain.ExpiryCurrent:
			exp.Current++
		default:
			exp.Unknown++
		}
	}

	return Summary{Estados: statuses, Vencimientos: exp}, nil
}

// Controls returns rows of the periodic-controls report.
func (s *Service) Controls(ctx context.Context, f domain.ControlFilters, limit, offset int) ([]domain.ControlRow, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.Repo.ListControls(ctx, f, limit, offset)
}
