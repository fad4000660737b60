package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hst-srl/matafuegos-sync/internal/application"
	domain "github.com/hst-srl/matafuegos-sync/internal/domain/extinguishers"
)

// Service implements the ingestion use-cases: receive a scan or a periodic
// control from a field device and persist it idempotently.
type Service struct {
	Repo   domain.Repository
	Clock  application.Clock
	Logger *zap.Logger
}

func New(repo domain.Repository, clock application.Clock, logger *zap.Logger) *Service {
	return &Service{Repo: repo, Clock: clock, Logger: logger}
}

//
// ==== USE CASES ====
//

type IngestScanCommand struct {
	URL      string
	NroOrden string
	Origin   string
}

type IngestScanResult struct {
	Created    bool
	Message    string
	TotalScans int
}

var ErrValidation = errors.New("validacion")

// IngestScan validates and normalizes the stamp URL, then upserts by unique
// URL and appends one scan-history event. A repeated URL is not an error: it
// answers duplicado=true with the updated history count.
func (s *Service) IngestScan(ctx context.Context, cmd IngestScanCommand) (IngestScanResult, error) {
	url, err := domain.Canonicalize(cmd.URL)
	if err != nil {
		return IngestScanResult{}, fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}

	res, err := s.Repo.RegisterScan(ctx, url, strings.TrimSpace(cmd.NroOrden), cmd.Origin, s.Clock.Now())
	if err != nil {
		return IngestScanResult{}, err
	}

	msg := "Escaneo registrado correctamente."
	if !res.Created {
		msg = fmt.Sprintf("URL ya registrada. Re-escaneo #%d agregado al historial.", res.TotalScans)
	}

	s.Logger.Info("escaneo ingresado",
		zap.String("url", url),
		zap.Bool("created", res.Created),
		zap.Int("total_escaneos", res.TotalScans),
	)

	return IngestScanResult{
		Created:    res.Created,
		Message:    msg,
		TotalScans: res.TotalScans,
	}, nil
}

type IngestControlCommand struct {
	URL         string
	ChargeState string
	PlateTag    string
	Comment     string
	Origin      string
}

type IngestControlResult struct {
	Message       string
	TotalControls int
}

// IngestControl files a periodic charge inspection against an already-known
// extinguisher. Controls cannot precede the first scan.
func (s *Service) IngestControl(ctx context.Context, cmd IngestControlCommand) (IngestControlResult, error) {
	url, err := domain.Canonicalize(cmd.URL)
	if err != nil {
		return IngestControlResult{}, fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}

	state := domain.ChargeState(strings.TrimSpace(cmd.ChargeState))
	if !state.Valid() {
		return IngestControlResult{}, fmt.Errorf("%w: estado_carga invalido. Valores: Cargado, Descargado, Sobrecargado", ErrValidation)
	}
	plate := strings.TrimSpace(cmd.PlateTag)
	if plate == "" {
		return IngestControlResult{}, fmt.Errorf("%w: falta el campo chapa_baliza", ErrValidation)
	}

	total, err := s.Repo.RegisterControl(ctx, url, state, plate, strings.TrimSpace(cmd.Comment), cmd.Origin, s.Clock.Now())
	if err != nil {
		return IngestControlResult{}, err
	}

	s.Logger.Info("control periodico ingresado",
		zap.String("url", url),
		zap.String("estado_carga", string(state)),
		zap.Int("total_controles", total),
	)

	return IngestControlResult{
		Message:       fmt.Sprintf("Control periodico #%d registrado.", total),
		TotalControls: total,
	}, nil
}
