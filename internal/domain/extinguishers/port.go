package extinguishers

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when an operation references a URL that was never
// scanned (e.g. filing a periodic control before the first scan).
var ErrNotFound = errors.New("extintor no encontrado")

// Result of an idempotent scan ingestion.
type IngestResult struct {
	Created    bool
	TotalScans int
}

// ListFilters narrows reporting queries. Zero values mean "no filter".
type ListFilters struct {
	Status   Status
	NroOrden string
	Search   string // matches url or domicilio
}

// ControlRow is one line of the periodic-controls report: the control joined
// with identifying fields of its extinguisher.
type ControlRow struct {
	Control      PeriodicControl
	URL          string
	Domicilio    string
	NroOrden     string
	NroExtintor  string
}

// ControlFilters narrows the controls report.
type ControlFilters struct {
	ChargeState ChargeState
	NroOrden    string
}

// StatusSummary is the per-status row count.
type StatusSummary struct {
	Pending  int `json:"pendientes"`
	Enriched int `json:"cargados"`
	Error    int `json:"con_error"`
	Total    int `json:"total"`
}

// Repository port. Implementations must make RegisterScan atomic per URL:
// two concurrent ingestions of the same new URL yield exactly one row.
type Repository interface {
	// RegisterScan upserts the extinguisher for url and appends one scan
	// event. nroOrden backfills an empty stored value, never overwrites.
	RegisterScan(ctx context.Context, url, nroOrden, origin string, at time.Time) (IngestResult, error)

	// RegisterControl appends a periodic control and returns the running
	// count for the extinguisher. ErrNotFound when the URL is unknown.
	RegisterControl(ctx context.Context, url string, state ChargeState, plateTag, comment, origin string, at time.Time) (int, error)

	// SelectForEnrichment returns up to limit rows with status pendiente or
	// error, oldest scan first.
	SelectForEnrichment(ctx context.Context, limit int) ([]*Extinguisher, error)

	// MarkEnriched stores the scraped fields and flips status to cargado.
	MarkEnriched(ctx context.Context, id int64, fields EnrichmentFields, snapshotURL string, at time.Time) error

	// MarkError flips status to error leaving previously stored fields intact.
	MarkError(ctx context.Context, id int64) error

	FindByURL(ctx context.Context, url string) (*Extinguisher, error)
	List(ctx context.Context, f ListFilters, page, pageSize int) (PaginatedResult, error)
	Summary(ctx context.Context) (StatusSummary, error)

	// MaintenanceExpiries returns the fecha_venc_mantenimiento strings of all
	// enriched rows, for expiry bucketing.
	MaintenanceExpiries(ctx context.Context) ([]string, error)

	ListControls(ctx context.Context, f ControlFilters, limit, offset int) ([]ControlRow, error)
}

// RegistryPage is the parsed result of one registry fetch.
type RegistryPage struct {
	Fields  EnrichmentFields
	RawHTML []byte // UTF-8, after re-decoding from Latin-1
}

// Registry port (interface to the external AGC registry site)
type Registry interface {
	Fetch(ctx context.Context, url string) (*RegistryPage, error)
}

// SnapshotStore port (interface for raw-page archival)
type SnapshotStore interface {
	UploadHTML(ctx context.Context, key string, body []byte) (string, error)
}
