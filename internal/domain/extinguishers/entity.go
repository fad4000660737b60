package extinguishers

import (
	"time"
)

// Status enum for the enrichment state machine
type Status string

const (
	StatusPending  Status = "pendiente"
	StatusEnriched Status = "cargado"
	StatusError    Status = "error"
)

// ChargeState enum for periodic controls
type ChargeState string

const (
	ChargeStateCharged     ChargeState = "Cargado"
	ChargeStateDischarged  ChargeState = "Descargado"
	ChargeStateOvercharged ChargeState = "Sobrecargado"
)

// Valid reports whether cs is one of the three accepted values.
func (cs ChargeState) Valid() bool {
	switch cs {
	case ChargeStateCharged, ChargeStateDischarged, ChargeStateOvercharged:
		return true
	}
	return false
}

// Fields scraped from the AGC registry page. All optional; a record counts as
// enriched when at least one meaningful field is non-empty.
type EnrichmentFields struct {
	Domicilio              string `json:"domicilio,omitempty"`
	Fabricante             string `json:"fabricante,omitempty"`
	Recargadora            string `json:"recargadora,omitempty"`
	AgenteExtintor         string `json:"agente_extintor,omitempty"`
	Capacidad              string `json:"capacidad,omitempty"`
	FechaMantenimiento     string `json:"fecha_mantenimiento,omitempty"`
	FechaVencMantenimiento string `json:"fecha_venc_mantenimiento,omitempty"`
	FechaFabricacion       string `json:"fecha_fabricacion,omitempty"`
	VencVidaUtil           string `json:"venc_vida_util,omitempty"`
	VencPH                 string `json:"venc_ph,omitempty"`
	NroTarjeta             string `json:"nro_tarjeta,omitempty"`
	NroExtintor            string `json:"nro_extintor,omitempty"`
	Uso                    string `json:"uso,omitempty"`
}

// Meaningful reports whether the scrape produced usable data. Date-only rows
// do not count; the registry renders empty shells for unknown stamps.
func (f EnrichmentFields) Meaningful() bool {
	return f.Domicilio != "" ||
		f.Fabricante != "" ||
		f.Recargadora != "" ||
		f.AgenteExtintor != "" ||
		f.Capacidad != ""
}

// Aggregate root: one row per distinct canonical URL.
type Extinguisher struct {
	ID           int64            `json:"id"`
	URL          string           `json:"url"`
	Status       Status           `json:"estado"`
	Fields       EnrichmentFields `json:"datos"`
	NroOrden     string           `json:"nro_orden,omitempty"`
	SnapshotURL  string           `json:"snapshot_url,omitempty"`
	ScannedAt    time.Time        `json:"fecha_escaneo"`
	EnrichedAt   *time.Time       `json:"fecha_sincronizacion,omitempty"`
	AttemptCount int              `json:"intentos_sync"`
}

// ScanEvent is the append-only audit trail: one row per scan or re-scan.
type ScanEvent struct {
	ID             int64     `json:"id"`
	ExtinguisherID int64     `json:"extintor_id"`
	OccurredAt     time.Time `json:"fecha_escaneo"`
	Origin         string    `json:"origen"`
}

// PeriodicControl is a follow-up charge inspection, append-only.
type PeriodicControl struct {
	ID             int64       `json:"id"`
	ExtinguisherID int64       `json:"extintor_id"`
	OccurredAt     time.Time   `json:"fecha_control"`
	ChargeState    ChargeState `json:"estado_carga"`
	PlateTag       string      `json:"chapa_baliza"`
	Comment        string      `json:"comentario,omitempty"`
	Origin         string      `json:"origen"`
}
