package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	appenrich "github.com/hst-srl/matafuegos-sync/internal/application/enrich"
	appingest "github.com/hst-srl/matafuegos-sync/internal/application/ingest"
	appreports "github.com/hst-srl/matafuegos-sync/internal/application/reports"
	domain "github.com/hst-srl/matafuegos-sync/internal/domain/extinguishers"
	"github.com/hst-srl/matafuegos-sync/internal/middleware"
)

type Router struct {
	ingestSvc  *appingest.Service
	enrichSvc  *appenrich.Service
	reportsSvc *appreports.Service
	maxBatch   int
}

func NewRouter(ingestSvc *appingest.Service, enrichSvc *appenrich.Service, reportsSvc *appreports.Service, maxBatch int) http.Handler {
	r := &Router{ingestSvc: ingestSvc, enrichSvc: enrichSvc, reportsSvc: reportsSvc, maxBatch: maxBatch}
	mux := chi.NewRouter()

	// device-facing submission endpoints, paths fixed by the app protocol
	mux.Post("/recibir_escaneo", r.wrap(r.handleRecibirEscaneo))
	mux.Post("/recibir_control_periodico", r.wrap(r.handleRecibirControl))
	mux.Get("/api_sync", r.wrap(r.handleAPISync))

	// reporting surface
	mux.Get("/api/extintores", r.wrap(r.handleListExtintores))
	mux.Get("/api/extintores/resumen", r.wrap(r.handleResumen))
	mux.Get("/api/informe_controles", r.wrap(r.handleInformeControles))
	mux.Get("/api/informe_controles/excel", r.wrap(r.handleInformeControlesExcel))

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// Callers check both the HTTP status and the success flag: validation gets
// 400, infra faults 500, both with success=false.
func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			if errors.Is(err, appingest.ErrValidation) {
				writeJSON(w, http.StatusBadRequest, map[string]any{
					"success": false,
					"message": validationMessage(err),
				})
				return
			}
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"success": false,
				"message": "Error interno del servidor.",
			})
		}
	}
}

func validationMessage(err error) string {
	msg := err.Error()
	// strip the sentinel prefix, callers see the human-readable part
	const prefix = "validacion: "
	if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
		return msg[len(prefix):]
	}
	return msg
}

func originOrDefault(origen string) string {
	if origen == "" {
		return "app_android"
	}
	return origen
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// POST /recibir_escaneo
// Body: {"url": "...", "nro_orden": "..."}
func (r *Router) handleRecibirEscaneo(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		URL      string `json:"url"`
		NroOrden string `json:"nro_orden"`
		Origen   string `json:"origen"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.URL == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"message": `Falta el campo "url" en el body JSON.`,
		})
		return nil
	}

	res, err := r.ingestSvc.IngestScan(req.Context(), appingest.IngestScanCommand{
		URL:      body.URL,
		NroOrden: body.NroOrden,
		Origin:   originOrDefault(body.Origen),
	})
	if err != nil {
		return err
	}

	middleware.IncrementScansIngested()
	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"message":        res.Message,
		"duplicado":      !res.Created,
		"escaneos_total": res.TotalScans,
	})
	return nil
}

// POST /recibir_control_periodico
func (r *Router) handleRecibirControl(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		URL         string `json:"url"`
		EstadoCarga string `json:"estado_carga"`
		ChapaBaliza string `json:"chapa_baliza"`
		Comentario  string `json:"comentario"`
		Origen      string `json:"origen"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil ||
		body.URL == "" || body.EstadoCarga == "" || body.ChapaBaliza == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"message": "Faltan campos requeridos: url, estado_carga, chapa_baliza.",
		})
		return nil
	}

	res, err := r.ingestSvc.IngestControl(req.Context(), appingest.IngestControlCommand{
		URL:         body.URL,
		ChargeState: body.EstadoCarga,
		PlateTag:    body.ChapaBaliza,
		Comment:     body.Comentario,
		Origin:      originOrDefault(body.Origen),
	})
	if errors.Is(err, domain.ErrNotFound) {
		// domain rejection, not an infra fault: HTTP 200 with success=false
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"message": "Extintor no encontrado. Debe escanearse primero.",
		})
		return nil
	}
	if err != nil {
		return err
	}

	middleware.IncrementControlsIngested()
	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"message":         res.Message,
		"total_controles": res.TotalControls,
	})
	return nil
}

// GET /api_sync — drains one enrichment batch, same operation the background
// worker runs on its timer.
func (r *Router) handleAPISync(w http.ResponseWriter, req *http.Request) error {
	res, err := r.enrichSvc.RunBatch(req.Context(), r.maxBatch)
	if err != nil {
		return err
	}
	middleware.AddEnrichmentResults(res.Enriched, res.Failed)
	writeJSON(w, http.StatusOK, res)
	return nil
}

// GET /api/extintores?estado=&nro_orden=&buscar=&page=&page_size=
func (r *Router) handleListExtintores(w http.ResponseWriter, req *http.Request) error {
	q := req.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("page_size"))

	f := domain.ListFilters{
		Status:   domain.Status(q.Get("estado")),
		NroOrden: q.Get("nro_orden"),
		Search:   q.Get("buscar"),
	}
	list, err := r.reportsSvc.List(req.Context(), f, page, size)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, list)
	return nil
}

// GET /api/extintores/resumen
func (r *Router) handleResumen(w http.ResponseWriter, req *http.Request) error {
	sum, err := r.reportsSvc.Summarize(req.Context())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, sum)
	return nil
}

// GET /api/informe_controles?estado_carga=&nro_orden=&limit=&offset=
func (r *Router) handleInformeControles(w http.ResponseWriter, req *http.Request) error {
	q := req.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	f := domain.ControlFilters{
		ChargeState: domain.ChargeState(q.Get("estado_carga")),
		NroOrden:    q.Get("nro_orden"),
	}
	rows, err := r.reportsSvc.Controls(req.Context(), f, limit, offset)
	if err != nil {
		return err
	}
	if rows == nil {
		rows = []domain.ControlRow{}
	}
	writeJSON(w, http.StatusOK, rows)
	return nil
}

// GET /api/informe_controles/excel
func (r *Router) handleInformeControlesExcel(w http.ResponseWriter, req *http.Request) error {
	q := req.URL.Query()
	f := domain.ControlFilters{
		ChargeState: domain.ChargeState(q.Get("estado_carga")),
		NroOrden:    q.Get("nro_orden"),
	}
	data, err := r.reportsSvc.ControlsExcel(req.Context(), f)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="informe_controles.xlsx"`)
	w.Write(data)
	return nil
}
