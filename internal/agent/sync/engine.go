// Package sync drives delivery of locally captured scans to the backend:
// immediate submission when online, store-and-forward when not, and a drain
// loop that retries everything still undelivered.
package sync

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hst-srl/matafuegos-sync/internal/agent/client"
	"github.com/hst-srl/matafuegos-sync/internal/agent/connectivity"
	"github.com/hst-srl/matafuegos-sync/internal/agent/store"
)

// OutcomeKind tags what happened to a submitted scan.
type OutcomeKind int

const (
	// OutcomeSent means the scan was delivered right away.
	OutcomeSent OutcomeKind = iota
	// OutcomeSavedOffline means the scan was queued locally for a later drain.
	OutcomeSavedOffline
	// OutcomeAlreadyPending means the same URL is already queued and nothing
	// new was recorded.
	OutcomeAlreadyPending
	// OutcomeReScanned means the URL had already been delivered and the
	// backend registered an additional scan of the same tag.
	OutcomeReScanned
	// OutcomeFailed means the submission could not be completed; Message
	// carries the reason.
	OutcomeFailed
)

// Outcome is the result of a single Submit call.
type Outcome struct {
	Kind    OutcomeKind
	Message string
}

// DrainResult summarizes one pass over the undelivered queue.
type DrainResult struct {
	Sent      int    `json:"ok"`
	Failed    int    `json:"fail"`
	LastError string `json:"last_error,omitempty"`
}

// Total attempted in this pass.
func (r DrainResult) Total() int { return r.Sent + r.Failed }

// LocalStore is the queue the engine drains.
type LocalStore interface {
	Insert(ctx context.Context, url, nroOrden string, at time.Time) (int64, error)
	FindByURL(ctx context.Context, url string) (*store.Record, error)
	ListUndelivered(ctx context.Context) ([]store.Record, error)
	MarkSent(ctx context.Context, id int64) error
	IncrementAttempts(ctx context.Context, id int64) error
	CountPending(ctx context.Context) (int, error)
	CountSent(ctx context.Context) (int, error)
	CountTotal(ctx context.Context) (int, error)
	ClearAll(ctx context.Context) error
}

// Submitter is the backend transport.
type Submitter interface {
	SendScan(ctx context.Context, url, nroOrden string) (*client.ScanResponse, error)
	SendPeriodicControl(ctx context.Context, url, estadoCarga, chapaBaliza, comentario string) (*client.ControlResponse, error)
}

// Engine serializes every read-check-then-write against the local store so a
// concurrent drain and submission can never race on the same record.
type Engine struct {
	store       LocalStore
	client      Submitter
	gate        connectivity.Gate
	logger      *zap.Logger
	maxAttempts int

	mu       sync.Mutex
	draining sync.Mutex
}

// New builds an engine. maxAttempts caps drain retries per record; zero means
// retry forever.
func New(st LocalStore, cl Submitter, gate connectivity.Gate, logger *zap.Logger, maxAttempts int) *Engine {
	return &Engine{
		store:       st,
		client:      cl,
		gate:        gate,
		logger:      logger,
		maxAttempts: maxAttempts,
	}
}

// Submit handles one freshly decoded QR URL, already validated and normalized
// by the caller.
func (e *Engine) Submit(ctx context.Context, url, nroOrden string) Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, err := e.store.FindByURL(ctx, url)
	if err != nil {
		e.logger.Error("local lookup failed", zap.String("url", url), zap.Error(err))
		return Outcome{Kind: OutcomeFailed, Message: "Error de almacenamiento local"}
	}

	if rec != nil && rec.State == store.StateSent {
		// Re-scan of an already delivered tag: forwarded live, never queued.
		if !e.gate.Online() {
			return Outcome{Kind: OutcomeFailed, Message: "Sin conexion para registrar el re-escaneo"}
		}
		resp, err := e.client.SendScan(ctx, url, nroOrden)
		if err != nil {
			e.logger.Warn("re-scan submission failed", zap.String("url", url), zap.Error(err))
			return Outcome{Kind: OutcomeFailed, Message: client.Reason(err)}
		}
		return Outcome{Kind: OutcomeReScanned, Message: resp.Message}
	}

	if rec != nil {
		return Outcome{Kind: OutcomeAlreadyPending, Message: "Ya registrado, pendiente de sincronizacion"}
	}

	id, err := e.store.Insert(ctx, url, nroOrden, time.Now())
	if err != nil {
		e.logger.Error("local insert failed", zap.String("url", url), zap.Error(err))
		return Outcome{Kind: OutcomeFailed, Message: "Error de almacenamiento local"}
	}

	if !e.gate.Online() {
		return Outcome{Kind: OutcomeSavedOffline, Message: "Guardado localmente, se enviara al recuperar conexion"}
	}

	resp, err := e.client.SendScan(ctx, url, nroOrden)
	if err != nil {
		if ierr := e.store.IncrementAttempts(ctx, id); ierr != nil {
			e.logger.Error("attempt counter update failed", zap.Int64("id", id), zap.Error(ierr))
		}
		e.logger.Warn("submission failed, kept queued",
			zap.String("url", url), zap.Error(err))
		return Outcome{Kind: OutcomeFailed, Message: client.Reason(err)}
	}

	if err := e.store.MarkSent(ctx, id); err != nil {
		e.logger.Error("mark sent failed", zap.Int64("id", id), zap.Error(err))
	}
	return Outcome{Kind: OutcomeSent, Message: resp.Message}
}

// DrainPending attempts delivery of every queued record, oldest first. If a
// drain is already running the call is a no-op and returns an empty result.
func (e *Engine) DrainPending(ctx context.Context) DrainResult {
	if !e.draining.TryLock() {
		return DrainResult{}
	}
	defer e.draining.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	pending, err := e.store.ListUndelivered(ctx)
	if err != nil {
		e.logger.Error("listing undelivered scans failed", zap.Error(err))
		return DrainResult{LastError: "Error de almacenamiento local"}
	}

	var res DrainResult
	for _, rec := range pending {
		if e.maxAttempts > 0 && rec.Attempts >= e.maxAttempts {
			e.logger.Warn("retry ceiling reached, skipping",
				zap.Int64("id", rec.ID), zap.String("url", rec.URL), zap.Int("attempts", rec.Attempts))
			continue
		}

		resp, err := e.client.SendScan(ctx, rec.URL, rec.NroOrden)
		if err != nil {
			res.Failed++
			res.LastError = client.Reason(err)
			if ierr := e.store.IncrementAttempts(ctx, rec.ID); ierr != nil {
				e.logger.Error("attempt counter update failed", zap.Int64("id", rec.ID), zap.Error(ierr))
			}
			continue
		}

		if err := e.store.MarkSent(ctx, rec.ID); err != nil {
			e.logger.Error("mark sent failed", zap.Int64("id", rec.ID), zap.Error(err))
		}
		res.Sent++
		if resp.Duplicado {
			e.logger.Info("backend already had this tag",
				zap.String("url", rec.URL), zap.Int("escaneos_total", resp.EscaneosTotal))
		}
	}

	e.logger.Info("drain finished",
		zap.Int("sent", res.Sent), zap.Int("failed", res.Failed))
	return res
}

// SubmitControl forwards a periodic control reading. Controls are live-only:
// they are never queued, so connectivity is required.
func (e *Engine) SubmitControl(ctx context.Context, url, estadoCarga, chapaBaliza, comentario string) Outcome {
	if !e.gate.Online() {
		return Outcome{Kind: OutcomeFailed, Message: "Sin conexion para registrar el control"}
	}
	resp, err := e.client.SendPeriodicControl(ctx, url, estadoCarga, chapaBaliza, comentario)
	if err != nil {
		return Outcome{Kind: OutcomeFailed, Message: client.Reason(err)}
	}
	return Outcome{Kind: OutcomeSent, Message: resp.Message}
}

// Stats are the local queue counters shown to the operator.
type Stats struct {
	Pending int `json:"pendientes"`
	Sent    int `json:"enviados"`
	Total   int `json:"total"`
}

func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var (
		st  Stats
		err error
	)
	if st.Pending, err = e.store.CountPending(ctx); err != nil {
		return Stats{}, err
	}
	if st.Sent, err = e.store.CountSent(ctx); err != nil {
		return Stats{}, err
	}
	if st.Total, err = e.store.CountTotal(ctx); err != nil {
		return Stats{}, err
	}
	return st, nil
}

// ClearLocalHistory wipes the device queue. Server-side records are untouched.
func (e *Engine) ClearLocalHistory(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.ClearAll(ctx)
}
