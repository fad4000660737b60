package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	domain "github.com/hst-srl/matafuegos-sync/internal/domain/extinguishers"
)

// ExtinguisherRepository is the Postgres counterpart of the MySQL repository.
type ExtinguisherRepository struct {
	db *sql.DB
}

func NewExtinguisherRepository(db *sql.DB) *ExtinguisherRepository {
	return &ExtinguisherRepository{db: db}
}

const extinguisherColumns = `
id, url, estado, domicilio, fabricante, recargadora, agente_extintor, capacidad,
fecha_mantenimiento, fecha_venc_mantenimiento, fecha_fabricacion, venc_vida_util,
venc_ph, nro_tarjeta, nro_extintor, uso, nro_orden, snapshot_url,
fecha_escaneo, fecha_sincronizacion, intentos_sync`

func (r *ExtinguisherRepository) RegisterScan(ctx context.Context, url, nroOrden, origin string, at time.Time) (domain.IngestResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.IngestResult{}, err
	}
	defer tx.Rollback()

	var (
		id        int64
		storedNro sql.NullString
		created   bool
	)
	// DO NOTHING instead of raising 23505: a raised unique violation aborts
	// the whole transaction (25P02) and the recovery statements would never
	// run. No row back means a concurrent request won the race or the url
	// was already known; lock the existing row and append to its history.
	err = tx.QueryRowContext(ctx,
		`INSERT INTO extintores (url, fecha_escaneo, estado, intentos_sync, nro_orden)
		 VALUES ($1, $2, 'pendiente', 0, $3)
		 ON CONFLICT (url) DO NOTHING
		 RETURNING id`,
		url, at, nullStr(nroOrden),
	).Scan(&id)

	switch {
	case err == nil:
		created = true
	case errors.Is(err, sql.ErrNoRows):
		if err := tx.QueryRowContext(ctx,
			`SELECT id, nro_orden FROM extintores WHERE url = $1 LIMIT 1 FOR UPDATE`, url,
		).Scan(&id, &storedNro); err != nil {
			return domain.IngestResult{}, err
		}
	default:
		return domain.IngestResult{}, err
	}

	if !created && nroOrden != "" && strOrEmpty(storedNro) == "" {
		if _, err := tx.ExecContext(ctx,
			`UPDATE extintores SET nro_orden = $1 WHERE id = $2`, nroOrden, id,
		); err != nil {
			return domain.IngestResult{}, err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO historial_escaneos (extintor_id, fecha_escaneo, origen) VALUES ($1, $2, $3)`,
		id, at, origin,
	); err != nil {
		return domain.IngestResult{}, err
	}

	var total int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM historial_escaneos WHERE extintor_id = $1`, id,
	).Scan(&total); err != nil {
		return domain.IngestResult{}, err
	}

	if err := tx.Commit(); err != nil {
		return domain.IngestResult{}, err
	}
	return domain.IngestResult{Created: created, TotalScans: total}, nil
}

func (r *ExtinguisherRepository) RegisterControl(ctx context.Context, url string, state domain.ChargeState, plateTag, comment, origin string, at time.Time) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM extintores WHERE url = $1 LIMIT 1`, url).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO controles_periodicos (extintor_id, fecha_control, estado_carga, chapa_baliza, comentario, origen)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		id, at, string(state), plateTag, nullStr(comment), origin,
	); err != nil {
		return 0, err
	}

	var total int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM controles_periodicos WHERE extintor_id = $1`, id,
	).Scan(&total); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *ExtinguisherRepository) SelectForEnrichment(ctx context.Context, limit int) ([]*domain.Extinguisher, error) {
	if limit <= 0 {
		limit = 20
	}
	q := `SELECT ` + extinguisherColumns + `
FROM extintores
WHERE estado IN ('pendiente', 'error')
ORDER BY fecha_escaneo ASC
LIMIT $1`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanExtinguishers(rows)
}

func (r *ExtinguisherRepository) MarkEnriched(ctx context.Context, id int64, f domain.EnrichmentFields, snapshotURL string, at time.Time) error {
	const q = `
UPDATE extintores SET
    estado = 'cargado',
    domicilio = $1,
    fabricante = $2,
    recargadora = $3,
    agente_extintor = $4,
    capacidad = $5,
    fecha_mantenimiento = $6,
    fecha_venc_mantenimiento = $7,
    fecha_fabricacion = $8,
    venc_vida_util = $9,
    venc_ph = $10,
    nro_tarjeta = $11,
    nro_extintor = $12,
    uso = $13,
    snapshot_url = $14,
    fecha_sincronizacion = $15
WHERE id = $16`
	_, err := r.db.ExecContext(ctx, q,
		nullStr(f.Domicilio), nullStr(f.Fabricante), nullStr(f.Recargadora),
		nullStr(f.AgenteExtintor), nullStr(f.Capacidad),
		nullStr(f.FechaMantenimiento), nullStr(f.FechaVencMantenimiento),
		nullStr(f.FechaFabricacion), nullStr(f.VencVidaUtil), nullStr(f.VencPH),
		nullStr(f.NroTarjeta), nullStr(f.NroExtintor), nullStr(f.Uso),
		nullStr(snapshotURL), at, id,
	)
	return err
}

func (r *ExtinguisherRepository) MarkError(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE extintores SET estado = 'error', intentos_sync = intentos_sync + 1 WHERE id = $1`, id)
	return err
}

func (r *ExtinguisherRepository) FindByURL(ctx context.Context, url string) (*domain.Extinguisher, error) {
	q := `SELECT ` + extinguisherColumns + ` FROM extintores WHERE url = $1 LIMIT 1`
	rows, err := r.db.QueryContext(ctx, q, url)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out, err := scanExtinguishers(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, domain.ErrNotFound
	}
	return out[0], nil
}

func (r *ExtinguisherRepository) List(ctx context.Context, f domain.ListFilters, page, pageSize int) (domain.PaginatedResult, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	where, args := listWhere(f)

	q := fmt.Sprintf(`SELECT %s FROM extintores%s ORDER BY fecha_escaneo DESC LIMIT $%d OFFSET $%d`,
		extinguisherColumns, where, len(args)+1, len(args)+2)
	args2 := append(append([]any{}, args...), pageSize, offset)

	rows, err := r.db.QueryContext(ctx, q, args2...)
	if err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("querying extintores: %w", err)
	}
	defer rows.Close()

	data, err := scanExtinguishers(rows)
	if err != nil {
		return domain.PaginatedResult{}, err
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM extintores`+where, args...).Scan(&total); err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("counting extintores: %w", err)
	}

	return domain.PaginatedResult{
		Data:       data,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	}, nil
}

func listWhere(f domain.ListFilters) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Status != "" {
		add("estado = $%d", string(f.Status))
	}
	if f.NroOrden != "" {
		add("nro_orden = $%d", f.NroOrden)
	}
	if f.Search != "" {
		term := "%" + escapeLikePattern(f.Search) + "%"
		args = append(args, term)
		n := len(args)
		conds = append(conds, fmt.Sprintf("(url LIKE $%d OR domicilio LIKE $%d)", n, n))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *ExtinguisherRepository) Summary(ctx context.Context) (domain.StatusSummary, error) {
	const q = `
SELECT COUNT(*),
       COUNT(*) FILTER (WHERE estado = 'pendiente'),
       COUNT(*) FILTER (WHERE estado = 'cargado'),
       COUNT(*) FILTER (WHERE estado = 'error')
FROM extintores`
	var s domain.StatusSummary
	if err := r.db.QueryRowContext(ctx, q).Scan(&s.Total, &s.Pending, &s.Enriched, &s.Error); err != nil {
		return domain.StatusSummary{}, err
	}
	return s, nil
}

func (r *ExtinguisherRepository) MaintenanceExpiries(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT COALESCE(fecha_venc_mantenimiento, '') FROM extintores WHERE estado = 'cargado'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *ExtinguisherRepository) ListControls(ctx context.Context, f domain.ControlFilters, limit, offset int) ([]domain.ControlRow, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `
SELECT c.id, c.extintor_id, c.fecha_control, c.estado_carga, c.chapa_baliza,
       COALESCE(c.comentario, ''), c.origen,
       e.url, COALESCE(e.domicilio, ''), COALESCE(e.nro_orden, ''), COALESCE(e.nro_extintor, '')
FROM controles_periodicos c
JOIN extintores e ON e.id = c.extintor_id`
	var (
		conds []string
		args  []any
	)
	if f.ChargeState != "" {
		args = append(args, string(f.ChargeState))
		conds = append(conds, fmt.Sprintf("c.estado_carga = $%d", len(args)))
	}
	if f.NroOrden != "" {
		args = append(args, f.NroOrden)
		conds = append(conds, fmt.Sprintf("e.nro_orden = $%d", len(args)))
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, limit, offset)
	q += fmt.Sprintf(" ORDER BY c.fecha_control DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ControlRow
	for rows.Next() {
		var row domain.ControlRow
		var state string
		if err := rows.Scan(
			&row.Control.ID, &row.Control.ExtinguisherID, &row.Control.OccurredAt,
			&state, &row.Control.PlateTag, &row.Control.Comment, &row.Control.Origin,
			&row.URL, &row.Domicilio, &row.NroOrden, &row.NroExtintor,
		); err != nil {
			return nil, err
		}
		row.Control.ChargeState = domain.ChargeState(state)
		out = append(out, row)
	}
	return out, rows.Err()
}

func scanExtinguishers(rows *sql.Rows) ([]*domain.Extinguisher, error) {
	var out []*domain.Extinguisher
	for rows.Next() {
		var (
			e          domain.Extinguisher
			status     string
			nulls      [13]sql.NullString
			nroOrden   sql.NullString
			snapshot   sql.NullString
			enrichedAt sql.NullTime
		)
		if err := rows.Scan(
			&e.ID, &e.URL, &status,
			&nulls[0], &nulls[1], &nulls[2], &nulls[3], &nulls[4], &nulls[5],
			&nulls[6], &nulls[7], &nulls[8], &nulls[9], &nulls[10], &nulls[11], &nulls[12],
			&nroOrden, &snapshot, &e.ScannedAt, &enrichedAt, &e.AttemptCount,
		); err != nil {
			return nil, err
		}
		e.Status = domain.Status(status)
		e.Fields = domain.EnrichmentFields{
			Domicilio:              strOrEmpty(nulls[0]),
			Fabricante:             strOrEmpty(nulls[1]),
			Recargadora:            strOrEmpty(nulls[2]),
			AgenteExtintor:         strOrEmpty(nulls[3]),
			Capacidad:              strOrEmpty(nulls[4]),
			FechaMantenimiento:     strOrEmpty(nulls[5]),
			FechaVencMantenimiento: strOrEmpty(nulls[6]),
			FechaFabricacion:       strOrEmpty(nulls[7]),
			VencVidaUtil:           strOrEmpty(nulls[8]),
			VencPH:                 strOrEmpty(nulls[9]),
			NroTarjeta:             strOrEmpty(nulls[10]),
			NroExtintor:            strOrEmpty(nulls[11]),
			Uso:                    strOrEmpty(nulls[12]),
		}
		e.NroOrden = strOrEmpty(nroOrden)
		e.SnapshotURL = strOrEmpty(snapshot)
		if enrichedAt.Valid {
			t := enrichedAt.Time
			e.EnrichedAt = &t
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func nullStr(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func strOrEmpty(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func escapeLikePattern(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}
