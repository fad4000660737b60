package reports

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	domain "github.com/hst-srl/matafuegos-sync/internal/domain/extinguishers"
)

var controlsHeader = []string{
	"Fecha control",
	"Estado de carga",
	"Chapa baliza",
	"Comentario",
	"Origen",
	"URL estampilla",
	"Domicilio",
	"Nro. orden",
	"Nro. extintor",
}

// ControlsExcel renders the periodic-controls report as an xlsx workbook.
func (s *Service) ControlsExcel(ctx context.Context, f domain.ControlFilters) ([]byte, error) {
	rows, err := s.Repo.ListControls(ctx, f, 10000, 0)
	if err != nil {
		return nil, err
	}

	file := excelize.NewFile()

	const sheet = "Controles"
	index, err := file.NewSheet(sheet)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("creating sheet: %w", err)
	}
	file.DeleteSheet("Sheet1")
	file.SetActiveSheet(index)

	headerStyle, err := file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("creating header style: %w", err)
	}

	for i, h := range controlsHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = file.SetCellValue(sheet, cell, h)
		_ = file.SetCellStyle(sheet, cell, cell, headerStyle)
	}

	for r, row := range rows {
		values := []any{
			row.Control.OccurredAt.Format("02/01/2006 15:04"),
			string(row.Control.ChargeState),
			row.Control.PlateTag,
			row.Control.Comment,
			row.Control.Origin,
			row.URL,
			row.Domicilio,
			row.NroOrden,
			row.NroExtintor,
		}
		for c, v := range values {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			_ = file.SetCellValue(sheet, cell, v)
		}
	}

	var buf bytes.Buffer
	if err := file.Write(&buf); err != nil {
		file.Close()
		return nil, fmt.Errorf("writing workbook: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
