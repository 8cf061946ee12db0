package export

import (
	"fmt"

	"github.com/garyjia/order-workflow/internal/application/port"
	"github.com/xuri/excelize/v2"
)

// LedgerSheet is the worksheet name of a rendered ledger
const LedgerSheet = "Ledger"

const timeLayout = "2006-01-02 15:04:05"

var ledgerHeader = []interface{}{
	"Order", "Stage", "Worker", "Status", "Attempt",
	"Assigned At (UTC)", "Completed At (UTC)", "Time Spent (h)",
	"Comments", "Rework Reason", "Rejection Code",
}

var columnWidths = map[string]float64{
	"A": 18, "B": 10, "C": 18, "D": 12, "E": 8,
	"F": 20, "G": 20, "H": 14, "I": 40, "J": 40, "K": 14,
}

// XLSXRenderer renders ledger rows with excelize
type XLSXRenderer struct{}

// NewXLSXRenderer creates a new ledger renderer
func NewXLSXRenderer() port.LedgerRenderer {
	return &XLSXRenderer{}
}

// Render writes a title row, a header row and one row per WorkItem
func (r *XLSXRenderer) Render(title string, rows []port.LedgerRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), LedgerSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	if err := f.SetCellValue(LedgerSheet, "A1", title); err != nil {
		return nil, fmt.Errorf("write title: %w", err)
	}
	header := ledgerHeader
	if err := f.SetSheetRow(LedgerSheet, "A2", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create style: %w", err)
	}
	if err := f.SetCellStyle(LedgerSheet, "A1", "K2", bold); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}
	for col, width := range columnWidths {
		if err := f.SetColWidth(LedgerSheet, col, col, width); err != nil {
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+3)
		if err != nil {
			return nil, err
		}
		values := ledgerValues(row)
		if err := f.SetSheetRow(LedgerSheet, cell, &values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func ledgerValues(row port.LedgerRow) []interface{} {
	completed := ""
	if row.CompletedAt != nil {
		completed = row.CompletedAt.UTC().Format(timeLayout)
	}
	return []interface{}{
		row.OrderNumber,
		row.Stage,
		row.AssignedUser,
		row.Status,
		row.AttemptNumber,
		row.AssignedAt.UTC().Format(timeLayout),
		completed,
		float64(row.TimeSpentSeconds) / 3600,
		row.Comments,
		row.ReworkReason,
		row.RejectionCode,
	}
}
