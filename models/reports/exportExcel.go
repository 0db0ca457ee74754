package reports

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const reconciliationSheet = "Reconciliation"

var reconciliationHeadings = []string{
	"TransactionId", "BranchId", "ServiceOrderId", "Workflow", "Status", "Currency",
	"Declared", "Counted", "Difference", "ApprovedIncidentEffect", "AdjustedDifference",
	"PendingIncidents", "WithinTolerance", "CreatedAt",
}

type ExcelExporter interface {
	GetCellValues() []interface{}
}

func (r ReconciliationRow) GetCellValues() []interface{} {
	return []interface{}{
		r.TransactionId,
		r.BranchId,
		r.ServiceOrderId,
		string(r.Workflow),
		r.Status,
		r.Currency,
		r.TotalDeclaredValue.InexactFloat64(),
		r.TotalCountedValue.InexactFloat64(),
		r.ValueDifference.InexactFloat64(),
		r.ApprovedIncidentEffect.InexactFloat64(),
		r.AdjustedDifference.InexactFloat64(),
		r.PendingIncidents,
		r.WithinTolerance,
		r.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

func newExcelFile(sheetName string, data []ExcelExporter, headings ...string) (*excelize.File, error) {
	f := excelize.NewFile()
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	for i, h := range headings {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return nil, err
		}
	}

	rowNo := 2
	for _, d := range data {
		for i, value := range d.GetCellValues() {
			cell, err := excelize.CoordinatesToCellName(i+1, rowNo)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return nil, err
			}
		}
		rowNo++
	}
	return f, nil
}

func reconciliationFile(rows []ReconciliationRow) (*excelize.File, error) {
	data := make([]ExcelExporter, 0, len(rows))
	for _, r := range rows {
		data = append(data, r)
	}
	return newExcelFile(reconciliationSheet, data, reconciliationHeadings...)
}

// WriteReconciliationExcel saves rows as an .xlsx file with a header row.
func WriteReconciliationExcel(rows []ReconciliationRow, filename string) error {
	f, err := reconciliationFile(rows)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(filename); err != nil {
		return fmt.Errorf("save %s: %w", filename, err)
	}
	return nil
}

func WriteReconciliationExcelTo(rows []ReconciliationRow, w io.Writer) error {
	f, err := reconciliationFile(rows)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}
