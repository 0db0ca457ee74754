package reports

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/cashcenter_backend/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleRows() []ReconciliationRow {
	return []ReconciliationRow{
		{
			TransactionId:          12,
			BranchId:               3,
			ServiceOrderId:         "SO-77",
			Workflow:               models.WorkflowCollection,
			Status:                 string(models.CollectionAprobado),
			Currency:               "USD",
			TotalDeclaredValue:     decimal.NewFromInt(7500),
			TotalCountedValue:      decimal.NewFromInt(8000),
			ValueDifference:        decimal.NewFromInt(500),
			ApprovedIncidentEffect: decimal.NewFromInt(-500),
			AdjustedDifference:     decimal.Zero,
			WithinTolerance:        true,
			CreatedAt:              time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
		},
	}
}

func TestWriteReconciliationExcel(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "reconciliation.xlsx")
	require.NoError(t, WriteReconciliationExcel(sampleRows(), filename))

	f, err := excelize.OpenFile(filename)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{reconciliationSheet}, f.GetSheetList())

	rows, err := f.GetRows(reconciliationSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, reconciliationHeadings, rows[0])
	assert.Equal(t, "12", rows[1][0])
	assert.Equal(t, "SO-77", rows[1][2])
	assert.Equal(t, "Collection", rows[1][3])
	assert.Equal(t, "7500", rows[1][6])
	assert.Equal(t, "500", rows[1][8])
	assert.Equal(t, "2026-03-01 09:30:00", rows[1][13])
}

func TestWriteReconciliationExcelToWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReconciliationExcelTo(nil, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(reconciliationSheet)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, reconciliationHeadings, rows[0])
}
