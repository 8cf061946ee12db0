package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/garyjia/order-workflow/internal/application/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestXLSXRenderer_Render(t *testing.T) {
	assigned := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	completed := assigned.Add(90 * time.Minute)

	rows := []port.LedgerRow{
		{
			OrderNumber:      "ORD-A1",
			Stage:            "DRAW",
			AssignedUser:     "alice",
			Status:           "completed",
			AttemptNumber:    1,
			AssignedAt:       assigned,
			CompletedAt:      &completed,
			TimeSpentSeconds: 5400,
			Comments:         "done",
		},
		{
			OrderNumber:   "ORD-A1",
			Stage:         "CHECK",
			AssignedUser:  "bob",
			Status:        "in_progress",
			AttemptNumber: 1,
			AssignedAt:    completed,
		},
	}

	content, err := NewXLSXRenderer().Render("FP1 2026-03-01..2026-04-01", rows)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(content))
	require.NoError(t, err)
	defer f.Close()

	sheetRows, err := f.GetRows(LedgerSheet)
	require.NoError(t, err)
	require.Len(t, sheetRows, 4)

	assert.Equal(t, "FP1 2026-03-01..2026-04-01", sheetRows[0][0])
	assert.Equal(t, "Order", sheetRows[1][0])
	assert.Equal(t, "Rejection Code", sheetRows[1][10])

	assert.Equal(t, []string{"ORD-A1", "DRAW", "alice", "completed", "1",
		"2026-03-02 09:00:00", "2026-03-02 10:30:00", "1.5", "done"}, sheetRows[2])
	assert.Equal(t, "CHECK", sheetRows[3][1])
	assert.Equal(t, "", sheetRows[3][6])
}

func TestXLSXRenderer_RenderEmpty(t *testing.T) {
	content, err := NewXLSXRenderer().Render("empty", nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(content))
	require.NoError(t, err)
	defer f.Close()

	sheetRows, err := f.GetRows(LedgerSheet)
	require.NoError(t, err)
	assert.Len(t, sheetRows, 2)
}
