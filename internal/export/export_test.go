package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/geoclock/timekeeper/internal/datastore/entities"
)

func sampleDays(t *testing.T) ([]*entities.WorkDay, Options) {
	t.Helper()
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	in := time.Date(2024, 6, 3, 13, 0, 0, 0, time.UTC).UnixMilli()
	out := time.Date(2024, 6, 3, 21, 0, 0, 0, time.UTC).UnixMilli()
	return []*entities.WorkDay{
			{Date: "2024-06-03", UserID: "u1", LocationID: "l1", TotalMinutes: 450, BreakMinutes: 30, FirstClockIn: &in, LastClockOut: &out},
			{Date: "2024-06-04", UserID: "u1", LocationID: "l1", TotalMinutes: 0, BreakMinutes: 0, FirstClockIn: &in},
		}, Options{
			Timezone:      ny,
			LocationNames: map[string]string{"l1": "HQ"},
		}
}

func TestWriteWorkDaysCSV(t *testing.T) {
	days, opts := sampleDays(t)
	var buf bytes.Buffer
	require.NoError(t, WriteWorkDaysCSV(&buf, days, opts))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Header, rows[0])
	assert.Equal(t, []string{"2024-06-03", "u1", "l1", "HQ", "450", "30", "false", "2024-06-03 09:00", "2024-06-03 17:00"}, rows[1])
	assert.Equal(t, "", rows[2][8], "missing clock out stays empty")
}

func TestWriteWorkDaysXLSX(t *testing.T) {
	days, opts := sampleDays(t)
	var buf bytes.Buffer
	require.NoError(t, WriteWorkDaysXLSX(&buf, days, opts))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, SheetName, f.GetSheetName(0))
	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Header, rows[0])
	assert.Equal(t, "450", rows[1][4])
	assert.Equal(t, "HQ", rows[1][3])
	assert.Equal(t, "2024-06-03 09:00", rows[1][7])
}

func TestWrite_Format(t *testing.T) {
	var buf bytes.Buffer
	require.Error(t, Write(&buf, "pdf", nil, Options{}))

	require.NoError(t, Write(&buf, "CSV", nil, Options{}))
	assert.Equal(t, "date,user_id,location_id,location,total_minutes,break_minutes,meets_policy,first_clock_in,last_clock_out\n", buf.String())

	mime, ext, err := ContentType("xlsx")
	require.NoError(t, err)
	assert.Equal(t, "xlsx", ext)
	assert.Contains(t, mime, "spreadsheetml")
}
