// Package export writes work days as spreadsheets. The layout is provider
// neutral: one row per work day with minutes as plain integers.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/geoclock/timekeeper/internal/datastore/entities"
)

// Supported formats.
const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
)

// SheetName is the worksheet written by WriteWorkDaysXLSX.
const SheetName = "WorkDays"

const clockLayout = "2006-01-02 15:04"

// Header lists the exported columns in order.
var Header = []string{
	"date", "user_id", "location_id", "location",
	"total_minutes", "break_minutes", "meets_policy",
	"first_clock_in", "last_clock_out",
}

// Options controls how rows are rendered.
type Options struct {
	// Timezone renders clock times; UTC when nil.
	Timezone *time.Location
	// LocationNames maps location ids to display names.
	LocationNames map[string]string
}

// ContentType returns the MIME type and file extension for format.
func ContentType(format string) (mime, ext string, err error) {
	switch strings.ToLower(format) {
	case FormatXLSX, "":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", FormatXLSX, nil
	case FormatCSV:
		return "text/csv; charset=utf-8", FormatCSV, nil
	}
	return "", "", fmt.Errorf("unsupported export format %q", format)
}

// Write dispatches to the writer for format.
func Write(w io.Writer, format string, days []*entities.WorkDay, opts Options) error {
	switch strings.ToLower(format) {
	case FormatXLSX, "":
		return WriteWorkDaysXLSX(w, days, opts)
	case FormatCSV:
		return WriteWorkDaysCSV(w, days, opts)
	}
	return fmt.Errorf("unsupported export format %q", format)
}

// WriteWorkDaysXLSX writes days to a single-sheet workbook.
func WriteWorkDaysXLSX(w io.Writer, days []*entities.WorkDay, opts Options) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	if err := f.SetRowStyle(SheetName, 1, 1, bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, d := range days {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{
			d.Date, d.UserID, d.LocationID, opts.LocationNames[d.LocationID],
			d.TotalMinutes, d.BreakMinutes, d.MeetsPolicy,
			opts.clock(d.FirstClockIn), opts.clock(d.LastClockOut),
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(SheetName, "A", "I", 18); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// WriteWorkDaysCSV writes the same columns as WriteWorkDaysXLSX.
func WriteWorkDaysCSV(w io.Writer, days []*entities.WorkDay, opts Options) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, d := range days {
		if err := cw.Write([]string{
			d.Date, d.UserID, d.LocationID, opts.LocationNames[d.LocationID],
			strconv.Itoa(d.TotalMinutes), strconv.Itoa(d.BreakMinutes), strconv.FormatBool(d.MeetsPolicy),
			opts.clock(d.FirstClockIn), opts.clock(d.LastClockOut),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (o Options) clock(ms *int64) string {
	if ms == nil {
		return ""
	}
	loc := o.Timezone
	if loc == nil {
		loc = time.UTC
	}
	return time.UnixMilli(*ms).In(loc).Format(clockLayout)
}
