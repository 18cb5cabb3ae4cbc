// Package report exports SOS activity as an xlsx workbook for operators.
package report

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"

	"github.com/rescue/rescue/internal/domain/identity"
	"github.com/rescue/rescue/internal/domain/sos"
)

const (
	SheetSummary  = "Summary"
	SheetRequests = "Requests"
)

// RequestsHeader is the header row of the Requests sheet.
var RequestsHeader = []string{
	"ID",
	"Kind",
	"Blood Type",
	"Status",
	"Operation Status",
	"Latitude",
	"Longitude",
	"Radius (km)",
	"Patient ID",
	"Donor ID",
	"Hospital ID",
	"Created At",
}

var requestColWidths = []float64{38, 8, 11, 11, 17, 11, 11, 12, 38, 38, 38, 20}

// Snapshot is everything one workbook shows.
type Snapshot struct {
	GeneratedAt time.Time
	Stats       *sos.Stats
	Hospitals   int
	UsersByRole map[identity.Role]int
	Requests    []*sos.Request
}

// Sources are the read models a snapshot is collected from.
type Sources interface {
	Stats(ctx context.Context) (*sos.Stats, error)
	Recent(ctx context.Context, limit int) ([]*sos.Request, error)
}

type HospitalCounter interface {
	Count(ctx context.Context) (int, error)
}

type UserCounter interface {
	CountByRole(ctx context.Context) (map[identity.Role]int, error)
}

// Collect gathers a Snapshot, running the independent queries concurrently.
func Collect(ctx context.Context, requests Sources, hospitals HospitalCounter, users UserCounter, limit int) (*Snapshot, error) {
	snap := &Snapshot{GeneratedAt: time.Now().UTC()}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		snap.Stats, err = requests.Stats(gctx)
		return err
	})
	g.Go(func() (err error) {
		snap.Requests, err = requests.Recent(gctx, limit)
		return err
	})
	g.Go(func() (err error) {
		snap.Hospitals, err = hospitals.Count(gctx)
		return err
	})
	g.Go(func() (err error) {
		snap.UsersByRole, err = users.CountByRole(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("collect report: %w", err)
	}
	return snap, nil
}

// WriteSosWorkbook writes snap as an xlsx workbook with a Summary and a
// Requests sheet.
func WriteSosWorkbook(w io.Writer, snap *Snapshot) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return fmt.Errorf("rename summary sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetRequests); err != nil {
		return fmt.Errorf("create requests sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#FDE2E2"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	if err := writeSummary(f, snap, headerStyle); err != nil {
		return err
	}
	if err := writeRequests(f, snap.Requests, headerStyle); err != nil {
		return err
	}
	f.SetActiveSheet(0)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, snap *Snapshot, headerStyle int) error {
	rows := [][]any{
		{"Metric", "Value"},
		{"Generated At", snap.GeneratedAt.Format(time.RFC3339)},
	}
	if snap.Stats != nil {
		for _, st := range sos.Statuses {
			rows = append(rows, []any{"SOS " + string(st), snap.Stats.ByStatus[st]})
		}
		rows = append(rows, []any{"SOS total", snap.Stats.Total})
	}
	rows = append(rows, []any{"Hospitals", snap.Hospitals})

	roles := make([]string, 0, len(snap.UsersByRole))
	for r := range snap.UsersByRole {
		roles = append(roles, string(r))
	}
	sort.Strings(roles)
	for _, r := range roles {
		rows = append(rows, []any{"Users (" + r + ")", snap.UsersByRole[identity.Role(r)]})
	}

	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(SheetSummary, cell, &row); err != nil {
			return fmt.Errorf("set summary row %d: %w", i+1, err)
		}
	}
	if err := f.SetCellStyle(SheetSummary, "A1", "B1", headerStyle); err != nil {
		return fmt.Errorf("set summary header style: %w", err)
	}
	return f.SetColWidth(SheetSummary, "A", "B", 24)
}

func writeRequests(f *excelize.File, requests []*sos.Request, headerStyle int) error {
	if err := f.SetSheetRow(SheetRequests, "A1", &RequestsHeader); err != nil {
		return fmt.Errorf("set requests header: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(RequestsHeader), 1)
	if err := f.SetCellStyle(SheetRequests, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("set requests header style: %w", err)
	}
	for i, width := range requestColWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(SheetRequests, col, col, width); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}

	for i, r := range requests {
		row := []any{
			r.ID.String(),
			string(r.Kind),
			optString(r.BloodType),
			string(r.Status),
			optString(r.OperationStatus),
			r.Location.Latitude,
			r.Location.Longitude,
			r.SearchRadiusKm,
			r.PatientID.String(),
			optUUID(r.AcceptedDonorID),
			optUUID(r.HospitalID),
			r.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(SheetRequests, cell, &row); err != nil {
			return fmt.Errorf("set request row %d: %w", i+2, err)
		}
	}
	return nil
}

func optString[T ~string](v *T) string {
	if v == nil {
		return ""
	}
	return string(*v)
}

func optUUID(v *uuid.UUID) string {
	if v == nil {
		return ""
	}
	return v.String()
}
