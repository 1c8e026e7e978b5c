package service

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-planner/internal/dto"
	appErrors "github.com/noah-isme/sma-adp-planner/pkg/errors"
	"github.com/noah-isme/sma-adp-planner/pkg/storage"
)

type scheduleSourceStub struct {
	schedules map[string][]dto.ScheduleView
}

func (s scheduleSourceStub) Schedules(ctx context.Context, id string) ([]dto.ScheduleView, error) {
	schedules, ok := s.schedules[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
	}
	return schedules, nil
}

func sampleScheduleView() dto.ScheduleView {
	return dto.ScheduleView{
		Rank:     1,
		Key:      "MATH101.a,PHYS101",
		ECTS:     10.5,
		Severity: 1,
		Feasible: true,
		Cost:     dto.CostView{Conflict: 10, ECTSDeviation: 19.5, Total: 29.5},
		Sections: []dto.SectionView{
			{
				ID: "MATH101.a", Code: "MATH101", Kind: "LECTURE", ECTS: 6, Selection: "MANDATORY",
				Slots: []dto.SlotView{{Day: 3, DayName: "WEDNESDAY", Period: 1}, {Day: 1, DayName: "MONDAY", Period: 1}},
			},
			{
				ID: "PHYS101", Code: "PHYS101", Kind: "LAB", ECTS: 4.5, Selection: "MANDATORY", Instructors: []string{"Curie", "Bohr"},
				Slots: []dto.SlotView{{Day: 1, DayName: "MONDAY", Period: 1}},
			},
		},
	}
}

func newExportServiceForTest(t *testing.T) (*ExportService, *storage.LocalStorage) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	source := scheduleSourceStub{schedules: map[string][]dto.ScheduleView{"proposal-1": {sampleScheduleView()}}}
	svc := NewExportService(source, store, signer, ExportConfig{APIPrefix: "/api/v1/", ResultTTL: time.Hour}, zap.NewNop())
	return svc, store
}

func TestExportServiceExportCSV(t *testing.T) {
	svc, store := newExportServiceForTest(t)

	resp, err := svc.Export(context.Background(), "proposal-1", dto.ExportQuery{})
	require.NoError(t, err)
	assert.Equal(t, ExportFormatCSV, resp.Format)
	assert.True(t, strings.HasPrefix(resp.URL, "/api/v1/exports/"))
	assert.True(t, resp.ExpiresAt.After(time.Now()))

	data, err := os.ReadFile(store.Path(resp.Filename))
	require.NoError(t, err)
	expected := "rank,course,section,kind,ects,day,period,instructors\n" +
		"1,MATH101,MATH101.a,LECTURE,6,MONDAY,1,\n" +
		"1,PHYS101,PHYS101,LAB,4.5,MONDAY,1,Curie|Bohr\n" +
		"1,MATH101,MATH101.a,LECTURE,6,WEDNESDAY,1,\n"
	assert.Equal(t, expected, string(data))
}

func TestExportServiceExportPDF(t *testing.T) {
	svc, _ := newExportServiceForTest(t)

	resp, err := svc.Export(context.Background(), "proposal-1", dto.ExportQuery{Format: "pdf", Rank: 1})
	require.NoError(t, err)

	token := resp.URL[len("/api/v1/exports/"):]
	download, err := svc.Download(context.Background(), token)
	require.NoError(t, err)
	defer download.File.Close()
	assert.Equal(t, "pdf", download.Format)
	assert.Equal(t, resp.Filename, download.Filename)
	assert.Equal(t, "proposal-1", download.ProposalID)
	assert.Equal(t, 1, download.Rank)

	body, err := io.ReadAll(download.File)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF")))
}

func TestExportServiceExportUnknownRank(t *testing.T) {
	svc, _ := newExportServiceForTest(t)

	_, err := svc.Export(context.Background(), "proposal-1", dto.ExportQuery{Rank: 2})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = svc.Export(context.Background(), "missing", dto.ExportQuery{})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestExportServiceDownloadRejectsTamperedToken(t *testing.T) {
	svc, _ := newExportServiceForTest(t)

	resp, err := svc.Export(context.Background(), "proposal-1", dto.ExportQuery{})
	require.NoError(t, err)
	token := resp.URL[len("/api/v1/exports/"):]

	_, err = svc.Download(context.Background(), token+"00")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestExportServiceDownloadMissingFile(t *testing.T) {
	svc, store := newExportServiceForTest(t)

	resp, err := svc.Export(context.Background(), "proposal-1", dto.ExportQuery{})
	require.NoError(t, err)
	require.NoError(t, store.Delete(resp.Filename))

	_, err = svc.Download(context.Background(), resp.URL[len("/api/v1/exports/"):])
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestExportServiceCleanup(t *testing.T) {
	svc, store := newExportServiceForTest(t)

	resp, err := svc.Export(context.Background(), "proposal-1", dto.ExportQuery{})
	require.NoError(t, err)
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(store.Path(resp.Filename), old, old))

	removed, err := svc.Cleanup(0)
	require.NoError(t, err)
	assert.Len(t, removed, 1)
}

func TestRenderScheduleRejectsUnknownFormat(t *testing.T) {
	_, err := RenderSchedule("xlsx", sampleScheduleView())
	assert.ErrorIs(t, err, appErrors.ErrUnsupportedFormat)
}

func TestTimetableGridMarksCollisions(t *testing.T) {
	grid := TimetableGrid(sampleScheduleView())

	assert.Equal(t, []string{"Mon", "Tue", "Wed", "Thu", "Fri"}, grid.Columns)
	assert.Equal(t, []string{"P1"}, grid.Rows)
	require.Len(t, grid.Cells, 1)
	assert.Equal(t, "MATH101.a / PHYS101", grid.Cells[0][0])
	assert.Equal(t, "MATH101.a", grid.Cells[0][2])
	assert.Empty(t, grid.Cells[0][1])
}

func TestTimetableGridAddsWeekendColumns(t *testing.T) {
	view := sampleScheduleView()
	view.Sections[1].Slots = append(view.Sections[1].Slots, dto.SlotView{Day: 6, DayName: "SATURDAY", Period: 3})

	grid := TimetableGrid(view)
	assert.Len(t, grid.Columns, 6)
	assert.Equal(t, []string{"P1", "P2", "P3"}, grid.Rows)
	assert.Equal(t, "PHYS101", grid.Cells[2][5])
}
