package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-planner/internal/dto"
	"github.com/noah-isme/sma-adp-planner/internal/scheduler"
	appErrors "github.com/noah-isme/sma-adp-planner/pkg/errors"
	"github.com/noah-isme/sma-adp-planner/pkg/export"
	"github.com/noah-isme/sma-adp-planner/pkg/storage"
)

// Export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

type scheduleSource interface {
	Schedules(ctx context.Context, id string) ([]dto.ScheduleView, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix       string
	ResultTTL       time.Duration
	CleanupInterval time.Duration
}

// ExportDownload is an opened export file together with what its token vouched for.
type ExportDownload struct {
	File       *os.File
	Filename   string
	Format     string
	ProposalID string
	Rank       int
	ExpiresAt  time.Time
}

// TimetableRow is one CSV line: a single weekly slot of a scheduled section.
type TimetableRow struct {
	Rank        int     `csv:"rank"`
	Course      string  `csv:"course"`
	Section     string  `csv:"section"`
	Kind        string  `csv:"kind"`
	ECTS        float64 `csv:"ects"`
	Day         string  `csv:"day"`
	Period      int     `csv:"period"`
	Instructors string  `csv:"instructors"`
}

// ExportService renders ranked schedules to files behind signed download links.
type ExportService struct {
	schedules scheduleSource
	storage   fileStorage
	signer    *storage.SignedURLSigner
	logger    *zap.Logger
	cfg       ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(schedules scheduleSource, files fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		schedules: schedules,
		storage:   files,
		signer:    signer,
		logger:    logger,
		cfg:       cfg,
	}
}

// Export renders one schedule of a finished proposal and returns a signed download link.
func (s *ExportService) Export(ctx context.Context, proposalID string, query dto.ExportQuery) (*dto.ExportResponse, error) {
	format := strings.ToLower(query.Format)
	if format == "" {
		format = ExportFormatCSV
	}
	rank := query.Rank
	if rank <= 0 {
		rank = 1
	}

	schedules, err := s.schedules.Schedules(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if rank > len(schedules) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("proposal has no schedule ranked %d", rank))
	}

	payload, err := RenderSchedule(format, schedules[rank-1])
	if err != nil {
		return nil, err
	}

	filename := exportFilename(proposalID, rank, format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}
	token, expiresAt, err := s.signer.Generate(storage.DownloadClaims{
		ProposalID: proposalID,
		Rank:       rank,
		Format:     format,
		Path:       relPath,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export")
	}

	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	s.logger.Info("timetable exported",
		zap.String("proposal_id", proposalID),
		zap.Int("rank", rank),
		zap.String("format", format),
		zap.Int("bytes", len(payload)),
	)
	return &dto.ExportResponse{
		URL:       fmt.Sprintf("%s/exports/%s", prefix, token),
		Filename:  filename,
		Format:    format,
		ExpiresAt: expiresAt,
	}, nil
}

// Download validates a signed token and opens the stored export file.
func (s *ExportService) Download(ctx context.Context, token string) (*ExportDownload, error) {
	claims, err := s.signer.Parse(token, false)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "download link expired")
		}
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download token")
	}
	file, err := s.storage.Open(claims.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export file no longer available")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export file")
	}
	return &ExportDownload{
		File:       file,
		Filename:   filepath.Base(claims.Path),
		Format:     claims.Format,
		ProposalID: claims.ProposalID,
		Rank:       claims.Rank,
		ExpiresAt:  claims.Expiry(),
	}, nil
}

// Cleanup removes files older than ttl, or the configured ResultTTL when ttl <= 0.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

// StartCleanup boots a goroutine that purges expired exports periodically.
func (s *ExportService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := s.Cleanup(0)
				if err != nil {
					s.logger.Sugar().Warnw("export cleanup failed", "error", err)
					continue
				}
				if len(removed) > 0 {
					s.logger.Sugar().Infow("expired exports removed", "count", len(removed))
				}
			}
		}
	}()
}

// RenderSchedule encodes a schedule as CSV rows or a PDF timetable.
func RenderSchedule(format string, schedule dto.ScheduleView) ([]byte, error) {
	switch strings.ToLower(format) {
	case ExportFormatCSV:
		rows := TimetableRows(schedule)
		return export.NewCSVExporter(',').Render(&rows)
	case ExportFormatPDF:
		title := fmt.Sprintf("Weekly timetable #%d  %.1f ECTS  cost %.2f", schedule.Rank, schedule.ECTS, schedule.Cost.Total)
		return export.NewPDFExporter().RenderTimetable(TimetableGrid(schedule), sectionDetails(schedule), title)
	default:
		return nil, appErrors.Clone(appErrors.ErrUnsupportedFormat, fmt.Sprintf("unsupported export format %q", format))
	}
}

// TimetableRows flattens a schedule into one row per section slot, ordered by day and period.
func TimetableRows(schedule dto.ScheduleView) []TimetableRow {
	var rows []TimetableRow
	for _, section := range schedule.Sections {
		for _, slot := range section.Slots {
			rows = append(rows, TimetableRow{
				Rank:        schedule.Rank,
				Course:      section.Code,
				Section:     section.ID,
				Kind:        section.Kind,
				ECTS:        section.ECTS,
				Day:         slot.DayName,
				Period:      slot.Period,
				Instructors: strings.Join(section.Instructors, "|"),
			})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		di, dj := dayIndex(rows[i].Day), dayIndex(rows[j].Day)
		if di != dj {
			return di < dj
		}
		if rows[i].Period != rows[j].Period {
			return rows[i].Period < rows[j].Period
		}
		return rows[i].Section < rows[j].Section
	})
	return rows
}

// TimetableGrid lays a schedule out with one column per day and one row per period.
// Weekend columns appear only when a section meets on them; colliding sections share
// a cell separated by " / ".
func TimetableGrid(schedule dto.ScheduleView) export.Grid {
	lastDay := scheduler.Friday
	minPeriod, maxPeriod := -1, -1
	cells := map[[2]int][]string{}
	for _, section := range schedule.Sections {
		for _, slot := range section.Slots {
			if slot.Day > lastDay {
				lastDay = slot.Day
			}
			if minPeriod < 0 || slot.Period < minPeriod {
				minPeriod = slot.Period
			}
			if slot.Period > maxPeriod {
				maxPeriod = slot.Period
			}
			key := [2]int{slot.Period, slot.Day}
			cells[key] = append(cells[key], section.ID)
		}
	}

	grid := export.Grid{}
	for day := scheduler.Monday; day <= lastDay; day++ {
		grid.Columns = append(grid.Columns, shortDay(scheduler.DayName(day)))
	}
	if minPeriod < 0 {
		return grid
	}
	for period := minPeriod; period <= maxPeriod; period++ {
		grid.Rows = append(grid.Rows, "P"+strconv.Itoa(period))
		row := make([]string, len(grid.Columns))
		for day := scheduler.Monday; day <= lastDay; day++ {
			ids := cells[[2]int{period, day}]
			sort.Strings(ids)
			row[day-scheduler.Monday] = strings.Join(ids, " / ")
		}
		grid.Cells = append(grid.Cells, row)
	}
	return grid
}

func sectionDetails(schedule dto.ScheduleView) export.Dataset {
	headers := []string{"Section", "Kind", "ECTS", "Selection", "Instructors", "Slots"}
	rows := lo.Map(schedule.Sections, func(section dto.SectionView, _ int) map[string]string {
		slots := lo.Map(section.Slots, func(slot dto.SlotView, _ int) string {
			return fmt.Sprintf("%s/%d", shortDay(slot.DayName), slot.Period)
		})
		return map[string]string{
			"Section":     section.ID,
			"Kind":        section.Kind,
			"ECTS":        strconv.FormatFloat(section.ECTS, 'f', -1, 64),
			"Selection":   section.Selection,
			"Instructors": strings.Join(section.Instructors, ", "),
			"Slots":       strings.Join(slots, " "),
		}
	})
	return export.Dataset{Headers: headers, Rows: rows}
}

// shortDay turns MONDAY into Mon.
func shortDay(name string) string {
	if len(name) < 3 {
		return name
	}
	return name[:1] + strings.ToLower(name[1:3])
}

func dayIndex(name string) int {
	for day := scheduler.Monday; day <= scheduler.Sunday; day++ {
		if scheduler.DayName(day) == name {
			return day
		}
	}
	return scheduler.Sunday + 1
}

func exportFilename(proposalID string, rank int, format string) string {
	id := proposalID
	if len(id) > 8 {
		id = id[:8]
	}
	timestamp := time.Now().UTC().Format("20060102_150405")
	return fmt.Sprintf("timetable_%s_r%d_%s.%s", sanitizeFilename(id), rank, timestamp, format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
