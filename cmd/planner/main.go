package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/sma-adp-planner/internal/catalog"
	"github.com/noah-isme/sma-adp-planner/internal/dto"
	"github.com/noah-isme/sma-adp-planner/internal/scheduler"
	"github.com/noah-isme/sma-adp-planner/internal/service"
	"github.com/noah-isme/sma-adp-planner/pkg/config"
	"github.com/noah-isme/sma-adp-planner/pkg/export"
)

// inputFiles are the CSV paths shared by every command.
type inputFiles struct {
	catalog     string
	selection   string
	instructors string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, boldRed("error:"), err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	files := &inputFiles{}
	rootCmd := &cobra.Command{
		Use:           "planner",
		Short:         "Rank conflict-minimizing weekly timetables from a course catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&files.catalog, "catalog", "", "Catalog CSV (course;section;kind;ects;instructors;slots)")
	rootCmd.PersistentFlags().StringVar(&files.selection, "selection", "", "Selection CSV (course;selection;frequency); every course is mandatory when omitted")
	rootCmd.PersistentFlags().StringVar(&files.instructors, "instructors", "", "Instructor penalty CSV (instructor;penalty)")
	_ = rootCmd.MarkPersistentFlagRequired("catalog")

	rootCmd.AddCommand(planCmd(files))
	rootCmd.AddCommand(inspectCmd(files))
	return rootCmd
}

func (f *inputFiles) load() (*catalog.Bundle, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	bundle, err := catalog.LoadFiles(f.catalog, f.selection, f.instructors)
	if err != nil {
		return nil, nil, err
	}
	return bundle, cfg, nil
}

func planCmd(files *inputFiles) *cobra.Command {
	var (
		topK      int
		seeds     int
		timeLimit time.Duration
		rank      int
		csvPath   string
		pdfPath   string
		noAnneal  bool
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Search for the best weekly schedules and print them",
		RunE: func(cmd *cobra.Command, args []string) error {
			bundle, cfg, err := files.load()
			if err != nil {
				return err
			}

			req := bundle.Request()
			req.DisableAnnealing = noAnneal
			if topK > 0 {
				req.TopK = &topK
			}
			if timeLimit > 0 {
				ms := int(timeLimit.Milliseconds())
				req.TimeLimitMs = &ms
			}
			if seeds > 0 {
				cfg.Planner.Seeds = seeds
			}

			in, err := service.EngineInput(cfg.Planner, req)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			start := time.Now()
			res, err := run(ctx, cfg.Planner, in)
			if err != nil {
				if c, ok := scheduler.TightestConstraint(err); ok {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s %s exceeded by %.2f: %s\n", boldYellow("tightest constraint:"), c.Kind, c.Excess, c.Detail)
				}
				return err
			}

			view := service.PlanView(res)
			printPlan(out, view, time.Since(start))

			if csvPath == "" && pdfPath == "" {
				return nil
			}
			if rank < 1 || rank > len(view.Schedules) {
				return fmt.Errorf("rank %d out of range, %d schedule(s) found", rank, len(view.Schedules))
			}
			chosen := view.Schedules[rank-1]
			if csvPath != "" {
				if err := writeExport(out, service.ExportFormatCSV, chosen, csvPath); err != nil {
					return err
				}
			}
			if pdfPath != "" {
				if err := writeExport(out, service.ExportFormatPDF, chosen, pdfPath); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&topK, "top-k", 0, "Number of schedules to keep (config default when 0)")
	cmd.Flags().IntVar(&seeds, "seeds", 0, "Run this many annealing seeds in parallel")
	cmd.Flags().DurationVar(&timeLimit, "time-limit", 0, "Search deadline, e.g. 1500ms")
	cmd.Flags().BoolVar(&noAnneal, "no-anneal", false, "Only run the exhaustive search")
	cmd.Flags().IntVar(&rank, "rank", 1, "Schedule to export")
	cmd.Flags().StringVar(&csvPath, "csv", "", "Write the chosen schedule as CSV")
	cmd.Flags().StringVar(&pdfPath, "pdf", "", "Write the chosen schedule as a PDF timetable")

	return cmd
}

func run(ctx context.Context, cfg config.PlannerConfig, in scheduler.Input) (*scheduler.Result, error) {
	seeds := service.PlanSeedList(cfg, nil)
	if len(seeds) > 1 {
		return scheduler.PlanSeeds(ctx, in, seeds, cfg.Workers)
	}
	return scheduler.Plan(ctx, in)
}

func inspectCmd(files *inputFiles) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "List course groups and the section pairs that overlap",
		RunE: func(cmd *cobra.Command, args []string) error {
			bundle, cfg, err := files.load()
			if err != nil {
				return err
			}
			in, err := service.EngineInput(cfg.Planner, bundle.Request())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			w := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
			fmt.Fprintln(w, "COURSE\tSEL\tSECTION\tKIND\tECTS\tSLOTS")
			var sections []scheduler.Section
			for _, group := range in.Catalog.Groups() {
				sel := string(in.Selection[group.Code])
				for _, sec := range group.Sections {
					sections = append(sections, sec)
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%g\t%s\n",
						group.Code, selectionTag(sel), sec.ID(), sec.Kind, sec.ECTS, slotList(sec.Slots))
				}
			}
			if err := w.Flush(); err != nil {
				return err
			}

			var cross []scheduler.Conflict
			for _, c := range scheduler.Conflicts(sections, in.Policy) {
				if c.A.Code != c.B.Code {
					cross = append(cross, c)
				}
			}
			fmt.Fprintln(out)
			if len(cross) == 0 {
				fmt.Fprintln(out, green("no overlapping sections across courses"))
				return nil
			}
			fmt.Fprintf(out, "%s %d\n", boldYellow("overlapping pairs:"), len(cross))
			for _, c := range cross {
				marker := yellow("~")
				if c.Severity > in.Policy.MaxPairOverlap {
					marker = red("!")
				}
				fmt.Fprintf(out, "  %s %s\n", marker, c)
			}
			return nil
		},
	}
}

func printPlan(out io.Writer, view dto.PlanResponse, took time.Duration) {
	fmt.Fprintf(out, "%s %d schedule(s) in %s  %s\n",
		boldCyan("planner:"), len(view.Schedules), took.Round(time.Millisecond),
		dim(fmt.Sprintf("[%s, %d nodes]", strings.Join(view.Stats.Strategies, "+"), view.Stats.Nodes)))
	if view.Truncated {
		fmt.Fprintln(out, yellow("search budget exhausted, ranking may be incomplete"))
	}
	if view.Cancelled {
		fmt.Fprintln(out, yellow("interrupted, showing schedules found so far"))
	}

	for _, schedule := range view.Schedules {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "%s  ECTS %s  cost %.2f  overlap %d  %s\n",
			bold(fmt.Sprintf("#%d", schedule.Rank)), cyan(fmt.Sprintf("%g", schedule.ECTS)),
			schedule.Cost.Total, schedule.Severity, feasibility(schedule.Feasible))
		for _, section := range schedule.Sections {
			slots := make([]scheduler.TimeSlot, 0, len(section.Slots))
			for _, s := range section.Slots {
				slots = append(slots, scheduler.TimeSlot{Day: s.Day, Period: s.Period})
			}
			fmt.Fprintf(out, "  %s %-12s %-16s %s\n", selectionTag(section.Selection), section.ID, section.Kind, dim(slotList(slots)))
		}
		for _, c := range schedule.Conflicts {
			fmt.Fprintf(out, "  %s %s / %s share %d period(s)\n", red("x"), c.A, c.B, c.Severity)
		}
	}

	if len(view.Schedules) > 0 {
		fmt.Fprintln(out)
		printGrid(out, service.TimetableGrid(view.Schedules[0]))
	}
}

func printGrid(out io.Writer, grid export.Grid) {
	w := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "\t"+strings.Join(grid.Columns, "\t"))
	for i, row := range grid.Cells {
		fmt.Fprintf(w, "%s\t%s\n", grid.Rows[i], strings.Join(row, "\t"))
	}
	_ = w.Flush()
}

func slotList(slots []scheduler.TimeSlot) string {
	parts := make([]string, 0, len(slots))
	for _, s := range slots {
		parts = append(parts, s.String())
	}
	return strings.Join(parts, " ")
}

func writeExport(out io.Writer, format string, schedule dto.ScheduleView, path string) error {
	payload, err := service.RenderSchedule(format, schedule)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(out, "%s %s\n", green("wrote"), path)
	return nil
}
