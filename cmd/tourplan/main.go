package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/eugenenazirov/tour-planner/internal/catalog"
	"github.com/eugenenazirov/tour-planner/internal/catalog/source"
	"github.com/eugenenazirov/tour-planner/internal/logging"
	"github.com/eugenenazirov/tour-planner/internal/optimizer"
)

const (
	formatText = "text"
	formatJSON = "json"

	defaultDSN = "data/catalog.yaml"
)

type optimizeOptions struct {
	source    string
	dsn       string
	region    string
	maxDays   string
	maxBudget string
	maxTours  int
	format    string
	timeout   time.Duration
}

type importOptions struct {
	fromSource string
	fromDSN    string
	toSource   string
	toDSN      string
}

func main() {
	app := kingpin.New("tourplan", "Tour Planner command line tools")
	logLevel := app.Flag("log-level", "Log level (debug, info, warn, error)").Default("warn").String()

	optimizeCmd := app.Command("optimize", "Find the most valuable tour package for a region")
	var opt optimizeOptions
	optimizeCmd.Flag("source", "Catalog source kind").Default(source.KindYAML).EnumVar(&opt.source, source.Kinds()...)
	optimizeCmd.Flag("dsn", "Catalog location: file path or connection string").Default(defaultDSN).StringVar(&opt.dsn)
	optimizeCmd.Flag("region", "Region ID").Required().StringVar(&opt.region)
	optimizeCmd.Flag("max-days", "Maximum total duration in days (empty for no limit)").StringVar(&opt.maxDays)
	optimizeCmd.Flag("max-budget", "Maximum total cost (empty for no limit)").StringVar(&opt.maxBudget)
	optimizeCmd.Flag("max-tours", "Reject regions with more tours than this (0 disables)").Default("0").IntVar(&opt.maxTours)
	optimizeCmd.Flag("format", "Output format").Default(formatText).EnumVar(&opt.format, formatText, formatJSON)
	optimizeCmd.Flag("timeout", "Search timeout (0 for none)").Default("0s").DurationVar(&opt.timeout)

	importCmd := app.Command("import", "Copy a catalog from one source into another")
	var imp importOptions
	importCmd.Flag("from-source", "Source kind to read").Default(source.KindYAML).EnumVar(&imp.fromSource, source.Kinds()...)
	importCmd.Flag("from-dsn", "Source location").Default(defaultDSN).StringVar(&imp.fromDSN)
	importCmd.Flag("to-source", "Target kind to write").Required().EnumVar(&imp.toSource, source.Kinds()...)
	importCmd.Flag("to-dsn", "Target location").Required().StringVar(&imp.toDSN)

	migrateCmd := app.Command("migrate", "Apply pending schema migrations to a database source")
	var migrateSource, migrateDSN string
	migrateCmd.Flag("source", "Database kind").Required().EnumVar(&migrateSource, source.KindSQLite, source.KindPostgres)
	migrateCmd.Flag("dsn", "Database location").Required().StringVar(&migrateDSN)

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	logger, err := logging.New(*logLevel)
	if err != nil {
		app.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch command {
	case optimizeCmd.FullCommand():
		err = runOptimize(ctx, os.Stdout, logger, opt)
	case importCmd.FullCommand():
		err = runImport(ctx, logger, imp)
	case migrateCmd.FullCommand():
		err = runMigrate(ctx, logger, migrateSource, migrateDSN)
	}
	if err != nil {
		logger.Error("command failed", zap.String("command", command), zap.Error(err))
		app.Fatalf("%v", err)
	}
}

func runOptimize(ctx context.Context, w io.Writer, logger *zap.Logger, opts optimizeOptions) error {
	limits, err := parseLimits(opts.maxDays, opts.maxBudget)
	if err != nil {
		return err
	}

	handle, err := source.Open(ctx, opts.source, opts.dsn)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer handle.Close()

	c, err := catalog.Load(ctx, handle)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	if _, ok := c.Region(opts.region); !ok {
		logger.Warn("region not in catalog", zap.String("region_id", opts.region))
	}

	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	res, err := optimizer.New(c,
		optimizer.WithMaxTours(opts.maxTours),
		optimizer.WithLogger(logger),
	).Optimize(ctx, opts.region, limits)
	if err != nil {
		return err
	}

	if opts.format == formatJSON {
		return renderJSON(w, res)
	}
	return renderText(w, res)
}

func runImport(ctx context.Context, logger *zap.Logger, opts importOptions) error {
	from, err := source.Open(ctx, opts.fromSource, opts.fromDSN)
	if err != nil {
		return fmt.Errorf("open %s source: %w", opts.fromSource, err)
	}
	defer from.Close()

	// load first so an unreadable source fails before the target is touched
	c, err := catalog.Load(ctx, from)
	if err != nil {
		return fmt.Errorf("read %s source: %w", opts.fromSource, err)
	}
	if skipped := c.Stats().SkippedLinks; skipped > 0 {
		logger.Warn("source links tours to unknown or repeated attractions",
			zap.String("from", opts.fromSource),
			zap.Int("skipped_links", skipped),
		)
	}

	to, err := source.Open(ctx, opts.toSource, opts.toDSN)
	if err != nil {
		return fmt.Errorf("open %s target: %w", opts.toSource, err)
	}
	defer to.Close()

	saver, err := to.Saver()
	if err != nil {
		return fmt.Errorf("%s target: %w", opts.toSource, err)
	}
	if err := saver.Save(ctx, from); err != nil {
		return fmt.Errorf("write %s target: %w", opts.toSource, err)
	}

	stats := c.Stats()
	logger.Info("catalog imported",
		zap.String("from", opts.fromSource),
		zap.String("to", opts.toSource),
		zap.Int("regions", stats.Regions),
		zap.Int("tours", stats.Tours),
		zap.Int("attractions", stats.Attractions),
		zap.Int("links", stats.Links),
		zap.Int("skipped_links", stats.SkippedLinks),
	)
	return nil
}

// runMigrate opens the database source, which applies pending migrations.
func runMigrate(ctx context.Context, logger *zap.Logger, kind, dsn string) error {
	if kind != source.KindSQLite && kind != source.KindPostgres {
		return fmt.Errorf("%w: %s sources have no schema", source.ErrReadOnly, kind)
	}
	handle, err := source.Open(ctx, kind, dsn)
	if err != nil {
		return fmt.Errorf("migrate %s: %w", kind, err)
	}
	logger.Info("schema up to date", zap.String("source", kind))
	return handle.Close()
}

// parseLimits turns optional flag values into limits. An empty value leaves
// the bound open.
func parseLimits(days, budget string) (optimizer.Limits, error) {
	var limits optimizer.Limits

	if days = strings.TrimSpace(days); days != "" {
		v, err := strconv.Atoi(days)
		if err != nil {
			return optimizer.Limits{}, fmt.Errorf("invalid --max-days %q: %w", days, err)
		}
		if v < 0 {
			return optimizer.Limits{}, errors.New("--max-days must be >= 0")
		}
		limits.Days = optimizer.AtMost(v)
	}

	if budget = strings.TrimSpace(budget); budget != "" {
		v, err := strconv.ParseFloat(budget, 64)
		if err != nil {
			return optimizer.Limits{}, fmt.Errorf("invalid --max-budget %q: %w", budget, err)
		}
		if v < 0 {
			return optimizer.Limits{}, errors.New("--max-budget must be >= 0")
		}
		limits.Budget = optimizer.AtMost(v)
	}

	return limits, nil
}

type jsonTour struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	DurationDays  int      `json:"durationDays"`
	Cost          float64  `json:"cost"`
	CulturalValue int      `json:"culturalValue"`
	Attractions   []string `json:"attractions"`
}

type jsonResult struct {
	RegionID   string           `json:"regionId"`
	Tours      []jsonTour       `json:"tours"`
	TotalDays  int              `json:"totalDays"`
	TotalCost  float64          `json:"totalCost"`
	TotalValue int              `json:"totalValue"`
	Limits     optimizer.Limits `json:"limits"`
	Explored   int              `json:"explored"`
}

func renderJSON(w io.Writer, res optimizer.Result) error {
	out := jsonResult{
		RegionID:   res.RegionID,
		Tours:      make([]jsonTour, 0, len(res.Tours)),
		TotalDays:  res.TotalDays,
		TotalCost:  res.TotalCost,
		TotalValue: res.TotalValue,
		Limits:     res.Limits,
		Explored:   res.Explored,
	}
	for _, t := range res.Tours {
		ids := make([]string, 0, len(t.Attractions()))
		for _, a := range t.Attractions() {
			ids = append(ids, a.ID)
		}
		out.Tours = append(out.Tours, jsonTour{
			ID:            t.ID,
			Name:          t.Name,
			DurationDays:  t.DurationDays,
			Cost:          t.Cost,
			CulturalValue: t.CulturalValue(),
			Attractions:   ids,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func renderText(w io.Writer, res optimizer.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Region\t%s\n", res.RegionID)
	fmt.Fprintf(tw, "Limits\t%s days, budget %s\n", formatLimit(res.Limits.Days), formatLimit(res.Limits.Budget))
	fmt.Fprintln(tw)

	if len(res.Tours) == 0 {
		fmt.Fprintln(tw, "No tour fits the limits.")
	} else {
		fmt.Fprintln(tw, "TOUR\tNAME\tDAYS\tCOST\tVALUE")
		for _, t := range res.Tours {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f\t%d\n", t.ID, t.Name, t.DurationDays, t.Cost, t.CulturalValue())
		}
	}
	fmt.Fprintln(tw)
	fmt.Fprintf(tw, "Total\t%d days\t%.2f\tvalue %d\n", res.TotalDays, res.TotalCost, res.TotalValue)
	fmt.Fprintf(tw, "Explored\t%d nodes\n", res.Explored)
	return tw.Flush()
}

func formatLimit[T ~int | ~float64](l optimizer.Limit[T]) string {
	v, ok := l.Value()
	if !ok {
		return "unbounded"
	}
	return strconv.FormatFloat(float64(v), 'f', -1, 64)
}
