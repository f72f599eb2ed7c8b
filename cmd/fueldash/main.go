// Package main provides the CLI entrypoint for fueldash.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/fueldash/internal/chart"
	"github.com/verte-zerg/fueldash/internal/config"
	"github.com/verte-zerg/fueldash/internal/dashboard"
	"github.com/verte-zerg/fueldash/internal/loader"
	"github.com/verte-zerg/fueldash/internal/log"
	"github.com/verte-zerg/fueldash/internal/model"
	"github.com/verte-zerg/fueldash/internal/stats"
	"github.com/verte-zerg/fueldash/internal/store"
)

const (
	defaultSource       = "petrol-diesel-prices.csv"
	defaultFuel         = "Petrol"
	defaultTrendWindow  = 7
	defaultHistoryLimit = 20
	defaultReportTop    = 0
	chartHeight         = 12
)

var (
	sourcePath  string
	dbPath      string
	configPath  string
	offline     bool
	noHistory   bool
	selCity     string
	selFuel     string
	selYear     string
	trendWindow int

	historyLimit int
	reportTop    int
)

// settings is the resolved configuration shared by every command.
type settings struct {
	Source      string
	DBPath      string
	Offline     bool
	History     bool
	Preferred   model.Selection
	TrendWindow int
	Options     loader.Options
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "fueldash",
		Short:         "Terminal dashboard for petrol and diesel retail prices",
		SilenceUsage:  true,
		SilenceErrors: false,
		Args:          cobra.NoArgs,
		RunE:          runDashboardCmd,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&sourcePath, "source", defaultSource, "CSV file path or http(s) URL")
	pf.StringVar(&dbPath, "db", "", "history database path (default: XDG data dir)")
	pf.StringVar(&configPath, "config", "", "config file path (default: XDG config dir)")
	pf.BoolVar(&offline, "offline", false, "use the latest recorded snapshot instead of the source")
	pf.BoolVar(&noHistory, "no-history", false, "do not record loads in the history database")

	addSelectionFlags(rootCmd, true)
	rootCmd.Flags().IntVar(&trendWindow, "trend-window", defaultTrendWindow, "moving average window in days for the trend tab")

	rootCmd.AddCommand(newSeriesCmd())
	rootCmd.AddCommand(newDomainCmd())
	rootCmd.AddCommand(newReportCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

func addSelectionFlags(cmd *cobra.Command, withCity bool) {
	if withCity {
		cmd.Flags().StringVar(&selCity, "city", "", "city to select (default: first city)")
	}
	cmd.Flags().StringVar(&selFuel, "fuel", defaultFuel, "fuel to select (Petrol or Diesel)")
	cmd.Flags().StringVar(&selYear, "year", "", "year to select (default: most recent)")
}

// resolveSettings merges flags, environment, the config file and defaults, in
// that order of precedence.
func resolveSettings(cmd *cobra.Command) (settings, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return settings{}, err
	}
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	fileCfg, err := config.LoadConfig(path)
	if err != nil {
		return settings{}, fmt.Errorf("failed to load config: %w", err)
	}

	applyStringConfig(cmd, "source", &sourcePath, fileCfg.Source.Path)
	applyStringConfig(cmd, "source", &sourcePath, config.EnvString(config.EnvSource))
	applyStringConfig(cmd, "db", &dbPath, fileCfg.Store.Path)
	applyStringConfig(cmd, "db", &dbPath, config.EnvString(config.EnvDB))
	applyStringConfig(cmd, "city", &selCity, fileCfg.Dashboard.City)
	applyStringConfig(cmd, "fuel", &selFuel, fileCfg.Dashboard.Fuel)
	applyStringConfig(cmd, "year", &selYear, fileCfg.Dashboard.Year)
	applyIntConfig(cmd, "trend-window", &trendWindow, fileCfg.Dashboard.TrendWindow)

	history := true
	if fileCfg.Store.History != nil {
		history = *fileCfg.Store.History
	}
	if cmd.Flags().Changed("no-history") {
		history = !noHistory
	}

	s := settings{
		Source:      strings.TrimSpace(sourcePath),
		DBPath:      dbPath,
		Offline:     offline,
		History:     history,
		TrendWindow: trendWindow,
		Options:     sourceOptions(fileCfg.Source),
	}
	if s.DBPath == "" {
		s.DBPath = config.DefaultDBPath()
	}
	if err := validateSettings(s); err != nil {
		return settings{}, err
	}

	fuel, err := model.ParseFuel(selFuel)
	if err != nil {
		return settings{}, fmt.Errorf("invalid --fuel value: %w", err)
	}
	s.Preferred = model.Selection{
		City: strings.TrimSpace(selCity),
		Fuel: fuel,
		Year: strings.TrimSpace(selYear),
	}
	return s, nil
}

func sourceOptions(cfg config.SourceConfig) loader.Options {
	opts := loader.DefaultOptions()
	applyString(&opts.Columns.Date, cfg.DateColumn)
	applyString(&opts.Columns.Product, cfg.ProductColumn)
	applyString(&opts.Columns.City, cfg.CityColumn)
	applyString(&opts.Columns.Price, cfg.PriceColumn)
	if len(cfg.DateLayouts) > 0 {
		opts.DateLayouts = append([]string(nil), cfg.DateLayouts...)
	}
	return opts
}

func validateSettings(s settings) error {
	if s.Source == "" && !s.Offline {
		return fmt.Errorf("--source must not be empty")
	}
	if s.TrendWindow <= 0 {
		return fmt.Errorf("--trend-window must be > 0")
	}
	cols := s.Options.Columns
	for name, v := range map[string]string{
		"date-column":    cols.Date,
		"product-column": cols.Product,
		"city-column":    cols.City,
		"price-column":   cols.Price,
	} {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("config %s must not be empty", name)
		}
	}
	return nil
}

func newLogger(out io.Writer) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Output = out
	if level := config.EnvString(config.EnvLogLevel); level != nil {
		parsed, err := log.ParseLevel(*level)
		if err != nil {
			logErrf("%v, using info\n", err)
		} else {
			cfg.Level = parsed
		}
	}
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// openStore opens the history database. It returns nil when history is
// disabled and the command does not need stored snapshots.
func openStore(s settings) (*store.Store, error) {
	if !s.History && !s.Offline {
		return nil, nil
	}
	st, err := store.Open(s.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	return st, nil
}

func closeStore(st *store.Store) {
	if st == nil {
		return
	}
	if cerr := st.Close(); cerr != nil {
		logErrf("failed to close db: %v\n", cerr)
	}
}

// newLoadFunc loads from the source, or from the newest snapshot when offline,
// and records the outcome in the history store when one is given.
func newLoadFunc(s settings, st *store.Store, logger *log.Logger) dashboard.LoadFunc {
	logger = logger.WithComponent(log.ComponentLoader)
	return func(ctx context.Context) (model.Dataset, error) {
		if s.Offline {
			return loadSnapshot(ctx, st, s.Options.DateLayouts)
		}
		ds, err := loader.Load(ctx, s.Source, s.Options)
		if st == nil || !s.History {
			return ds, err
		}
		now := time.Now()
		if err != nil {
			if ctx.Err() == nil {
				if _, rerr := st.RecordFailure(ctx, s.Source, err, now); rerr != nil {
					logger.Warn("failed to record load failure", log.FieldError, rerr)
				}
			}
			return ds, err
		}
		id, rerr := st.RecordLoad(ctx, ds, now)
		if rerr != nil {
			logger.Warn("failed to record load", log.FieldSource, s.Source, log.FieldError, rerr)
		} else {
			logger.Debug("load recorded", log.FieldLoadID, id, log.FieldRecords, len(ds.Records))
		}
		return ds, nil
	}
}

func loadSnapshot(ctx context.Context, st *store.Store, layouts []string) (model.Dataset, error) {
	if st == nil {
		return model.Dataset{}, fmt.Errorf("offline mode needs the history database")
	}
	ds, err := st.LatestSnapshot(ctx)
	if errors.Is(err, store.ErrNoSnapshot) {
		return model.Dataset{}, fmt.Errorf("no recorded snapshot (run once without --offline)")
	}
	if err != nil {
		return model.Dataset{}, fmt.Errorf("failed to read snapshot: %w", err)
	}
	ds.Domain = loader.BuildDomain(ds.Records, layouts)
	return ds, nil
}

func runDashboardCmd(cmd *cobra.Command, _ []string) error {
	s, err := resolveSettings(cmd)
	if err != nil {
		return err
	}

	logFile, err := log.OpenFile(config.DefaultLogPath())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := logFile.Close(); cerr != nil {
			logErrf("failed to close log file: %v\n", cerr)
		}
	}()
	logger := newLogger(logFile)

	st, err := openStore(s)
	if err != nil {
		return err
	}
	defer closeStore(st)

	m := dashboard.NewModel(dashboard.Options{
		Source:      displaySource(s),
		Load:        newLoadFunc(s, st, logger),
		Preferred:   s.Preferred,
		TrendWindow: s.TrendWindow,
		DateLayouts: s.Options.DateLayouts,
		Logger:      logger,
	})
	defer m.Close()
	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func displaySource(s settings) string {
	if s.Offline {
		return "latest snapshot"
	}
	return s.Source
}

// loadOnce runs a single load for the non-interactive commands.
func loadOnce(cmd *cobra.Command) (settings, model.Dataset, error) {
	s, err := resolveSettings(cmd)
	if err != nil {
		return settings{}, model.Dataset{}, err
	}
	logger := newLogger(cmd.ErrOrStderr())
	st, err := openStore(s)
	if err != nil {
		return settings{}, model.Dataset{}, err
	}
	defer closeStore(st)

	started := time.Now()
	ds, err := newLoadFunc(s, st, logger)(cmd.Context())
	if err != nil {
		return settings{}, model.Dataset{}, err
	}
	logger.WithComponent(log.ComponentLoader).Debug("dataset loaded",
		log.FieldSource, ds.Source,
		log.FieldRows, ds.Stats.Rows,
		log.FieldDropped, ds.Stats.Dropped,
		log.FieldRecords, len(ds.Records),
		log.FieldDuration, time.Since(started).Milliseconds())
	if ds.Stats.Dropped > 0 {
		logger.Warn("dropped malformed rows", log.FieldSource, ds.Source, log.FieldDropped, ds.Stats.Dropped)
	}
	return s, ds, nil
}

// resolveSelection starts from the domain defaults and applies the preferred
// values, rejecting any that the dataset does not contain.
func resolveSelection(domain model.FilterDomain, preferred model.Selection) (model.Selection, error) {
	sel := loader.DefaultSelection(domain)
	sel.Fuel = preferred.Fuel
	if preferred.City != "" {
		city, ok := matchDomain(domain.Cities, preferred.City)
		if !ok {
			return model.Selection{}, fmt.Errorf("unknown city %q (available: %s)", preferred.City, strings.Join(domain.Cities, ", "))
		}
		sel.City = city
	}
	if preferred.Year != "" {
		if !domain.HasYear(preferred.Year) {
			return model.Selection{}, fmt.Errorf("unknown year %q (available: %s)", preferred.Year, strings.Join(domain.Years, ", "))
		}
		sel.Year = preferred.Year
	}
	if !sel.Complete() {
		return model.Selection{}, fmt.Errorf("dataset has no dated records")
	}
	return sel, nil
}

func matchDomain(values []string, input string) (string, bool) {
	for _, v := range values {
		if strings.EqualFold(v, input) {
			return v, true
		}
	}
	return "", false
}

func newSeriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "series",
		Short: "Print the monthly average series for a selection",
		Args:  cobra.NoArgs,
		RunE:  runSeriesCmd,
	}
	addSelectionFlags(cmd, true)
	return cmd
}

func runSeriesCmd(cmd *cobra.Command, _ []string) error {
	s, ds, err := loadOnce(cmd)
	if err != nil {
		return err
	}
	sel, err := resolveSelection(ds.Domain, s.Preferred)
	if err != nil {
		return err
	}
	series := stats.MonthlyAverages(ds.Records, sel, s.Options.DateLayouts)
	return writeSeries(cmd.OutOrStdout(), sel, series, chart.TerminalWidth())
}

func writeSeries(w io.Writer, sel model.Selection, series model.MonthlySeries, width int) error {
	if _, err := fmt.Fprintln(w, dashboard.ChartTitle(sel)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := chart.RenderSeriesTable(w, "Average", model.MonthLabels[:], series[:]); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	summary := stats.Summarize(series)
	if summary.Months > 0 {
		_, err := fmt.Fprintf(w, "Average %s  Lowest %s  Highest %s  Change %+.2f%%\n\n",
			chart.FormatRupees(summary.Mean), chart.FormatRupees(summary.Min),
			chart.FormatRupees(summary.Max), stats.Change(series))
		if err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return chart.RenderBars(w, chart.BarChart{
		Labels: model.MonthLabels[:],
		Values: series[:],
		Width:  width,
		Height: chartHeight,
	})
}

func newDomainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "domain",
		Short: "List the cities and years found in the source",
		Args:  cobra.NoArgs,
		RunE:  runDomainCmd,
	}
}

func runDomainCmd(cmd *cobra.Command, _ []string) error {
	_, ds, err := loadOnce(cmd)
	if err != nil {
		return err
	}
	return writeDomain(cmd.OutOrStdout(), ds)
}

func writeDomain(w io.Writer, ds model.Dataset) error {
	lines := []string{
		fmt.Sprintf("Source:  %s", ds.Source),
		fmt.Sprintf("Records: %d (rows %d, dropped %d)", len(ds.Records), ds.Stats.Rows, ds.Stats.Dropped),
		fmt.Sprintf("Cities:  %s", joinOrDash(ds.Domain.Cities)),
		fmt.Sprintf("Years:   %s", joinOrDash(ds.Domain.Years)),
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print monthly averages for every city of a year",
		Args:  cobra.NoArgs,
		RunE:  runReportCmd,
	}
	addSelectionFlags(cmd, false)
	cmd.Flags().IntVar(&reportTop, "top", defaultReportTop, "only show the N most expensive cities (0 for all)")
	return cmd
}

func runReportCmd(cmd *cobra.Command, _ []string) error {
	if reportTop < 0 {
		return fmt.Errorf("--top must be >= 0")
	}
	s, ds, err := loadOnce(cmd)
	if err != nil {
		return err
	}
	sel, err := resolveSelection(ds.Domain, model.Selection{Fuel: s.Preferred.Fuel, Year: s.Preferred.Year})
	if err != nil {
		return err
	}
	report, err := stats.BuildReport(cmd.Context(), ds, sel.Fuel, sel.Year, s.Options.DateLayouts)
	if err != nil {
		return fmt.Errorf("failed to build report: %w", err)
	}
	if reportTop > 0 {
		report = filterReport(report, stats.TopCitiesByMean(report, reportTop))
	}
	return writeReport(cmd.OutOrStdout(), report)
}

func filterReport(report stats.Report, cities []string) stats.Report {
	byCity := make(map[string]stats.CityRow, len(report.Rows))
	for _, row := range report.Rows {
		byCity[row.City] = row
	}
	rows := make([]stats.CityRow, 0, len(cities))
	for _, city := range cities {
		rows = append(rows, byCity[city])
	}
	report.Rows = rows
	return report
}

func writeReport(w io.Writer, report stats.Report) error {
	headers := append([]string{"City"}, model.MonthLabels[:]...)
	headers = append(headers, "Mean")
	right := map[int]bool{}
	for i := 1; i < len(headers); i++ {
		right[i] = true
	}
	rows := make([][]string, 0, len(report.Rows))
	for _, r := range report.Rows {
		row := []string{r.City}
		for _, v := range r.Series {
			row = append(row, priceCell(v))
		}
		row = append(row, priceCell(r.Summary.Mean))
		rows = append(rows, row)
	}
	title := fmt.Sprintf("Monthly Average RSP for %s (%s)", report.Fuel, report.Year)
	lines := append([]string{title}, chart.FormatTable(headers, rows, right)...)
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, strings.TrimRight(line, " ")); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func priceCell(v float64) string {
	if v <= 0 {
		return "-"
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded loads",
		Args:  cobra.NoArgs,
		RunE:  runHistoryCmd,
	}
	cmd.Flags().IntVar(&historyLimit, "last", defaultHistoryLimit, "number of loads to show (0 for all)")
	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	s, err := resolveSettings(cmd)
	if err != nil {
		return err
	}
	st, err := store.Open(s.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer closeStore(st)

	entries, err := st.ListLoads(cmd.Context(), historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list loads: %w", err)
	}
	return writeHistory(cmd.OutOrStdout(), entries)
}

func writeHistory(w io.Writer, entries []model.LoadEntry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No loads recorded yet.")
		return err
	}
	headers := []string{"ID", "Loaded", "Rows", "Dropped", "Records", "Status", "Source"}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		status := "ok"
		if e.Error != "" {
			status = "failed: " + e.Error
		}
		rows = append(rows, []string{
			strconv.FormatInt(e.ID, 10),
			e.LoadedAt.Local().Format("2006-01-02 15:04"),
			strconv.Itoa(e.Rows),
			strconv.Itoa(e.Dropped),
			strconv.Itoa(e.Records),
			status,
			e.Source,
		})
	}
	for _, line := range chart.FormatTable(headers, rows, map[int]bool{0: true, 2: true, 3: true, 4: true}) {
		if _, err := fmt.Fprintln(w, strings.TrimRight(line, " ")); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	if err := ensureConfigFile(path); err != nil {
		return err
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func ensureConfigFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyString(target, value *string) {
	if value == nil {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# fueldash configuration
# Uncomment a value to enable it. CLI flags and %s/%s override config values.

[source]
# path = %q
# date-column = %q
# product-column = %q
# city-column = %q
# price-column = %q
# date-layouts = ["2006-01-02", "02/01/2006"]   # Go reference layouts, tried in order

[dashboard]
# city = "Delhi"          # Initial city (default: first city in the source)
# fuel = %q           # Petrol or Diesel
# year = "2023"           # Initial year (default: most recent)
# trend-window = %d        # Moving average window in days

[store]
# path = %q
# history = true          # Record every load and keep a snapshot for --offline
`,
		config.EnvSource,
		config.EnvDB,
		defaultSource,
		loader.DefaultDateColumn,
		loader.DefaultProductColumn,
		loader.DefaultCityColumn,
		loader.DefaultPriceColumn,
		defaultFuel,
		defaultTrendWindow,
		config.DefaultDBPath(),
	)
}

func joinOrDash(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	return strings.Join(values, ", ")
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
