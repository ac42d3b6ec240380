// Package main provides the CLI entrypoint for gapdash.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/kballard/go-shellquote"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/verte-zerg/gapdash/internal/binding"
	"github.com/verte-zerg/gapdash/internal/config"
	"github.com/verte-zerg/gapdash/internal/dashboard"
	"github.com/verte-zerg/gapdash/internal/dataset"
	"github.com/verte-zerg/gapdash/internal/fetch"
	"github.com/verte-zerg/gapdash/internal/figure"
	"github.com/verte-zerg/gapdash/internal/httpserver"
	"github.com/verte-zerg/gapdash/internal/logger"
	"github.com/verte-zerg/gapdash/internal/metrics"
	"github.com/verte-zerg/gapdash/internal/model"
	"github.com/verte-zerg/gapdash/internal/server"
	"github.com/verte-zerg/gapdash/internal/stats"
	"github.com/verte-zerg/gapdash/internal/store"
	"github.com/verte-zerg/gapdash/internal/tui"
)

const (
	defaultAddr     = ":8050"
	shutdownTimeout = 10 * time.Second
	// sourceTemplates is where --debug looks for page templates when run
	// from a checkout.
	sourceTemplates = "internal/server/templates"
)

// showTargets maps `show` arguments onto figure slots.
var showTargets = map[string]binding.OutputID{
	"population": dashboard.OutputPopulation,
	"gdp":        dashboard.OutputGDP,
	"life_exp":   dashboard.OutputLifeExp,
	"map":        dashboard.OutputMap,
	"table":      dashboard.OutputDataset,
}

// stderr receives user-facing notices.
var stderr io.Writer = os.Stderr

var (
	globalConfig string
	globalDebug  bool
	globalData   string
	globalDB     string

	serveAddr      string
	serveTemplates string

	showContinent string
	showYear      int
	showVar       string
	showMapYear   int
	showJSON      bool
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "gapdash",
		Short:         "Gapminder dashboard server and terminal viewer",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runServeCmd,
	}

	rootCmd.PersistentFlags().StringVar(&globalConfig, "config", "", "config file (default: $XDG_CONFIG_HOME/gapdash/config.toml)")
	rootCmd.PersistentFlags().BoolVar(&globalDebug, "debug", false, "debug logging, pretty JSON, and template reload with --templates")
	rootCmd.PersistentFlags().StringVar(&globalData, "data", "", "CSV dataset to load instead of the bundled sample")
	rootCmd.PersistentFlags().StringVar(&globalDB, "db", "", "SQLite dataset written by 'gapdash import' (default: $XDG_DATA_HOME/gapdash/gapminder.db)")
	rootCmd.Flags().StringVar(&serveAddr, "addr", defaultAddr, "listen address")
	rootCmd.Flags().StringVar(&serveTemplates, "templates", "", "page template directory, re-read per request with --debug")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newTUICmd())
	rootCmd.AddCommand(newShowCmd())
	rootCmd.AddCommand(newImportCmd())
	rootCmd.AddCommand(newFetchCmd())
	rootCmd.AddCommand(newContinentsCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard over HTTP",
		Args:  cobra.NoArgs,
		RunE:  runServeCmd,
	}
	cmd.Flags().StringVar(&serveAddr, "addr", defaultAddr, "listen address")
	cmd.Flags().StringVar(&serveTemplates, "templates", "", "page template directory, re-read per request with --debug")
	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := loadFileConfig(cmd)
	if err != nil {
		return err
	}
	applyStringConfig(cmd, "addr", &serveAddr, fileCfg.Server.Addr)
	applyStringConfig(cmd, "templates", &serveTemplates, fileCfg.Server.Templates)

	log := logger.New(os.Stderr, globalDebug)
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ds, source, err := loadDataset(ctx)
	if err != nil {
		return err
	}
	m := metrics.New(nil)
	dash, err := dashboard.New(ds, fileCfg.Dashboard.Defaults(model.Defaults{}), binding.WithObserver(m))
	if err != nil {
		return err
	}
	templates := templateDir(globalDebug, serveTemplates)
	h, err := server.New(dash, log, m, server.WithDebug(globalDebug), server.WithTemplateDir(templates))
	if err != nil {
		return err
	}
	srv := httpserver.New(serveAddr, server.NewRouter(h))

	log.Info("starting gapdash",
		"addr", serveAddr,
		"records", ds.Len(),
		"source", source,
		"debug", globalDebug,
		"templates", templates,
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		<-egCtx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	return eg.Wait()
}

// templateDir picks the template directory for the server. In debug mode a
// checkout's template directory is used when no directory was given.
func templateDir(debug bool, dir string) string {
	if dir != "" || !debug {
		return dir
	}
	if info, err := os.Stat(sourceTemplates); err == nil && info.IsDir() {
		return sourceTemplates
	}
	return ""
}

func newTUICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the terminal dashboard",
		Args:  cobra.NoArgs,
		RunE:  runTUICmd,
	}
}

func runTUICmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := loadFileConfig(cmd)
	if err != nil {
		return err
	}
	ds, _, err := loadDataset(cmd.Context())
	if err != nil {
		return err
	}
	dash, err := dashboard.New(ds, fileCfg.Dashboard.Defaults(model.Defaults{}))
	if err != nil {
		return err
	}
	program := tea.NewProgram(tui.NewModel(dash), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func newShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "show <population|gdp|life_exp|map|table>",
		Short:     "Print one figure",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"population", "gdp", "life_exp", "map", "table"},
		RunE:      runShowCmd,
	}
	cmd.Flags().StringVar(&showContinent, "continent", "", "continent for the bar charts")
	cmd.Flags().IntVar(&showYear, "year", 0, "year for the bar charts")
	cmd.Flags().StringVar(&showVar, "var", "", "map variable (Population, GDP per Capita, Life Expectancy)")
	cmd.Flags().IntVar(&showMapYear, "map-year", 0, "year for the world map")
	cmd.Flags().BoolVar(&showJSON, "json", false, "print the figure as JSON")
	return cmd
}

func runShowCmd(cmd *cobra.Command, args []string) error {
	target, ok := showTargets[strings.ToLower(args[0])]
	if !ok {
		return fmt.Errorf("unknown figure %q (use population, gdp, life_exp, map or table)", args[0])
	}
	fileCfg, err := loadFileConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	ds, _, err := loadDataset(ctx)
	if err != nil {
		return err
	}
	dash, err := dashboard.New(ds, fileCfg.Dashboard.Defaults(model.Defaults{}))
	if err != nil {
		return err
	}

	state, err := showState(cmd, dash.DefaultState())
	if err != nil {
		return err
	}
	fig, err := computeFigure(ctx, dash, target, state)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if showJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(fig); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}
	if err := figure.RenderText(out, fig); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// showState overlays changed `show` flags onto the page-load state.
func showState(cmd *cobra.Command, state binding.State) (binding.State, error) {
	if cmd.Flags().Changed("continent") {
		state[dashboard.InputContinent] = showContinent
	}
	if cmd.Flags().Changed("year") {
		state[dashboard.InputYear] = showYear
	}
	if cmd.Flags().Changed("var") {
		metric, ok := model.ParseMetric(showVar)
		if !ok {
			return nil, fmt.Errorf("--var must be one of: %s", metricNames())
		}
		state[dashboard.InputMapVar] = string(metric)
	}
	if cmd.Flags().Changed("map-year") {
		state[dashboard.InputMapYear] = showMapYear
	}
	return state, nil
}

func computeFigure(ctx context.Context, dash *dashboard.Dashboard, target binding.OutputID, state binding.State) (figure.Figure, error) {
	if target == dashboard.OutputDataset {
		return dash.Table(), nil
	}
	batches, err := dash.Initial(ctx, state)
	if err != nil {
		return figure.Figure{}, fmt.Errorf("failed to compute figures: %w", err)
	}
	for _, b := range batches {
		if fig, ok := b.Outputs[target]; ok {
			return fig, nil
		}
	}
	return figure.Figure{}, fmt.Errorf("no rule produces %s", target)
}

func metricNames() string {
	metrics := model.Metrics()
	names := make([]string, len(metrics))
	for i, m := range metrics {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <csv>",
		Short: "Import a CSV dataset into the SQLite database",
		Args:  cobra.ExactArgs(1),
		RunE:  runImportCmd,
	}
}

func runImportCmd(cmd *cobra.Command, args []string) error {
	if _, err := loadFileConfig(cmd); err != nil {
		return err
	}
	source := args[0]
	ds, err := dataset.LoadFile(source)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", source, err)
	}
	return importDataset(cmd.Context(), ds, source)
}

func newFetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Download the full Gapminder dataset from the plotly wheel and import it",
		Args:  cobra.NoArgs,
		RunE:  runFetchCmd,
	}
}

func runFetchCmd(cmd *cobra.Command, _ []string) error {
	if _, err := loadFileConfig(cmd); err != nil {
		return err
	}
	ctx := cmd.Context()
	logErrln("Fetching plotly release metadata...")
	wheel, err := fetch.NewClient().DownloadLatestWheel(ctx, config.DefaultCacheDir())
	if err != nil {
		return fmt.Errorf("failed to download plotly wheel: %w", err)
	}
	if wheel.Cached {
		logErrf("Using cached wheel %s\n", wheel.Filename)
	} else {
		logErrf("Downloaded wheel %s\n", wheel.Filename)
	}
	ds, err := fetch.ExtractDataset(wheel.Path)
	if err != nil {
		return err
	}
	return importDataset(ctx, ds, fetch.SourceName(wheel))
}

// importDataset replaces the records in the dataset database.
func importDataset(ctx context.Context, ds *dataset.Dataset, source string) error {
	dbPath := resolveDBPath()
	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	id, err := st.ReplaceRecords(ctx, source, ds.Records())
	if err != nil {
		return fmt.Errorf("failed to import records: %w", err)
	}
	logErrf("Imported %d records from %s into %s (import #%d)\n", ds.Len(), source, dbPath, id)
	return nil
}

func newContinentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "continents",
		Short: "List continents and years in the dataset",
		Args:  cobra.NoArgs,
		RunE:  runContinentsCmd,
	}
}

func runContinentsCmd(cmd *cobra.Command, _ []string) error {
	if _, err := loadFileConfig(cmd); err != nil {
		return err
	}
	ds, _, err := loadDataset(cmd.Context())
	if err != nil {
		return err
	}
	records := ds.Records()
	continents := stats.Continents(records)
	sort.Strings(continents)
	years := stats.Years(records)
	yearLabels := make([]string, len(years))
	for i, y := range years {
		yearLabels[i] = strconv.Itoa(y)
	}

	out := cmd.OutOrStdout()
	if _, err := fmt.Fprintf(out, "Continents: %s\nYears: %s\n",
		strings.Join(continents, ", "), strings.Join(yearLabels, ", ")); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
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
	path := resolveConfigPath()
	if err := writeDefaultConfig(path); err != nil {
		return err
	}

	parts, err := editorCommand(os.Getenv("EDITOR"))
	if err != nil {
		return err
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

// editorCommand splits $EDITOR with shell quoting rules, so values such as
// `code --wait` or a quoted path with spaces both work.
func editorCommand(editor string) ([]string, error) {
	editor = strings.TrimSpace(editor)
	if editor == "" {
		editor = "vi"
	}
	parts, err := shellquote.Split(editor)
	if err != nil {
		return nil, fmt.Errorf("invalid EDITOR %q: %w", editor, err)
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("editor command is empty")
	}
	return parts, nil
}

// writeDefaultConfig writes the commented template unless path exists.
func writeDefaultConfig(path string) error {
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

// loadFileConfig reads the config file and lets it fill the global flags
// the user did not set.
func loadFileConfig(cmd *cobra.Command) (config.FileConfig, error) {
	fileCfg, err := config.LoadConfig(resolveConfigPath())
	if err != nil {
		return config.FileConfig{}, fmt.Errorf("failed to load config: %w", err)
	}
	applyBoolConfig(cmd, "debug", &globalDebug, fileCfg.Server.Debug)
	applyStringConfig(cmd, "data", &globalData, fileCfg.Dataset.Path)
	applyStringConfig(cmd, "db", &globalDB, fileCfg.Dataset.DB)
	return fileCfg, nil
}

// loadDataset picks the record source: an explicit CSV, then an imported
// SQLite dataset, then the bundled sample.
func loadDataset(ctx context.Context) (*dataset.Dataset, string, error) {
	if globalData != "" {
		ds, err := dataset.LoadFile(globalData)
		if err != nil {
			return nil, "", fmt.Errorf("failed to load dataset: %w", err)
		}
		return ds, globalData, nil
	}

	dbPath := resolveDBPath()
	if _, err := os.Stat(dbPath); err != nil {
		if !os.IsNotExist(err) {
			return nil, "", fmt.Errorf("failed to stat db: %w", err)
		}
		if globalDB != "" {
			return nil, "", fmt.Errorf("dataset db not found: %s (run: gapdash import <csv> --db %s)", dbPath, dbPath)
		}
		ds, source, err := loadSample()
		if err == nil {
			logErrf("Using the bundled sample (%d records); run 'gapdash fetch' for the full Gapminder dataset\n", ds.Len())
		}
		return ds, source, err
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()
	info, err := st.LastImport(ctx)
	if errors.Is(err, store.ErrNoImport) {
		logErrf("No dataset imported into %s; using the bundled sample (run 'gapdash fetch')\n", dbPath)
		return loadSample()
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to read import metadata: %w", err)
	}
	records, err := st.LoadRecords(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load records: %w", err)
	}
	ds, err := dataset.New(records)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load dataset from db: %w", err)
	}
	return ds, fmt.Sprintf("%s (imported %s)", info.Source, info.ImportedAt.Format(time.RFC3339)), nil
}

func loadSample() (*dataset.Dataset, string, error) {
	ds, err := dataset.Sample()
	if err != nil {
		return nil, "", fmt.Errorf("failed to load bundled dataset: %w", err)
	}
	return ds, "bundled sample", nil
}

func resolveConfigPath() string {
	if globalConfig != "" {
		return globalConfig
	}
	return config.DefaultConfigPath()
}

func resolveDBPath() string {
	if globalDB != "" {
		return globalDB
	}
	return config.DefaultDBPath()
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

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	d := dashboard.DefaultDefaults
	return fmt.Sprintf(`# gapdash configuration
# Uncomment a value to enable it. CLI flags override config values.

[server]
# Listen address.
# addr = %q
# Debug logging and pretty JSON. With a template directory, debug mode
# re-reads the page template on every request.
# debug = false
# Page template directory (default: compiled in).
# templates = %q

[dataset]
# CSV file to load instead of the bundled sample.
# path = "gapminder.csv"
# SQLite dataset written by 'gapdash import'.
# db = %q

[dashboard]
# Initial continent and year for the bar charts.
# continent = %q
# year = %d
# Population, GDP per Capita or Life Expectancy.
# map-variable = %q
# map-year = %d
# Countries per bar chart.
# top-n = %d
`,
		defaultAddr,
		sourceTemplates,
		config.DefaultDBPath(),
		d.Continent,
		d.Year,
		string(d.MapMetric),
		d.MapYear,
		d.TopN,
	)
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
