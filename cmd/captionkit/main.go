package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/example/captionkit/internal/app"
	"github.com/example/captionkit/internal/config"
	"github.com/example/captionkit/internal/editor"
	"github.com/example/captionkit/internal/notify"
	"github.com/example/captionkit/internal/render"
	"github.com/example/captionkit/internal/search"
	"github.com/example/captionkit/internal/theme"
)

var (
	version            = "dev"
	commit             = ""
	date               = ""
	configPathOverride = ""
)

type runnable interface{ Run() error }

type root struct {
	fs       *flag.FlagSet
	program  string
	config   *config.Config
	notifier *notify.Notifier
	theme    *theme.Theme

	themeName     string
	logLevel      string
	addAlerts     bool
	exportAlerts  bool
	loadAlerts    bool
	errorAlerts   bool
	selectAlerts  bool
	backAlerts    bool
	desktopAlerts bool

	stdout io.Writer
	stderr io.Writer
	stdin  io.Reader

	// newSearcher and newLoader are replaced in tests.
	newSearcher func(cfg *config.Config) search.Searcher
	newLoader   func(cfg *config.Config) app.Loader
}

func (r *root) Program() string {
	return r.program
}

func (r *root) FlagSet() *flag.FlagSet {
	return r.fs
}

func defaultSearcher(cfg *config.Config) search.Searcher {
	if cfg.Search.APIKey == "" {
		logrus.Warn("no Pexels API key configured; set PEXELS_API_KEY or [search] api_key")
	}
	return search.NewClient(cfg.Search.APIKey,
		search.WithEndpoint(cfg.Search.Endpoint),
		search.WithPerPage(cfg.Search.PerPage),
		search.WithTimeout(cfg.Search.Timeout),
	)
}

func defaultLoader(cfg *config.Config) app.Loader {
	return app.NewHTTPLoader(cfg.Search.Timeout * 2)
}

func newRoot() *root {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: failed to read .env: %v\n", err)
	}
	loader := config.NewLoader(version, configPathOverride)
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to load config: %v\n", err)
		cfg = config.New()
	}
	cfg.ApplyEnv(os.Getenv)
	return newRootWith(cfg)
}

func newRootWith(cfg *config.Config) *root {
	r := &root{
		fs:          flag.NewFlagSet("captionkit", flag.ContinueOnError),
		program:     "captionkit",
		config:      cfg,
		stdout:      os.Stdout,
		stderr:      os.Stderr,
		stdin:       os.Stdin,
		newSearcher: defaultSearcher,
		newLoader:   defaultLoader,
	}
	r.fs.SetOutput(io.Discard)
	r.fs.StringVar(&r.themeName, "theme", cfg.Theme, "colour theme for the banner and preview (dark, light or a file)")
	r.fs.StringVar(&r.logLevel, "loglevel", "info", "log level (debug, info, warn, error)")
	r.fs.BoolVar(&r.addAlerts, "notify-add", cfg.Notify.Add, "announce added elements")
	r.fs.BoolVar(&r.exportAlerts, "notify-export", cfg.Notify.Export, "announce finished exports")
	r.fs.BoolVar(&r.loadAlerts, "notify-load", cfg.Notify.Load, "alert when a background image fails to load")
	r.fs.BoolVar(&r.errorAlerts, "notify-error", cfg.Notify.Error, "report failed actions")
	r.fs.BoolVar(&r.selectAlerts, "notify-select", cfg.Notify.Select, "announce the image opened for annotation")
	r.fs.BoolVar(&r.backAlerts, "notify-back", cfg.Notify.Back, "announce returning to the search page")
	r.fs.BoolVar(&r.desktopAlerts, "notify-desktop", cfg.Notify.Desktop, "also show notifications on the desktop")
	r.fs.Usage = usageFunc(r)
	return r
}

func (r *root) subcommand(name string) string {
	return strings.TrimSpace(strings.Join([]string{r.program, name}, " "))
}

func (r *root) setup() error {
	level, err := logrus.ParseLevel(r.logLevel)
	if err != nil {
		return fmt.Errorf("invalid -loglevel %q: %w", r.logLevel, err)
	}
	logrus.SetLevel(level)

	r.config.Theme = r.themeName
	t, err := r.config.ResolveTheme(theme.NewLoader())
	if err != nil {
		logrus.WithFields(logrus.Fields{"theme": r.themeName, "error": err}).Warn("failed to load theme, using default")
		t = theme.Default()
	}
	r.theme = t

	prefs := notify.DefaultPreferences().ApplyEnv(os.Getenv)
	var sinks []notify.Sink
	if r.desktopAlerts {
		sinks = append(sinks, notify.DesktopSink{})
	}
	r.notifier = notify.New(prefs, sinks...)
	r.notifier.Enable(notify.EventAdd, r.addAlerts)
	r.notifier.Enable(notify.EventExport, r.exportAlerts)
	r.notifier.Enable(notify.EventLoad, r.loadAlerts)
	r.notifier.Enable(notify.EventError, r.errorAlerts)
	r.notifier.Enable(notify.EventSelect, r.selectAlerts)
	r.notifier.Enable(notify.EventBack, r.backAlerts)
	return nil
}

// appOptions builds the options for a new App from the resolved
// configuration. Toasts go to the root sinks plus extra.
func (r *root) appOptions(extra ...notify.Sink) app.Options {
	cfg := r.config
	opts := render.DefaultOptions()
	if r.theme != nil {
		opts = r.theme.RenderOptions(opts)
	}
	if cfg.Export.PixelRatio > 0 {
		opts.PixelRatio = cfg.Export.PixelRatio
	}
	return app.Options{
		Searcher: r.newSearcher(cfg),
		Loader:   r.newLoader(cfg),
		Notifier: r.notifier.With(extra...),
		Editor: []editor.Option{
			editor.WithColor(cfg.Editor.Color),
			editor.WithPlaceholder(cfg.Editor.Caption),
			editor.WithMinSize(cfg.Editor.MinSize),
		},
		Render:   opts,
		Filename: cfg.Export.Filename,
	}
}

func (r *root) Run(args []string) error {
	if err := r.fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return &UsageError{of: r}
		}
		return err
	}
	if r.fs.NArg() < 1 {
		return &UsageError{of: r}
	}
	if err := r.setup(); err != nil {
		return err
	}

	cmdName := r.fs.Arg(0)
	subArgs := r.fs.Args()[1:]

	var (
		cmd runnable
		err error
	)
	switch cmdName {
	case "search":
		cmd, err = parseSearchCmd(subArgs, r)
	case "interactive":
		cmd, err = parseInteractiveCmd(subArgs, r)
	case "serve":
		cmd, err = parseServeCmd(subArgs, r)
	case "config":
		cmd, err = parseConfigCmd(subArgs, r)
	case "version":
		cmd = &versionCmd{r: r}
	default:
		err = &UsageError{of: r}
	}
	if err != nil {
		return err
	}
	return cmd.Run()
}

func main() {
	r := newRoot()
	if err := r.Run(os.Args[1:]); err != nil {
		var uerr *UsageError
		if errors.As(err, &uerr) {
			fmt.Fprintln(os.Stderr, uerr.Error())
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
