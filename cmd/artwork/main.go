package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/mmcdole/artwork/internal/adapter"
	"github.com/mmcdole/artwork/internal/domain"
	"github.com/mmcdole/artwork/internal/fetch"
	"github.com/mmcdole/artwork/internal/imagestore"
	"github.com/mmcdole/artwork/internal/loader"
	"github.com/mmcdole/artwork/internal/store"
	"github.com/mmcdole/artwork/internal/tui"
	"github.com/mmcdole/artwork/internal/urlnorm"
)

// Version is set at build time via -ldflags
var Version = "dev"

// errMissing reports that a headless run could not load every reference
var errMissing = errors.New("some references have no image")

type options struct {
	configPath string
	host       string
	verbose    bool
	refresh    bool
	match      string
	detail     string
	clearCache bool
	version    bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "config file (default ~/.config/artwork/config.yaml)")
	flag.StringVar(&opts.host, "host", "", "canonical image host (overrides config)")
	flag.BoolVar(&opts.verbose, "v", false, "log to stderr at debug level")
	flag.BoolVar(&opts.refresh, "refresh", false, "bypass the transport cache")
	flag.StringVar(&opts.match, "match", "", "only load references fuzzy-matching this query")
	flag.StringVar(&opts.detail, "detail", "", "load references as the detail view of this entity")
	flag.BoolVar(&opts.clearCache, "clear-cache", false, "remove cached images and responses, then exit")
	flag.BoolVar(&opts.version, "version", false, "print version")
	flag.Parse()

	if opts.version {
		fmt.Printf("artwork %s\n", Version)
		return
	}

	if err := run(opts, flag.Args()); err != nil {
		if !errors.Is(err, errMissing) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(opts options, args []string) error {
	if opts.clearCache {
		if err := adapter.ClearCache(); err != nil {
			return err
		}
		fmt.Println("✓ Cache cleared")
		return nil
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	interactive := term.IsTerminal(int(os.Stdout.Fd()))

	logger, closeLog := setupLogger(cfg, opts.verbose)
	defer closeLog()
	slog.SetDefault(logger)

	logger.Info("starting artwork", "version", Version)

	if !cfg.IsConfigured() {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return errors.New("no image host configured (set images.host or pass -host)")
		}
		return runSetupFlow(cfg)
	}

	var stdin io.Reader
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		stdin = os.Stdin
	}
	refs, err := readRefs(args, stdin)
	if err != nil {
		return err
	}
	refs = matchRefs(opts.match, refs)
	if len(refs) == 0 {
		return errors.New("no references given")
	}

	// Composition root: one store, one transport cache, one fetcher
	images, err := imagestore.New(cfg.ImageDir(), logger,
		imagestore.WithMaxEntries(cfg.Images.MaxEntries),
		imagestore.WithMaxBytes(cfg.Images.MaxBytes),
		imagestore.WithExtension(cfg.Images.Extension),
	)
	if err != nil {
		return fmt.Errorf("failed to open image cache: %w", err)
	}
	defer images.Close()

	forceRefresh := cfg.Fetch.ForceRefresh || opts.refresh

	fetchOpts := []fetch.Option{
		fetch.WithTimeout(cfg.Fetch.Timeout),
		fetch.WithRetries(cfg.Fetch.Retries),
		fetch.WithUserAgent(cfg.Fetch.UserAgent),
		fetch.WithMirrors(cfg.Images.Mirrors...),
	}
	if cfg.Fetch.TransportCache {
		responses, err := openTransportCache(cfg.TransportDir(), cfg.Images.Host, forceRefresh, logger)
		if err != nil {
			// The transport cache is an optimization; run without it
			logger.Warn("transport cache unavailable", "error", err)
		} else {
			defer responses.Close()
			fetchOpts = append(fetchOpts, fetch.WithTransportCache(responses))
		}
	}
	client := fetch.New(logger, fetchOpts...)

	coord := loader.New(images, client, urlnorm.New(cfg.Images.Host), logger,
		loader.WithFetchTimeout(cfg.Fetch.Timeout),
		loader.WithForceRefresh(forceRefresh),
	)
	defer coord.Close()

	if !interactive {
		return runHeadless(coord, refs, opts.detail, os.Stdout, logger)
	}
	return runTUI(coord, refs, logger)
}

func loadConfig(opts options) (*adapter.Config, error) {
	var (
		cfg *adapter.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = adapter.LoadConfigFile(opts.configPath)
	} else {
		cfg, err = adapter.LoadConfig()
	}
	if err != nil {
		return nil, err
	}
	if opts.host != "" {
		cfg.Images.Host = opts.host
	}
	return cfg, nil
}

func setupLogger(cfg *adapter.Config, verbose bool) (*slog.Logger, func()) {
	if verbose {
		return adapter.VerboseLogger(os.Stderr), func() {}
	}
	logger, closer, err := adapter.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		return adapter.NullLogger(), func() {}
	}
	return logger, func() { _ = closer.Close() }
}

// openTransportCache opens the response store for host. A refresh run starts
// from an empty store so stale responses for unlisted references go too.
func openTransportCache(dir, host string, refresh bool, logger *slog.Logger) (*store.ResponseStore, error) {
	responses, err := store.NewResponseStore(dir, host)
	if err != nil {
		return nil, err
	}
	if refresh {
		logger.Info("clearing transport cache", "host", host, "responses", responses.Len())
		responses.InvalidateAll()
	}
	return responses, nil
}

// runHeadless loads every reference once and prints a line per reference.
func runHeadless(coord *loader.Coordinator, refs []string, detailID string, out io.Writer, logger *slog.Logger) error {
	unsubscribe := coord.Subscribe(domain.ObserverFunc(func(images domain.ImageMap) {
		logger.Debug("images published", "loaded", len(images), "references", len(refs))
	}))
	defer unsubscribe()

	if detailID != "" {
		coord.ActivateDetail(detailID, refs)
	} else {
		coord.ActivateList(refs)
	}
	coord.Wait()

	missing := 0
	for _, ref := range refs {
		img := coord.Image(ref)
		if img == nil {
			missing++
			fmt.Fprintf(out, "%s\tmissing\n", ref)
			continue
		}
		fmt.Fprintf(out, "%s\t%dx%d %s\n", ref, img.Width(), img.Height(), img.Format)
	}
	if missing > 0 {
		return errMissing
	}
	return nil
}

func runTUI(coord *loader.Coordinator, refs []string, logger *slog.Logger) error {
	updates := make(chan domain.ImageMap, 1)
	unsubscribe := coord.Subscribe(tui.NewChannelObserver(updates))
	defer unsubscribe()

	coord.ActivateList(refs)

	model := tui.NewModel(coord, refs, updates, logger)
	p := tea.NewProgram(model, tea.WithAltScreen())

	logger.Info("starting TUI", "references", len(refs))

	if _, err := p.Run(); err != nil {
		logger.Error("TUI error", "error", err)
		return fmt.Errorf("TUI error: %w", err)
	}

	logger.Info("shutting down")
	return nil
}

// runSetupFlow asks for the canonical image host and saves it
func runSetupFlow(cfg *adapter.Config) error {
	fmt.Println()
	fmt.Println("Welcome to Artwork!")
	fmt.Println()

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("Enter your image host (e.g., images.example.com): ")
		input, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
		host := urlnorm.New(strings.TrimSpace(input)).Host()
		if host == "" {
			fmt.Println("Image host cannot be empty. Please try again.")
			continue
		}
		cfg.Images.Host = host
		break
	}

	if err := adapter.SaveConfig(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Println()
	fmt.Println("✓ Configuration saved!")
	fmt.Println()
	fmt.Println("Run artwork again with references to load.")
	return nil
}
