package main

import (
	"context"
	"embed"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/vidyasagar/opdsnav/internal/app"
	"github.com/vidyasagar/opdsnav/internal/browser"
	"github.com/vidyasagar/opdsnav/internal/feed"
	"github.com/vidyasagar/opdsnav/internal/feeds"
	"github.com/vidyasagar/opdsnav/internal/logging"
	"github.com/vidyasagar/opdsnav/internal/storage"
	"github.com/vidyasagar/opdsnav/internal/theme"
)

var (
	version = "0.1.0"
)

//go:embed assets
var bundled embed.FS

const (
	welcomeURI   = "asset:welcome.xml"
	probeTimeout = 20 * time.Second
	probeLimit   = 4
	rateBurst    = 4
)

func main() {
	var (
		themeName   string
		accountID   string
		configPath  string
		debug       bool
		showVersion bool
	)

	flag.StringVar(&themeName, "theme", "", "color theme ("+themeNames()+"), overrides the config")
	flag.StringVar(&accountID, "account", "", "account to browse as")
	flag.StringVar(&configPath, "config", "", "config file (default $"+storage.ConfigEnv+" or the user config dir)")
	flag.BoolVar(&debug, "debug", false, "write debug messages to the log")
	flag.BoolVar(&showVersion, "version", false, "show version")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "opdsnav - browse OPDS catalogs in the terminal\n\n")
		fmt.Fprintf(os.Stderr, "Usage: opdsnav [flags] [uri]\n")
		fmt.Fprintf(os.Stderr, "       opdsnav [flags] probe\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  opdsnav                                   # start with the bundled catalog list\n")
		fmt.Fprintf(os.Stderr, "  opdsnav https://m.gutenberg.org/ebooks.opds/\n")
		fmt.Fprintf(os.Stderr, "  opdsnav standardebooks.org/feeds/opds     # auto-adds https://\n")
		fmt.Fprintf(os.Stderr, "  opdsnav --account gutenberg               # open an account's root catalog\n")
		fmt.Fprintf(os.Stderr, "  opdsnav probe                             # check every account's catalog\n")
	}
	flag.Parse()

	if showVersion {
		fmt.Printf("opdsnav %s\n", version)
		os.Exit(0)
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if themeName == "" {
		themeName = cfg.Theme
	}
	if !theme.Set(themeName) {
		fmt.Fprintf(os.Stderr, "Unknown theme: %s\nAvailable: %s\n", themeName, themeNames())
		os.Exit(1)
	}

	level := log.InfoLevel
	if debug {
		level = log.DebugLevel
	}
	dataDir, err := storage.DataDir()
	if err == nil {
		err = logging.Init(dataDir, level)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
	}
	defer logging.Close()

	fetcher := browser.NewFetcher(
		browser.WithUserAgent(cfg.UserAgent),
		browser.WithRateLimit(cfg.RequestsPerSecond, rateBurst),
	)
	assets, err := fs.Sub(bundled, "assets")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	loader, err := feeds.NewLoader(feeds.Options{
		Transport:              fetcher,
		Assets:                 assets,
		Formats:                feeds.NewMediaTypes(cfg.SupportedFormats...),
		ShowOnlySupportedBooks: cfg.ShowOnlySupportedBooks,
		Logger:                 logging.WithPrefix("feeds"),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if flag.Arg(0) == "probe" {
		if !probe(cfg, loader) {
			logging.Close()
			os.Exit(1)
		}
		return
	}

	startURI := welcomeURI
	if accountID != "" {
		acct, ok := cfg.Account(accountID)
		if !ok {
			fmt.Fprintf(os.Stderr, "Unknown account: %s\n", accountID)
			os.Exit(1)
		}
		startURI = acct.CatalogURI
	}
	if flag.NArg() > 0 {
		startURI = app.NormalizeURI(flag.Arg(0))
	}

	deps := app.Deps{
		Loader:    loader,
		Fetcher:   fetcher,
		Config:    cfg,
		Logger:    logging.WithPrefix("app"),
		StartURI:  startURI,
		AccountID: accountID,
	}

	// History and saved catalogs are optional; browsing works without them.
	if dataDir != "" {
		db, err := storage.OpenDB(dataDir)
		if err != nil {
			logging.Warn("opening database", "err", err)
		} else {
			defer db.Close()
			deps.Visits = storage.NewVisitStore(db)
			deps.Catalogs = storage.NewSavedCatalogStore(db)
		}
	}

	m, err := app.New(deps)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logging.Info("starting", "version", version, "uri", startURI, "account", accountID)
	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	if _, err := p.Run(); err != nil {
		logging.Error("program exited", "err", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*storage.Config, error) {
	if path != "" {
		return storage.LoadConfigFile(path)
	}
	return storage.LoadConfig()
}

// probe loads every account's root catalog and prints one line per
// account. It reports whether all of them loaded.
func probe(cfg *storage.Config, loader *feeds.Loader) bool {
	results := make([]string, len(cfg.Accounts))
	failed := make([]bool, len(cfg.Accounts))

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(probeLimit)
	for i, acct := range cfg.Accounts {
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(ctx, probeTimeout)
			defer cancel()

			start := time.Now()
			f, err := loader.Fetch(fctx, acct.ID, acct.CatalogURI, acct.Credentials(), "")
			elapsed := time.Since(start).Round(time.Millisecond)
			if err != nil {
				logging.Warn("probe failed", "account", acct.ID, "uri", acct.CatalogURI, "err", err)
				results[i] = fmt.Sprintf("FAIL %-16s %s (%v)", acct.ID, err, elapsed)
				failed[i] = true
				return nil
			}
			results[i] = fmt.Sprintf("ok   %-16s %s: %s (%v)", acct.ID, feed.TitleOf(f), describe(f), elapsed)
			return nil
		})
	}
	_ = g.Wait()

	ok := true
	for i, line := range results {
		fmt.Println(line)
		if failed[i] {
			ok = false
		}
	}
	return ok
}

func describe(f feed.Feed) string {
	switch f := f.(type) {
	case *feed.WithGroups:
		return fmt.Sprintf("%d groups", len(f.Groups))
	case *feed.WithoutGroups:
		s := fmt.Sprintf("%d entries", len(f.Entries))
		if f.HasNext() {
			s += ", more pages"
		}
		if f.Search != nil {
			s += ", searchable"
		}
		return s
	}
	return "unknown feed"
}

func themeNames() string {
	return strings.Join(theme.List(), ", ")
}
