package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli"
	"golang.org/x/sync/errgroup"

	"studycal/internal/config"
	"studycal/internal/gcal"
	"studycal/internal/ics"
	appLog "studycal/internal/log"
	"studycal/internal/planner"
	"studycal/internal/prefs"
	"studycal/internal/scheduler"
	"studycal/internal/store"
	"studycal/internal/store/boltstore"
	"studycal/internal/store/mongostore"
	"studycal/internal/web"
)

var serveCmd = cli.Command{
	Name:  "serve",
	Usage: "Runs the HTTP API and the subscription refresh schedule",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "listen",
			Usage: "HTTP listen address (overrides config if set)",
		},
	},
	Action: serve,
}

var importCmd = cli.Command{
	Name:  "import",
	Usage: "Imports an .ics file for a user",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "user", Usage: "Owner of the imported calendar"},
		&cli.StringFlag{Name: "file", Usage: "The .ics file to import"},
	},
	Action: importCalendar,
}

var exportCmd = cli.Command{
	Name:  "export",
	Usage: "Exports a calendar grouping as .ics",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "user", Usage: "Owner of the calendar"},
		&cli.StringFlag{Name: "calendar", Usage: "Calendar grouping id"},
		&cli.StringFlag{Name: "out", Usage: "Output file, defaults to the generated name; - for stdout"},
	},
	Action: exportCalendar,
}

var gridCmd = cli.Command{
	Name:  "grid",
	Usage: "Prints a month grid",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "user", Usage: "Whose events and tasks to show"},
		&cli.IntFlag{Name: "year", Usage: "Year, defaults to the current one"},
		&cli.IntFlag{Name: "month", Usage: "Month 1-12, defaults to the current one"},
	},
	Action: printGrid,
}

var refreshCmd = cli.Command{
	Name:   "refresh",
	Usage:  "Fetches every configured subscription once",
	Action: refreshOnce,
}

// app bundles what every command needs.
type app struct {
	cfg     *config.Config
	store   store.Store
	planner *planner.Planner
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		appLog.Error("failed to close store", err)
	}
}

func setup(c *cli.Context) (*app, error) {
	path := c.GlobalString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if c.GlobalBool("debug") {
		cfg.LogLevel = "debug"
	}
	appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := openStore(context.Background(), cfg.Store)
	if err != nil {
		return nil, err
	}
	loc := cfg.Location()
	p := planner.New(st,
		planner.WithLocation(loc),
		planner.WithProvider(gcal.New(gcal.Config{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.Google.RedirectURL,
		}, loc)),
	)
	appLog.Info("effective config",
		"config_path", path,
		"listen", cfg.Listen,
		"timezone", loc.String(),
		"store", cfg.Store.Driver,
		"subscriptions", len(cfg.Subscriptions),
	)
	return &app{cfg: cfg, store: st, planner: p}, nil
}

func openStore(ctx context.Context, sc config.StoreConfig) (store.Store, error) {
	switch sc.Driver {
	case config.StoreMemory:
		return store.NewMemory(), nil
	case config.StoreMongo:
		return mongostore.Open(ctx, sc.MongoURI, sc.MongoDatabase)
	case config.StoreBolt, "":
		return boltstore.Open(sc.Path)
	default:
		return nil, fmt.Errorf("unknown store driver %q", sc.Driver)
	}
}

func sources(subs []config.SubscriptionConfig) []ics.Source {
	out := make([]ics.Source, 0, len(subs))
	for _, s := range subs {
		out = append(out, ics.Source{ID: s.ID, Name: s.Name, URL: s.URL, Username: s.Username})
	}
	return out
}

func newScheduler(a *app) *scheduler.Scheduler {
	return scheduler.New(
		a.cfg.RefreshCron,
		a.cfg.Location(),
		sources(a.cfg.Subscriptions),
		ics.NewFetcher(a.cfg.CacheDir, nil),
		a.planner,
	)
}

func serve(c *cli.Context) error {
	a, err := setup(c)
	if err != nil {
		return err
	}
	defer a.Close()
	if l := c.String("listen"); l != "" {
		a.cfg.Listen = l
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := web.NewServer(a.cfg, a.planner, prefs.New(a.store))
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx) })
	g.Go(func() error { return newScheduler(a).Run(ctx) })

	err = g.Wait()
	appLog.Info("studycal exiting")
	return err
}

func refreshOnce(c *cli.Context) error {
	a, err := setup(c)
	if err != nil {
		return err
	}
	defer a.Close()

	n := newScheduler(a).RunOnce(context.Background())
	fmt.Printf("refreshed %d of %d subscriptions\n", n, len(a.cfg.Subscriptions))
	return nil
}

func importCalendar(c *cli.Context) error {
	file := c.String("file")
	if file == "" {
		return fmt.Errorf("--file is required")
	}
	body, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	a, err := setup(c)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.planner.ImportCalendar(context.Background(), c.String("user"), filepath.Base(file), body)
	if err != nil {
		return err
	}
	fmt.Printf("imported %d events into %q (%s)\n", len(res.Events), res.Calendar.Name, res.Calendar.ID)
	return nil
}

func exportCalendar(c *cli.Context) error {
	a, err := setup(c)
	if err != nil {
		return err
	}
	defer a.Close()

	name, body, err := a.planner.ExportCalendar(context.Background(), c.String("user"), c.String("calendar"))
	if err != nil {
		return err
	}
	out := c.String("out")
	if out == "-" {
		_, err = os.Stdout.WriteString(body)
		return err
	}
	if out == "" {
		out = name
	}
	if err := os.WriteFile(out, []byte(body), 0o644); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", out)
	return nil
}

func printGrid(c *cli.Context) error {
	a, err := setup(c)
	if err != nil {
		return err
	}
	defer a.Close()

	now := time.Now().In(a.planner.Location())
	year, month := c.Int("year"), c.Int("month")
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = int(now.Month())
	}
	user := strings.TrimSpace(c.String("user"))
	view, err := a.planner.Month(context.Background(), user, year, month-1, nil)
	if err != nil {
		return err
	}
	return view.WriteText(os.Stdout)
}
