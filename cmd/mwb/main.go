package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"mwb/internal/api"
	"mwb/internal/assets"
	"mwb/internal/cache"
	"mwb/internal/config"
	"mwb/internal/enrich"
	"mwb/internal/fetch"
	"mwb/internal/ingest"
	"mwb/internal/logging"
	"mwb/internal/observability/metrics"
	"mwb/internal/pipeline"
	"mwb/internal/storage"
	"mwb/internal/workbook"
)

type app struct {
	cfg      config.Config
	log      *logging.Logger
	db       *storage.DB
	enricher *enrich.Enricher
	workbook *workbook.Service
	ingest   *ingest.Service
}

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, cfg)
	must(err)
	defer a.db.Close()
	go a.enricher.Run(ctx)

	now := time.Now()
	cmd := os.Args[1]
	switch cmd {
	case "weeks:issue":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		year := fs.Int("year", now.Year(), "year")
		month := fs.Int("month", int(now.Month()), "month 1-12")
		wait := fs.Bool("wait", false, "wait for background enrichment and print the enriched weeks")
		_ = fs.Parse(os.Args[2:])
		updates := make(chan enrich.Update, 4)
		unsubscribe := a.workbook.Subscribe(func(u enrich.Update) {
			select {
			case updates <- u:
			default:
			}
		})
		defer unsubscribe()

		weeks := a.workbook.ImportIssue(ctx, *year, time.Month(*month))
		if *wait {
			a.enricher.Wait()
			select {
			case u := <-updates:
				weeks = u.Weeks
			case <-time.After(2 * time.Second):
			}
		}
		printJSON(weeks)
		fmt.Fprintf(os.Stderr, "weeks=%d\n", len(weeks))
	case "weeks:until":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		year := fs.Int("year", now.Year(), "year")
		month := fs.Int("month", int(now.Month()), "month 1-12")
		_ = fs.Parse(os.Args[2:])
		weeks := a.workbook.ListUntil(ctx, *year, time.Month(*month))
		printJSON(weeks)
		fmt.Fprintf(os.Stderr, "weeks=%d\n", len(weeks))
	case "import:file":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		path := fs.String("path", "", "pdf|xlsx|rtf|eml|html|txt file")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*path) == "" {
			must(fmt.Errorf("--path is required"))
		}
		weeks, strategy, err := a.workbook.ImportFile(ctx, *path)
		must(err)
		printJSON(weeks)
		fmt.Fprintf(os.Stderr, "import done strategy=%s weeks=%d\n", strategy, len(weeks))
	case "import:url":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		url := fs.String("url", "", "document or week page url")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*url) == "" {
			must(fmt.Errorf("--url is required"))
		}
		weeks, strategy, err := a.workbook.ImportDocument(ctx, *url)
		must(err)
		printJSON(weeks)
		fmt.Fprintf(os.Stderr, "import done strategy=%s weeks=%d\n", strategy, len(weeks))
	case "import:text":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "text file path; stdin when empty")
		_ = fs.Parse(os.Args[2:])
		text, err := readInput(*input)
		must(err)
		week := a.workbook.ImportText(text)
		if week == nil {
			must(errors.New("no parts found in text"))
		}
		printJSON(week)
	case "index:links":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		months := fs.Int("months", cfg.DiscoverMonths, "months ahead to check")
		_ = fs.Parse(os.Args[2:])
		found := a.workbook.DiscoverOnline(ctx, *months)
		for _, w := range found {
			fmt.Printf("%d\t%s\t%s\n", w.Year, w.Period, w.URL)
		}
		fmt.Fprintf(os.Stderr, "links=%d\n", len(found))
	case "export:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		year := fs.Int("year", now.Year(), "year")
		month := fs.Int("month", int(now.Month()), "month 1-12")
		out := fs.String("out", "", "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*out) == "" {
			must(fmt.Errorf("--out is required"))
		}
		weeks := a.workbook.ImportIssue(ctx, *year, time.Month(*month))
		if len(weeks) == 0 {
			must(fmt.Errorf("no weeks for %d-%02d", *year, *month))
		}
		must(pipeline.ExportWeeksToXLSX(weeks, *out))
		fmt.Printf("exported %d weeks to %s\n", len(weeks), *out)
	case "pdf:link":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		issue := fs.String("issue", "", "issue key, e.g. 2026-03")
		_ = fs.Parse(os.Args[2:])
		link, err := a.workbook.CompanionPDF(ctx, *issue)
		must(err)
		fmt.Println(link)
	case "ingest":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		mode := fs.String("mode", "single", "single|next|pair|backfill")
		year := fs.Int("year", 0, "issue year (single)")
		month := fs.Int("month", 0, "issue month (single)")
		startYear := fs.Int("start-year", 0, "first year (backfill)")
		endYear := fs.Int("end-year", 0, "last year (backfill)")
		_ = fs.Parse(os.Args[2:])
		m, err := ingest.ParseMode(*mode)
		must(err)
		summary, err := a.ingest.Run(ctx, m, ingest.RunOptions{
			Year:      *year,
			Month:     time.Month(*month),
			StartYear: *startYear,
			EndYear:   *endYear,
		})
		must(err)
		for _, res := range summary.Issues {
			fmt.Printf("issue=%s weeks=%d pdf=%s trace=%s error=%s\n", res.IssueKey, res.Weeks, res.PDFKey, res.TraceID, res.Error)
		}
		fmt.Printf("ingest done mode=%s issues=%d weeks=%d\n", summary.Mode, len(summary.Issues), summary.TotalWeeks)
	case "ingest:delete":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		issue := fs.String("issue", "", "issue key, e.g. 2026-03")
		_ = fs.Parse(os.Args[2:])
		n, err := a.ingest.DeleteIssue(ctx, *issue)
		must(err)
		fmt.Printf("deleted issue=%s rows=%d\n", *issue, n)
	case "serve":
		must(a.serve(ctx))
	default:
		usage()
		os.Exit(1)
	}
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	log := logging.New(cfg.LogLevel)
	m := metrics.NewExtractionMetrics(nil)

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	store, err := assets.FromConfig(ctx, cfg, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	c, err := cache.FromConfig(cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	client := fetch.NewClient(cfg, log, m)
	enricher := enrich.New(cfg, client, c, enrich.NewBroker(log), log, m)
	return &app{
		cfg:      cfg,
		log:      log,
		db:       db,
		enricher: enricher,
		workbook: workbook.New(cfg, workbook.Deps{
			Rows:     db,
			Fetcher:  client,
			Assets:   store,
			Cache:    c,
			Enricher: enricher,
			Log:      log,
			Metrics:  m,
		}),
		ingest: ingest.NewService(db, client, store, cfg, log, m),
	}, nil
}

func (a *app) serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           api.New(api.Config{Weeks: a.workbook, Ingest: a.ingest, Logger: a.log}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.log.Info("http server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	a.enricher.Wait()
	return nil
}

func readInput(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		b, err := io.ReadAll(os.Stdin)
		return string(b), err
	}
	b, err := os.ReadFile(path)
	return string(b), err
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	must(enc.Encode(v))
}

func usage() {
	fmt.Println("usage: mwb <command>")
	fmt.Println("commands:")
	fmt.Println("  weeks:issue [--year=2026] [--month=3] [--wait]")
	fmt.Println("  weeks:until [--year=2026] [--month=12]")
	fmt.Println("  import:file --path=./apostila.pdf")
	fmt.Println("  import:url --url=https://...")
	fmt.Println("  import:text [--input=./semana.txt]")
	fmt.Println("  index:links [--months=4]")
	fmt.Println("  export:xlsx [--year=2026] [--month=3] --out=./out/semanas.xlsx")
	fmt.Println("  pdf:link --issue=2026-03")
	fmt.Println("  ingest --mode=single|next|pair|backfill [--year] [--month] [--start-year] [--end-year]")
	fmt.Println("  ingest:delete --issue=2026-03")
	fmt.Println("  serve")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
