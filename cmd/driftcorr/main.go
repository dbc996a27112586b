// Command driftcorr drift-corrects the gaze recordings listed in a QC
// manifest. Without -final it writes QC figures; with -final it writes the
// enhanced events files and the BIDS gaze export.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/banshee-data/gaze.driftcorr/internal/batch"
	"github.com/banshee-data/gaze.driftcorr/internal/config"
	"github.com/banshee-data/gaze.driftcorr/internal/ledger"
	"github.com/banshee-data/gaze.driftcorr/internal/monitoring"
	"github.com/banshee-data/gaze.driftcorr/internal/version"
)

// Environment variables providing defaults for the path flags.
const (
	envIn     = "DRIFTCORR_IN"
	envOut    = "DRIFTCORR_OUT"
	envConfig = "DRIFTCORR_CONFIG"
	envLedger = "DRIFTCORR_LEDGER"
)

type options struct {
	in, out    string
	configPath string
	ledgerPath string
	report     bool
	final      bool
	workers    int
	html       bool
	verbose    bool
	quiet      bool
	version    bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	o := &options{}
	fs := flag.NewFlagSet("driftcorr", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.in, "in", os.Getenv(envIn), "source data directory (session logs, events, player info)")
	fs.StringVar(&o.out, "out", os.Getenv(envOut), "derivatives directory (recordings, manifest, outputs)")
	fs.StringVar(&o.configPath, "config", os.Getenv(envConfig), "JSON tuning file; built-in defaults when empty")
	fs.StringVar(&o.ledgerPath, "ledger", os.Getenv(envLedger), "sqlite run ledger; disabled when empty")
	fs.BoolVar(&o.report, "ledger-report", false, "print the runs recorded in -ledger and exit")
	fs.BoolVar(&o.final, "final", false, "export enhanced events and BIDS gaze instead of QC figures")
	fs.IntVar(&o.workers, "workers", 0, "runs processed concurrently (0 uses the config value)")
	fs.BoolVar(&o.html, "html", false, "also write the interactive QC page")
	fs.BoolVar(&o.verbose, "verbose", false, "development logging")
	fs.BoolVar(&o.quiet, "quiet", false, "suppress per-run logging")
	fs.BoolVar(&o.version, "version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if o.version {
		return o, nil
	}
	if o.report {
		if o.ledgerPath == "" {
			return nil, fmt.Errorf("-ledger-report needs -ledger (or %s)", envLedger)
		}
		return o, nil
	}
	if o.in == "" || o.out == "" {
		return nil, fmt.Errorf("-in and -out are required (or set %s and %s)", envIn, envOut)
	}
	if o.workers < 0 {
		return nil, fmt.Errorf("-workers must be >= 0, got %d", o.workers)
	}
	return o, nil
}

func loadConfig(path string) (*config.DriftConfig, error) {
	if path == "" {
		return config.DefaultDriftConfig(), nil
	}
	return config.LoadDriftConfig(path)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	o, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	if o.version {
		fmt.Fprintln(stdout, version.String())
		return 0
	}
	if o.report {
		monitoring.SetLogger(nil)
		if err := report(o.ledgerPath, stdout); err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		return 0
	}

	switch {
	case o.quiet:
		monitoring.SetLogger(nil)
	default:
		zl, err := monitoring.NewZapLogger(o.verbose)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		defer zl.Sync()
		monitoring.SetLogger(monitoring.ZapLogf(zl))
	}

	cfg, err := loadConfig(o.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 2
	}

	r := batch.NewRunner(o.in, o.out, cfg, o.final)
	if o.workers > 0 {
		r.Workers = o.workers
	}
	r.HTML = r.HTML || o.html

	if o.ledgerPath != "" {
		l, err := ledger.Open(o.ledgerPath, r.Clock)
		if err != nil {
			fmt.Fprintf(stderr, "open ledger: %v\n", err)
			return 1
		}
		defer l.Close()
		r.Ledger = l
	}

	sum, err := r.Run(ctx)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	fmt.Fprintln(stdout, sum)
	if sum.Err != nil {
		fmt.Fprintln(stderr, sum.Err)
		return 1
	}
	return 0
}

// report prints the per-status totals of the ledger at path followed by
// every recorded run, oldest first.
func report(path string, w io.Writer) error {
	l, err := ledger.Open(path, nil)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer l.Close()

	counts, err := l.Counts()
	if err != nil {
		return err
	}
	statuses := make([]string, 0, len(counts))
	total := 0
	for st, n := range counts {
		statuses = append(statuses, string(st))
		total += n
	}
	sort.Strings(statuses)
	fmt.Fprintf(w, "%d recorded runs\n", total)
	for _, st := range statuses {
		fmt.Fprintf(w, "  %s=%d\n", st, counts[ledger.Status(st)])
	}

	entries, err := l.List(ledger.Filter{})
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	fmt.Fprintln(w, "finished_at\tsubject\tsession\ttask\trun\tmode\tstatus\treason")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.FinishedAt.UTC().Format(time.RFC3339), e.Subject, e.Session, e.Task, e.Run, e.Mode, e.Status, e.Reason)
	}
	return nil
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Error loading .env file: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
