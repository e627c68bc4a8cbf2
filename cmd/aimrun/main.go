// Command aimrun submits one parameter set to the AIM model service and
// prints the parsed result.
//
// Usage (table to stdout):
//
//	aimrun -temp 298.15 -rh 0.5 -species "H+=0.1,NH4+=0.1,SO42-=0.1"
//
// Usage (CSV export, all solids, equilibrate over ice):
//
//	aimrun -rh 0.8 -species "NH4+=0.2,NO3-=0.2" -all_solids -ice -o results.csv
//
// With -metrics, run counters and durations are reported to Datadog the same
// way the rest of our tooling does.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"aimclient/internal/aim"
	"aimclient/internal/export"
	"aimclient/internal/metrics"
	"aimclient/internal/metrics/datadog"
	"aimclient/internal/parser/modeltext"
	"aimclient/internal/webclient"
)

// backendCloser is the minimal interface used to manage a metrics backend.
type backendCloser interface {
	metrics.Backend
	Close() error
}

// deps are external seams for testability.
type deps struct {
	Stdout io.Writer
	Stderr io.Writer

	HTTPClient     *http.Client
	BackendFactory func(ctx context.Context, jobName string, tags []string, flushEvery time.Duration) (backendCloser, error)
	Now            func() time.Time
}

// runConfig holds the parsed flags for a run.
type runConfig struct {
	PageURL     string
	Timeout     time.Duration
	Temperature float64
	RH          float64
	SpeciesCSV  string
	SolidsCSV   string
	AllSolids   bool
	Ice         bool
	OutPath     string

	Metrics    bool
	JobName    string
	DDTagsCSV  string
	FlushEvery time.Duration
}

func main() {
	code := run(context.Background(), os.Args[1:], deps{
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
		HTTPClient: http.DefaultClient,
		BackendFactory: func(ctx context.Context, jobName string, tags []string, flushEvery time.Duration) (backendCloser, error) {
			return datadog.NewBackend(ctx, datadog.Options{
				JobName:    jobName,
				Tags:       tags,
				FlushEvery: flushEvery,
			})
		},
		Now: time.Now,
	})
	os.Exit(code)
}

// run executes the command and returns a Unix-style exit code:
//   - 0 success
//   - 1 operational/runtime error
//   - 2 usage/config error
func run(ctx context.Context, args []string, d deps) int {
	if d.Stdout == nil {
		d.Stdout = io.Discard
	}
	if d.Stderr == nil {
		d.Stderr = io.Discard
	}
	if d.Now == nil {
		d.Now = time.Now
	}

	cfg, err := parseFlags(args)
	if err != nil {
		fmt.Fprintln(d.Stderr, err.Error())
		return 2
	}

	params, err := buildParams(cfg)
	if err != nil {
		fmt.Fprintln(d.Stderr, err.Error())
		return 2
	}

	if cfg.Metrics {
		if d.BackendFactory == nil {
			fmt.Fprintln(d.Stderr, "internal error: BackendFactory is nil")
			return 2
		}
		tags := append(datadog.ParseTagsCSV(cfg.DDTagsCSV), "tool:aimrun")
		backend, err := d.BackendFactory(ctx, cfg.JobName, tags, cfg.FlushEvery)
		if err != nil {
			fmt.Fprintf(d.Stderr, "datadog backend init failed: %v\n", err)
			return 2
		}
		metrics.SetBackend(backend)
		defer func() {
			_ = metrics.Flush()
			_ = backend.Close()
		}()
	}

	client := aim.NewClient(webclient.Config{
		PageURL: cfg.PageURL,
		Timeout: cfg.Timeout,
		JobName: cfg.JobName,
	}, d.HTTPClient)

	start := d.Now()
	res, err := client.Run(ctx, params)
	dur := d.Now().Sub(start)

	if err != nil {
		metrics.RecordRun(cfg.JobName, "error", dur)
		fmt.Fprintf(d.Stderr, "run model: %v\n", err)
		return 1
	}

	outcome := "raw"
	if res.Structured() {
		outcome = "structured"
	}
	metrics.RecordRun(cfg.JobName, outcome, dur)

	if cfg.OutPath != "" {
		if err := writeCSVFile(cfg.OutPath, res); err != nil {
			fmt.Fprintf(d.Stderr, "export csv: %v\n", err)
			return 1
		}
		return 0
	}

	printTable(d.Stdout, res)
	return 0
}

func parseFlags(args []string) (runConfig, error) {
	fs := flag.NewFlagSet("aimrun", flag.ContinueOnError)

	var usageBuf strings.Builder
	fs.SetOutput(&usageBuf)
	fs.Usage = func() {
		fmt.Fprintf(&usageBuf, "Usage of %s:\n", fs.Name())
		fs.PrintDefaults()
	}

	var cfg runConfig
	fs.StringVar(&cfg.PageURL, "url", "", "Model page URL (default: the AIM model II page)")
	fs.DurationVar(&cfg.Timeout, "timeout", 30*time.Second, "HTTP timeout per request")
	fs.Float64Var(&cfg.Temperature, "temp", 298.15, "Temperature in Kelvin")
	fs.Float64Var(&cfg.RH, "rh", 0.5, "Relative humidity as a fraction (0,1]")
	fs.StringVar(&cfg.SpeciesCSV, "species", "", "Species concentrations, e.g. \"H+=0.1,NH4+=0.2\" (moles)")
	fs.StringVar(&cfg.SolidsCSV, "solids", "", "Solid phases to include, comma separated")
	fs.BoolVar(&cfg.AllSolids, "all_solids", false, "Include every known solid phase")
	fs.BoolVar(&cfg.Ice, "ice", false, "Equilibrate over ice")
	fs.StringVar(&cfg.OutPath, "o", "", "Write results as CSV to this path instead of printing a table")

	fs.BoolVar(&cfg.Metrics, "metrics", false, "Report run metrics to Datadog")
	fs.StringVar(&cfg.JobName, "name", "aimrun", "Logical job name used in metrics tags")
	fs.StringVar(&cfg.DDTagsCSV, "dd_tags", "", "Extra Datadog tags CSV (e.g. env:prod)")
	fs.DurationVar(&cfg.FlushEvery, "metrics_flush", 1*time.Minute, "Datadog flush interval")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return runConfig{}, errors.New(usageBuf.String())
		}
		return runConfig{}, fmt.Errorf("%v\n\n%s", err, usageBuf.String())
	}

	if cfg.Temperature <= 0 {
		return runConfig{}, errors.New("-temp must be > 0 (Kelvin)")
	}
	if cfg.Timeout <= 0 {
		return runConfig{}, errors.New("-timeout must be > 0")
	}

	return cfg, nil
}

// buildParams converts flag values into model parameters.
func buildParams(cfg runConfig) (aim.Params, error) {
	species, err := parseSpeciesCSV(cfg.SpeciesCSV)
	if err != nil {
		return aim.Params{}, err
	}

	var solids []string
	if cfg.AllSolids {
		solids = append(solids, aim.SolidPhases...)
	} else if cfg.SolidsCSV != "" {
		for _, s := range strings.Split(cfg.SolidsCSV, ",") {
			s = strings.TrimSpace(s)
			if s != "" {
				solids = append(solids, s)
			}
		}
	}
	if cfg.Ice {
		solids = append(solids, aim.Ice)
	}

	return aim.Params{
		TemperatureK:     cfg.Temperature,
		RelativeHumidity: cfg.RH,
		Species:          species,
		Solids:           solids,
	}, nil
}

// parseSpeciesCSV parses "label=moles" pairs. Order is preserved; it becomes
// the payload's species order.
func parseSpeciesCSV(s string) ([]aim.Amount, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	var out []aim.Amount
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		label, val, ok := strings.Cut(part, "=")
		label = strings.TrimSpace(label)
		if !ok || label == "" {
			return nil, fmt.Errorf("invalid -species entry %q (want label=moles)", part)
		}
		moles, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid -species value in %q: %v", part, err)
		}
		out = append(out, aim.Amount{Label: label, Moles: moles})
	}
	return out, nil
}

func writeCSVFile(path string, res modeltext.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := export.WriteCSV(f, res); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func printTable(w io.Writer, res modeltext.Result) {
	rows := export.Flatten(res)

	width := len("Parameter")
	for _, r := range rows {
		if len(r.Parameter) > width {
			width = len(r.Parameter)
		}
	}

	fmt.Fprintf(w, "%-*s  %s\n", width, "Parameter", "Value")
	for _, r := range rows {
		fmt.Fprintf(w, "%-*s  %s\n", width, r.Parameter, r.Value)
	}
}
