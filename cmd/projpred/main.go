// Command projpred projects a reference GLM posterior onto one or more
// submodels and reports how much predictive performance each keeps.
//
//	projpred -ref model.json -terms "x1;x1,x2;-" -png elpd.png
//
// Term sets are separated by ";" and names within a set by ","; "-" is the
// intercept-only model. Results are optionally stored in a SQLite run
// database with -db.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/lmittmann/tint"

	"github.com/banshee-data/projpred/internal/config"
	"github.com/banshee-data/projpred/internal/elpd"
	"github.com/banshee-data/projpred/internal/fsutil"
	"github.com/banshee-data/projpred/internal/model"
	"github.com/banshee-data/projpred/internal/monitoring"
	"github.com/banshee-data/projpred/internal/projection"
	"github.com/banshee-data/projpred/internal/report"
	"github.com/banshee-data/projpred/internal/security"
	"github.com/banshee-data/projpred/internal/store"
	"github.com/banshee-data/projpred/internal/version"
)

type options struct {
	Ref        string
	ConfigPath string
	Terms      string
	Method     string
	DBPath     string
	OutDir     string
	JSONName   string
	PNGName    string
	HTMLName   string
	Verbose    bool
}

func parseFlags(args []string, stderr io.Writer) (*options, bool, error) {
	fs := flag.NewFlagSet("projpred", flag.ContinueOnError)
	fs.SetOutput(stderr)
	o := &options{}
	fs.StringVar(&o.Ref, "ref", "", "Reference model JSON file (required)")
	fs.StringVar(&o.ConfigPath, "config", "", "Projection config file (.json or .yaml)")
	fs.StringVar(&o.Terms, "terms", "", `Term sets to project, e.g. "x1;x1,x2;-" ("-" is intercept only); default projects every size in reference order`)
	fs.StringVar(&o.Method, "method", "", "Projection method: analytic, gradient or mean_field (overrides config)")
	fs.StringVar(&o.DBPath, "db", "", "SQLite run database; runs are not stored when empty")
	fs.StringVar(&o.OutDir, "out", "", "Directory for output artefacts")
	fs.StringVar(&o.JSONName, "json", "", "Write the run summary as JSON to this file")
	fs.StringVar(&o.PNGName, "png", "", "Write the ELPD comparison chart as PNG to this file")
	fs.StringVar(&o.HTMLName, "html", "", "Write the interactive ELPD comparison as HTML to this file")
	fs.BoolVar(&o.Verbose, "verbose", false, "Enable debug logging")
	showVersion := fs.Bool("version", false, "Print version and exit")
	if err := fs.Parse(args); err != nil {
		return nil, false, err
	}
	if *showVersion {
		return o, true, nil
	}
	if o.Ref == "" {
		return nil, false, fmt.Errorf("-ref is required")
	}
	return o, false, nil
}

// parseTermSets splits a -terms value into covariate lists. An empty value
// yields nil, meaning every size in reference order.
func parseTermSets(s string) ([][]string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var sets [][]string
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		switch part {
		case "":
			return nil, fmt.Errorf("empty term set in %q", s)
		case "-":
			sets = append(sets, []string{})
			continue
		}
		var names []string
		for _, name := range strings.Split(part, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				return nil, fmt.Errorf("empty term name in %q", part)
			}
			names = append(names, name)
		}
		sets = append(sets, names)
	}
	return sets, nil
}

func loadConfig(fsys fsutil.FileSystem, o *options) (*config.ProjectionConfig, error) {
	cfg := config.EmptyProjectionConfig()
	if o.ConfigPath != "" {
		loaded, err := config.LoadProjectionConfig(fsys, o.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if o.Method != "" {
		m := o.Method
		cfg.Method = &m
	}
	return cfg, cfg.Validate()
}

type submodelSummary struct {
	Terms        []string       `json:"terms"`
	Size         int            `json:"size"`
	Loss         float64        `json:"kl_to_reference"`
	NonConverged int            `json:"non_converged"`
	ELPD         *elpd.Estimate `json:"elpd"`
	RunID        string         `json:"run_id,omitempty"`
}

type summary struct {
	Reference  string            `json:"reference"`
	Method     string            `json:"method"`
	Submodels  []submodelSummary `json:"submodels"`
	Comparison []elpd.Row        `json:"comparison"`
}

func run(ctx context.Context, fsys fsutil.FileSystem, o *options, stdout io.Writer) (*summary, error) {
	cfg, err := loadConfig(fsys, o)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	sets, err := parseTermSets(o.Terms)
	if err != nil {
		return nil, err
	}

	st, id, err := model.LoadReference(fsys, o.Ref)
	if err != nil {
		return nil, err
	}
	p, err := projection.New(st, id, cfg)
	if err != nil {
		return nil, err
	}
	monitoring.Debugf("%s", p)
	method, err := p.Method()
	if err != nil {
		return nil, err
	}

	var subs []*model.ModelData
	if sets == nil {
		for size := 0; size <= p.Reference().ModelSize(); size++ {
			md, err := p.ProjectSize(ctx, size, method)
			if err != nil {
				return nil, fmt.Errorf("project size %d: %w", size, err)
			}
			subs = append(subs, md)
		}
	} else {
		for _, names := range sets {
			md, err := p.ProjectNames(ctx, names, method)
			if err != nil {
				return nil, fmt.Errorf("project %v: %w", names, err)
			}
			subs = append(subs, md)
		}
	}
	rows, err := p.Compare(subs)
	if err != nil {
		return nil, err
	}

	refName := security.SanitizeFilename(strings.TrimSuffix(filepath.Base(o.Ref), filepath.Ext(o.Ref)))
	sum := &summary{Reference: refName, Method: string(method), Comparison: rows}
	for _, md := range subs {
		sum.Submodels = append(sum.Submodels, submodelSummary{
			Terms:        md.Structure.CommonTerms,
			Size:         md.ModelSize(),
			Loss:         md.DistToRefModel,
			NonConverged: md.NonConverged,
			ELPD:         md.ELPD,
		})
	}

	if o.DBPath != "" {
		if err := storeRuns(ctx, o.DBPath, sum, subs); err != nil {
			return nil, err
		}
	}
	if err := writeArtifacts(fsys, o, sum); err != nil {
		return nil, err
	}
	printComparison(stdout, rows)
	return sum, nil
}

func storeRuns(ctx context.Context, path string, sum *summary, subs []*model.ModelData) error {
	db, err := store.Open(path)
	if err != nil {
		return fmt.Errorf("open run database: %w", err)
	}
	defer db.Close()
	runs := store.NewRunStore(db)
	for i, md := range subs {
		r := store.NewRun(sum.Reference, sum.Method, md)
		if err := runs.Insert(ctx, r, md); err != nil {
			return fmt.Errorf("store run %v: %w", md.Structure.CommonTerms, err)
		}
		sum.Submodels[i].RunID = r.RunID
		monitoring.Debugf("stored run %s for %v", r.RunID, md.Structure.CommonTerms)
	}
	return nil
}

func writeArtifacts(fsys fsutil.FileSystem, o *options, sum *summary) error {
	for _, name := range []string{o.JSONName, o.PNGName, o.HTMLName} {
		if name == "" {
			continue
		}
		if err := security.ValidateArtifactName(o.OutDir, name); err != nil {
			return err
		}
	}
	if o.JSONName != "" {
		data, err := json.MarshalIndent(sum, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal summary: %w", err)
		}
		if _, err := fsutil.WriteArtifact(fsys, o.OutDir, o.JSONName, data); err != nil {
			return err
		}
	}
	if o.PNGName != "" {
		data, err := report.ComparePNG(sum.Comparison)
		if err != nil {
			return err
		}
		if _, err := fsutil.WriteArtifact(fsys, o.OutDir, o.PNGName, data); err != nil {
			return err
		}
	}
	if o.HTMLName != "" {
		data, err := report.CompareHTML(sum.Comparison)
		if err != nil {
			return err
		}
		if _, err := fsutil.WriteArtifact(fsys, o.OutDir, o.HTMLName, data); err != nil {
			return err
		}
	}
	return nil
}

func printComparison(w io.Writer, rows []elpd.Row) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "model\tsize\telpd_loo\tse\telpd_diff\tdse\twarning")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%d\t%.2f\t%.2f\t%.2f\t%.2f\t%t\n", r.Name, r.Size, r.ELPD, r.SE, r.Diff, r.DSE, r.Warning)
	}
	tw.Flush()
}

func setupLogging(w io.Writer, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05",
	})))
	monitoring.SetVerbose(verbose)
	monitoring.SetLogger(func(format string, v ...interface{}) {
		slog.Info(fmt.Sprintf(format, v...))
	})
}

func main() {
	os.Exit(realMain(os.Args[1:], os.Stdout, os.Stderr))
}

// realMain runs the command and returns the process exit code.
func realMain(args []string, stdout, stderr io.Writer) int {
	o, showVersion, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, err)
		return 2
	}
	if showVersion {
		fmt.Fprintln(stdout, version.String("projpred"))
		return 0
	}
	setupLogging(stderr, o.Verbose)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if _, err := run(ctx, fsutil.OSFileSystem{}, o, stdout); err != nil {
		slog.Error("projection failed", "err", err)
		return 1
	}
	return 0
}
