package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"go.uber.org/multierr"

	"github.com/a3tai/mcp-pdf-overlay/internal/fieldmap"
	"github.com/a3tai/mcp-pdf-overlay/internal/pdf"
)

type options struct {
	dir          string
	fieldMap     string
	data         string
	batch        string
	out          string
	outDir       string
	template     string
	requireValid bool
	workers      int
	report       bool
	verbose      bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	opts := &options{}
	flags := pflag.NewFlagSet("pdf_fill", pflag.ContinueOnError)
	flags.SetOutput(stderr)

	flags.StringVar(&opts.dir, "dir", ".", "Template directory; the field map's pdfTemplate is resolved against it")
	flags.StringVarP(&opts.fieldMap, "fieldmap", "m", "", "Field map file (.json, .yaml or .yml)")
	flags.StringVarP(&opts.data, "data", "d", "", "Form data file for a single fill")
	flags.StringVar(&opts.batch, "batch", "", "Directory of form data files to fill in one run")
	flags.StringVarP(&opts.out, "out", "o", "", "Output PDF for a single fill (default <template>-filled.pdf)")
	flags.StringVar(&opts.outDir, "outdir", "filled", "Output directory for a batch")
	flags.StringVarP(&opts.template, "template", "t", "", "Template overriding the field map's pdfTemplate")
	flags.BoolVar(&opts.requireValid, "require-valid", false, "Fail when a required field has no answer")
	flags.IntVar(&opts.workers, "workers", 4, "Concurrent fills in a batch")
	flags.BoolVar(&opts.report, "report", false, "Print the fill report as JSON")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Log skipped fields")

	flags.Usage = func() {
		fmt.Fprintf(stderr, "pdf_fill - overlay answers onto a flat PDF form\n\n")
		fmt.Fprintf(stderr, "USAGE:\n")
		fmt.Fprintf(stderr, "  pdf_fill --fieldmap MAP --data ANSWERS [--out FILE]\n")
		fmt.Fprintf(stderr, "  pdf_fill --fieldmap MAP --batch DIR [--outdir DIR] [--workers N]\n\n")
		fmt.Fprintf(stderr, "OPTIONS:\n")
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	switch {
	case opts.fieldMap == "":
		return nil, errors.New("--fieldmap is required")
	case opts.data == "" && opts.batch == "":
		return nil, errors.New("one of --data or --batch is required")
	case opts.data != "" && opts.batch != "":
		return nil, errors.New("--data and --batch cannot be combined")
	case opts.workers < 1:
		return nil, errors.New("--workers must be at least 1")
	}
	return opts, nil
}

func run(ctx context.Context, args []string, fs afero.Fs, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	fm, err := fieldmap.LoadFile(fs, opts.fieldMap)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	svc, err := pdf.NewService(pdf.Options{
		TemplateDirectory: opts.dir,
		Workers:           opts.workers,
		Fs:                fs,
		Logger:            logger,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if opts.batch != "" {
		return runBatch(ctx, svc, fs, fm, opts, stdout, stderr)
	}
	return runSingle(ctx, svc, fs, fm, opts, stdout, stderr)
}

func runSingle(ctx context.Context, svc *pdf.Service, fs afero.Fs, fm *fieldmap.FieldMap, opts *options, stdout, stderr io.Writer) int {
	data, err := fieldmap.LoadFormData(fs, opts.data)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	result, err := svc.FillTemplate(ctx, pdf.PDFFillTemplateRequest{
		FieldMapInput: pdf.FieldMapInput{FieldMap: fm},
		Template:      opts.template,
		FormData:      data,
		RequireValid:  opts.requireValid,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	out := opts.out
	if out == "" {
		out = pdf.OutputStem(result.Template) + "-filled.pdf"
	}
	if err := afero.WriteFile(fs, out, result.PDF, 0o644); err != nil {
		fmt.Fprintf(stderr, "Error: writing %s: %v\n", out, err)
		return 1
	}
	result.OutputPath = out

	if opts.report {
		return printJSON(stdout, stderr, result)
	}
	fmt.Fprintf(stdout, "%s: %d placed, %d skipped\n", out, len(result.Report.Placed), len(result.Report.Skipped))
	printMissing(stderr, result.Validation)
	return 0
}

func runBatch(ctx context.Context, svc *pdf.Service, fs afero.Fs, fm *fieldmap.FieldMap, opts *options, stdout, stderr io.Writer) int {
	jobs, err := loadBatch(fs, opts.batch, fm, opts)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if len(jobs) == 0 {
		fmt.Fprintf(stderr, "Error: no form data files in %s\n", opts.batch)
		return 1
	}

	if err := fs.MkdirAll(opts.outDir, 0o755); err != nil {
		fmt.Fprintf(stderr, "Error: creating %s: %v\n", opts.outDir, err)
		return 1
	}

	results, batchErr := svc.FillBatch(ctx, jobs)
	for i := range results {
		r := &results[i]
		if r.Err != nil {
			continue
		}
		path := filepath.Join(opts.outDir, r.ID+".pdf")
		if err := afero.WriteFile(fs, path, r.Result.PDF, 0o644); err != nil {
			batchErr = multierr.Append(batchErr, fmt.Errorf("job %s: writing %s: %w", r.ID, path, err))
			r.Err = err
			r.Error = err.Error()
			continue
		}
		r.Result.OutputPath = path
	}

	if opts.report {
		if code := printJSON(stdout, stderr, results); code != 0 {
			return code
		}
	} else {
		for _, r := range results {
			if r.Err != nil {
				fmt.Fprintf(stdout, "%s: failed\n", r.ID)
				continue
			}
			fmt.Fprintf(stdout, "%s: %d placed, %d skipped\n",
				r.Result.OutputPath, len(r.Result.Report.Placed), len(r.Result.Report.Skipped))
		}
	}

	for _, err := range multierr.Errors(batchErr) {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	if batchErr != nil {
		return 1
	}
	return 0
}

// loadBatch reads every .json, .yaml and .yml file in dir as one job, named
// after the file, in name order
func loadBatch(fs afero.Fs, dir string, fm *fieldmap.FieldMap, opts *options) ([]pdf.BatchJob, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("reading batch directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var (
		jobs []pdf.BatchJob
		errs error
	)
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".json" && ext != ".yaml" && ext != ".yml" {
			continue
		}

		data, err := fieldmap.LoadFormData(fs, filepath.Join(dir, entry.Name()))
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		jobs = append(jobs, pdf.BatchJob{
			ID: strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())),
			Request: pdf.PDFFillTemplateRequest{
				FieldMapInput: pdf.FieldMapInput{FieldMap: fm},
				Template:      opts.template,
				FormData:      data,
				RequireValid:  opts.requireValid,
			},
		})
	}
	return jobs, errs
}

func printJSON(stdout, stderr io.Writer, v any) int {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(stderr, "Error: encoding report: %v\n", err)
		return 1
	}
	return 0
}

func printMissing(w io.Writer, v *fieldmap.ValidationResult) {
	if v == nil || v.IsValid {
		return
	}
	ids := make([]string, 0, len(v.Errors))
	for id := range v.Errors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(w, "warning: %s\n", v.Errors[id])
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], afero.NewOsFs(), os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
