// Package pipeline runs one localisation pass: every selected school against
// every selected policy template, with validation up front, per-pair failure
// isolation, upload to the output drive and a single write to the log sinks.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/policylocaliser/internal/engine"
	"github.com/Lllllllleong/policylocaliser/internal/models"
	"github.com/Lllllllleong/policylocaliser/internal/storage"
)

const (
	DefaultTemplatesDrive  = "Policy Templates"
	DefaultLogosDrive      = "School Logos"
	DefaultOutputDrive     = "Localised Policies"
	DefaultLogoConcurrency = 8
)

// RecordSource supplies the schools of a run.
type RecordSource interface {
	Records(ctx context.Context) ([]models.SchoolRecord, error)
}

// Sink persists the results of a run.
type Sink interface {
	WriteResults(ctx context.Context, results []models.ProcessingResult) error
}

// Filter narrows a run. Empty slices select everything.
type Filter struct {
	Schools   []string `json:"schools"`
	Templates []string `json:"templates"`
}

// ValidationFailedError aborts a run before anything is rendered.
type ValidationFailedError struct {
	Errors []engine.ValidationError
}

func (e *ValidationFailedError) Error() string {
	return fmt.Sprintf("validation failed with %d error(s)", len(e.Errors))
}

// Config names the drives a run reads from and writes to.
type Config struct {
	TemplatesDrive  string
	LogosDrive      string
	OutputDrive     string
	LogoConcurrency int
}

func (c Config) withDefaults() Config {
	if c.TemplatesDrive == "" {
		c.TemplatesDrive = DefaultTemplatesDrive
	}
	if c.LogosDrive == "" {
		c.LogosDrive = DefaultLogosDrive
	}
	if c.OutputDrive == "" {
		c.OutputDrive = DefaultOutputDrive
	}
	if c.LogoConcurrency <= 0 {
		c.LogoConcurrency = DefaultLogoConcurrency
	}
	return c
}

// Pipeline holds the collaborators of a run. It keeps no state between runs.
type Pipeline struct {
	config   Config
	records  RecordSource
	storage  storage.Backend
	sink     Sink
	renderer *engine.Renderer
	logger   *slog.Logger
	newRunID func() string
}

// New returns a Pipeline. A nil sink discards results and a nil logger uses slog.Default.
func New(cfg Config, records RecordSource, backend storage.Backend, sink Sink, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = MultiSink{}
	}
	return &Pipeline{
		config:   cfg.withDefaults(),
		records:  records,
		storage:  backend,
		sink:     sink,
		renderer: engine.NewRenderer(nil, logger),
		logger:   logger,
		newRunID: NewRunID,
	}
}

// NewRunID returns a short opaque identifier for a run.
func NewRunID() string {
	return uuid.NewString()[:8]
}

type inputs struct {
	schools       []models.SchoolRecord
	templates     []models.Template
	templatePaths []string
	logoDir       string
	output        storage.Drive
}

// Run processes the cross product of schools and templates. Individual pair
// failures are reported in the results; an error is only returned when the
// run could not start, failed validation, or ctx was cancelled.
func (p *Pipeline) Run(ctx context.Context, f Filter) ([]models.ProcessingResult, error) {
	runID := p.newRunID()
	logCtx := p.logger.With("runId", runID)
	logCtx.Info("Starting localisation run", "schoolFilter", f.Schools, "policyFilter", f.Templates)

	scratch, err := os.MkdirTemp("", "policy-localiser-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	in, err := p.resolve(ctx, logCtx, f, scratch)
	if err != nil {
		logCtx.Error("Failed to resolve run inputs", "error", err)
		return nil, err
	}

	blocking, advisory := engine.Partition(engine.Validate(in.templatePaths, in.logoDir, in.schools))
	for _, w := range advisory {
		logCtx.Warn(w.String())
	}
	if len(blocking) > 0 {
		for _, e := range blocking {
			logCtx.Error(e.String())
		}
		return nil, &ValidationFailedError{Errors: blocking}
	}

	total := len(in.schools) * len(in.templates)
	logCtx.Info("Validation passed", "schools", len(in.schools), "templates", len(in.templates), "documents", total)

	results := make([]models.ProcessingResult, 0, total)
	n := 0
	for _, school := range in.schools {
		folder := school.FolderName()
		logo := filepath.Join(in.logoDir, engine.LogoFileName(school.Code()))
		var ensured *storage.Item
		var ensureErr error

		for i, tpl := range in.templates {
			if err := ctx.Err(); err != nil {
				logCtx.Warn("Run cancelled", "completed", n, "total", total)
				return nil, err
			}
			n++
			logCtx.Info(fmt.Sprintf("[%d/%d] %s / %s", n, total, school.Code(), tpl.Name))

			outPath := filepath.Join(scratch, "output", folder, tpl.FileName)
			res := p.renderer.Render(in.templatePaths[i], logo, school, outPath, runID)
			if res.Status != models.StatusSuccess {
				results = append(results, res)
				continue
			}

			if ensured == nil && ensureErr == nil {
				item, err := in.output.EnsureFolder(ctx, folder)
				if err != nil {
					ensureErr = err
					logCtx.Error("Failed to ensure output folder", "folder", folder, "error", err)
				} else {
					ensured = &item
				}
			}
			if ensureErr != nil {
				results = append(results, res.Failed(fmt.Sprintf("failed to ensure folder %q: %v", folder, ensureErr)))
				continue
			}

			if err := p.upload(ctx, in.output, folder, tpl.FileName, outPath); err != nil {
				logCtx.Error("Upload failed", "schoolCode", school.Code(), "policy", tpl.Name, "error", err)
				res = res.Failed(err.Error())
			}
			results = append(results, res)
		}
	}

	if err := p.sink.WriteResults(ctx, results); err != nil {
		logCtx.Error("Failed to write processing log", "error", err)
	}

	s := models.Summarize(results)
	logCtx.Info("Run complete", "processed", s.Processed, "success", s.Success, "failed", s.Failed)
	return results, nil
}

func (p *Pipeline) upload(ctx context.Context, drive storage.Drive, folder, name, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read rendered document: %w", err)
	}
	if _, err := drive.Put(ctx, folder, name, data); err != nil {
		return fmt.Errorf("failed to upload %s/%s: %w", folder, name, err)
	}
	return nil
}

// resolve loads schools, lists and downloads templates, and prefetches logos
// into scratch. Filters are applied before anything is downloaded.
func (p *Pipeline) resolve(ctx context.Context, logCtx *slog.Logger, f Filter, scratch string) (*inputs, error) {
	schools, err := p.records.Records(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load schools: %w", err)
	}
	schools = filterSchools(logCtx, schools, f.Schools)

	templatesDrive, err := p.storage.Drive(ctx, p.config.TemplatesDrive)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve templates drive: %w", err)
	}
	logosDrive, err := p.storage.Drive(ctx, p.config.LogosDrive)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve logos drive: %w", err)
	}
	output, err := p.storage.Drive(ctx, p.config.OutputDrive)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output drive: %w", err)
	}

	items, err := templatesDrive.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	templates := filterTemplates(logCtx, storage.Templates(items), f.Templates)

	in := &inputs{
		schools:   schools,
		templates: make([]models.Template, 0, len(templates)),
		logoDir:   filepath.Join(scratch, "logos"),
		output:    output,
	}
	tplDir := filepath.Join(scratch, "templates")
	for _, dir := range []string{tplDir, in.logoDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create scratch directory: %w", err)
		}
	}

	for _, it := range templates {
		path := filepath.Join(tplDir, it.Name)
		data, err := templatesDrive.Get(ctx, it)
		if err == nil {
			err = os.WriteFile(path, data, 0o644)
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			logCtx.Error("Failed to download template", "template", it.Name, "error", err)
		}
		in.templates = append(in.templates, models.Template{Name: engine.PolicyName(it.Name), FileName: it.Name, ItemID: it.ID})
		in.templatePaths = append(in.templatePaths, path)
	}
	logCtx.Info("Resolved templates", "count", len(in.templates))

	if err := p.prefetchLogos(ctx, logCtx, logosDrive, schools, in.logoDir); err != nil {
		return nil, err
	}
	return in, nil
}

// prefetchLogos downloads each school's logo concurrently. A logo that cannot
// be fetched is left missing for validation to report.
func (p *Pipeline) prefetchLogos(ctx context.Context, logCtx *slog.Logger, drive storage.Drive, schools []models.SchoolRecord, dir string) error {
	seen := make(map[string]bool, len(schools))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.LogoConcurrency)

	for _, s := range schools {
		name := engine.LogoFileName(s.Code())
		if seen[name] {
			continue
		}
		seen[name] = true

		g.Go(func() error {
			data, err := drive.GetByName(gctx, name)
			if err == nil {
				err = os.WriteFile(filepath.Join(dir, name), data, 0o644)
			}
			if err != nil {
				level := slog.LevelError
				if errors.Is(err, storage.ErrNotFound) {
					level = slog.LevelWarn
				}
				logCtx.Log(gctx, level, "Failed to download logo", "logo", name, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return ctx.Err()
}

func filterSchools(logCtx *slog.Logger, schools []models.SchoolRecord, codes []string) []models.SchoolRecord {
	if len(codes) == 0 {
		return schools
	}
	var out []models.SchoolRecord
	for _, s := range schools {
		if slices.Contains(codes, s.Code()) {
			out = append(out, s)
		}
	}
	for _, c := range codes {
		if !slices.ContainsFunc(schools, func(s models.SchoolRecord) bool { return s.Code() == c }) {
			logCtx.Warn("School filter matched nothing", "schoolCode", c)
		}
	}
	return out
}

func filterTemplates(logCtx *slog.Logger, items []storage.Item, names []string) []storage.Item {
	if len(names) == 0 {
		return items
	}
	var out []storage.Item
	for _, it := range items {
		if slices.Contains(names, engine.PolicyName(it.Name)) {
			out = append(out, it)
		}
	}
	for _, n := range names {
		if !slices.ContainsFunc(items, func(it storage.Item) bool { return engine.PolicyName(it.Name) == n }) {
			logCtx.Warn("Policy filter matched nothing", "policy", n)
		}
	}
	return out
}

// MultiSink writes to every sink, even after one fails.
type MultiSink []Sink

func (m MultiSink) WriteResults(ctx context.Context, results []models.ProcessingResult) error {
	var errs []error
	for _, s := range m {
		if err := s.WriteResults(ctx, results); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
