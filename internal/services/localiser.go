package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"cloud.google.com/go/firestore"

	"github.com/Lllllllleong/policylocaliser/internal/config"
	"github.com/Lllllllleong/policylocaliser/internal/gcp"
	"github.com/Lllllllleong/policylocaliser/internal/graph"
	"github.com/Lllllllleong/policylocaliser/internal/models"
	"github.com/Lllllllleong/policylocaliser/internal/objectstore"
	"github.com/Lllllllleong/policylocaliser/internal/pipeline"
	"github.com/Lllllllleong/policylocaliser/internal/records"
	"github.com/Lllllllleong/policylocaliser/internal/report"
	"github.com/Lllllllleong/policylocaliser/internal/sharing"
	"github.com/Lllllllleong/policylocaliser/internal/sqlitelog"
	"github.com/Lllllllleong/policylocaliser/internal/storage"
	"github.com/Lllllllleong/policylocaliser/internal/storage/local"
)

// ErrSharingUnsupported is returned by Share and Invite when the storage
// backend has no notion of sharing links.
var ErrSharingUnsupported = errors.New("sharing requires the sharepoint storage backend")

// LocaliserFunction holds the wired collaborators of the localise service.
type LocaliserFunction struct {
	config   config.Config
	pipeline *pipeline.Pipeline
	records  pipeline.RecordSource
	backend  storage.Backend
	sinks    pipeline.MultiSink
	sharing  *sharing.FolderSharing
	logger   *slog.Logger
	closers  []io.Closer
}

// NewLocaliser validates cfg and connects every component it selects. The
// "stdout" sink writes its table to stdout.
func NewLocaliser(ctx context.Context, cfg config.Config, stdout io.Writer, logger *slog.Logger) (*LocaliserFunction, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	f := &LocaliserFunction{config: cfg, logger: logger}
	if err := f.wire(ctx, stdout); err != nil {
		f.Close()
		return nil, err
	}
	f.pipeline = pipeline.New(cfg.Pipeline(), f.records, f.backend, f.sinks, logger)
	return f, nil
}

// NewLocaliserFromEnv loads the configuration from the environment, with
// variables from a .env file in the working directory filling any gaps.
func NewLocaliserFromEnv(ctx context.Context, stdout io.Writer, logger *slog.Logger) (*LocaliserFunction, error) {
	if err := config.LoadDotenv(".env"); err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return NewLocaliser(ctx, cfg, stdout, logger)
}

// wire builds clients only for the services the configuration selects.
func (f *LocaliserFunction) wire(ctx context.Context, stdout io.Writer) error {
	cfg := f.config

	var graphClient *graph.Client
	if cfg.UsesGraph() {
		tokens, err := graph.NewClientCredentials(cfg.Azure.TenantID, cfg.Azure.ClientID, cfg.Azure.ClientSecret)
		if err != nil {
			return err
		}
		graphClient = graph.NewClient(tokens, graph.WithLogger(f.logger))
	}
	lists := func() *graph.Lists {
		return graph.NewLists(graphClient, cfg.Azure.SiteID, cfg.Libraries.DirectoryList, cfg.Libraries.LogList)
	}

	var fsClient *firestore.Client
	if cfg.UsesFirestore() {
		c, err := gcp.NewFirestoreClient(ctx, cfg.ProjectID)
		if err != nil {
			return err
		}
		fsClient = c
		f.closers = append(f.closers, c)
	}

	switch cfg.StorageBackend {
	case config.BackendLocal:
		f.backend = local.NewBackend(map[string]string{
			cfg.Libraries.Templates: cfg.Local.TemplateDir,
			cfg.Libraries.Logos:     cfg.Local.LogoDir,
			cfg.Libraries.Output:    cfg.Local.OutputDir,
		})
	case config.BackendSharePoint:
		f.backend = graph.NewDrives(graphClient, cfg.Azure.SiteID)
		f.sharing = sharing.NewFolderSharing(graph.NewLinker(graphClient), f.logger)
	case config.BackendGCS:
		c, err := gcp.NewStorageClient(ctx)
		if err != nil {
			return err
		}
		f.closers = append(f.closers, c)
		f.backend = gcp.NewBucketBackend(c, cfg.BucketsByDrive(), f.logger)
	case config.BackendS3:
		s3 := cfg.S3
		s3.Buckets = cfg.BucketsByDrive()
		c, err := objectstore.NewMinIOClient(s3)
		if err != nil {
			return fmt.Errorf("failed to create object store client: %w", err)
		}
		f.backend = objectstore.NewBackend(c, s3.Buckets)
	}

	switch cfg.RecordSource {
	case config.SourceFile:
		f.records = records.File{Path: cfg.Local.SchoolsFile}
	case config.SourceSharePoint:
		f.records = lists()
	case config.SourceFirestore:
		f.records = gcp.NewFirestoreRecords(fsClient, cfg.SchoolsCollection, f.logger)
	}

	for _, name := range cfg.LogSinks {
		switch name {
		case config.SinkStdout:
			if stdout != nil {
				f.sinks = append(f.sinks, report.TableSink{W: stdout})
			}
		case config.SinkSharePoint:
			f.sinks = append(f.sinks, lists())
		case config.SinkFirestore:
			f.sinks = append(f.sinks, gcp.NewFirestoreLog(fsClient, cfg.LogCollection, f.logger))
		case config.SinkSQLite:
			s, err := sqlitelog.Open(cfg.SQLiteLogPath)
			if err != nil {
				return err
			}
			f.closers = append(f.closers, s)
			f.sinks = append(f.sinks, s)
		}
	}
	return nil
}

// Run executes one localisation pass.
func (f *LocaliserFunction) Run(ctx context.Context, filter pipeline.Filter) ([]models.ProcessingResult, error) {
	return f.pipeline.Run(ctx, filter)
}

// Process runs the pipeline for a trigger request and returns its counts.
func (f *LocaliserFunction) Process(ctx context.Context, req *models.LocaliseRequest) (*models.LocaliseResponse, error) {
	filter := pipeline.Filter{Schools: req.Schools, Templates: req.Templates}
	results, err := f.pipeline.Run(ctx, filter)
	if err != nil {
		f.logger.Error("Localisation run failed", "error", err)
		return nil, err
	}
	s := models.Summarize(results)
	return &models.LocaliseResponse{Processed: s.Processed, Success: s.Success, Failed: s.Failed}, nil
}

// Share creates a view link on the output folder of every selected school.
func (f *LocaliserFunction) Share(ctx context.Context, codes []string, scope string) (map[string]string, error) {
	if f.sharing == nil {
		return nil, ErrSharingUnsupported
	}
	drive, schools, err := f.shareTargets(ctx, codes)
	if err != nil {
		return nil, err
	}
	return f.sharing.ShareAll(ctx, drive, schools, scope)
}

// Invite grants every selected school's email role on its output folder.
func (f *LocaliserFunction) Invite(ctx context.Context, codes []string, role, message string) (map[string]error, error) {
	if f.sharing == nil {
		return nil, ErrSharingUnsupported
	}
	drive, schools, err := f.shareTargets(ctx, codes)
	if err != nil {
		return nil, err
	}
	return f.sharing.InviteAll(ctx, drive, schools, role, message)
}

func (f *LocaliserFunction) shareTargets(ctx context.Context, codes []string) (storage.Drive, []models.SchoolRecord, error) {
	all, err := f.records.Records(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load schools: %w", err)
	}
	schools := all
	if len(codes) > 0 {
		schools = slices.DeleteFunc(slices.Clone(all), func(s models.SchoolRecord) bool {
			return !slices.Contains(codes, s.Code())
		})
	}
	drive, err := f.backend.Drive(ctx, f.config.Libraries.Output)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve output drive: %w", err)
	}
	return drive, schools, nil
}

// Close releases every client opened by NewLocaliser.
func (f *LocaliserFunction) Close() error {
	var errs []error
	for i := len(f.closers) - 1; i >= 0; i-- {
		if err := f.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	f.closers = nil
	return errors.Join(errs...)
}
