// Package config reads the localiser settings from the environment once, so
// that constructors receive an explicit value instead of reading variables
// deep in the call chain.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/Lllllllleong/policylocaliser/internal/gcp"
	"github.com/Lllllllleong/policylocaliser/internal/graph"
	"github.com/Lllllllleong/policylocaliser/internal/objectstore"
	"github.com/Lllllllleong/policylocaliser/internal/pipeline"
	"github.com/Lllllllleong/policylocaliser/internal/sharing"
)

const (
	BackendLocal      = "local"
	BackendSharePoint = "sharepoint"
	BackendGCS        = "gcs"
	BackendS3         = "s3"

	SourceFile       = "file"
	SourceSharePoint = "sharepoint"
	SourceFirestore  = "firestore"

	SinkStdout     = "stdout"
	SinkSharePoint = "sharepoint"
	SinkFirestore  = "firestore"
	SinkSQLite     = "sqlite"
)

type Azure struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	SiteID       string
}

type Local struct {
	TemplateDir string
	LogoDir     string
	OutputDir   string
	SchoolsFile string
}

type Libraries struct {
	Templates     string
	Logos         string
	Output        string
	DirectoryList string
	LogList       string
}

type Buckets struct {
	Templates string
	Logos     string
	Output    string
}

type Config struct {
	Azure     Azure
	Local     Local
	Libraries Libraries
	Buckets   Buckets
	S3        objectstore.Config

	StorageBackend string
	RecordSource   string
	LogSinks       []string

	ProjectID         string
	SchoolsCollection string
	LogCollection     string
	SQLiteLogPath     string
	LogoConcurrency   int
	ShareScope        string
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	c := Config{
		Azure: Azure{
			TenantID:     String("AZURE_TENANT_ID", ""),
			ClientID:     String("AZURE_CLIENT_ID", ""),
			ClientSecret: String("AZURE_CLIENT_SECRET", ""),
			SiteID:       String("SHAREPOINT_SITE_ID", ""),
		},
		Local: Local{
			TemplateDir: String("LOCAL_TEMPLATE_DIR", "./data/templates"),
			LogoDir:     String("LOCAL_LOGO_DIR", "./data/logos"),
			OutputDir:   String("LOCAL_OUTPUT_DIR", "./data/output"),
			SchoolsFile: String("LOCAL_SCHOOLS_FILE", "./data/schools.json"),
		},
		Libraries: Libraries{
			Templates:     String("TEMPLATES_LIBRARY", pipeline.DefaultTemplatesDrive),
			Logos:         String("LOGOS_LIBRARY", pipeline.DefaultLogosDrive),
			Output:        String("OUTPUT_LIBRARY", pipeline.DefaultOutputDrive),
			DirectoryList: String("SCHOOL_DIRECTORY_LIST", graph.DefaultDirectoryList),
			LogList:       String("PROCESSING_LOG_LIST", graph.DefaultLogList),
		},
		Buckets: Buckets{
			Templates: String("TEMPLATES_BUCKET", ""),
			Logos:     String("LOGOS_BUCKET", ""),
			Output:    String("OUTPUT_BUCKET", ""),
		},
		S3: objectstore.Config{
			Endpoint:  String("S3_ENDPOINT", "localhost:9000"),
			AccessKey: String("S3_ACCESS_KEY", ""),
			SecretKey: String("S3_SECRET_KEY", ""),
			Region:    String("S3_REGION", "us-east-1"),
		},
		StorageBackend:    strings.ToLower(String("STORAGE_BACKEND", BackendLocal)),
		RecordSource:      strings.ToLower(String("RECORD_SOURCE", SourceFile)),
		LogSinks:          List("LOG_SINKS", []string{SinkStdout}),
		ProjectID:         String("PROJECT_ID", ""),
		SchoolsCollection: String("FIRESTORE_SCHOOLS_COLLECTION", gcp.DefaultSchoolsCollection),
		LogCollection:     String("FIRESTORE_LOG_COLLECTION", gcp.DefaultLogCollection),
		SQLiteLogPath:     String("SQLITE_LOG_PATH", "./data/processing_log.db"),
		ShareScope:        String("SHARE_SCOPE", sharing.ScopeOrganization),
	}

	var err error
	if c.S3.UseSSL, err = Bool("S3_USE_SSL", false); err != nil {
		return Config{}, err
	}
	if c.LogoConcurrency, err = Int("LOGO_CONCURRENCY", pipeline.DefaultLogoConcurrency); err != nil {
		return Config{}, err
	}
	for i, s := range c.LogSinks {
		c.LogSinks[i] = strings.ToLower(s)
	}
	return c, nil
}

// BucketsByDrive maps each library name to its bucket, skipping unset
// buckets. Both the gcs and s3 backends resolve drives through it.
func (c Config) BucketsByDrive() map[string]string {
	l, b := c.Libraries, c.Buckets
	m := make(map[string]string, 3)
	for drive, bucket := range map[string]string{l.Templates: b.Templates, l.Logos: b.Logos, l.Output: b.Output} {
		if bucket != "" {
			m[drive] = bucket
		}
	}
	return m
}

func (c Config) Pipeline() pipeline.Config {
	return pipeline.Config{
		TemplatesDrive:  c.Libraries.Templates,
		LogosDrive:      c.Libraries.Logos,
		OutputDrive:     c.Libraries.Output,
		LogoConcurrency: c.LogoConcurrency,
	}
}

// UsesGraph reports whether any selected component talks to Microsoft Graph.
func (c Config) UsesGraph() bool {
	return c.StorageBackend == BackendSharePoint || c.RecordSource == SourceSharePoint || slices.Contains(c.LogSinks, SinkSharePoint)
}

// UsesFirestore reports whether any selected component talks to Firestore.
func (c Config) UsesFirestore() bool {
	return c.RecordSource == SourceFirestore || slices.Contains(c.LogSinks, SinkFirestore)
}

// Validate reports every missing or unknown setting of the selected components.
func (c Config) Validate() error {
	var errs []error

	switch c.StorageBackend {
	case BackendLocal, BackendSharePoint:
	case BackendGCS:
		errs = append(errs, c.requireBuckets()...)
	case BackendS3:
		errs = append(errs, c.requireBuckets()...)
		if err := c.S3.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("s3: %w", err))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend))
	}

	switch c.RecordSource {
	case SourceFile, SourceSharePoint, SourceFirestore:
	default:
		errs = append(errs, fmt.Errorf("unknown RECORD_SOURCE %q", c.RecordSource))
	}

	for _, s := range c.LogSinks {
		switch s {
		case SinkStdout, SinkSharePoint, SinkFirestore, SinkSQLite:
		default:
			errs = append(errs, fmt.Errorf("unknown log sink %q", s))
		}
	}

	if c.UsesGraph() {
		if c.Azure.TenantID == "" || c.Azure.ClientID == "" || c.Azure.ClientSecret == "" {
			errs = append(errs, errors.New("AZURE_TENANT_ID, AZURE_CLIENT_ID and AZURE_CLIENT_SECRET must be set"))
		}
		if c.Azure.SiteID == "" {
			errs = append(errs, errors.New("SHAREPOINT_SITE_ID must be set"))
		}
	}
	if (c.UsesFirestore() || c.StorageBackend == BackendGCS) && c.ProjectID == "" {
		errs = append(errs, errors.New("PROJECT_ID must be set"))
	}
	if c.LogoConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("LOGO_CONCURRENCY must be positive, got %d", c.LogoConcurrency))
	}
	if !sharing.ValidScope(c.ShareScope) {
		errs = append(errs, fmt.Errorf("SHARE_SCOPE must be %q or %q, got %q", sharing.ScopeOrganization, sharing.ScopeAnonymous, c.ShareScope))
	}
	return errors.Join(errs...)
}

func (c Config) requireBuckets() []error {
	var errs []error
	for name, v := range map[string]string{"TEMPLATES_BUCKET": c.Buckets.Templates, "LOGOS_BUCKET": c.Buckets.Logos, "OUTPUT_BUCKET": c.Buckets.Output} {
		if v == "" {
			errs = append(errs, fmt.Errorf("%s must be set", name))
		}
	}
	slices.SortFunc(errs, func(a, b error) int { return strings.Compare(a.Error(), b.Error()) })
	return errs
}
