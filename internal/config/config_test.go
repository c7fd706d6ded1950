package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func TestEnvHelpers(t *testing.T) {
	t.Setenv("PL_STRING", "value")
	t.Setenv("PL_BOOL", "true")
	t.Setenv("PL_INT", "12")
	t.Setenv("PL_LIST", " stdout, ,sqlite ")
	t.Setenv("PL_BAD_INT", "twelve")

	if got := String("PL_STRING", "def"); got != "value" {
		t.Errorf("String = %q", got)
	}
	if got := String("PL_UNSET", "def"); got != "def" {
		t.Errorf("String default = %q", got)
	}
	if got, err := Bool("PL_BOOL", false); err != nil || !got {
		t.Errorf("Bool = %v, %v", got, err)
	}
	if got, err := Int("PL_INT", 0); err != nil || got != 12 {
		t.Errorf("Int = %v, %v", got, err)
	}
	if _, err := Int("PL_BAD_INT", 0); err == nil || !strings.Contains(err.Error(), "PL_BAD_INT") {
		t.Errorf("Int error = %v", err)
	}
	if got := List("PL_LIST", nil); !slices.Equal(got, []string{"stdout", "sqlite"}) {
		t.Errorf("List = %q", got)
	}
	if got := List("PL_UNSET", []string{"x"}); !slices.Equal(got, []string{"x"}) {
		t.Errorf("List default = %q", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"STORAGE_BACKEND", "RECORD_SOURCE", "LOG_SINKS", "LOGO_CONCURRENCY", "SHARE_SCOPE", "TEMPLATES_LIBRARY"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.StorageBackend != BackendLocal || c.RecordSource != SourceFile {
		t.Errorf("backend = %q source = %q", c.StorageBackend, c.RecordSource)
	}
	if !slices.Equal(c.LogSinks, []string{SinkStdout}) {
		t.Errorf("sinks = %q", c.LogSinks)
	}
	if c.LogoConcurrency != 8 || c.ShareScope != "organization" {
		t.Errorf("concurrency = %d scope = %q", c.LogoConcurrency, c.ShareScope)
	}
	p := c.Pipeline()
	if p.TemplatesDrive != "Policy Templates" || p.LogosDrive != "School Logos" || p.OutputDrive != "Localised Policies" {
		t.Errorf("pipeline config = %+v", p)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Validate defaults: %v", err)
	}
}

func TestBucketsByDrive(t *testing.T) {
	t.Setenv("TEMPLATES_BUCKET", "tpl")
	t.Setenv("LOGOS_BUCKET", "")
	t.Setenv("OUTPUT_BUCKET", "out")
	t.Setenv("OUTPUT_LIBRARY", "Generated")

	c, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	buckets := c.BucketsByDrive()
	if buckets["Policy Templates"] != "tpl" || buckets["Generated"] != "out" {
		t.Errorf("buckets = %v", buckets)
	}
	if _, ok := buckets["School Logos"]; ok {
		t.Errorf("unset bucket mapped: %v", buckets)
	}
}

func TestLoadRejectsBadNumbers(t *testing.T) {
	t.Setenv("LOGO_CONCURRENCY", "many")
	if _, err := Load(); err == nil {
		t.Error("expected error for LOGO_CONCURRENCY")
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			StorageBackend:  BackendLocal,
			RecordSource:    SourceFile,
			LogSinks:        []string{SinkStdout},
			LogoConcurrency: 8,
			ShareScope:      "organization",
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   []string
	}{
		{"valid", func(*Config) {}, nil},
		{"unknown backend", func(c *Config) { c.StorageBackend = "ftp" }, []string{`unknown STORAGE_BACKEND "ftp"`}},
		{"unknown source", func(c *Config) { c.RecordSource = "csv" }, []string{`unknown RECORD_SOURCE "csv"`}},
		{"unknown sink", func(c *Config) { c.LogSinks = []string{"stdout", "kafka"} }, []string{`unknown log sink "kafka"`}},
		{"sharepoint needs credentials", func(c *Config) { c.StorageBackend = BackendSharePoint }, []string{"AZURE_TENANT_ID", "SHAREPOINT_SITE_ID"}},
		{"sharepoint sink needs credentials", func(c *Config) { c.LogSinks = []string{SinkSharePoint} }, []string{"AZURE_CLIENT_SECRET"}},
		{"firestore needs project", func(c *Config) { c.RecordSource = SourceFirestore }, []string{"PROJECT_ID"}},
		{"gcs needs buckets and project", func(c *Config) { c.StorageBackend = BackendGCS }, []string{"LOGOS_BUCKET", "OUTPUT_BUCKET", "TEMPLATES_BUCKET", "PROJECT_ID"}},
		{"s3 needs keys", func(c *Config) {
			c.StorageBackend = BackendS3
			c.Buckets = Buckets{Templates: "a", Logos: "b", Output: "c"}
			c.S3.Endpoint = "localhost:9000"
			c.S3.Region = "us-east-1"
		}, []string{"s3: access key is required"}},
		{"bad concurrency", func(c *Config) { c.LogoConcurrency = 0 }, []string{"LOGO_CONCURRENCY"}},
		{"bad scope", func(c *Config) { c.ShareScope = "users" }, []string{"SHARE_SCOPE"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := base()
			tc.mutate(&c)
			err := c.Validate()
			if tc.want == nil {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			for _, w := range tc.want {
				if !strings.Contains(err.Error(), w) {
					t.Errorf("error %q missing %q", err, w)
				}
			}
		})
	}
}

func TestLoadDotenv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("PL_DOTENV_ONLY=from-file\nPL_DOTENV_SET=from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PL_DOTENV_SET", "from-env")
	t.Setenv("PL_DOTENV_ONLY", "")
	os.Unsetenv("PL_DOTENV_ONLY")

	if err := LoadDotenv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("LoadDotenv: %v", err)
	}
	if got := os.Getenv("PL_DOTENV_ONLY"); got != "from-file" {
		t.Errorf("PL_DOTENV_ONLY = %q", got)
	}
	if got := os.Getenv("PL_DOTENV_SET"); got != "from-env" {
		t.Errorf("existing variable overridden: %q", got)
	}
}
