package main

import (
	"bytes"
	"context"
	"image/color"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/Lllllllleong/policylocaliser/internal/config"
	"github.com/Lllllllleong/policylocaliser/internal/docx/docxtest"
)

const schoolsYAML = `
- SchoolCode: SMC
  Title: St Mary's College
  ShortName: St Mary's
  PrincipalName: Jane Doe
- SchoolCode: SJP
  Title: St Joseph's Primary
  ShortName: St Joseph's
  PrincipalName: John Roe
`

func localDirs(t *testing.T) (templates, logos, output, schools string) {
	t.Helper()
	root := t.TempDir()
	t.Setenv("TMPDIR", t.TempDir())
	templates = filepath.Join(root, "templates")
	logos = filepath.Join(root, "logos")
	output = filepath.Join(root, "output")
	schools = filepath.Join(root, "schools.yaml")

	for _, dir := range []string{templates, logos} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	files := map[string][]byte{
		filepath.Join(templates, "Enrolment Policy.docx"): docxtest.Build(t, docxtest.SamplePolicy()),
		filepath.Join(logos, "SMC.png"):                   docxtest.PNG(t, color.Black),
		filepath.Join(logos, "SJP.png"):                   docxtest.PNG(t, color.White),
		schools:                                           []byte(schoolsYAML),
	}
	for path, data := range files {
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return templates, logos, output, schools
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLocalCommand(t *testing.T) {
	templates, logos, output, schools := localDirs(t)

	out, err := execute(t, "local", "--templates", templates, "--logos", logos, "--output", output, "--schools-json", schools)
	if err != nil {
		t.Fatalf("local: %v", err)
	}
	if !strings.Contains(out, "Total: 2 | Success: 2 | Failed: 0") {
		t.Errorf("output:\n%s", out)
	}
	for _, folder := range []string{"SMC - St Mary's College", "SJP - St Joseph's Primary"} {
		if _, err := os.Stat(filepath.Join(output, folder, "Enrolment Policy.docx")); err != nil {
			t.Errorf("missing output in %s: %v", folder, err)
		}
	}
}

func TestLocalCommandFilter(t *testing.T) {
	templates, logos, output, schools := localDirs(t)

	out, err := execute(t, "local", "--templates", templates, "--logos", logos, "--output", output, "--schools-json", schools, "--school", "SJP")
	if err != nil {
		t.Fatalf("local: %v", err)
	}
	if !strings.Contains(out, "Total: 1 | Success: 1 | Failed: 0") {
		t.Errorf("output:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(output, "SMC - St Mary's College")); !os.IsNotExist(err) {
		t.Errorf("filtered school was rendered: %v", err)
	}
}

func TestLocalCommandValidationFailure(t *testing.T) {
	templates, logos, output, schools := localDirs(t)
	if err := os.Remove(filepath.Join(logos, "SJP.png")); err != nil {
		t.Fatal(err)
	}

	_, err := execute(t, "local", "--templates", templates, "--logos", logos, "--output", output, "--schools-json", schools)
	if err == nil || !strings.Contains(err.Error(), "validation failed with 1 error(s)") {
		t.Errorf("error = %v", err)
	}
}

func TestApplyRemoteDefaults(t *testing.T) {
	for _, k := range []string{"STORAGE_BACKEND", "RECORD_SOURCE", "LOG_SINKS"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	cfg := config.Config{StorageBackend: config.BackendLocal, RecordSource: config.SourceFile, LogSinks: []string{config.SinkStdout}}
	applyRemoteDefaults(&cfg)
	if cfg.StorageBackend != config.BackendSharePoint || cfg.RecordSource != config.SourceSharePoint {
		t.Errorf("cfg = %+v", cfg)
	}
	if !slices.Equal(cfg.LogSinks, []string{"stdout", "sharepoint"}) {
		t.Errorf("sinks = %q", cfg.LogSinks)
	}

	t.Setenv("LOG_SINKS", "sqlite")
	cfg = config.Config{LogSinks: []string{config.SinkSQLite}}
	applyRemoteDefaults(&cfg)
	if !slices.Equal(cfg.LogSinks, []string{"stdout", "sqlite"}) {
		t.Errorf("sinks = %q", cfg.LogSinks)
	}
}
