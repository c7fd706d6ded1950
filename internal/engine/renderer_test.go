package engine

import (
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Lllllllleong/policylocaliser/internal/docx/docxtest"
	"github.com/Lllllllleong/policylocaliser/internal/models"
)

type fixture struct {
	template string
	logoDir  string
	outDir   string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		template: filepath.Join(dir, "templates", "Enrolment Policy.docx"),
		logoDir:  filepath.Join(dir, "logos"),
		outDir:   filepath.Join(dir, "output"),
	}
	if err := os.MkdirAll(filepath.Dir(f.template), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(f.template, docxtest.Build(t, docxtest.SamplePolicy()), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(f.logoDir, 0o755); err != nil {
		t.Fatal(err)
	}
	return f
}

func (f fixture) logo(t *testing.T, code string) string {
	t.Helper()
	p := filepath.Join(f.logoDir, LogoFileName(code))
	if err := os.WriteFile(p, docxtest.PNG(t, color.RGBA{B: 0xFF, A: 0xFF}), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func (f fixture) output(s models.SchoolRecord) string {
	return filepath.Join(f.outDir, s.FolderName(), "Enrolment Policy.docx")
}

func TestRenderSuccess(t *testing.T) {
	f := newFixture(t)
	s := school("SMC", "St Mary's College")
	r := NewRenderer(nil, nil)

	res := r.Render(f.template, f.logo(t, "SMC"), s, f.output(s), "run12345")
	if res.Status != models.StatusSuccess {
		t.Fatalf("status = %s: %s", res.Status, res.ErrorMessage)
	}
	if res.RunID != "run12345" || res.SchoolCode != "SMC" || res.PolicyName != "Enrolment Policy" {
		t.Errorf("unexpected result identity: %+v", res)
	}
	if res.DurationSeconds < 0 {
		t.Errorf("duration = %v", res.DurationSeconds)
	}

	out, err := os.ReadFile(f.output(s))
	if err != nil {
		t.Fatalf("output not written: %v", err)
	}
	if text := docxtest.Text(t, out, "word/document.xml"); !strings.Contains(text, "St Mary's College Enrolment Policy") {
		t.Errorf("title not substituted:\n%s", text)
	}
}

func TestRenderWarningFieldStillSucceeds(t *testing.T) {
	f := newFixture(t)
	s := school("SMC", "St Mary's College")
	s.ShortName = ""

	res := NewRenderer(nil, nil).Render(f.template, f.logo(t, "SMC"), s, f.output(s), "r")
	if res.Status != models.StatusSuccess {
		t.Fatalf("status = %s: %s", res.Status, res.ErrorMessage)
	}
}

func TestRenderDistinctOutputsPerSchool(t *testing.T) {
	f := newFixture(t)
	r := NewRenderer(nil, nil)
	a := school("SMC", "St Mary's College")
	b := school("SJP", "St Joseph's Primary")

	for _, s := range []models.SchoolRecord{a, b} {
		if res := r.Render(f.template, f.logo(t, s.Code()), s, f.output(s), "r"); res.Status != models.StatusSuccess {
			t.Fatalf("%s: %s", s.Code(), res.ErrorMessage)
		}
	}

	textOf := func(s models.SchoolRecord) string {
		data, err := os.ReadFile(f.output(s))
		if err != nil {
			t.Fatal(err)
		}
		return docxtest.Text(t, data, "word/document.xml")
	}
	ta, tb := textOf(a), textOf(b)
	if ta == tb {
		t.Fatal("outputs for different schools are identical")
	}
	for _, text := range []string{ta, tb} {
		if strings.Contains(text, "{{") {
			t.Errorf("residual placeholder in output:\n%s", text)
		}
	}
	if strings.Contains(ta, "St Joseph") || strings.Contains(tb, "St Mary") {
		t.Error("values leaked between schools")
	}
}

func TestRenderConcurrentCallsDoNotShareState(t *testing.T) {
	f := newFixture(t)
	r := NewRenderer(nil, nil)
	codes := []string{"A1", "B2", "C3", "D4"}

	var wg sync.WaitGroup
	for _, code := range codes {
		s := school(code, "School "+code)
		logo := f.logo(t, code)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if res := r.Render(f.template, logo, s, f.output(s), "r"); res.Status != models.StatusSuccess {
				t.Errorf("%s: %s", s.Code(), res.ErrorMessage)
			}
		}()
	}
	wg.Wait()

	for _, code := range codes {
		s := school(code, "School "+code)
		data, err := os.ReadFile(f.output(s))
		if err != nil {
			t.Fatal(err)
		}
		table := docxtest.Text(t, data, "word/document.xml")
		if !strings.Contains(table, "School "+code+" Enrolment Policy") {
			t.Errorf("%s output has wrong title:\n%s", code, table)
		}
	}
}

func TestRenderOverwritesPreviousOutput(t *testing.T) {
	f := newFixture(t)
	s := school("SMC", "St Mary's College")
	r := NewRenderer(nil, nil)
	logo := f.logo(t, "SMC")

	for i := 0; i < 2; i++ {
		if res := r.Render(f.template, logo, s, f.output(s), "r"); res.Status != models.StatusSuccess {
			t.Fatalf("run %d: %s", i, res.ErrorMessage)
		}
	}
}

func TestRenderFailuresBecomeResults(t *testing.T) {
	f := newFixture(t)
	s := school("SMC", "St Mary's College")
	logo := f.logo(t, "SMC")

	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name     string
		template string
		logo     string
		output   string
		want     string
	}{
		{"missing logo", f.template, filepath.Join(f.logoDir, "nope.png"), f.output(s), "failed to read logo"},
		{"missing template", filepath.Join(t.TempDir(), "x.docx"), logo, f.output(s), "failed to read template"},
		{"unwritable output", f.template, logo, filepath.Join(blocker, "sub", "out.docx"), "failed to create output folder"},
	}
	r := NewRenderer(nil, nil)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := r.Render(tc.template, tc.logo, s, tc.output, "r")
			if res.Status != models.StatusError {
				t.Fatalf("status = %s, want Error", res.Status)
			}
			if !strings.Contains(res.ErrorMessage, tc.want) {
				t.Errorf("message = %q, want it to contain %q", res.ErrorMessage, tc.want)
			}
		})
	}
}

func TestRenderMalformedPlaceholder(t *testing.T) {
	f := newFixture(t)
	bad := docxtest.Build(t, docxtest.Template{Paragraphs: [][]string{{"Hello {{Nickname}}"}}})
	if err := os.WriteFile(f.template, bad, 0o644); err != nil {
		t.Fatal(err)
	}
	s := school("SMC", "St Mary's College")

	res := NewRenderer(nil, nil).Render(f.template, f.logo(t, "SMC"), s, f.output(s), "r")
	if res.Status != models.StatusError || !strings.Contains(res.ErrorMessage, "Nickname") {
		t.Errorf("result = %+v", res)
	}
	if _, err := os.Stat(f.output(s)); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("output should not exist after a failed render, stat err = %v", err)
	}
}

func TestRenderRecoversEnginePanic(t *testing.T) {
	f := newFixture(t)
	s := school("SMC", "St Mary's College")
	r := NewRenderer(EngineFunc(func([]byte, map[string][]byte, map[string]string) ([]byte, error) {
		panic("corrupt template")
	}), nil)

	res := r.Render(f.template, f.logo(t, "SMC"), s, f.output(s), "r")
	if res.Status != models.StatusError || !strings.Contains(res.ErrorMessage, "corrupt template") {
		t.Errorf("result = %+v", res)
	}
}

func TestRenderDurationRounded(t *testing.T) {
	f := newFixture(t)
	s := school("SMC", "St Mary's College")
	r := NewRenderer(EngineFunc(func(tpl []byte, _ map[string][]byte, _ map[string]string) ([]byte, error) {
		return tpl, nil
	}), nil)
	base := time.Date(2025, 1, 15, 2, 0, 0, 0, time.UTC)
	calls := 0
	r.now = func() time.Time {
		calls++
		if calls == 1 {
			return base
		}
		return base.Add(1234 * time.Millisecond)
	}

	res := r.Render(f.template, f.logo(t, "SMC"), s, f.output(s), "r")
	if res.DurationSeconds != 1.23 {
		t.Errorf("duration = %v, want 1.23", res.DurationSeconds)
	}
	if !res.RunDate.Equal(base) {
		t.Errorf("run date = %v", res.RunDate)
	}
}
