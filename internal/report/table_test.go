package report

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/Lllllllleong/policylocaliser/internal/models"
)

func TestTableSink(t *testing.T) {
	var buf bytes.Buffer
	results := []models.ProcessingResult{
		{SchoolCode: "SMC", PolicyName: "Enrolment Policy", Status: models.StatusSuccess, DurationSeconds: 0.25},
		{SchoolCode: "SJP", PolicyName: "Enrolment Policy", Status: models.StatusError, ErrorMessage: "failed to read logo"},
	}

	if err := (TableSink{W: &buf}).WriteResults(context.Background(), results); err != nil {
		t.Fatalf("WriteResults: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"School", "SMC", "SJP", "Enrolment Policy", "Success", "Error", "0.25s", "failed to read logo"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if !strings.HasSuffix(strings.TrimSpace(out), "Total: 2 | Success: 1 | Failed: 1") {
		t.Errorf("output does not end with totals:\n%s", out)
	}
}

func TestTableSinkEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := (TableSink{W: &buf}).WriteResults(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(buf.String()); got != "Total: 0 | Success: 0 | Failed: 0" {
		t.Errorf("output = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("x", 100)
	if got := truncate(long, 10); got != "xxxxxxx..." {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate = %q", got)
	}
}
