package sqlitelog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Lllllllleong/policylocaliser/internal/models"
)

func TestWriteAndReadRun(t *testing.T) {
	ctx := context.Background()
	sink, err := Open(filepath.Join(t.TempDir(), "logs", "processing_log.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer sink.Close()

	date := time.Date(2025, 1, 15, 2, 0, 0, 0, time.UTC)
	batch := []models.ProcessingResult{
		{RunID: "run00001", RunDate: date, SchoolCode: "SMC", PolicyName: "Enrolment Policy", Status: models.StatusSuccess, DurationSeconds: 0.12},
		{RunID: "run00001", RunDate: date, SchoolCode: "SJP", PolicyName: "Enrolment Policy", Status: models.StatusError, ErrorMessage: "failed to read logo", DurationSeconds: 0.01},
	}
	if err := sink.WriteResults(ctx, batch); err != nil {
		t.Fatalf("WriteResults: %v", err)
	}
	other := []models.ProcessingResult{{RunID: "run00002", RunDate: date, SchoolCode: "SMC", PolicyName: "Uniform Policy", Status: models.StatusSuccess}}
	if err := sink.WriteResults(ctx, other); err != nil {
		t.Fatalf("WriteResults: %v", err)
	}

	got, err := sink.Run(ctx, "run00001")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d rows, want 2", len(got))
	}
	for i := range batch {
		if got[i] != batch[i] {
			t.Errorf("row %d = %+v, want %+v", i, got[i], batch[i])
		}
	}
}

func TestOpenTwiceKeepsRows(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "log.db")

	sink, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := sink.WriteResults(ctx, []models.ProcessingResult{{RunID: "r", SchoolCode: "A", PolicyName: "P", Status: models.StatusSuccess}}); err != nil {
		t.Fatal(err)
	}
	sink.Close()

	sink, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer sink.Close()
	got, err := sink.Run(ctx, "r")
	if err != nil || len(got) != 1 {
		t.Errorf("Run = %v, %v", got, err)
	}
}
