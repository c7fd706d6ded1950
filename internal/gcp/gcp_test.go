package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"google.golang.org/api/googleapi"

	"github.com/Lllllllleong/policylocaliser/internal/storage"
)

func TestIsPreconditionFailed(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"412", &googleapi.Error{Code: http.StatusPreconditionFailed}, true},
		{"wrapped 412", fmt.Errorf("write: %w", &googleapi.Error{Code: 412}), true},
		{"403", &googleapi.Error{Code: http.StatusForbidden}, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isPreconditionFailed(tc.err); got != tc.want {
				t.Errorf("isPreconditionFailed = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestBucketBackendUnknownDrive(t *testing.T) {
	b := NewBucketBackend(nil, map[string]string{"Policy Templates": "", "Localised Policies": "out-bucket"}, nil)

	for _, name := range []string{"Policy Templates", "School Logos"} {
		if _, err := b.Drive(context.Background(), name); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Drive(%q) err = %v, want ErrNotFound", name, err)
		}
	}
}

func TestFirestoreDefaults(t *testing.T) {
	if l := NewFirestoreLog(nil, "", nil); l.collection != DefaultLogCollection {
		t.Errorf("log collection = %q", l.collection)
	}
	if r := NewFirestoreRecords(nil, "directory", nil); r.collection != "directory" {
		t.Errorf("records collection = %q", r.collection)
	}
}

func TestConstructorsKeepLogger(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	if b := NewBucketBackend(nil, nil, logger); b.logger != logger {
		t.Error("bucket backend dropped its logger")
	}
	if l := NewFirestoreLog(nil, "", logger); l.logger != logger {
		t.Error("firestore log dropped its logger")
	}
	if r := NewFirestoreRecords(nil, "", logger); r.logger != logger {
		t.Error("firestore records dropped its logger")
	}

	if b := NewBucketBackend(nil, nil, nil); b.logger == nil {
		t.Error("bucket backend has no fallback logger")
	}
	if l := NewFirestoreLog(nil, "", nil); l.logger == nil {
		t.Error("firestore log has no fallback logger")
	}
	if r := NewFirestoreRecords(nil, "", nil); r.logger == nil {
		t.Error("firestore records has no fallback logger")
	}
}

func TestFirestoreLogEmptyBatch(t *testing.T) {
	if err := NewFirestoreLog(nil, "", nil).WriteResults(context.Background(), nil); err != nil {
		t.Errorf("WriteResults(nil) = %v", err)
	}
}

func TestNewFirestoreClientRequiresProject(t *testing.T) {
	if _, err := NewFirestoreClient(context.Background(), ""); err == nil {
		t.Error("expected error for empty project id")
	}
}
