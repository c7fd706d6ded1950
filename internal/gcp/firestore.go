package gcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/Lllllllleong/policylocaliser/internal/models"
)

const (
	DefaultSchoolsCollection = "schools"
	DefaultLogCollection     = "processing_log"
)

// NewFirestoreClient creates and returns a new Firestore client for the given project ID.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return client, nil
}

// FirestoreLog writes processing results as documents of one collection.
type FirestoreLog struct {
	client     *firestore.Client
	collection string
	logger     *slog.Logger
}

// NewFirestoreLog returns a log writing to collection, or to "processing_log" when empty.
func NewFirestoreLog(client *firestore.Client, collection string, logger *slog.Logger) *FirestoreLog {
	if collection == "" {
		collection = DefaultLogCollection
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FirestoreLog{client: client, collection: collection, logger: logger}
}

// WriteResults writes the batch through a BulkWriter and waits for every write.
func (l *FirestoreLog) WriteResults(ctx context.Context, results []models.ProcessingResult) error {
	if len(results) == 0 {
		return nil
	}
	bw := l.client.BulkWriter(ctx)
	coll := l.client.Collection(l.collection)

	jobs := make([]*firestore.BulkWriterJob, 0, len(results))
	var errs []error
	for _, r := range results {
		job, err := bw.Set(coll.NewDoc(), r)
		if err != nil {
			errs = append(errs, fmt.Errorf("queue %s-%s: %w", r.SchoolCode, r.PolicyName, err))
			continue
		}
		jobs = append(jobs, job)
	}
	bw.End()

	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to write %d of %d results to %s: %w", len(errs), len(results), l.collection, errors.Join(errs...))
	}
	l.logger.Info("Wrote processing log", "collection", l.collection, "count", len(results))
	return nil
}

// FirestoreRecords reads school records from one collection.
type FirestoreRecords struct {
	client     *firestore.Client
	collection string
	logger     *slog.Logger
}

// NewFirestoreRecords returns a source reading collection, or "schools" when empty.
func NewFirestoreRecords(client *firestore.Client, collection string, logger *slog.Logger) *FirestoreRecords {
	if collection == "" {
		collection = DefaultSchoolsCollection
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FirestoreRecords{client: client, collection: collection, logger: logger}
}

// Records returns every school ordered by SchoolCode.
func (s *FirestoreRecords) Records(ctx context.Context) ([]models.SchoolRecord, error) {
	it := s.client.Collection(s.collection).OrderBy("SchoolCode", firestore.Asc).Documents(ctx)
	defer it.Stop()

	var schools []models.SchoolRecord
	for {
		doc, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", s.collection, err)
		}
		schools = append(schools, models.SchoolFromFields(doc.Data()))
	}
	s.logger.Info("Loaded schools", "collection", s.collection, "count", len(schools))
	return schools, nil
}
