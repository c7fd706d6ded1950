package gcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"

	"github.com/Lllllllleong/policylocaliser/internal/storage"
)

// NewStorageClient creates a Cloud Storage client using application default credentials.
func NewStorageClient(ctx context.Context) (*gcs.Client, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return client, nil
}

// BucketBackend serves drives from Cloud Storage buckets. Folders are object
// name prefixes, marked by a zero-byte "name/" object.
type BucketBackend struct {
	client  *gcs.Client
	buckets map[string]string
	logger  *slog.Logger
}

// NewBucketBackend maps each drive name to a bucket. A nil logger uses
// slog.Default().
func NewBucketBackend(client *gcs.Client, buckets map[string]string, logger *slog.Logger) *BucketBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &BucketBackend{client: client, buckets: buckets, logger: logger}
}

func (b *BucketBackend) Drive(ctx context.Context, name string) (storage.Drive, error) {
	bucketName, ok := b.buckets[name]
	if !ok || bucketName == "" {
		return nil, fmt.Errorf("no bucket configured for drive %q: %w", name, storage.ErrNotFound)
	}
	bucket := b.client.Bucket(bucketName)
	if _, err := bucket.Attrs(ctx); err != nil {
		if errors.Is(err, gcs.ErrBucketNotExist) {
			return nil, fmt.Errorf("bucket %s for drive %q: %w", bucketName, name, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to resolve bucket %s: %w", bucketName, err)
	}
	return &BucketDrive{name: name, bucketName: bucketName, bucket: bucket, logger: b.logger.With("bucket", bucketName)}, nil
}

// BucketDrive is one bucket.
type BucketDrive struct {
	name       string
	bucketName string
	bucket     *gcs.BucketHandle
	logger     *slog.Logger
}

func (d *BucketDrive) Name() string { return d.name }

func (d *BucketDrive) List(ctx context.Context) ([]storage.Item, error) {
	it := d.bucket.Objects(ctx, &gcs.Query{Delimiter: "/"})

	var items []storage.Item
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list bucket %s: %w", d.bucketName, err)
		}
		if attrs.Prefix != "" {
			name := strings.TrimSuffix(attrs.Prefix, "/")
			items = append(items, storage.Item{ID: attrs.Prefix, Name: name, Folder: true})
			continue
		}
		items = append(items, storage.Item{ID: attrs.Name, Name: attrs.Name, Size: attrs.Size})
	}
	return items, nil
}

func (d *BucketDrive) Get(ctx context.Context, item storage.Item) ([]byte, error) {
	if item.ID != "" {
		return d.GetByName(ctx, item.ID)
	}
	return d.GetByName(ctx, item.Name)
}

func (d *BucketDrive) GetByName(ctx context.Context, name string) ([]byte, error) {
	r, err := d.bucket.Object(name).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil, fmt.Errorf("gs://%s/%s: %w", d.bucketName, name, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to open gs://%s/%s: %w", d.bucketName, name, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read gs://%s/%s: %w", d.bucketName, name, err)
	}
	return data, nil
}

// EnsureFolder writes the folder marker only if it is absent, so concurrent
// runs never fail on an existing folder.
func (d *BucketDrive) EnsureFolder(ctx context.Context, name string) (storage.Item, error) {
	marker := strings.TrimSuffix(name, "/") + "/"
	if err := saveIfAbsent(ctx, d.logger, d.bucket, marker, nil, ""); err != nil {
		return storage.Item{}, err
	}
	return storage.Item{ID: marker, Name: name, Folder: true}, nil
}

func (d *BucketDrive) Put(ctx context.Context, folder, name string, data []byte) (storage.Item, error) {
	objectName := folder + "/" + name
	w := d.bucket.Object(objectName).NewWriter(ctx)
	w.ContentType = storage.DocxContentType

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return storage.Item{}, fmt.Errorf("failed to write gs://%s/%s: %w", d.bucketName, objectName, err)
	}
	if err := w.Close(); err != nil {
		return storage.Item{}, fmt.Errorf("failed to finalize gs://%s/%s: %w", d.bucketName, objectName, err)
	}
	return storage.Item{ID: objectName, Name: name, Size: int64(len(data))}, nil
}

// saveIfAbsent writes content to an object only if it doesn't already exist.
// An existing object is not a failure.
func saveIfAbsent(ctx context.Context, logger *slog.Logger, bucket *gcs.BucketHandle, objectName string, content []byte, contentType string) error {
	writer := bucket.Object(objectName).If(gcs.Conditions{DoesNotExist: true}).NewWriter(ctx)
	if contentType != "" {
		writer.ContentType = contentType
	}

	if _, err := io.Copy(writer, bytes.NewReader(content)); err != nil {
		_ = writer.Close()
		if isPreconditionFailed(err) {
			logger.Debug("Object already exists", "object", objectName)
			return nil
		}
		return fmt.Errorf("failed to write to GCS: %w", err)
	}

	if err := writer.Close(); err != nil {
		if isPreconditionFailed(err) {
			logger.Debug("Object already exists", "object", objectName)
			return nil
		}
		return fmt.Errorf("failed to finalize GCS write: %w", err)
	}
	return nil
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}
