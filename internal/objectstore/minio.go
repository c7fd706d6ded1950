package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/Lllllllleong/policylocaliser/internal/storage"
)

func NewMinIOClient(cfg Config) (*minio.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	}
	return minio.New(cfg.Endpoint, opts)
}

// Backend resolves drive names to buckets.
type Backend struct {
	client  *minio.Client
	buckets map[string]string
}

func NewBackend(client *minio.Client, buckets map[string]string) *Backend {
	return &Backend{client: client, buckets: buckets}
}

func (b *Backend) Drive(ctx context.Context, name string) (storage.Drive, error) {
	bucket, ok := b.buckets[name]
	if !ok {
		return nil, fmt.Errorf("no bucket configured for drive %q: %w", name, storage.ErrNotFound)
	}
	exists, err := b.client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("bucket %s exists: %w", bucket, err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %s missing: %w", bucket, storage.ErrNotFound)
	}
	return &Drive{client: b.client, name: name, bucket: bucket}, nil
}

// Drive is one bucket.
type Drive struct {
	client *minio.Client
	name   string
	bucket string
}

func (d *Drive) Name() string { return d.name }

func (d *Drive) List(ctx context.Context) ([]storage.Item, error) {
	var items []storage.Item
	for obj := range d.client.ListObjects(ctx, d.bucket, minio.ListObjectsOptions{Recursive: false}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list bucket %s: %w", d.bucket, obj.Err)
		}
		items = append(items, itemFromKey(obj.Key, obj.Size))
	}
	return items, nil
}

func (d *Drive) Get(ctx context.Context, item storage.Item) ([]byte, error) {
	if item.ID != "" {
		return d.GetByName(ctx, item.ID)
	}
	return d.GetByName(ctx, item.Name)
}

func (d *Drive) GetByName(ctx context.Context, key string) ([]byte, error) {
	obj, err := d.client.GetObject(ctx, d.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, objectErr(d.bucket, key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, objectErr(d.bucket, key, err)
	}
	return data, nil
}

// EnsureFolder writes the "name/" marker when it is missing. Two runs racing
// to create it both succeed.
func (d *Drive) EnsureFolder(ctx context.Context, name string) (storage.Item, error) {
	key := folderKey(name)
	_, err := d.client.StatObject(ctx, d.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return itemFromKey(key, 0), nil
	}
	if !isNoSuchKey(err) {
		return storage.Item{}, fmt.Errorf("stat folder %s: %w", key, err)
	}
	if _, err := d.client.PutObject(ctx, d.bucket, key, bytes.NewReader(nil), 0, minio.PutObjectOptions{}); err != nil {
		return storage.Item{}, fmt.Errorf("create folder %s: %w", key, err)
	}
	return itemFromKey(key, 0), nil
}

func (d *Drive) Put(ctx context.Context, folder, name string, data []byte) (storage.Item, error) {
	key := folderKey(folder) + name
	_, err := d.client.PutObject(ctx, d.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: storage.DocxContentType})
	if err != nil {
		return storage.Item{}, fmt.Errorf("upload %s/%s: %w", d.bucket, key, err)
	}
	return storage.Item{ID: key, Name: name, Size: int64(len(data))}, nil
}

func folderKey(name string) string {
	return strings.TrimSuffix(name, "/") + "/"
}

func itemFromKey(key string, size int64) storage.Item {
	if strings.HasSuffix(key, "/") {
		return storage.Item{ID: key, Name: strings.TrimSuffix(key, "/"), Folder: true}
	}
	return storage.Item{ID: key, Name: key, Size: size}
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

func objectErr(bucket, key string, err error) error {
	if isNoSuchKey(err) {
		return fmt.Errorf("%s/%s: %w", bucket, key, storage.ErrNotFound)
	}
	return fmt.Errorf("get %s/%s: %w", bucket, key, err)
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
