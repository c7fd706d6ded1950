// Package objectstore serves drives from S3-compatible buckets (MinIO, S3).
package objectstore

import (
	"errors"
	"fmt"
	"strings"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	// Buckets maps drive names to bucket names.
	Buckets map[string]string
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("endpoint is required")
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		return errors.New("access key is required")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("secret key is required")
	}
	if strings.TrimSpace(c.Region) == "" {
		return errors.New("region is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("endpoint must not include scheme: %q", c.Endpoint)
	}
	for drive, bucket := range c.Buckets {
		if strings.TrimSpace(bucket) == "" {
			return fmt.Errorf("bucket for %q is required", drive)
		}
	}
	return nil
}
