// Package storage defines the named-container abstraction that templates,
// logos and rendered policies move through. A Backend resolves a container
// (a SharePoint document library, a local directory, a bucket) by name to a
// Drive that lists, reads and writes items at its root and in folders.
package storage

import (
	"context"
	"errors"
	"path"
	"sort"
	"strings"
)

// ErrNotFound is returned when a named drive or item does not exist.
var ErrNotFound = errors.New("not found")

// DocxContentType is the MIME type of rendered policies.
const DocxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Item is an entry at the root of a drive.
type Item struct {
	ID     string
	Name   string
	Folder bool
	Size   int64
	// WebURL is set by backends that can link to the item.
	WebURL string
}

// Backend resolves drives by name.
type Backend interface {
	Drive(ctx context.Context, name string) (Drive, error)
}

// Drive is one named container.
type Drive interface {
	Name() string
	// List returns the immediate children of the drive root, across all pages.
	List(ctx context.Context) ([]Item, error)
	// Get returns the content of an item returned by List.
	Get(ctx context.Context, item Item) ([]byte, error)
	// GetByName returns the content of the root item called name.
	GetByName(ctx context.Context, name string) ([]byte, error)
	// EnsureFolder returns the root folder called name, creating it if needed.
	EnsureFolder(ctx context.Context, name string) (Item, error)
	// Put creates or overwrites folder/name.
	Put(ctx context.Context, folder, name string, data []byte) (Item, error)
}

// Templates returns the .docx items of a listing, sorted by name.
func Templates(items []Item) []Item {
	var out []Item
	for _, it := range items {
		if !it.Folder && strings.EqualFold(path.Ext(it.Name), ".docx") {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
