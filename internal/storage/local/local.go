// Package local serves drives from directories on the local filesystem.
package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/Lllllllleong/policylocaliser/internal/storage"
)

// Backend maps drive names to directories.
type Backend struct {
	dirs map[string]string
}

// NewBackend returns a backend serving each name in dirs from its directory.
func NewBackend(dirs map[string]string) *Backend {
	copied := make(map[string]string, len(dirs))
	for name, dir := range dirs {
		copied[name] = dir
	}
	return &Backend{dirs: copied}
}

func (b *Backend) Drive(_ context.Context, name string) (storage.Drive, error) {
	dir, ok := b.dirs[name]
	if !ok {
		return nil, fmt.Errorf("drive %q: %w", name, storage.ErrNotFound)
	}
	return &Drive{name: name, root: dir}, nil
}

// Drive is a directory.
type Drive struct {
	name string
	root string
}

// NewDrive returns a drive rooted at dir.
func NewDrive(name, dir string) *Drive {
	return &Drive{name: name, root: dir}
}

func (d *Drive) Name() string { return d.name }

// Root is the directory backing the drive.
func (d *Drive) Root() string { return d.root }

func (d *Drive) List(_ context.Context) ([]storage.Item, error) {
	entries, err := os.ReadDir(d.root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", d.root, err)
	}

	items := make([]storage.Item, 0, len(entries))
	for _, e := range entries {
		it := storage.Item{ID: filepath.Join(d.root, e.Name()), Name: e.Name(), Folder: e.IsDir()}
		if info, err := e.Info(); err == nil && !e.IsDir() {
			it.Size = info.Size()
		}
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}

func (d *Drive) Get(_ context.Context, item storage.Item) ([]byte, error) {
	id := item.ID
	if id == "" {
		id = filepath.Join(d.root, item.Name)
	}
	return readFile(id)
}

func (d *Drive) GetByName(_ context.Context, name string) ([]byte, error) {
	return readFile(filepath.Join(d.root, name))
}

func (d *Drive) EnsureFolder(_ context.Context, name string) (storage.Item, error) {
	dir := filepath.Join(d.root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return storage.Item{}, fmt.Errorf("failed to create folder %s: %w", dir, err)
	}
	return storage.Item{ID: dir, Name: name, Folder: true}, nil
}

func (d *Drive) Put(_ context.Context, folder, name string, data []byte) (storage.Item, error) {
	dir := filepath.Join(d.root, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return storage.Item{}, fmt.Errorf("failed to create folder %s: %w", dir, err)
	}
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return storage.Item{}, fmt.Errorf("failed to write %s: %w", p, err)
	}
	return storage.Item{ID: p, Name: name, Size: int64(len(data))}, nil
}

func readFile(p string) ([]byte, error) {
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", p, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", p, err)
	}
	return data, nil
}
