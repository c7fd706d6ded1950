package graph

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Lllllllleong/policylocaliser/internal/storage"
)

type driveInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type driveItem struct {
	ID     string    `json:"id"`
	Name   string    `json:"name"`
	Size   int64     `json:"size"`
	WebURL string    `json:"webUrl"`
	Folder *struct{} `json:"folder,omitempty"`
}

func (it driveItem) item() storage.Item {
	return storage.Item{ID: it.ID, Name: it.Name, Size: it.Size, WebURL: it.WebURL, Folder: it.Folder != nil}
}

// Drives resolves SharePoint document libraries of one site by display name.
type Drives struct {
	client *Client
	siteID string
}

// NewDrives returns a storage backend over the libraries of siteID.
func NewDrives(client *Client, siteID string) *Drives {
	return &Drives{client: client, siteID: siteID}
}

func (d *Drives) Drive(ctx context.Context, name string) (storage.Drive, error) {
	drives, err := getAll[driveInfo](ctx, d.client, fmt.Sprintf("/sites/%s/drives", d.siteID))
	if err != nil {
		return nil, fmt.Errorf("failed to list document libraries: %w", err)
	}
	for _, dr := range drives {
		if dr.Name == name {
			return &Drive{client: d.client, id: dr.ID, name: name}, nil
		}
	}
	return nil, fmt.Errorf("document library %q: %w", name, storage.ErrNotFound)
}

// Drive is one document library.
type Drive struct {
	client *Client
	id     string
	name   string
}

// NewDrive wraps an already resolved drive id.
func NewDrive(client *Client, id, name string) *Drive {
	return &Drive{client: client, id: id, name: name}
}

func (d *Drive) Name() string { return d.name }

// ID is the Graph drive id.
func (d *Drive) ID() string { return d.id }

func (d *Drive) List(ctx context.Context) ([]storage.Item, error) {
	children, err := getAll[driveItem](ctx, d.client, fmt.Sprintf("/drives/%s/root/children", d.id))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", d.name, err)
	}
	items := make([]storage.Item, len(children))
	for i, c := range children {
		items[i] = c.item()
	}
	return items, nil
}

func (d *Drive) Get(ctx context.Context, item storage.Item) ([]byte, error) {
	if item.ID == "" {
		return d.GetByName(ctx, item.Name)
	}
	data, err := d.client.GetBytes(ctx, fmt.Sprintf("/drives/%s/items/%s/content", d.id, item.ID))
	if err != nil {
		return nil, notFound(fmt.Sprintf("failed to download %s from %s", item.Name, d.name), err)
	}
	return data, nil
}

func (d *Drive) GetByName(ctx context.Context, name string) ([]byte, error) {
	data, err := d.client.GetBytes(ctx, fmt.Sprintf("/drives/%s/root:/%s:/content", d.id, url.PathEscape(name)))
	if err != nil {
		return nil, notFound(fmt.Sprintf("failed to download %s from %s", name, d.name), err)
	}
	return data, nil
}

// EnsureFolder looks the folder up first. Only a 404 leads to a create, and a
// 409 on create means another run created it first, so it is looked up again.
func (d *Drive) EnsureFolder(ctx context.Context, name string) (storage.Item, error) {
	lookup := fmt.Sprintf("/drives/%s/root:/%s", d.id, url.PathEscape(name))

	var existing driveItem
	err := d.client.GetJSON(ctx, lookup, &existing)
	if err == nil {
		d.client.logger.Debug("Folder already exists", "drive", d.name, "folder", name)
		return existing.item(), nil
	}
	if !IsStatus(err, http.StatusNotFound) {
		return storage.Item{}, fmt.Errorf("failed to look up folder %q: %w", name, err)
	}

	body := map[string]any{
		"name":                              name,
		"folder":                            map[string]any{},
		"@microsoft.graph.conflictBehavior": "fail",
	}
	var created driveItem
	err = d.client.PostJSON(ctx, fmt.Sprintf("/drives/%s/root/children", d.id), body, &created)
	if err == nil {
		d.client.logger.Info("Created folder", "drive", d.name, "folder", name)
		return created.item(), nil
	}
	if !IsStatus(err, http.StatusConflict) {
		return storage.Item{}, fmt.Errorf("failed to create folder %q: %w", name, err)
	}

	if err := d.client.GetJSON(ctx, lookup, &existing); err != nil {
		return storage.Item{}, fmt.Errorf("failed to look up folder %q after conflict: %w", name, err)
	}
	return existing.item(), nil
}

// Put uses the simple upload API, which accepts files up to 250 MB.
func (d *Drive) Put(ctx context.Context, folder, name string, data []byte) (storage.Item, error) {
	p := fmt.Sprintf("/drives/%s/root:/%s/%s:/content", d.id, url.PathEscape(folder), url.PathEscape(name))
	var uploaded driveItem
	if err := d.client.PutBytes(ctx, p, data, storage.DocxContentType, &uploaded); err != nil {
		return storage.Item{}, fmt.Errorf("failed to upload %s/%s: %w", folder, name, err)
	}
	return uploaded.item(), nil
}

func notFound(msg string, err error) error {
	if IsStatus(err, http.StatusNotFound) {
		return fmt.Errorf("%s: %w: %w", msg, storage.ErrNotFound, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
