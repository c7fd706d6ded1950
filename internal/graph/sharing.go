package graph

import (
	"context"
	"fmt"

	"github.com/Lllllllleong/policylocaliser/internal/storage"
)

// Linker creates sharing links and invitations on drive items.
type Linker struct {
	client *Client
}

// NewLinker returns a Linker using client.
func NewLinker(client *Client) *Linker {
	return &Linker{client: client}
}

// CreateViewLink creates a read-only link to folder. scope is "organization" or "anonymous".
func (l *Linker) CreateViewLink(ctx context.Context, drive storage.Drive, folder storage.Item, scope string) (string, error) {
	driveID, err := graphDriveID(drive)
	if err != nil {
		return "", err
	}
	var resp struct {
		Link struct {
			WebURL string `json:"webUrl"`
		} `json:"link"`
	}
	body := map[string]string{"type": "view", "scope": scope}
	if err := l.client.PostJSON(ctx, fmt.Sprintf("/drives/%s/items/%s/createLink", driveID, folder.ID), body, &resp); err != nil {
		return "", fmt.Errorf("failed to create link for %s: %w", folder.Name, err)
	}
	return resp.Link.WebURL, nil
}

// Invite grants email a role ("read" or "write") on folder. An invitation
// email is only sent when message is not empty.
func (l *Linker) Invite(ctx context.Context, drive storage.Drive, folder storage.Item, email, role, message string) error {
	driveID, err := graphDriveID(drive)
	if err != nil {
		return err
	}
	body := map[string]any{
		"requireSignIn":  true,
		"sendInvitation": message != "",
		"roles":          []string{role},
		"recipients":     []map[string]string{{"email": email}},
		"message":        message,
	}
	if err := l.client.PostJSON(ctx, fmt.Sprintf("/drives/%s/items/%s/invite", driveID, folder.ID), body, nil); err != nil {
		return fmt.Errorf("failed to invite %s to %s: %w", email, folder.Name, err)
	}
	return nil
}

func graphDriveID(d storage.Drive) (string, error) {
	gd, ok := d.(*Drive)
	if !ok {
		return "", fmt.Errorf("drive %q is not a SharePoint library", d.Name())
	}
	return gd.ID(), nil
}
