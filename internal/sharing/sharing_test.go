package sharing

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Lllllllleong/policylocaliser/internal/models"
	"github.com/Lllllllleong/policylocaliser/internal/storage"
	"github.com/Lllllllleong/policylocaliser/internal/storage/local"
)

type stubLinker struct {
	failFor map[string]bool
	scopes  []string
	invites []string
}

func (l *stubLinker) CreateViewLink(_ context.Context, _ storage.Drive, folder storage.Item, scope string) (string, error) {
	if l.failFor[folder.Name] {
		return "", errors.New("itemNotFound")
	}
	l.scopes = append(l.scopes, scope)
	return "https://share.example/" + strings.ReplaceAll(folder.Name, " ", "_"), nil
}

func (l *stubLinker) Invite(_ context.Context, _ storage.Drive, folder storage.Item, email, role, message string) error {
	if l.failFor[folder.Name] {
		return errors.New("invalidRequest")
	}
	l.invites = append(l.invites, email+":"+role)
	return nil
}

func schools() []models.SchoolRecord {
	return []models.SchoolRecord{
		{SchoolCode: "SMC", Title: "St Mary's College", SchoolEmail: "office@smc.example"},
		{SchoolCode: "SJP", Title: "St Joseph's Primary", SchoolEmail: "office@sjp.example"},
		{SchoolCode: "OLM", Title: "Our Lady of Mercy"},
	}
}

func TestShareAllSkipsFailures(t *testing.T) {
	drive := local.NewDrive("Localised Policies", t.TempDir())
	linker := &stubLinker{failFor: map[string]bool{"SJP - St Joseph's Primary": true}}

	links, err := NewFolderSharing(linker, nil).ShareAll(context.Background(), drive, schools(), ScopeOrganization)
	if err != nil {
		t.Fatalf("ShareAll: %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("links = %v", links)
	}
	if _, ok := links["SJP"]; ok {
		t.Error("failed school included in links")
	}
	if links["SMC"] != "https://share.example/SMC_-_St_Mary's_College" {
		t.Errorf("SMC link = %q", links["SMC"])
	}
	for _, s := range linker.scopes {
		if s != ScopeOrganization {
			t.Errorf("scope = %q", s)
		}
	}
}

func TestShareAllRejectsUnknownScope(t *testing.T) {
	drive := local.NewDrive("x", t.TempDir())
	if _, err := NewFolderSharing(&stubLinker{}, nil).ShareAll(context.Background(), drive, schools(), "users"); err == nil {
		t.Error("expected error for unsupported scope")
	}
}

func TestInviteAll(t *testing.T) {
	drive := local.NewDrive("Localised Policies", t.TempDir())
	linker := &stubLinker{failFor: map[string]bool{"SJP - St Joseph's Primary": true}}

	outcome, err := NewFolderSharing(linker, nil).InviteAll(context.Background(), drive, schools(), RoleRead, "")
	if err != nil {
		t.Fatalf("InviteAll: %v", err)
	}
	if len(outcome) != 2 {
		t.Fatalf("outcome = %v", outcome)
	}
	if outcome["SMC"] != nil || outcome["SJP"] == nil {
		t.Errorf("outcome = %v", outcome)
	}
	if _, ok := outcome["OLM"]; ok {
		t.Error("school without email was invited")
	}
	if len(linker.invites) != 1 || linker.invites[0] != "office@smc.example:read" {
		t.Errorf("invites = %v", linker.invites)
	}

	if _, err := NewFolderSharing(linker, nil).InviteAll(context.Background(), drive, schools(), "owner", ""); err == nil {
		t.Error("expected error for unsupported role")
	}
}
