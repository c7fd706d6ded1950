// Package sharing hands each school access to its output folder.
package sharing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Lllllllleong/policylocaliser/internal/models"
	"github.com/Lllllllleong/policylocaliser/internal/storage"
)

const (
	ScopeOrganization = "organization"
	ScopeAnonymous    = "anonymous"

	RoleRead  = "read"
	RoleWrite = "write"
)

// Linker creates links and invitations on folders of a drive.
type Linker interface {
	CreateViewLink(ctx context.Context, drive storage.Drive, folder storage.Item, scope string) (string, error)
	Invite(ctx context.Context, drive storage.Drive, folder storage.Item, email, role, message string) error
}

// FolderSharing shares school output folders one school at a time. A failure
// for one school is logged and never stops the others.
type FolderSharing struct {
	linker Linker
	logger *slog.Logger
}

func NewFolderSharing(linker Linker, logger *slog.Logger) *FolderSharing {
	if logger == nil {
		logger = slog.Default()
	}
	return &FolderSharing{linker: linker, logger: logger}
}

// ValidScope reports whether scope is a supported link scope.
func ValidScope(scope string) bool {
	return scope == ScopeOrganization || scope == ScopeAnonymous
}

// ShareAll ensures every school's folder and creates a view link for it.
// Schools whose folder or link failed are left out of the returned map.
func (s *FolderSharing) ShareAll(ctx context.Context, drive storage.Drive, schools []models.SchoolRecord, scope string) (map[string]string, error) {
	if !ValidScope(scope) {
		return nil, fmt.Errorf("unsupported link scope %q, want %q or %q", scope, ScopeOrganization, ScopeAnonymous)
	}

	links := make(map[string]string, len(schools))
	for _, school := range schools {
		if err := ctx.Err(); err != nil {
			return links, err
		}
		logCtx := s.logger.With("schoolCode", school.Code(), "folder", school.FolderName())

		folder, err := drive.EnsureFolder(ctx, school.FolderName())
		if err != nil {
			logCtx.Error("Failed to share folder", "error", err)
			continue
		}
		url, err := s.linker.CreateViewLink(ctx, drive, folder, scope)
		if err != nil {
			logCtx.Error("Failed to share folder", "error", err)
			continue
		}
		links[school.Code()] = url
		logCtx.Info("Shared folder", "url", url)
	}
	return links, nil
}

// InviteAll grants each school's email address role on its folder. Schools
// without an email are skipped. The returned map holds one entry per school
// attempted, nil on success.
func (s *FolderSharing) InviteAll(ctx context.Context, drive storage.Drive, schools []models.SchoolRecord, role, message string) (map[string]error, error) {
	if role != RoleRead && role != RoleWrite {
		return nil, fmt.Errorf("unsupported role %q, want %q or %q", role, RoleRead, RoleWrite)
	}

	outcome := make(map[string]error, len(schools))
	for _, school := range schools {
		if err := ctx.Err(); err != nil {
			return outcome, err
		}
		email := strings.TrimSpace(school.SchoolEmail)
		if email == "" {
			s.logger.Warn("No email to invite", "schoolCode", school.Code())
			continue
		}

		folder, err := drive.EnsureFolder(ctx, school.FolderName())
		if err == nil {
			err = s.linker.Invite(ctx, drive, folder, email, role, message)
		}
		if err != nil {
			s.logger.Error("Failed to invite school", "schoolCode", school.Code(), "email", email, "error", err)
		}
		outcome[school.Code()] = err
	}
	return outcome, nil
}
