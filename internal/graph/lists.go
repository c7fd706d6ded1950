package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/Lllllllleong/policylocaliser/internal/models"
)

const (
	DefaultDirectoryList = "School Directory"
	DefaultLogList       = "Processing Log"
)

// Lists reads schools from the directory list and writes run results to the log list.
type Lists struct {
	client        *Client
	siteID        string
	directoryList string
	logList       string
	logger        *slog.Logger
}

// NewLists returns a Lists over the named lists of siteID. Empty names use the defaults.
func NewLists(client *Client, siteID, directoryList, logList string) *Lists {
	if directoryList == "" {
		directoryList = DefaultDirectoryList
	}
	if logList == "" {
		logList = DefaultLogList
	}
	return &Lists{
		client:        client,
		siteID:        siteID,
		directoryList: directoryList,
		logList:       logList,
		logger:        client.logger,
	}
}

func (l *Lists) listID(ctx context.Context, name string) (string, error) {
	q := url.Values{}
	// OData string literals escape a single quote by doubling it.
	q.Set("$filter", fmt.Sprintf("displayName eq '%s'", strings.ReplaceAll(name, "'", "''")))
	q.Set("$select", "id")

	var resp page[struct {
		ID string `json:"id"`
	}]
	if err := l.client.GetJSON(ctx, fmt.Sprintf("/sites/%s/lists?%s", l.siteID, q.Encode()), &resp); err != nil {
		return "", fmt.Errorf("failed to look up list %q: %w", name, err)
	}
	if len(resp.Value) == 0 {
		return "", fmt.Errorf("list %q not found in site", name)
	}
	return resp.Value[0].ID, nil
}

type listItem struct {
	Fields map[string]any `json:"fields"`
}

// Records reads every item of the directory list, following pagination.
func (l *Lists) Records(ctx context.Context) ([]models.SchoolRecord, error) {
	id, err := l.listID(ctx, l.directoryList)
	if err != nil {
		return nil, err
	}
	items, err := getAll[listItem](ctx, l.client, fmt.Sprintf("/sites/%s/lists/%s/items?$expand=fields&$top=100", l.siteID, id))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", l.directoryList, err)
	}

	schools := make([]models.SchoolRecord, 0, len(items))
	for _, it := range items {
		schools = append(schools, models.SchoolFromFields(it.Fields))
	}
	l.logger.Info("Loaded schools", "list", l.directoryList, "count", len(schools))
	return schools, nil
}

// WriteResults adds one log list item per result. A failed item does not stop
// the others; all failures are returned together.
func (l *Lists) WriteResults(ctx context.Context, results []models.ProcessingResult) error {
	id, err := l.listID(ctx, l.logList)
	if err != nil {
		return err
	}

	var errs []error
	for _, r := range results {
		body := map[string]any{"fields": LogFields(r)}
		if err := l.client.PostJSON(ctx, fmt.Sprintf("/sites/%s/lists/%s/items", l.siteID, id), body, nil); err != nil {
			errs = append(errs, fmt.Errorf("log entry %s-%s: %w", r.SchoolCode, r.PolicyName, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to write %d of %d log entries: %w", len(errs), len(results), errors.Join(errs...))
	}
	l.logger.Info("Wrote processing log", "list", l.logList, "count", len(results))
	return nil
}

// LogFields is the column map of one Processing Log item.
func LogFields(r models.ProcessingResult) map[string]any {
	return map[string]any{
		"Title":        fmt.Sprintf("%s-%s", r.SchoolCode, r.PolicyName),
		"RunId":        r.RunID,
		"RunDate":      r.RunDate.UTC().Format(time.RFC3339),
		"SchoolCode":   r.SchoolCode,
		"PolicyName":   r.PolicyName,
		"Status":       string(r.Status),
		"ErrorMessage": r.ErrorMessage,
		"Duration":     r.DurationSeconds,
	}
}
