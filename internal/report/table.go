// Package report prints run results for people at a terminal.
package report

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/Lllllllleong/policylocaliser/internal/models"
)

const maxErrorWidth = 60

// TableSink writes a results table followed by the totals line.
type TableSink struct {
	W io.Writer
}

func (s TableSink) WriteResults(_ context.Context, results []models.ProcessingResult) error {
	if len(results) > 0 {
		if _, err := fmt.Fprintln(s.W, Table(results)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(s.W, Totals(models.Summarize(results)))
	return err
}

// Table renders one row per result.
func Table(results []models.ProcessingResult) string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			r.SchoolCode,
			r.PolicyName,
			string(r.Status),
			fmt.Sprintf("%.2fs", r.DurationSeconds),
			truncate(r.ErrorMessage, maxErrorWidth),
		})
	}

	cell := lipgloss.NewStyle().Padding(0, 1)
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("School", "Policy", "Status", "Duration", "Error").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style { return cell }).
		String()
}

// Totals is the one-line summary printed after every run.
func Totals(s models.Summary) string {
	return fmt.Sprintf("Total: %d | Success: %d | Failed: %d", s.Processed, s.Success, s.Failed)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
