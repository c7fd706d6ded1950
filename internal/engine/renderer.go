package engine

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Lllllllleong/policylocaliser/internal/docx"
	"github.com/Lllllllleong/policylocaliser/internal/models"
)

// LogoPlaceholder is the name of the picture in every template that is
// replaced with the school's logo.
const LogoPlaceholder = "logo_placeholder.png"

// Engine fills a template. images maps picture names to replacement bytes and
// fields maps placeholder names to values.
type Engine interface {
	Render(template []byte, images map[string][]byte, fields map[string]string) ([]byte, error)
}

// EngineFunc adapts a function to Engine.
type EngineFunc func(template []byte, images map[string][]byte, fields map[string]string) ([]byte, error)

func (f EngineFunc) Render(template []byte, images map[string][]byte, fields map[string]string) ([]byte, error) {
	return f(template, images, fields)
}

// Renderer turns one (template, school) pair into one document on disk.
// It holds no per-call state and is safe to share.
type Renderer struct {
	engine Engine
	logger *slog.Logger
	now    func() time.Time
}

// NewRenderer returns a Renderer backed by e, or by the docx engine when e is nil.
func NewRenderer(e Engine, logger *slog.Logger) *Renderer {
	if e == nil {
		e = EngineFunc(docx.Render)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{engine: e, logger: logger, now: time.Now}
}

// PolicyName is the template's file name without its extension.
func PolicyName(templatePath string) string {
	base := filepath.Base(templatePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Render renders templatePath for school into outputPath. Every failure is
// reported through the returned result's Status and ErrorMessage.
func (r *Renderer) Render(templatePath, logoPath string, school models.SchoolRecord, outputPath, runID string) (result models.ProcessingResult) {
	start := r.now()
	result = models.ProcessingResult{
		RunID:      runID,
		RunDate:    start.UTC(),
		SchoolCode: school.Code(),
		PolicyName: PolicyName(templatePath),
		Status:     models.StatusSuccess,
	}
	logCtx := r.logger.With("runId", runID, "schoolCode", school.Code(), "policy", result.PolicyName)

	defer func() {
		if p := recover(); p != nil {
			result = result.Failed(fmt.Sprintf("render panicked: %v", p))
		}
		result.DurationSeconds = models.RoundSeconds(r.now().Sub(start))
		if result.Status == models.StatusError {
			logCtx.Error("Render failed", "error", result.ErrorMessage)
		}
	}()

	if err := r.render(templatePath, logoPath, school, outputPath); err != nil {
		return result.Failed(err.Error())
	}
	logCtx.Debug("Rendered document", "output", outputPath)
	return result
}

func (r *Renderer) render(templatePath, logoPath string, school models.SchoolRecord, outputPath string) error {
	template, err := os.ReadFile(templatePath)
	if err != nil {
		return fmt.Errorf("failed to read template: %w", err)
	}
	logo, err := os.ReadFile(logoPath)
	if err != nil {
		return fmt.Errorf("failed to read logo: %w", err)
	}

	out, err := r.engine.Render(template, map[string][]byte{LogoPlaceholder: logo}, school.Context())
	if err != nil {
		return fmt.Errorf("failed to render template: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("failed to create output folder: %w", err)
	}
	if err := os.WriteFile(outputPath, out, 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
