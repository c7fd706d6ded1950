// Package engine holds the per-pair building blocks of a localisation run:
// pre-flight validation of the whole input set and rendering of a single
// (school, policy) pair into a structured result.
package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Lllllllleong/policylocaliser/internal/models"
)

// Severity decides whether a validation problem blocks the run.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// ValidationError is one problem found before rendering starts.
type ValidationError struct {
	Severity Severity
	Message  string
}

func (v ValidationError) String() string {
	return fmt.Sprintf("[%s] %s", strings.ToUpper(string(v.Severity)), v.Message)
}

// LogoFileName is the logo expected for a school code.
func LogoFileName(code string) string {
	return code + ".png"
}

// Validate checks templates, logos and school records before a run.
// It only looks at file existence and never modifies anything.
func Validate(templatePaths []string, logoDir string, schools []models.SchoolRecord) []ValidationError {
	var errs []ValidationError

	for _, p := range templatePaths {
		if !exists(p) {
			errs = append(errs, ValidationError{SeverityError, "Template not found: " + p})
		} else if !strings.EqualFold(filepath.Ext(p), ".docx") {
			errs = append(errs, ValidationError{SeverityError, "Template is not .docx: " + p})
		}
	}

	for _, s := range schools {
		logo := filepath.Join(logoDir, LogoFileName(s.Code()))
		if !exists(logo) {
			errs = append(errs, ValidationError{SeverityError, fmt.Sprintf("Logo not found for %s: %s", s.Code(), logo)})
		}
	}

	for _, s := range schools {
		for _, field := range models.RequiredFields {
			if v, _ := s.Field(field); strings.TrimSpace(v) == "" {
				errs = append(errs, ValidationError{SeverityWarning, fmt.Sprintf("School %s has empty %s", s.Code(), field)})
			}
		}
	}

	seen := make(map[string]bool, len(schools))
	for _, s := range schools {
		if seen[s.Code()] {
			errs = append(errs, ValidationError{SeverityError, "Duplicate SchoolCode: " + s.Code()})
		}
		seen[s.Code()] = true
	}

	return errs
}

// Partition splits problems into those that block a run and those that are only reported.
func Partition(errs []ValidationError) (blocking, advisory []ValidationError) {
	for _, e := range errs {
		if e.Severity == SeverityError {
			blocking = append(blocking, e)
		} else {
			advisory = append(advisory, e)
		}
	}
	return blocking, advisory
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
