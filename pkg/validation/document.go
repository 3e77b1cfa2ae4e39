// Package validation provides document validation functionality
package validation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ghostwriter/ghostwriter/pkg/artifacts"
	"github.com/ghostwriter/ghostwriter/pkg/interfaces"
	"github.com/ghostwriter/ghostwriter/pkg/types"
)

// DocumentValidator validates document specifications
type DocumentValidator struct {
	projectRoot string
	engine      interfaces.Engine
}

// NewDocumentValidator creates a new document validator. The engine is
// optional; when present, template sources are compiled during
// validation.
func NewDocumentValidator(projectRoot string, engine interfaces.Engine) *DocumentValidator {
	return &DocumentValidator{
		projectRoot: projectRoot,
		engine:      engine,
	}
}

// ValidationError represents a validation error
type ValidationError struct {
	Document string
	Field    string
	Message  string
	Level    ValidationLevel
}

// ValidationLevel represents error severity
type ValidationLevel string

const (
	ValidationLevelError   ValidationLevel = "error"
	ValidationLevelWarning ValidationLevel = "warning"
	ValidationLevelInfo    ValidationLevel = "info"
)

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s.%s: %s", e.Level, e.Document, e.Field, e.Message)
}

// ValidationResult contains validation results
type ValidationResult struct {
	Valid  bool
	Errors []ValidationError
}

// AddError adds an error to the validation result
func (r *ValidationResult) AddError(document, field, message string, level ValidationLevel) {
	r.Errors = append(r.Errors, ValidationError{
		Document: document,
		Field:    field,
		Message:  message,
		Level:    level,
	})
	if level == ValidationLevelError {
		r.Valid = false
	}
}

// Validate validates a document specification
func (v *DocumentValidator) Validate(document types.DocumentSpec) *ValidationResult {
	result := &ValidationResult{Valid: true}

	v.validateBasicFields(&document, result)

	v.validateTemplates(&document, result)

	v.validateArtifacts(&document, result)

	return result
}

// ValidateMultiple validates multiple documents
func (v *DocumentValidator) ValidateMultiple(documents []types.DocumentSpec) *ValidationResult {
	result := &ValidationResult{Valid: true}

	names := make(map[string]bool)

	for _, document := range documents {
		// Check for duplicate names
		if names[document.Name] {
			result.AddError(document.Name, "name", "duplicate document name", ValidationLevelError)
		}
		names[document.Name] = true

		documentResult := v.Validate(document)
		result.Errors = append(result.Errors, documentResult.Errors...)
		if !documentResult.Valid {
			result.Valid = false
		}
	}

	return result
}

// ValidateConfiguration validates an entire configuration
func (v *DocumentValidator) ValidateConfiguration(config *types.GhostwriterConfig) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if config.Version != "1.0" {
		result.AddError("config", "version",
			fmt.Sprintf("unsupported config version: %s", config.Version), ValidationLevelError)
	}

	if len(config.Documents) == 0 {
		result.AddError("config", "documents", "no documents defined", ValidationLevelError)
		return result
	}

	documentsResult := v.ValidateMultiple(config.Documents)
	result.Errors = append(result.Errors, documentsResult.Errors...)
	if !documentsResult.Valid {
		result.Valid = false
	}

	return result
}

func (v *DocumentValidator) validateBasicFields(document *types.DocumentSpec, result *ValidationResult) {
	name := document.Name

	if name == "" {
		result.AddError("", "name", "document name is required", ValidationLevelError)
		return
	}

	if strings.Contains(name, " ") {
		result.AddError(name, "name", "document name cannot contain spaces", ValidationLevelError)
	}

	if len(document.Templates) == 0 {
		result.AddError(name, "templates", "at least one template is required", ValidationLevelError)
	}

	if document.OutputDir == "" {
		result.AddError(name, "outputDir", "output directory is required", ValidationLevelError)
	}

	if _, err := types.ParsePostprocessKind(string(document.Postprocess)); err != nil {
		result.AddError(name, "postprocess", err.Error(), ValidationLevelError)
	}

	if n := len([]rune(document.CSVDelimiter)); n > 1 {
		result.AddError(name, "csvDelimiter",
			fmt.Sprintf("delimiter must be a single character, got %q", document.CSVDelimiter),
			ValidationLevelError)
	}

	if document.InterfaceView == "" && document.DeploymentView == "" &&
		len(document.SystemObjects) == 0 && len(document.Values) == 0 {
		result.AddError(name, "artifacts", "document has no artifacts or values", ValidationLevelWarning)
	}
}

func (v *DocumentValidator) validateTemplates(document *types.DocumentSpec, result *ValidationResult) {
	name := document.Name

	outputs := make(map[string]string)
	for _, templatePath := range document.Templates {
		if templatePath == "" {
			result.AddError(name, "templates", "empty template path", ValidationLevelError)
			continue
		}

		// Two templates collapsing onto one output file would race
		output := types.OutputBaseName(templatePath)
		if previous, ok := outputs[output]; ok {
			result.AddError(name, "templates",
				fmt.Sprintf("templates %s and %s both produce output %s", previous, templatePath, output),
				ValidationLevelError)
		} else {
			outputs[output] = templatePath
		}

		fullPath := v.resolvePath(templatePath)
		source, err := os.ReadFile(fullPath)
		if err != nil {
			result.AddError(name, "templates",
				fmt.Sprintf("template not readable: %s", templatePath), ValidationLevelError)
			continue
		}

		if v.engine != nil {
			if _, err := v.engine.Compile(filepath.Base(templatePath), source); err != nil {
				result.AddError(name, "templates", err.Error(), ValidationLevelError)
			}
		}
	}
}

func (v *DocumentValidator) validateArtifacts(document *types.DocumentSpec, result *ValidationResult) {
	name := document.Name

	if document.InterfaceView != "" {
		if _, err := artifacts.ReadInterfaceView(v.resolvePath(document.InterfaceView)); err != nil {
			result.AddError(name, "interfaceView", err.Error(), ValidationLevelError)
		}
	}

	if document.DeploymentView != "" {
		if _, err := artifacts.ReadDeploymentView(v.resolvePath(document.DeploymentView)); err != nil {
			result.AddError(name, "deploymentView", err.Error(), ValidationLevelError)
		}
	}

	for _, tablePath := range document.SystemObjects {
		if tablePath == "" {
			result.AddError(name, "systemObjects", "empty table path", ValidationLevelError)
			continue
		}
		if _, err := artifacts.ReadSystemObjects(v.resolvePath(tablePath), document.GetCSVDelimiter()); err != nil {
			result.AddError(name, "systemObjects", err.Error(), ValidationLevelError)
		}
	}
}

func (v *DocumentValidator) resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(v.projectRoot, path)
}
