// Package render builds the data context shared by every template in a
// render batch. A context is assembled once from the supplied artifacts and
// value overrides, then handed read-only to all render jobs.
package render

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/ghostwriter/ghostwriter/pkg/artifacts"
)

// TemplateContext is the immutable root object visible to templates. Nil
// artifact fields mean the artifact was not supplied, which templates can
// distinguish from supplied-but-empty via the Has predicates.
type TemplateContext struct {
	Interfaces      *artifacts.InterfaceView       `json:"interfaces,omitempty"`
	Deployment      *artifacts.DeploymentView      `json:"deployment,omitempty"`
	SystemObjects   []*artifacts.SystemObjectTable `json:"system_objects,omitempty"`
	Values          map[string]string              `json:"values,omitempty"`
	OutputDirectory string                         `json:"output_directory,omitempty"`
}

// HasInterfaces reports whether an interface view was supplied.
func (c *TemplateContext) HasInterfaces() bool {
	return c.Interfaces != nil
}

// HasDeployment reports whether a deployment view was supplied.
func (c *TemplateContext) HasDeployment() bool {
	return c.Deployment != nil
}

// SystemObject returns the table with the given name, or nil. Tables keep
// their supply order and are never merged, so the first match wins.
func (c *TemplateContext) SystemObject(name string) *artifacts.SystemObjectTable {
	for _, table := range c.SystemObjects {
		if table.Name == name {
			return table
		}
	}
	return nil
}

// Value returns the override value for name and whether it was set.
func (c *TemplateContext) Value(name string) (string, bool) {
	v, ok := c.Values[name]
	return v, ok
}

// Fingerprint returns a stable SHA-256 hex digest of the context. Map keys
// are sorted by encoding/json, so equal contexts always produce equal
// fingerprints regardless of construction order.
func (c *TemplateContext) Fingerprint() (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to fingerprint context: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
