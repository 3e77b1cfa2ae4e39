package engine

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ghostwriter/ghostwriter/pkg/interfaces"
	"github.com/ghostwriter/ghostwriter/pkg/logger"
	"github.com/ghostwriter/ghostwriter/pkg/utils"
)

// Cache speeds up repeated renders. Within an invocation it shares compiled
// templates between jobs; across invocations it keeps per-template manifests
// so an unchanged template+context+output can skip the render entirely.
// The cache is purely an optimization: a stale, missing, or corrupt entry
// falls back to a fresh render, and output bytes are identical either way.
type Cache struct {
	dir string
	log logger.Logger

	mu       sync.Mutex
	compiled map[string]*compileResult
}

type compileResult struct {
	once sync.Once
	tmpl interfaces.CompiledTemplate
	err  error
}

// NewCache creates a cache. An empty dir disables the on-disk manifests;
// in-memory compiled-template sharing always stays on.
func NewCache(dir string, log logger.Logger) *Cache {
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Warn("Module cache directory unavailable, continuing without",
				logger.WithField("dir", dir),
				logger.WithField("error", err))
			dir = ""
		}
	}

	return &Cache{
		dir:      dir,
		log:      log,
		compiled: make(map[string]*compileResult),
	}
}

// Enabled reports whether on-disk manifests are active
func (c *Cache) Enabled() bool {
	return c.dir != ""
}

// Compile returns the compiled template for the source, compiling at most
// once per template identity (name + content hash) within this invocation.
// Concurrent callers for the same identity share one compile.
func (c *Cache) Compile(eng interfaces.Engine, name string, source []byte) (interfaces.CompiledTemplate, error) {
	key := name + "@" + utils.HashBytes(source)

	c.mu.Lock()
	entry, ok := c.compiled[key]
	if !ok {
		entry = &compileResult{}
		c.compiled[key] = entry
	}
	c.mu.Unlock()

	entry.once.Do(func() {
		entry.tmpl, entry.err = eng.Compile(name, source)
	})

	return entry.tmpl, entry.err
}

type manifest struct {
	TemplatePath       string    `json:"templatePath"`
	TemplateHash       string    `json:"templateHash"`
	ContextFingerprint string    `json:"contextFingerprint"`
	OutputHash         string    `json:"outputHash"`
	Assets             []string  `json:"assets,omitempty"`
	RenderedAt         time.Time `json:"renderedAt"`
}

// CanSkip reports whether the output on disk already matches this template
// and context according to a stored manifest. Any doubt means no skip.
// On a skip it also returns the asset references recorded by the original
// render, since the template will not run again to re-report them.
func (c *Cache) CanSkip(templatePath, templateHash, contextFingerprint, outputPath string) (bool, []string) {
	if !c.Enabled() {
		return false, nil
	}

	data, err := os.ReadFile(c.manifestPath(templatePath))
	if err != nil {
		return false, nil
	}

	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		c.log.Debug("Ignoring corrupt cache manifest",
			logger.WithField("template", templatePath),
			logger.WithField("error", err))
		return false, nil
	}

	if m.TemplateHash != templateHash || m.ContextFingerprint != contextFingerprint {
		return false, nil
	}

	// The output itself must still match what the manifest recorded
	outputHash, err := utils.HashFile(outputPath)
	if err != nil {
		return false, nil
	}
	if outputHash != m.OutputHash {
		return false, nil
	}

	return true, m.Assets
}

// Store records a successful render in a manifest. Failures are logged and
// otherwise ignored; they only cost a future skip.
func (c *Cache) Store(templatePath, templateHash, contextFingerprint, outputPath, outputHash string, assets []string) {
	if !c.Enabled() {
		return
	}

	m := manifest{
		TemplatePath:       templatePath,
		TemplateHash:       templateHash,
		ContextFingerprint: contextFingerprint,
		OutputHash:         outputHash,
		Assets:             assets,
		RenderedAt:         time.Now(),
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return
	}

	fs := utils.NewFileSystemUtils()
	if err := fs.WriteFile(c.manifestPath(templatePath), data); err != nil {
		c.log.Debug("Failed to write cache manifest",
			logger.WithField("template", templatePath),
			logger.WithField("error", err))
	}
}

// Invalidate drops the manifest for a template
func (c *Cache) Invalidate(templatePath string) {
	if !c.Enabled() {
		return
	}
	os.Remove(c.manifestPath(templatePath))
}

func (c *Cache) manifestPath(templatePath string) string {
	sum := utils.HashBytes([]byte(templatePath))
	return filepath.Join(c.dir, sum[:16]+".manifest.json")
}
