package templating

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"

	"github.com/yegors/geofs-atc/pkg/logger"
)

//go:embed templates/*.tmpl
var defaultTemplates embed.FS

// Engine handles template loading, caching, and rendering
type Engine struct {
	overrideDir   string
	reload        bool
	templateCache map[string]*template.Template
	cacheMutex    sync.RWMutex
	logger        *logger.Logger
}

// NewEngine creates a new template engine. Files in overrideDir replace the
// built-in templates of the same name; reload disables the cache.
func NewEngine(overrideDir string, reload bool, log *logger.Logger) *Engine {
	return &Engine{
		overrideDir:   overrideDir,
		reload:        reload,
		templateCache: make(map[string]*template.Template),
		logger:        log.Named("template-engine"),
	}
}

// RenderIntro renders the controller introduction system message
func (e *Engine) RenderIntro(d IntroData) (string, error) {
	return e.render(IntroTemplate, BuildIntroView(d))
}

// RenderUpdate renders a situational update system message
func (e *Engine) RenderUpdate(d UpdateData) (string, error) {
	return e.render(UpdateTemplate, BuildUpdateView(d))
}

func (e *Engine) render(name string, data any) (string, error) {
	tmpl, err := e.getTemplate(name)
	if err != nil {
		return "", fmt.Errorf("failed to get template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}

	rendered := strings.TrimSpace(buf.String())
	e.logger.Debug("Template rendered",
		logger.String("template", name),
		logger.Int("rendered_length", len(rendered)))
	return rendered, nil
}

// getTemplate retrieves a template from cache or loads it
func (e *Engine) getTemplate(name string) (*template.Template, error) {
	if e.reload {
		return e.loadTemplate(name)
	}

	e.cacheMutex.RLock()
	if tmpl, exists := e.templateCache[name]; exists {
		e.cacheMutex.RUnlock()
		return tmpl, nil
	}
	e.cacheMutex.RUnlock()

	e.cacheMutex.Lock()
	defer e.cacheMutex.Unlock()

	// Double-check in case another goroutine loaded it while we were waiting
	if tmpl, exists := e.templateCache[name]; exists {
		return tmpl, nil
	}

	tmpl, err := e.loadTemplate(name)
	if err != nil {
		return nil, err
	}

	e.templateCache[name] = tmpl
	e.logger.Debug("Template loaded and cached", logger.String("template", name))
	return tmpl, nil
}

// loadTemplate reads the override file if present, the built-in otherwise
func (e *Engine) loadTemplate(name string) (*template.Template, error) {
	content, source, err := e.readTemplate(name)
	if err != nil {
		return nil, err
	}

	tmpl, err := template.New(name).Option("missingkey=error").Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse template '%s': %w", source, err)
	}
	return tmpl, nil
}

func (e *Engine) readTemplate(name string) ([]byte, string, error) {
	if e.overrideDir != "" {
		path := filepath.Join(e.overrideDir, name)
		content, err := os.ReadFile(path)
		if err == nil {
			return content, path, nil
		}
		if !os.IsNotExist(err) {
			return nil, path, fmt.Errorf("failed to read template file '%s': %w", path, err)
		}
	}

	content, err := fs.ReadFile(defaultTemplates, "templates/"+name)
	if err != nil {
		return nil, name, fmt.Errorf("unknown template '%s': %w", name, err)
	}
	return content, "builtin:" + name, nil
}

// ClearCache clears the template cache
func (e *Engine) ClearCache() {
	e.cacheMutex.Lock()
	defer e.cacheMutex.Unlock()

	templateCount := len(e.templateCache)
	e.templateCache = make(map[string]*template.Template)

	e.logger.Info("Template cache cleared",
		logger.Int("cleared_count", templateCount))
}
