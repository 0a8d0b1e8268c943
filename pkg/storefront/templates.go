package storefront

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/platinummonkey/guidepost/pkg/observability"
)

//go:embed templates/*.html
var embeddedTemplates embed.FS

const layoutName = "layout"

// TemplateSet holds one parsed page template per name, each composed with
// the shared layout. Files in the override directory replace embedded
// files of the same name.
type TemplateSet struct {
	dir   string
	mu    sync.RWMutex
	pages map[string]*template.Template
}

// NewTemplateSet parses the embedded templates and, when dir is set, the
// overrides found there
func NewTemplateSet(dir string) (*TemplateSet, error) {
	ts := &TemplateSet{dir: dir}
	if err := ts.Reload(); err != nil {
		return nil, err
	}
	return ts, nil
}

// Reload re-parses every template. On error the previous set stays live.
func (ts *TemplateSet) Reload() error {
	sources, err := ts.readSources()
	if err != nil {
		return err
	}
	layoutSrc, ok := sources["layout.html"]
	if !ok {
		return fmt.Errorf("template set has no layout.html")
	}
	layout, err := template.New(layoutName).Parse(layoutSrc)
	if err != nil {
		return fmt.Errorf("failed to parse layout: %w", err)
	}

	pages := make(map[string]*template.Template, len(sources))
	for file, src := range sources {
		if file == "layout.html" {
			continue
		}
		t, err := layout.Clone()
		if err != nil {
			return fmt.Errorf("failed to clone layout: %w", err)
		}
		if _, err := t.Parse(src); err != nil {
			return fmt.Errorf("failed to parse %s: %w", file, err)
		}
		pages[strings.TrimSuffix(file, ".html")] = t
	}

	ts.mu.Lock()
	ts.pages = pages
	ts.mu.Unlock()
	return nil
}

func (ts *TemplateSet) readSources() (map[string]string, error) {
	sources := make(map[string]string)
	entries, err := fs.ReadDir(embeddedTemplates, "templates")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded templates: %w", err)
	}
	for _, e := range entries {
		body, err := embeddedTemplates.ReadFile("templates/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read embedded template %s: %w", e.Name(), err)
		}
		sources[e.Name()] = string(body)
	}

	if ts.dir == "" {
		return sources, nil
	}
	files, err := filepath.Glob(filepath.Join(ts.dir, "*.html"))
	if err != nil {
		return nil, fmt.Errorf("failed to list template directory: %w", err)
	}
	for _, f := range files {
		body, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", f, err)
		}
		sources[filepath.Base(f)] = string(body)
	}
	return sources, nil
}

// Has reports whether a page template exists
func (ts *TemplateSet) Has(name string) bool {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	_, ok := ts.pages[name]
	return ok
}

// Execute renders the named page inside the layout
func (ts *TemplateSet) Execute(w io.Writer, name string, data interface{}) error {
	ts.mu.RLock()
	t, ok := ts.pages[name]
	ts.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoTemplate, name)
	}
	return t.ExecuteTemplate(w, layoutName, data)
}

// Watch reloads the set whenever an .html file in the override directory
// changes, until ctx is done. It returns immediately when no directory is
// configured.
func (ts *TemplateSet) Watch(ctx context.Context, logger *observability.Logger) error {
	if ts.dir == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create template watcher: %w", err)
	}
	if err := watcher.Add(ts.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", ts.dir, err)
	}

	go func() {
		defer watcher.Close()
		defer observability.RecoverPanic(logger, "template watcher")
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Ext(event.Name) != ".html" {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				if err := ts.Reload(); err != nil {
					logger.WithError(err).WithField("file", event.Name).Error("template reload failed")
					continue
				}
				logger.WithField("file", event.Name).Info("templates reloaded")
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.WithError(err).Warn("template watcher error")
			}
		}
	}()
	return nil
}
