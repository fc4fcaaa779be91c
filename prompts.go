package ouicomply

import (
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/tyler-sommer/stick"
)

//go:embed prompts
var promptFS embed.FS

// → StickPromptProvider is fs-agnostic
type StickPromptProvider struct {
	env       *stick.Env
	templates map[string]string
	vars      map[string]stick.Value
}

// → Option pattern keeps the constructor flexible
type PromptOption func(*StickPromptProvider) error

// WithFS loads every *.twig file found under dir in the supplied FS.
func WithFS[F fs.FS](fsys F, dir string) PromptOption {
	return func(p *StickPromptProvider) error {
		return fs.WalkDir(fsys, dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(path, ".twig") {
				return nil
			}
			content, readErr := fs.ReadFile(fsys, path)
			if readErr != nil {
				return fmt.Errorf("read %s: %w", path, readErr)
			}
			tag := strings.TrimSuffix(filepath.Base(path), ".twig")
			p.templates[tag] = string(content)
			return nil
		})
	}
}

// WithTemplates lets you inject an in-memory map.
func WithTemplates(m map[string]string) PromptOption {
	return func(p *StickPromptProvider) error {
		for k, v := range m {
			p.templates[k] = v
		}
		return nil
	}
}

// WithVar adds a variable that will be available in all templates.
func WithVar(key string, value stick.Value) PromptOption {
	return func(p *StickPromptProvider) error {
		p.vars[key] = value
		return nil
	}
}

// NewStickPromptProvider builds a provider from any combination of options.
func NewStickPromptProvider(opts ...PromptOption) (*StickPromptProvider, error) {
	p := &StickPromptProvider{
		env:       stick.New(nil),
		templates: make(map[string]string),
		vars:      make(map[string]stick.Value),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// defaultPromptProvider loads the embedded compliance templates.
func defaultPromptProvider() (*StickPromptProvider, error) {
	return NewStickPromptProvider(WithFS(promptFS, "prompts"))
}

// AddTemplate updates or inserts one template.
func (p *StickPromptProvider) AddTemplate(tag, tpl string) { p.templates[tag] = tpl }

// GetPrompt renders the template for the given tag with only the
// provider-level variables.
func (p *StickPromptProvider) GetPrompt(tag string) (string, error) {
	return p.Render(tag, nil)
}

// Render renders the template for tag with per-call context merged over
// the provider-level variables.
func (p *StickPromptProvider) Render(tag string, ctx map[string]stick.Value) (string, error) {
	tpl, ok := p.templates[tag]
	if !ok {
		return "", fmt.Errorf("template %q not found", tag)
	}

	templateCtx := make(map[string]stick.Value, len(p.vars)+len(ctx)+1)
	templateCtx["tag"] = tag
	for k, v := range p.vars {
		templateCtx[k] = v
	}
	for k, v := range ctx {
		templateCtx[k] = v
	}

	var out strings.Builder
	if err := p.env.Execute(tpl, &out, templateCtx); err != nil {
		return "", fmt.Errorf("execute %q: %w", tag, err)
	}
	return out.String(), nil
}

// analysisPromptContext assembles the template context for one request.
// Clause and indicator lists are flattened across the requested
// frameworks so the template stays free of struct access.
func analysisPromptContext(frameworks []Framework, depth, document, documentID string) map[string]stick.Value {
	names := make([]string, 0, len(frameworks))
	var clauses, indicators []stick.Value
	for _, f := range frameworks {
		names = append(names, f.Name)
		for _, c := range f.RequiredClauses {
			clauses = append(clauses, f.ID+": "+c)
		}
		for _, ri := range f.RiskIndicators {
			indicators = append(indicators, f.ID+": "+ri)
		}
	}
	return map[string]stick.Value{
		"framework_names":  strings.Join(names, ", "),
		"required_clauses": clauses,
		"risk_indicators":  indicators,
		"depth":            depth,
		"document":         document,
		"document_id":      documentID,
	}
}
