package reports

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/lfreitas-dev/nfcom-analyzer/internal/core/domain"
)

//go:embed reports.yaml
var builtinReports []byte

// Catalog holds the canned analytical queries, keyed by name. The
// built-in set ships embedded; an operator file replaces it entirely.
type Catalog struct {
	byName map[string]domain.Report
	names  []string
}

// Load builds the catalog from path, or from the embedded defaults
// when path is empty.
func Load(path string) (*Catalog, error) {
	raw := builtinReports
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read reports file: %w", err)
		}
		raw = data
	}

	var file struct {
		Reports []domain.Report `yaml:"reports"`
	}
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse reports yaml: %w", err)
	}

	catalog := &Catalog{byName: make(map[string]domain.Report, len(file.Reports))}
	for _, r := range file.Reports {
		if r.Name == "" || r.SQL == "" {
			return nil, fmt.Errorf("report entry missing name or sql")
		}
		if _, exists := catalog.byName[r.Name]; exists {
			return nil, fmt.Errorf("duplicate report name %q", r.Name)
		}
		catalog.byName[r.Name] = r
		catalog.names = append(catalog.names, r.Name)
	}
	sort.Strings(catalog.names)
	return catalog, nil
}

func (c *Catalog) List() []domain.Report {
	out := make([]domain.Report, 0, len(c.names))
	for _, name := range c.names {
		out = append(out, c.byName[name])
	}
	return out
}

func (c *Catalog) Get(name string) (domain.Report, bool) {
	r, ok := c.byName[name]
	return r, ok
}
