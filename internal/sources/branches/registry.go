// Package branches maps translation branch codes to the wikidot sites
// they live on.
package branches

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DestinationCode is the branch code of the canonical destination site,
// the one the "translated" tag is checked against.
const DestinationCode = "99"

// Site identifies one branch's wikidot site.
type Site struct {
	Name string `yaml:"name"` // wikidot subdomain, ex: "ru-backrooms-wiki"
	ID   int64  `yaml:"id"`   // wikidot site id used by the lookup module
}

// Registry resolves branch codes. Immutable after construction.
type Registry struct {
	sites map[string]Site
}

// Default returns the registry of the reference deployment. Code "15" is a
// branch without a public site yet; its zero id resolves every lookup to
// not-found.
func Default() *Registry {
	return &Registry{sites: map[string]Site{
		"01": {Name: "backrooms-wiki", ID: 4431268},
		"02": {Name: "ru-backrooms-wiki", ID: 4548260},
		"03": {Name: "fr-backrooms-wiki", ID: 4710749},
		"04": {Name: "pl-backrooms-wiki", ID: 4761123},
		"05": {Name: "es-backrooms-wiki", ID: 4745515},
		"06": {Name: "pt-br-backrooms-wiki", ID: 4714912},
		"07": {Name: "backrooms-vn", ID: 4748367},
		"08": {Name: "japan-backrooms-wiki", ID: 4864894},
		"15": {Name: "", ID: 0},
		"99": {Name: "backrooms-wiki-cn", ID: 4716348},
	}}
}

// Load reads a YAML map of branch code -> site and overlays it on the
// defaults, so a deployment only lists the branches that differ.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read branch file: %w", err)
	}

	var overrides map[string]Site
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("failed to parse branch yaml: %w", err)
	}

	reg := Default()
	for code, site := range overrides {
		reg.sites[code] = site
	}
	return reg, nil
}

// Site returns the site for a branch code.
func (r *Registry) Site(code string) (Site, bool) {
	site, ok := r.sites[code]
	return site, ok
}

// PageURL builds the public URL of a page on a branch, or "" when the
// branch has no site.
func (r *Registry) PageURL(code, unixName string) string {
	site, ok := r.sites[code]
	if !ok || site.Name == "" {
		return ""
	}
	return fmt.Sprintf("http://%s.wikidot.com/%s", site.Name, unixName)
}

// Codes returns every known branch code.
func (r *Registry) Codes() []string {
	out := make([]string, 0, len(r.sites))
	for code := range r.sites {
		out = append(out, code)
	}
	return out
}
