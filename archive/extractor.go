package archive

import (
	"context"

	metagen "github.com/appstream-tools/metagen"
)

type componentEntry struct {
	ID       string `yaml:"id"`
	Document string `yaml:"document"`
	Hints    string `yaml:"hints,omitempty"`
	Ignore   bool   `yaml:"ignore,omitempty"`
}

// manifestComponent adapts a manifest component entry to the
// metagen.Component contract.
type manifestComponent struct {
	gid     metagen.GlobalID
	doc     string
	hints   string
	ignored bool
}

func (c *manifestComponent) GlobalID() metagen.GlobalID {
	return c.gid
}

func (c *manifestComponent) Ignored() bool {
	return c.ignored
}

func (c *manifestComponent) Document() (string, error) {
	return c.doc, nil
}

func (c *manifestComponent) Hints() string {
	return c.hints
}

// Process implements metagen.Extractor by returning the pre-extracted
// component documents the manifest carries for the package. Packages with
// no manifest components yield an empty set and end up recorded as
// ignored.
func (p *ManifestProvider) Process(_ context.Context, pkg metagen.PackageInfo) ([]metagen.Component, error) {
	m, err := p.load()
	if err != nil {
		return nil, err
	}

	pkid := pkg.ID()
	var cpts []metagen.Component
	for _, bySection := range m.Suites {
		for _, byArch := range bySection {
			for _, entries := range byArch {
				for _, e := range entries {
					if e.ID() != pkid {
						continue
					}
					for _, c := range e.Components {
						cpts = append(cpts, &manifestComponent{
							gid:     metagen.MakeGlobalID(pkg.Name, c.ID, []byte(c.Document)),
							doc:     c.Document,
							hints:   c.Hints,
							ignored: c.Ignore,
						})
					}
				}
			}
		}
	}
	return cpts, nil
}
