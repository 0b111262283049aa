package selectors

import (
	_ "embed"
	"fmt"

	"github.com/sourcerie/affut/pkg/models"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type defaultsFile struct {
	Elements []struct {
		Element    string `yaml:"element"`
		Strategies []struct {
			ID         string `yaml:"id"`
			Expression string `yaml:"expression"`
		} `yaml:"strategies"`
	} `yaml:"elements"`
}

// defaultProfiles parses the embedded strategy plans. Declared order is the
// declared priority.
func defaultProfiles() ([]*models.SelectorProfile, error) {
	var f defaultsFile
	if err := yaml.Unmarshal(defaultsYAML, &f); err != nil {
		return nil, fmt.Errorf("parsing embedded selector defaults: %w", err)
	}
	if len(f.Elements) == 0 {
		return nil, fmt.Errorf("embedded selector defaults name no elements")
	}

	profiles := make([]*models.SelectorProfile, 0, len(f.Elements))
	for _, e := range f.Elements {
		if len(e.Strategies) == 0 {
			return nil, fmt.Errorf("element %q has no strategies", e.Element)
		}
		p := &models.SelectorProfile{
			Element: models.ElementKind(e.Element),
			State:   models.SelectorActive,
		}
		for i, s := range e.Strategies {
			p.Strategies = append(p.Strategies, &models.Strategy{
				ID:         s.ID,
				Expression: s.Expression,
				Priority:   i,
				State:      models.SelectorActive,
			})
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}
