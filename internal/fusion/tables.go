// Package fusion converts heterogeneous raw price observations into a
// standardized form and fuses them into a single valuation.
package fusion

import (
	_ "embed"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/collectorvault/appraise/internal/model"
)

//go:embed tables.yaml
var defaultTablesYAML []byte

// Tables holds the static normalization data: currency conversion rates to
// USD and the ordered condition keyword rules.
type Tables struct {
	Currencies map[string]float64 `yaml:"currencies"`
	Conditions []ConditionRule    `yaml:"conditions"`
}

// ConditionRule maps free-text keywords onto one standard condition level.
// Rules are evaluated in order; the first keyword hit wins.
type ConditionRule struct {
	Level    string   `yaml:"level"`
	Keywords []string `yaml:"keywords"`

	level model.Condition
}

// LoadTables parses normalization tables from YAML.
func LoadTables(data []byte) (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, eris.Wrap(err, "fusion: parse tables")
	}
	if len(t.Currencies) == 0 {
		return nil, eris.New("fusion: tables define no currencies")
	}
	for i := range t.Conditions {
		lvl, err := parseConditionLevel(t.Conditions[i].Level)
		if err != nil {
			return nil, err
		}
		t.Conditions[i].level = lvl
	}
	return &t, nil
}

// DefaultTables returns the embedded normalization tables.
func DefaultTables() *Tables {
	t, err := LoadTables(defaultTablesYAML)
	if err != nil {
		// The embedded tables are validated by tests; a parse failure here
		// is a build defect.
		panic(err)
	}
	return t
}

func parseConditionLevel(s string) (model.Condition, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "poor":
		return model.ConditionPoor, nil
	case "good":
		return model.ConditionGood, nil
	case "excellent":
		return model.ConditionExcellent, nil
	case "near mint":
		return model.ConditionNearMint, nil
	case "mint":
		return model.ConditionMint, nil
	default:
		return 0, eris.Errorf("fusion: unknown condition level %q", s)
	}
}
