package config

import (
	"fmt"
	"os"

	"github.com/couchcryptid/travel-advisory-etl/internal/domain"
	"gopkg.in/yaml.v3"
)

// RuleFile is the YAML layout of CODE_TABLE_PATH. Every section is optional
// and layers over the built-in table.
//
//	codes:
//	  GM: DE
//	redirects:
//	  BL: BOLIV
//	aggregates:
//	  A3: [GP, MQ, MF, BL]
//	overrides:
//	  - title_name: Macau
//	    code: MO
type RuleFile struct {
	Codes      map[string]string   `yaml:"codes"`
	Redirects  map[string]string   `yaml:"redirects"`
	Aggregates map[string][]string `yaml:"aggregates"`
	Overrides  []domain.Rule       `yaml:"overrides"`
}

// LoadCodeTable returns the built-in code table and override rules, merged
// with the rule file at path when path is non-empty. File overrides run
// before the built-in ones.
func LoadCodeTable(path string) (domain.CodeTable, []domain.Rule, error) {
	table := domain.DefaultCodeTable()
	rules := domain.DefaultRules()
	if path == "" {
		return table, rules, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return domain.CodeTable{}, nil, fmt.Errorf("read code table: %w", err)
	}
	var rf RuleFile
	if err := yaml.Unmarshal(b, &rf); err != nil {
		return domain.CodeTable{}, nil, fmt.Errorf("parse code table %s: %w", path, err)
	}
	for i, r := range rf.Overrides {
		if r.Code == "" || (r.TitleName == "" && r.Tag == "") {
			return domain.CodeTable{}, nil, fmt.Errorf("parse code table %s: override %d needs code and title_name or tag", path, i)
		}
	}

	table = table.Merge(rf.Codes, rf.Redirects, rf.Aggregates)
	return table, append(rf.Overrides, rules...), nil
}
