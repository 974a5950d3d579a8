// SPDX-License-Identifier: Apache-2.0

package mapping

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xataio/bai2load/internal/json"
	"gopkg.in/yaml.v3"
)

// Config is the declarative mapping document. It holds the per bank type
// code rules, the default rule set and the destination table schemas.
type Config struct {
	Mappings           []BankMappings `json:"mappings" yaml:"mappings"`
	DefaultRules       []Rule         `json:"bank_id_default_typecodes" yaml:"bank_id_default_typecodes"`
	CommonSchema       []ColumnSpec   `json:"common_fields_schema" yaml:"common_fields_schema"`
	BalanceSchema      []ColumnSpec   `json:"balance_table_schema" yaml:"balance_table_schema"`
	TransactionsSchema []ColumnSpec   `json:"transactions_table_schema" yaml:"transactions_table_schema"`
}

type BankMappings struct {
	BankID string `json:"bank_id" yaml:"bank_id"`
	Rules  []Rule `json:"mappings" yaml:"mappings"`
}

// Rule translates one statement type code into a destination column
// assignment.
type Rule struct {
	SourceCode        string `json:"bai_code" yaml:"bai_code"`
	SourceField       string `json:"bai_field" yaml:"bai_field"`
	DestinationColumn string `json:"bq_column" yaml:"bq_column"`
	DestinationTable  string `json:"table" yaml:"table"`
}

type ColumnSpec struct {
	Name         string `json:"name" yaml:"name"`
	Required     bool   `json:"required,omitempty" yaml:"required,omitempty"`
	Sensitive    bool   `json:"sensitive,omitempty" yaml:"sensitive,omitempty"`
	DefaultValue any    `json:"default_value,omitempty" yaml:"default_value,omitempty"`
}

func (c ColumnSpec) HasDefault() bool {
	return c.DefaultValue != nil
}

// LoadConfig reads the mapping document from the given path. Files with a
// .json extension are decoded as JSON, anything else as YAML (which also
// accepts JSON).
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("reading mapping config %q", path), Err: err}
	}

	cfg, err := ParseConfig(data, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseConfig decodes a mapping document. The format is picked from the file
// extension, including the leading dot.
func ParseConfig(data []byte, ext string) (*Config, error) {
	cfg := &Config{}
	var err error
	switch strings.ToLower(ext) {
	case ".json":
		err = json.Unmarshal(data, cfg)
	default:
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, &ConfigError{Reason: "decoding mapping config", Err: err}
	}
	return cfg, nil
}

// rulesForBank returns the rules of every mapping entry declared for the bank,
// in declaration order.
func (c *Config) rulesForBank(bankID string) []Rule {
	var rules []Rule
	for _, m := range c.Mappings {
		if m.BankID == bankID {
			rules = append(rules, m.Rules...)
		}
	}
	return rules
}
