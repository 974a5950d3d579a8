// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"github.com/xataio/bai2load/pkg/mapping"
)

// MappingSummary describes the rules a bank would be processed with.
type MappingSummary struct {
	BankID           string
	DefaultRuleSet   bool
	Rules            int
	Tables           []string
	SensitiveColumns []string
}

// CheckMapping loads the mapping document and builds the catalog and the rule
// set of the given bank, without contacting any remote service. An empty
// bank id only checks the document and the default rules.
func CheckMapping(mappingPath, bankID string) (*MappingSummary, error) {
	cfg, err := mapping.LoadConfig(mappingPath)
	if err != nil {
		return nil, err
	}
	catalog, err := mapping.NewCatalog(cfg)
	if err != nil {
		return nil, err
	}
	resolver, err := mapping.NewResolver(cfg)
	if err != nil {
		return nil, err
	}

	summary := &MappingSummary{
		BankID:           bankID,
		Tables:           catalog.Tables(),
		SensitiveColumns: catalog.SensitiveColumns(),
	}
	ruleSet, err := resolver.RulesFor(bankID)
	if err != nil {
		return nil, err
	}
	summary.DefaultRuleSet = ruleSet.IsDefault
	summary.Rules = ruleSet.Len()
	return summary, nil
}
