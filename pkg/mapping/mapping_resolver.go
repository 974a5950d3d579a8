// SPDX-License-Identifier: Apache-2.0

package mapping

import (
	"fmt"

	"github.com/xataio/bai2load/pkg/bai2"
	loglib "github.com/xataio/bai2load/pkg/log"
)

const (
	BalanceTable      = "balance"
	TransactionsTable = "transactions"

	// AmountColumn drives the debit/credit indicator, so only the numeric
	// amount field can be mapped onto it.
	AmountColumn      = "transaction_amount"
	amountSourceField = "amount"
)

// Resolver selects the mapping rule set that applies to a bank. All rule
// sets in the configuration are compiled and validated up front, so an
// invalid rule fails the run before any statement is read.
type Resolver struct {
	logger     loglib.Logger
	bankRules  map[string]*RuleSet
	defaultSet *RuleSet
}

// RuleSet is the compiled, indexed set of rules for one bank.
type RuleSet struct {
	BankID    string
	IsDefault bool

	balance      map[string][]BalanceRule
	transactions map[string][]TransactionRule
	size         int
}

type BalanceRule struct {
	Rule
	read summaryAccessor
}

type TransactionRule struct {
	Rule
	read transactionAccessor
}

type ResolverOption func(r *Resolver)

func WithLogger(l loglib.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = loglib.NewLogger(l).WithFields(loglib.Fields{
			loglib.ModuleField: "mapping_resolver",
		})
	}
}

func NewResolver(cfg *Config, opts ...ResolverOption) (*Resolver, error) {
	r := &Resolver{
		logger:    loglib.NewNoopLogger(),
		bankRules: map[string]*RuleSet{},
	}
	for _, opt := range opts {
		opt(r)
	}

	for _, m := range cfg.Mappings {
		if _, found := r.bankRules[m.BankID]; found {
			continue
		}
		rules := cfg.rulesForBank(m.BankID)
		if len(rules) == 0 {
			continue
		}
		rs, err := compileRuleSet(m.BankID, rules, false)
		if err != nil {
			return nil, err
		}
		r.bankRules[m.BankID] = rs
	}

	if len(cfg.DefaultRules) > 0 {
		rs, err := compileRuleSet("", cfg.DefaultRules, true)
		if err != nil {
			return nil, err
		}
		r.defaultSet = rs
	}

	return r, nil
}

// RulesFor returns the bank specific rule set, falling back to the default
// one. It fails when neither is configured.
func (r *Resolver) RulesFor(bankID string) (*RuleSet, error) {
	if rs, found := r.bankRules[bankID]; found {
		return rs, nil
	}

	if r.defaultSet == nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("no mappings found for bank_id %q and no default type codes provided", bankID)}
	}

	r.logger.Warn(nil, "no bank specific mappings found, using default type codes", loglib.Fields{"bank_id": bankID})
	rs := *r.defaultSet
	rs.BankID = bankID
	return &rs, nil
}

func compileRuleSet(bankID string, rules []Rule, isDefault bool) (*RuleSet, error) {
	rs := &RuleSet{
		BankID:       bankID,
		IsDefault:    isDefault,
		balance:      map[string][]BalanceRule{},
		transactions: map[string][]TransactionRule{},
	}

	for i, rule := range rules {
		if err := validateRule(rule); err != nil {
			return nil, &ConfigError{Reason: fmt.Sprintf("rule %d for bank %q", i, bankIDOrDefault(bankID, isDefault)), Err: err}
		}

		switch rule.DestinationTable {
		case BalanceTable:
			br := BalanceRule{Rule: rule, read: summaryFields[rule.SourceField]}
			rs.balance[rule.SourceCode] = upsert(rs.balance[rule.SourceCode], br, func(r BalanceRule) Rule { return r.Rule })
		case TransactionsTable:
			tr := TransactionRule{Rule: rule, read: transactionFields[rule.SourceField]}
			rs.transactions[rule.SourceCode] = upsert(rs.transactions[rule.SourceCode], tr, func(r TransactionRule) Rule { return r.Rule })
		}
	}

	for _, r := range rs.balance {
		rs.size += len(r)
	}
	for _, r := range rs.transactions {
		rs.size += len(r)
	}
	return rs, nil
}

// upsert appends the rule, replacing an earlier rule that writes the same
// column for the same code. The later declaration wins.
func upsert[T any](rules []T, rule T, ruleOf func(T) Rule) []T {
	newRule := ruleOf(rule)
	for i, existing := range rules {
		if ruleOf(existing).DestinationColumn == newRule.DestinationColumn {
			rules[i] = rule
			return rules
		}
	}
	return append(rules, rule)
}

func validateRule(rule Rule) error {
	if rule.SourceCode == "" {
		return errMissingSourceCode
	}
	if rule.DestinationColumn == "" {
		return errMissingDestinationColumn
	}

	switch rule.DestinationTable {
	case BalanceTable:
		if _, found := summaryFields[rule.SourceField]; !found {
			return fmt.Errorf("%w: %q is not a summary item field (one of %v)", errUnknownSourceField, rule.SourceField, SummaryFields())
		}
	case TransactionsTable:
		if _, found := transactionFields[rule.SourceField]; !found {
			return fmt.Errorf("%w: %q is not a transaction field (one of %v)", errUnknownSourceField, rule.SourceField, TransactionFields())
		}
		if rule.DestinationColumn == AmountColumn && rule.SourceField != amountSourceField {
			return fmt.Errorf("%w: %s can't be read from %q", errNonNumericAmount, AmountColumn, rule.SourceField)
		}
	default:
		return fmt.Errorf("%w: %q", errUnknownTable, rule.DestinationTable)
	}
	return nil
}

func bankIDOrDefault(bankID string, isDefault bool) string {
	if isDefault {
		return "default"
	}
	return bankID
}

// BalanceRules returns the rules targeting the balance table for a summary
// type code.
func (rs *RuleSet) BalanceRules(code string) []BalanceRule {
	return rs.balance[code]
}

// TransactionRules returns the rules targeting the transactions table for a
// transaction type code.
func (rs *RuleSet) TransactionRules(code string) []TransactionRule {
	return rs.transactions[code]
}

// Len returns the number of distinct rules in the set.
func (rs *RuleSet) Len() int {
	return rs.size
}

// Value reads the rule's source field off the summary item.
func (r BalanceRule) Value(s bai2.Summary) (any, bool) {
	return r.read(s)
}

// Value reads the rule's source field off the transaction.
func (r TransactionRule) Value(tx *bai2.Transaction) (any, bool) {
	return r.read(tx)
}
