// SPDX-License-Identifier: Apache-2.0

// Package transform walks a parsed statement and builds one balance row per
// account and one transaction row per transaction.
package transform

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xataio/bai2load/pkg/bai2"
	loglib "github.com/xataio/bai2load/pkg/log"
	"github.com/xataio/bai2load/pkg/mapping"
	"github.com/xataio/bai2load/pkg/rows"
)

const (
	organisationColumn  = "organisation_biz_id"
	divisionColumn      = "division_biz_id"
	accountNumberColumn = "account_number"
	balanceDateColumn   = "balance_date"
	currencyColumn      = "currency"
	bsbColumn           = "bsb"
	institutionColumn   = "financial_institute"
	currencyCodeColumn  = "currency_code"
	postingDateColumn   = "transaction_posting_date"
	valueDateColumn     = "transaction_value_date"
	amountColumn        = mapping.AmountColumn
	debitCreditColumn   = "debit_credit_indicator"
	debitIndicator      = "D"
	creditIndicator     = "C"
	unknownCurrency     = " "
	isoDate             = "2006-01-02"
)

// Identifiers are the bank and customer a statement belongs to.
type Identifiers struct {
	BankID     string
	CustomerID string
}

// Transformer builds destination rows from a statement. It is safe for
// concurrent use.
type Transformer struct {
	logger             loglib.Logger
	balanceSchema      mapping.TableSchema
	transactionsSchema mapping.TableSchema
}

type Option func(t *Transformer)

func New(catalog *mapping.Catalog, opts ...Option) (*Transformer, error) {
	balanceSchema, err := catalog.Schema(mapping.BalanceTable)
	if err != nil {
		return nil, err
	}
	transactionsSchema, err := catalog.Schema(mapping.TransactionsTable)
	if err != nil {
		return nil, err
	}

	t := &Transformer{
		logger:             loglib.NewNoopLogger(),
		balanceSchema:      balanceSchema,
		transactionsSchema: transactionsSchema,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func WithLogger(l loglib.Logger) Option {
	return func(t *Transformer) {
		t.logger = loglib.NewLogger(l).WithFields(loglib.Fields{
			loglib.ModuleField: "row_transformer",
		})
	}
}

// Transform returns the balance and transaction rows of the statement in
// hierarchy order: for every account, its balance row followed by its
// transaction rows. A group without a statement date fails the whole
// statement.
func (t *Transformer) Transform(ctx context.Context, file *bai2.File, ruleSet *mapping.RuleSet, ids Identifiers) ([]*rows.Row, error) {
	result := []*rows.Row{}
	for i, group := range file.Groups {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if group.Header.AsOfDate == nil {
			return nil, &StructuralError{GroupIndex: i, Reason: "missing as_of_date"}
		}
		groupDate := *group.Header.AsOfDate

		for _, account := range group.Accounts {
			currency := accountCurrency(account, group)
			result = append(result, t.balanceRow(account, currency, groupDate, ruleSet, ids))
			for _, tx := range account.Transactions {
				row, err := t.transactionRow(account, tx, currency, groupDate, ruleSet, ids)
				if err != nil {
					return nil, err
				}
				result = append(result, row)
			}
		}
	}

	counts := rows.CountByTable(result)
	t.logger.Info("rows prepared", loglib.Fields{
		"rows":             len(result),
		"balance_rows":     counts[mapping.BalanceTable],
		"transaction_rows": counts[mapping.TransactionsTable],
		"bank_id":          ids.BankID,
		"default_rule_set": ruleSet.IsDefault,
	})
	return result, nil
}

func (t *Transformer) balanceRow(account *bai2.Account, currency string, groupDate time.Time, ruleSet *mapping.RuleSet, ids Identifiers) *rows.Row {
	row := rows.New(mapping.BalanceTable, ids.CustomerID)
	row.Set(organisationColumn, ids.CustomerID)
	row.Set(divisionColumn, ids.CustomerID)
	row.Set(accountNumberColumn, account.Number)
	row.Set(balanceDateColumn, groupDate.Format(isoDate))
	row.Set(currencyColumn, currency)
	row.Set(bsbColumn, " ")
	row.Set(institutionColumn, "")
	applyDefaults(row, t.balanceSchema)

	for _, summary := range account.Summaries {
		for _, rule := range ruleSet.BalanceRules(summary.TypeCode.Code) {
			if v, ok := rule.Value(summary); ok {
				row.Set(rule.DestinationColumn, v)
			}
		}
	}
	return row
}

func (t *Transformer) transactionRow(account *bai2.Account, tx *bai2.Transaction, currency string, groupDate time.Time, ruleSet *mapping.RuleSet, ids Identifiers) (*rows.Row, error) {
	row := rows.New(mapping.TransactionsTable, ids.CustomerID)
	row.Set(organisationColumn, ids.CustomerID)
	row.Set(divisionColumn, ids.CustomerID)
	row.Set(accountNumberColumn, account.Number)
	row.Set(currencyCodeColumn, currency)
	applyDefaults(row, t.transactionsSchema)

	amountMapped := false
	for _, rule := range ruleSet.TransactionRules(tx.TypeCode.Code) {
		v, ok := rule.Value(tx)
		if !ok {
			continue
		}
		row.Set(rule.DestinationColumn, v)
		if rule.DestinationColumn == amountColumn {
			amountMapped = true
		}
	}

	row.Set(postingDateColumn, dateOr(tx.PostingDate, groupDate))
	row.Set(valueDateColumn, dateOr(tx.ValueDate, groupDate))

	if !amountMapped {
		row.Set(amountColumn, decimal.Zero)
		row.Set(debitCreditColumn, debitIndicator)
		return row, nil
	}

	amount, _ := row.Get(amountColumn)
	negative, err := isNegative(amount)
	if err != nil {
		return nil, fmt.Errorf("transaction %s of account %s: %w", tx.TypeCode.Code, loglib.MaskID(account.Number), err)
	}
	if negative {
		row.Set(debitCreditColumn, debitIndicator)
	} else {
		row.Set(debitCreditColumn, creditIndicator)
	}
	return row, nil
}

// applyDefaults sets the schema default of every column still unset.
func applyDefaults(row *rows.Row, schema mapping.TableSchema) {
	for _, col := range schema {
		if col.HasDefault() {
			row.SetDefault(col.Name, col.DefaultValue)
		}
	}
}

func accountCurrency(account *bai2.Account, group *bai2.Group) string {
	switch {
	case account.Currency != "":
		return account.Currency
	case group.Header.Currency != "":
		return group.Header.Currency
	default:
		return unknownCurrency
	}
}

func dateOr(date *time.Time, fallback time.Time) string {
	if date != nil {
		return date.Format(isoDate)
	}
	return fallback.Format(isoDate)
}

func isNegative(v any) (bool, error) {
	switch amount := v.(type) {
	case decimal.Decimal:
		return amount.IsNegative(), nil
	case int:
		return amount < 0, nil
	case int64:
		return amount < 0, nil
	case float64:
		return amount < 0, nil
	case string:
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return false, fmt.Errorf("invalid %s %q: %w", amountColumn, amount, err)
		}
		return d.IsNegative(), nil
	default:
		return false, fmt.Errorf("unsupported %s type %T", amountColumn, v)
	}
}
