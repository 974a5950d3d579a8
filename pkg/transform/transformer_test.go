// SPDX-License-Identifier: Apache-2.0

package transform

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/xataio/bai2load/pkg/bai2"
	"github.com/xataio/bai2load/pkg/mapping"
	"github.com/xataio/bai2load/pkg/rows"
	"pgregory.net/rapid"
)

var (
	testDate = time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)
	testIDs  = Identifiers{BankID: "CITI", CustomerID: "CUST1"}
)

func testConfig() *mapping.Config {
	return &mapping.Config{
		DefaultRules: []mapping.Rule{
			{SourceCode: "010", SourceField: "amount", DestinationColumn: "opening_balance", DestinationTable: mapping.BalanceTable},
			{SourceCode: "475", SourceField: "amount", DestinationColumn: "transaction_amount", DestinationTable: mapping.TransactionsTable},
			{SourceCode: "475", SourceField: "text", DestinationColumn: "description", DestinationTable: mapping.TransactionsTable},
			{SourceCode: "165", SourceField: "bank_reference", DestinationColumn: "reference", DestinationTable: mapping.TransactionsTable},
		},
		CommonSchema: []mapping.ColumnSpec{
			{Name: "account_number", Required: true},
			{Name: "source", DefaultValue: "bai2"},
		},
		BalanceSchema: []mapping.ColumnSpec{
			{Name: "opening_balance"},
			{Name: "account_number", Required: true, DefaultValue: "unknown"},
		},
		TransactionsSchema: []mapping.ColumnSpec{
			{Name: "transaction_amount", Required: true, Sensitive: true},
			{Name: "description", DefaultValue: "n/a"},
		},
	}
}

func newTestTransformer(t *testing.T, cfg *mapping.Config) (*Transformer, *mapping.RuleSet) {
	t.Helper()

	catalog, err := mapping.NewCatalog(cfg)
	require.NoError(t, err)
	resolver, err := mapping.NewResolver(cfg)
	require.NoError(t, err)
	ruleSet, err := resolver.RulesFor(testIDs.BankID)
	require.NoError(t, err)
	transformer, err := New(catalog)
	require.NoError(t, err)
	return transformer, ruleSet
}

func amount(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func singleTransactionFile(tx *bai2.Transaction) *bai2.File {
	date := testDate
	return &bai2.File{
		Groups: []*bai2.Group{
			{
				Header: bai2.GroupHeader{AsOfDate: &date, Currency: "USD"},
				Accounts: []*bai2.Account{
					{Number: "001234", Currency: "USD", Transactions: []*bai2.Transaction{tx}},
				},
			},
		},
	}
}

func TestTransformer_Transform(t *testing.T) {
	t.Parallel()

	transformer, ruleSet := newTestTransformer(t, testConfig())
	tx := &bai2.Transaction{
		TypeCode: bai2.NewTypeCode("475", bai2.LevelDetail),
		Amount:   amount(-500),
	}

	got, err := transformer.Transform(context.Background(), singleTransactionFile(tx), ruleSet, testIDs)
	require.NoError(t, err)
	require.Len(t, got, 2)

	balance := got[0]
	require.Equal(t, mapping.BalanceTable, balance.Table)
	require.Equal(t, "CUST1", balance.KeyHint())
	require.Equal(t, map[string]any{
		"organisation_biz_id": "CUST1",
		"division_biz_id":     "CUST1",
		"account_number":      "001234",
		"balance_date":        "2024-01-15",
		"currency":            "USD",
		"bsb":                 " ",
		"financial_institute": "",
		"source":              "bai2",
	}, balance.Values)

	transaction := got[1]
	require.Equal(t, mapping.TransactionsTable, transaction.Table)
	require.Equal(t, "CUST1", transaction.KeyHint())
	require.Equal(t, map[string]any{
		"organisation_biz_id":      "CUST1",
		"division_biz_id":          "CUST1",
		"account_number":           "001234",
		"currency_code":            "USD",
		"source":                   "bai2",
		"description":              "n/a",
		"transaction_amount":       decimal.NewFromInt(-500),
		"transaction_posting_date": "2024-01-15",
		"transaction_value_date":   "2024-01-15",
		"debit_credit_indicator":   "D",
	}, transaction.Values)
}

func TestTransformer_Transform_multipleRulesOneRow(t *testing.T) {
	t.Parallel()

	transformer, ruleSet := newTestTransformer(t, testConfig())
	valueDate := time.Date(2024, time.January, 16, 0, 0, 0, 0, time.UTC)
	tx := &bai2.Transaction{
		TypeCode:  bai2.NewTypeCode("475", bai2.LevelDetail),
		Amount:    amount(2500),
		Text:      "CHECK PAID",
		ValueDate: &valueDate,
	}

	got, err := transformer.Transform(context.Background(), singleTransactionFile(tx), ruleSet, testIDs)
	require.NoError(t, err)
	require.Len(t, got, 2)

	row := got[1]
	require.Equal(t, decimal.NewFromInt(2500), row.Values["transaction_amount"])
	require.Equal(t, "CHECK PAID", row.Values["description"])
	require.Equal(t, "C", row.Values["debit_credit_indicator"])
	require.Equal(t, "2024-01-15", row.Values["transaction_posting_date"])
	require.Equal(t, "2024-01-16", row.Values["transaction_value_date"])
}

func TestTransformer_Transform_noAmountRule(t *testing.T) {
	t.Parallel()

	transformer, ruleSet := newTestTransformer(t, testConfig())

	tests := []struct {
		name string
		tx   *bai2.Transaction
	}{
		{
			name: "no matching rule",
			tx:   &bai2.Transaction{TypeCode: bai2.NewTypeCode("699", bai2.LevelDetail), Amount: amount(100)},
		},
		{
			name: "matching rule without amount",
			tx:   &bai2.Transaction{TypeCode: bai2.NewTypeCode("475", bai2.LevelDetail)},
		},
		{
			name: "rule for another column",
			tx:   &bai2.Transaction{TypeCode: bai2.NewTypeCode("165", bai2.LevelDetail), Amount: amount(100), BankReference: "REF2"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := transformer.Transform(context.Background(), singleTransactionFile(tc.tx), ruleSet, testIDs)
			require.NoError(t, err)
			require.Len(t, got, 2)
			require.Equal(t, decimal.Zero, got[1].Values["transaction_amount"])
			require.Equal(t, "D", got[1].Values["debit_credit_indicator"])
		})
	}
}

func TestTransformer_Transform_balanceRules(t *testing.T) {
	t.Parallel()

	transformer, ruleSet := newTestTransformer(t, testConfig())
	date := testDate
	file := &bai2.File{
		Groups: []*bai2.Group{
			{
				Header: bai2.GroupHeader{AsOfDate: &date, Currency: "AUD"},
				Accounts: []*bai2.Account{
					{
						Number: "001234",
						Summaries: []bai2.Summary{
							{TypeCode: bai2.NewTypeCode("010", bai2.LevelStatus), Amount: amount(1000)},
							{TypeCode: bai2.NewTypeCode("015", bai2.LevelStatus), Amount: amount(1500)},
						},
					},
					{Number: ""},
				},
			},
		},
	}

	got, err := transformer.Transform(context.Background(), file, ruleSet, testIDs)
	require.NoError(t, err)
	require.Len(t, got, 2)

	require.Equal(t, decimal.NewFromInt(1000), got[0].Values["opening_balance"])
	require.Equal(t, "AUD", got[0].Values["currency"])
	require.NotContains(t, got[0].Values, "closing_balance")

	// defaults never override seeded values, even empty ones
	require.Equal(t, "", got[1].Values["account_number"])
	require.NotContains(t, got[1].Values, "opening_balance")
}

func TestTransformer_Transform_missingGroupDate(t *testing.T) {
	t.Parallel()

	transformer, ruleSet := newTestTransformer(t, testConfig())
	date := testDate
	file := &bai2.File{
		Groups: []*bai2.Group{
			{Header: bai2.GroupHeader{AsOfDate: &date}, Accounts: []*bai2.Account{{Number: "1"}}},
			{Header: bai2.GroupHeader{}, Accounts: []*bai2.Account{{Number: "2"}}},
		},
	}

	got, err := transformer.Transform(context.Background(), file, ruleSet, testIDs)
	require.Nil(t, got)

	var structuralErr *StructuralError
	require.True(t, errors.As(err, &structuralErr))
	require.Equal(t, 1, structuralErr.GroupIndex)
}

func TestTransformer_Transform_canceledContext(t *testing.T) {
	t.Parallel()

	transformer, ruleSet := newTestTransformer(t, testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tx := &bai2.Transaction{TypeCode: bai2.NewTypeCode("475", bai2.LevelDetail)}
	_, err := transformer.Transform(ctx, singleTransactionFile(tx), ruleSet, testIDs)
	require.ErrorIs(t, err, context.Canceled)
}

func TestIsNegative(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		value   any
		want    bool
		wantErr bool
	}{
		{name: "negative decimal", value: decimal.NewFromInt(-1), want: true},
		{name: "zero decimal", value: decimal.Zero, want: false},
		{name: "negative int", value: -3, want: true},
		{name: "positive float", value: 1.5, want: false},
		{name: "negative string", value: "-12.50", want: true},
		{name: "invalid string", value: "abc", wantErr: true},
		{name: "unsupported type", value: true, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := isNegative(tc.value)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestTransformer_Transform_properties(t *testing.T) {
	t.Parallel()

	transformer, ruleSet := newTestTransformer(t, testConfig())
	codes := []string{"475", "165", "699", "010"}

	rapid.Check(t, func(t *rapid.T) {
		date := testDate
		file := &bai2.File{}
		wantAccounts, wantTransactions := 0, 0
		wantIndicators := []string{}

		for range rapid.IntRange(0, 3).Draw(t, "groups") {
			group := &bai2.Group{Header: bai2.GroupHeader{AsOfDate: &date, Currency: "USD"}}
			for range rapid.IntRange(0, 3).Draw(t, "accounts") {
				account := &bai2.Account{Number: rapid.StringMatching(`[0-9]{6}`).Draw(t, "number")}
				for range rapid.IntRange(0, 5).Draw(t, "transactions") {
					tx := &bai2.Transaction{
						TypeCode: bai2.NewTypeCode(rapid.SampledFrom(codes).Draw(t, "code"), bai2.LevelDetail),
						Text:     rapid.StringMatching(`[A-Z ]{0,10}`).Draw(t, "text"),
					}
					wantIndicator := "D"
					if rapid.Bool().Draw(t, "has_amount") {
						v := rapid.Int64Range(-10000, 10000).Draw(t, "amount")
						tx.Amount = amount(v)
						if tx.TypeCode.Code == "475" && v >= 0 {
							wantIndicator = "C"
						}
					}
					wantIndicators = append(wantIndicators, wantIndicator)
					account.Transactions = append(account.Transactions, tx)
				}
				wantAccounts++
				wantTransactions += len(account.Transactions)
				group.Accounts = append(group.Accounts, account)
			}
			file.Groups = append(file.Groups, group)
		}

		got, err := transformer.Transform(context.Background(), file, ruleSet, testIDs)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		counts := rows.CountByTable(got)
		if counts[mapping.BalanceTable] != wantAccounts {
			t.Fatalf("balance rows: got %d, want %d", counts[mapping.BalanceTable], wantAccounts)
		}
		if counts[mapping.TransactionsTable] != wantTransactions {
			t.Fatalf("transaction rows: got %d, want %d", counts[mapping.TransactionsTable], wantTransactions)
		}

		i := 0
		for _, row := range got {
			if row.Table != mapping.TransactionsTable {
				continue
			}
			if row.Values["debit_credit_indicator"] != wantIndicators[i] {
				t.Fatalf("transaction %d indicator: got %v, want %s", i, row.Values["debit_credit_indicator"], wantIndicators[i])
			}
			i++
		}
	})
}
