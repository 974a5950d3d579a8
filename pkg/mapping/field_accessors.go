// SPDX-License-Identifier: Apache-2.0

package mapping

import (
	"maps"
	"slices"
	"time"

	"github.com/xataio/bai2load/pkg/bai2"
)

const isoDate = "2006-01-02"

type (
	summaryAccessor     func(s bai2.Summary) (any, bool)
	transactionAccessor func(tx *bai2.Transaction) (any, bool)
)

// summaryFields is the closed set of fields a rule can read from an account
// summary item.
var summaryFields = map[string]summaryAccessor{
	"type_code": func(s bai2.Summary) (any, bool) {
		return nonEmpty(s.TypeCode.Code)
	},
	"amount": func(s bai2.Summary) (any, bool) {
		if s.Amount == nil {
			return nil, false
		}
		return *s.Amount, true
	},
	"item_count": func(s bai2.Summary) (any, bool) {
		if s.ItemCount == nil {
			return nil, false
		}
		return *s.ItemCount, true
	},
	"funds_type": func(s bai2.Summary) (any, bool) {
		return nonEmpty(s.FundsType.Code)
	},
}

// transactionFields is the closed set of fields a rule can read from a
// transaction detail.
var transactionFields = map[string]transactionAccessor{
	"type_code": func(tx *bai2.Transaction) (any, bool) {
		return nonEmpty(tx.TypeCode.Code)
	},
	"amount": func(tx *bai2.Transaction) (any, bool) {
		if tx.Amount == nil {
			return nil, false
		}
		return *tx.Amount, true
	},
	"funds_type": func(tx *bai2.Transaction) (any, bool) {
		return nonEmpty(tx.FundsType.Code)
	},
	"bank_reference": func(tx *bai2.Transaction) (any, bool) {
		return nonEmpty(tx.BankReference)
	},
	"customer_reference": func(tx *bai2.Transaction) (any, bool) {
		return nonEmpty(tx.CustomerReference)
	},
	"text": func(tx *bai2.Transaction) (any, bool) {
		return nonEmpty(tx.Text)
	},
	"posting_date": func(tx *bai2.Transaction) (any, bool) {
		return isoDateValue(tx.PostingDate)
	},
	"value_date": func(tx *bai2.Transaction) (any, bool) {
		return isoDateValue(tx.ValueDate)
	},
}

// SummaryFields returns the field names rules targeting the balance table
// can read.
func SummaryFields() []string {
	return slices.Sorted(maps.Keys(summaryFields))
}

// TransactionFields returns the field names rules targeting the transactions
// table can read.
func TransactionFields() []string {
	return slices.Sorted(maps.Keys(transactionFields))
}

func nonEmpty(s string) (any, bool) {
	if s == "" {
		return nil, false
	}
	return s, true
}

func isoDateValue(t *time.Time) (any, bool) {
	if t == nil {
		return nil, false
	}
	return t.Format(isoDate), true
}
