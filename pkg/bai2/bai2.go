// SPDX-License-Identifier: Apache-2.0

// Package bai2 models a parsed BAI2 cash management statement. The hierarchy
// is file → group → account → transaction; groups carry the statement date,
// accounts carry summary items (balances and totals) and detail transactions.
package bai2

import (
	"time"

	"github.com/shopspring/decimal"
)

type File struct {
	Header  FileHeader
	Groups  []*Group
	Trailer FileTrailer
}

type FileHeader struct {
	SenderID             string
	ReceiverID           string
	CreationDate         *time.Time
	CreationTime         string
	FileID               string
	PhysicalRecordLength int
	BlockSize            int
	VersionNumber        int
}

type FileTrailer struct {
	ControlTotal    decimal.Decimal
	NumberOfGroups  int
	NumberOfRecords int
}

type Group struct {
	Header   GroupHeader
	Accounts []*Account
	Trailer  GroupTrailer
}

type GroupHeader struct {
	UltimateReceiverID string
	OriginatorID       string
	Status             string
	// AsOfDate is nil when the statement does not carry a date for the
	// group.
	AsOfDate         *time.Time
	AsOfTime         string
	Currency         string
	AsOfDateModifier string
}

type GroupTrailer struct {
	ControlTotal     decimal.Decimal
	NumberOfAccounts int
	NumberOfRecords  int
}

type Account struct {
	Number       string
	Currency     string
	Summaries    []Summary
	Transactions []*Transaction
	Trailer      AccountTrailer
}

type AccountTrailer struct {
	ControlTotal    decimal.Decimal
	NumberOfRecords int
}

// Summary is an account level balance or activity summary item.
type Summary struct {
	TypeCode  TypeCode
	Amount    *decimal.Decimal
	ItemCount *int
	FundsType FundsType
}

// Transaction is a detail record. Amount is signed: debits are negative.
type Transaction struct {
	TypeCode          TypeCode
	Amount            *decimal.Decimal
	FundsType         FundsType
	BankReference     string
	CustomerReference string
	Text              string
	PostingDate       *time.Time
	ValueDate         *time.Time
}

type FundsType struct {
	Code          string
	ValueDate     *time.Time
	ValueTime     string
	Immediate     *decimal.Decimal
	OneDay        *decimal.Decimal
	TwoOrMoreDays *decimal.Decimal
	Distributions []Distribution
}

type Distribution struct {
	Days   int
	Amount decimal.Decimal
}

type Direction string

const (
	Credit        Direction = "credit"
	Debit         Direction = "debit"
	NotApplicable Direction = "n/a"
)

type Level string

const (
	LevelStatus  Level = "status"
	LevelSummary Level = "summary"
	LevelDetail  Level = "detail"
)

type TypeCode struct {
	Code      string
	Direction Direction
	Level     Level
}

// NewTypeCode classifies a three digit type code. Codes below 100 are
// account status (balances); credits are 100-399 and 900-959, debits are
// 400-699 and 960-999; loan codes (700-799) have no direction.
func NewTypeCode(code string, level Level) TypeCode {
	tc := TypeCode{Code: code, Direction: NotApplicable, Level: level}
	n, ok := typeCodeNumber(code)
	if !ok {
		return tc
	}
	switch {
	case n < 100:
		tc.Level = LevelStatus
	case n < 400, n >= 900 && n < 960:
		tc.Direction = Credit
	case n < 700, n >= 960:
		tc.Direction = Debit
	}
	return tc
}

func (t TypeCode) IsDebit() bool {
	return t.Direction == Debit
}

func typeCodeNumber(code string) (int, bool) {
	if len(code) != 3 {
		return 0, false
	}
	n := 0
	for _, r := range code {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}
