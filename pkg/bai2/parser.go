// SPDX-License-Identifier: Apache-2.0

package bai2

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	fileHeaderCode     = "01"
	groupHeaderCode    = "02"
	accountHeaderCode  = "03"
	transactionCode    = "16"
	continuationCode   = "88"
	accountTrailerCode = "49"
	groupTrailerCode   = "98"
	fileTrailerCode    = "99"

	dateLayout = "060102"

	// lines longer than this are rejected by the scanner
	maxLineBytes = 1 << 20
)

var (
	ErrUnexpectedRecord = errors.New("unexpected record")
	ErrMalformedRecord  = errors.New("malformed record")
	ErrIntegrity        = errors.New("integrity check failed")
)

type ParseError struct {
	Line   int
	Record string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("bai2: line %d (record %s): %v", e.Line, e.Record, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

type Option func(p *parser)

// WithIntegrityCheck enables the verification of control totals and record
// counts against the account, group and file trailers.
func WithIntegrityCheck(enabled bool) Option {
	return func(p *parser) {
		p.checkIntegrity = enabled
	}
}

// record is a logical record: a physical line plus any continuation lines.
type record struct {
	code     string
	body     string
	line     int
	physical int
}

type parser struct {
	records        []record
	pos            int
	checkIntegrity bool
}

// Parse reads a BAI2 document. Integrity checking is enabled by default.
func Parse(r io.Reader, opts ...Option) (*File, error) {
	p := &parser{checkIntegrity: true}
	for _, opt := range opts {
		opt(p)
	}

	var err error
	if p.records, err = readRecords(r); err != nil {
		return nil, err
	}
	return p.parseFile()
}

func ParseString(s string, opts ...Option) (*File, error) {
	return Parse(strings.NewReader(s), opts...)
}

func readRecords(r io.Reader) ([]record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	records := []record{}
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		code, body, _ := strings.Cut(line, ",")
		if code == continuationCode {
			if len(records) == 0 {
				return nil, &ParseError{Line: lineNum, Record: code, Err: ErrUnexpectedRecord}
			}
			prev := &records[len(records)-1]
			prev.body = strings.TrimSuffix(prev.body, "/") + "," + body
			prev.physical++
			continue
		}
		records = append(records, record{code: code, body: body, line: lineNum, physical: 1})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading bai2 lines: %w", err)
	}
	return records, nil
}

func (p *parser) peek() string {
	if p.pos >= len(p.records) {
		return ""
	}
	return p.records[p.pos].code
}

func (p *parser) expect(code string) (record, error) {
	if p.pos >= len(p.records) {
		return record{}, &ParseError{Record: code, Err: fmt.Errorf("%w: end of input", ErrUnexpectedRecord)}
	}
	rec := p.records[p.pos]
	if rec.code != code {
		return record{}, &ParseError{Line: rec.line, Record: rec.code, Err: fmt.Errorf("%w: expected %s", ErrUnexpectedRecord, code)}
	}
	p.pos++
	return rec, nil
}

func (p *parser) parseFile() (*File, error) {
	rec, err := p.expect(fileHeaderCode)
	if err != nil {
		return nil, err
	}
	c := newCursor(rec.body)
	file := &File{}
	h := &file.Header
	h.SenderID = c.next()
	h.ReceiverID = c.next()
	if h.CreationDate, err = parseDate(c.next()); err != nil {
		return nil, malformed(rec, err)
	}
	h.CreationTime = c.next()
	h.FileID = c.next()
	if h.PhysicalRecordLength, err = parseOptionalInt(c.next()); err != nil {
		return nil, malformed(rec, err)
	}
	if h.BlockSize, err = parseOptionalInt(c.next()); err != nil {
		return nil, malformed(rec, err)
	}
	if h.VersionNumber, err = parseOptionalInt(c.next()); err != nil {
		return nil, malformed(rec, err)
	}

	records := rec.physical
	groupsTotal := decimal.Zero
	for p.peek() == groupHeaderCode {
		group, total, groupRecords, err := p.parseGroup()
		if err != nil {
			return nil, err
		}
		file.Groups = append(file.Groups, group)
		groupsTotal = groupsTotal.Add(total)
		records += groupRecords
	}

	if rec, err = p.expect(fileTrailerCode); err != nil {
		return nil, err
	}
	records += rec.physical
	c = newCursor(rec.body)
	if file.Trailer.ControlTotal, err = parseRawAmount(c.next()); err != nil {
		return nil, malformed(rec, err)
	}
	if file.Trailer.NumberOfGroups, err = parseOptionalInt(c.next()); err != nil {
		return nil, malformed(rec, err)
	}
	if file.Trailer.NumberOfRecords, err = parseOptionalInt(c.next()); err != nil {
		return nil, malformed(rec, err)
	}

	if p.pos < len(p.records) {
		extra := p.records[p.pos]
		return nil, &ParseError{Line: extra.line, Record: extra.code, Err: fmt.Errorf("%w: after file trailer", ErrUnexpectedRecord)}
	}

	if p.checkIntegrity {
		if err := verify(rec, "file", file.Trailer.ControlTotal, groupsTotal, file.Trailer.NumberOfRecords, records); err != nil {
			return nil, err
		}
		if file.Trailer.NumberOfGroups != len(file.Groups) {
			return nil, integrityError(rec, "file number of groups", file.Trailer.NumberOfGroups, len(file.Groups))
		}
	}
	return file, nil
}

func (p *parser) parseGroup() (*Group, decimal.Decimal, int, error) {
	rec, err := p.expect(groupHeaderCode)
	if err != nil {
		return nil, decimal.Zero, 0, err
	}
	c := newCursor(rec.body)
	group := &Group{}
	h := &group.Header
	h.UltimateReceiverID = c.next()
	h.OriginatorID = c.next()
	h.Status = c.next()
	if h.AsOfDate, err = parseDate(c.next()); err != nil {
		return nil, decimal.Zero, 0, malformed(rec, err)
	}
	h.AsOfTime = c.next()
	h.Currency = c.next()
	h.AsOfDateModifier = c.next()

	records := rec.physical
	accountsTotal := decimal.Zero
	for p.peek() == accountHeaderCode {
		account, total, accountRecords, err := p.parseAccount(h.Currency)
		if err != nil {
			return nil, decimal.Zero, 0, err
		}
		group.Accounts = append(group.Accounts, account)
		accountsTotal = accountsTotal.Add(total)
		records += accountRecords
	}

	if rec, err = p.expect(groupTrailerCode); err != nil {
		return nil, decimal.Zero, 0, err
	}
	records += rec.physical
	c = newCursor(rec.body)
	t := &group.Trailer
	if t.ControlTotal, err = parseRawAmount(c.next()); err != nil {
		return nil, decimal.Zero, 0, malformed(rec, err)
	}
	if t.NumberOfAccounts, err = parseOptionalInt(c.next()); err != nil {
		return nil, decimal.Zero, 0, malformed(rec, err)
	}
	if t.NumberOfRecords, err = parseOptionalInt(c.next()); err != nil {
		return nil, decimal.Zero, 0, malformed(rec, err)
	}

	if p.checkIntegrity {
		if err := verify(rec, "group", t.ControlTotal, accountsTotal, t.NumberOfRecords, records); err != nil {
			return nil, decimal.Zero, 0, err
		}
		if t.NumberOfAccounts != len(group.Accounts) {
			return nil, decimal.Zero, 0, integrityError(rec, "group number of accounts", t.NumberOfAccounts, len(group.Accounts))
		}
	}
	return group, t.ControlTotal, records, nil
}

func (p *parser) parseAccount(groupCurrency string) (*Account, decimal.Decimal, int, error) {
	rec, err := p.expect(accountHeaderCode)
	if err != nil {
		return nil, decimal.Zero, 0, err
	}
	c := newCursor(rec.body)
	account := &Account{
		Number:   c.next(),
		Currency: c.next(),
	}
	places := decimalPlaces(account.Currency, groupCurrency)

	total := decimal.Zero
	for !c.done() {
		summary := Summary{
			TypeCode: NewTypeCode(c.next(), LevelSummary),
		}
		raw, err := parseRawAmount(c.next())
		if err != nil {
			return nil, decimal.Zero, 0, malformed(rec, err)
		}
		total = total.Add(raw)
		summary.Amount = scaledAmount(raw, c.last, places, false)
		if itemCount := c.next(); itemCount != "" {
			n, err := strconv.Atoi(itemCount)
			if err != nil {
				return nil, decimal.Zero, 0, malformed(rec, err)
			}
			summary.ItemCount = &n
		}
		if summary.FundsType, err = parseFundsType(c, places); err != nil {
			return nil, decimal.Zero, 0, malformed(rec, err)
		}
		account.Summaries = append(account.Summaries, summary)
	}

	records := rec.physical
	for p.peek() == transactionCode {
		rec, err := p.expect(transactionCode)
		if err != nil {
			return nil, decimal.Zero, 0, err
		}
		records += rec.physical
		tx, raw, err := parseTransaction(rec, places)
		if err != nil {
			return nil, decimal.Zero, 0, err
		}
		total = total.Add(raw)
		account.Transactions = append(account.Transactions, tx)
	}

	if rec, err = p.expect(accountTrailerCode); err != nil {
		return nil, decimal.Zero, 0, err
	}
	records += rec.physical
	c = newCursor(rec.body)
	t := &account.Trailer
	if t.ControlTotal, err = parseRawAmount(c.next()); err != nil {
		return nil, decimal.Zero, 0, malformed(rec, err)
	}
	if t.NumberOfRecords, err = parseOptionalInt(c.next()); err != nil {
		return nil, decimal.Zero, 0, malformed(rec, err)
	}

	if p.checkIntegrity {
		if err := verify(rec, "account", t.ControlTotal, total, t.NumberOfRecords, records); err != nil {
			return nil, decimal.Zero, 0, err
		}
	}
	return account, t.ControlTotal, records, nil
}

func parseTransaction(rec record, places int32) (*Transaction, decimal.Decimal, error) {
	c := newCursor(rec.body)
	tx := &Transaction{
		TypeCode: NewTypeCode(c.next(), LevelDetail),
	}
	raw, err := parseRawAmount(c.next())
	if err != nil {
		return nil, decimal.Zero, malformed(rec, err)
	}
	tx.Amount = scaledAmount(raw, c.last, places, tx.TypeCode.IsDebit())
	if tx.FundsType, err = parseFundsType(c, places); err != nil {
		return nil, decimal.Zero, malformed(rec, err)
	}
	tx.ValueDate = tx.FundsType.ValueDate
	tx.BankReference = c.next()
	tx.CustomerReference = c.next()
	tx.Text = c.rest()
	return tx, raw, nil
}

func parseFundsType(c *cursor, places int32) (FundsType, error) {
	ft := FundsType{Code: c.next()}
	var err error
	switch ft.Code {
	case "", "0", "1", "2", "Z":
	case "V":
		if ft.ValueDate, err = parseDate(c.next()); err != nil {
			return ft, err
		}
		ft.ValueTime = c.next()
	case "S":
		for _, dst := range []**decimal.Decimal{&ft.Immediate, &ft.OneDay, &ft.TwoOrMoreDays} {
			raw, err := parseRawAmount(c.next())
			if err != nil {
				return ft, err
			}
			*dst = scaledAmount(raw, c.last, places, false)
		}
	case "D":
		n, err := strconv.Atoi(c.next())
		if err != nil {
			return ft, fmt.Errorf("distribution count: %w", err)
		}
		for range n {
			days, err := strconv.Atoi(c.next())
			if err != nil {
				return ft, fmt.Errorf("distribution days: %w", err)
			}
			raw, err := parseRawAmount(c.next())
			if err != nil {
				return ft, err
			}
			ft.Distributions = append(ft.Distributions, Distribution{Days: days, Amount: raw.Shift(-places)})
		}
	default:
		return ft, fmt.Errorf("unknown funds type %q", ft.Code)
	}
	return ft, nil
}

// cursor walks the comma separated fields of a record body. A trailing "/"
// terminates the record.
type cursor struct {
	s    string
	last string
}

func newCursor(body string) *cursor {
	return &cursor{s: body}
}

func (c *cursor) next() string {
	var field string
	if i := strings.IndexByte(c.s, ','); i >= 0 {
		field, c.s = c.s[:i], c.s[i+1:]
	} else {
		field, c.s = c.s, ""
	}
	c.last = strings.TrimSuffix(strings.TrimSpace(field), "/")
	return c.last
}

func (c *cursor) rest() string {
	r := strings.TrimSuffix(strings.TrimSpace(c.s), "/")
	c.s = ""
	return r
}

func (c *cursor) done() bool {
	s := strings.TrimSpace(c.s)
	return s == "" || s == "/"
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return &d, nil
}

func parseOptionalInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

// parseRawAmount parses an amount in minor units, as written in the file.
func parseRawAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}

// scaledAmount converts a raw amount into currency units. It returns nil when
// the field was empty in the file.
func scaledAmount(raw decimal.Decimal, field string, places int32, negate bool) *decimal.Decimal {
	if field == "" {
		return nil
	}
	amount := raw.Shift(-places)
	if negate {
		amount = amount.Abs().Neg()
	}
	return &amount
}

var currencyDecimalPlaces = map[string]int32{
	"BHD": 3, "IQD": 3, "JOD": 3, "KWD": 3, "LYD": 3, "OMR": 3, "TND": 3,
	"CLP": 0, "ISK": 0, "JPY": 0, "KRW": 0, "PYG": 0, "UGX": 0, "VND": 0, "XAF": 0, "XOF": 0,
}

func decimalPlaces(currencies ...string) int32 {
	for _, cur := range currencies {
		if cur == "" {
			continue
		}
		if places, found := currencyDecimalPlaces[strings.ToUpper(cur)]; found {
			return places
		}
		return 2
	}
	return 2
}

func verify(rec record, level string, wantTotal, gotTotal decimal.Decimal, wantRecords, gotRecords int) error {
	if !wantTotal.Equal(gotTotal) {
		return integrityError(rec, level+" control total", wantTotal.String(), gotTotal.String())
	}
	if wantRecords != gotRecords {
		return integrityError(rec, level+" number of records", wantRecords, gotRecords)
	}
	return nil
}

func integrityError(rec record, what string, want, got any) error {
	return &ParseError{
		Line:   rec.line,
		Record: rec.code,
		Err:    fmt.Errorf("%w: %s is %v, computed %v", ErrIntegrity, what, want, got),
	}
}

func malformed(rec record, err error) error {
	return &ParseError{Line: rec.line, Record: rec.code, Err: fmt.Errorf("%w: %w", ErrMalformedRecord, err)}
}
