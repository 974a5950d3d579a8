// SPDX-License-Identifier: Apache-2.0

package encryption

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/xataio/bai2load/pkg/encryption/mocks"
	"github.com/xataio/bai2load/pkg/rows"
	"pgregory.net/rapid"
)

// reverse is a reversible fake cipher, prefixed with the key so the test can
// check which key was used.
func reverse(key string, plaintext []byte) []byte {
	out := []byte(key + ":")
	for i := len(plaintext) - 1; i >= 0; i-- {
		out = append(out, plaintext[i])
	}
	return out
}

func newTestKeyManager() *mocks.KeyManager {
	return &mocks.KeyManager{
		FindKeyFn: func(_ context.Context, customerID string) (string, error) {
			if customerID == "UNKNOWN" {
				return "", &KeyNotFoundError{CustomerID: customerID}
			}
			return "k-" + customerID, nil
		},
		EncryptFn: func(_ context.Context, key string, plaintext []byte) ([]byte, error) {
			return reverse(key, plaintext), nil
		},
	}
}

func encoded(key, plaintext string) string {
	return base64.StdEncoding.EncodeToString(reverse(key, []byte(plaintext)))
}

func testRow(customerID string, values map[string]any) *rows.Row {
	row := rows.New("transactions", customerID)
	for k, v := range values {
		row.Set(k, v)
	}
	return row
}

func TestFieldEncryptor_EncryptRows(t *testing.T) {
	t.Parallel()

	errTest := errors.New("oh noes")
	sensitive := []string{"transaction_amount", "description"}

	tests := []struct {
		name    string
		rows    func() []*rows.Row
		encrypt func(ctx context.Context, key string, plaintext []byte) ([]byte, error)
		workers int

		wantValues []map[string]any
		wantErr    error
	}{
		{
			name: "ok - sensitive values encrypted",
			rows: func() []*rows.Row {
				return []*rows.Row{
					testRow("CUST1", map[string]any{"transaction_amount": decimal.NewFromInt(-500), "description": "CHECK PAID", "account_number": "001234"}),
					testRow("CUST2", map[string]any{"transaction_amount": 12, "description": nil}),
				}
			},
			wantValues: []map[string]any{
				{"transaction_amount": encoded("k-CUST1", "-500"), "description": encoded("k-CUST1", "CHECK PAID"), "account_number": "001234"},
				{"transaction_amount": encoded("k-CUST2", "12"), "description": nil},
			},
		},
		{
			name: "ok - concurrent workers",
			rows: func() []*rows.Row {
				return []*rows.Row{
					testRow("CUST1", map[string]any{"description": "A"}),
					testRow("CUST2", map[string]any{"description": "B"}),
					testRow("CUST1", map[string]any{"description": "C"}),
				}
			},
			workers: 3,
			wantValues: []map[string]any{
				{"description": encoded("k-CUST1", "A")},
				{"description": encoded("k-CUST2", "B")},
				{"description": encoded("k-CUST1", "C")},
			},
		},
		{
			name: "error - key not found",
			rows: func() []*rows.Row {
				return []*rows.Row{testRow("UNKNOWN", map[string]any{"description": "A"})}
			},
			wantErr: &KeyNotFoundError{CustomerID: "UNKNOWN"},
		},
		{
			name: "error - missing key hint",
			rows: func() []*rows.Row {
				return []*rows.Row{testRow("", map[string]any{"description": "A"})}
			},
			wantErr: ErrMissingKeyHint,
		},
		{
			name: "error - encrypting",
			rows: func() []*rows.Row {
				return []*rows.Row{testRow("CUST1", map[string]any{"description": "A"})}
			},
			encrypt: func(context.Context, string, []byte) ([]byte, error) {
				return nil, errTest
			},
			workers: 2,
			wantErr: errTest,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			km := newTestKeyManager()
			if tc.encrypt != nil {
				km.EncryptFn = tc.encrypt
			}
			e := NewFieldEncryptor(NewKeyResolver(km), km, sensitive, WithWorkers(tc.workers))

			rs := tc.rows()
			err := e.EncryptRows(context.Background(), rs)
			if tc.wantErr != nil {
				var notFoundErr *KeyNotFoundError
				if errors.As(tc.wantErr, &notFoundErr) {
					var gotErr *KeyNotFoundError
					require.True(t, errors.As(err, &gotErr))
					require.Equal(t, notFoundErr, gotErr)
					return
				}
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)

			for i, row := range rs {
				require.Equal(t, tc.wantValues[i], row.Values)
				require.Empty(t, row.KeyHint())
			}
		})
	}
}

func TestFieldEncryptor_EncryptRows_singleLookupPerCustomer(t *testing.T) {
	t.Parallel()

	km := newTestKeyManager()
	e := NewFieldEncryptor(NewKeyResolver(km), km, []string{"description"}, WithWorkers(4))

	rs := make([]*rows.Row, 0, 50)
	for i := range 50 {
		rs = append(rs, testRow(fmt.Sprintf("CUST%d", i%3), map[string]any{"description": "text"}))
	}

	require.NoError(t, e.EncryptRows(context.Background(), rs))
	require.Equal(t, uint64(3), km.GetFindKeyCalls())
	require.Equal(t, uint64(50), km.GetEncryptCalls())
}

func TestFieldEncryptor_EncryptRows_neverPlaintext(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		km := newTestKeyManager()
		e := NewFieldEncryptor(NewKeyResolver(km), km, []string{"description"})

		texts := rapid.SliceOfN(rapid.StringMatching(`[A-Za-z0-9 ]{1,20}`), 1, 10).Draw(t, "texts")
		rs := make([]*rows.Row, 0, len(texts))
		for _, text := range texts {
			rs = append(rs, testRow("CUST1", map[string]any{"description": text, "account_number": "001234"}))
		}

		if err := e.EncryptRows(context.Background(), rs); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		for i, row := range rs {
			got, ok := row.Values["description"].(string)
			if !ok {
				t.Fatalf("row %d: description is %T", i, row.Values["description"])
			}
			if got == texts[i] {
				t.Fatalf("row %d: description left in plaintext", i)
			}
			if _, err := base64.StdEncoding.DecodeString(got); err != nil {
				t.Fatalf("row %d: description is not base64: %v", i, err)
			}
			if row.KeyHint() != "" {
				t.Fatalf("row %d: key hint not consumed", i)
			}
		}
	})
}
