// SPDX-License-Identifier: Apache-2.0

// Package kms implements the encryption key manager over GCP Cloud KMS. Keys
// are crypto keys of a key ring labelled with the customer id.
package kms

import (
	"context"
	"errors"
	"fmt"
	"time"

	kmsapi "cloud.google.com/go/kms/apiv1"
	"cloud.google.com/go/kms/apiv1/kmspb"
	"github.com/xataio/bai2load/internal/backoff"
	"github.com/xataio/bai2load/pkg/encryption"
	loglib "github.com/xataio/bai2load/pkg/log"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const customerLabel = "customer_id"

type Config struct {
	ProjectID string
	Location  string
	KeyRing   string
	Backoff   backoff.Config
}

// KeyRingName returns the resource name of the configured key ring.
func (c *Config) KeyRingName() string {
	return fmt.Sprintf("projects/%s/locations/%s/keyRings/%s", c.ProjectID, c.Location, c.KeyRing)
}

type Client struct {
	logger          loglib.Logger
	client          cryptoKeyClient
	keyRing         string
	backoffProvider backoff.Provider
}

// cryptoKeyClient is the subset of the Cloud KMS API used by the client.
type cryptoKeyClient interface {
	listCryptoKeys(ctx context.Context, parent string, visit func(*kmspb.CryptoKey) bool) error
	encrypt(ctx context.Context, req *kmspb.EncryptRequest) (*kmspb.EncryptResponse, error)
	Close() error
}

type Option func(c *Client)

var _ encryption.KeyManager = (*Client)(nil)

func NewClient(ctx context.Context, cfg *Config, opts ...Option) (*Client, error) {
	kmsClient, err := kmsapi.NewKeyManagementClient(ctx, option.WithUserAgent("bai2load"))
	if err != nil {
		return nil, fmt.Errorf("creating kms client: %w", err)
	}
	return newClient(&gcpClient{client: kmsClient}, cfg, opts...), nil
}

func newClient(client cryptoKeyClient, cfg *Config, opts ...Option) *Client {
	c := &Client{
		logger:          loglib.NewNoopLogger(),
		client:          client,
		keyRing:         cfg.KeyRingName(),
		backoffProvider: backoff.NewProvider(&cfg.Backoff),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func WithLogger(l loglib.Logger) Option {
	return func(c *Client) {
		c.logger = loglib.NewLogger(l).WithFields(loglib.Fields{
			loglib.ModuleField: "kms_client",
		})
	}
}

// FindKey returns the name of the first crypto key of the key ring labelled
// with the customer id.
func (c *Client) FindKey(ctx context.Context, customerID string) (string, error) {
	keyName := ""
	err := c.retry(ctx, "list crypto keys", func() error {
		keyName = ""
		return c.client.listCryptoKeys(ctx, c.keyRing, func(key *kmspb.CryptoKey) bool {
			if key.GetLabels()[customerLabel] == customerID {
				keyName = key.GetName()
				return false
			}
			return true
		})
	})
	if err != nil {
		return "", fmt.Errorf("listing crypto keys of %s: %w", c.keyRing, err)
	}

	if keyName == "" {
		return "", &encryption.KeyNotFoundError{CustomerID: customerID}
	}
	return keyName, nil
}

func (c *Client) Encrypt(ctx context.Context, key string, plaintext []byte) ([]byte, error) {
	var ciphertext []byte
	err := c.retry(ctx, "encrypt", func() error {
		resp, err := c.client.encrypt(ctx, &kmspb.EncryptRequest{
			Name:      key,
			Plaintext: plaintext,
		})
		if err != nil {
			return err
		}
		ciphertext = resp.GetCiphertext()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("encrypting with %s: %w", key, err)
	}
	return ciphertext, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// retry runs the operation with the configured backoff, retrying only
// transient transport failures.
func (c *Client) retry(ctx context.Context, op string, fn func() error) error {
	return c.backoffProvider(ctx).RetryNotify(
		func() error {
			err := fn()
			if err != nil && !isTransient(err) {
				return backoff.Permanent(err)
			}
			return err
		},
		func(err error, d time.Duration) {
			c.logger.Warn(err, "kms call failed, retrying", loglib.Fields{
				"operation": op,
				"backoff":   d,
			})
		})
}

func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return true
	default:
		return false
	}
}

type gcpClient struct {
	client *kmsapi.KeyManagementClient
}

func (g *gcpClient) listCryptoKeys(ctx context.Context, parent string, visit func(*kmspb.CryptoKey) bool) error {
	it := g.client.ListCryptoKeys(ctx, &kmspb.ListCryptoKeysRequest{Parent: parent})
	for {
		key, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return err
		}
		if !visit(key) {
			return nil
		}
	}
}

func (g *gcpClient) encrypt(ctx context.Context, req *kmspb.EncryptRequest) (*kmspb.EncryptResponse, error) {
	return g.client.Encrypt(ctx, req)
}

func (g *gcpClient) Close() error {
	return g.client.Close()
}
