package cache

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	valkey "github.com/valkey-io/valkey-go"
)

// ValkeyTLSConfig enables TLS towards Valkey.
type ValkeyTLSConfig struct {
	Enabled bool
	CAFile  string
}

// ValkeyConfig describes how to reach a Valkey (or Redis) server.
type ValkeyConfig struct {
	Address  string
	Username string
	Password string
	DB       int
	TLS      ValkeyTLSConfig
}

// ValkeyStore is a SharedStore backed by a valkey-go client.
type ValkeyStore struct {
	client valkey.Client
	prefix string
	owned  bool
}

// NewValkeyStore dials Valkey and verifies the connection with PING.
// The returned store owns the client; call Close to release it.
func NewValkeyStore(cfg ValkeyConfig, prefix string) (*ValkeyStore, error) {
	if cfg.Address == "" {
		return nil, errors.New("cache: valkey address required")
	}

	option := valkey.ClientOption{
		InitAddress:       []string{cfg.Address},
		Username:          cfg.Username,
		Password:          cfg.Password,
		SelectDB:          cfg.DB,
		AlwaysRESP2:       true,
		ForceSingleClient: true,
		DisableCache:      true,
	}

	if cfg.TLS.Enabled {
		tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
		if cfg.TLS.CAFile != "" {
			caData, err := os.ReadFile(cfg.TLS.CAFile)
			if err != nil {
				return nil, fmt.Errorf("cache: read valkey ca file: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(caData) {
				return nil, errors.New("cache: valkey ca file contains no certificates")
			}
			tlsConfig.RootCAs = pool
		}
		option.TLSConfig = tlsConfig
	}

	client, err := valkey.NewClient(option)
	if err != nil {
		return nil, fmt.Errorf("cache: valkey client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("cache: valkey ping: %w", err)
	}

	return &ValkeyStore{client: client, prefix: prefix, owned: true}, nil
}

// NewValkeyStoreFromClient wraps an existing client without taking ownership.
func NewValkeyStoreFromClient(client valkey.Client, prefix string) *ValkeyStore {
	return &ValkeyStore{client: client, prefix: prefix}
}

// Get retrieves an entry by key.
// Returns ErrCacheMiss if the key doesn't exist.
func (s *ValkeyStore) Get(ctx context.Context, key string) (*Entry, error) {
	resp := s.client.Do(ctx, s.client.B().Get().Key(s.prefix+key).Build())
	if err := resp.Error(); err != nil {
		if errors.Is(err, valkey.Nil) {
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("valkey get: %w", err)
	}

	payload, err := resp.AsBytes()
	if err != nil {
		CacheErrors.WithLabelValues("decode").Inc()
		return nil, fmt.Errorf("valkey get bytes: %w", err)
	}

	entry, err := decodeEntry(payload)
	if err != nil {
		CacheErrors.WithLabelValues("decode").Inc()
		return nil, err
	}
	return entry, nil
}

// Set stores an entry with a millisecond expiry.
func (s *ValkeyStore) Set(ctx context.Context, key string, entry *Entry, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	payload, err := encodeEntry(entry)
	if err != nil {
		CacheErrors.WithLabelValues("encode").Inc()
		return err
	}

	cmd := s.client.B().Set().Key(s.prefix + key).Value(string(payload)).Px(ttl).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("valkey set: %w", err)
	}
	return nil
}

// Close releases the client if the store created it.
func (s *ValkeyStore) Close() error {
	if s.owned {
		s.client.Close()
	}
	return nil
}

var _ SharedStore = (*ValkeyStore)(nil)
