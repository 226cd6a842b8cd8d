// Package redis provides the cross-process tick lock and rate limiter on
// go-redis/v9. It is optional and enabled with redis.enabled.
package redis

import (
	"context"
	"crypto/tls"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/sentitrader/internal/domain"
)

const defaultNamespace = "sentitrader"

// ClientConfig holds connection parameters. Namespace prefixes every key so
// several deployments can share one instance; it defaults to "sentitrader".
type ClientConfig struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
	TLSEnabled bool
	Namespace  string
}

// Client is a connected go-redis client plus the key namespace.
type Client struct {
	rdb *redis.Client
	ns  string
}

// New connects and pings. A failed ping is a transient error so callers can
// retry the whole wiring step.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	opts := &redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		PoolSize:   cfg.PoolSize,
		MaxRetries: cfg.MaxRetries,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, domain.E(domain.KindTransient, "redis.connect", err)
	}
	return newClient(rdb, cfg.Namespace), nil
}

func newClient(rdb *redis.Client, ns string) *Client {
	ns = strings.Trim(ns, ":")
	if ns == "" {
		ns = defaultNamespace
	}
	return &Client{rdb: rdb, ns: ns}
}

// key joins the namespace, a kind ("lock", "ratelimit") and id.
func (c *Client) key(kind, id string) string {
	return c.ns + ":" + kind + ":" + id
}

// Close closes the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}
