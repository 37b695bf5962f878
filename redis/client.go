// Package redis wraps the connection behind the capture-metadata index. The
// index is advisory: every read has a JSON sidecar fallback, so connection
// trouble is logged and tolerated, never fatal.
package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Client is the shared connection handle. The server is expected on the
// same Pi, so timeouts stay tight and the pool stays small.
type Client struct {
	*redis.Client
	log *zap.Logger
}

// NewClient connects to the metadata index and probes it once so startup
// logs show whether captures will be indexed or sidecar-only.
func NewClient(addr string, log *zap.Logger) *Client {
	c := &Client{
		Client: redis.NewClient(&redis.Options{
			Addr:         addr,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
			PoolSize:     4,
			MinIdleConns: 1,
			MaxRetries:   2,
		}),
		log: log.Named("redis"),
	}

	start := time.Now()
	if c.Available(context.Background()) {
		c.log.Info("metadata index reachable",
			zap.String("addr", addr),
			zap.Duration("ping_rtt", time.Since(start)))
	} else {
		c.log.Warn("metadata index unreachable; captures stay sidecar-only until it returns",
			zap.String("addr", addr))
	}
	return c
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.Client.Close()
}

// Available reports whether the index currently answers a ping.
func (c *Client) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	return c.Client.Ping(ctx).Err() == nil
}
