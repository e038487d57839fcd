// Package identity reads and patches device identity records kept in Redis. Each record is a
// hash under <prefix><id> holding the agent id, the orchestrator URL the device should use
// and a version counter used for optimistic updates.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"fleet-orchestrator/internal/repository"
)

const (
	fieldAgentID    = "agentId"
	fieldDesiredURL = "desiredOrchestratorUrl"
	fieldVersion    = "version"
)

type Record struct {
	ID                     string `json:"id"`
	AgentID                string `json:"agentId,omitempty"`
	DesiredOrchestratorURL string `json:"desiredOrchestratorUrl,omitempty"`
	Version                int64  `json:"version"`
}

// NormalizeURL trims whitespace and trailing slashes so equivalent URLs compare equal.
func NormalizeURL(u string) string {
	return strings.TrimRight(strings.TrimSpace(u), "/")
}

type RedisDirectory struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisDirectory(rdb *redis.Client, prefix string) *RedisDirectory {
	if prefix == "" {
		prefix = "identity:"
	}
	return &RedisDirectory{rdb: rdb, prefix: prefix}
}

// Register creates a record for a device unless one exists already.
func (d *RedisDirectory) Register(ctx context.Context, id, agentID string) error {
	key := d.prefix + id
	pipe := d.rdb.TxPipeline()
	pipe.HSetNX(ctx, key, fieldAgentID, agentID)
	pipe.HSetNX(ctx, key, fieldVersion, 1)
	_, err := pipe.Exec(ctx)
	return err
}

// QueryStale returns the records of one SCAN page whose desired URL is missing or differs
// from desiredURL. A page may be empty while the token is not; callers keep paging until the
// returned token is empty.
func (d *RedisDirectory) QueryStale(ctx context.Context, desiredURL, token string, pageSize int) ([]Record, string, error) {
	cursor, err := parseToken(token)
	if err != nil {
		return nil, "", err
	}
	if pageSize <= 0 {
		pageSize = 100
	}

	keys, next, err := d.rdb.Scan(ctx, cursor, d.prefix+"*", int64(pageSize)).Result()
	if err != nil {
		return nil, "", fmt.Errorf("scan identities: %w", err)
	}

	pipe := d.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(keys))
	for i, k := range keys {
		cmds[i] = pipe.HGetAll(ctx, k)
	}
	if len(keys) > 0 {
		if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
			return nil, "", fmt.Errorf("read identities: %w", err)
		}
	}

	want := NormalizeURL(desiredURL)
	var stale []Record
	for i, cmd := range cmds {
		fields, err := cmd.Result()
		if err != nil || len(fields) == 0 {
			// deleted between SCAN and HGETALL
			continue
		}
		rec := Record{
			ID:                     strings.TrimPrefix(keys[i], d.prefix),
			AgentID:                fields[fieldAgentID],
			DesiredOrchestratorURL: fields[fieldDesiredURL],
		}
		rec.Version, _ = strconv.ParseInt(fields[fieldVersion], 10, 64)
		if NormalizeURL(rec.DesiredOrchestratorURL) != want {
			stale = append(stale, rec)
		}
	}

	if next == 0 {
		return stale, "", nil
	}
	return stale, strconv.FormatUint(next, 10), nil
}

// SetDesiredURL writes url into the record if its version still matches rec.Version.
func (d *RedisDirectory) SetDesiredURL(ctx context.Context, rec Record, url string) error {
	key := d.prefix + rec.ID

	txf := func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return repository.ErrNotFound
		}
		v, err := tx.HGet(ctx, key, fieldVersion).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if v != rec.Version {
			return repository.ErrVersionConflict
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.HSet(ctx, key, fieldDesiredURL, url)
			p.HIncrBy(ctx, key, fieldVersion, 1)
			return nil
		})
		return err
	}

	err := d.rdb.Watch(ctx, txf, key)
	if errors.Is(err, redis.TxFailedErr) {
		return repository.ErrVersionConflict
	}
	return err
}

func parseToken(token string) (uint64, error) {
	if token == "" {
		return 0, nil
	}
	c, err := strconv.ParseUint(token, 10, 64)
	if err != nil {
		return 0, repository.ErrInvalidToken
	}
	return c, nil
}
