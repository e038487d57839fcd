// Package repository holds what the storage implementations share: sentinel errors and the
// continuation token format.
package repository

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"

	"fleet-orchestrator/internal/entity"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrVersionConflict = errors.New("version conflict")
	ErrInvalidToken    = errors.New("invalid continuation token")
)

const tokenVersion = "v1"

// JobCursor is the position after the last job of a page.
type JobCursor struct {
	CreatedAt time.Time
	ID        string
}

func EncodeJobToken(j *entity.Job) string {
	raw := tokenVersion + "|" + strconv.FormatInt(j.CreatedAt.UnixNano(), 10) + "|" + j.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeJobToken returns nil for an empty token.
func DecodeJobToken(token string) (*JobCursor, error) {
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidToken
	}
	parts := strings.SplitN(string(raw), "|", 3)
	if len(parts) != 3 || parts[0] != tokenVersion {
		return nil, ErrInvalidToken
	}
	nanos, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return &JobCursor{CreatedAt: time.Unix(0, nanos).UTC(), ID: parts[2]}, nil
}

// After reports whether j sorts after the cursor in creation order.
func (c *JobCursor) After(j *entity.Job) bool {
	if c == nil {
		return true
	}
	if !j.CreatedAt.Equal(c.CreatedAt) {
		return j.CreatedAt.After(c.CreatedAt)
	}
	return j.ID > c.ID
}

func EncodeWorkerToken(workerID string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(tokenVersion + "|" + workerID))
}

func DecodeWorkerToken(token string) (string, error) {
	if token == "" {
		return "", nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", ErrInvalidToken
	}
	v, id, ok := strings.Cut(string(raw), "|")
	if !ok || v != tokenVersion || id == "" {
		return "", ErrInvalidToken
	}
	return id, nil
}
