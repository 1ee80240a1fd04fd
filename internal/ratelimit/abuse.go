package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Abuse score deltas per observed response signal.
const (
	scoreUnauthorized = 10
	scoreNotFound     = 2
	scoreRateLimited  = 15
	scoreServerError  = 5
	scoreBotUserAgent = 10
)

const scoreTTL = time.Hour

// AbuseGuard maintains a per-client abuse score in Redis. Clients over the
// soft threshold are slowed down; clients over the hard threshold are
// blocked until the score expires.
type AbuseGuard struct {
	client        *redis.Client
	softThreshold int64
	hardThreshold int64
	softDelay     time.Duration
}

// NewAbuseGuard creates a guard with the given thresholds. A soft score
// delays the request by softDelay before it proceeds; a hard score rejects
// it outright.
func NewAbuseGuard(client *redis.Client, softThreshold, hardThreshold int64, softDelay time.Duration) *AbuseGuard {
	return &AbuseGuard{
		client:        client,
		softThreshold: softThreshold,
		hardThreshold: hardThreshold,
		softDelay:     softDelay,
	}
}

// Score returns the client's current abuse score. A missing key scores zero.
func (g *AbuseGuard) Score(ctx context.Context, clientKey string) (int64, error) {
	score, err := g.client.Get(ctx, "abuse:"+clientKey).Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("abuse score lookup failed: %w", err)
	}
	return score, nil
}

// Raise increments the client's score and refreshes its expiry.
func (g *AbuseGuard) Raise(ctx context.Context, clientKey string, delta int64) error {
	if delta <= 0 {
		return nil
	}

	pipe := g.client.Pipeline()
	pipe.IncrBy(ctx, "abuse:"+clientKey, delta)
	pipe.Expire(ctx, "abuse:"+clientKey, scoreTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("abuse score update failed: %w", err)
	}
	return nil
}

// Penalty maps a score to its enforcement action.
func (g *AbuseGuard) Penalty(score int64) (delay time.Duration, blocked bool) {
	if score >= g.hardThreshold {
		return 0, true
	}
	if score >= g.softThreshold {
		return g.softDelay, false
	}
	return 0, false
}

// ScoreDelta returns the score increment a response should add, based on its
// status code and the requesting user agent.
func ScoreDelta(status int, userAgent string) int64 {
	var delta int64
	switch {
	case status == 401:
		delta += scoreUnauthorized
	case status == 404:
		delta += scoreNotFound
	case status == 429:
		delta += scoreRateLimited
	case status >= 500:
		delta += scoreServerError
	}
	if isBotUserAgent(userAgent) {
		delta += scoreBotUserAgent
	}
	return delta
}

func isBotUserAgent(ua string) bool {
	ua = strings.ToLower(ua)
	for _, marker := range []string{"bot", "crawler", "spider", "curl", "python-requests"} {
		if strings.Contains(ua, marker) {
			return true
		}
	}
	return false
}
