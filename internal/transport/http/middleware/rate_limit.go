package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	rateLimitProblemType  = "https://iam.ordexa.example.com/errors/rate-limit-exceeded"
	rateLimitProblemTitle = "Rate Limit Exceeded"
)

// RateLimitStore is the sliding-window persistence behind the limiter. Keys
// take the form "<rule name>:<identifier>".
type RateLimitStore interface {
	TrimWindow(ctx context.Context, identifier string, window time.Duration, reference time.Time) error
	CountAttempts(ctx context.Context, identifier string, window time.Duration, reference time.Time) (int, error)
	RecordAttempt(ctx context.Context, identifier string, at time.Time) error
	OldestAttempt(ctx context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error)
}

// IdentifierFunc extracts the value a limit is scoped by. Returning false
// exempts the request from the rule.
type IdentifierFunc func(*gin.Context) (string, bool)

// RateLimitRule is one sliding-window limit.
type RateLimitRule struct {
	Name       string
	Limit      int
	Window     time.Duration
	Identifier IdentifierFunc
}

// ProblemDetails is the RFC 9457 payload returned on a blocked request.
type ProblemDetails struct {
	Type       string `json:"type"`
	Title      string `json:"title"`
	Status     int    `json:"status"`
	Detail     string `json:"detail"`
	Instance   string `json:"instance"`
	RetryAfter int    `json:"retry_after"`
	TraceID    string `json:"trace_id,omitempty"`
}

// RateLimiter evaluates rules against a shared attempt store.
type RateLimiter struct {
	store  RateLimitStore
	logger *zap.Logger
	now    func() time.Time
}

// NewRateLimiter builds a limiter over the given store.
func NewRateLimiter(store RateLimitStore, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RateLimiter{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock overrides the limiter clock, used in tests.
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	if now != nil {
		rl.now = now
	}
	return rl
}

// ClientIPIdentifier scopes a rule by the request's client IP.
func ClientIPIdentifier() IdentifierFunc {
	return func(c *gin.Context) (string, bool) {
		ip := c.ClientIP()
		return ip, ip != ""
	}
}

// decision is the verdict for one rule evaluation.
type decision struct {
	limit     int
	remaining int
	reset     time.Time
	blocked   bool
	retryIn   time.Duration
}

// stricterThan orders decisions for the response headers: blocked beats
// allowed, then fewer remaining attempts, then the earlier reset.
func (d decision) stricterThan(other decision) bool {
	if d.blocked != other.blocked {
		return d.blocked
	}
	if d.remaining != other.remaining {
		return d.remaining < other.remaining
	}
	return d.reset.Before(other.reset)
}

func (d decision) retrySeconds() int {
	seconds := int(math.Ceil(d.retryIn.Seconds()))
	if seconds < 0 {
		return 0
	}
	return seconds
}

// RateLimit returns a middleware enforcing the given rules. Store failures
// never block a request; the rule is skipped and logged instead.
func (rl *RateLimiter) RateLimit(rules ...RateLimitRule) gin.HandlerFunc {
	active := usableRules(rules)

	return func(c *gin.Context) {
		if rl.store == nil || len(active) == 0 {
			c.Next()
			return
		}

		now := rl.now()
		var strictest *decision

		for _, rule := range active {
			identifier, ok := rule.Identifier(c)
			if !ok || identifier == "" {
				continue
			}

			verdict, err := rl.decide(c.Request.Context(), rule, rule.Name+":"+identifier, now)
			if err != nil {
				rl.logger.Warn("rate limit check failed",
					zap.String("rule", rule.Name),
					zap.Error(err),
				)
				continue
			}

			if strictest == nil || verdict.stricterThan(*strictest) {
				snapshot := verdict
				strictest = &snapshot
			}

			if verdict.blocked {
				writeRateLimitHeaders(c, verdict)
				rl.reject(c, verdict)
				return
			}
		}

		if strictest != nil {
			writeRateLimitHeaders(c, *strictest)
		}

		c.Next()
	}
}

func (rl *RateLimiter) decide(ctx context.Context, rule RateLimitRule, key string, now time.Time) (decision, error) {
	if err := rl.store.TrimWindow(ctx, key, rule.Window, now); err != nil {
		return decision{}, err
	}

	count, err := rl.store.CountAttempts(ctx, key, rule.Window, now)
	if err != nil {
		return decision{}, err
	}

	oldest, seen, err := rl.store.OldestAttempt(ctx, key, rule.Window, now)
	if err != nil {
		return decision{}, err
	}

	reset := now.Add(rule.Window)
	if seen {
		reset = oldest.Add(rule.Window)
	}

	verdict := decision{limit: rule.Limit, reset: reset}

	if count >= rule.Limit {
		verdict.blocked = true
		if wait := reset.Sub(now); wait > 0 {
			verdict.retryIn = wait
		}
		return verdict, nil
	}

	// The attempt counts against the limit whether or not the login succeeds.
	if err := rl.store.RecordAttempt(ctx, key, now); err != nil {
		return decision{}, err
	}

	verdict.remaining = rule.Limit - count - 1
	if verdict.remaining < 0 {
		verdict.remaining = 0
	}

	return verdict, nil
}

func (rl *RateLimiter) reject(c *gin.Context, verdict decision) {
	seconds := verdict.retrySeconds()

	instance := c.FullPath()
	if instance == "" {
		instance = c.Request.URL.Path
	}

	c.AbortWithStatusJSON(http.StatusTooManyRequests, ProblemDetails{
		Type:       rateLimitProblemType,
		Title:      rateLimitProblemTitle,
		Status:     http.StatusTooManyRequests,
		Detail:     fmt.Sprintf("Too many requests. Try again in %d seconds.", seconds),
		Instance:   instance,
		RetryAfter: seconds,
		TraceID:    GetTraceID(c),
	})
}

func writeRateLimitHeaders(c *gin.Context, verdict decision) {
	headers := c.Writer.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(verdict.limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(verdict.remaining))
	headers.Set("X-RateLimit-Reset", strconv.FormatInt(verdict.reset.Unix(), 10))

	if verdict.blocked {
		headers.Set("Retry-After", strconv.Itoa(verdict.retrySeconds()))
	}
}

func usableRules(rules []RateLimitRule) []RateLimitRule {
	out := make([]RateLimitRule, 0, len(rules))
	for _, rule := range rules {
		if rule.Identifier == nil || rule.Limit <= 0 || rule.Window <= 0 {
			continue
		}
		if rule.Name == "" {
			rule.Name = "default"
		}
		out = append(out, rule)
	}
	return out
}
