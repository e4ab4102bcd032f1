package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"hrdesk/internal/transport/http/api"
)

type rateKeyFunc func(r *http.Request) string

type rateBucket struct {
	count int
	reset time.Time
}

// fixedWindow counts requests per key. A key's window opens on its first
// request; expired buckets are pruned at most once per window.
type fixedWindow struct {
	mu        sync.Mutex
	limit     int
	window    time.Duration
	key       rateKeyFunc
	buckets   map[string]*rateBucket
	nextPrune time.Time
}

type rateVerdict struct {
	key       string
	limit     int
	remaining int
	resetIn   int
	allowed   bool
}

func newFixedWindow(limit int, window time.Duration, key rateKeyFunc) *fixedWindow {
	return &fixedWindow{limit: max(limit, 1), window: window, key: key, buckets: map[string]*rateBucket{}}
}

func (f *fixedWindow) take(r *http.Request, now time.Time) rateVerdict {
	key := f.key(r)
	if key == "" {
		key = ClientIP(r)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if now.After(f.nextPrune) {
		for k, b := range f.buckets {
			if now.After(b.reset) {
				delete(f.buckets, k)
			}
		}
		f.nextPrune = now.Add(f.window)
	}
	b, ok := f.buckets[key]
	if !ok || now.After(b.reset) {
		b = &rateBucket{reset: now.Add(f.window)}
		f.buckets[key] = b
	}
	b.count++
	return rateVerdict{
		key:       key,
		limit:     f.limit,
		remaining: max(f.limit-b.count, 0),
		resetIn:   ceilSeconds(b.reset.Sub(now)),
		allowed:   b.count <= f.limit,
	}
}

func (f *fixedWindow) size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.buckets)
}

type rateRule struct {
	name    string
	match   func(method, path string) bool
	windows []*fixedWindow
}

// SensitiveRateLimit throttles the routes that are costly or open to abuse:
// login and MFA by address and by email, public applications by address, and
// confirmations, exports and payslip email by the signed-in user. Other
// routes pass untouched.
func SensitiveRateLimit(baseLimit int, window time.Duration) func(http.Handler) http.Handler {
	rules := sensitiveRules(baseLimit, window)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rule := matchRule(rules, r)
			if rule == nil {
				next.ServeHTTP(w, r)
				return
			}
			now := time.Now()
			for _, fw := range rule.windows {
				v := fw.take(r, now)
				h := w.Header()
				h.Set("X-RateLimit-Limit", strconv.Itoa(v.limit))
				h.Set("X-RateLimit-Remaining", strconv.Itoa(v.remaining))
				h.Set("X-RateLimit-Reset", strconv.Itoa(v.resetIn))
				if !v.allowed {
					h.Set("Retry-After", strconv.Itoa(max(v.resetIn, 1)))
					slog.Warn("rate limit exceeded", "rule", rule.name, "key", v.key, "method", r.Method, "path", r.URL.Path)
					api.Fail(w, http.StatusTooManyRequests, "rate_limited", "too many requests", GetRequestID(r.Context()))
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func sensitiveRules(baseLimit int, window time.Duration) []rateRule {
	strict := max(baseLimit/4, 1)
	relaxed := max(baseLimit/2, 1)
	return []rateRule{
		{
			name:  "auth",
			match: isAuthRoute,
			windows: []*fixedWindow{
				newFixedWindow(strict, window, ClientIP),
				newFixedWindow(strict, window, jsonFieldOrIP("email")),
			},
		},
		{
			name:    "public_apply",
			match:   isPublicApply,
			windows: []*fixedWindow{newFixedWindow(strict, window, ClientIP)},
		},
		{
			name:    "actor",
			match:   isCostlyAction,
			windows: []*fixedWindow{newFixedWindow(relaxed, window, actorOrIPKey)},
		},
	}
}

func matchRule(rules []rateRule, r *http.Request) *rateRule {
	method := strings.ToUpper(r.Method)
	path := strings.TrimPrefix(r.URL.Path, "/api/v1")
	for i := range rules {
		if rules[i].match(method, path) {
			return &rules[i]
		}
	}
	return nil
}

func isAuthRoute(method, path string) bool {
	return method == http.MethodPost && (path == "/auth/login" || strings.HasPrefix(path, "/auth/mfa/"))
}

func isPublicApply(method, path string) bool {
	return method == http.MethodPost && strings.HasPrefix(path, "/public/jobs/") && strings.HasSuffix(path, "/apply")
}

func isCostlyAction(method, path string) bool {
	switch method {
	case http.MethodGet:
		return strings.HasSuffix(path, "/export") || strings.HasSuffix(path, "/download")
	case http.MethodPost:
		return strings.HasPrefix(path, "/confirmations/") || strings.HasSuffix(path, "/email")
	}
	return false
}

func actorOrIPKey(r *http.Request) string {
	if user, ok := GetUser(r.Context()); ok && user.UserID != "" {
		return "user:" + user.UserID
	}
	return ClientIP(r)
}

// jsonFieldOrIP keys by a string field of a JSON body, restoring the body for
// the handler. Bodies that are not JSON fall back to the client address.
func jsonFieldOrIP(field string) rateKeyFunc {
	return func(r *http.Request) string {
		if r.Body == nil || !strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			return ClientIP(r)
		}
		raw, err := io.ReadAll(io.LimitReader(r.Body, 64*1024))
		r.Body = io.NopCloser(bytes.NewReader(raw))
		if err != nil {
			return ClientIP(r)
		}
		var payload map[string]any
		if json.Unmarshal(raw, &payload) != nil {
			return ClientIP(r)
		}
		value, _ := payload[field].(string)
		value = strings.ToLower(strings.TrimSpace(value))
		if value == "" {
			return ClientIP(r)
		}
		return field + ":" + value
	}
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
