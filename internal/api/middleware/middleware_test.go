package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"schologic-practicum/backend/config"
	"schologic-practicum/backend/pkg/jwt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ── 测试替身 ──

type fakeBlacklist struct {
	revoked map[string]bool
	err     error
}

func (f *fakeBlacklist) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	return f.revoked[jti], f.err
}

type fakeLimiter struct {
	calls int
	limit int
	err   error
}

func (f *fakeLimiter) CheckRateLimit(_ context.Context, _ string, limit int, _ time.Duration) (bool, error) {
	f.calls++
	f.limit = limit
	return f.calls <= limit, f.err
}

func newTestJWT() *jwt.Manager {
	return jwt.NewManager(&config.AuthConfig{
		JWTSecret:      "test-secret-key-for-unit-testing-2026",
		Issuer:         "schologic",
		AccessTokenTTL: 15 * time.Minute,
	})
}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers := append(mw, func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("user_id"))
	})
	r.POST("/x", handlers...)
	r.GET("/x", handlers...)
	return r
}

func do(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ── JWTAuth ──

func TestJWTAuth(t *testing.T) {
	mgr := newTestJWT()
	valid, _ := mgr.GenerateAccessToken("user-1", jwt.RoleStudent, "")
	admin, _ := mgr.GenerateAccessToken("user-2", "admin", "")

	tests := []struct {
		name     string
		header   string
		wantCode int
	}{
		{"缺少认证头", "", http.StatusUnauthorized},
		{"格式错误", "Token " + valid, http.StatusUnauthorized},
		{"签名无效", "Bearer " + valid + "x", http.StatusUnauthorized},
		{"未知角色", "Bearer " + admin, http.StatusForbidden},
		{"成功", "Bearer " + valid, http.StatusOK},
	}

	r := newEngine(JWTAuth(mgr, nil))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := do(r, req)
			if w.Code != tt.wantCode {
				t.Errorf("期望 %d，实际 %d", tt.wantCode, w.Code)
			}
			if tt.wantCode == http.StatusOK && w.Body.String() != "user-1" {
				t.Errorf("期望注入 user_id=user-1，实际 %q", w.Body.String())
			}
		})
	}
}

func TestJWTAuth_Blacklist(t *testing.T) {
	mgr := newTestJWT()
	token, _ := mgr.GenerateAccessToken("user-1", jwt.RoleInstructor, "")
	claims, _ := mgr.ParseToken(token)

	req := func() *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/x", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		return r
	}

	bl := &fakeBlacklist{revoked: map[string]bool{claims.ID: true}}
	if w := do(newEngine(JWTAuth(mgr, bl)), req()); w.Code != http.StatusUnauthorized {
		t.Errorf("期望已注销 Token 被拒绝，实际 %d", w.Code)
	}

	// Redis 故障时降级放行
	down := &fakeBlacklist{err: errors.New("connection refused")}
	if w := do(newEngine(JWTAuth(mgr, down)), req()); w.Code != http.StatusOK {
		t.Errorf("期望 Redis 故障时放行，实际 %d", w.Code)
	}
}

// ── RoleAuth ──

func TestRoleAuth(t *testing.T) {
	setRole := func(role string) gin.HandlerFunc {
		return func(c *gin.Context) {
			if role != "" {
				c.Set("role", role)
			}
		}
	}

	tests := []struct {
		name     string
		role     string
		wantCode int
	}{
		{"允许", jwt.RoleInstructor, http.StatusOK},
		{"拒绝", jwt.RoleStudent, http.StatusForbidden},
		{"未认证", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newEngine(setRole(tt.role), RoleAuth(jwt.RoleInstructor))
			if w := do(r, httptest.NewRequest(http.MethodGet, "/x", nil)); w.Code != tt.wantCode {
				t.Errorf("期望 %d，实际 %d", tt.wantCode, w.Code)
			}
		})
	}
}

// ── RateLimit ──

func TestRateLimit(t *testing.T) {
	limiter := &fakeLimiter{}
	r := newEngine(RateLimit(limiter, 2, time.Minute))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, do(r, httptest.NewRequest(http.MethodPost, "/x", nil)).Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("期望前两次放行第三次 429，实际 %v", codes)
	}
}

func TestRateLimit_Degrades(t *testing.T) {
	if w := do(newEngine(RateLimit(nil, 1, time.Minute)), httptest.NewRequest(http.MethodPost, "/x", nil)); w.Code != http.StatusOK {
		t.Errorf("期望未配置 Redis 时放行，实际 %d", w.Code)
	}

	limiter := &fakeLimiter{limit: 0, err: errors.New("timeout")}
	r := newEngine(RateLimit(limiter, 0, time.Minute))
	if w := do(r, httptest.NewRequest(http.MethodPost, "/x", nil)); w.Code != http.StatusOK {
		t.Errorf("期望 Redis 出错时放行，实际 %d", w.Code)
	}
}

// ── RequestID ──

func TestRequestID(t *testing.T) {
	tests := []struct {
		name   string
		header string
		keep   bool
	}{
		{"沿用合法 ID", "req-123_abc.1", true},
		{"自动生成", "", false},
		{"含换行", "abc\ninjected", false},
		{"过长", strings.Repeat("a", requestIDMaxLen+1), false},
	}

	r := newEngine(RequestID())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if tt.header != "" {
				req.Header[http.CanonicalHeaderKey("X-Request-ID")] = []string{tt.header}
			}
			got := do(r, req).Header().Get("X-Request-ID")
			if tt.keep && got != tt.header {
				t.Errorf("期望沿用 %q，实际 %q", tt.header, got)
			}
			if !tt.keep && (got == "" || got == tt.header) {
				t.Errorf("期望重新生成，实际 %q", got)
			}
		})
	}
}

// ── BodyLimit ──

func TestBodyLimit(t *testing.T) {
	r := newEngine(BodyLimit(8))

	if w := do(r, httptest.NewRequest(http.MethodPost, "/x", strings.NewReader("small"))); w.Code != http.StatusOK {
		t.Errorf("期望小请求放行，实际 %d", w.Code)
	}
	if w := do(r, httptest.NewRequest(http.MethodPost, "/x", strings.NewReader("this body is too large"))); w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("期望 413，实际 %d", w.Code)
	}
}
