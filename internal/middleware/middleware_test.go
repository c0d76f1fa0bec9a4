package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/aura-events/backend/internal/models"
)

type stubAuthn struct {
	actor models.Actor
}

func (s stubAuthn) Authenticate(token string) (models.Actor, error) {
	if token != "good" {
		return models.Actor{}, errors.New("bad token")
	}
	return s.actor, nil
}

func newRouter(actor models.Actor, roles ...models.Role) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", JWT(stubAuthn{actor: actor}), RequireRole(roles...), func(c *gin.Context) {
		a := ActorFrom(c)
		group := ""
		if a.GroupID != nil {
			group = a.GroupID.String()
		}
		c.String(http.StatusOK, string(a.Role)+"|"+group)
	})
	return r
}

func TestJWTAndRequireRole(t *testing.T) {
	group := uuid.New()
	director := models.Actor{UserID: uuid.New(), Role: models.RoleDirector, GroupID: &group}

	tests := []struct {
		name   string
		header string
		roles  []models.Role
		status int
		body   string
	}{
		{"missing header", "", []models.Role{models.RoleDirector}, http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic good", []models.Role{models.RoleDirector}, http.StatusUnauthorized, ""},
		{"invalid token", "Bearer bad", []models.Role{models.RoleDirector}, http.StatusUnauthorized, ""},
		{"role not allowed", "Bearer good", []models.Role{models.RoleAdmin}, http.StatusForbidden, ""},
		{"allowed", "Bearer good", []models.Role{models.RoleAdmin, models.RoleDirector}, http.StatusOK, "director|" + group.String()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			newRouter(director, tt.roles...).ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, w.Body.String())
			}
		})
	}
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS("http://a.test, http://b.test"))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "http://b.test")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://b.test", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "http://evil.test")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.DebugLevel)
	user := uuid.New()
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(ContextUserID, user)
		c.Next()
	}, Logger(zap.New(core)))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/events/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/events/42", nil))

	entries := logs.All()
	assert.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, zapcore.WarnLevel, e.Level)
	assert.Equal(t, "/events/:id", e.ContextMap()["route"])
	assert.Equal(t, user.String(), e.ContextMap()["user_id"])
}
