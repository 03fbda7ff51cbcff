// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// Tests for the visitor identity middleware

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func identityRouter(captured *string) *gin.Engine {
	router := gin.New()
	router.Use(VisitorIdentity())
	router.GET("/", func(c *gin.Context) {
		*captured = VisitorID(c)
		c.Status(http.StatusOK)
	})
	return router
}

func TestVisitorIdentity_AssignsNewVisitor(t *testing.T) {
	var seen string
	router := identityRouter(&seen)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/", nil)
	router.ServeHTTP(w, req)

	require.NotEmpty(t, seen)
	_, err := uuid.Parse(seen)
	assert.NoError(t, err, "assigned token should be a UUID")

	// The same token must be set as a cookie for the next visit.
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, visitorCookie, cookies[0].Name)
	assert.Equal(t, seen, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.Positive(t, cookies[0].MaxAge)
}

func TestVisitorIdentity_KeepsReturningVisitor(t *testing.T) {
	var seen string
	router := identityRouter(&seen)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: visitorCookie, Value: "visitor-123"})
	router.ServeHTTP(w, req)

	assert.Equal(t, "visitor-123", seen)
	assert.Empty(t, w.Result().Cookies(), "no new cookie for a returning visitor")
}

func TestVisitorIdentity_ReplacesEmptyCookie(t *testing.T) {
	var seen string
	router := identityRouter(&seen)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: visitorCookie, Value: ""})
	router.ServeHTTP(w, req)

	assert.NotEmpty(t, seen)
}

func TestVisitorIdentity_DistinctVisitorsGetDistinctTokens(t *testing.T) {
	var seen string
	router := identityRouter(&seen)

	w1 := httptest.NewRecorder()
	req1, _ := http.NewRequest("GET", "/", nil)
	router.ServeHTTP(w1, req1)
	first := seen

	w2 := httptest.NewRecorder()
	req2, _ := http.NewRequest("GET", "/", nil)
	router.ServeHTTP(w2, req2)
	second := seen

	assert.NotEqual(t, first, second)
}

func TestVisitorID_WithoutMiddleware(t *testing.T) {
	router := gin.New()
	var seen string
	router.GET("/", func(c *gin.Context) {
		seen = VisitorID(c)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/", nil)
	router.ServeHTTP(w, req)

	assert.Empty(t, seen)
}
