package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func setupRouter(defaultTenant string) (*gin.Engine, *string) {
	gin.SetMode(gin.TestMode)

	var captured string
	router := gin.New()
	router.Use(TenantScope(defaultTenant))
	router.GET("/probe", func(c *gin.Context) {
		captured = TenantID(c)
		c.Status(http.StatusOK)
	})
	return router, &captured
}

func TestTenantScopeFromQueryParam(t *testing.T) {
	router, captured := setupRouter("default_tenant")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/probe?tenantId=t42", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "t42", *captured)
}

func TestTenantScopeFallsBackToDefault(t *testing.T) {
	router, captured := setupRouter("default_tenant")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, "default_tenant", *captured)
}

func TestTenantScopeBlankParamUsesDefault(t *testing.T) {
	router, captured := setupRouter("default_tenant")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/probe?tenantId=%20%20", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, "default_tenant", *captured)
}
