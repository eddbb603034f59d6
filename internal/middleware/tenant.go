// Package middleware provides HTTP middleware for the intelligence API
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// TenantIDKey is the gin context key holding the resolved tenant id
const TenantIDKey = "tenant_id"

// TenantScope resolves the tenant for every request. The tenantId query
// parameter wins; requests without one are attributed to the configured
// default tenant. There is never an anonymous request past this point.
func TenantScope(defaultTenantID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := strings.TrimSpace(c.Query("tenantId"))
		if tenantID == "" {
			tenantID = defaultTenantID
		}
		c.Set(TenantIDKey, tenantID)
		c.Next()
	}
}

// TenantID returns the tenant resolved by TenantScope for this request
func TenantID(c *gin.Context) string {
	return c.GetString(TenantIDKey)
}
