package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"callcenter-analytics/internal/auth"

	"github.com/gin-gonic/gin"
)

func routerWithRole(role string, allowed ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), "u", role)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}, RequireAnyRole(allowed...), func(c *gin.Context) {
		c.Status(200)
	})
	return r
}

func TestRequireAnyRole_AdminBypasses(t *testing.T) {
	r := routerWithRole(RoleAdmin, RoleSupervisor)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestRequireAnyRole_DeniesUnlistedRole(t *testing.T) {
	r := routerWithRole(RoleAnalyst, RoleSupervisor)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != 403 {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestRequireAnyRole_MissingRoleIsUnauthorized(t *testing.T) {
	r := routerWithRole("", RoleSupervisor)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != 401 {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}
