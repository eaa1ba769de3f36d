package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/unifyp/fyp-api/internal/models"
)

func rbacRouter(handler gin.HandlerFunc, claims *models.JWTClaims) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/resource/:id", func(c *gin.Context) {
		if claims != nil {
			c.Set(ContextUserKey, claims)
		}
		c.Next()
	}, handler, func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestRBACAllowsRole(t *testing.T) {
	r := rbacRouter(RequireRoles(models.RoleAdmin), &models.JWTClaims{UserID: "u1", Role: models.RoleAdmin})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/resource/u2", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRBACRejectsRole(t *testing.T) {
	r := rbacRouter(RequireRoles(models.RoleAdmin), &models.JWTClaims{UserID: "u1", Role: models.RoleStudent})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/resource/u2", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRBACAllowsSelf(t *testing.T) {
	r := rbacRouter(RBAC("ADMIN", "SELF"), &models.JWTClaims{UserID: "u1", Role: models.RoleStudent})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/resource/u1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRBACRejectsOtherUser(t *testing.T) {
	r := rbacRouter(RBAC("SELF"), &models.JWTClaims{UserID: "u1", Role: models.RoleStudent})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/resource/u2", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRBACRequiresAuthentication(t *testing.T) {
	r := rbacRouter(RequireRoles(models.RoleAdmin), nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/resource/u1", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
