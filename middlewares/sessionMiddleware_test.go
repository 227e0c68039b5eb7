package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"bitbucket.org/mmdatafocus/integrity_backend/utils"
	"github.com/gin-gonic/gin"
)

func newSessionRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CorrelationMiddleware())
	r.GET("/whoami", SessionMiddleware(), func(c *gin.Context) {
		id, _ := utils.GetUserIdFromContext(c.Request.Context())
		role, _ := utils.GetUserRoleFromContext(c.Request.Context())
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"id": id, "role": role, "cid": cid})
	})
	r.GET("/admin", SessionMiddleware(), RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestSessionMiddleware_PopulatesContext(t *testing.T) {
	r := newSessionRouter()
	token, err := utils.JwtGenerate("u-1", "Ana", utils.RoleModerator)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("token", token)
	req.Header.Set(CorrelationHeader, "cid-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	want := `{"cid":"cid-123","id":"u-1","role":"moderator"}`
	if w.Body.String() != want {
		t.Fatalf("expected %s, got %s", want, w.Body.String())
	}
	if got := w.Header().Get(CorrelationHeader); got != "cid-123" {
		t.Fatalf("correlation id not echoed, got %q", got)
	}
}

func TestSessionMiddleware_RejectsMissingOrForeignTokens(t *testing.T) {
	r := newSessionRouter()
	t.Setenv("API_SECRET", "other-secret")
	foreign, _ := utils.JwtGenerate("u-1", "Ana", utils.RoleAdmin)
	t.Setenv("API_SECRET", "")

	for _, token := range []string{"", "garbage", foreign} {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		if token != "" {
			req.Header.Set("token", token)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("token %q: expected 401, got %d", token, w.Code)
		}
	}
}

func TestRequireRole(t *testing.T) {
	r := newSessionRouter()
	cases := map[string]int{
		utils.RoleEmployee:  http.StatusForbidden,
		utils.RoleModerator: http.StatusForbidden,
		utils.RoleAdmin:     http.StatusNoContent,
	}
	for role, want := range cases {
		token, _ := utils.JwtGenerate("u-1", "Ana", role)
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("token", token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != want {
			t.Fatalf("role %s: expected %d, got %d", role, want, w.Code)
		}
	}
}
