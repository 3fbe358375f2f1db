package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolsecure/hallpass/internal/model"
	"github.com/schoolsecure/hallpass/internal/utils"
)

const testSecret = "middleware-test-secret"

// invoke runs a middleware-wrapped probe handler against a request and
// reports the recorder plus whatever the probe saw in the context.
func invoke(t *testing.T, mw echo.MiddlewareFunc, authorization string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	seen := make(map[string]interface{})
	h := mw(func(c echo.Context) error {
		seen["user_id"] = c.Get("user_id")
		seen["role"] = c.Get("role")
		seen["school_id"] = c.Get("school_id")
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, h(c))
	return rec, seen
}

func TestJWTAuthInjectsTypedClaims(t *testing.T) {
	at, err := utils.NewAccessToken(testSecret, 42, model.RoleTeacher, 7, 15)
	require.NoError(t, err)

	rec, seen := invoke(t, JWTAuth(testSecret), "Bearer "+at.Token)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(42), seen["user_id"])
	assert.Equal(t, model.RoleTeacher, seen["role"])
	assert.Equal(t, uint64(7), seen["school_id"])
}

func TestJWTAuthRejectsMissingHeader(t *testing.T) {
	rec, _ := invoke(t, JWTAuth(testSecret), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuthRejectsWrongSecret(t *testing.T) {
	at, err := utils.NewAccessToken("some-other-secret", 42, model.RoleTeacher, 7, 15)
	require.NoError(t, err)

	rec, _ := invoke(t, JWTAuth(testSecret), "Bearer "+at.Token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuthRejectsTokenWithoutSchoolClaim(t *testing.T) {
	// A structurally valid token that was not issued by us: numeric sub
	// but no school_id claim.
	claims := jwt.MapClaims{
		"sub":  float64(42),
		"role": "TEACHER",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	rec, _ := invoke(t, JWTAuth(testSecret), "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuthRejectsUnknownRole(t *testing.T) {
	claims := jwt.MapClaims{
		"sub":       float64(42),
		"role":      "SUPERINTENDENT",
		"school_id": float64(7),
		"exp":       time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	rec, _ := invoke(t, JWTAuth(testSecret), "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	cases := []struct {
		name     string
		set      interface{}
		allowed  []model.Role
		wantCode int
	}{
		{"admin allowed", model.RoleAdmin, []model.Role{model.RoleAdmin}, http.StatusOK},
		{"teacher allowed among staff", model.RoleTeacher, []model.Role{model.RoleTeacher, model.RoleAdmin}, http.StatusOK},
		{"student blocked from staff route", model.RoleStudent, []model.Role{model.RoleTeacher, model.RoleAdmin}, http.StatusForbidden},
		{"missing role blocked", nil, []model.Role{model.RoleStudent}, http.StatusForbidden},
		{"plain string role blocked", "ADMIN", []model.Role{model.RoleAdmin}, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)
			if tc.set != nil {
				c.Set("role", tc.set)
			}

			h := RequireRole(tc.allowed...)(func(c echo.Context) error {
				return c.NoContent(http.StatusOK)
			})
			require.NoError(t, h(c))
			assert.Equal(t, tc.wantCode, rec.Code)
		})
	}
}
