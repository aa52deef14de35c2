package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"postpilot/config"
	"postpilot/internal/domain"
	"postpilot/internal/middleware"
	"postpilot/internal/models"
	"postpilot/internal/repository"
	"postpilot/internal/service"
	"postpilot/internal/testutil"
)

func testConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{
			AccessSecret:  "test-secret",
			AccessExpiry:  time.Hour,
			RefreshSecret: "test-refresh-secret",
			RefreshExpiry: 24 * time.Hour,
			Issuer:        "postpilot-test",
		},
	}
}

func newAuthRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	cfg := testConfig()
	userRepo := repository.NewUserRepository(db)
	subs := service.NewSubscriptionService(repository.NewSubscriptionRepository(db))
	referrals := service.NewReferralService(repository.NewReferralRepository(db), userRepo, repository.NewAffiliateRepository(db), service.LogMailer{}, 10, 10)
	h := NewAuthHandler(cfg, userRepo, subs, referrals)

	r := gin.New()
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
	r.POST("/auth/refresh", h.Refresh)
	r.GET("/me/subscription", middleware.AuthRequired(&cfg.JWT), NewSubscriptionHandler(subs).Get)
	return r, db
}

func postJSON(r *gin.Engine, path string, payload interface{}) *httptest.ResponseRecorder {
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegister_CreatesUserAndTrial(t *testing.T) {
	r, db := newAuthRouter(t)

	w := postJSON(r, "/auth/register", gin.H{
		"name":     "Asha Menon",
		"email":    "asha@example.com",
		"password": "longenough1",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, domain.PlanTrial, resp.User.Plan)

	var sub models.Subscription
	require.NoError(t, db.Where("user_id = ?", resp.User.ID).First(&sub).Error)
	assert.Equal(t, domain.StatusTrial, sub.Status)
	assert.Equal(t, 25, sub.LimitPosts)

	// Duplicate email is a conflict.
	w = postJSON(r, "/auth/register", gin.H{
		"name":     "Asha Again",
		"email":    "asha@example.com",
		"password": "longenough1",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRegister_AttributesReferral(t *testing.T) {
	r, db := newAuthRouter(t)

	referrer := testutil.TestUser(t, db)
	ref := testutil.TestReferral(t, db, referrer.ID)

	w := postJSON(r, "/auth/register", gin.H{
		"name":          "Asha Menon",
		"email":         "asha@example.com",
		"password":      "longenough1",
		"referral_code": ref.Code,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var got models.Referral
	require.NoError(t, db.First(&got, ref.ID).Error)
	assert.Equal(t, domain.ReferralCompleted, got.Status)
	assert.Equal(t, "asha@example.com", got.ReferredEmail)
}

func TestRegister_BadReferralCodeDoesNotFailSignup(t *testing.T) {
	r, _ := newAuthRouter(t)

	w := postJSON(r, "/auth/register", gin.H{
		"name":          "Asha Menon",
		"email":         "asha@example.com",
		"password":      "longenough1",
		"referral_code": "NOSUCH",
	})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestLoginAndAuthenticatedRequest(t *testing.T) {
	r, _ := newAuthRouter(t)

	w := postJSON(r, "/auth/register", gin.H{
		"name":     "Asha Menon",
		"email":    "asha@example.com",
		"password": "longenough1",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = postJSON(r, "/auth/login", gin.H{"email": "asha@example.com", "password": "longenough1"})
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	req := httptest.NewRequest(http.MethodGet, "/me/subscription", nil)
	req.Header.Set("Authorization", "Bearer "+resp.Token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Wrong password and missing token both fail.
	w = postJSON(r, "/auth/login", gin.H{"email": "asha@example.com", "password": "wrong-pass1"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/me/subscription", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshToken(t *testing.T) {
	r, _ := newAuthRouter(t)

	w := postJSON(r, "/auth/register", gin.H{
		"name":     "Asha Menon",
		"email":    "asha@example.com",
		"password": "longenough1",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = postJSON(r, "/auth/login", gin.H{"email": "asha@example.com", "password": "longenough1"})
	require.Equal(t, http.StatusOK, w.Code)
	var login struct {
		RefreshToken string `json:"refresh_token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	require.NotEmpty(t, login.RefreshToken)

	w = postJSON(r, "/auth/refresh", gin.H{"refresh_token": login.RefreshToken})
	require.Equal(t, http.StatusOK, w.Code)
	var refreshed struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &refreshed))

	// The new access token works.
	req := httptest.NewRequest(http.MethodGet, "/me/subscription", nil)
	req.Header.Set("Authorization", "Bearer "+refreshed.Token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// An access token is not a refresh token, and garbage fails too.
	w = postJSON(r, "/auth/refresh", gin.H{"refresh_token": refreshed.Token})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = postJSON(r, "/auth/refresh", gin.H{"refresh_token": "not-a-token"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
