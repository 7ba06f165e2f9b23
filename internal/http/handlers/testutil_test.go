package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"universo_lite/internal/config"
	"universo_lite/internal/db"
	"universo_lite/internal/events"
	httpserver "universo_lite/internal/http"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() config.Config {
	return config.Config{
		JWTSecret: "test-secret",
		JWTTTL:    time.Hour,
		RateRPS:   1000,
		RateBurst: 1000,
	}
}

// newTestServer builds the full router against an in-memory sqlite database.
func newTestServer(t *testing.T) (*gin.Engine, *gorm.DB, *events.Hub) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(gdb))

	hub := events.NewHub()
	r := httpserver.NewRouter(gdb, testConfig(), hub, zap.NewNop())
	return r, gdb, hub
}

type apiResp struct {
	Status int
	Body   map[string]interface{}
}

func (a apiResp) errMsg() string {
	if s, ok := a.Body["error"].(string); ok {
		return s
	}
	return ""
}

func (a apiResp) data() map[string]interface{} {
	if m, ok := a.Body["data"].(map[string]interface{}); ok {
		return m
	}
	return nil
}

func (a apiResp) dataList() []interface{} {
	if l, ok := a.Body["data"].([]interface{}); ok {
		return l
	}
	return nil
}

func (a apiResp) meta() map[string]interface{} {
	if m, ok := a.Body["meta"].(map[string]interface{}); ok {
		return m
	}
	return nil
}

func (a apiResp) dataID() int64 {
	if d := a.data(); d != nil {
		if id, ok := d["id"].(float64); ok {
			return int64(id)
		}
	}
	return 0
}

// doJSON performs a request against the router, with an optional bearer token.
func doJSON(t *testing.T, r *gin.Engine, method, path, token string, payload interface{}) apiResp {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	out := apiResp{Status: w.Code, Body: map[string]interface{}{}}
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &out.Body)
	}
	return out
}

// signup registers a user and returns a bearer token for them.
func signup(t *testing.T, r *gin.Engine, email string) string {
	t.Helper()

	resp := doJSON(t, r, http.MethodPost, "/api/v1/auth/register", "", map[string]interface{}{
		"email":    email,
		"name":     strings.Split(email, "@")[0],
		"password": "sup3r-secret",
	})
	require.Equal(t, http.StatusCreated, resp.Status, "register: %v", resp.Body)

	login := doJSON(t, r, http.MethodPost, "/api/v1/auth/login", "", map[string]interface{}{
		"email":    email,
		"password": "sup3r-secret",
	})
	require.Equal(t, http.StatusOK, login.Status, "login: %v", login.Body)
	token, _ := login.Body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

// mkCluster creates a cluster and returns its id.
func mkCluster(t *testing.T, r *gin.Engine, token, name string) int64 {
	t.Helper()
	resp := doJSON(t, r, http.MethodPost, "/api/v1/clusters", token, map[string]interface{}{"name": name})
	require.Equal(t, http.StatusCreated, resp.Status, "create cluster: %v", resp.Body)
	id := resp.dataID()
	require.NotZero(t, id)
	return id
}

// mkDomain creates a domain inside a cluster and returns its id.
func mkDomain(t *testing.T, r *gin.Engine, token string, clusterID int64, name string) int64 {
	t.Helper()
	resp := doJSON(t, r, http.MethodPost, "/api/v1/domains", token, map[string]interface{}{
		"cluster_id": clusterID,
		"name":       name,
	})
	require.Equal(t, http.StatusCreated, resp.Status, "create domain: %v", resp.Body)
	id := resp.dataID()
	require.NotZero(t, id)
	return id
}

// mkResource creates a resource inside a domain and returns its id.
func mkResource(t *testing.T, r *gin.Engine, token string, domainID int64, name string) int64 {
	t.Helper()
	resp := doJSON(t, r, http.MethodPost, "/api/v1/resources", token, map[string]interface{}{
		"domain_id": domainID,
		"name":      name,
		"type":      "config",
		"config":    map[string]interface{}{"key": "value"},
	})
	require.Equal(t, http.StatusCreated, resp.Status, "create resource: %v", resp.Body)
	id := resp.dataID()
	require.NotZero(t, id)
	return id
}
