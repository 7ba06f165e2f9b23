package handlers_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func auditActions(resp apiResp) []string {
	var out []string
	for _, item := range resp.dataList() {
		m := item.(map[string]interface{})
		out = append(out, m["action"].(string))
	}
	return out
}

func TestAuditTrailRecordsMutations(t *testing.T) {
	r, _, _ := newTestServer(t)
	token := signup(t, r, "ana@example.com")
	clusterID := mkCluster(t, r, token, "Prod")
	domainID := mkDomain(t, r, token, clusterID, "Main")
	mkResource(t, r, token, domainID, "db-config")

	resp := doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/v1/audit?cluster_id=%d", clusterID), token, nil)
	require.Equal(t, http.StatusOK, resp.Status)

	actions := auditActions(resp)
	// Newest first.
	assert.Equal(t, []string{"resources.create", "domains.create", "clusters.create"}, actions)

	first := resp.dataList()[0].(map[string]interface{})
	assert.Equal(t, "ana", first["actor_name"])
	assert.Equal(t, "resource", first["entity_type"])
}

func TestAuditCursorPagination(t *testing.T) {
	r, _, _ := newTestServer(t)
	token := signup(t, r, "ana@example.com")
	clusterID := mkCluster(t, r, token, "Prod")
	domainID := mkDomain(t, r, token, clusterID, "Main")
	for i := 0; i < 5; i++ {
		mkResource(t, r, token, domainID, fmt.Sprintf("cfg-%d", i))
	}

	// 7 entries total: 1 cluster + 1 domain + 5 resources.
	page1 := doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/v1/audit?cluster_id=%d&limit=4", clusterID), token, nil)
	require.Equal(t, http.StatusOK, page1.Status)
	require.Len(t, page1.dataList(), 4)
	cursor, ok := page1.meta()["next_cursor"].(float64)
	require.True(t, ok)

	page2 := doJSON(t, r, http.MethodGet,
		fmt.Sprintf("/api/v1/audit?cluster_id=%d&limit=4&after_id=%d", clusterID, int64(cursor)), token, nil)
	require.Equal(t, http.StatusOK, page2.Status)
	assert.Len(t, page2.dataList(), 3)
	assert.Nil(t, page2.meta()["next_cursor"])
}

func TestAuditSearchFilter(t *testing.T) {
	r, _, _ := newTestServer(t)
	token := signup(t, r, "ana@example.com")
	clusterID := mkCluster(t, r, token, "Prod")
	mkDomain(t, r, token, clusterID, "Main")

	resp := doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/v1/audit?cluster_id=%d&q=domains", clusterID), token, nil)
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, []string{"domains.create"}, auditActions(resp))
}

func TestAuditRequiresPermission(t *testing.T) {
	r, _, _ := newTestServer(t)
	anaToken := signup(t, r, "ana@example.com")
	bobToken := signup(t, r, "bob@example.com")
	clusterID := mkCluster(t, r, anaToken, "Prod")

	add := doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/clusters/%d/members", clusterID), anaToken,
		map[string]interface{}{"email": "bob@example.com", "role": "editor"})
	require.Equal(t, http.StatusCreated, add.Status)

	// Editors do not carry audit:read.
	resp := doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/v1/audit?cluster_id=%d", clusterID), bobToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.Status)
}

func TestAuditHiddenFromNonMembers(t *testing.T) {
	r, _, _ := newTestServer(t)
	anaToken := signup(t, r, "ana@example.com")
	bobToken := signup(t, r, "bob@example.com")
	clusterID := mkCluster(t, r, anaToken, "Prod")

	resp := doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/v1/audit?cluster_id=%d", clusterID), bobToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.Status)
}
