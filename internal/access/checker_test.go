package access

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"universo_lite/internal/db"
	"universo_lite/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(gdb))
	return gdb
}

func TestMatrix(t *testing.T) {
	cases := []struct {
		role string
		perm string
		want bool
	}{
		{RoleViewer, "clusters:read", true},
		{RoleViewer, "domains:write", false},
		{RoleViewer, "audit:read", false},
		{RoleEditor, "resources:write", true},
		{RoleEditor, "members:write", false},
		{RoleEditor, "clusters:write", false},
		{RoleAdmin, "members:write", true},
		{RoleAdmin, "tokens:write", true},
		{RoleAdmin, "audit:read", true},
		{RoleAdmin, "clusters:delete", false},
		{RoleOwner, "clusters:delete", true},
		{RoleOwner, "resources:delete", true},
		{"", "clusters:read", false},
		{"superuser", "clusters:read", false},
	}
	for _, tc := range cases {
		t.Run(tc.role+"/"+tc.perm, func(t *testing.T) {
			assert.Equal(t, tc.want, Allowed(tc.role, tc.perm))
		})
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "domains:write", Key("Domains", "Write"))
}

func TestValidRole(t *testing.T) {
	for _, role := range []string{RoleOwner, RoleAdmin, RoleEditor, RoleViewer} {
		assert.True(t, ValidRole(role), role)
	}
	assert.False(t, ValidRole("superuser"))
	assert.False(t, ValidRole(""))
}

func TestCheckerCan(t *testing.T) {
	gdb := newTestDB(t)
	chk := Checker{DB: gdb}
	ctx := context.Background()

	user := models.User{Email: "ana@example.com", Name: "Ana"}
	require.NoError(t, gdb.Create(&user).Error)
	cluster := models.Cluster{Name: "Prod", Slug: "prod", OwnerID: user.ID}
	require.NoError(t, gdb.Create(&cluster).Error)
	require.NoError(t, gdb.Create(&models.Membership{
		ClusterID: cluster.ID, UserID: user.ID, Role: RoleEditor,
	}).Error)

	ok, err := chk.Can(ctx, user.ID, cluster.ID, "resources:write")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = chk.Can(ctx, user.ID, cluster.ID, "members:write")
	require.NoError(t, err)
	assert.False(t, ok)

	// Non-member has no role and therefore no permissions.
	ok, err = chk.Can(ctx, user.ID+999, cluster.ID, "clusters:read")
	require.NoError(t, err)
	assert.False(t, ok)

	role, err := chk.RoleIn(ctx, user.ID+999, cluster.ID)
	require.NoError(t, err)
	assert.Empty(t, role)
}

func TestCheckerCanDomainPicksBestRole(t *testing.T) {
	gdb := newTestDB(t)
	chk := Checker{DB: gdb}
	ctx := context.Background()

	user := models.User{Email: "ana@example.com", Name: "Ana"}
	require.NoError(t, gdb.Create(&user).Error)

	viewerCluster := models.Cluster{Name: "A", Slug: "a", OwnerID: user.ID}
	editorCluster := models.Cluster{Name: "B", Slug: "b", OwnerID: user.ID}
	require.NoError(t, gdb.Create(&viewerCluster).Error)
	require.NoError(t, gdb.Create(&editorCluster).Error)
	require.NoError(t, gdb.Create(&models.Membership{ClusterID: viewerCluster.ID, UserID: user.ID, Role: RoleViewer}).Error)
	require.NoError(t, gdb.Create(&models.Membership{ClusterID: editorCluster.ID, UserID: user.ID, Role: RoleEditor}).Error)

	domain := models.Domain{Name: "Shared"}
	require.NoError(t, gdb.Create(&domain).Error)
	require.NoError(t, gdb.Create(&models.ClusterDomain{ClusterID: viewerCluster.ID, DomainID: domain.ID}).Error)

	// Attached only through the viewer cluster: no write.
	ok, err := chk.CanDomain(ctx, user.ID, domain.ID, "domains:write")
	require.NoError(t, err)
	assert.False(t, ok)

	// Once also attached through the editor cluster, write is granted.
	require.NoError(t, gdb.Create(&models.ClusterDomain{ClusterID: editorCluster.ID, DomainID: domain.ID}).Error)
	ok, err = chk.CanDomain(ctx, user.ID, domain.ID, "domains:write")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCheckerCanResource(t *testing.T) {
	gdb := newTestDB(t)
	chk := Checker{DB: gdb}
	ctx := context.Background()

	user := models.User{Email: "ana@example.com", Name: "Ana"}
	require.NoError(t, gdb.Create(&user).Error)
	cluster := models.Cluster{Name: "Prod", Slug: "prod", OwnerID: user.ID}
	require.NoError(t, gdb.Create(&cluster).Error)
	require.NoError(t, gdb.Create(&models.Membership{ClusterID: cluster.ID, UserID: user.ID, Role: RoleAdmin}).Error)

	domain := models.Domain{Name: "Main"}
	require.NoError(t, gdb.Create(&domain).Error)
	require.NoError(t, gdb.Create(&models.ClusterDomain{ClusterID: cluster.ID, DomainID: domain.ID}).Error)

	resource := models.Resource{Name: "cfg", Type: "config"}
	require.NoError(t, gdb.Create(&resource).Error)
	require.NoError(t, gdb.Create(&models.DomainResource{DomainID: domain.ID, ResourceID: resource.ID}).Error)

	ok, err := chk.CanResource(ctx, user.ID, resource.ID, "resources:delete")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = chk.CanResource(ctx, user.ID+999, resource.ID, "resources:read")
	require.NoError(t, err)
	assert.False(t, ok)
}
