package tenancy

import (
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

type fixture struct {
	ana, bob       models.User
	anaCluster     models.Cluster
	bobCluster     models.Cluster
	anaDomain      models.Domain
	bobDomain      models.Domain
	anaResource    models.Resource
	sharedDomain   models.Domain
	sharedResource models.Resource
}

// seedTwoTenants builds two users with disjoint clusters plus one domain and
// one resource attached to both sides.
func seedTwoTenants(t *testing.T, gdb *gorm.DB) fixture {
	t.Helper()
	var f fixture

	f.ana = models.User{Email: "ana@example.com", Name: "Ana"}
	f.bob = models.User{Email: "bob@example.com", Name: "Bob"}
	require.NoError(t, gdb.Create(&f.ana).Error)
	require.NoError(t, gdb.Create(&f.bob).Error)

	f.anaCluster = models.Cluster{Name: "Ana Cluster", Slug: "ana", OwnerID: f.ana.ID}
	f.bobCluster = models.Cluster{Name: "Bob Cluster", Slug: "bob", OwnerID: f.bob.ID}
	require.NoError(t, gdb.Create(&f.anaCluster).Error)
	require.NoError(t, gdb.Create(&f.bobCluster).Error)
	require.NoError(t, gdb.Create(&models.Membership{ClusterID: f.anaCluster.ID, UserID: f.ana.ID, Role: "owner"}).Error)
	require.NoError(t, gdb.Create(&models.Membership{ClusterID: f.bobCluster.ID, UserID: f.bob.ID, Role: "owner"}).Error)

	f.anaDomain = models.Domain{Name: "Ana Domain"}
	f.bobDomain = models.Domain{Name: "Bob Domain"}
	f.sharedDomain = models.Domain{Name: "Shared Domain"}
	require.NoError(t, gdb.Create(&f.anaDomain).Error)
	require.NoError(t, gdb.Create(&f.bobDomain).Error)
	require.NoError(t, gdb.Create(&f.sharedDomain).Error)
	require.NoError(t, gdb.Create(&models.ClusterDomain{ClusterID: f.anaCluster.ID, DomainID: f.anaDomain.ID}).Error)
	require.NoError(t, gdb.Create(&models.ClusterDomain{ClusterID: f.bobCluster.ID, DomainID: f.bobDomain.ID}).Error)
	require.NoError(t, gdb.Create(&models.ClusterDomain{ClusterID: f.anaCluster.ID, DomainID: f.sharedDomain.ID}).Error)
	require.NoError(t, gdb.Create(&models.ClusterDomain{ClusterID: f.bobCluster.ID, DomainID: f.sharedDomain.ID}).Error)

	f.anaResource = models.Resource{Name: "ana-cfg", Type: "config"}
	f.sharedResource = models.Resource{Name: "shared-cfg", Type: "config"}
	require.NoError(t, gdb.Create(&f.anaResource).Error)
	require.NoError(t, gdb.Create(&f.sharedResource).Error)
	require.NoError(t, gdb.Create(&models.DomainResource{DomainID: f.anaDomain.ID, ResourceID: f.anaResource.ID}).Error)
	require.NoError(t, gdb.Create(&models.DomainResource{DomainID: f.anaDomain.ID, ResourceID: f.sharedResource.ID}).Error)
	require.NoError(t, gdb.Create(&models.DomainResource{DomainID: f.bobDomain.ID, ResourceID: f.sharedResource.ID}).Error)

	return f
}

func TestClusterIDs(t *testing.T) {
	gdb := newTestDB(t)
	f := seedTwoTenants(t, gdb)

	ids, err := ClusterIDs(gdb, f.ana.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{f.anaCluster.ID}, ids)

	ids, err = ClusterIDs(gdb, f.ana.ID+999)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestDomainsScopedToMemberships(t *testing.T) {
	gdb := newTestDB(t)
	f := seedTwoTenants(t, gdb)

	var domains []models.Domain
	require.NoError(t, Domains(gdb, f.ana.ID).Find(&domains).Error)

	names := make([]string, 0, len(domains))
	for _, d := range domains {
		names = append(names, d.Name)
	}
	assert.ElementsMatch(t, []string{"Ana Domain", "Shared Domain"}, names)
}

func TestSharedDomainAppearsOnce(t *testing.T) {
	gdb := newTestDB(t)
	f := seedTwoTenants(t, gdb)

	// Ana joins Bob's cluster too: the shared domain is now reachable via two
	// memberships but must still list once.
	require.NoError(t, gdb.Create(&models.Membership{ClusterID: f.bobCluster.ID, UserID: f.ana.ID, Role: "viewer"}).Error)

	var domains []models.Domain
	require.NoError(t, Domains(gdb, f.ana.ID).Find(&domains).Error)
	seen := 0
	for _, d := range domains {
		if d.ID == f.sharedDomain.ID {
			seen++
		}
	}
	assert.Equal(t, 1, seen)

	count, err := CountDomains(gdb, f.ana.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)
}

func TestResourcesScopedToMemberships(t *testing.T) {
	gdb := newTestDB(t)
	f := seedTwoTenants(t, gdb)

	var resources []models.Resource
	require.NoError(t, Resources(gdb, f.bob.ID).Find(&resources).Error)
	require.Len(t, resources, 1)
	assert.Equal(t, f.sharedResource.ID, resources[0].ID)

	count, err := CountResources(gdb, f.ana.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestDomainVisible(t *testing.T) {
	gdb := newTestDB(t)
	f := seedTwoTenants(t, gdb)

	ok, err := DomainVisible(gdb, f.ana.ID, f.anaDomain.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = DomainVisible(gdb, f.bob.ID, f.anaDomain.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = DomainVisible(gdb, f.bob.ID, f.sharedDomain.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestResourceVisible(t *testing.T) {
	gdb := newTestDB(t)
	f := seedTwoTenants(t, gdb)

	ok, err := ResourceVisible(gdb, f.bob.ID, f.anaResource.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = ResourceVisible(gdb, f.bob.ID, f.sharedResource.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}
