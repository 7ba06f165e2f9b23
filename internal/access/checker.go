package access

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"universo_lite/internal/models"
)

// Membership roles, from most to least privileged.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

// Key composes a permission key like "domains:write" from entity+action.
func Key(entity, action string) string { return strings.ToLower(entity + ":" + action) }

var readPerms = []string{
	"clusters:read", "members:read", "domains:read", "resources:read",
}

var editorPerms = append([]string{
	"domains:write", "domains:delete", "resources:write", "resources:delete",
}, readPerms...)

var adminPerms = append([]string{
	"clusters:write", "members:write", "tokens:write", "audit:read",
}, editorPerms...)

var ownerPerms = append([]string{
	"clusters:delete",
}, adminPerms...)

// matrix maps each role to the set of permission keys it grants. The matrix
// lives in code, not the database: authorization is an explicit service-layer
// decision and stays testable without fixtures.
var matrix = map[string]map[string]struct{}{
	RoleViewer: toSet(readPerms),
	RoleEditor: toSet(editorPerms),
	RoleAdmin:  toSet(adminPerms),
	RoleOwner:  toSet(ownerPerms),
}

func toSet(keys []string) map[string]struct{} {
	s := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

// ValidRole reports whether the given role name is one of the fixed set.
func ValidRole(role string) bool {
	_, ok := matrix[role]
	return ok
}

// Allowed consults the matrix without touching the database.
func Allowed(role, perm string) bool {
	perms, ok := matrix[role]
	if !ok {
		return false
	}
	_, ok = perms[perm]
	return ok
}

// Checker resolves membership roles against the permission matrix.
type Checker struct{ DB *gorm.DB }

// RoleIn returns the caller's role in a cluster, or "" when not a member.
func (c Checker) RoleIn(ctx context.Context, userID, clusterID int64) (string, error) {
	var m models.Membership
	err := c.DB.WithContext(ctx).
		Where("user_id = ? AND cluster_id = ?", userID, clusterID).
		First(&m).Error
	if err == gorm.ErrRecordNotFound {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return m.Role, nil
}

// Can reports whether the user holds the permission within the cluster.
func (c Checker) Can(ctx context.Context, userID, clusterID int64, perm string) (bool, error) {
	role, err := c.RoleIn(ctx, userID, clusterID)
	if err != nil {
		return false, err
	}
	return Allowed(role, perm), nil
}

// CanDomain reports whether the user holds the permission in any cluster the
// domain is attached to.
func (c Checker) CanDomain(ctx context.Context, userID, domainID int64, perm string) (bool, error) {
	var roles []string
	err := c.DB.WithContext(ctx).
		Table("memberships m").
		Select("m.role").
		Joins("JOIN cluster_domains cd ON cd.cluster_id = m.cluster_id").
		Where("m.user_id = ? AND cd.domain_id = ?", userID, domainID).
		Scan(&roles).Error
	if err != nil {
		return false, err
	}
	for _, role := range roles {
		if Allowed(role, perm) {
			return true, nil
		}
	}
	return false, nil
}

// CanResource reports whether the user holds the permission in any cluster
// reachable from the resource through its domains.
func (c Checker) CanResource(ctx context.Context, userID, resourceID int64, perm string) (bool, error) {
	var roles []string
	err := c.DB.WithContext(ctx).
		Table("memberships m").
		Select("m.role").
		Joins("JOIN cluster_domains cd ON cd.cluster_id = m.cluster_id").
		Joins("JOIN domain_resources dr ON dr.domain_id = cd.domain_id").
		Where("m.user_id = ? AND dr.resource_id = ?", userID, resourceID).
		Scan(&roles).Error
	if err != nil {
		return false, err
	}
	for _, role := range roles {
		if Allowed(role, perm) {
			return true, nil
		}
	}
	return false, nil
}
