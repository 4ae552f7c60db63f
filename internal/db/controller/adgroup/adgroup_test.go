package adgroup

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/claims"
	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/config"
	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/db/models"
	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/identity"
)

// setupTestDB creates an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "failed to create test database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(models.All()...), "failed to migrate test database")

	return db
}

func TestNilDatabase(t *testing.T) {
	_, err := GetOrCreate(nil, "x")
	require.ErrorIs(t, err, ErrDBNil)

	_, err = CreateMapping(nil, "g", "x")
	require.ErrorIs(t, err, ErrDBNil)

	require.ErrorIs(t, DeleteMapping(nil, "g", "x"), ErrDBNil)

	_, err = ListMappings(nil)
	require.ErrorIs(t, err, ErrDBNil)

	_, err = ResyncMembers(nil, "x")
	require.ErrorIs(t, err, ErrDBNil)
}

func TestGetOrCreate(t *testing.T) {
	db := setupTestDB(t)

	_, err := GetOrCreate(db, "")
	require.ErrorIs(t, err, ErrNameEmpty)

	first, err := GetOrCreate(db, "Helsinki1\\Staff")
	require.NoError(t, err)
	assert.Equal(t, "helsinki1\\staff", first.Name)
	assert.Equal(t, "Helsinki1\\Staff", first.DisplayName)

	second, err := GetOrCreate(db, "HELSINKI1\\STAFF")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Helsinki1\\Staff", second.DisplayName)
}

func TestMappings(t *testing.T) {
	db := setupTestDB(t)

	_, err := CreateMapping(db, "", "x")
	require.ErrorIs(t, err, ErrNameEmpty)

	m1, err := CreateMapping(db, "editors", "AD-Editors")
	require.NoError(t, err)
	assert.NotZero(t, m1.ID)

	again, err := CreateMapping(db, "editors", "ad-editors")
	require.NoError(t, err)
	assert.Equal(t, m1.ID, again.ID)

	_, err = CreateMapping(db, "admins", "ad-admins")
	require.NoError(t, err)

	var groups []string
	require.NoError(t, db.Model(&models.Group{}).Order("name").Pluck("name", &groups).Error)
	assert.Equal(t, []string{"admins", "editors"}, groups)

	mappings, err := ListMappings(db)
	require.NoError(t, err)
	require.Len(t, mappings, 2)
	assert.Equal(t, "admins", mappings[0].GroupName)
	assert.Equal(t, "ad-admins", mappings[0].ADGroupName)
	assert.Equal(t, "editors", mappings[1].GroupName)
	assert.Equal(t, "AD-Editors", mappings[1].DisplayName)

	require.NoError(t, DeleteMapping(db, "editors", "AD-EDITORS"))
	require.ErrorIs(t, DeleteMapping(db, "editors", "ad-editors"), ErrMappingNotFound)
	require.ErrorIs(t, DeleteMapping(db, "nobody", "ad-editors"), ErrMappingNotFound)
	require.ErrorIs(t, DeleteMapping(db, "admins", "ad-nobody"), ErrMappingNotFound)

	mappings, err = ListMappings(db)
	require.NoError(t, err)
	assert.Len(t, mappings, 1)
}

func TestResyncMembers(t *testing.T) {
	db := setupTestDB(t)

	resolver, err := identity.NewResolver(db, config.TokenAuth{})
	require.NoError(t, err)

	user, err := resolver.ResolveUser(context.Background(), claims.Claims{
		"sub":       uuid.NewString(),
		"ad_groups": []any{"ad-editors"},
	})
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&models.UserGroup{}).Count(&count).Error)
	assert.Zero(t, count)

	_, err = CreateMapping(db, "editors", "ad-editors")
	require.NoError(t, err)

	synced, err := ResyncMembers(db, "AD-Editors")
	require.NoError(t, err)
	assert.Equal(t, 1, synced)

	var memberships []models.UserGroup
	require.NoError(t, db.Find(&memberships).Error)
	require.Len(t, memberships, 1)
	assert.Equal(t, user.ID, memberships[0].UserID)

	synced, err = ResyncMembers(db, "nobody")
	require.NoError(t, err)
	assert.Zero(t, synced)
}

func groupsOf(t *testing.T, db *gorm.DB, user *models.User) []string {
	t.Helper()

	var names []string
	require.NoError(t, db.Table("groups").
		Joins("JOIN user_groups ON user_groups.group_id = groups.id").
		Where("user_groups.user_id = ?", user.ID).
		Order("groups.name").
		Pluck("groups.name", &names).Error)

	return names
}

func TestDeleteMappingRemovesMemberships(t *testing.T) {
	db := setupTestDB(t)

	resolver, err := identity.NewResolver(db, config.TokenAuth{})
	require.NoError(t, err)

	_, err = CreateMapping(db, "editors", "ad-editors")
	require.NoError(t, err)

	_, err = CreateMapping(db, "editors", "ad-writers")
	require.NoError(t, err)

	login := func(sub string, adGroups ...any) *models.User {
		user, err := resolver.ResolveUser(context.Background(), claims.Claims{"sub": sub, "ad_groups": adGroups})
		require.NoError(t, err)

		return user
	}

	onlyEditors := uuid.NewString()
	both := uuid.NewString()

	editor := login(onlyEditors, "ad-editors")
	writer := login(both, "ad-editors", "ad-writers")

	require.Equal(t, []string{"editors"}, groupsOf(t, db, editor))
	require.Equal(t, []string{"editors"}, groupsOf(t, db, writer))

	require.NoError(t, DeleteMapping(db, "editors", "AD-Editors"))

	assert.Empty(t, groupsOf(t, db, editor))
	assert.Equal(t, []string{"editors"}, groupsOf(t, db, writer), "ad-writers still grants editors")

	synced, err := ResyncMembers(db, "ad-editors")
	require.NoError(t, err)
	assert.Equal(t, 2, synced)

	assert.Empty(t, groupsOf(t, db, login(onlyEditors, "ad-editors")))
	assert.Equal(t, []string{"editors"}, groupsOf(t, db, login(both, "ad-editors", "ad-writers")))
}

func TestResyncMembersLocksUsers(t *testing.T) {
	db := setupTestDB(t)

	resolver, err := identity.NewResolver(db, config.TokenAuth{})
	require.NoError(t, err)

	for range 3 {
		_, err := resolver.ResolveUser(context.Background(), claims.Claims{
			"sub":       uuid.NewString(),
			"ad_groups": []any{"ad-editors"},
		})
		require.NoError(t, err)
	}

	_, err = CreateMapping(db, "editors", "ad-editors")
	require.NoError(t, err)

	var locks int

	require.NoError(t, db.Callback().Query().Before("gorm:query").Register("test:count_locks", func(tx *gorm.DB) {
		if _, ok := tx.Statement.Clauses["FOR"]; ok {
			locks++
		}
	}))

	synced, err := ResyncMembers(db, "ad-editors")
	require.NoError(t, err)
	assert.Equal(t, 3, synced)
	assert.Equal(t, 3, locks)

	var count int64
	require.NoError(t, db.Model(&models.UserGroup{}).Count(&count).Error)
	assert.Equal(t, int64(3), count)
}
