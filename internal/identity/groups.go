package identity

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/db/models"
)

// UpdateADGroups replaces the AD groups of user with names and re-syncs the
// mapped local groups. Names are stored lowercased, unknown AD groups are
// created on demand. The user row is locked for the duration of tx.
func UpdateADGroups(tx *gorm.DB, user *models.User, names []string) error {
	if err := lockUser(tx, user); err != nil {
		return err
	}

	byName := make(map[string]string, len(names))
	for _, name := range names {
		lower := strings.ToLower(name)
		if _, ok := byName[lower]; !ok {
			byName[lower] = name
		}
	}

	wanted := make(map[uint]struct{}, len(byName))

	if len(byName) > 0 {
		rows := make([]models.ADGroup, 0, len(byName))
		for lower, display := range byName {
			rows = append(rows, models.ADGroup{Name: lower, DisplayName: display})
		}

		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to create ad groups: %w", err)
		}

		var existing []models.ADGroup
		if err := tx.Where("name IN ?", slices.Collect(maps.Keys(byName))).Find(&existing).Error; err != nil {
			return fmt.Errorf("failed to load ad groups: %w", err)
		}

		for _, g := range existing {
			wanted[g.ID] = struct{}{}
		}
	}

	var current []uint
	if err := tx.Model(&models.UserADGroup{}).
		Where("user_id = ?", user.ID).
		Pluck("ad_group_id", &current).Error; err != nil {
		return fmt.Errorf("failed to load user ad groups: %w", err)
	}

	have := make(map[uint]struct{}, len(current))
	for _, id := range current {
		have[id] = struct{}{}
	}

	var remove []uint

	for id := range have {
		if _, ok := wanted[id]; !ok {
			remove = append(remove, id)
		}
	}

	if len(remove) > 0 {
		if err := tx.Where("user_id = ? AND ad_group_id IN ?", user.ID, remove).
			Delete(&models.UserADGroup{}).Error; err != nil {
			return fmt.Errorf("failed to remove ad group memberships: %w", err)
		}
	}

	for id := range wanted {
		if _, ok := have[id]; ok {
			continue
		}

		if err := tx.Omit(clause.Associations).Create(&models.UserADGroup{UserID: user.ID, ADGroupID: id}).Error; err != nil {
			return fmt.Errorf("failed to add ad group membership: %w", err)
		}
	}

	return SyncGroupsFromAD(tx, user)
}

// SyncGroupsFromAD adds and removes local group memberships of user so that
// every group reachable through an ADGroupMapping matches the user's AD groups.
// Memberships of groups no mapping points at are never touched.
func SyncGroupsFromAD(tx *gorm.DB, user *models.User) error {
	var mappings []models.ADGroupMapping
	if err := tx.Find(&mappings).Error; err != nil {
		return fmt.Errorf("failed to load ad group mappings: %w", err)
	}

	if len(mappings) == 0 {
		return nil
	}

	byADGroup := make(map[uint][]uint)
	mapped := make(map[uint]struct{})

	for _, m := range mappings {
		byADGroup[m.ADGroupID] = append(byADGroup[m.ADGroupID], m.GroupID)
		mapped[m.GroupID] = struct{}{}
	}

	var adGroups []uint
	if err := tx.Model(&models.UserADGroup{}).
		Where("user_id = ?", user.ID).
		Pluck("ad_group_id", &adGroups).Error; err != nil {
		return fmt.Errorf("failed to load user ad groups: %w", err)
	}

	newGroups := make(map[uint]struct{})

	for _, id := range adGroups {
		for _, g := range byADGroup[id] {
			newGroups[g] = struct{}{}
		}
	}

	var memberships []uint
	if err := tx.Model(&models.UserGroup{}).
		Where("user_id = ? AND group_id IN ?", user.ID, slices.Collect(maps.Keys(mapped))).
		Pluck("group_id", &memberships).Error; err != nil {
		return fmt.Errorf("failed to load user groups: %w", err)
	}

	oldGroups := make(map[uint]struct{}, len(memberships))
	for _, id := range memberships {
		oldGroups[id] = struct{}{}
	}

	var remove []uint

	for id := range oldGroups {
		if _, ok := newGroups[id]; !ok {
			remove = append(remove, id)
		}
	}

	if len(remove) > 0 {
		if err := tx.Where("user_id = ? AND group_id IN ?", user.ID, remove).
			Delete(&models.UserGroup{}).Error; err != nil {
			return fmt.Errorf("failed to remove group memberships: %w", err)
		}
	}

	for id := range newGroups {
		if _, ok := oldGroups[id]; ok {
			continue
		}

		if err := tx.Omit(clause.Associations).Create(&models.UserGroup{UserID: user.ID, GroupID: id}).Error; err != nil {
			return fmt.Errorf("failed to add group membership: %w", err)
		}
	}

	return nil
}

// SyncGroupsFromADLocked locks the row of user until tx ends, then runs SyncGroupsFromAD.
func SyncGroupsFromADLocked(tx *gorm.DB, user *models.User) error {
	if err := lockUser(tx, user); err != nil {
		return err
	}

	return SyncGroupsFromAD(tx, user)
}

// lockUser takes a row lock on user until tx ends.
func lockUser(tx *gorm.DB, user *models.User) error {
	var locked models.User
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", user.ID).
		Take(&locked).Error; err != nil {
		return fmt.Errorf("failed to lock user %d: %w", user.ID, err)
	}

	return nil
}
