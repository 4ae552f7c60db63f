// Package adgroup manages AD groups and their mappings onto local groups.
package adgroup

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/db/models"
	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/identity"
)

var (
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
	// ErrNameEmpty is returned when a group or AD group name is empty.
	ErrNameEmpty = errors.New("name cannot be empty")
	// ErrMappingNotFound is returned when deleting a mapping that does not exist.
	ErrMappingNotFound = errors.New("ad group mapping not found")
)

// Mapping is a mapping row with both names resolved.
type Mapping struct {
	ID          uint   `gorm:"column:id"`
	GroupName   string `gorm:"column:group_name"`
	ADGroupName string `gorm:"column:ad_group_name"`
	DisplayName string `gorm:"column:display_name"`
}

// GetOrCreate returns the AD group called name, creating it when missing. The name is lowercased.
func GetOrCreate(db *gorm.DB, name string) (*models.ADGroup, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	if name == "" {
		return nil, ErrNameEmpty
	}

	row := models.ADGroup{Name: strings.ToLower(name), DisplayName: name}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to create ad group: %w", err)
	}

	var adGroup models.ADGroup
	if err := db.Where("name = ?", row.Name).Take(&adGroup).Error; err != nil {
		return nil, fmt.Errorf("failed to load ad group: %w", err)
	}

	return &adGroup, nil
}

// CreateMapping maps the AD group adGroupName onto the local group groupName.
// The local group is created when missing. Creating an existing mapping is a no-op.
func CreateMapping(db *gorm.DB, groupName, adGroupName string) (*models.ADGroupMapping, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	if groupName == "" || adGroupName == "" {
		return nil, ErrNameEmpty
	}

	var mapping models.ADGroupMapping

	err := db.Transaction(func(tx *gorm.DB) error {
		var group models.Group
		if err := tx.Where(models.Group{Name: groupName}).
			Attrs(models.Group{Description: "mapped from " + adGroupName}).
			FirstOrCreate(&group).Error; err != nil {
			return fmt.Errorf("failed to get or create group %s: %w", groupName, err)
		}

		adGroup, err := GetOrCreate(tx, adGroupName)
		if err != nil {
			return err
		}

		mapping = models.ADGroupMapping{GroupID: group.ID, ADGroupID: adGroup.ID}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Omit(clause.Associations).
			Create(&mapping).Error; err != nil {
			return fmt.Errorf("failed to create mapping: %w", err)
		}

		return tx.Where("group_id = ? AND ad_group_id = ?", group.ID, adGroup.ID).Take(&mapping).Error
	})
	if err != nil {
		return nil, err
	}

	return &mapping, nil
}

// DeleteMapping removes the mapping between groupName and adGroupName.
// Members of the AD group lose the group unless another of their AD groups still maps onto it.
func DeleteMapping(db *gorm.DB, groupName, adGroupName string) error {
	if db == nil {
		return ErrDBNil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		var group models.Group
		if err := tx.Where(models.Group{Name: groupName}).Take(&group).Error; err != nil {
			return notFound(err)
		}

		var adGroup models.ADGroup
		if err := tx.Where(models.ADGroup{Name: strings.ToLower(adGroupName)}).Take(&adGroup).Error; err != nil {
			return notFound(err)
		}

		result := tx.Where("group_id = ? AND ad_group_id = ?", group.ID, adGroup.ID).
			Delete(&models.ADGroupMapping{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete mapping: %w", result.Error)
		}

		if result.RowsAffected == 0 {
			return ErrMappingNotFound
		}

		members := tx.Model(&models.UserADGroup{}).
			Select("user_id").
			Where("ad_group_id = ?", adGroup.ID)

		stillGranted := tx.Model(&models.UserADGroup{}).
			Select("user_ad_groups.user_id").
			Joins("JOIN ad_group_mappings ON ad_group_mappings.ad_group_id = user_ad_groups.ad_group_id").
			Where("ad_group_mappings.group_id = ?", group.ID)

		if err := tx.Where("group_id = ? AND user_id IN (?) AND user_id NOT IN (?)", group.ID, members, stillGranted).
			Delete(&models.UserGroup{}).Error; err != nil {
			return fmt.Errorf("failed to remove mapped memberships: %w", err)
		}

		return nil
	})
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrMappingNotFound
	}

	return fmt.Errorf("failed to load mapping: %w", err)
}

// ListMappings returns every mapping ordered by group and AD group name.
func ListMappings(db *gorm.DB) ([]Mapping, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var mappings []Mapping

	err := db.Table("ad_group_mappings").
		Select("ad_group_mappings.id AS id, groups.name AS group_name, ad_groups.name AS ad_group_name, ad_groups.display_name AS display_name").
		Joins("JOIN groups ON groups.id = ad_group_mappings.group_id").
		Joins("JOIN ad_groups ON ad_groups.id = ad_group_mappings.ad_group_id").
		Order("groups.name, ad_groups.name").
		Scan(&mappings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list mappings: %w", err)
	}

	return mappings, nil
}

// ResyncMembers re-applies the mappings to every member of the AD group adGroupName
// and returns the number of users synced.
func ResyncMembers(db *gorm.DB, adGroupName string) (int, error) {
	if db == nil {
		return 0, ErrDBNil
	}

	var users []models.User

	err := db.Joins("JOIN user_ad_groups ON user_ad_groups.user_id = users.id").
		Joins("JOIN ad_groups ON ad_groups.id = user_ad_groups.ad_group_id").
		Where("ad_groups.name = ?", strings.ToLower(adGroupName)).
		Find(&users).Error
	if err != nil {
		return 0, fmt.Errorf("failed to load members: %w", err)
	}

	for i := range users {
		err := db.Transaction(func(tx *gorm.DB) error {
			return identity.SyncGroupsFromADLocked(tx, &users[i])
		})
		if err != nil {
			return i, fmt.Errorf("failed to sync user %d: %w", users[i].ID, err)
		}
	}

	return len(users), nil
}
