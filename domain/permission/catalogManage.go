package permission

import (
	"errors"
	"time"

	"beacon/authority"
	"beacon/bizerror"
	"beacon/idgen"
	"beacon/persistence"

	"github.com/jinzhu/gorm"
	"github.com/sony/sonyflake"
)

var (
	permissionIdWorker = sonyflake.NewSonyflake(sonyflake.Settings{})
)

// SeedAllPermissions inserts every missing catalog entry of the full
// resource-action cross-product. Safe to call repeatedly.
func SeedAllPermissions() error {
	return seedPermissions(authority.GenerateAllPermissions())
}

// SeedResourcePermissions seeds the catalog entries of one resource only.
func SeedResourcePermissions(resource authority.Resource) error {
	return seedPermissions(authority.GenerateResourcePermissions(resource))
}

func seedPermissions(defs []authority.PermissionDefinition) error {
	db := persistence.ActiveDataSourceManager.GormDB(nil)
	for _, def := range defs {
		existing := authority.Permission{}
		err := db.Where(&authority.Permission{Name: def.Name}).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		record := authority.Permission{
			ID:          idgen.NextID(permissionIdWorker),
			Name:        def.Name,
			Resource:    def.Resource,
			Action:      def.Action,
			Description: def.Description,
			IsActive:    true,
			CreateTime:  time.Now(),
		}
		if err := db.Create(&record).Error; err != nil {
			return err
		}
	}
	return nil
}

func QueryAllPermissions() ([]authority.Permission, error) {
	var records []authority.Permission
	db := persistence.ActiveDataSourceManager.GormDB(nil)
	if err := db.Where("is_active = ?", true).Order("name ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func QueryResourcePermissions(resource authority.Resource) ([]authority.Permission, error) {
	var records []authority.Permission
	db := persistence.ActiveDataSourceManager.GormDB(nil)
	if err := db.Where("is_active = ? AND resource = ?", true, resource).Order("name ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func QueryActionPermissions(action authority.Action) ([]authority.Permission, error) {
	var records []authority.Permission
	db := persistence.ActiveDataSourceManager.GormDB(nil)
	if err := db.Where("is_active = ? AND action = ?", true, action).Order("name ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func PermissionExists(name string) (bool, error) {
	db := persistence.ActiveDataSourceManager.GormDB(nil)
	var count int
	if err := db.Model(&authority.Permission{}).
		Where("is_active = ? AND name = ?", true, name).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// resolvePermission maps a resource-action pair to its active catalog entry.
func resolvePermission(tx *gorm.DB, resource authority.Resource, action authority.Action) (*authority.Permission, error) {
	record := authority.Permission{}
	err := tx.Where(&authority.Permission{Name: authority.PermissionName(resource, action)}).
		Where("is_active = ?", true).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, bizerror.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}
