package domain

import (
	"time"

	"beacon/authority"

	"github.com/fundwit/go-commons/types"
)

// WorkspaceGrant holds the entire fine-grained permission set one user owns
// within one workspace. At most one active record exists per
// (user, workspace) pair; the unique index keeps the pair single-rowed for
// the whole row lifetime, deactivated records are reactivated on re-grant.
type WorkspaceGrant struct {
	ID types.ID `json:"id" gorm:"primary_key"`

	UserID      types.ID `json:"userId" gorm:"unique_index:uni_grant_user_workspace" sql:"type:BIGINT UNSIGNED NOT NULL"`
	WorkspaceID types.ID `json:"workspaceId" gorm:"unique_index:uni_grant_user_workspace" sql:"type:BIGINT UNSIGNED NOT NULL"`

	PermissionIDs authority.IDSet `json:"permissionIds" gorm:"type:TEXT"`
	IsActive      bool            `json:"isActive"`

	CreateTime time.Time `json:"createTime" sql:"type:DATETIME(3) NOT NULL"`
	UpdateTime time.Time `json:"updateTime" sql:"type:DATETIME(3) NOT NULL"`
	CreatedBy  types.ID  `json:"createdBy"`
	UpdatedBy  types.ID  `json:"updatedBy"`
}

// ResourceActionPair addresses one catalog entry by its two enum tags.
type ResourceActionPair struct {
	Resource authority.Resource `json:"resource" binding:"required"`
	Action   authority.Action   `json:"action" binding:"required"`
}

type PermissionAssignment struct {
	UserID      types.ID             `json:"userId" binding:"required"`
	Permissions []ResourceActionPair `json:"permissions" binding:"required,dive"`
}

type GrantCreation struct {
	UserID      types.ID           `json:"userId" binding:"required"`
	WorkspaceID types.ID           `json:"workspaceId" binding:"required"`
	Resource    authority.Resource `json:"resource" binding:"required"`
	Action      authority.Action   `json:"action" binding:"required"`
}

type GrantBatchCreation struct {
	UserID      types.ID             `json:"userId" binding:"required"`
	WorkspaceID types.ID             `json:"workspaceId" binding:"required"`
	Permissions []ResourceActionPair `json:"permissions" binding:"required,dive"`
}

type BulkGrantCreation struct {
	WorkspaceID types.ID               `json:"workspaceId" binding:"required"`
	Assignments []PermissionAssignment `json:"assignments" binding:"required,dive"`
}

type GrantDeletion struct {
	UserID      types.ID           `form:"userId" binding:"required"`
	WorkspaceID types.ID           `form:"workspaceId" binding:"required"`
	Resource    authority.Resource `form:"resource" binding:"required"`
	Action      authority.Action   `form:"action" binding:"required"`
}

type GrantQuery struct {
	UserID      *types.ID `form:"userId"`
	WorkspaceID *types.ID `form:"workspaceId"`
}

type EvaluationQuery struct {
	UserID      types.ID            `form:"userId" binding:"required"`
	WorkspaceID *types.ID           `form:"workspaceId"`
	Resource    *authority.Resource `form:"resource"`
	Action      *authority.Action   `form:"action"`
}

type GrantDetail struct {
	UserID      types.ID               `json:"userId"`
	WorkspaceID types.ID               `json:"workspaceId"`
	Permissions []authority.Permission `json:"permissions"`
}
