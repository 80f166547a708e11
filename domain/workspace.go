package domain

import (
	"time"

	"github.com/fundwit/go-commons/types"
)

type Workspace struct {
	ID types.ID `json:"id" gorm:"primary_key"`

	Identifier string `json:"identifier" gorm:"unique_index:identifier_unique"`
	Name       string `json:"name" gorm:"unique_index:name_idx"`

	CreateTime time.Time `json:"createTime" sql:"type:DATETIME(3) NOT NULL"`
	Creator    types.ID  `json:"creator"`
}

type WorkspaceCreating struct {
	Name       string `json:"name" binding:"required,lte=60"`
	Identifier string `json:"identifier" binding:"required,lte=6,uppercase"`
}

type WorkspaceUpdating struct {
	Name string `json:"name" binding:"required,lte=60"`
}

// coarse access levels of a workspace membership
const (
	AccessLevelOwner    = "owner"
	AccessLevelAdmin    = "admin"
	AccessLevelEditor   = "editor"
	AccessLevelViewer   = "viewer"
	AccessLevelApprover = "approver"
)

// Membership records that a user belongs to a workspace with a coarse
// access level. It is independent from the fine-grained permission grant:
// neither is derived from the other.
type Membership struct {
	WorkspaceID types.ID `json:"workspaceId" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	MemberID    types.ID `json:"memberId" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`

	AccessLevel string    `json:"accessLevel"`
	CreateTime  time.Time `json:"createTime" sql:"type:DATETIME(3) NOT NULL"`
}

type MembershipDetail struct {
	Membership

	WorkspaceName string `json:"workspaceName"`
	MemberName    string `json:"memberName"`
}

type MembershipCreation struct {
	WorkspaceID types.ID `json:"workspaceId"`
	MemberID    types.ID `json:"memberId"`
	AccessLevel string   `json:"accessLevel"`
}

type MembershipQuery struct {
	WorkspaceID *types.ID `form:"workspaceId"`
	MemberID    *types.ID `form:"memberId"`
}

type MembershipDeletion struct {
	WorkspaceID types.ID `form:"workspaceId" binding:"required"`
	MemberID    types.ID `form:"memberId" binding:"required"`
}
