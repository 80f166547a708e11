package domain

import (
	"time"

	"beacon/authority"

	"github.com/fundwit/go-commons/types"
)

const (
	ImpersonationStatusActive  = "ACTIVE"
	ImpersonationStatusEnded   = "ENDED"
	ImpersonationStatusExpired = "EXPIRED"
)

// ImpersonationSession is one identity-substitution episode. The workspace
// scoping and the permission snapshot are audit metadata only, evaluation
// never consults them.
type ImpersonationSession struct {
	ID types.ID `json:"id" gorm:"primary_key"`

	ImpersonatorID     types.ID `json:"impersonatorId" gorm:"index:idx_impersonator" sql:"type:BIGINT UNSIGNED NOT NULL"`
	ImpersonatedUserID types.ID `json:"impersonatedUserId" sql:"type:BIGINT UNSIGNED NOT NULL"`

	Status string `json:"status"`

	StartTime  time.Time  `json:"startTime" sql:"type:DATETIME(3) NOT NULL"`
	EndTime    *time.Time `json:"endTime,omitempty" sql:"type:DATETIME(3)"`
	ExpireTime *time.Time `json:"expireTime,omitempty" sql:"type:DATETIME(3)"`
	EndedBy    types.ID   `json:"endedBy"`

	Reason      string                `json:"reason"`
	WorkspaceID *types.ID             `json:"workspaceId,omitempty"`
	PermsAtTime authority.Permissions `json:"permsAtTime" gorm:"type:TEXT"`

	IsActive   bool      `json:"isActive"`
	CreateTime time.Time `json:"createTime" sql:"type:DATETIME(3) NOT NULL"`
}

type ImpersonationStarting struct {
	ImpersonatedUserID types.ID   `json:"impersonatedUserId" binding:"required"`
	Reason             string     `json:"reason" binding:"omitempty,lte=255"`
	ExpireTime         *time.Time `json:"expireTime"`
	WorkspaceID        *types.ID  `json:"workspaceId"`
}
