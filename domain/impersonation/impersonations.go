package impersonation

import (
	"errors"
	"time"

	"beacon/account"
	"beacon/authority"
	"beacon/bizerror"
	"beacon/domain"
	"beacon/domain/permission"
	"beacon/idgen"
	"beacon/persistence"
	"beacon/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sony/sonyflake"
)

var (
	sessionIdWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	HistoryDefaultLimit = 50
)

// ExpirySelection narrows the set of ACTIVE sessions a sweep will expire.
type ExpirySelection func(query *gorm.DB, now time.Time) *gorm.DB

// SelectOverdueSessions expires only sessions whose expiry deadline has
// passed. This is the wired default.
func SelectOverdueSessions(query *gorm.DB, now time.Time) *gorm.DB {
	return query.Where("expire_time IS NOT NULL AND expire_time <= ?", now)
}

// SelectAllActiveSessions expires every ACTIVE session unconditionally,
// deadline or not. Kept as an explicit alternative for deployments that
// sweep on a trusted schedule.
func SelectAllActiveSessions(query *gorm.DB, now time.Time) *gorm.DB {
	return query
}

// SweepSelection is the strategy CheckAndUpdateExpiredSessions applies.
var SweepSelection ExpirySelection = SelectOverdueSessions

type ImpersonationContext struct {
	Session      domain.ImpersonationSession `json:"session"`
	Impersonator account.UserInfo            `json:"impersonator"`
	Impersonated account.UserInfo            `json:"impersonated"`
}

// CanImpersonate reports whether the user holds the impersonation
// capability in any workspace.
func CanImpersonate(impersonatorId types.ID) (bool, error) {
	return permission.UserHasPermissionInAnyWorkspace(impersonatorId,
		authority.ResourceUser, authority.ActionImpersonate)
}

// StartImpersonation opens a new ACTIVE session for the acting user and
// substitutes the identity of the cached login session. At most one ACTIVE
// session may exist per impersonator; the check runs under a row lock on
// the impersonator's sessions so concurrent starts serialize.
func StartImpersonation(starting *domain.ImpersonationStarting, sec *session.Session) (*domain.ImpersonationSession, error) {
	impersonatorId := sec.AuditUserID()

	can, err := CanImpersonate(impersonatorId)
	if err != nil {
		return nil, err
	}
	if !can {
		return nil, bizerror.ErrForbidden
	}
	if starting.ImpersonatedUserID == impersonatorId {
		return nil, bizerror.ErrSelfImpersonation
	}

	var created domain.ImpersonationSession
	var impersonated account.User
	err = persistence.ActiveDataSourceManager.GormDB(sec.Context).Transaction(func(tx *gorm.DB) error {
		impersonated = account.User{ID: starting.ImpersonatedUserID}
		if err := tx.Model(&account.User{}).Where(&impersonated).
			Where("is_active = ?", true).First(&impersonated).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return bizerror.ErrNotFound
			}
			return err
		}

		var activeCount int
		if err := tx.Model(&domain.ImpersonationSession{}).
			Set("gorm:query_option", "FOR UPDATE").
			Where("impersonator_id = ? AND status = ?", impersonatorId, domain.ImpersonationStatusActive).
			Count(&activeCount).Error; err != nil {
			return err
		}
		if activeCount > 0 {
			return bizerror.ErrActiveImpersonationExists
		}

		permsAtTime, err := permission.LoadUserPermNames(starting.ImpersonatedUserID)
		if err != nil {
			return err
		}

		now := time.Now()
		created = domain.ImpersonationSession{
			ID:                 idgen.NextID(sessionIdWorker),
			ImpersonatorID:     impersonatorId,
			ImpersonatedUserID: starting.ImpersonatedUserID,
			Status:             domain.ImpersonationStatusActive,
			StartTime:          now,
			ExpireTime:         starting.ExpireTime,
			Reason:             starting.Reason,
			WorkspaceID:        starting.WorkspaceID,
			PermsAtTime:        permsAtTime,
			IsActive:           true,
			CreateTime:         now,
		}
		return tx.Create(&created).Error
	})
	if err != nil {
		return nil, err
	}

	if cached := session.FindCachedSessionOfUser(impersonatorId); cached != nil {
		identity := session.Identity{ID: impersonated.ID, Name: impersonated.Name, Nickname: impersonated.Nickname}
		if err := session.SubstituteIdentity(cached, identity); err != nil {
			return nil, err
		}
	}
	return &created, nil
}

// EndImpersonation closes an ACTIVE session. Allowed for the session's own
// impersonator and for holders of the global impersonation capability.
func EndImpersonation(sessionId types.ID, sec *session.Session) error {
	endedBy := sec.AuditUserID()

	var record domain.ImpersonationSession
	err := persistence.ActiveDataSourceManager.GormDB(sec.Context).Transaction(func(tx *gorm.DB) error {
		record = domain.ImpersonationSession{}
		if err := tx.Set("gorm:query_option", "FOR UPDATE").
			Where("id = ? AND status = ?", sessionId, domain.ImpersonationStatusActive).
			First(&record).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return bizerror.ErrNotFound
			}
			return err
		}

		if record.ImpersonatorID != endedBy {
			can, err := CanImpersonate(endedBy)
			if err != nil {
				return err
			}
			if !can {
				return bizerror.ErrForbidden
			}
		}

		now := time.Now()
		return tx.Model(&domain.ImpersonationSession{}).Where("id = ?", record.ID).
			Update(map[string]interface{}{
				"status":   domain.ImpersonationStatusEnded,
				"end_time": now,
				"ended_by": endedBy,
			}).Error
	})
	if err != nil {
		return err
	}

	if cached := session.FindCachedSessionOfUser(record.ImpersonatorID); cached != nil {
		session.RestoreIdentity(cached)
	}
	return nil
}

// GetActiveImpersonationSession returns the impersonator's ACTIVE session,
// or nil when there is none.
func GetActiveImpersonationSession(impersonatorId types.ID) (*domain.ImpersonationSession, error) {
	record := domain.ImpersonationSession{}
	db := persistence.ActiveDataSourceManager.GormDB(nil)
	err := db.Where("impersonator_id = ? AND status = ?", impersonatorId, domain.ImpersonationStatusActive).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ValidateImpersonation reports whether the impersonator's ACTIVE session
// is still usable (present and not past its deadline). Wired into the auth
// filter so substituted login sessions revert once the episode dies.
func ValidateImpersonation(impersonatorId types.ID) bool {
	record, err := GetActiveImpersonationSession(impersonatorId)
	if err != nil || record == nil {
		return false
	}
	if record.ExpireTime != nil && !record.ExpireTime.After(time.Now()) {
		return false
	}
	return true
}

// GetImpersonationContext resolves the ACTIVE session of the impersonator
// together with both user records; nil when the session or either user is
// missing.
func GetImpersonationContext(impersonatorId types.ID) (*ImpersonationContext, error) {
	record, err := GetActiveImpersonationSession(impersonatorId)
	if err != nil || record == nil {
		return nil, err
	}

	db := persistence.ActiveDataSourceManager.GormDB(nil)
	impersonator := account.User{ID: record.ImpersonatorID}
	if err := db.Model(&account.User{}).Where(&impersonator).First(&impersonator).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	impersonated := account.User{ID: record.ImpersonatedUserID}
	if err := db.Model(&account.User{}).Where(&impersonated).First(&impersonated).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &ImpersonationContext{
		Session:      *record,
		Impersonator: account.UserInfo{ID: impersonator.ID, Name: impersonator.Name, Nickname: impersonator.Nickname},
		Impersonated: account.UserInfo{ID: impersonated.ID, Name: impersonated.Name, Nickname: impersonated.Nickname},
	}, nil
}

// GetImpersonatableUsers lists every active user except the impersonator.
// Finer filtering is a deployment concern, not enforced here.
func GetImpersonatableUsers(impersonatorId types.ID) ([]account.UserInfo, error) {
	can, err := CanImpersonate(impersonatorId)
	if err != nil {
		return nil, err
	}
	if !can {
		return nil, bizerror.ErrForbidden
	}

	var users []account.UserInfo
	db := persistence.ActiveDataSourceManager.GormDB(nil)
	if err := db.Model(&account.User{}).
		Where("is_active = ? AND id != ?", true, impersonatorId).
		Order("name ASC").Scan(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// CheckAndUpdateExpiredSessions transitions the ACTIVE sessions chosen by
// the sweep strategy to EXPIRED and reverts the impersonators' substituted
// login sessions. Returns how many sessions were expired.
func CheckAndUpdateExpiredSessions() (int, error) {
	now := time.Now()
	db := persistence.ActiveDataSourceManager.GormDB(nil)

	var overdue []domain.ImpersonationSession
	query := db.Where("status = ?", domain.ImpersonationStatusActive)
	if err := SweepSelection(query, now).Find(&overdue).Error; err != nil {
		return 0, err
	}
	if len(overdue) == 0 {
		return 0, nil
	}

	ids := make([]types.ID, 0, len(overdue))
	for _, record := range overdue {
		ids = append(ids, record.ID)
	}
	if err := db.Model(&domain.ImpersonationSession{}).
		Where("id IN (?) AND status = ?", ids, domain.ImpersonationStatusActive).
		Update(map[string]interface{}{
			"status":   domain.ImpersonationStatusExpired,
			"end_time": now,
		}).Error; err != nil {
		return 0, err
	}

	for _, record := range overdue {
		if cached := session.FindCachedSessionOfUser(record.ImpersonatorID); cached != nil {
			session.RestoreIdentity(cached)
		}
	}
	return len(overdue), nil
}

// GetImpersonationHistory lists the impersonator's sessions of any status,
// most recent first.
func GetImpersonationHistory(impersonatorId types.ID, limit int) ([]domain.ImpersonationSession, error) {
	if limit <= 0 {
		limit = HistoryDefaultLimit
	}
	var records []domain.ImpersonationSession
	db := persistence.ActiveDataSourceManager.GormDB(nil)
	if err := db.Where("impersonator_id = ?", impersonatorId).
		Order("start_time DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// GetAllActiveSessions is the admin-facing listing of every ACTIVE session,
// most recently started first.
func GetAllActiveSessions(sec *session.Session) ([]domain.ImpersonationSession, error) {
	if !sec.Perms.HasPermission(authority.SystemAdminPermission) {
		return nil, bizerror.ErrForbidden
	}

	var records []domain.ImpersonationSession
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	if err := db.Where("status = ?", domain.ImpersonationStatusActive).
		Order("start_time DESC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
