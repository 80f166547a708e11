package bizerror

import (
	"errors"
	"net/http"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("record not found")
	ErrInvalidPassword = errors.New("invalid password")

	// grant store invariant violations
	ErrPermissionAlreadyAssigned = errors.New("permission is already assigned")

	// workspace membership invariant violations
	ErrMembershipSelfGrant = errors.New("can not grant membership for yourself")
	ErrLastOwnerDelete     = errors.New("the last owner of a workspace can not be removed")

	// impersonation invariant violations
	ErrSelfImpersonation         = errors.New("self impersonation is not allowed")
	ErrActiveImpersonationExists = errors.New("an active impersonation session already exists")
)

type BizError interface {
	Respond() *BizErrorDetail
}

type BizErrorDetail struct {
	Status  int
	Code    string
	Message string

	Data  interface{}
	Cause error
}

type ErrBadParam struct {
	Cause error
}

func (e *ErrBadParam) Unwrap() error {
	return e.Cause
}
func (e *ErrBadParam) Error() string {
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return "common.bad_param"
}
func (e *ErrBadParam) Respond() *BizErrorDetail {
	message := "common.bad_param"
	if e.Cause != nil {
		message = e.Cause.Error()
	}
	return &BizErrorDetail{Status: http.StatusBadRequest, Code: "common.bad_param", Message: message}
}
