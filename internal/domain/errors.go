package domain

import (
	"errors"
	"fmt"
)

// Error types for consistent error handling across the back-office.

// Kind is the stable, caller-facing name of an error class.
type Kind string

const (
	KindPermissionDenied   Kind = "PermissionDenied"
	KindInvalidSelfLink    Kind = "InvalidSelfLink"
	KindMissingKinship     Kind = "MissingKinship"
	KindInvalidClientData  Kind = "InvalidClientData"
	KindSubjectNotFound    Kind = "SubjectNotFound"
	KindMemberNotFound     Kind = "MemberNotFound"
	KindEdgeNotFound       Kind = "EdgeNotFound"
	KindClientNotFound     Kind = "ClientNotFound"
	KindDuplicateLink      Kind = "DuplicateLink"
	KindStorageUnavailable Kind = "StorageUnavailable"
	KindOverloaded         Kind = "Overloaded"

	KindRepresentativeNotFound Kind = "RepresentativeNotFound"
	KindDuplicateLogin         Kind = "DuplicateLogin"
	KindInvalidRepresentative  Kind = "InvalidRepresentative"

	KindUnauthorized   Kind = "Unauthorized"
	KindInvalidRequest Kind = "InvalidRequest"
	KindInternal       Kind = "Internal"
)

// Resources referenced by ErrNotFound.
const (
	ResourceSubject        = "subject"
	ResourceMember         = "member"
	ResourceEdge           = "edge"
	ResourceClient         = "client"
	ResourceRepresentative = "representative"
)

// ErrNotFound indicates a referenced entity does not exist.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ActionManageRepresentatives is the action named when a non-admin touches
// the representative console.
const ActionManageRepresentatives = "manage_representatives"

// ErrPermissionDenied indicates the acting user may not mutate the family unit.
type ErrPermissionDenied struct {
	ActorID   string
	SubjectID string
	Action    string
}

func (e *ErrPermissionDenied) Error() string {
	return fmt.Sprintf("permission denied: %s on %s", e.Action, e.SubjectID)
}

// Validation codes carried by ErrValidation.
const (
	CodeInvalidSelfLink   = "invalid_self_link"
	CodeMissingKinship    = "missing_kinship"
	CodeInvalidClientData = "invalid_client_data"
	CodeInvalidRequest    = "invalid_request"

	CodeInvalidRepresentative = "invalid_representative"
)

// ErrValidation indicates the caller supplied malformed input.
type ErrValidation struct {
	Code    string
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrDuplicateLink indicates the subject already has an edge to the member.
type ErrDuplicateLink struct {
	SubjectID string
	MemberID  string
}

func (e *ErrDuplicateLink) Error() string {
	return fmt.Sprintf("client %s is already linked to %s", e.MemberID, e.SubjectID)
}

// ErrDuplicateLogin indicates another representative already uses the login.
type ErrDuplicateLogin struct {
	Login string
}

func (e *ErrDuplicateLogin) Error() string {
	return fmt.Sprintf("login already in use: %s", e.Login)
}

// ErrStorageUnavailable indicates the persistent store could not be reached.
// It is the only error kind a caller may retry.
type ErrStorageUnavailable struct {
	Store string
	Err   error
}

func (e *ErrStorageUnavailable) Error() string {
	return fmt.Sprintf("storage unavailable [%s]: %v", e.Store, e.Err)
}

func (e *ErrStorageUnavailable) Unwrap() error {
	return e.Err
}

// ErrUnauthorized indicates an invalid or missing access token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// KindOf classifies err into its caller-facing Kind.
func KindOf(err error) Kind {
	var (
		notFound    *ErrNotFound
		denied      *ErrPermissionDenied
		validation  *ErrValidation
		duplicate   *ErrDuplicateLink
		login       *ErrDuplicateLogin
		unavailable *ErrStorageUnavailable
		unauth      *ErrUnauthorized
	)

	switch {
	case err == nil:
		return ""
	case errors.As(err, &denied):
		return KindPermissionDenied
	case errors.As(err, &validation):
		switch validation.Code {
		case CodeInvalidSelfLink:
			return KindInvalidSelfLink
		case CodeMissingKinship:
			return KindMissingKinship
		case CodeInvalidClientData:
			return KindInvalidClientData
		case CodeInvalidRepresentative:
			return KindInvalidRepresentative
		default:
			return KindInvalidRequest
		}
	case errors.As(err, &notFound):
		switch notFound.Resource {
		case ResourceSubject:
			return KindSubjectNotFound
		case ResourceMember:
			return KindMemberNotFound
		case ResourceEdge:
			return KindEdgeNotFound
		case ResourceRepresentative:
			return KindRepresentativeNotFound
		default:
			return KindClientNotFound
		}
	case errors.As(err, &duplicate):
		return KindDuplicateLink
	case errors.As(err, &login):
		return KindDuplicateLogin
	case errors.As(err, &unavailable):
		return KindStorageUnavailable
	case errors.As(err, &unauth):
		return KindUnauthorized
	default:
		return KindInternal
	}
}

// IsRetryable reports whether the caller may retry the failed operation.
func IsRetryable(err error) bool {
	return KindOf(err) == KindStorageUnavailable
}
