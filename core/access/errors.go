package access

import (
	"errors"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/clubbot/core/telegram/netutil"
)

// Kind buckets an external platform failure into the reactions callers
// are expected to take.
type Kind int

const (
	// KindUnknown covers unclassified failures; callers treat it like a
	// transient error and let a later sweep or retry correct it.
	KindUnknown Kind = iota
	// KindNotFound means the channel or user is unknown to the platform.
	// Permanent; retrying cannot help, surface to the admin.
	KindNotFound
	// KindPermissionDenied means the bot lacks channel-management rights.
	// Fatal to the whole capability; surface loudly.
	KindPermissionDenied
	// KindTransient covers timeouts, flood limits and 5xx responses.
	KindTransient
	// kindAlreadySatisfied is internal: the member is already in the
	// desired state. Mapped to success before leaving this package.
	kindAlreadySatisfied
)

// String implements fmt.Stringer for log fields.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindPermissionDenied:
		return "permission_denied"
	case KindTransient:
		return "transient"
	case kindAlreadySatisfied:
		return "already_satisfied"
	default:
		return "unknown"
	}
}

// Error is a classified channel-management failure.
type Error struct {
	Kind   Kind
	Op     string
	UserID int64
	Err    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("access: %s user %d: %s: %v", e.Op, e.UserID, e.Kind, e.Err)
}

// Unwrap exposes the underlying platform error.
func (e *Error) Unwrap() error { return e.Err }

// IsPermanent reports whether retrying the operation cannot succeed.
func (e *Error) IsPermanent() bool {
	return e.Kind == KindNotFound || e.Kind == KindPermissionDenied
}

// KindOf extracts the classification from err, or KindUnknown.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}

// classify maps a raw telebot or network error onto a Kind.
func classify(err error) Kind {
	if err == nil {
		return kindAlreadySatisfied
	}

	var floodErr tele.FloodError
	if errors.As(err, &floodErr) {
		return KindTransient
	}

	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		desc := strings.ToLower(apiErr.Description)
		switch {
		case apiErr.Code == 403:
			return KindPermissionDenied
		case strings.Contains(desc, "not enough rights"),
			strings.Contains(desc, "need administrator rights"),
			strings.Contains(desc, "chat_admin_required"):
			return KindPermissionDenied
		case strings.Contains(desc, "chat not found"),
			strings.Contains(desc, "user not found"),
			strings.Contains(desc, "participant_id_invalid"),
			strings.Contains(desc, "user_id_invalid"):
			return KindNotFound
		case strings.Contains(desc, "user is already"),
			strings.Contains(desc, "not banned"),
			strings.Contains(desc, "user_not_banned"):
			return kindAlreadySatisfied
		case apiErr.Code >= 500:
			return KindTransient
		}
		return KindUnknown
	}

	if netutil.ShouldRetry(err) {
		return KindTransient
	}
	return KindUnknown
}
