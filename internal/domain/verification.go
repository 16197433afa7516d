package domain

import "errors"

// VerificationKind classifies a confirmation-code failure.
type VerificationKind int

const (
	KindEmptyIdentity VerificationKind = iota + 1
	KindGenerationFailed
	KindDeliveryFailed
	KindCodeNotFound
	KindCodeExpired
	KindInvalidCode
	KindCleanupFailed
	// KindCheckFailed is a backend failure while redeeming a code.
	KindCheckFailed
)

var kindMessages = map[VerificationKind]string{
	KindEmptyIdentity:    "username cannot be empty",
	KindGenerationFailed: "failed to generate the code",
	KindDeliveryFailed:   "failed to send confirmation code",
	KindCodeNotFound:     "verification code not found",
	KindCodeExpired:      "confirmation code has expired",
	KindInvalidCode:      "invalid confirmation code",
	KindCleanupFailed:    "failed to clean up verification code",
	KindCheckFailed:      "failed to check the code",
}

func (k VerificationKind) String() string {
	switch k {
	case KindEmptyIdentity:
		return "EmptyIdentity"
	case KindGenerationFailed:
		return "GenerationFailed"
	case KindDeliveryFailed:
		return "DeliveryFailed"
	case KindCodeNotFound:
		return "CodeNotFound"
	case KindCodeExpired:
		return "CodeExpired"
	case KindInvalidCode:
		return "InvalidCode"
	case KindCleanupFailed:
		return "CleanupFailed"
	case KindCheckFailed:
		return "CheckFailed"
	}
	return "Unknown"
}

// VerificationError is the single error type returned by the verification service.
// Err holds the backend or transport cause, if any.
type VerificationError struct {
	Kind    VerificationKind
	Message string
	Err     error
}

// NewVerificationError builds an error of kind k with its default message.
func NewVerificationError(k VerificationKind, cause error) *VerificationError {
	return &VerificationError{Kind: k, Message: kindMessages[k], Err: cause}
}

func (e *VerificationError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *VerificationError) Unwrap() error { return e.Err }

// Is matches another *VerificationError by kind, so errors.Is(err, &VerificationError{Kind: k}) works.
func (e *VerificationError) Is(target error) bool {
	t, ok := target.(*VerificationError)
	return ok && t.Kind == e.Kind
}

// VerificationKindOf extracts the kind from err, or 0 when err is not a verification error.
func VerificationKindOf(err error) VerificationKind {
	var ve *VerificationError
	if errors.As(err, &ve) {
		return ve.Kind
	}
	return 0
}

// IsVerificationKind reports whether err is a verification error of kind k.
func IsVerificationKind(err error, k VerificationKind) bool {
	return VerificationKindOf(err) == k
}

// IsCodeRejection reports whether k is a redemption failure the client can fix by requesting a new code.
func (k VerificationKind) IsCodeRejection() bool {
	return k == KindCodeNotFound || k == KindCodeExpired || k == KindInvalidCode
}
