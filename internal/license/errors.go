package license

import "errors"

// Machine-readable reason codes returned on the wire and recorded in
// metrics. Domain rejections are business outcomes, not faults.
const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeKeyNotFound      = "KEY_NOT_FOUND"
	CodeLicenseInactive  = "LICENSE_INACTIVE"
	CodeLicenseExpired   = "LICENSE_EXPIRED"
	CodeHWIDMismatch     = "HWID_MISMATCH"
	CodeStoreUnavailable = "STORE_UNAVAILABLE"
)

// Sentinel errors for license operations. Handlers translate these to
// HTTP responses; anything not in this set is treated as a store fault.
var (
	ErrInvalidRequest  = errors.New("key and hwid are required")
	ErrKeyNotFound     = errors.New("license key not found")
	ErrLicenseInactive = errors.New("license is paused")
	ErrLicenseExpired  = errors.New("license expired")
	ErrHWIDMismatch    = errors.New("hwid mismatch")
)

// CodeFor maps a domain error to its reason code. Unknown errors map to
// STORE_UNAVAILABLE since the only non-domain failures the service can
// surface are store faults.
func CodeFor(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return CodeInvalidRequest
	case errors.Is(err, ErrKeyNotFound):
		return CodeKeyNotFound
	case errors.Is(err, ErrLicenseInactive):
		return CodeLicenseInactive
	case errors.Is(err, ErrLicenseExpired):
		return CodeLicenseExpired
	case errors.Is(err, ErrHWIDMismatch):
		return CodeHWIDMismatch
	default:
		return CodeStoreUnavailable
	}
}

// ErrFor is the inverse of the state machine outcome: it maps a
// rejection reason code back to its sentinel error.
func ErrFor(code string) error {
	switch code {
	case CodeLicenseInactive:
		return ErrLicenseInactive
	case CodeLicenseExpired:
		return ErrLicenseExpired
	case CodeHWIDMismatch:
		return ErrHWIDMismatch
	case CodeKeyNotFound:
		return ErrKeyNotFound
	default:
		return nil
	}
}
