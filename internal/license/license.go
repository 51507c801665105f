package license

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// License statuses. Only these two values exist; there is no
// intermediate or terminal state.
const (
	StatusActive = "active"
	StatusPaused = "paused"
)

// DefaultValidityDays is applied when a create request omits the
// validity period.
const DefaultValidityDays = 30

// GeneratedKeyLength is the length of server-generated license keys.
const GeneratedKeyLength = 8

// License is the single persisted entity: an opaque key, an optional
// hardware binding, a fixed expiry instant, and an admin-toggled status.
type License struct {
	Key        string    `json:"key" firestore:"-"`
	HWID       *string   `json:"hwid" firestore:"hwid"`
	ExpireTime time.Time `json:"expire_time" firestore:"expire_time"`
	Status     string    `json:"status" firestore:"status"`
}

// Bound reports whether the license is bound to a hardware ID.
func (l *License) Bound() bool {
	return l.HWID != nil && *l.HWID != ""
}

// Expired reports whether the license expiry lies strictly before now.
// Both sides are compared as UTC instants.
func (l *License) Expired(now time.Time) bool {
	return now.UTC().After(l.ExpireTime.UTC())
}

// New builds an unbound, active license expiring daysValid days from now.
func New(key string, daysValid int, now time.Time) *License {
	return &License{
		Key:        key,
		HWID:       nil,
		ExpireTime: now.UTC().Add(time.Duration(daysValid) * 24 * time.Hour),
		Status:     StatusActive,
	}
}

// GenerateKey returns a server-generated license key: the first eight
// characters of a random UUID, uppercased. Collisions are not checked;
// callers that need guaranteed uniqueness supply their own key.
func GenerateKey() string {
	return strings.ToUpper(uuid.New().String()[:GeneratedKeyLength])
}

// Outcome is the result of evaluating a license against a presented HWID.
type Outcome struct {
	Accepted bool
	// Reason carries the rejection code when Accepted is false.
	Reason string
	// Bind is set when the license was unbound and the presented HWID
	// should be persisted as its permanent binding.
	Bind bool
}

// Evaluate applies the validation state machine. Conditions are checked
// in fixed precedence: status, expiry, binding. A paused or expired
// license must never bind a new machine, so those gates come first; an
// unbound license has no HWID to mismatch against, so binding precedes
// the mismatch check.
func Evaluate(l *License, presentedHWID string, now time.Time) Outcome {
	if l.Status != StatusActive {
		return Outcome{Reason: CodeLicenseInactive}
	}
	if l.Expired(now) {
		return Outcome{Reason: CodeLicenseExpired}
	}
	if !l.Bound() {
		return Outcome{Accepted: true, Bind: true}
	}
	if *l.HWID != presentedHWID {
		return Outcome{Reason: CodeHWIDMismatch}
	}
	return Outcome{Accepted: true}
}

// ToggledStatus returns the opposite status: active becomes paused and
// paused becomes active.
func ToggledStatus(status string) string {
	if status == StatusActive {
		return StatusPaused
	}
	return StatusActive
}
