package license

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strptr(s string) *string { return &s }

func TestEvaluate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(24 * time.Hour)
	past := now.Add(-24 * time.Hour)

	tests := []struct {
		name       string
		lic        *License
		hwid       string
		wantAccept bool
		wantBind   bool
		wantReason string
	}{
		{
			name:       "paused license rejects before anything else",
			lic:        &License{Status: StatusPaused, ExpireTime: past, HWID: strptr("HW-OTHER")},
			hwid:       "HW1",
			wantReason: CodeLicenseInactive,
		},
		{
			name:       "expired license rejects regardless of binding",
			lic:        &License{Status: StatusActive, ExpireTime: past, HWID: strptr("HW1")},
			hwid:       "HW1",
			wantReason: CodeLicenseExpired,
		},
		{
			name:       "expired unbound license never binds",
			lic:        &License{Status: StatusActive, ExpireTime: past},
			hwid:       "HW1",
			wantReason: CodeLicenseExpired,
		},
		{
			name:       "unbound license accepts and binds",
			lic:        &License{Status: StatusActive, ExpireTime: future},
			hwid:       "HW1",
			wantAccept: true,
			wantBind:   true,
		},
		{
			name:       "empty-string hwid counts as unbound",
			lic:        &License{Status: StatusActive, ExpireTime: future, HWID: strptr("")},
			hwid:       "HW1",
			wantAccept: true,
			wantBind:   true,
		},
		{
			name:       "bound license accepts matching hwid",
			lic:        &License{Status: StatusActive, ExpireTime: future, HWID: strptr("HW1")},
			hwid:       "HW1",
			wantAccept: true,
		},
		{
			name:       "bound license rejects different hwid",
			lic:        &License{Status: StatusActive, ExpireTime: future, HWID: strptr("HW1")},
			hwid:       "HW2",
			wantReason: CodeHWIDMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Evaluate(tt.lic, tt.hwid, now)
			assert.Equal(t, tt.wantAccept, out.Accepted)
			assert.Equal(t, tt.wantBind, out.Bind)
			assert.Equal(t, tt.wantReason, out.Reason)
		})
	}
}

func TestExpiredComparison(t *testing.T) {
	expiry := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	lic := &License{Status: StatusActive, ExpireTime: expiry}

	// The comparison is strict: at the exact expiry instant the license
	// is still valid.
	assert.False(t, lic.Expired(expiry))
	assert.True(t, lic.Expired(expiry.Add(time.Nanosecond)))
	assert.False(t, lic.Expired(expiry.Add(-time.Nanosecond)))
}

func TestExpiredNormalizesTimezones(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	expiry := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	lic := &License{Status: StatusActive, ExpireTime: expiry.In(loc)}

	// Same instant expressed in a different zone must not change the
	// outcome.
	assert.False(t, lic.Expired(expiry.In(loc)))
	assert.True(t, lic.Expired(expiry.Add(time.Hour).In(loc)))
}

func TestNew(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	lic := New("ABC123", 30, now)

	assert.Equal(t, "ABC123", lic.Key)
	assert.Nil(t, lic.HWID)
	assert.Equal(t, StatusActive, lic.Status)
	assert.Equal(t, now.Add(30*24*time.Hour), lic.ExpireTime)
	assert.False(t, lic.Bound())
}

func TestGenerateKey(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		key := GenerateKey()
		require.Len(t, key, GeneratedKeyLength)
		assert.Equal(t, strings.ToUpper(key), key)
		seen[key] = true
	}
	// 100 draws from a UUID prefix space should not collide.
	assert.Greater(t, len(seen), 90)
}

func TestToggledStatus(t *testing.T) {
	assert.Equal(t, StatusPaused, ToggledStatus(StatusActive))
	assert.Equal(t, StatusActive, ToggledStatus(StatusPaused))
	// Double application returns to the original.
	assert.Equal(t, StatusActive, ToggledStatus(ToggledStatus(StatusActive)))
}

func TestCodeFor(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{ErrInvalidRequest, CodeInvalidRequest},
		{ErrKeyNotFound, CodeKeyNotFound},
		{ErrLicenseInactive, CodeLicenseInactive},
		{ErrLicenseExpired, CodeLicenseExpired},
		{ErrHWIDMismatch, CodeHWIDMismatch},
		{assert.AnError, CodeStoreUnavailable},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, CodeFor(tt.err))
	}
}

func TestErrFor(t *testing.T) {
	assert.ErrorIs(t, ErrFor(CodeLicenseInactive), ErrLicenseInactive)
	assert.ErrorIs(t, ErrFor(CodeLicenseExpired), ErrLicenseExpired)
	assert.ErrorIs(t, ErrFor(CodeHWIDMismatch), ErrHWIDMismatch)
	assert.ErrorIs(t, ErrFor(CodeKeyNotFound), ErrKeyNotFound)
	assert.NoError(t, ErrFor("accepted"))
}
