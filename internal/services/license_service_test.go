package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"keygate/internal/license"
	"keygate/internal/store"
)

func newTestService(t *testing.T, st store.Store, now time.Time) *licenseService {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewLicenseService(st, logger, noop.NewTracerProvider().Tracer("test"), nil).(*licenseService)
	svc.now = func() time.Time { return now }
	return svc
}

func TestValidateRejectsMissingInput(t *testing.T) {
	ctx := context.Background()
	st := new(mockStore)
	svc := newTestService(t, st, time.Now())

	assert.ErrorIs(t, svc.Validate(ctx, "", "HW1"), license.ErrInvalidRequest)
	assert.ErrorIs(t, svc.Validate(ctx, "ABC123", ""), license.ErrInvalidRequest)
	assert.ErrorIs(t, svc.Validate(ctx, "", ""), license.ErrInvalidRequest)

	// Malformed input never reaches the store.
	st.AssertNotCalled(t, "Get")
}

func TestValidateUnknownKey(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, store.NewMemoryStore(), time.Now())

	err := svc.Validate(ctx, "NOPE1234", "HW1")
	assert.ErrorIs(t, err, license.ErrKeyNotFound)
	assert.Equal(t, license.CodeKeyNotFound, license.CodeFor(err))
}

func TestValidateBindsOnFirstUse(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc := newTestService(t, st, time.Now())

	_, err := svc.Create(ctx, "ABC123", 30)
	require.NoError(t, err)

	// First validation binds, repeats with the same hwid succeed, a
	// different hwid is refused and the binding stays put.
	require.NoError(t, svc.Validate(ctx, "ABC123", "HW1"))
	require.NoError(t, svc.Validate(ctx, "ABC123", "HW1"))
	assert.ErrorIs(t, svc.Validate(ctx, "ABC123", "HW2"), license.ErrHWIDMismatch)

	lic, err := st.Get(ctx, "ABC123")
	require.NoError(t, err)
	require.NotNil(t, lic.HWID)
	assert.Equal(t, "HW1", *lic.HWID)
}

func TestValidateLifecycle(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	svc := newTestService(t, st, t0)

	_, err := svc.Create(ctx, "ABC123", 1)
	require.NoError(t, err)

	svc.now = func() time.Time { return t0.Add(time.Hour) }
	require.NoError(t, svc.Validate(ctx, "ABC123", "HW1"))
	require.NoError(t, svc.Validate(ctx, "ABC123", "HW1"))
	assert.ErrorIs(t, svc.Validate(ctx, "ABC123", "HW2"), license.ErrHWIDMismatch)

	// Paused takes precedence over the hwid check.
	status, err := svc.ToggleStatus(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, license.StatusPaused, status)
	assert.ErrorIs(t, svc.Validate(ctx, "ABC123", "HW1"), license.ErrLicenseInactive)
	assert.ErrorIs(t, svc.Validate(ctx, "ABC123", "HW2"), license.ErrLicenseInactive)

	status, err = svc.ToggleStatus(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, license.StatusActive, status)

	// Resetting the binding lets a new machine claim the key.
	require.NoError(t, svc.ResetBinding(ctx, "ABC123"))
	require.NoError(t, svc.Validate(ctx, "ABC123", "HW2"))
	assert.ErrorIs(t, svc.Validate(ctx, "ABC123", "HW1"), license.ErrHWIDMismatch)

	// Past expiry even the bound machine is refused.
	svc.now = func() time.Time { return t0.Add(25 * time.Hour) }
	assert.ErrorIs(t, svc.Validate(ctx, "ABC123", "HW2"), license.ErrLicenseExpired)
}

func TestValidateExpiredTakesPrecedenceOverMismatch(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	svc := newTestService(t, st, t0)

	_, err := svc.Create(ctx, "ABC123", 1)
	require.NoError(t, err)
	require.NoError(t, svc.Validate(ctx, "ABC123", "HW1"))

	svc.now = func() time.Time { return t0.Add(48 * time.Hour) }
	assert.ErrorIs(t, svc.Validate(ctx, "ABC123", "HW2"), license.ErrLicenseExpired)
}

func TestCreateDefaults(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	svc := newTestService(t, st, t0)

	res, err := svc.Create(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, res.Key, license.GeneratedKeyLength)
	assert.Equal(t, t0.Add(license.DefaultValidityDays*24*time.Hour), res.ExpireTime)

	lic, err := st.Get(ctx, res.Key)
	require.NoError(t, err)
	assert.Nil(t, lic.HWID)
	assert.Equal(t, license.StatusActive, lic.Status)
}

func TestCreateExplicit(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	svc := newTestService(t, store.NewMemoryStore(), t0)

	res, err := svc.Create(ctx, "CUSTOM-KEY", 7)
	require.NoError(t, err)
	assert.Equal(t, "CUSTOM-KEY", res.Key)
	assert.Equal(t, t0.Add(7*24*time.Hour), res.ExpireTime)
}

func TestCreateReplacesExistingKey(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc := newTestService(t, st, time.Now())

	_, err := svc.Create(ctx, "ABC123", 30)
	require.NoError(t, err)
	require.NoError(t, svc.Validate(ctx, "ABC123", "HW1"))

	// Re-creating the same key yields a fresh, unbound record.
	_, err = svc.Create(ctx, "ABC123", 30)
	require.NoError(t, err)

	lic, err := st.Get(ctx, "ABC123")
	require.NoError(t, err)
	assert.Nil(t, lic.HWID)
	require.NoError(t, svc.Validate(ctx, "ABC123", "HW2"))
}

func TestDeleteUnknownKeySucceeds(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, store.NewMemoryStore(), time.Now())

	assert.NoError(t, svc.Delete(ctx, "NEVER-EXISTED"))
}

func TestDeleteRemovesLicense(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, store.NewMemoryStore(), time.Now())

	_, err := svc.Create(ctx, "ABC123", 30)
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, "ABC123"))
	assert.ErrorIs(t, svc.Validate(ctx, "ABC123", "HW1"), license.ErrKeyNotFound)
}

func TestResetBindingUnknownKeyIsNoOp(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc := newTestService(t, st, time.Now())

	assert.NoError(t, svc.ResetBinding(ctx, "NEVER-EXISTED"))

	// A reset must never conjure a record into existence.
	_, err := st.Get(ctx, "NEVER-EXISTED")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestToggleStatusUnknownKey(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, store.NewMemoryStore(), time.Now())

	_, err := svc.ToggleStatus(ctx, "NEVER-EXISTED")
	assert.ErrorIs(t, err, license.ErrKeyNotFound)
}

func TestListAll(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	svc := newTestService(t, st, t0)

	records, err := svc.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	_, err = svc.Create(ctx, "AAA11111", 30)
	require.NoError(t, err)
	_, err = svc.Create(ctx, "BBB22222", 30)
	require.NoError(t, err)
	require.NoError(t, svc.Validate(ctx, "AAA11111", "HW1"))

	records, err = svc.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)

	byID := make(map[string]Record, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}
	require.Contains(t, byID, "AAA11111")
	require.Contains(t, byID, "BBB22222")
	require.NotNil(t, byID["AAA11111"].HWID)
	assert.Equal(t, "HW1", *byID["AAA11111"].HWID)
	assert.Nil(t, byID["BBB22222"].HWID)
	assert.Equal(t, t0.Add(30*24*time.Hour).Format(time.RFC3339), byID["AAA11111"].ExpireTime)
	assert.Equal(t, license.StatusActive, byID["AAA11111"].Status)
}

func TestValidateStoreFailure(t *testing.T) {
	ctx := context.Background()
	st := new(mockStore)
	st.On("Get", mock.Anything, "ABC123").Return((*license.License)(nil), assert.AnError)
	svc := newTestService(t, st, time.Now())

	err := svc.Validate(ctx, "ABC123", "HW1")
	require.Error(t, err)
	assert.Equal(t, license.CodeStoreUnavailable, license.CodeFor(err))
	st.AssertExpectations(t)
}

func TestValidateBindWriteFailure(t *testing.T) {
	ctx := context.Background()
	lic := license.New("ABC123", 30, time.Now())
	st := new(mockStore)
	st.On("Get", mock.Anything, "ABC123").Return(lic, nil)
	st.On("BindHWID", mock.Anything, "ABC123", "HW1").Return(assert.AnError)
	svc := newTestService(t, st, time.Now())

	// A failed bind write must surface as a failure, never as a valid
	// license.
	err := svc.Validate(ctx, "ABC123", "HW1")
	require.Error(t, err)
	assert.Equal(t, license.CodeStoreUnavailable, license.CodeFor(err))
	st.AssertExpectations(t)
}

func TestValidateBindRaceLost(t *testing.T) {
	ctx := context.Background()
	lic := license.New("ABC123", 30, time.Now())
	st := new(mockStore)
	st.On("Get", mock.Anything, "ABC123").Return(lic, nil)
	st.On("BindHWID", mock.Anything, "ABC123", "HW2").Return(store.ErrAlreadyBound)
	svc := newTestService(t, st, time.Now())

	// Losing the first-use race reads the same as presenting the wrong
	// machine.
	assert.ErrorIs(t, svc.Validate(ctx, "ABC123", "HW2"), license.ErrHWIDMismatch)
	st.AssertExpectations(t)
}

// mockStore is a testify mock of store.Store for fault injection.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) Get(ctx context.Context, key string) (*license.License, error) {
	args := m.Called(ctx, key)
	lic, _ := args.Get(0).(*license.License)
	return lic, args.Error(1)
}

func (m *mockStore) Put(ctx context.Context, lic *license.License) error {
	return m.Called(ctx, lic).Error(0)
}

func (m *mockStore) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *mockStore) List(ctx context.Context) ([]*license.License, error) {
	args := m.Called(ctx)
	lics, _ := args.Get(0).([]*license.License)
	return lics, args.Error(1)
}

func (m *mockStore) BindHWID(ctx context.Context, key, hwid string) error {
	return m.Called(ctx, key, hwid).Error(0)
}

func (m *mockStore) ClearHWID(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *mockStore) SetStatus(ctx context.Context, key, status string) error {
	return m.Called(ctx, key, status).Error(0)
}

func (m *mockStore) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) Close() error {
	return m.Called().Error(0)
}
