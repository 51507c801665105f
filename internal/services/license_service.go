package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"keygate/internal/infrastructure"
	"keygate/internal/license"
	"keygate/internal/store"
)

// LicenseService orchestrates the license state machine against the
// record store. It is stateless between calls; all state lives in the
// store.
type LicenseService interface {
	// Validate checks a presented key/HWID pair and binds the HWID on
	// first use. A nil error means the license is valid; domain
	// rejections come back as the sentinel errors in internal/license.
	Validate(ctx context.Context, key, hwid string) error

	// Create writes a new license record, replacing any existing record
	// at the same key. An empty key is generated server-side; days <= 0
	// falls back to the default validity period.
	Create(ctx context.Context, key string, days int) (*CreateResult, error)

	// Delete removes a license unconditionally. Unknown keys succeed.
	Delete(ctx context.Context, key string) error

	// ResetBinding clears the hardware binding so the next validation
	// rebinds. Unknown keys are a no-op.
	ResetBinding(ctx context.Context, key string) error

	// ToggleStatus flips active/paused and returns the new status.
	ToggleStatus(ctx context.Context, key string) (string, error)

	// ListAll returns every license record with the store key merged in
	// as the record ID.
	ListAll(ctx context.Context) ([]Record, error)
}

// CreateResult carries the final key and expiry of a created license.
type CreateResult struct {
	Key        string
	ExpireTime time.Time
}

// Record is a license as reported by ListAll: the store-assigned key as
// id, expire_time serialized as ISO-8601 UTC.
type Record struct {
	ID         string  `json:"id"`
	HWID       *string `json:"hwid"`
	ExpireTime string  `json:"expire_time"`
	Status     string  `json:"status"`
}

type licenseService struct {
	store   store.Store
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *infrastructure.LicenseMetrics
	// now is swappable for tests.
	now func() time.Time
}

// NewLicenseService creates a license service over the given store.
func NewLicenseService(st store.Store, logger *slog.Logger, tracer trace.Tracer, metrics *infrastructure.LicenseMetrics) LicenseService {
	return &licenseService{
		store:   st,
		logger:  logger.With(slog.String("service", "license")),
		tracer:  tracer,
		metrics: metrics,
		now:     time.Now,
	}
}

// Validate implements LicenseService. Input validation happens before
// any store access; the bind write must succeed before success is
// reported.
func (s *licenseService) Validate(ctx context.Context, key, hwid string) error {
	ctx, span := s.tracer.Start(ctx, "license_service.validate")
	defer span.End()

	outcome, err := s.validate(ctx, key, hwid)
	s.recordValidation(ctx, outcome)
	span.SetAttributes(attribute.String("license.outcome", outcome))
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (s *licenseService) validate(ctx context.Context, key, hwid string) (string, error) {
	if key == "" || hwid == "" {
		return license.CodeInvalidRequest, license.ErrInvalidRequest
	}

	lic, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.logger.InfoContext(ctx, "validation for unknown key",
				slog.String("key", maskKey(key)))
			return license.CodeKeyNotFound, license.ErrKeyNotFound
		}
		return license.CodeStoreUnavailable, fmt.Errorf("license lookup failed: %w", err)
	}

	outcome := license.Evaluate(lic, hwid, s.now().UTC())
	if !outcome.Accepted {
		s.logger.InfoContext(ctx, "license rejected",
			slog.String("key", maskKey(key)),
			slog.String("reason", outcome.Reason))
		return outcome.Reason, license.ErrFor(outcome.Reason)
	}

	if outcome.Bind {
		if err := s.store.BindHWID(ctx, key, hwid); err != nil {
			switch {
			case errors.Is(err, store.ErrAlreadyBound):
				// Lost a first-use race: another HWID claimed the
				// license between the read and the conditional write.
				s.logger.WarnContext(ctx, "bind race lost",
					slog.String("key", maskKey(key)))
				return license.CodeHWIDMismatch, license.ErrHWIDMismatch
			case errors.Is(err, store.ErrNotFound):
				return license.CodeKeyNotFound, license.ErrKeyNotFound
			default:
				return license.CodeStoreUnavailable, fmt.Errorf("hwid bind failed: %w", err)
			}
		}
		s.logger.InfoContext(ctx, "license bound",
			slog.String("key", maskKey(key)))
	}

	return "accepted", nil
}

// Create implements LicenseService. A record written at an existing key
// replaces it silently; callers that need collision safety supply their
// own key.
func (s *licenseService) Create(ctx context.Context, key string, days int) (*CreateResult, error) {
	ctx, span := s.tracer.Start(ctx, "license_service.create")
	defer span.End()

	if days <= 0 {
		days = license.DefaultValidityDays
	}
	if key == "" {
		key = license.GenerateKey()
	}

	lic := license.New(key, days, s.now())
	if err := s.store.Put(ctx, lic); err != nil {
		s.recordAdminOp(ctx, "create", false)
		span.RecordError(err)
		return nil, fmt.Errorf("license create failed: %w", err)
	}

	s.recordAdminOp(ctx, "create", true)
	s.logger.InfoContext(ctx, "license created",
		slog.String("key", maskKey(key)),
		slog.Int("days_valid", days),
		slog.Time("expire_time", lic.ExpireTime))

	return &CreateResult{Key: key, ExpireTime: lic.ExpireTime}, nil
}

// Delete implements LicenseService.
func (s *licenseService) Delete(ctx context.Context, key string) error {
	ctx, span := s.tracer.Start(ctx, "license_service.delete")
	defer span.End()

	if err := s.store.Delete(ctx, key); err != nil {
		s.recordAdminOp(ctx, "delete", false)
		span.RecordError(err)
		return fmt.Errorf("license delete failed: %w", err)
	}

	s.recordAdminOp(ctx, "delete", true)
	s.logger.InfoContext(ctx, "license deleted", slog.String("key", maskKey(key)))
	return nil
}

// ResetBinding implements LicenseService.
func (s *licenseService) ResetBinding(ctx context.Context, key string) error {
	ctx, span := s.tracer.Start(ctx, "license_service.reset_binding")
	defer span.End()

	if err := s.store.ClearHWID(ctx, key); err != nil {
		s.recordAdminOp(ctx, "reset_hwid", false)
		span.RecordError(err)
		return fmt.Errorf("hwid reset failed: %w", err)
	}

	s.recordAdminOp(ctx, "reset_hwid", true)
	s.logger.InfoContext(ctx, "hwid binding reset", slog.String("key", maskKey(key)))
	return nil
}

// ToggleStatus implements LicenseService.
func (s *licenseService) ToggleStatus(ctx context.Context, key string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "license_service.toggle_status")
	defer span.End()

	lic, err := s.store.Get(ctx, key)
	if err != nil {
		s.recordAdminOp(ctx, "toggle_status", false)
		if errors.Is(err, store.ErrNotFound) {
			return "", license.ErrKeyNotFound
		}
		span.RecordError(err)
		return "", fmt.Errorf("license lookup failed: %w", err)
	}

	next := license.ToggledStatus(lic.Status)
	if err := s.store.SetStatus(ctx, key, next); err != nil {
		s.recordAdminOp(ctx, "toggle_status", false)
		if errors.Is(err, store.ErrNotFound) {
			return "", license.ErrKeyNotFound
		}
		span.RecordError(err)
		return "", fmt.Errorf("status update failed: %w", err)
	}

	s.recordAdminOp(ctx, "toggle_status", true)
	s.logger.InfoContext(ctx, "license status toggled",
		slog.String("key", maskKey(key)),
		slog.String("status", next))
	return next, nil
}

// ListAll implements LicenseService.
func (s *licenseService) ListAll(ctx context.Context) ([]Record, error) {
	ctx, span := s.tracer.Start(ctx, "license_service.list_all")
	defer span.End()

	lics, err := s.store.List(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("license list failed: %w", err)
	}

	records := make([]Record, 0, len(lics))
	for _, lic := range lics {
		records = append(records, Record{
			ID:         lic.Key,
			HWID:       lic.HWID,
			ExpireTime: lic.ExpireTime.UTC().Format(time.RFC3339),
			Status:     lic.Status,
		})
	}
	return records, nil
}

func (s *licenseService) recordValidation(ctx context.Context, outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.ValidationsTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (s *licenseService) recordAdminOp(ctx context.Context, op string, ok bool) {
	if s.metrics == nil {
		return
	}
	s.metrics.AdminOpsTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("operation", op),
			attribute.Bool("success", ok)))
}

// maskKey masks license keys for logging.
func maskKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return key[:4] + "****"
}
