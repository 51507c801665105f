package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"keygate/internal/license"
)

// DefaultCollection is the Firestore collection holding license records.
const DefaultCollection = "licenses"

// FirestoreStore persists license records as Firestore documents whose
// document ID is the license key.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
	logger     *slog.Logger
}

// NewFirestoreStore creates the process-wide Firestore client from
// service-account credentials JSON. When projectID is empty it is read
// from the credentials themselves.
func NewFirestoreStore(ctx context.Context, projectID string, credentialsJSON []byte, collection string, logger *slog.Logger) (*FirestoreStore, error) {
	if collection == "" {
		collection = DefaultCollection
	}
	if projectID == "" {
		var err error
		projectID, err = projectIDFromCredentials(credentialsJSON)
		if err != nil {
			return nil, err
		}
	}

	client, err := firestore.NewClient(ctx, projectID, option.WithCredentialsJSON(credentialsJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}

	logger.InfoContext(ctx, "firestore store initialized",
		slog.String("project_id", projectID),
		slog.String("collection", collection))

	return &FirestoreStore{
		client:     client,
		collection: collection,
		logger:     logger.With(slog.String("component", "firestore_store")),
	}, nil
}

// projectIDFromCredentials extracts project_id from service-account JSON.
func projectIDFromCredentials(credentialsJSON []byte) (string, error) {
	var creds struct {
		ProjectID string `json:"project_id"`
	}
	if err := json.Unmarshal(credentialsJSON, &creds); err != nil {
		return "", fmt.Errorf("failed to parse store credentials: %w", err)
	}
	if creds.ProjectID == "" {
		return "", fmt.Errorf("store credentials missing project_id")
	}
	return creds.ProjectID, nil
}

func (s *FirestoreStore) doc(key string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(key)
}

// Get implements Store.
func (s *FirestoreStore) Get(ctx context.Context, key string) (*license.License, error) {
	snap, err := s.doc(key).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("firestore get %q: %w", key, err)
	}
	return snapshotToLicense(snap)
}

// Put implements Store. Set overwrites any existing document.
func (s *FirestoreStore) Put(ctx context.Context, lic *license.License) error {
	if _, err := s.doc(lic.Key).Set(ctx, lic); err != nil {
		return fmt.Errorf("firestore put %q: %w", lic.Key, err)
	}
	return nil
}

// Delete implements Store. Firestore deletes are idempotent: removing a
// missing document succeeds.
func (s *FirestoreStore) Delete(ctx context.Context, key string) error {
	if _, err := s.doc(key).Delete(ctx); err != nil {
		return fmt.Errorf("firestore delete %q: %w", key, err)
	}
	return nil
}

// List implements Store.
func (s *FirestoreStore) List(ctx context.Context) ([]*license.License, error) {
	var out []*license.License
	iter := s.client.Collection(s.collection).Documents(ctx)
	defer iter.Stop()
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore list: %w", err)
		}
		lic, err := snapshotToLicense(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, lic)
	}
	return out, nil
}

// BindHWID implements Store using a transaction so that at most one
// concurrent first-use validation can claim an unbound license.
func (s *FirestoreStore) BindHWID(ctx context.Context, key, hwid string) error {
	ref := s.doc(key)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return ErrNotFound
			}
			return err
		}
		lic, err := snapshotToLicense(snap)
		if err != nil {
			return err
		}
		if lic.Bound() {
			if *lic.HWID == hwid {
				return nil
			}
			return ErrAlreadyBound
		}
		return tx.Update(ref, []firestore.Update{{Path: "hwid", Value: hwid}})
	})
	if err == ErrNotFound || err == ErrAlreadyBound {
		return err
	}
	if err != nil {
		return fmt.Errorf("firestore bind %q: %w", key, err)
	}
	return nil
}

// ClearHWID implements Store. Updating a missing document is swallowed:
// reset on an unknown key must not create a partial record.
func (s *FirestoreStore) ClearHWID(ctx context.Context, key string) error {
	_, err := s.doc(key).Update(ctx, []firestore.Update{{Path: "hwid", Value: nil}})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			s.logger.WarnContext(ctx, "reset on unknown key ignored", slog.String("key", key))
			return nil
		}
		return fmt.Errorf("firestore clear hwid %q: %w", key, err)
	}
	return nil
}

// SetStatus implements Store.
func (s *FirestoreStore) SetStatus(ctx context.Context, key, st string) error {
	_, err := s.doc(key).Update(ctx, []firestore.Update{{Path: "status", Value: st}})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return ErrNotFound
		}
		return fmt.Errorf("firestore set status %q: %w", key, err)
	}
	return nil
}

// Ping implements Store with a cheap single-document read.
func (s *FirestoreStore) Ping(ctx context.Context) error {
	iter := s.client.Collection(s.collection).Limit(1).Documents(ctx)
	defer iter.Stop()
	if _, err := iter.Next(); err != nil && err != iterator.Done {
		return fmt.Errorf("firestore ping: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

// snapshotToLicense decodes a document and attaches the store-assigned
// document ID as the license key.
func snapshotToLicense(snap *firestore.DocumentSnapshot) (*license.License, error) {
	var lic license.License
	if err := snap.DataTo(&lic); err != nil {
		return nil, fmt.Errorf("firestore decode %q: %w", snap.Ref.ID, err)
	}
	lic.Key = snap.Ref.ID
	return &lic, nil
}
