// Package firestore is the source-of-truth store for registration IDs.
package firestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"
)

const (
	usersCollection   = "users"
	devicesCollection = "devices"
	platformGCM       = "gcm"
)

// TokenStore keeps one document per registration ID under
// users/{urn}/devices/{sha256(id)}.
type TokenStore struct {
	client *firestore.Client
	logger *slog.Logger
}

func NewTokenStore(client *firestore.Client, logger *slog.Logger) *TokenStore {
	return &TokenStore{
		client: client,
		logger: logger.With("component", "FirestoreTokenStore"),
	}
}

type deviceRecord struct {
	Platform       string    `firestore:"platform"`
	RegistrationID string    `firestore:"registration_id"`
	UpdatedAt      time.Time `firestore:"updated_at"`
}

func (s *TokenStore) Register(ctx context.Context, user urn.URN, token string) error {
	if token == "" {
		return errors.New("registration id is empty")
	}
	record := deviceRecord{
		Platform:       platformGCM,
		RegistrationID: token,
		UpdatedAt:      time.Now().UTC(),
	}
	if _, err := s.deviceRef(user, token).Set(ctx, record); err != nil {
		return fmt.Errorf("failed to register device for %s: %w", user.String(), err)
	}
	return nil
}

// Unregister deletes the device document. Firestore deletes of missing
// documents succeed, so unknown IDs are not an error.
func (s *TokenStore) Unregister(ctx context.Context, user urn.URN, token string) error {
	if _, err := s.deviceRef(user, token).Delete(ctx); err != nil {
		return fmt.Errorf("failed to unregister device for %s: %w", user.String(), err)
	}
	return nil
}

// Replace swaps a stale registration ID for its canonical replacement in one
// transaction, so the user is never left without the device.
func (s *TokenStore) Replace(ctx context.Context, user urn.URN, oldToken, newToken string) error {
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Set(s.deviceRef(user, newToken), deviceRecord{
			Platform:       platformGCM,
			RegistrationID: newToken,
			UpdatedAt:      time.Now().UTC(),
		}); err != nil {
			return err
		}
		return tx.Delete(s.deviceRef(user, oldToken))
	})
	if err != nil {
		return fmt.Errorf("failed to replace device for %s: %w", user.String(), err)
	}
	return nil
}

func (s *TokenStore) Fetch(ctx context.Context, user urn.URN) ([]string, error) {
	iter := s.devices(user).Where("platform", "==", platformGCM).Documents(ctx)
	defer iter.Stop()

	tokens := make([]string, 0)
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore iteration failed: %w", err)
		}

		var record deviceRecord
		if err := doc.DataTo(&record); err != nil {
			s.logger.Warn("Skipping unreadable device record", "doc_id", doc.Ref.ID, "err", err)
			continue
		}
		if record.RegistrationID != "" {
			tokens = append(tokens, record.RegistrationID)
		}
	}
	return tokens, nil
}

func (s *TokenStore) deviceRef(user urn.URN, token string) *firestore.DocumentRef {
	return s.devices(user).Doc(hashToken(token))
}

func (s *TokenStore) devices(user urn.URN) *firestore.CollectionRef {
	return s.client.Collection(usersCollection).Doc(user.String()).Collection(devicesCollection)
}

// hashToken keeps document IDs short and free of '/'.
func hashToken(t string) string {
	sum := sha256.Sum256([]byte(t))
	return hex.EncodeToString(sum[:])
}
