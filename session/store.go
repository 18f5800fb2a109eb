// Package session keeps authenticated sessions in the durable key-value
// backend, so a login survives restarts and redeploys and is visible to every
// running instance. The backend enforces expiry natively; there is no sweep
// here.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/joshua0006/pineapple-tours--1--sub006/kvstore"
	"github.com/joshua0006/pineapple-tours--1--sub006/utils"
)

const keyPrefix = "session:"

type Session struct {
	ID        string    `json:"id"`
	Subject   string    `json:"subject"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Store struct {
	kv  kvstore.KV
	ttl time.Duration

	now func() time.Time
}

func NewStore(kv kvstore.KV, ttl time.Duration) *Store {
	return &Store{kv: kv, ttl: ttl, now: time.Now}
}

// CreateSession generates a fresh unguessable id. Two sessions for the same
// subject get unrelated ids, so revoking one never touches the other.
func (s *Store) CreateSession(ctx context.Context, subject string) (Session, error) {
	created := s.now()
	sess := Session{
		ID:        uuid.NewString(),
		Subject:   subject,
		CreatedAt: created,
		ExpiresAt: created.Add(s.ttl),
	}
	if err := s.write(ctx, sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// GetSession short-circuits malformed ids to not-found without a backend
// round trip.
func (s *Store) GetSession(ctx context.Context, id string) (Session, error) {
	if !validID(id) {
		return Session{}, utils.ErrNotFound
	}
	encoded, found, err := s.kv.Get(ctx, keyPrefix+id)
	if err != nil {
		return Session{}, err
	}
	if !found {
		return Session{}, utils.ErrNotFound
	}
	var sess Session
	if err := utils.UnmarshalFromJSON([]byte(encoded), &sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// RefreshSession slides the expiry window. Missing sessions are a no-op.
func (s *Store) RefreshSession(ctx context.Context, id string) error {
	sess, err := s.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil
		}
		return err
	}
	sess.ExpiresAt = s.now().Add(s.ttl)
	return s.write(ctx, sess)
}

// DeleteSession is idempotent explicit revocation.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	if !validID(id) {
		return nil
	}
	return s.kv.Del(ctx, keyPrefix+id)
}

func (s *Store) write(ctx context.Context, sess Session) error {
	encoded, err := utils.MarshalToJSON(sess)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, keyPrefix+sess.ID, encoded, s.ttl)
}

func validID(id string) bool {
	if id == "" {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}
