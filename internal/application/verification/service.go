package verification

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"strings"
	"time"

	"github.com/api-yamdb/internal/domain"
)

// Service owns the confirmation-code lifecycle: issue, deliver, redeem, purge.
// It is the only reader and writer of the code store.
type Service interface {
	Generate(ctx context.Context, identity string) (string, error)
	SendCode(ctx context.Context, address, code string) error
	CheckCode(ctx context.Context, identity, code string) (bool, error)
	Cleanup(ctx context.Context, identity string) error
}

// CodeStore is an expiring key/value backend. Every method must be atomic per key.
type CodeStore interface {
	// Set overwrites key and restarts its lifetime at ttl.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// TTL reports the remaining lifetime. found=false means the key never existed or
	// was evicted; found=true with remaining <= 0 means it is past its window.
	TTL(ctx context.Context, key string) (remaining time.Duration, found bool, err error)
	// Get returns the value of a live key.
	Get(ctx context.Context, key string) (value string, found bool, err error)
	// Delete removes key and reports whether it existed.
	Delete(ctx context.Context, key string) (existed bool, err error)
	// Consume removes key only while it is live and still holds expected.
	// consumed=false means the key is gone, expired or was overwritten.
	Consume(ctx context.Context, key, expected string) (consumed bool, err error)
}

// Notifier delivers a code to a contact address.
type Notifier interface {
	Send(ctx context.Context, address, code string) error
}

type codeGenerator interface {
	Generate() string
}

type service struct {
	store     CodeStore
	notifier  Notifier
	generator codeGenerator
	ttl       time.Duration
	keyPrefix string
}

type ServiceDeps struct {
	Store     CodeStore
	Notifier  Notifier
	Generator codeGenerator
	TTL       time.Duration
	KeyPrefix string
}

func NewService(deps ServiceDeps) Service {
	gen := deps.Generator
	if gen == nil {
		gen = NewDigitGenerator(DefaultCodeLength)
	}
	return &service{
		store:     deps.Store,
		notifier:  deps.Notifier,
		generator: gen,
		ttl:       deps.TTL,
		keyPrefix: deps.KeyPrefix,
	}
}

func (s *service) key(identity string) string {
	return s.keyPrefix + identity
}

func (s *service) Generate(ctx context.Context, identity string) (string, error) {
	if strings.TrimSpace(identity) == "" {
		return "", domain.NewVerificationError(domain.KindEmptyIdentity, nil)
	}
	code := s.generator.Generate()
	if err := s.store.Set(ctx, s.key(identity), code, s.ttl); err != nil {
		return "", domain.NewVerificationError(domain.KindGenerationFailed, err)
	}
	return code, nil
}

func (s *service) SendCode(ctx context.Context, address, code string) error {
	if err := s.notifier.Send(ctx, address, code); err != nil {
		return domain.NewVerificationError(domain.KindDeliveryFailed, err)
	}
	return nil
}

// CheckCode redeems code for identity. A mismatch leaves the pending code in place.
// TTL and Get only classify the failure; Consume decides the winner, and loses
// when a concurrent Generate replaced the code in between.
func (s *service) CheckCode(ctx context.Context, identity, code string) (bool, error) {
	if strings.TrimSpace(identity) == "" {
		return false, domain.NewVerificationError(domain.KindEmptyIdentity, nil)
	}
	key := s.key(identity)

	remaining, found, err := s.store.TTL(ctx, key)
	if err != nil {
		return false, domain.NewVerificationError(domain.KindCheckFailed, err)
	}
	if !found {
		return false, domain.NewVerificationError(domain.KindCodeNotFound, nil)
	}
	if remaining <= 0 {
		return false, domain.NewVerificationError(domain.KindCodeExpired, nil)
	}

	stored, found, err := s.store.Get(ctx, key)
	if err != nil {
		return false, domain.NewVerificationError(domain.KindCheckFailed, err)
	}
	if !found {
		return false, domain.NewVerificationError(domain.KindCodeNotFound, nil)
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return false, domain.NewVerificationError(domain.KindInvalidCode, nil)
	}

	consumed, err := s.store.Consume(ctx, key, code)
	if err != nil {
		return false, domain.NewVerificationError(domain.KindCheckFailed, err)
	}
	if !consumed {
		return false, domain.NewVerificationError(domain.KindCodeNotFound, nil)
	}
	return true, nil
}

func (s *service) Cleanup(ctx context.Context, identity string) error {
	if strings.TrimSpace(identity) == "" {
		return domain.NewVerificationError(domain.KindEmptyIdentity, nil)
	}
	existed, err := s.store.Delete(ctx, s.key(identity))
	if err != nil {
		return domain.NewVerificationError(domain.KindCleanupFailed, err)
	}
	slog.Debug("verification code purged", "username", identity, "existed", existed)
	return nil
}
