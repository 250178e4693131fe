package session

import (
	"context"
	"errors"
	"fmt"

	"callbridge/internal/platform"

	"golang.org/x/sync/singleflight"
)

// Store is the persistence contract for the tag -> session id mapping.
//
// Once written, a mapping is immutable for the lifetime of the store.
// Implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, tag string) (string, bool, error)
	Put(ctx context.Context, tag, sessionID string) error
}

// Registry resolves a logical tag (one per agent) to a platform session id,
// creating the session lazily on first reference.
type Registry struct {
	store Store
	rtc   platform.RTCProvider

	// group serializes first-time creation per tag so a browser leg and a
	// PSTN leg starting in the same instant cannot split an agent across
	// two sessions.
	group singleflight.Group
}

func NewRegistry(store Store, rtc platform.RTCProvider) *Registry {
	return &Registry{store: store, rtc: rtc}
}

// Resolve returns the session id for tag, creating the session on first use.
// At most one session is ever created per tag, even under concurrent first
// resolution. On creation failure nothing is cached; the next call retries.
func (r *Registry) Resolve(ctx context.Context, tag string) (string, error) {
	if tag == "" {
		return "", errors.New("session: tag is required")
	}

	if id, ok, err := r.store.Get(ctx, tag); err != nil {
		return "", fmt.Errorf("session: lookup %q: %w", tag, err)
	} else if ok {
		return id, nil
	}

	v, err, _ := r.group.Do(tag, func() (any, error) {
		// Re-check under the flight: a concurrent caller may have created
		// and cached the session between our lookup and now.
		if id, ok, err := r.store.Get(ctx, tag); err != nil {
			return "", fmt.Errorf("session: lookup %q: %w", tag, err)
		} else if ok {
			return id, nil
		}

		s, err := r.rtc.CreateSession(ctx, tag)
		if err != nil {
			return "", err
		}
		if err := r.store.Put(ctx, tag, s.ID); err != nil {
			return "", fmt.Errorf("session: cache %q: %w", tag, err)
		}
		return s.ID, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
