// Package announce keeps the set of sensors whose discovery configuration has
// already been published.
//
// The set lives in a Store shared by every process serving the ingest
// endpoint. Each operation takes the Locker, reloads the store, applies its
// change and saves before releasing, so no process ever acts on a stale copy.
package announce

import (
	"context"
	"fmt"
	"log/slog"
)

// Store persists the announced set. Load on a store that was never
// written returns an empty set.
type Store interface {
	Load(ctx context.Context) (map[string]bool, error)
	Save(ctx context.Context, ids map[string]bool) error
}

// Locker is a mutual-exclusion guard over the whole store.
type Locker interface {
	Lock() error
	Unlock() error
}

type Cache struct {
	store  Store
	lock   Locker
	logger *slog.Logger
}

func NewCache(store Store, lock Locker, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{store: store, lock: lock, logger: logger}
}

func (c *Cache) IsAnnounced(ctx context.Context, id string) (bool, error) {
	var announced bool
	err := c.withLock(ctx, func(ids map[string]bool) (bool, error) {
		announced = ids[id]
		return false, nil
	})
	return announced, err
}

func (c *Cache) MarkAnnounced(ctx context.Context, id string) error {
	return c.withLock(ctx, func(ids map[string]bool) (bool, error) {
		if ids[id] {
			return false, nil
		}
		ids[id] = true
		return true, nil
	})
}

// Claim marks id as announced and reports whether this call did so. Exactly
// one concurrent caller gets true for an id that was not yet announced.
func (c *Cache) Claim(ctx context.Context, id string) (bool, error) {
	var claimed bool
	err := c.withLock(ctx, func(ids map[string]bool) (bool, error) {
		if ids[id] {
			return false, nil
		}
		ids[id] = true
		claimed = true
		return true, nil
	})
	return claimed, err
}

// Forget returns id to the unknown state, used when a claimed announcement
// could not be published.
func (c *Cache) Forget(ctx context.Context, id string) error {
	return c.withLock(ctx, func(ids map[string]bool) (bool, error) {
		if _, ok := ids[id]; !ok {
			return false, nil
		}
		delete(ids, id)
		return true, nil
	})
}

// ClearAll empties the set. The store itself is kept.
func (c *Cache) ClearAll(ctx context.Context) error {
	c.logger.Info("clearing announced sensors")
	return c.withLock(ctx, func(ids map[string]bool) (bool, error) {
		clear(ids)
		return true, nil
	})
}

// withLock runs fn on a fresh copy of the set and saves it when fn reports a change.
func (c *Cache) withLock(ctx context.Context, fn func(ids map[string]bool) (bool, error)) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.lock.Lock(); err != nil {
		return fmt.Errorf("lock announced sensors: %w", err)
	}
	defer func() {
		if unlockErr := c.lock.Unlock(); unlockErr != nil && err == nil {
			err = fmt.Errorf("unlock announced sensors: %w", unlockErr)
		}
	}()

	ids, err := c.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load announced sensors: %w", err)
	}
	if ids == nil {
		ids = make(map[string]bool)
	}
	changed, err := fn(ids)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	if err := c.store.Save(ctx, ids); err != nil {
		return fmt.Errorf("save announced sensors: %w", err)
	}
	return nil
}
