package roles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const registryKey = "roles:registry"

// RegistrySourcePort fetches roles from the backing store on cache miss.
type RegistrySourcePort interface {
	ListRoles(ctx context.Context) ([]Role, error)
}

// Registry is the process-wide role cache. It is populated lazily, refreshed
// under singleflight so concurrent misses trigger one fetch, invalidated
// synchronously after every role mutation, and never expired on a timer.
type Registry struct {
	client *redis.Client
	source RegistrySourcePort
	logger *slog.Logger
	group  singleflight.Group
}

// NewRegistry constructs a Registry.
func NewRegistry(client *redis.Client, source RegistrySourcePort, logger *slog.Logger) *Registry {
	return &Registry{client: client, source: source, logger: logger}
}

// List returns the cached roles, fetching from the source on first use or
// after invalidation.
func (reg *Registry) List(ctx context.Context) ([]Role, error) {
	payload, err := reg.client.Get(ctx, registryKey).Bytes()
	if err == nil {
		var roles []Role
		if err := json.Unmarshal(payload, &roles); err == nil {
			return roles, nil
		}
		// Corrupt payload; drop it and refetch.
		reg.logger.Warn("role registry payload corrupt, refetching")
	} else if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("roles: registry get: %w", err)
	}
	return reg.refresh(ctx)
}

// Invalidate drops the cached role set so the next read refetches.
func (reg *Registry) Invalidate(ctx context.Context) error {
	if err := reg.client.Del(ctx, registryKey).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("roles: registry invalidate: %w", err)
	}
	return nil
}

// Refresh forces a fetch from the source and repopulates the cache.
func (reg *Registry) Refresh(ctx context.Context) ([]Role, error) {
	return reg.refresh(ctx)
}

func (reg *Registry) refresh(ctx context.Context) ([]Role, error) {
	result := reg.group.DoChan(registryKey, func() (any, error) {
		roles, err := reg.source.ListRoles(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(roles)
		if err != nil {
			return nil, err
		}
		// Cache lifetime is the process session; mutations invalidate explicitly.
		if err := reg.client.Set(context.WithoutCancel(ctx), registryKey, data, 0).Err(); err != nil {
			reg.logger.Error("role registry populate", slog.Any("error", err))
		}
		return roles, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-result:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]Role), nil
	}
}
