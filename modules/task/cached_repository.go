package task

import (
	"context"
	"fmt"
	"hash/fnv"
	"log"
	"sync/atomic"

	domain "github.com/ERSMS-25L/ERSMS-Task-Service/domain/task"
	"github.com/ERSMS-25L/ERSMS-Task-Service/modules/cache"
	"golang.org/x/sync/singleflight"
)

// generationStripes bounds the write counters kept per cache key.
const generationStripes = 256

// CachedRepository adds a cache-aside layer over another Repository for
// single-task reads and per-owner status counts. Every write invalidates the
// affected keys before returning. Listings always go to the store.
//
// A fill only survives if no write to its key committed while the store was
// being read; otherwise a reader could put back a row the writer has
// just invalidated.
type CachedRepository struct {
	next        Repository
	cache       cache.CacheService
	sfGroup     singleflight.Group
	generations [generationStripes]atomic.Uint64
}

var _ Repository = (*CachedRepository)(nil)

// NewCachedRepository wraps next with c.
func NewCachedRepository(next Repository, c cache.CacheService) *CachedRepository {
	return &CachedRepository{next: next, cache: c}
}

func taskKey(id uint) string {
	return fmt.Sprintf("task:%d", id)
}

func statsKey(ownerID string) string {
	return "stats:" + ownerID
}

// generation returns the write counter of key's stripe.
func (r *CachedRepository) generation(key string) *atomic.Uint64 {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &r.generations[h.Sum32()%generationStripes]
}

// fill caches value under key unless a write to key has committed since
// the store read began (gen was taken before it).
func (r *CachedRepository) fill(ctx context.Context, key string, gen uint64, value any) {
	counter := r.generation(key)
	if counter.Load() != gen {
		return
	}
	if err := r.cache.Set(ctx, key, value); err != nil {
		log.Printf("[task] Warning: failed to cache %s: %v", key, err)
		return
	}
	// A write that committed during Set may already have run its invalidation.
	if counter.Load() != gen {
		r.invalidate(ctx, key)
	}
}

func (r *CachedRepository) Insert(ctx context.Context, t *domain.Task) error {
	if err := r.next.Insert(ctx, t); err != nil {
		return err
	}
	r.written(ctx, statsKey(t.UserID))
	return nil
}

func (r *CachedRepository) FindByID(ctx context.Context, id uint) (*domain.Task, error) {
	key := taskKey(id)

	var cached domain.Task
	found, err := r.cache.Get(ctx, key, &cached)
	if err != nil {
		log.Printf("[task] Cache error for %s: %v", key, err)
	}
	if found {
		return &cached, nil
	}

	val, err, _ := r.sfGroup.Do(key, func() (any, error) {
		gen := r.generation(key).Load()
		t, err := r.next.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		r.fill(ctx, key, gen, t)
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	// Results are shared between concurrent callers.
	return val.(*domain.Task).Clone(), nil
}

func (r *CachedRepository) FindPage(ctx context.Context, filter domain.Filter, offset, limit int) ([]domain.Task, int64, error) {
	return r.next.FindPage(ctx, filter, offset, limit)
}

func (r *CachedRepository) CountByStatus(ctx context.Context, ownerID string) (domain.StatusCounts, error) {
	key := statsKey(ownerID)

	var cached domain.StatusCounts
	found, err := r.cache.Get(ctx, key, &cached)
	if err != nil {
		log.Printf("[task] Cache error for %s: %v", key, err)
	}
	if found {
		return cached, nil
	}

	val, err, _ := r.sfGroup.Do(key, func() (any, error) {
		gen := r.generation(key).Load()
		counts, err := r.next.CountByStatus(ctx, ownerID)
		if err != nil {
			return nil, err
		}
		r.fill(ctx, key, gen, counts)
		return counts, nil
	})
	if err != nil {
		return nil, err
	}

	shared := val.(domain.StatusCounts)
	counts := make(domain.StatusCounts, len(shared))
	for s, n := range shared {
		counts[s] = n
	}
	return counts, nil
}

func (r *CachedRepository) Update(ctx context.Context, t *domain.Task) error {
	if err := r.next.Update(ctx, t); err != nil {
		return err
	}
	r.written(ctx, taskKey(t.ID), statsKey(t.UserID))
	return nil
}

func (r *CachedRepository) Delete(ctx context.Context, t *domain.Task) error {
	if err := r.next.Delete(ctx, t); err != nil {
		return err
	}
	r.written(ctx, taskKey(t.ID), statsKey(t.UserID))
	return nil
}

func (r *CachedRepository) Ping(ctx context.Context) error {
	return r.next.Ping(ctx)
}

func (r *CachedRepository) Close() error {
	return r.next.Close()
}

// written marks keys as changed in the store and drops their cached values.
func (r *CachedRepository) written(ctx context.Context, keys ...string) {
	for _, key := range keys {
		r.generation(key).Add(1)
	}
	r.invalidate(ctx, keys...)
}

func (r *CachedRepository) invalidate(ctx context.Context, keys ...string) {
	if err := r.cache.Delete(ctx, keys...); err != nil {
		log.Printf("[task] Warning: failed to invalidate %v: %v", keys, err)
	}
}
