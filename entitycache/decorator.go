package entitycache

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/hydra-platform/go-hydra-core/cache"
	"github.com/hydra-platform/go-hydra-core/logging"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/uptrace/bun"
	"golang.org/x/sync/singleflight"
)

var _ repository.Repository[any] = (*CachedRepository[any])(nil)

// listResult wraps the tuple result from List so it can live in the query
// cache as a single value.
type listResult[T any] struct {
	Records []T `json:"records"`
	Total   int `json:"total"`
}

// CachedRepository decorates a base repository with an id-keyed identity
// cache and a key-serialized query cache. Query keys are scoped by the
// entity name so repositories sharing one query cache never collide.
type CachedRepository[T any] struct {
	base     repository.Repository[T]
	scope    string
	entities cache.QueryableStore[string, T]
	queries  cache.QueryCache
	keys     cache.KeyBuilder
	tracked  *xsync.MapOf[string, struct{}]
	group    singleflight.Group
}

// New wraps base with caching. The name scopes this repository's query keys;
// the entities store holds records keyed by their id; queries holds
// criteria-shaped results and may be shared across repositories.
func New[T any](name string, base repository.Repository[T], entities cache.QueryableStore[string, T], queries cache.QueryCache, keys cache.KeyBuilder) *CachedRepository[T] {
	return &CachedRepository[T]{
		base:     base,
		scope:    name,
		entities: entities,
		queries:  queries,
		keys:     keys,
		tracked:  xsync.NewMapOf[string, struct{}](),
	}
}

// key builds an entity-scoped query cache key.
func (c *CachedRepository[T]) key(method string, args ...any) string {
	return c.scope + cache.KeySeparator + c.keys.Key(method, args...)
}

// prefix returns the invalidation prefix for one method family.
func (c *CachedRepository[T]) prefix(method string) string {
	return c.scope + cache.KeySeparator + method
}

// Get retrieves a single record matching the criteria, read-through cached.
func (c *CachedRepository[T]) Get(ctx context.Context, criteria ...repository.SelectCriteria) (T, error) {
	key := c.trackKey(c.key("Get", criteria))
	return cache.GetOrFetch(ctx, c.queries, key, func(ctx context.Context) (T, error) {
		return c.base.Get(ctx, criteria...)
	})
}

// GetByID retrieves a record by id. Plain lookups hit the identity cache;
// concurrent misses for the same id share one fetch. Lookups with extra
// criteria cannot be satisfied from the identity layer and go through the
// query cache instead.
func (c *CachedRepository[T]) GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (T, error) {
	if len(criteria) > 0 {
		key := c.trackKey(c.key("GetByID", id, criteria))
		return cache.GetOrFetch(ctx, c.queries, key, func(ctx context.Context) (T, error) {
			return c.base.GetByID(ctx, id, criteria...)
		})
	}

	if record, ok := c.entities.Get(id); ok {
		return record, nil
	}

	result, err, _ := c.group.Do(id, func() (any, error) {
		record, err := c.base.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		c.entities.Put(id, record)
		return record, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}

// List retrieves records plus the total count, read-through cached.
func (c *CachedRepository[T]) List(ctx context.Context, criteria ...repository.SelectCriteria) ([]T, int, error) {
	key := c.trackKey(c.key("List", criteria))
	res, err := cache.GetOrFetch(ctx, c.queries, key, func(ctx context.Context) (listResult[T], error) {
		records, total, err := c.base.List(ctx, criteria...)
		return listResult[T]{Records: records, Total: total}, err
	})
	if err != nil {
		return nil, 0, err
	}
	return res.Records, res.Total, nil
}

// Count returns the number of matching records, read-through cached.
func (c *CachedRepository[T]) Count(ctx context.Context, criteria ...repository.SelectCriteria) (int, error) {
	key := c.trackKey(c.key("Count", criteria))
	return cache.GetOrFetch(ctx, c.queries, key, func(ctx context.Context) (int, error) {
		return c.base.Count(ctx, criteria...)
	})
}

// GetByIdentifier retrieves a record by its natural identifier, read-through
// cached.
func (c *CachedRepository[T]) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (T, error) {
	key := c.trackKey(c.key("GetByIdentifier", identifier, criteria))
	return cache.GetOrFetch(ctx, c.queries, key, func(ctx context.Context) (T, error) {
		return c.base.GetByIdentifier(ctx, identifier, criteria...)
	})
}

// Find scans the identity cache for records matching the predicate. It only
// sees records that are currently cached and never changes which entry is
// evicted next.
func (c *CachedRepository[T]) Find(match func(T) bool) []T {
	return c.entities.Find(match)
}

// Create inserts a record and primes the identity cache with the result.
func (c *CachedRepository[T]) Create(ctx context.Context, record T, criteria ...repository.InsertCriteria) (T, error) {
	result, err := c.base.Create(ctx, record, criteria...)
	if err == nil {
		c.storeEntity(result)
		c.invalidateQueries(ctx, c.prefix("List"), c.prefix("Count"))
	}
	return result, err
}

// CreateTx inserts a record within a transaction.
func (c *CachedRepository[T]) CreateTx(ctx context.Context, tx bun.IDB, record T, criteria ...repository.InsertCriteria) (T, error) {
	result, err := c.base.CreateTx(ctx, tx, record, criteria...)
	if err == nil {
		c.storeEntity(result)
		c.invalidateQueries(ctx, c.prefix("List"), c.prefix("Count"))
	}
	return result, err
}

// CreateMany inserts multiple records.
func (c *CachedRepository[T]) CreateMany(ctx context.Context, records []T, criteria ...repository.InsertCriteria) ([]T, error) {
	result, err := c.base.CreateMany(ctx, records, criteria...)
	if err == nil {
		for _, record := range result {
			c.storeEntity(record)
		}
		c.invalidateQueries(ctx, c.prefix("List"), c.prefix("Count"))
	}
	return result, err
}

// CreateManyTx inserts multiple records within a transaction.
func (c *CachedRepository[T]) CreateManyTx(ctx context.Context, tx bun.IDB, records []T, criteria ...repository.InsertCriteria) ([]T, error) {
	result, err := c.base.CreateManyTx(ctx, tx, records, criteria...)
	if err == nil {
		for _, record := range result {
			c.storeEntity(record)
		}
		c.invalidateQueries(ctx, c.prefix("List"), c.prefix("Count"))
	}
	return result, err
}

// GetOrCreate fetches a record or creates it when absent.
func (c *CachedRepository[T]) GetOrCreate(ctx context.Context, record T) (T, error) {
	result, err := c.base.GetOrCreate(ctx, record)
	if err == nil {
		// May have created a new record, so totals can change.
		c.storeEntity(result)
		c.invalidateQueries(ctx, c.prefix("List"), c.prefix("Count"))
	}
	return result, err
}

// GetOrCreateTx fetches or creates a record within a transaction.
func (c *CachedRepository[T]) GetOrCreateTx(ctx context.Context, tx bun.IDB, record T) (T, error) {
	result, err := c.base.GetOrCreateTx(ctx, tx, record)
	if err == nil {
		c.storeEntity(result)
		c.invalidateQueries(ctx, c.prefix("List"), c.prefix("Count"))
	}
	return result, err
}

// Update updates a record, refreshing the identity cache with the result.
func (c *CachedRepository[T]) Update(ctx context.Context, record T, criteria ...repository.UpdateCriteria) (T, error) {
	result, err := c.base.Update(ctx, record, criteria...)
	if err == nil {
		c.afterMutate(ctx, result)
	}
	return result, err
}

// UpdateTx updates a record within a transaction.
func (c *CachedRepository[T]) UpdateTx(ctx context.Context, tx bun.IDB, record T, criteria ...repository.UpdateCriteria) (T, error) {
	result, err := c.base.UpdateTx(ctx, tx, record, criteria...)
	if err == nil {
		c.afterMutate(ctx, result)
	}
	return result, err
}

// UpdateMany updates multiple records.
func (c *CachedRepository[T]) UpdateMany(ctx context.Context, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	result, err := c.base.UpdateMany(ctx, records, criteria...)
	if err == nil {
		for _, record := range result {
			c.afterMutate(ctx, record)
		}
	}
	return result, err
}

// UpdateManyTx updates multiple records within a transaction.
func (c *CachedRepository[T]) UpdateManyTx(ctx context.Context, tx bun.IDB, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	result, err := c.base.UpdateManyTx(ctx, tx, records, criteria...)
	if err == nil {
		for _, record := range result {
			c.afterMutate(ctx, record)
		}
	}
	return result, err
}

// Upsert inserts or updates a record.
func (c *CachedRepository[T]) Upsert(ctx context.Context, record T, criteria ...repository.UpdateCriteria) (T, error) {
	result, err := c.base.Upsert(ctx, record, criteria...)
	if err == nil {
		c.afterMutate(ctx, result)
	}
	return result, err
}

// UpsertTx inserts or updates a record within a transaction.
func (c *CachedRepository[T]) UpsertTx(ctx context.Context, tx bun.IDB, record T, criteria ...repository.UpdateCriteria) (T, error) {
	result, err := c.base.UpsertTx(ctx, tx, record, criteria...)
	if err == nil {
		c.afterMutate(ctx, result)
	}
	return result, err
}

// UpsertMany inserts or updates multiple records.
func (c *CachedRepository[T]) UpsertMany(ctx context.Context, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	result, err := c.base.UpsertMany(ctx, records, criteria...)
	if err == nil {
		for _, record := range result {
			c.afterMutate(ctx, record)
		}
	}
	return result, err
}

// UpsertManyTx inserts or updates multiple records within a transaction.
func (c *CachedRepository[T]) UpsertManyTx(ctx context.Context, tx bun.IDB, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	result, err := c.base.UpsertManyTx(ctx, tx, records, criteria...)
	if err == nil {
		for _, record := range result {
			c.afterMutate(ctx, record)
		}
	}
	return result, err
}

// Delete removes a record and drops it from both cache layers.
func (c *CachedRepository[T]) Delete(ctx context.Context, record T) error {
	err := c.base.Delete(ctx, record)
	if err == nil {
		c.afterDelete(ctx, record)
	}
	return err
}

// DeleteTx removes a record within a transaction.
func (c *CachedRepository[T]) DeleteTx(ctx context.Context, tx bun.IDB, record T) error {
	err := c.base.DeleteTx(ctx, tx, record)
	if err == nil {
		c.afterDelete(ctx, record)
	}
	return err
}

// DeleteMany removes records by criteria. Without the records in hand both
// layers are flushed wholesale.
func (c *CachedRepository[T]) DeleteMany(ctx context.Context, criteria ...repository.DeleteCriteria) error {
	err := c.base.DeleteMany(ctx, criteria...)
	if err == nil {
		c.afterCriteriaMutate(ctx)
	}
	return err
}

// DeleteManyTx removes records by criteria within a transaction.
func (c *CachedRepository[T]) DeleteManyTx(ctx context.Context, tx bun.IDB, criteria ...repository.DeleteCriteria) error {
	err := c.base.DeleteManyTx(ctx, tx, criteria...)
	if err == nil {
		c.afterCriteriaMutate(ctx)
	}
	return err
}

// DeleteWhere removes records by criteria.
func (c *CachedRepository[T]) DeleteWhere(ctx context.Context, criteria ...repository.DeleteCriteria) error {
	err := c.base.DeleteWhere(ctx, criteria...)
	if err == nil {
		c.afterCriteriaMutate(ctx)
	}
	return err
}

// DeleteWhereTx removes records by criteria within a transaction.
func (c *CachedRepository[T]) DeleteWhereTx(ctx context.Context, tx bun.IDB, criteria ...repository.DeleteCriteria) error {
	err := c.base.DeleteWhereTx(ctx, tx, criteria...)
	if err == nil {
		c.afterCriteriaMutate(ctx)
	}
	return err
}

// ForceDelete removes a record bypassing soft delete.
func (c *CachedRepository[T]) ForceDelete(ctx context.Context, record T) error {
	err := c.base.ForceDelete(ctx, record)
	if err == nil {
		c.afterDelete(ctx, record)
	}
	return err
}

// ForceDeleteTx removes a record bypassing soft delete within a transaction.
func (c *CachedRepository[T]) ForceDeleteTx(ctx context.Context, tx bun.IDB, record T) error {
	err := c.base.ForceDeleteTx(ctx, tx, record)
	if err == nil {
		c.afterDelete(ctx, record)
	}
	return err
}

// GetTx reads within a transaction, bypassing the cache so the caller sees
// its own uncommitted writes.
func (c *CachedRepository[T]) GetTx(ctx context.Context, tx bun.IDB, criteria ...repository.SelectCriteria) (T, error) {
	return c.base.GetTx(ctx, tx, criteria...)
}

// GetByIDTx reads by id within a transaction, bypassing the cache.
func (c *CachedRepository[T]) GetByIDTx(ctx context.Context, tx bun.IDB, id string, criteria ...repository.SelectCriteria) (T, error) {
	return c.base.GetByIDTx(ctx, tx, id, criteria...)
}

// ListTx lists within a transaction, bypassing the cache.
func (c *CachedRepository[T]) ListTx(ctx context.Context, tx bun.IDB, criteria ...repository.SelectCriteria) ([]T, int, error) {
	return c.base.ListTx(ctx, tx, criteria...)
}

// CountTx counts within a transaction, bypassing the cache.
func (c *CachedRepository[T]) CountTx(ctx context.Context, tx bun.IDB, criteria ...repository.SelectCriteria) (int, error) {
	return c.base.CountTx(ctx, tx, criteria...)
}

// GetByIdentifierTx reads by identifier within a transaction, bypassing the
// cache.
func (c *CachedRepository[T]) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (T, error) {
	return c.base.GetByIdentifierTx(ctx, tx, identifier, criteria...)
}

// Raw executes a raw SQL query, never cached.
func (c *CachedRepository[T]) Raw(ctx context.Context, sql string, args ...any) ([]T, error) {
	return c.base.Raw(ctx, sql, args...)
}

// RawTx executes a raw SQL query within a transaction, never cached.
func (c *CachedRepository[T]) RawTx(ctx context.Context, tx bun.IDB, sql string, args ...any) ([]T, error) {
	return c.base.RawTx(ctx, tx, sql, args...)
}

// Handlers returns the model handlers from the base repository.
func (c *CachedRepository[T]) Handlers() repository.ModelHandlers[T] {
	return c.base.Handlers()
}

// trackKey registers a query cache key so it can be found for invalidation.
func (c *CachedRepository[T]) trackKey(key string) string {
	c.tracked.Store(key, struct{}{})
	return key
}

// invalidateQueries deletes every tracked query key carrying one of the
// given method prefixes. Delete failures are logged and skipped so one bad
// key cannot block the rest.
func (c *CachedRepository[T]) invalidateQueries(ctx context.Context, prefixes ...string) {
	c.tracked.Range(func(key string, _ struct{}) bool {
		for _, prefix := range prefixes {
			if key == prefix || strings.HasPrefix(key, prefix+cache.KeySeparator) {
				if err := c.queries.Delete(ctx, key); err != nil {
					logging.Logger().WarnContext(ctx, "query cache invalidation failed",
						"key", key, "error", err)
				}
				c.tracked.Delete(key)
				break
			}
		}
		return true
	})
}

// storeEntity puts a record into the identity cache under its extracted id.
// Records without a recognizable id field are skipped.
func (c *CachedRepository[T]) storeEntity(record T) {
	if id, err := extractID(record); err == nil {
		c.entities.Put(id, record)
	}
}

// afterMutate refreshes the identity cache and drops every query result that
// could reflect the old state of the record.
func (c *CachedRepository[T]) afterMutate(ctx context.Context, record T) {
	c.storeEntity(record)
	if id, err := extractID(record); err == nil {
		c.invalidateQueries(ctx, c.prefix("GetByID")+cache.KeySeparator+id)
	}
	c.invalidateQueries(ctx, c.prefix("Get"), c.prefix("GetByIdentifier"), c.prefix("List"), c.prefix("Count"))
}

// afterDelete drops the record from the identity cache plus the dependent
// query results.
func (c *CachedRepository[T]) afterDelete(ctx context.Context, record T) {
	if id, err := extractID(record); err == nil {
		c.entities.Remove(id)
		c.invalidateQueries(ctx, c.prefix("GetByID")+cache.KeySeparator+id)
	}
	c.invalidateQueries(ctx, c.prefix("Get"), c.prefix("GetByIdentifier"), c.prefix("List"), c.prefix("Count"))
}

// afterCriteriaMutate handles mutations where the affected records are
// unknown: both layers are flushed.
func (c *CachedRepository[T]) afterCriteriaMutate(ctx context.Context) {
	for _, record := range c.entities.Find(func(T) bool { return true }) {
		if id, err := extractID(record); err == nil {
			c.entities.Remove(id)
		}
	}
	c.invalidateQueries(ctx, c.prefix("Get"), c.prefix("GetByID"), c.prefix("GetByIdentifier"), c.prefix("List"), c.prefix("Count"))
}

// extractID pulls an id out of a record using reflection over common field
// names.
func extractID[T any](record T) (string, error) {
	v := reflect.ValueOf(record)
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return "", fmt.Errorf("nil record")
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return "", fmt.Errorf("record is not a struct")
	}

	for _, fieldName := range []string{"ID", "Id", "id"} {
		field := v.FieldByName(fieldName)
		if field.IsValid() && field.CanInterface() {
			return fmt.Sprintf("%v", field.Interface()), nil
		}
	}
	return "", fmt.Errorf("no ID field found in record")
}
