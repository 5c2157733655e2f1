package entitycache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/hydra-platform/go-hydra-core/cache"
)

type account struct {
	ID       uuid.UUID `json:"id" bun:"id,pk"`
	Name     string    `json:"name" bun:"name"`
	IsActive bool      `json:"is_active" bun:"is_active"`
}

// mockAccountRepo is an in-memory repository that counts base calls so tests
// can tell cache hits from pass-throughs.
type mockAccountRepo struct {
	mu       sync.RWMutex
	accounts map[string]account
	calls    map[string]*int64

	// when set, GetByID blocks until the channel closes
	release chan struct{}
}

func newMockAccountRepo() *mockAccountRepo {
	return &mockAccountRepo{
		accounts: make(map[string]account),
		calls:    make(map[string]*int64),
	}
}

func (m *mockAccountRepo) trackCall(method string) {
	m.mu.Lock()
	counter, ok := m.calls[method]
	if !ok {
		counter = new(int64)
		m.calls[method] = counter
	}
	m.mu.Unlock()
	atomic.AddInt64(counter, 1)
}

func (m *mockAccountRepo) callCount(method string) int {
	m.mu.RLock()
	counter, ok := m.calls[method]
	m.mu.RUnlock()
	if !ok {
		return 0
	}
	return int(atomic.LoadInt64(counter))
}

func (m *mockAccountRepo) GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (account, error) {
	m.trackCall("GetByID")
	if m.release != nil {
		<-m.release
	}
	m.mu.RLock()
	record, exists := m.accounts[id]
	m.mu.RUnlock()
	if !exists {
		return account{}, errors.New("account not found")
	}
	return record, nil
}

func (m *mockAccountRepo) Get(ctx context.Context, criteria ...repository.SelectCriteria) (account, error) {
	m.trackCall("Get")
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, record := range m.accounts {
		return record, nil
	}
	return account{}, errors.New("no accounts")
}

func (m *mockAccountRepo) List(ctx context.Context, criteria ...repository.SelectCriteria) ([]account, int, error) {
	m.trackCall("List")
	m.mu.RLock()
	defer m.mu.RUnlock()
	records := make([]account, 0, len(m.accounts))
	for _, record := range m.accounts {
		records = append(records, record)
	}
	return records, len(records), nil
}

func (m *mockAccountRepo) Count(ctx context.Context, criteria ...repository.SelectCriteria) (int, error) {
	m.trackCall("Count")
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.accounts), nil
}

func (m *mockAccountRepo) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (account, error) {
	m.trackCall("GetByIdentifier")
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, record := range m.accounts {
		if record.Name == identifier {
			return record, nil
		}
	}
	return account{}, errors.New("account not found")
}

func (m *mockAccountRepo) Create(ctx context.Context, record account, criteria ...repository.InsertCriteria) (account, error) {
	m.trackCall("Create")
	m.mu.Lock()
	m.accounts[record.ID.String()] = record
	m.mu.Unlock()
	return record, nil
}

func (m *mockAccountRepo) Update(ctx context.Context, record account, criteria ...repository.UpdateCriteria) (account, error) {
	m.trackCall("Update")
	m.mu.Lock()
	m.accounts[record.ID.String()] = record
	m.mu.Unlock()
	return record, nil
}

func (m *mockAccountRepo) Delete(ctx context.Context, record account) error {
	m.trackCall("Delete")
	m.mu.Lock()
	delete(m.accounts, record.ID.String())
	m.mu.Unlock()
	return nil
}

func (m *mockAccountRepo) CreateTx(ctx context.Context, tx bun.IDB, record account, criteria ...repository.InsertCriteria) (account, error) {
	return m.Create(ctx, record, criteria...)
}
func (m *mockAccountRepo) CreateMany(ctx context.Context, records []account, criteria ...repository.InsertCriteria) ([]account, error) {
	for _, record := range records {
		m.Create(ctx, record, criteria...)
	}
	return records, nil
}
func (m *mockAccountRepo) CreateManyTx(ctx context.Context, tx bun.IDB, records []account, criteria ...repository.InsertCriteria) ([]account, error) {
	return m.CreateMany(ctx, records, criteria...)
}
func (m *mockAccountRepo) GetOrCreate(ctx context.Context, record account) (account, error) {
	m.mu.RLock()
	existing, exists := m.accounts[record.ID.String()]
	m.mu.RUnlock()
	if exists {
		return existing, nil
	}
	return m.Create(ctx, record)
}
func (m *mockAccountRepo) GetOrCreateTx(ctx context.Context, tx bun.IDB, record account) (account, error) {
	return m.GetOrCreate(ctx, record)
}
func (m *mockAccountRepo) UpdateTx(ctx context.Context, tx bun.IDB, record account, criteria ...repository.UpdateCriteria) (account, error) {
	return m.Update(ctx, record, criteria...)
}
func (m *mockAccountRepo) UpdateMany(ctx context.Context, records []account, criteria ...repository.UpdateCriteria) ([]account, error) {
	for _, record := range records {
		m.Update(ctx, record, criteria...)
	}
	return records, nil
}
func (m *mockAccountRepo) UpdateManyTx(ctx context.Context, tx bun.IDB, records []account, criteria ...repository.UpdateCriteria) ([]account, error) {
	return m.UpdateMany(ctx, records, criteria...)
}
func (m *mockAccountRepo) Upsert(ctx context.Context, record account, criteria ...repository.UpdateCriteria) (account, error) {
	return m.Update(ctx, record, criteria...)
}
func (m *mockAccountRepo) UpsertTx(ctx context.Context, tx bun.IDB, record account, criteria ...repository.UpdateCriteria) (account, error) {
	return m.Upsert(ctx, record, criteria...)
}
func (m *mockAccountRepo) UpsertMany(ctx context.Context, records []account, criteria ...repository.UpdateCriteria) ([]account, error) {
	return m.UpdateMany(ctx, records, criteria...)
}
func (m *mockAccountRepo) UpsertManyTx(ctx context.Context, tx bun.IDB, records []account, criteria ...repository.UpdateCriteria) ([]account, error) {
	return m.UpsertMany(ctx, records, criteria...)
}
func (m *mockAccountRepo) DeleteTx(ctx context.Context, tx bun.IDB, record account) error {
	return m.Delete(ctx, record)
}
func (m *mockAccountRepo) DeleteMany(ctx context.Context, criteria ...repository.DeleteCriteria) error {
	m.trackCall("DeleteMany")
	m.mu.Lock()
	m.accounts = make(map[string]account)
	m.mu.Unlock()
	return nil
}
func (m *mockAccountRepo) DeleteManyTx(ctx context.Context, tx bun.IDB, criteria ...repository.DeleteCriteria) error {
	return m.DeleteMany(ctx, criteria...)
}
func (m *mockAccountRepo) DeleteWhere(ctx context.Context, criteria ...repository.DeleteCriteria) error {
	return m.DeleteMany(ctx, criteria...)
}
func (m *mockAccountRepo) DeleteWhereTx(ctx context.Context, tx bun.IDB, criteria ...repository.DeleteCriteria) error {
	return m.DeleteWhere(ctx, criteria...)
}
func (m *mockAccountRepo) ForceDelete(ctx context.Context, record account) error {
	return m.Delete(ctx, record)
}
func (m *mockAccountRepo) ForceDeleteTx(ctx context.Context, tx bun.IDB, record account) error {
	return m.ForceDelete(ctx, record)
}
func (m *mockAccountRepo) GetTx(ctx context.Context, tx bun.IDB, criteria ...repository.SelectCriteria) (account, error) {
	return m.Get(ctx, criteria...)
}
func (m *mockAccountRepo) GetByIDTx(ctx context.Context, tx bun.IDB, id string, criteria ...repository.SelectCriteria) (account, error) {
	return m.GetByID(ctx, id, criteria...)
}
func (m *mockAccountRepo) ListTx(ctx context.Context, tx bun.IDB, criteria ...repository.SelectCriteria) ([]account, int, error) {
	return m.List(ctx, criteria...)
}
func (m *mockAccountRepo) CountTx(ctx context.Context, tx bun.IDB, criteria ...repository.SelectCriteria) (int, error) {
	return m.Count(ctx, criteria...)
}
func (m *mockAccountRepo) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (account, error) {
	return m.GetByIdentifier(ctx, identifier, criteria...)
}
func (m *mockAccountRepo) Raw(ctx context.Context, sql string, args ...any) ([]account, error) {
	m.trackCall("Raw")
	return nil, errors.New("raw queries not supported in mock")
}
func (m *mockAccountRepo) RawTx(ctx context.Context, tx bun.IDB, sql string, args ...any) ([]account, error) {
	return m.Raw(ctx, sql, args...)
}
func (m *mockAccountRepo) Handlers() repository.ModelHandlers[account] {
	return repository.ModelHandlers[account]{}
}

var _ repository.Repository[account] = (*mockAccountRepo)(nil)

func newTestRepo(t *testing.T) (*CachedRepository[account], *mockAccountRepo) {
	t.Helper()

	entities, err := cache.NewLRU[string, account](cache.Config{Capacity: 16})
	require.NoError(t, err)

	cfg := cache.DefaultQueryConfig()
	cfg.TTL = time.Minute
	queries, err := cache.NewQueryCache(cfg)
	require.NoError(t, err)

	base := newMockAccountRepo()
	return New[account]("account", base, entities, queries, cache.NewKeyBuilder()), base
}

func seedAccount(t *testing.T, base *mockAccountRepo, name string) account {
	t.Helper()
	record := account{ID: uuid.New(), Name: name, IsActive: true}
	_, err := base.Create(context.Background(), record)
	require.NoError(t, err)
	return record
}

func TestCachedRepository_GetByID_IdentityCache(t *testing.T) {
	repo, base := newTestRepo(t)
	ctx := context.Background()
	seeded := seedAccount(t, base, "alice")

	got, err := repo.GetByID(ctx, seeded.ID.String())
	require.NoError(t, err)
	require.Equal(t, seeded, got)
	require.Equal(t, 1, base.callCount("GetByID"))

	got, err = repo.GetByID(ctx, seeded.ID.String())
	require.NoError(t, err)
	require.Equal(t, seeded, got)
	require.Equal(t, 1, base.callCount("GetByID"), "second lookup should be a cache hit")
}

func TestCachedRepository_GetByID_ConcurrentMissesShareOneFetch(t *testing.T) {
	repo, base := newTestRepo(t)
	ctx := context.Background()
	seeded := seedAccount(t, base, "alice")
	base.release = make(chan struct{})

	const callers = 16
	var wg sync.WaitGroup
	results := make([]account, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = repo.GetByID(ctx, seeded.ID.String())
		}(i)
	}

	// let every caller reach the in-flight fetch before it completes
	time.Sleep(50 * time.Millisecond)
	close(base.release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, seeded, results[i])
	}
	require.Equal(t, 1, base.callCount("GetByID"))
}

func TestCachedRepository_GetByID_ErrorNotCached(t *testing.T) {
	repo, base := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.GetByID(ctx, uuid.NewString())
	require.Error(t, err)
	_, err = repo.GetByID(ctx, uuid.NewString())
	require.Error(t, err)
	require.Equal(t, 2, base.callCount("GetByID"))
}

func TestCachedRepository_GetByID_WithCriteriaUsesQueryCache(t *testing.T) {
	repo, base := newTestRepo(t)
	ctx := context.Background()
	seeded := seedAccount(t, base, "alice")

	active := func(q *bun.SelectQuery) *bun.SelectQuery { return q.Where("is_active = TRUE") }

	for i := 0; i < 3; i++ {
		got, err := repo.GetByID(ctx, seeded.ID.String(), active)
		require.NoError(t, err)
		require.Equal(t, seeded, got)
	}
	require.Equal(t, 1, base.callCount("GetByID"))
}

func TestCachedRepository_List_CachedUntilWrite(t *testing.T) {
	repo, base := newTestRepo(t)
	ctx := context.Background()
	seedAccount(t, base, "alice")

	records, total, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, 1, total)

	_, _, err = repo.List(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, base.callCount("List"))

	_, err = repo.Create(ctx, account{ID: uuid.New(), Name: "bob", IsActive: true})
	require.NoError(t, err)

	records, total, err = repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, 2, total)
	require.Equal(t, 2, base.callCount("List"))
}

func TestCachedRepository_Count_CachedUntilWrite(t *testing.T) {
	repo, base := newTestRepo(t)
	ctx := context.Background()
	seedAccount(t, base, "alice")

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	_, err = repo.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, base.callCount("Count"))

	_, err = repo.Create(ctx, account{ID: uuid.New(), Name: "bob"})
	require.NoError(t, err)

	count, err = repo.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, count)
	require.Equal(t, 2, base.callCount("Count"))
}

func TestCachedRepository_Create_PrimesIdentityCache(t *testing.T) {
	repo, base := newTestRepo(t)
	ctx := context.Background()

	record := account{ID: uuid.New(), Name: "carol", IsActive: true}
	created, err := repo.Create(ctx, record)
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, created.ID.String())
	require.NoError(t, err)
	require.Equal(t, created, got)
	require.Equal(t, 0, base.callCount("GetByID"), "read after create should not touch the base")
}

func TestCachedRepository_Update_RefreshesIdentityCache(t *testing.T) {
	repo, base := newTestRepo(t)
	ctx := context.Background()
	seeded := seedAccount(t, base, "alice")

	_, err := repo.GetByID(ctx, seeded.ID.String())
	require.NoError(t, err)

	updated := seeded
	updated.Name = "alice-renamed"
	_, err = repo.Update(ctx, updated)
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, seeded.ID.String())
	require.NoError(t, err)
	require.Equal(t, "alice-renamed", got.Name)
	require.Equal(t, 1, base.callCount("GetByID"), "updated record should be served from cache")
}

func TestCachedRepository_Delete_EvictsIdentityCache(t *testing.T) {
	repo, base := newTestRepo(t)
	ctx := context.Background()
	seeded := seedAccount(t, base, "alice")

	_, err := repo.GetByID(ctx, seeded.ID.String())
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, seeded))

	_, err = repo.GetByID(ctx, seeded.ID.String())
	require.Error(t, err)
	require.Equal(t, 2, base.callCount("GetByID"))
}

func TestCachedRepository_DeleteMany_FlushesBothLayers(t *testing.T) {
	repo, base := newTestRepo(t)
	ctx := context.Background()
	seeded := seedAccount(t, base, "alice")

	_, err := repo.GetByID(ctx, seeded.ID.String())
	require.NoError(t, err)
	_, _, err = repo.List(ctx)
	require.NoError(t, err)

	require.NoError(t, repo.DeleteMany(ctx))

	_, err = repo.GetByID(ctx, seeded.ID.String())
	require.Error(t, err)
	require.Equal(t, 2, base.callCount("GetByID"))

	records, total, err := repo.List(ctx)
	require.NoError(t, err)
	require.Empty(t, records)
	require.Equal(t, 0, total)
	require.Equal(t, 2, base.callCount("List"))
}

func TestCachedRepository_GetByIdentifier_Cached(t *testing.T) {
	repo, base := newTestRepo(t)
	ctx := context.Background()
	seeded := seedAccount(t, base, "alice")

	for i := 0; i < 3; i++ {
		got, err := repo.GetByIdentifier(ctx, "alice")
		require.NoError(t, err)
		require.Equal(t, seeded, got)
	}
	require.Equal(t, 1, base.callCount("GetByIdentifier"))
}

func TestCachedRepository_TxReadsBypassCache(t *testing.T) {
	repo, base := newTestRepo(t)
	ctx := context.Background()
	seeded := seedAccount(t, base, "alice")

	for i := 0; i < 2; i++ {
		got, err := repo.GetByIDTx(ctx, nil, seeded.ID.String())
		require.NoError(t, err)
		require.Equal(t, seeded, got)
	}
	require.Equal(t, 2, base.callCount("GetByID"))

	_, _, err := repo.ListTx(ctx, nil)
	require.NoError(t, err)
	_, _, err = repo.ListTx(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, 2, base.callCount("List"))
}

func TestCachedRepository_Find_ScansCachedEntities(t *testing.T) {
	repo, base := newTestRepo(t)
	ctx := context.Background()

	active := seedAccount(t, base, "alice")
	inactive := account{ID: uuid.New(), Name: "bob", IsActive: false}
	_, err := base.Create(ctx, inactive)
	require.NoError(t, err)

	// only cached records are visible to Find
	_, err = repo.GetByID(ctx, active.ID.String())
	require.NoError(t, err)
	_, err = repo.GetByID(ctx, inactive.ID.String())
	require.NoError(t, err)

	found := repo.Find(func(a account) bool { return a.IsActive })
	require.Len(t, found, 1)
	require.Equal(t, active.ID, found[0].ID)
}

func TestCachedRepository_HandlersPassThrough(t *testing.T) {
	repo, _ := newTestRepo(t)
	_ = repo.Handlers()
}

func TestCachedRepository_SharedQueryCacheScopedByEntity(t *testing.T) {
	ctx := context.Background()

	cfg := cache.DefaultQueryConfig()
	cfg.TTL = time.Minute
	queries, err := cache.NewQueryCache(cfg)
	require.NoError(t, err)
	keys := cache.NewKeyBuilder()

	newRepo := func(name string) (*CachedRepository[account], *mockAccountRepo) {
		entities, err := cache.NewLRU[string, account](cache.Config{Capacity: 16})
		require.NoError(t, err)
		base := newMockAccountRepo()
		return New[account](name, base, entities, queries, keys), base
	}

	widgets, widgetBase := newRepo("widget")
	gadgets, gadgetBase := newRepo("gadget")

	seedAccount(t, widgetBase, "alice")
	seedAccount(t, gadgetBase, "bob")
	seedAccount(t, gadgetBase, "carol")

	records, total, err := widgets.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, 1, total)

	// an identically shaped query on the second repository must not be
	// served from the first repository's cached result
	records, total, err = gadgets.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, 2, total)
	require.Equal(t, 1, widgetBase.callCount("List"))
	require.Equal(t, 1, gadgetBase.callCount("List"))

	// and each repository keeps its own cached entry
	_, total, err = widgets.List(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, 1, widgetBase.callCount("List"))
}

func TestCachedRepository_Update_InvalidatesDigestedCriteriaKeys(t *testing.T) {
	repo, base := newTestRepo(t)
	ctx := context.Background()
	seeded := seedAccount(t, base, "alice")

	// enough criteria to push the query key past the digest threshold
	criteria := make([]repository.SelectCriteria, 8)
	for i := range criteria {
		criteria[i] = func(q *bun.SelectQuery) *bun.SelectQuery { return q.Where("is_active = TRUE") }
	}

	got, err := repo.GetByID(ctx, seeded.ID.String(), criteria...)
	require.NoError(t, err)
	require.Equal(t, "alice", got.Name)
	require.Equal(t, 1, base.callCount("GetByID"))

	updated := seeded
	updated.Name = "alice-renamed"
	_, err = repo.Update(ctx, updated)
	require.NoError(t, err)

	got, err = repo.GetByID(ctx, seeded.ID.String(), criteria...)
	require.NoError(t, err)
	require.Equal(t, "alice-renamed", got.Name, "update must evict digested per-id query keys")
	require.Equal(t, 2, base.callCount("GetByID"))
}
