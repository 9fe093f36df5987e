package marketdata

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantstack/stresslab/internal/database"
	"github.com/quantstack/stresslab/internal/domain"
)

func TestStaticSectorProvider_KnownTicker(t *testing.T) {
	p := NewStaticSectorProvider(DefaultSectorTable())

	sector, err := p.GetSector("TCS")
	require.NoError(t, err)
	assert.Equal(t, domain.SectorTechnology, sector)

	// Case-insensitive
	sector, err = p.GetSector("reliance")
	require.NoError(t, err)
	assert.Equal(t, domain.SectorEnergy, sector)
}

func TestStaticSectorProvider_UnknownTicker(t *testing.T) {
	p := NewStaticSectorProvider(DefaultSectorTable())

	sector, err := p.GetSector("NOSUCHTICKER")
	require.NoError(t, err, "unknown tickers are tolerated, not errors")
	assert.Equal(t, domain.SectorUnknown, sector)
}

func TestNewStaticSectorProviderFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sectors.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"ACME": "technology", "GLOBEX": "energy"}`), 0o644))

	p, err := NewStaticSectorProviderFromFile(path)
	require.NoError(t, err)

	sector, err := p.GetSector("ACME")
	require.NoError(t, err)
	assert.Equal(t, domain.SectorTechnology, sector)
}

func TestNewStaticSectorProviderFromFile_RejectsUnknownSector(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sectors.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"ACME": "memes"}`), 0o644))

	_, err := NewStaticSectorProviderFromFile(path)
	assert.Error(t, err)
}

func newCacheDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(database.Config{
		Path:    "file:sector_cache_" + t.Name() + "?mode=memory&cache=shared",
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())
	return db
}

func TestSectorCacheRepository_StoreAndGetIfFresh(t *testing.T) {
	db := newCacheDB(t)
	repo := NewSectorCacheRepository(db.Conn())

	require.NoError(t, repo.Store("TCS", domain.SectorTechnology, time.Hour))

	sector, hit, err := repo.GetIfFresh("tcs")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, domain.SectorTechnology, sector)
}

func TestSectorCacheRepository_ExpiredEntryMisses(t *testing.T) {
	db := newCacheDB(t)
	repo := NewSectorCacheRepository(db.Conn())

	require.NoError(t, repo.Store("TCS", domain.SectorTechnology, -time.Minute))

	_, hit, err := repo.GetIfFresh("TCS")
	require.NoError(t, err)
	assert.False(t, hit)

	deleted, err := repo.DeleteExpired()
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

// countingProvider records upstream lookups so tests can assert cache hits.
type countingProvider struct {
	inner SectorProvider
	calls int
}

func (p *countingProvider) GetSector(ticker string) (domain.Sector, error) {
	p.calls++
	return p.inner.GetSector(ticker)
}

func TestCachedSectorProvider_SecondLookupHitsCache(t *testing.T) {
	db := newCacheDB(t)
	upstream := &countingProvider{inner: NewStaticSectorProvider(DefaultSectorTable())}
	cached := NewCachedSectorProvider(upstream, NewSectorCacheRepository(db.Conn()), zerolog.Nop())

	for i := 0; i < 3; i++ {
		sector, err := cached.GetSector("HDFCBANK")
		require.NoError(t, err)
		assert.Equal(t, domain.SectorFinancials, sector)
	}

	assert.Equal(t, 1, upstream.calls, "upstream consulted once, then cache")
}

func TestCachedSectorProvider_CachesUnknowns(t *testing.T) {
	db := newCacheDB(t)
	upstream := &countingProvider{inner: NewStaticSectorProvider(nil)}
	cached := NewCachedSectorProvider(upstream, NewSectorCacheRepository(db.Conn()), zerolog.Nop())

	for i := 0; i < 2; i++ {
		sector, err := cached.GetSector("MYSTERY")
		require.NoError(t, err)
		assert.Equal(t, domain.SectorUnknown, sector)
	}

	assert.Equal(t, 1, upstream.calls, "unresolved lookups are cached too")
}
