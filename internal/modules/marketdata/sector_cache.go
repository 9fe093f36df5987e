package marketdata

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/quantstack/stresslab/internal/domain"
)

// TTLSectorLookup is the cache lifetime for sector classifications. Sector
// membership is near-static company metadata.
const TTLSectorLookup = 30 * 24 * time.Hour

// sectorEntry is the cached payload, serialized with msgpack.
type sectorEntry struct {
	Sector   string `msgpack:"sector"`
	Resolved bool   `msgpack:"resolved"`
}

// SectorCacheRepository stores sector lookups in cache.db with expiration
// timestamps for cache-first behavior.
type SectorCacheRepository struct {
	db *sql.DB
}

// NewSectorCacheRepository creates a new sector cache repository.
func NewSectorCacheRepository(db *sql.DB) *SectorCacheRepository {
	return &SectorCacheRepository{db: db}
}

// Store saves a classification with expiration = now + ttl. Unresolved
// lookups are cached too, so unknown tickers do not hammer the upstream
// provider on every run.
func (r *SectorCacheRepository) Store(ticker string, sector domain.Sector, ttl time.Duration) error {
	entry := sectorEntry{Sector: string(sector), Resolved: sector != domain.SectorUnknown}

	data, err := msgpack.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal sector entry: %w", err)
	}

	expiresAt := time.Now().Add(ttl).Unix()
	_, err = r.db.Exec(
		"INSERT OR REPLACE INTO sector_lookups (ticker, data, expires_at) VALUES (?, ?, ?)",
		strings.ToUpper(ticker), data, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store sector entry: %w", err)
	}

	return nil
}

// GetIfFresh returns the cached sector only if it has not expired. The
// second return value reports a cache hit.
func (r *SectorCacheRepository) GetIfFresh(ticker string) (domain.Sector, bool, error) {
	var data []byte
	err := r.db.QueryRow(
		"SELECT data FROM sector_lookups WHERE ticker = ? AND expires_at > ?",
		strings.ToUpper(ticker), time.Now().Unix(),
	).Scan(&data)
	if err == sql.ErrNoRows {
		return domain.SectorUnknown, false, nil
	}
	if err != nil {
		return domain.SectorUnknown, false, fmt.Errorf("failed to read sector cache: %w", err)
	}

	var entry sectorEntry
	if err := msgpack.Unmarshal(data, &entry); err != nil {
		return domain.SectorUnknown, false, fmt.Errorf("failed to unmarshal sector entry: %w", err)
	}

	return domain.Sector(entry.Sector), true, nil
}

// DeleteExpired removes stale entries and returns the number deleted.
func (r *SectorCacheRepository) DeleteExpired() (int64, error) {
	result, err := r.db.Exec("DELETE FROM sector_lookups WHERE expires_at <= ?", time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sector entries: %w", err)
	}
	return result.RowsAffected()
}

// CachedSectorProvider decorates a SectorProvider with the SQLite-backed
// cache. Lookups hit the cache first; misses fall through to the upstream
// provider and are written back.
type CachedSectorProvider struct {
	upstream SectorProvider
	cache    *SectorCacheRepository
	ttl      time.Duration
	log      zerolog.Logger
}

// NewCachedSectorProvider creates a caching decorator around upstream.
func NewCachedSectorProvider(upstream SectorProvider, cache *SectorCacheRepository, log zerolog.Logger) *CachedSectorProvider {
	return &CachedSectorProvider{
		upstream: upstream,
		cache:    cache,
		ttl:      TTLSectorLookup,
		log:      log.With().Str("component", "sector_cache").Logger(),
	}
}

// GetSector resolves a ticker's sector, cache-first. Cache failures degrade
// to the upstream provider rather than failing the lookup.
func (p *CachedSectorProvider) GetSector(ticker string) (domain.Sector, error) {
	sector, hit, err := p.cache.GetIfFresh(ticker)
	if err != nil {
		p.log.Warn().Err(err).Str("ticker", ticker).Msg("Sector cache read failed, falling through")
	} else if hit {
		return sector, nil
	}

	sector, err = p.upstream.GetSector(ticker)
	if err != nil {
		return domain.SectorUnknown, err
	}

	if storeErr := p.cache.Store(ticker, sector, p.ttl); storeErr != nil {
		p.log.Warn().Err(storeErr).Str("ticker", ticker).Msg("Failed to cache sector lookup")
	}

	return sector, nil
}
