// Package marketdata provides the sector lookup consumed by the stress-test
// engine. Price retrieval itself is out of scope: the engine only needs to
// classify a holding's sector, and tolerates unknowns.
package marketdata

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/quantstack/stresslab/internal/domain"
)

// SectorProvider classifies a ticker into the fixed sector vocabulary.
// Implementations must return domain.SectorUnknown (with a nil error) when
// the ticker cannot be classified; holdings with an unknown sector are
// stressed with the scenario's blanket market impact only.
type SectorProvider interface {
	GetSector(ticker string) (domain.Sector, error)
}

// StaticSectorProvider resolves sectors from an in-memory table. The table
// is read-only after construction, so lookups are safe for concurrent use.
type StaticSectorProvider struct {
	sectors map[string]domain.Sector
}

// NewStaticSectorProvider creates a provider from an explicit ticker->sector
// table. Tickers are matched case-insensitively.
func NewStaticSectorProvider(table map[string]domain.Sector) *StaticSectorProvider {
	sectors := make(map[string]domain.Sector, len(table))
	for ticker, sector := range table {
		sectors[strings.ToUpper(ticker)] = sector
	}
	return &StaticSectorProvider{sectors: sectors}
}

// NewStaticSectorProviderFromFile loads the table from a JSON file of the
// form {"TICKER": "sector", ...}. Unknown sector names are rejected up
// front rather than silently misclassifying at simulation time.
func NewStaticSectorProviderFromFile(path string) (*StaticSectorProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sector table: %w", err)
	}

	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse sector table: %w", err)
	}

	table := make(map[string]domain.Sector, len(raw))
	for ticker, name := range raw {
		sector := domain.Sector(strings.ToLower(name))
		if !domain.ValidSector(sector) {
			return nil, fmt.Errorf("sector table entry %s: unknown sector %q", ticker, name)
		}
		table[ticker] = sector
	}

	return NewStaticSectorProvider(table), nil
}

// GetSector returns the sector for a ticker, or domain.SectorUnknown when
// the ticker is not in the table.
func (p *StaticSectorProvider) GetSector(ticker string) (domain.Sector, error) {
	sector, ok := p.sectors[strings.ToUpper(ticker)]
	if !ok {
		return domain.SectorUnknown, nil
	}
	return sector, nil
}

// DefaultSectorTable covers the tickers seen in research-platform portfolios.
// Deployments extend or replace it via SECTOR_TABLE_PATH.
func DefaultSectorTable() map[string]domain.Sector {
	return map[string]domain.Sector{
		"RELIANCE":   domain.SectorEnergy,
		"ONGC":       domain.SectorEnergy,
		"TCS":        domain.SectorTechnology,
		"INFY":       domain.SectorTechnology,
		"WIPRO":      domain.SectorTechnology,
		"HCLTECH":    domain.SectorTechnology,
		"HDFCBANK":   domain.SectorFinancials,
		"ICICIBANK":  domain.SectorFinancials,
		"SBIN":       domain.SectorFinancials,
		"KOTAKBANK":  domain.SectorFinancials,
		"BAJFINANCE": domain.SectorFinancials,
		"SUNPHARMA":  domain.SectorHealthcare,
		"CIPLA":      domain.SectorHealthcare,
		"DRREDDY":    domain.SectorHealthcare,
		"HINDUNILVR": domain.SectorConsumer,
		"ITC":        domain.SectorConsumer,
		"NESTLEIND":  domain.SectorConsumer,
		"TITAN":      domain.SectorConsumer,
		"LT":         domain.SectorIndustrial,
		"TATAMOTORS": domain.SectorIndustrial,
		"TATASTEEL":  domain.SectorMaterials,
		"HINDALCO":   domain.SectorMaterials,
		"ULTRACEMCO": domain.SectorMaterials,
		"NTPC":       domain.SectorUtilities,
		"POWERGRID":  domain.SectorUtilities,
		"DLF":        domain.SectorRealEstate,
		"INDIGO":     domain.SectorTravel,
		"INDHOTEL":   domain.SectorTravel,
	}
}
