package risk

// SectorLookup resolves a symbol to its sector for the concentration and
// correlation checks. Implementations return "" for unknown symbols.
type SectorLookup interface {
	SectorOf(symbol string) string
}

// StaticSectorLookup serves sector membership from a fixed map, typically
// loaded from configuration.
type StaticSectorLookup struct {
	sectors map[string]string
}

var _ SectorLookup = (*StaticSectorLookup)(nil)

// NewStaticSectorLookup builds a lookup over a copy of the given map.
func NewStaticSectorLookup(sectors map[string]string) *StaticSectorLookup {
	copied := make(map[string]string, len(sectors))
	for symbol, sector := range sectors {
		copied[symbol] = sector
	}

	return &StaticSectorLookup{sectors: copied}
}

func (l *StaticSectorLookup) SectorOf(symbol string) string {
	return l.sectors[symbol]
}
