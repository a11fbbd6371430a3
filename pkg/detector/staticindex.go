package detector

import "github.com/hulrap/sandwichcore"

// StaticPoolIndexer resolves pool IDs from a fixed table built at startup
// from the operator's configuration. Token order does not matter: pairs are
// normalized so (tokenA, tokenB) and (tokenB, tokenA) resolve to the same
// entry.
type StaticPoolIndexer struct {
	byPair map[string]string
}

// NewStaticPoolIndexer builds an indexer from (protocol, tokenA, tokenB,
// poolID) tuples.
func NewStaticPoolIndexer(entries []PoolEntry) *StaticPoolIndexer {
	byPair := make(map[string]string, len(entries))
	for _, e := range entries {
		byPair[pairKey(e.Protocol, e.TokenA, e.TokenB)] = e.PoolID
	}
	return &StaticPoolIndexer{byPair: byPair}
}

// PoolEntry is one configured (protocol, pair) -> pool ID mapping.
type PoolEntry struct {
	Protocol sandwichcore.Protocol
	TokenA   string
	TokenB   string
	PoolID   string
}

// PoolID implements PoolIndexer.
func (s *StaticPoolIndexer) PoolID(protocol sandwichcore.Protocol, tokenA, tokenB string) (string, bool) {
	id, ok := s.byPair[pairKey(protocol, tokenA, tokenB)]
	return id, ok
}

func pairKey(protocol sandwichcore.Protocol, tokenA, tokenB string) string {
	a, b := tokenA, tokenB
	if a > b {
		a, b = b, a
	}
	return string(protocol) + ":" + a + ":" + b
}
