package chainadapter

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/hulrap/sandwichcore"
)

// reserveFieldOffset is the byte offset of the base-token reserve field
// within a Raydium v4 / Orca constant-product AMM state account. The
// quote-token reserve immediately follows as a second little-endian u64.
// Pool-cache callers only ever read reserves through GetPoolState, so a
// layout change here is invisible outside this file.
const reserveFieldOffset = 64

// decodePoolAccount decodes a Solana AMM pool account's raw data into the
// chain-agnostic PoolStateView. Both supported Solana protocols expose
// constant-product reserves as two consecutive little-endian u64 fields at a
// fixed offset in the account.
func decodePoolAccount(protocol sandwichcore.Protocol, data []byte) (*PoolStateView, error) {
	switch protocol {
	case sandwichcore.ProtocolRaydium, sandwichcore.ProtocolOrca:
		if len(data) < reserveFieldOffset+16 {
			return nil, fmt.Errorf("chainadapter: pool account too short (%d bytes) to decode reserves", len(data))
		}
		base := binary.LittleEndian.Uint64(data[reserveFieldOffset : reserveFieldOffset+8])
		quote := binary.LittleEndian.Uint64(data[reserveFieldOffset+8 : reserveFieldOffset+16])
		return &PoolStateView{
			ReserveA: new(big.Int).SetUint64(base),
			ReserveB: new(big.Int).SetUint64(quote),
		}, nil
	default:
		return nil, fmt.Errorf("chainadapter: unsupported solana protocol %q", protocol)
	}
}
