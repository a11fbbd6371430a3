package builder

import (
	"context"
	"fmt"

	solanago "github.com/gagliardetto/solana-go"

	"github.com/hulrap/sandwichcore"
)

// SolanaInstructionBuilder constructs the program-specific swap instruction
// for a given protocol (Raydium/Orca/Jupiter). Each protocol's account and
// instruction-data layout is program-specific and lives outside this
// package; SolanaTxFactory only wraps whatever instruction it returns in a
// transaction with the Jito tip appended.
type SolanaInstructionBuilder interface {
	SwapInstruction(opp *sandwichcore.Opportunity, amountIn uint64, payer solanago.PublicKey) (solanago.Instruction, error)
}

// SolanaTxFactory builds unsigned front-run/back-run Solana transactions: one
// swap instruction plus, for the back-run leg, a tip transfer to the Jito
// tip account so the bundle clears the relay's minimum.
type SolanaTxFactory struct {
	Payer          solanago.PublicKey
	TipAccount     solanago.PublicKey
	Instructions   SolanaInstructionBuilder
	RecentBlockhash func(ctx context.Context) (solanago.Hash, error)
}

func (f *SolanaTxFactory) buildTx(ctx context.Context, opp *sandwichcore.Opportunity, amountIn uint64, tipLamports uint64) (*solanago.Transaction, error) {
	swapIx, err := f.Instructions.SwapInstruction(opp, amountIn, f.Payer)
	if err != nil {
		return nil, fmt.Errorf("builder: build solana swap instruction: %w", err)
	}

	instructions := []solanago.Instruction{swapIx}
	if tipLamports > 0 {
		tipIx, err := tipTransferInstruction(f.Payer, f.TipAccount, tipLamports)
		if err != nil {
			return nil, fmt.Errorf("builder: build tip instruction: %w", err)
		}
		instructions = append(instructions, tipIx)
	}

	blockhash, err := f.RecentBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("builder: fetch recent blockhash: %w", err)
	}

	tx, err := solanago.NewTransaction(instructions, blockhash, solanago.TransactionPayer(f.Payer))
	if err != nil {
		return nil, fmt.Errorf("builder: assemble solana transaction: %w", err)
	}
	return tx, nil
}

// FrontRunTx builds the buy-side swap instruction with no tip attached; the
// Jito tip rides on the back-run transaction only, per Jito's bundle model
// where a single tip covers the whole bundle.
func (f *SolanaTxFactory) FrontRunTx(ctx context.Context, opp *sandwichcore.Opportunity, gas GasPlan) (any, error) {
	return f.buildTx(ctx, opp, opp.FrontRunAmount.Uint64(), 0)
}

// BackRunTx builds the sell-side swap instruction with the bundle's tip.
func (f *SolanaTxFactory) BackRunTx(ctx context.Context, opp *sandwichcore.Opportunity, gas GasPlan) (any, error) {
	return f.buildTx(ctx, opp, opp.BackRunAmount.Uint64(), gas.TipAmount)
}

func tipTransferInstruction(from, to solanago.PublicKey, lamports uint64) (solanago.Instruction, error) {
	return solanago.NewInstruction(
		solanago.SystemProgramID,
		solanago.AccountMetaSlice{
			{PublicKey: from, IsSigner: true, IsWritable: true},
			{PublicKey: to, IsSigner: false, IsWritable: true},
		},
		systemTransferData(lamports),
	), nil
}

// systemTransferData encodes a System Program Transfer instruction: a u32
// instruction discriminant (2) followed by a little-endian u64 lamports
// amount, per the System Program's documented binary layout.
func systemTransferData(lamports uint64) []byte {
	data := make([]byte, 12)
	data[0] = 2
	for i := 0; i < 8; i++ {
		data[4+i] = byte(lamports >> (8 * i))
	}
	return data
}
