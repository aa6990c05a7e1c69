package watcher

import (
	"strings"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/solana"
)

// Raydium AMM v4 initialize2 account indices.
// The account layout for initialize2:
// 0: Token program
// 1: Associated token program
// 2: System program
// 3: Rent sysvar
// 4: AMM ID (pool)
// 5: AMM authority
// 6: AMM open orders
// 7: LP mint
// 8: Coin mint (base)
// 9: PC mint (quote)
// 10: Pool coin token account
// 11: Pool PC token account
// 12: Pool withdraw queue
// 13: AMM target orders
// 14: Pool temp LP token account
// 15: Serum program
// 16: Serum market
// 17: User wallet
// 18: User coin token account
// 19: User PC token account
// 20: User LP token account
const (
	initPoolIndex       = 4
	initLPMintIndex     = 7
	initBaseMintIndex   = 8
	initQuoteMintIndex  = 9
	initBaseVaultIndex  = 10
	initQuoteVaultIndex = 11

	// initialize2 carries 21 accounts; swaps carry 17-18.
	initMinAccounts = 21
)

// PoolParser extracts pool-creation events from Raydium transactions.
type PoolParser struct{}

// NewPoolParser creates a pool-creation parser.
func NewPoolParser() *PoolParser {
	return &PoolParser{}
}

// Parse inspects a confirmed transaction and returns a PoolCreated event,
// or nil when the transaction is not a WSOL-quoted pool initialization.
func (p *PoolParser) Parse(tx *solana.Transaction, detectedAt int64) *domain.PoolCreated {
	if tx == nil || tx.Meta == nil || tx.Message == nil {
		return nil
	}
	if tx.Meta.Err != nil {
		return nil
	}
	if !hasInitializeLog(tx.Meta.LogMessages) {
		return nil
	}

	inst := findInitInstruction(tx.Message, tx.Meta)
	if inst == nil {
		return nil
	}

	keys := tx.Message.AccountKeys
	pool := keys[inst.Accounts[initPoolIndex]]
	lpMint := keys[inst.Accounts[initLPMintIndex]]
	baseMint := keys[inst.Accounts[initBaseMintIndex]]
	quoteMint := keys[inst.Accounts[initQuoteMintIndex]]

	// Normalize so the new token is the base and WSOL the quote.
	// Pools that do not involve WSOL at all are out of scope. The WSOL
	// vault is kept for the liquidity estimate.
	wsolVault := inst.Accounts[initQuoteVaultIndex]
	switch {
	case quoteMint == solana.WSOLMint:
	case baseMint == solana.WSOLMint:
		wsolVault = inst.Accounts[initBaseVaultIndex]
		baseMint, quoteMint = quoteMint, baseMint
	default:
		return nil
	}
	if baseMint == solana.WSOLMint {
		// WSOL on both sides is not a pool listing.
		return nil
	}

	event := &domain.PoolCreated{
		PoolAddress:      pool,
		BaseMint:         baseMint,
		QuoteMint:        quoteMint,
		LPMint:           lpMint,
		InitialLiquidity: estimateInitialLiquidity(tx.Meta, wsolVault),
		Source:           classifySource(keys, tx.Meta.LogMessages),
		TxSignature:      tx.Signature,
		Slot:             tx.Slot,
		DetectedAt:       detectedAt,
	}
	return event
}

// hasInitializeLog checks for the Raydium pool initialization log line.
func hasInitializeLog(logs []string) bool {
	for _, line := range logs {
		if strings.Contains(line, "initialize2: InitializeInstruction2") ||
			strings.Contains(line, "Instruction: Initialize2") {
			return true
		}
	}
	return false
}

// findInitInstruction returns the Raydium initialize2 instruction, or nil.
// Outer instructions are checked first; graduations execute initialize2 as
// a CPI, so the inner instructions are scanned as well. Inner instruction
// indices reference the same account table.
func findInitInstruction(msg *solana.TransactionMessage, meta *solana.TransactionMeta) *solana.Instruction {
	if inst := matchInitInstruction(msg.Instructions, msg.AccountKeys); inst != nil {
		return inst
	}
	for i := range meta.InnerInstructions {
		if inst := matchInitInstruction(meta.InnerInstructions[i].Instructions, msg.AccountKeys); inst != nil {
			return inst
		}
	}
	return nil
}

func matchInitInstruction(instructions []solana.Instruction, keys []string) *solana.Instruction {
	for i := range instructions {
		inst := &instructions[i]
		if inst.ProgramIDIndex >= len(keys) {
			continue
		}
		if keys[inst.ProgramIDIndex] != solana.RaydiumAMMV4Program {
			continue
		}
		if len(inst.Accounts) < initMinAccounts {
			continue
		}
		if !accountsInRange(inst.Accounts, len(keys)) {
			continue
		}
		return inst
	}
	return nil
}

func accountsInRange(accounts []int, numKeys int) bool {
	for _, idx := range accounts {
		if idx < 0 || idx >= numKeys {
			return false
		}
	}
	return true
}

// classifySource distinguishes direct Raydium listings from pump.fun
// graduations, which migrate liquidity and reference the pump.fun program
// in the same transaction.
func classifySource(accountKeys []string, logs []string) domain.Source {
	for _, key := range accountKeys {
		if key == solana.PumpFunProgram {
			return domain.SourcePumpFunGraduation
		}
	}
	for _, line := range logs {
		if strings.Contains(line, solana.PumpFunProgram) {
			return domain.SourcePumpFunGraduation
		}
	}
	return domain.SourceRaydium
}

// estimateInitialLiquidity derives the quote-side deposit. Primary: the
// lamport delta of the WSOL vault account, which is funded in the creation
// transaction itself. Fallback for transactions with truncated native
// balance arrays: the largest positive WSOL token-balance delta.
func estimateInitialLiquidity(meta *solana.TransactionMeta, vaultIndex int) uint64 {
	if vaultIndex < len(meta.PreBalances) && vaultIndex < len(meta.PostBalances) {
		pre, post := meta.PreBalances[vaultIndex], meta.PostBalances[vaultIndex]
		if post > pre {
			return post - pre
		}
	}

	pre := make(map[int]uint64)
	for _, b := range meta.PreTokenBalances {
		if b.Mint == solana.WSOLMint {
			pre[b.AccountIndex] = parseAmount(b.Amount.Amount)
		}
	}

	var best uint64
	for _, b := range meta.PostTokenBalances {
		if b.Mint != solana.WSOLMint {
			continue
		}
		post := parseAmount(b.Amount.Amount)
		if before, ok := pre[b.AccountIndex]; ok {
			if post > before && post-before > best {
				best = post - before
			}
		} else if post > best {
			best = post
		}
	}
	return best
}

// parseAmount converts a raw decimal amount string to uint64, zero on junk.
func parseAmount(s string) uint64 {
	var v uint64
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		v = v*10 + uint64(c-'0')
	}
	return v
}
