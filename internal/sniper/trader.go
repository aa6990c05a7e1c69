package sniper

import (
	"context"
	"fmt"

	"solana-pool-sniper/internal/solana"
)

// TokenBalance returns the wallet's balance for a mint in base units.
func (e *Executor) TokenBalance(ctx context.Context, mint string) (uint64, error) {
	return e.rpc.GetTokenBalanceByOwner(ctx, e.wallet.Address(), mint)
}

// Price derives the current lamports-per-base-unit price from a reverse
// quote over a small representative sample of the holding.
func (e *Executor) Price(ctx context.Context, mint string, sampleTokens uint64) (float64, error) {
	if sampleTokens == 0 {
		return 0, fmt.Errorf("zero sample amount")
	}

	quote, err := e.quoter.Quote(ctx, mint, solana.WSOLMint, sampleTokens, e.slippageBps)
	if err != nil {
		return 0, err
	}
	return float64(quote.OutAmount) / float64(sampleTokens), nil
}

// Sell swaps tokens back to SOL: quote, build, sign, submit, confirm.
// No simulation on the exit path. Returns the transaction signature and
// the quoted lamports recovered.
func (e *Executor) Sell(ctx context.Context, mint string, tokens uint64) (string, uint64, error) {
	quote, err := e.quoter.Quote(ctx, mint, solana.WSOLMint, tokens, e.slippageBps)
	if err != nil {
		return "", 0, fmt.Errorf("sell quote %s: %w", mint, err)
	}

	txBase64, err := e.quoter.BuildSwapTransaction(ctx, quote, e.wallet.Address(), e.priorityFee)
	if err != nil {
		return "", 0, fmt.Errorf("build sell %s: %w", mint, err)
	}

	signed, err := e.wallet.SignTransaction(txBase64)
	if err != nil {
		return "", 0, fmt.Errorf("sign sell %s: %w", mint, err)
	}

	signature, err := e.rpc.SendTransaction(ctx, signed)
	if err != nil {
		return "", 0, fmt.Errorf("submit sell %s: %w", mint, err)
	}

	confirmCtx, cancel := context.WithTimeout(ctx, e.confirmTimeout)
	defer cancel()
	if err := e.rpc.ConfirmTransaction(confirmCtx, signature); err != nil {
		return "", 0, fmt.Errorf("confirm sell %s: %w", mint, err)
	}

	e.logger.Printf("sold %d of %s for %d lamports sig=%s", tokens, mint, quote.OutAmount, signature)
	return signature, quote.OutAmount, nil
}

// PoolLiquidity reads the pool account's lamport balance as a liquidity
// proxy for the rug check.
func (e *Executor) PoolLiquidity(ctx context.Context, poolAddress string) (uint64, error) {
	return e.rpc.GetBalance(ctx, poolAddress)
}
