package watcher

import (
	"testing"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/solana"
)

// buildInitTx constructs a plausible initialize2 transaction. The account
// key list mirrors the initialize2 layout with the instruction referencing
// keys positionally.
func buildInitTx(baseMint, quoteMint string, extraKeys ...string) *solana.Transaction {
	keys := []string{
		solana.RaydiumAMMV4Program, // 0: program (also used as programIDIndex target)
		solana.TokenProgram,        // 1
		"ataProgram",               // 2
		solana.SystemProgram,       // 3
		"rentSysvar",               // 4
		"poolAddr111",              // 5
		"ammAuthority",             // 6
		"openOrders",               // 7
		"lpMint111",                // 8
		baseMint,                   // 9
		quoteMint,                  // 10
		"poolCoinVault",            // 11
		"poolPcVault",              // 12
		"withdrawQueue",            // 13
		"targetOrders",             // 14
		"tempLp",                   // 15
		"serumProgram",             // 16
		"serumMarket",              // 17
		"userWallet",               // 18
		"userCoinAcct",             // 19
		"userPcAcct",               // 20
		"userLpAcct",               // 21
	}
	keys = append(keys, extraKeys...)

	// Instruction accounts are indices into keys, offset by one because
	// index 0 is the program id itself.
	accounts := make([]int, 21)
	for i := range accounts {
		accounts[i] = i + 1
	}

	return &solana.Transaction{
		Slot:      900,
		Signature: "initsig111",
		Meta: &solana.TransactionMeta{
			LogMessages: []string{
				"Program " + solana.RaydiumAMMV4Program + " invoke [1]",
				"Program log: initialize2: InitializeInstruction2 { nonce: 254 }",
			},
			PostTokenBalances: []solana.TokenBalance{
				{
					AccountIndex: 12,
					Mint:         solana.WSOLMint,
					Amount:       solana.TokenAmount{Amount: "8000000000", Decimals: 9},
				},
			},
		},
		Message: &solana.TransactionMessage{
			AccountKeys: keys,
			Instructions: []solana.Instruction{
				{ProgramIDIndex: 0, Accounts: accounts},
			},
		},
	}
}

func TestPoolParser_RaydiumInitialize(t *testing.T) {
	parser := NewPoolParser()
	tx := buildInitTx("newMint111", solana.WSOLMint)

	event := parser.Parse(tx, 1700000000000)
	if event == nil {
		t.Fatal("expected pool event, got nil")
	}

	if event.PoolAddress != "poolAddr111" {
		t.Errorf("expected pool poolAddr111, got %s", event.PoolAddress)
	}
	if event.BaseMint != "newMint111" {
		t.Errorf("expected base mint newMint111, got %s", event.BaseMint)
	}
	if event.QuoteMint != solana.WSOLMint {
		t.Errorf("expected WSOL quote, got %s", event.QuoteMint)
	}
	if event.LPMint != "lpMint111" {
		t.Errorf("expected lp mint lpMint111, got %s", event.LPMint)
	}
	if event.InitialLiquidity != 8000000000 {
		t.Errorf("expected liquidity 8000000000, got %d", event.InitialLiquidity)
	}
	if event.Source != domain.SourceRaydium {
		t.Errorf("expected raydium source, got %s", event.Source)
	}
	if event.Slot != 900 || event.TxSignature != "initsig111" {
		t.Errorf("unexpected slot/signature: %d/%s", event.Slot, event.TxSignature)
	}
	if event.DetectedAt != 1700000000000 {
		t.Errorf("unexpected detectedAt: %d", event.DetectedAt)
	}
}

func TestPoolParser_SwappedBaseQuote(t *testing.T) {
	parser := NewPoolParser()
	// Creator listed WSOL as the coin side.
	tx := buildInitTx(solana.WSOLMint, "newMint222")

	event := parser.Parse(tx, 0)
	if event == nil {
		t.Fatal("expected pool event, got nil")
	}

	if event.BaseMint != "newMint222" {
		t.Errorf("expected normalized base newMint222, got %s", event.BaseMint)
	}
	if event.QuoteMint != solana.WSOLMint {
		t.Errorf("expected normalized WSOL quote, got %s", event.QuoteMint)
	}
}

func TestPoolParser_NonWSOLPool(t *testing.T) {
	parser := NewPoolParser()
	tx := buildInitTx("mintA", "usdcMint111")

	if event := parser.Parse(tx, 0); event != nil {
		t.Errorf("expected nil for non-WSOL pool, got %+v", event)
	}
}

func TestPoolParser_PumpFunGraduation(t *testing.T) {
	parser := NewPoolParser()
	tx := buildInitTx("gradMint111", solana.WSOLMint, solana.PumpFunProgram)

	event := parser.Parse(tx, 0)
	if event == nil {
		t.Fatal("expected pool event, got nil")
	}
	if event.Source != domain.SourcePumpFunGraduation {
		t.Errorf("expected pumpfun_graduation source, got %s", event.Source)
	}
}

func TestPoolParser_FailedTransaction(t *testing.T) {
	parser := NewPoolParser()
	tx := buildInitTx("mintA", solana.WSOLMint)
	tx.Meta.Err = map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}}

	if event := parser.Parse(tx, 0); event != nil {
		t.Errorf("expected nil for failed tx, got %+v", event)
	}
}

func TestPoolParser_NoInitializeLog(t *testing.T) {
	parser := NewPoolParser()
	tx := buildInitTx("mintA", solana.WSOLMint)
	tx.Meta.LogMessages = []string{"Program log: ray_log: CQ=="}

	if event := parser.Parse(tx, 0); event != nil {
		t.Errorf("expected nil without initialize2 log, got %+v", event)
	}
}

func TestPoolParser_SwapShapedInstruction(t *testing.T) {
	parser := NewPoolParser()
	tx := buildInitTx("mintA", solana.WSOLMint)
	// Swap instructions carry fewer accounts than initialize2.
	tx.Message.Instructions[0].Accounts = tx.Message.Instructions[0].Accounts[:17]

	if event := parser.Parse(tx, 0); event != nil {
		t.Errorf("expected nil for swap-shaped instruction, got %+v", event)
	}
}

func TestPoolParser_GraduationViaInnerInstruction(t *testing.T) {
	parser := NewPoolParser()

	// Migrations run initialize2 as a CPI: the outer instruction targets
	// the pump.fun program and initialize2 only shows up among the inner
	// instructions, referencing the same account table.
	tx := buildInitTx("gradMint222", solana.WSOLMint, solana.PumpFunProgram)
	init := tx.Message.Instructions[0]
	pumpIdx := len(tx.Message.AccountKeys) - 1
	tx.Message.Instructions = []solana.Instruction{
		{ProgramIDIndex: pumpIdx, Accounts: []int{5, 18}},
	}
	tx.Meta.InnerInstructions = []solana.InnerInstructions{
		{Index: 0, Instructions: []solana.Instruction{init}},
	}

	event := parser.Parse(tx, 0)
	if event == nil {
		t.Fatal("expected pool event for CPI-delivered initialize2, got nil")
	}
	if event.Source != domain.SourcePumpFunGraduation {
		t.Errorf("expected pumpfun_graduation source, got %s", event.Source)
	}
	if event.PoolAddress != "poolAddr111" {
		t.Errorf("expected pool poolAddr111, got %s", event.PoolAddress)
	}
	if event.InitialLiquidity != 8000000000 {
		t.Errorf("expected liquidity 8000000000, got %d", event.InitialLiquidity)
	}
}

func TestPoolParser_LiquidityFromLamportDelta(t *testing.T) {
	parser := NewPoolParser()

	// The quote vault sits at key index 12; its lamport delta is the
	// primary estimate and wins over the token-balance fallback.
	tx := buildInitTx("newMint333", solana.WSOLMint)
	tx.Meta.PreBalances = make([]uint64, 22)
	tx.Meta.PostBalances = make([]uint64, 22)
	tx.Meta.PreBalances[12] = 2_039_280
	tx.Meta.PostBalances[12] = 9_002_039_280

	event := parser.Parse(tx, 0)
	if event == nil {
		t.Fatal("expected pool event, got nil")
	}
	if event.InitialLiquidity != 9_000_000_000 {
		t.Errorf("expected lamport delta 9000000000, got %d", event.InitialLiquidity)
	}
}

func TestPoolParser_LiquidityFromLamportDelta_SwappedSides(t *testing.T) {
	parser := NewPoolParser()

	// WSOL listed as the coin side: the coin vault (key index 11) is the
	// one whose lamport delta carries the deposit.
	tx := buildInitTx(solana.WSOLMint, "newMint444")
	tx.Meta.PreBalances = make([]uint64, 22)
	tx.Meta.PostBalances = make([]uint64, 22)
	tx.Meta.PostBalances[11] = 6_000_000_000

	event := parser.Parse(tx, 0)
	if event == nil {
		t.Fatal("expected pool event, got nil")
	}
	if event.InitialLiquidity != 6_000_000_000 {
		t.Errorf("expected lamport delta 6000000000, got %d", event.InitialLiquidity)
	}
}

func TestEstimateInitialLiquidity_TokenDeltaFallback(t *testing.T) {
	// No native balance arrays: the WSOL token-balance delta is used.
	meta := &solana.TransactionMeta{
		PreTokenBalances: []solana.TokenBalance{
			{AccountIndex: 5, Mint: solana.WSOLMint, Amount: solana.TokenAmount{Amount: "1000"}},
		},
		PostTokenBalances: []solana.TokenBalance{
			{AccountIndex: 5, Mint: solana.WSOLMint, Amount: solana.TokenAmount{Amount: "5000"}},
			{AccountIndex: 9, Mint: "otherMint", Amount: solana.TokenAmount{Amount: "999999"}},
		},
	}

	if got := estimateInitialLiquidity(meta, 12); got != 4000 {
		t.Errorf("expected delta 4000, got %d", got)
	}
}
