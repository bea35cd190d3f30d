package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"auction-engine/internal/domain"
	"auction-engine/internal/ledger/stub"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.PollInterval = time.Millisecond
	return cfg
}

func testSelection(auctionID domain.AuctionID) *domain.Selection {
	score := decimal.RequireFromString("30")
	return &domain.Selection{
		AuctionID: auctionID,
		Parts: []domain.SelectionPart{{
			Solver:  "alpha",
			Account: "acc-alpha",
			Solution: &domain.Solution{
				Prices: map[domain.Address]decimal.Decimal{
					"TKX": decimal.RequireFromString("2.3"),
					"TKY": decimal.NewFromInt(1),
				},
				Trades: []domain.Trade{{Fulfillment: &domain.Fulfillment{
					Order:          "order-a",
					ExecutedAmount: decimal.NewFromInt(100),
				}}},
			},
			Score: score,
		}},
		Score: score,
	}
}

func TestExecuteConfirms(t *testing.T) {
	client := stub.New()
	ex := NewExecutor(client, testConfig(), nil, zerolog.Nop())

	out := ex.Execute(context.Background(), testSelection(1))

	if out.Status != domain.SettlementConfirmed {
		t.Fatalf("status = %s, want confirmed (err %q)", out.Status, out.Err)
	}
	if out.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1", out.Attempts)
	}
	if out.TxID == "" || out.Slot == 0 {
		t.Fatalf("confirmed outcome missing tx id or slot: %+v", out)
	}
	if len(out.ObservedTxIDs) != 1 || out.ObservedTxIDs[0] != out.TxID {
		t.Fatalf("observed ids = %v, want exactly the confirmed id", out.ObservedTxIDs)
	}
}

func TestExecuteBumpsFeeOnTransientFailure(t *testing.T) {
	client := stub.New()
	client.TransientFailures = 2
	cfg := testConfig()
	ex := NewExecutor(client, cfg, nil, zerolog.Nop())

	out := ex.Execute(context.Background(), testSelection(2))

	if out.Status != domain.SettlementConfirmed {
		t.Fatalf("status = %s, want confirmed (err %q)", out.Status, out.Err)
	}
	if out.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", out.Attempts)
	}
	submitted := client.Submitted()
	if len(submitted) != 1 {
		t.Fatalf("accepted submissions = %d, want 1", len(submitted))
	}
	want := cfg.InitialFee + 2*cfg.FeeBump
	if submitted[0].Fee != want {
		t.Fatalf("fee = %d, want %d after two bumps", submitted[0].Fee, want)
	}
}

func TestExecuteFailsWhenRetriesExhausted(t *testing.T) {
	client := stub.New()
	client.TransientFailures = 10

	out := NewExecutor(client, testConfig(), nil, zerolog.Nop()).Execute(context.Background(), testSelection(3))

	if out.Status != domain.SettlementFailed {
		t.Fatalf("status = %s, want failed", out.Status)
	}
	if out.Attempts != DefaultConfig().RetryCeiling {
		t.Fatalf("attempts = %d, want retry ceiling", out.Attempts)
	}
	if out.Err == "" {
		t.Fatal("failed outcome carries no error")
	}
	if len(out.ObservedTxIDs) != 0 {
		t.Fatalf("observed ids = %v, want none when nothing was accepted", out.ObservedTxIDs)
	}
}

func TestExecuteRevertIsTerminal(t *testing.T) {
	client := stub.New()
	client.RevertReason = "insufficient output amount"

	out := NewExecutor(client, testConfig(), nil, zerolog.Nop()).Execute(context.Background(), testSelection(4))

	if out.Status != domain.SettlementReverted {
		t.Fatalf("status = %s, want reverted", out.Status)
	}
	if out.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1: reverts are never retried", out.Attempts)
	}
	if out.Err != client.RevertReason {
		t.Fatalf("err = %q, want revert reason", out.Err)
	}
}

func TestExecuteResubmitsThenExpires(t *testing.T) {
	client := stub.New()
	client.NeverConfirm = true
	cfg := testConfig()
	cfg.RetryCeiling = 2
	cfg.ConfirmationSlots = 2

	out := NewExecutor(client, cfg, nil, zerolog.Nop()).Execute(context.Background(), testSelection(5))

	if out.Status != domain.SettlementExpired {
		t.Fatalf("status = %s, want expired (err %q)", out.Status, out.Err)
	}
	if out.Attempts != 2 {
		t.Fatalf("attempts = %d, want 2", out.Attempts)
	}
	if len(out.ObservedTxIDs) != 2 {
		t.Fatalf("observed ids = %v, want one per submission", out.ObservedTxIDs)
	}
	if out.ObservedTxIDs[0] == out.ObservedTxIDs[1] {
		t.Fatal("fee-bumped resubmission reused the transaction id")
	}
	if out.TxID != "" {
		t.Fatalf("tx id = %q, want empty for an unconfirmed settlement", out.TxID)
	}
}

func TestExecuteStopsOnCanceledContext(t *testing.T) {
	client := stub.New()
	client.NeverConfirm = true
	cfg := testConfig()
	cfg.ConfirmationSlots = 1 << 30

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan domain.SettlementOutcome, 1)
	go func() {
		done <- NewExecutor(client, cfg, nil, zerolog.Nop()).Execute(ctx, testSelection(6))
	}()
	cancel()

	select {
	case out := <-done:
		if out.Status != domain.SettlementFailed {
			t.Fatalf("status = %s, want failed on canceled context", out.Status)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("execute did not return after context cancellation")
	}
}
