package betting

import (
	"math"
	"testing"

	"github.com/agentfight/arena/internal/domain"
)

func TestPoolAccounting(t *testing.T) {
	l := NewLedger("m-1", 1000, nil)

	seed := []struct {
		side   domain.Side
		amount float64
		addr   string
	}{
		{domain.SideA, 50, "0xaaa"},
		{domain.SideB, 30, "0xbbb"},
		{domain.SideA, 20, "0xccc"},
		{domain.SideB, 70, "0xddd"},
	}
	for _, b := range seed {
		if _, ok := l.RecordBet(b.side, b.amount, b.addr, ""); !ok {
			t.Fatalf("bet from %s not accepted", b.addr)
		}
	}

	poolA, poolB, total := l.Totals()
	if poolA != 70 {
		t.Errorf("poolA = %v, want 70", poolA)
	}
	if poolB != 100 {
		t.Errorf("poolB = %v, want 100", poolB)
	}
	if total != poolA+poolB {
		t.Errorf("total = %v, want %v", total, poolA+poolB)
	}
	if got := l.Count(); got != len(seed) {
		t.Errorf("Count = %d, want %d", got, len(seed))
	}
}

func TestRejectInvalidAmounts(t *testing.T) {
	tests := []struct {
		name   string
		amount float64
	}{
		{"zero", 0},
		{"negative", -5},
		{"nan", math.NaN()},
		{"positive infinity", math.Inf(1)},
		{"negative infinity", math.Inf(-1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLedger("m-1", 100, nil)
			if _, ok := l.RecordBet(domain.SideA, tt.amount, "0xabc", ""); ok {
				t.Errorf("amount %v was accepted", tt.amount)
			}
			if _, _, total := l.Totals(); total != 0 {
				t.Errorf("total = %v after rejected bet, want 0", total)
			}
		})
	}
}

func TestRejectInvalidSide(t *testing.T) {
	l := NewLedger("m-1", 100, nil)
	if _, ok := l.RecordBet(domain.Side("3"), 10, "0xabc", ""); ok {
		t.Error("bet on unknown side was accepted")
	}
}

func TestDuplicateAddressRejected(t *testing.T) {
	l := NewLedger("m-1", 1000, nil)

	if _, ok := l.RecordBet(domain.SideA, 50, "0xabc", ""); !ok {
		t.Fatal("first bet not accepted")
	}
	if _, ok := l.RecordBet(domain.SideA, 50, "0xabc", ""); ok {
		t.Error("replayed hash-less bet from same address was accepted")
	}

	_, _, total := l.Totals()
	if total != 50 {
		t.Errorf("total = %v, want 50", total)
	}
}

func TestDuplicateTxHashRejected(t *testing.T) {
	l := NewLedger("m-1", 1000, nil)

	if _, ok := l.RecordBet(domain.SideA, 25, "0xaaa", "0xhash1"); !ok {
		t.Fatal("first bet not accepted")
	}
	// Same hash from a different address is still a replay.
	if _, ok := l.RecordBet(domain.SideB, 25, "0xbbb", "0xHASH1"); ok {
		t.Error("duplicate tx hash was accepted")
	}
	// Same address with a new hash is a distinct wager.
	if _, ok := l.RecordBet(domain.SideB, 25, "0xaaa", "0xhash2"); !ok {
		t.Error("second bet with fresh hash was rejected")
	}

	_, _, total := l.Totals()
	if total != 50 {
		t.Errorf("total = %v, want 50", total)
	}
}

func TestOddsDefaultUntilBothSidesBet(t *testing.T) {
	l := NewLedger("m-1", 1000, nil)

	oddsA, oddsB := l.Odds()
	if oddsA != EvenOdds || oddsB != EvenOdds {
		t.Errorf("empty ledger odds = (%v, %v), want even", oddsA, oddsB)
	}

	l.RecordBet(domain.SideA, 100, "0xaaa", "")
	oddsA, oddsB = l.Odds()
	if oddsA != EvenOdds || oddsB != EvenOdds {
		t.Errorf("one-sided odds = (%v, %v), want even", oddsA, oddsB)
	}

	l.RecordBet(domain.SideB, 50, "0xbbb", "")
	oddsA, oddsB = l.Odds()
	if oddsA != 1.5 {
		t.Errorf("oddsA = %v, want 1.5", oddsA)
	}
	if oddsB != 3.0 {
		t.Errorf("oddsB = %v, want 3.0", oddsB)
	}
}

func TestThresholdFiresExactlyOnce(t *testing.T) {
	fired := 0
	l := NewLedger("m-1", 100, func() { fired++ })

	l.RecordBet(domain.SideA, 60, "0xaaa", "")
	if fired != 0 {
		t.Fatalf("threshold fired below minimum (pool=60)")
	}
	if l.PoolMet() {
		t.Fatal("PoolMet true below minimum")
	}

	l.RecordBet(domain.SideB, 40, "0xbbb", "")
	if fired != 1 {
		t.Fatalf("fired = %d after crossing, want 1", fired)
	}
	if !l.PoolMet() {
		t.Fatal("PoolMet false after crossing")
	}

	l.RecordBet(domain.SideA, 500, "0xccc", "")
	if fired != 1 {
		t.Errorf("fired = %d after further bets, want 1", fired)
	}
}

func TestClosedLedgerRejectsBets(t *testing.T) {
	l := NewLedger("m-1", 100, nil)
	l.Close()

	if _, ok := l.RecordBet(domain.SideA, 10, "0xabc", ""); ok {
		t.Error("closed ledger accepted a bet")
	}
}

func TestRestoreReplaysWithDedup(t *testing.T) {
	persisted := []domain.Bet{
		{Side: domain.SideA, Amount: 40, Address: "0xaaa"},
		{Side: domain.SideB, Amount: 60, Address: "0xbbb", TxHash: "0xh1"},
		{Side: domain.SideB, Amount: 60, Address: "0xbbb", TxHash: "0xh1"}, // replay
	}

	l := NewLedger("m-1", 100, nil)
	if got := l.Restore(persisted); got != 2 {
		t.Errorf("Restore accepted %d, want 2", got)
	}

	poolA, poolB, total := l.Totals()
	if poolA != 40 || poolB != 60 || total != 100 {
		t.Errorf("pools = (%v, %v, %v), want (40, 60, 100)", poolA, poolB, total)
	}
	if !l.PoolMet() {
		t.Error("PoolMet false after restoring a funded pool")
	}
}

func TestBetsOrderPreserved(t *testing.T) {
	l := NewLedger("m-1", 1000, nil)
	addrs := []string{"0x1", "0x2", "0x3"}
	for _, a := range addrs {
		l.RecordBet(domain.SideA, 10, a, "")
	}

	bets := l.Bets()
	if len(bets) != 3 {
		t.Fatalf("len(bets) = %d, want 3", len(bets))
	}
	for i, a := range addrs {
		if bets[i].Address != a {
			t.Errorf("bets[%d].Address = %s, want %s", i, bets[i].Address, a)
		}
	}
}
