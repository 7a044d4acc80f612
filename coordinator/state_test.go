package coordinator

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tarancss/airnode/aggregator"
	"github.com/tarancss/airnode/lib/config"
	"github.com/tarancss/airnode/lib/logger"
	"github.com/tarancss/airnode/provider"
)

// TestUpdate checks Update returns a new snapshot, appends logs and transactions, and leaves the input untouched.
func TestUpdate(t *testing.T) {
	s := NewState(config.Config{Stage: "test"})
	s = Update(s, Partial{Logs: []logger.Log{logger.Pend(logger.INFO, "one")}})

	next := Update(s, Partial{
		Logs:         []logger.Log{logger.Pend(logger.INFO, "two")},
		Transactions: []provider.Transaction{{Kind: provider.TxFulfill}},
		AggregatedCalls: map[common.Hash]*aggregator.AggregatedAPICall{
			common.HexToHash("0x1"): {ID: common.HexToHash("0x1")},
		},
	})

	if len(s.Logs) != 1 || len(s.Transactions) != 0 || s.AggregatedCalls != nil {
		t.Errorf("input state was mutated: %+v", s)
	}

	if len(next.Logs) != 2 || next.Logs[1].Message != "two" {
		t.Errorf("logs were not appended: %+v", next.Logs)
	}
	if len(next.Transactions) != 1 {
		t.Errorf("transactions were not appended: %+v", next.Transactions)
	}
	if len(next.AggregatedCalls) != 1 {
		t.Errorf("aggregated calls were not merged: %+v", next.AggregatedCalls)
	}
	if next.Config.Stage != "test" {
		t.Errorf("config was lost")
	}
}
