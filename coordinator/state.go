// Package coordinator orchestrates one run of the oracle node: provider initialization and request ingestion fan
// out per chain provider, aggregation collapses equivalent requests across providers, the API calls execute once,
// and the results fan back out into per-provider fulfillment transactions. A run is a short batch; all request
// state is reconstructed from chain, nothing persists between runs.
package coordinator

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/tarancss/airnode/aggregator"
	"github.com/tarancss/airnode/lib/config"
	"github.com/tarancss/airnode/lib/logger"
	"github.com/tarancss/airnode/provider"
)

// State is the immutable snapshot of one coordinator run.
type State struct {
	Config          config.Config
	Providers       []*provider.State
	AggregatedCalls map[common.Hash]*aggregator.AggregatedAPICall
	Transactions    []provider.Transaction
	Logs            []logger.Log
}

// Partial is a partial coordinator state for Update; nil fields are left untouched and logs are appended.
type Partial struct {
	AggregatedCalls map[common.Hash]*aggregator.AggregatedAPICall
	Transactions    []provider.Transaction
	Logs            []logger.Log
}

// NewState constructs the initial coordinator state for a run.
func NewState(cfg config.Config) State {
	return State{Config: cfg}
}

// Update returns a new state with the partial merged in.
func Update(s State, p Partial) State {
	if p.AggregatedCalls != nil {
		s.AggregatedCalls = p.AggregatedCalls
	}
	if p.Transactions != nil {
		s.Transactions = append(s.Transactions, p.Transactions...)
	}
	if p.Logs != nil {
		s.Logs = logger.Combine(s.Logs, p.Logs)
	}

	return s
}
