// Package provider manages the per-chain-provider half of a coordinator run: reconciling the on-chain provider
// record, materializing the pending requests from event logs and submitting the resulting transactions. One State
// exists per configured (chain, provider) pair. Initialize and FetchRequests write their results (provider record,
// current block, gas price, requests, transaction counts) onto the State in place rather than returning a new
// snapshot; Update returns a new State with a Partial merged in.
package provider

import (
	"fmt"
	"math/big"

	"github.com/tarancss/airnode/lib/config"
	"github.com/tarancss/airnode/lib/evm"
	"github.com/tarancss/airnode/lib/wallet"
	"github.com/tarancss/airnode/requests"
)

// State is the snapshot of one chain provider within a run.
type State struct {
	Chain             config.ChainConfig
	Endpoint          config.ChainProvider
	Client            *evm.Client
	Master            *wallet.Master
	Record            evm.ProviderRecord
	CurrentBlock      uint64
	GasPrice          *big.Int
	Requests          requests.Grouped
	TransactionCounts map[string]uint64 // requester index -> on-chain transaction count
}

// Partial is a partial state for Update; nil fields are left untouched.
type Partial struct {
	Record            *evm.ProviderRecord
	CurrentBlock      *uint64
	GasPrice          *big.Int
	Requests          *requests.Grouped
	TransactionCounts map[string]uint64
}

// New connects to the chain provider and returns its initial state.
func New(chain config.ChainConfig, endpoint config.ChainProvider, master *wallet.Master) (*State, error) {
	client, err := evm.Dial(endpoint.URL, chain.ID, chain.Contracts.Airnode, chain.Contracts.Convenience)
	if err != nil {
		return nil, err
	}

	return &State{
		Chain:    chain,
		Endpoint: endpoint,
		Client:   client,
		Master:   master,
	}, nil
}

// Update returns a new state with the partial merged in.
func Update(s State, p Partial) State {
	if p.Record != nil {
		s.Record = *p.Record
	}
	if p.CurrentBlock != nil {
		s.CurrentBlock = *p.CurrentBlock
	}
	if p.GasPrice != nil {
		s.GasPrice = p.GasPrice
	}
	if p.Requests != nil {
		s.Requests = *p.Requests
	}
	if p.TransactionCounts != nil {
		s.TransactionCounts = p.TransactionCounts
	}

	return s
}

// Tag returns the log prefix identifying this chain provider, ie. "[3:infura-ropsten]".
func (s *State) Tag() string {
	return fmt.Sprintf("[%d:%s]", s.Chain.ID, s.Endpoint.Name)
}

// Close ends the chain connection.
func (s *State) Close() {
	if s.Client != nil {
		s.Client.Close()
	}
}
