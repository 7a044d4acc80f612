package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/tarancss/airnode/lib/config"
	"github.com/tarancss/airnode/lib/evm"
	"github.com/tarancss/airnode/lib/wallet"
)

// initMock is a mock chain provider for the initializer: the on-chain record carries the node's xpub but stale
// authorizers, and the master wallet holds the configured balance.
type initMock struct {
	l       sync.Mutex
	xpub    string
	balance string // master wallet balance, hex
	sent    int    // eth_sendRawTransaction calls
	admin   common.Address
}

func (m *initMock) handler(w http.ResponseWriter, r *http.Request) {
	var req mockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	var result string

	switch req.Method {
	case "eth_call":
		out, err := evm.ConvenienceABI.Methods["getProviderAndBlockNumber"].Outputs.Pack(
			m.admin, m.xpub,
			[]common.Address{common.HexToAddress("0x1111111111111111111111111111111111111111")},
			big.NewInt(12345))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)

			return
		}

		result = hexutil.Encode(out)
	case "eth_gasPrice":
		result = "0x3b9aca00" // 1 gwei
	case "eth_getBalance":
		result = m.balance
	case "eth_estimateGas":
		result = "0x7a120" // 500000
	case "eth_sendRawTransaction":
		m.l.Lock()
		m.sent++
		m.l.Unlock()

		result = common.HexToHash("0x1234").Hex()
	default:
		result = "0x0"
	}

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":%q}`, string(*req.ID), result)
}

// TestInitializeInsufficientFunds checks a stale provider record with an underfunded master wallet produces three
// WARN logs, submits nothing and still leaves the provider usable for the run.
func TestInitializeInsufficientFunds(t *testing.T) {
	master, err := wallet.New(testSeed)
	if err != nil {
		t.Fatalf("wallet error:%v", err)
	}

	admin := common.HexToAddress("0x5e0051B74bb4006480A1b548af9F1F0e0954F410")
	mockState := &initMock{xpub: master.XPub(), admin: admin, balance: "0x1"} // 1 wei, never enough

	mock := httptest.NewServer(http.HandlerFunc(mockState.handler))
	defer mock.Close()

	client, err := evm.Dial(mock.URL, 3, "0xe60b966B798f9a0C41724f111225A5586ff30656",
		"0xC9c5565e05C20031E2F3f0839b3301A94a0791A5")
	if err != nil {
		t.Fatalf("dial error:%v", err)
	}
	defer client.Close()

	s := &State{
		Chain: config.ChainConfig{
			ID:          3,
			Contracts:   config.Contracts{Airnode: "0xe60b966B798f9a0C41724f111225A5586ff30656"},
			Admin:       admin.Hex(),
			Authorizers: []string{"0x0000000000000000000000000000000000000000"}, // differs from chain record
		},
		Endpoint: config.ChainProvider{Name: "mock"},
		Client:   client,
		Master:   master,
	}

	logs, err := s.Initialize(context.Background())
	if err != nil {
		t.Fatalf("initialize must not fail on insufficient funds, got %v", err)
	}

	if s.CurrentBlock != 12345 || s.GasPrice == nil {
		t.Errorf("run context was not pinned: block:%d gasPrice:%v", s.CurrentBlock, s.GasPrice)
	}

	var warns int
	for _, l := range logs {
		if l.Level == "WARN" {
			warns++
		}
	}

	if warns != 3 {
		t.Errorf("expected 3 WARN logs, got %d in %+v", warns, logs)
	}

	mockState.l.Lock()
	defer mockState.l.Unlock()

	if mockState.sent != 0 {
		t.Errorf("no createProvider transaction must be submitted, got %d", mockState.sent)
	}
}

// TestInitializeExactBalance checks a balance exactly covering the transaction cost is sufficient: createProvider
// is submitted forwarding the zero remainder.
func TestInitializeExactBalance(t *testing.T) {
	master, err := wallet.New(testSeed)
	if err != nil {
		t.Fatalf("wallet error:%v", err)
	}

	admin := common.HexToAddress("0x5e0051B74bb4006480A1b548af9F1F0e0954F410")
	// balance == gas (500000) * gas price (1 gwei)
	mockState := &initMock{xpub: master.XPub(), admin: admin, balance: "0x1c6bf52634000"}

	mock := httptest.NewServer(http.HandlerFunc(mockState.handler))
	defer mock.Close()

	client, err := evm.Dial(mock.URL, 3, "0xe60b966B798f9a0C41724f111225A5586ff30656",
		"0xC9c5565e05C20031E2F3f0839b3301A94a0791A5")
	if err != nil {
		t.Fatalf("dial error:%v", err)
	}
	defer client.Close()

	s := &State{
		Chain: config.ChainConfig{
			ID:          3,
			Contracts:   config.Contracts{Airnode: "0xe60b966B798f9a0C41724f111225A5586ff30656"},
			Admin:       admin.Hex(),
			Authorizers: []string{"0x0000000000000000000000000000000000000000"}, // differs from chain record
		},
		Endpoint: config.ChainProvider{Name: "mock"},
		Client:   client,
		Master:   master,
	}

	logs, err := s.Initialize(context.Background())
	if err != nil {
		t.Fatalf("unexpected error:%v", err)
	}

	for _, l := range logs {
		if l.Level == "WARN" {
			t.Errorf("an exactly covering balance must not warn: %+v", l)
		}
	}

	mockState.l.Lock()
	defer mockState.l.Unlock()

	if mockState.sent != 1 {
		t.Errorf("expected one createProvider transaction, got %d", mockState.sent)
	}
}
