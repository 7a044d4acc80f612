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
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/tarancss/airnode/lib/config"
	"github.com/tarancss/airnode/lib/evm"
	"github.com/tarancss/airnode/lib/wallet"
	"github.com/tarancss/airnode/requests"
)

const testSeed = "642ce4e20f09c9f4d285c2b336063eaafbe4cb06dece8134f3a64bdd8f8c0c24df73e1a2e7056359b6db61e179ff45e5ada51d14f07b30becb6d92b961d35df4"

// mockRequest is a JSON-RPC request received by the mock chain provider.
type mockRequest struct {
	Version string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      *json.RawMessage  `json:"id"`
}

// mockChain is a mock JSON-RPC chain provider recording the raw transactions submitted to it.
type mockChain struct {
	l         sync.Mutex
	submitted []*types.Transaction
}

func (m *mockChain) handler(w http.ResponseWriter, r *http.Request) {
	var req mockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	var result interface{}

	switch req.Method {
	case "eth_estimateGas":
		result = "0x7a120" // 500000
	case "eth_getBalance":
		result = "0xde0b6b3a7640000" // 1 ether
	case "eth_sendRawTransaction":
		var raw string
		_ = json.Unmarshal(req.Params[0], &raw)

		tx := new(types.Transaction)
		if err := tx.UnmarshalBinary(hexutil.MustDecode(raw)); err == nil {
			m.l.Lock()
			m.submitted = append(m.submitted, tx)
			m.l.Unlock()
		}

		result = common.HexToHash("0x1234").Hex()
	default:
		result = "0x0"
	}

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":%q}`, string(*req.ID), result)
}

// TestSubmitTransactions is a component test against a mock chain provider. It checks the assembler submits
// fulfill, fail and withdrawal transactions in chain observation order with contiguous nonces starting at the
// requester's transaction count, and that terminal statuses produce no transaction.
func TestSubmitTransactions(t *testing.T) {
	chain := &mockChain{}
	mock := httptest.NewServer(http.HandlerFunc(chain.handler))
	defer mock.Close()

	master, err := wallet.New(testSeed)
	if err != nil {
		t.Fatalf("wallet error:%v", err)
	}

	client, err := evm.Dial(mock.URL, 3, "0xe60b966B798f9a0C41724f111225A5586ff30656",
		"0xC9c5565e05C20031E2F3f0839b3301A94a0791A5")
	if err != nil {
		t.Fatalf("dial error:%v", err)
	}
	defer client.Close()

	wallet5, _, err := master.DesignatedWallet(big.NewInt(5))
	if err != nil {
		t.Fatalf("derive error:%v", err)
	}

	wallet6, _, err := master.DesignatedWallet(big.NewInt(6))
	if err != nil {
		t.Fatalf("derive error:%v", err)
	}

	fulfillAddr := common.HexToAddress("0x3580C27eDAafdb494973410B794f3F07fFAEa5E5")
	response := common.FromHex("0x00000000000000000000000000000000000000000000000000000000000001b9")

	s := &State{
		Chain: config.ChainConfig{
			ID:        3,
			Contracts: config.Contracts{Airnode: "0xe60b966B798f9a0C41724f111225A5586ff30656"},
		},
		Endpoint: config.ChainProvider{Name: "mock"},
		Client:   client,
		Master:   master,
		GasPrice: big.NewInt(1000000000),
		Requests: requests.Grouped{
			APICalls: []requests.APICall{
				// out of chain order on purpose, the assembler must sort
				{ID: common.HexToHash("0x2"), Status: requests.StatusPending, RequesterIndex: big.NewInt(5),
					DesignatedWallet: wallet5, FulfillAddress: fulfillAddr, ResponseValue: response,
					Metadata: requests.Metadata{BlockNumber: 11, LogIndex: 0}},
				{ID: common.HexToHash("0x1"), Status: requests.StatusPending, RequesterIndex: big.NewInt(5),
					DesignatedWallet: wallet5, FulfillAddress: fulfillAddr, ResponseValue: response,
					Metadata: requests.Metadata{BlockNumber: 10, LogIndex: 3}},
				{ID: common.HexToHash("0x3"), Status: requests.StatusErrored,
					ErrorCode: requests.CodeApiCallFailed, RequesterIndex: big.NewInt(5),
					DesignatedWallet: wallet5, FulfillAddress: fulfillAddr,
					Metadata: requests.Metadata{BlockNumber: 12, LogIndex: 0}},
				{ID: common.HexToHash("0x4"), Status: requests.StatusFulfilled, RequesterIndex: big.NewInt(5),
					DesignatedWallet: wallet5, FulfillAddress: fulfillAddr,
					Metadata: requests.Metadata{BlockNumber: 12, LogIndex: 1}},
				{ID: common.HexToHash("0x5"), Status: requests.StatusBlocked, RequesterIndex: big.NewInt(5),
					DesignatedWallet: wallet5, FulfillAddress: fulfillAddr,
					Metadata: requests.Metadata{BlockNumber: 12, LogIndex: 2}},
			},
			Withdrawals: []requests.Withdrawal{
				{ID: common.HexToHash("0x6"), Status: requests.StatusPending, RequesterIndex: big.NewInt(6),
					DesignatedWallet: wallet6, Destination: fulfillAddr,
					Metadata: requests.Metadata{BlockNumber: 10, LogIndex: 0}},
			},
		},
		TransactionCounts: map[string]uint64{"5": 7, "6": 3},
	}

	_, txs := s.SubmitTransactions(context.Background())

	if len(txs) != 4 {
		t.Fatalf("expected 4 transactions, got %d: %+v", len(txs), txs)
	}

	want := []struct {
		kind  string
		id    common.Hash
		nonce uint64
	}{
		{TxFulfill, common.HexToHash("0x1"), 7},
		{TxFulfill, common.HexToHash("0x2"), 8},
		{TxFail, common.HexToHash("0x3"), 9},
		{TxFulfillWithdrawal, common.HexToHash("0x6"), 3},
	}

	for i, w := range want {
		if txs[i].Kind != w.kind || txs[i].RequestID != w.id || txs[i].Nonce != w.nonce {
			t.Errorf("tx %d: expected %s %s nonce:%d got %s %s nonce:%d",
				i, w.kind, w.id.Hex(), w.nonce, txs[i].Kind, txs[i].RequestID.Hex(), txs[i].Nonce)
		}
	}

	// the raw transactions submitted to the chain carry the same nonces
	chain.l.Lock()
	defer chain.l.Unlock()

	if len(chain.submitted) != 4 {
		t.Fatalf("expected 4 raw transactions, got %d", len(chain.submitted))
	}

	for i, w := range want {
		if chain.submitted[i].Nonce() != w.nonce {
			t.Errorf("raw tx %d: expected nonce %d got %d", i, w.nonce, chain.submitted[i].Nonce())
		}
	}

	// a withdrawal forwards the designated wallet balance minus the transaction cost
	wd := chain.submitted[3]
	cost := new(big.Int).Mul(big.NewInt(500000), big.NewInt(1000000000))
	wantValue := new(big.Int).Sub(new(big.Int).SetUint64(1000000000000000000), cost)

	if wd.Value().Cmp(wantValue) != 0 {
		t.Errorf("withdrawal value: expected %s got %s", wantValue, wd.Value())
	}
}
