package evm

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

// TestTopicsDistinct checks every event resolves to its own topic hash.
func TestTopicsDistinct(t *testing.T) {
	events := []string{
		EvClientRequestCreated, EvClientShortRequestCreated, EvClientFullRequestCreated,
		EvClientRequestFulfilled, EvClientRequestFailed,
		EvWithdrawalRequested, EvWithdrawalFulfilled,
	}

	seen := make(map[common.Hash]string)

	for _, ev := range events {
		topic := Topic(ev)
		if topic == (common.Hash{}) {
			t.Errorf("event %s has no topic, is it missing from the ABI?", ev)
		}

		if other, ok := seen[topic]; ok {
			t.Errorf("events %s and %s share a topic", ev, other)
		}

		seen[topic] = ev
	}
}

// TestPackCalldata checks the write methods encode with their selectors.
func TestPackCalldata(t *testing.T) {
	requestID := common.HexToHash("0x1")
	providerID := common.HexToHash("0x2")
	addr := common.HexToAddress("0x3580C27eDAafdb494973410B794f3F07fFAEa5E5")
	funcID := [4]byte{0x48, 0xa4, 0x15, 0x7c}

	cases := []struct {
		name   string
		method string
		pack   func() ([]byte, error)
	}{
		{"fulfill", "fulfill", func() ([]byte, error) {
			return PackFulfill(requestID, providerID, 0, []byte{0x01}, addr, funcID)
		}},
		{"fail", "fail", func() ([]byte, error) {
			return PackFail(requestID, providerID, 9, addr, funcID)
		}},
		{"fulfillWithdrawal", "fulfillWithdrawal", func() ([]byte, error) {
			return PackFulfillWithdrawal(requestID, providerID, big.NewInt(5), addr)
		}},
		{"createProvider", "createProvider", func() ([]byte, error) {
			return PackCreateProvider(addr, "xpub661MyMwAqRbcF", []common.Address{addr})
		}},
	}

	for _, c := range cases {
		data, err := c.pack()
		if err != nil {
			t.Errorf("%s: pack error:%v", c.name, err)
			continue
		}

		wantSelector := AirnodeABI.Methods[c.method].ID
		if len(data) < 4 || string(data[:4]) != string(wantSelector) {
			t.Errorf("%s: selector mismatch", c.name)
		}
	}
}
