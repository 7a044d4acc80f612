package requests

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/tarancss/airnode/lib/evm"
	"github.com/tarancss/airnode/lib/logger"
)

// CreatedEvent is a decoded request-creation event of any of the three request types.
type CreatedEvent struct {
	Type              Type
	RequestID         common.Hash
	ProviderID        common.Hash
	RequestCount      *big.Int
	ClientAddress     common.Address
	TemplateID        common.Hash
	EndpointID        common.Hash
	RequesterIndex    *big.Int
	DesignatedWallet  common.Address
	FulfillAddress    common.Address
	FulfillFunctionID [4]byte
	Parameters        []byte
	Metadata          Metadata
}

// WithdrawalEvent is a decoded WithdrawalRequested event.
type WithdrawalEvent struct {
	WithdrawalID     common.Hash
	ProviderID       common.Hash
	RequesterIndex   *big.Int
	DesignatedWallet common.Address
	Destination      common.Address
	Metadata         Metadata
}

// EventBatch is the typed view of one provider's raw logs, in (block, log index) order.
type EventBatch struct {
	Created              []CreatedEvent
	FulfilledAPICalls    map[common.Hash]bool
	FailedAPICalls       map[common.Hash]bool
	WithdrawalsRequested []WithdrawalEvent
	FulfilledWithdrawals map[common.Hash]bool
}

// DecodeLogs classifies raw Airnode contract logs by topic into typed events. Unknown topics yield a WARN log and
// are dropped. Log order is preserved.
func DecodeLogs(logs []types.Log, currentBlock, ignoreBlockedAfter uint64) ([]logger.Log, EventBatch) {
	batch := EventBatch{
		FulfilledAPICalls:    make(map[common.Hash]bool),
		FailedAPICalls:       make(map[common.Hash]bool),
		FulfilledWithdrawals: make(map[common.Hash]bool),
	}

	var pending []logger.Log

	for _, l := range logs {
		if len(l.Topics) == 0 {
			continue
		}

		meta := Metadata{
			BlockNumber:                      l.BlockNumber,
			LogIndex:                         l.Index,
			TransactionHash:                  l.TxHash,
			CurrentBlock:                     currentBlock,
			IgnoreBlockedRequestsAfterBlocks: ignoreBlockedAfter,
		}

		switch l.Topics[0] {
		case evm.Topic(evm.EvClientRequestCreated):
			ev, err := decodeCreated(evm.EvClientRequestCreated, TypeRegular, l, meta)
			if err != nil {
				pending = append(pending, logger.PendErr(logger.ERROR, "Unable to decode request creation event", err))
				continue
			}
			batch.Created = append(batch.Created, ev)
		case evm.Topic(evm.EvClientShortRequestCreated):
			ev, err := decodeCreated(evm.EvClientShortRequestCreated, TypeShort, l, meta)
			if err != nil {
				pending = append(pending, logger.PendErr(logger.ERROR, "Unable to decode request creation event", err))
				continue
			}
			batch.Created = append(batch.Created, ev)
		case evm.Topic(evm.EvClientFullRequestCreated):
			ev, err := decodeCreated(evm.EvClientFullRequestCreated, TypeFull, l, meta)
			if err != nil {
				pending = append(pending, logger.PendErr(logger.ERROR, "Unable to decode request creation event", err))
				continue
			}
			batch.Created = append(batch.Created, ev)
		case evm.Topic(evm.EvClientRequestFulfilled):
			if len(l.Topics) < 3 {
				continue
			}
			batch.FulfilledAPICalls[l.Topics[2]] = true
		case evm.Topic(evm.EvClientRequestFailed):
			if len(l.Topics) < 3 {
				continue
			}
			batch.FailedAPICalls[l.Topics[2]] = true
		case evm.Topic(evm.EvWithdrawalRequested):
			ev, err := decodeWithdrawal(l, meta)
			if err != nil {
				pending = append(pending, logger.PendErr(logger.ERROR, "Unable to decode withdrawal request event", err))
				continue
			}
			batch.WithdrawalsRequested = append(batch.WithdrawalsRequested, ev)
		case evm.Topic(evm.EvWithdrawalFulfilled):
			if len(l.Topics) < 4 {
				continue
			}
			batch.FulfilledWithdrawals[l.Topics[3]] = true
		default:
			pending = append(pending, logger.Pend(logger.WARN,
				fmt.Sprintf("Ignoring unknown event topic:%s tx:%s", l.Topics[0].Hex(), l.TxHash.Hex())))
		}
	}

	return pending, batch
}

func decodeCreated(event string, typ Type, l types.Log, meta Metadata) (CreatedEvent, error) {
	if len(l.Topics) < 3 {
		return CreatedEvent{}, fmt.Errorf("event %s: missing indexed topics", event)
	}

	out, err := evm.AirnodeABI.Unpack(event, l.Data)
	if err != nil {
		return CreatedEvent{}, fmt.Errorf("event %s: %w", event, err)
	}

	ev := CreatedEvent{
		Type:       typ,
		ProviderID: l.Topics[1],
		RequestID:  l.Topics[2],
		Metadata:   meta,
	}

	// non-indexed arguments in declaration order
	switch typ {
	case TypeShort:
		if len(out) != 4 {
			return CreatedEvent{}, fmt.Errorf("event %s: wrong argument count %d", event, len(out))
		}
		ev.RequestCount = out[0].(*big.Int)
		ev.ClientAddress = out[1].(common.Address)
		ev.TemplateID = out[2].([32]byte)
		ev.Parameters = out[3].([]byte)
	case TypeRegular:
		if len(out) != 8 {
			return CreatedEvent{}, fmt.Errorf("event %s: wrong argument count %d", event, len(out))
		}
		ev.RequestCount = out[0].(*big.Int)
		ev.ClientAddress = out[1].(common.Address)
		ev.TemplateID = out[2].([32]byte)
		ev.RequesterIndex = out[3].(*big.Int)
		ev.DesignatedWallet = out[4].(common.Address)
		ev.FulfillAddress = out[5].(common.Address)
		ev.FulfillFunctionID = out[6].([4]byte)
		ev.Parameters = out[7].([]byte)
	case TypeFull:
		if len(out) != 8 {
			return CreatedEvent{}, fmt.Errorf("event %s: wrong argument count %d", event, len(out))
		}
		ev.RequestCount = out[0].(*big.Int)
		ev.ClientAddress = out[1].(common.Address)
		ev.EndpointID = out[2].([32]byte)
		ev.RequesterIndex = out[3].(*big.Int)
		ev.DesignatedWallet = out[4].(common.Address)
		ev.FulfillAddress = out[5].(common.Address)
		ev.FulfillFunctionID = out[6].([4]byte)
		ev.Parameters = out[7].([]byte)
	}

	return ev, nil
}

func decodeWithdrawal(l types.Log, meta Metadata) (WithdrawalEvent, error) {
	if len(l.Topics) < 4 {
		return WithdrawalEvent{}, fmt.Errorf("event %s: missing indexed topics", evm.EvWithdrawalRequested)
	}

	out, err := evm.AirnodeABI.Unpack(evm.EvWithdrawalRequested, l.Data)
	if err != nil || len(out) != 2 {
		return WithdrawalEvent{}, fmt.Errorf("event %s: %w", evm.EvWithdrawalRequested, err)
	}

	return WithdrawalEvent{
		ProviderID:       l.Topics[1],
		RequesterIndex:   new(big.Int).SetBytes(l.Topics[2].Bytes()),
		WithdrawalID:     l.Topics[3],
		DesignatedWallet: out[0].(common.Address),
		Destination:      out[1].(common.Address),
		Metadata:         meta,
	}, nil
}
