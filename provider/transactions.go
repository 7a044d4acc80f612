package provider

import (
	"context"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/tarancss/airnode/lib/evm"
	"github.com/tarancss/airnode/lib/logger"
	"github.com/tarancss/airnode/lib/retry"
	"github.com/tarancss/airnode/requests"
)

// Transaction kinds submitted by the assembler.
const (
	TxFulfill           = "fulfill"
	TxFail              = "fail"
	TxFulfillWithdrawal = "fulfillWithdrawal"
)

// fallbackGasLimit is used when the chain provider cannot estimate a fulfillment.
const fallbackGasLimit = 500_000

// Transaction records one submitted chain write.
type Transaction struct {
	Kind      string
	RequestID common.Hash
	Requester string
	Nonce     uint64
	Hash      common.Hash
}

// action is one assemblable item, ordered by chain observation order.
type action struct {
	call       *requests.APICall
	withdrawal *requests.Withdrawal
	meta       requests.Metadata
}

// SubmitTransactions assembles and submits the fulfillment transactions of this provider. Actions are grouped by
// requester index and sorted by (block, log index); nonces are assigned sequentially from the requester's on-chain
// transaction count. A submission failure is logged and does not abort peer transactions.
func (s *State) SubmitTransactions(ctx context.Context) ([]logger.Log, []Transaction) {
	byRequester := make(map[string][]action)

	for i := range s.Requests.APICalls {
		call := &s.Requests.APICalls[i]

		if call.RequesterIndex == nil {
			continue
		}

		actionable := (call.Status == requests.StatusPending && len(call.ResponseValue) > 0) ||
			call.Status == requests.StatusErrored
		if !actionable {
			continue
		}

		idx := call.RequesterIndex.String()
		byRequester[idx] = append(byRequester[idx], action{call: call, meta: call.Metadata})
	}

	for i := range s.Requests.Withdrawals {
		wd := &s.Requests.Withdrawals[i]

		if wd.Status != requests.StatusPending || wd.RequesterIndex == nil {
			continue
		}

		idx := wd.RequesterIndex.String()
		byRequester[idx] = append(byRequester[idx], action{withdrawal: wd, meta: wd.Metadata})
	}

	indices := make([]string, 0, len(byRequester))
	for idx := range byRequester {
		indices = append(indices, idx)
	}

	sort.Strings(indices)

	var (
		pending []logger.Log
		txs     []Transaction
	)

	for _, idx := range indices {
		actions := byRequester[idx]

		sort.SliceStable(actions, func(i, j int) bool {
			if actions[i].meta.BlockNumber != actions[j].meta.BlockNumber {
				return actions[i].meta.BlockNumber < actions[j].meta.BlockNumber
			}
			return actions[i].meta.LogIndex < actions[j].meta.LogIndex
		})

		nonce, ok := s.TransactionCounts[idx]
		if !ok {
			pending = append(pending, logger.Pend(logger.ERROR,
				fmt.Sprintf("%s No transaction count for requester %s, skipping %d transactions",
					s.Tag(), idx, len(actions))))

			continue
		}

		for _, a := range actions {
			logs, tx, submitted := s.submitAction(ctx, a, nonce)
			pending = append(pending, logs...)

			if !submitted {
				continue
			}

			tx.Requester = idx
			tx.Nonce = nonce
			txs = append(txs, tx)
			nonce++
		}
	}

	return pending, txs
}

// submitAction signs and submits one transaction with the given nonce. The bool result reports whether a
// transaction was actually sent (and the nonce consumed).
func (s *State) submitAction(ctx context.Context, a action, nonce uint64) ([]logger.Log, Transaction, bool) {
	var (
		kind      string
		requestID common.Hash
		data      []byte
		value     *big.Int
		requester *big.Int
		wallet    common.Address
		err       error
	)

	providerID := s.Master.ProviderID()

	switch {
	case a.call != nil && a.call.Status == requests.StatusPending:
		kind = TxFulfill
		requestID = a.call.ID
		requester = a.call.RequesterIndex
		wallet = a.call.DesignatedWallet
		value = new(big.Int)
		data, err = evm.PackFulfill(a.call.ID, providerID, 0, a.call.ResponseValue,
			a.call.FulfillAddress, a.call.FulfillFunctionID)
	case a.call != nil:
		if a.call.FulfillAddress == (common.Address{}) {
			// errored before the fulfillment parameters were known, nothing can be submitted
			return []logger.Log{logger.Pend(logger.WARN,
				fmt.Sprintf("%s Request ID:%s errored without fulfillment parameters, no fail submitted",
					s.Tag(), a.call.ID.Hex()))}, Transaction{}, false
		}

		kind = TxFail
		requestID = a.call.ID
		requester = a.call.RequesterIndex
		wallet = a.call.DesignatedWallet
		value = new(big.Int)
		data, err = evm.PackFail(a.call.ID, providerID, uint64(a.call.ErrorCode),
			a.call.FulfillAddress, a.call.FulfillFunctionID)
	default:
		kind = TxFulfillWithdrawal
		requestID = a.withdrawal.ID
		requester = a.withdrawal.RequesterIndex
		wallet = a.withdrawal.DesignatedWallet
		data, err = evm.PackFulfillWithdrawal(a.withdrawal.ID, providerID,
			a.withdrawal.RequesterIndex, a.withdrawal.Destination)
	}

	if err != nil {
		return []logger.Log{logger.PendErr(logger.ERROR,
				fmt.Sprintf("%s Unable to encode %s for Request ID:%s", s.Tag(), kind, requestID.Hex()), err)},
			Transaction{}, false
	}

	walletAddr, key, err := s.Master.DesignatedWallet(requester)
	if err != nil || walletAddr != wallet {
		return []logger.Log{logger.PendErr(logger.ERROR,
				fmt.Sprintf("%s Designated wallet mismatch for Request ID:%s", s.Tag(), requestID.Hex()), err)},
			Transaction{}, false
	}

	airnode := s.Client.AirnodeAddress()

	gas, err := retry.Do(ctx, func(actx context.Context) (uint64, error) {
		return s.Client.EstimateGas(actx, ethereum.CallMsg{From: walletAddr, To: &airnode, Data: data})
	})
	if err != nil {
		gas = fallbackGasLimit
	}

	if kind == TxFulfillWithdrawal {
		// a withdrawal empties the designated wallet minus the transaction cost
		balance, berr := retry.Do(ctx, func(actx context.Context) (*big.Int, error) {
			return s.Client.Balance(actx, walletAddr)
		})
		if berr != nil {
			return []logger.Log{logger.PendErr(logger.ERROR,
				fmt.Sprintf("%s Unable to fetch designated wallet balance for withdrawal ID:%s",
					s.Tag(), requestID.Hex()), berr)}, Transaction{}, false
		}

		txCost := new(big.Int).Mul(new(big.Int).SetUint64(gas), s.GasPrice)
		value = new(big.Int).Sub(balance, txCost)

		if value.Sign() <= 0 {
			return []logger.Log{logger.Pend(logger.WARN,
				fmt.Sprintf("%s Designated wallet balance does not cover withdrawal ID:%s",
					s.Tag(), requestID.Hex()))}, Transaction{}, false
		}
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &airnode,
		Value:    value,
		Gas:      gas,
		GasPrice: s.GasPrice,
		Data:     data,
	})

	hash, err := retry.Do(ctx, func(actx context.Context) (common.Hash, error) {
		return s.Client.SignAndSend(actx, tx, key)
	})
	if err != nil {
		return []logger.Log{logger.PendErr(logger.ERROR,
				fmt.Sprintf("%s Unable to submit %s for Request ID:%s", s.Tag(), kind, requestID.Hex()), err)},
			Transaction{}, false
	}

	return []logger.Log{logger.Pend(logger.INFO,
			fmt.Sprintf("%s Submitted %s nonce:%d for Request ID:%s tx:%s",
				s.Tag(), kind, nonce, requestID.Hex(), hash.Hex()))},
		Transaction{Kind: kind, RequestID: requestID, Hash: hash}, true
}
