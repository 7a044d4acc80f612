package requests

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tarancss/airnode/lib/logger"
)

// UpdateFulfilledAPICalls marks every API call whose id appears in fulfilled as Fulfilled. Idempotent; a request
// already fulfilled stays fulfilled and is never submitted again.
func UpdateFulfilledAPICalls(calls []APICall, fulfilled map[common.Hash]bool) ([]logger.Log, []APICall) {
	var pending []logger.Log

	out := make([]APICall, len(calls))

	for i, call := range calls {
		if fulfilled[call.ID] {
			call.Status = StatusFulfilled
			pending = append(pending, logger.Pend(logger.DEBUG,
				fmt.Sprintf("Request ID:%s (API call) has already been fulfilled", call.ID.Hex())))
		}

		out[i] = call
	}

	return pending, out
}

// UpdateFailedAPICalls marks every API call whose id appears in failed as Errored with ApiCallFailed, unless the
// fulfilled overlay already ran and won.
func UpdateFailedAPICalls(calls []APICall, failed map[common.Hash]bool) ([]logger.Log, []APICall) {
	var pending []logger.Log

	out := make([]APICall, len(calls))

	for i, call := range calls {
		if failed[call.ID] && call.Status != StatusFulfilled {
			call.Status = StatusErrored
			call.ErrorCode = CodeApiCallFailed
			pending = append(pending, logger.Pend(logger.DEBUG,
				fmt.Sprintf("Request ID:%s (API call) has already failed", call.ID.Hex())))
		}

		out[i] = call
	}

	return pending, out
}

// UpdateFulfilledWithdrawals marks withdrawals whose id appears in fulfilled as Fulfilled.
func UpdateFulfilledWithdrawals(withdrawals []Withdrawal, fulfilled map[common.Hash]bool) ([]logger.Log, []Withdrawal) {
	var pending []logger.Log

	out := make([]Withdrawal, len(withdrawals))

	for i, wd := range withdrawals {
		if fulfilled[wd.ID] {
			wd.Status = StatusFulfilled
			pending = append(pending, logger.Pend(logger.DEBUG,
				fmt.Sprintf("Request ID:%s (withdrawal) has already been fulfilled", wd.ID.Hex())))
		}

		out[i] = wd
	}

	return pending, out
}

// BlockPendingWithdrawals blocks API calls whose requester has a withdrawal in flight this run. The designated
// wallet is being drained; fulfilling from it would race the withdrawal.
func BlockPendingWithdrawals(calls []APICall, withdrawals []Withdrawal) ([]logger.Log, []APICall) {
	var pending []logger.Log

	inFlight := make(map[string]bool)

	for _, wd := range withdrawals {
		if wd.Status == StatusPending && wd.RequesterIndex != nil {
			inFlight[wd.RequesterIndex.String()] = true
		}
	}

	out := make([]APICall, len(calls))

	for i, call := range calls {
		if call.Status == StatusPending && call.RequesterIndex != nil && inFlight[call.RequesterIndex.String()] {
			call.Status = StatusBlocked
			call.ErrorCode = CodePendingWithdrawal
			pending = append(pending, logger.Pend(logger.WARN,
				fmt.Sprintf("Request ID:%s is blocked until requester %s withdrawal is fulfilled",
					call.ID.Hex(), call.RequesterIndex.String())))
		}

		out[i] = call
	}

	return pending, out
}
