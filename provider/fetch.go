package provider

import (
	"context"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/tarancss/airnode/authorizer"
	"github.com/tarancss/airnode/lib/config"
	"github.com/tarancss/airnode/lib/evm"
	"github.com/tarancss/airnode/lib/logger"
	"github.com/tarancss/airnode/lib/retry"
	"github.com/tarancss/airnode/requests"
)

// FetchRequests materializes this provider's pending work from chain logs: event decoding, record building,
// parameter decoding, template application, the fulfilled/failed overlays, authorization and the per-requester
// transaction counts. Only chain reads suspend; the stages in between are pure.
func (s *State) FetchRequests(ctx context.Context, cfg config.Config) ([]logger.Log, error) {
	from := uint64(0)
	if s.CurrentBlock > s.Chain.BlockHistoryLimit {
		from = s.CurrentBlock - s.Chain.BlockHistoryLimit
	}

	rawLogs, err := retry.Do(ctx, func(actx context.Context) ([]types.Log, error) {
		return s.Client.FetchLogs(actx, from, s.CurrentBlock)
	})
	if err != nil {
		return []logger.Log{logger.PendErr(logger.ERROR,
			fmt.Sprintf("%s Unable to fetch logs between blocks %d and %d", s.Tag(), from, s.CurrentBlock), err)}, err
	}

	// chain providers generally deliver logs ordered, but ordering is an invariant here, not an assumption
	sort.SliceStable(rawLogs, func(i, j int) bool {
		if rawLogs[i].BlockNumber != rawLogs[j].BlockNumber {
			return rawLogs[i].BlockNumber < rawLogs[j].BlockNumber
		}
		return rawLogs[i].Index < rawLogs[j].Index
	})

	pending := []logger.Log{logger.Pend(logger.INFO,
		fmt.Sprintf("%s Fetched %d logs between blocks %d and %d", s.Tag(), len(rawLogs), from, s.CurrentBlock))}

	decodeLogs, batch := requests.DecodeLogs(rawLogs, s.CurrentBlock, s.Chain.IgnoreBlockedRequestsAfterBlocks)
	buildLogs, grouped := requests.BuildRequests(batch)
	pending = logger.Combine(pending, decodeLogs, buildLogs)

	// decode client-supplied parameter blobs
	for i, call := range grouped.APICalls {
		logs, decoded := requests.ApplyParameters(call)
		pending = append(pending, logs...)
		grouped.APICalls[i] = decoded
	}

	// resolve template references for short and regular requests
	templateLogs, calls, err := s.applyTemplates(ctx, grouped.APICalls)
	pending = append(pending, templateLogs...)

	if err != nil {
		return pending, err
	}

	grouped.APICalls = calls

	// overlay fulfillments observed in the same window
	fulfilledLogs, calls := requests.UpdateFulfilledAPICalls(grouped.APICalls, batch.FulfilledAPICalls)
	failedLogs, calls := requests.UpdateFailedAPICalls(calls, batch.FailedAPICalls)
	wdLogs, withdrawals := requests.UpdateFulfilledWithdrawals(grouped.Withdrawals, batch.FulfilledWithdrawals)
	blockLogs, calls := requests.BlockPendingWithdrawals(calls, withdrawals)
	pending = logger.Combine(pending, fulfilledLogs, failedLogs, wdLogs, blockLogs)

	// batched endorsement lookup for what is still pending
	authorized, authLogs, err := s.fetchAuthorizations(ctx, calls)
	pending = append(pending, authLogs...)

	if err != nil {
		return pending, err
	}

	authorizeLogs, calls := authorizer.Authorize(cfg, calls, authorized)
	pending = append(pending, authorizeLogs...)

	grouped.APICalls = calls
	grouped.Withdrawals = withdrawals
	s.Requests = grouped

	// transaction counts for every requester with actionable work, fetched once per run
	countLogs, err := s.fetchTransactionCounts(ctx)
	pending = append(pending, countLogs...)

	return pending, err
}

// applyTemplates fetches the referenced templates in one batched view call and merges them into the requests:
// template parameters under client parameters, fulfillment-side fields from the template where the event left them
// unset.
func (s *State) applyTemplates(ctx context.Context, calls []requests.APICall) ([]logger.Log, []requests.APICall, error) {
	var ids []common.Hash

	seen := make(map[common.Hash]bool)

	for _, call := range calls {
		if call.Status == requests.StatusPending && call.TemplateID != (common.Hash{}) && !seen[call.TemplateID] {
			seen[call.TemplateID] = true
			ids = append(ids, call.TemplateID)
		}
	}

	if len(ids) == 0 {
		return nil, calls, nil
	}

	templates, err := retry.Do(ctx, func(actx context.Context) (map[common.Hash]evm.Template, error) {
		return s.Client.GetTemplates(actx, ids)
	})
	if err != nil {
		return []logger.Log{logger.PendErr(logger.ERROR,
			fmt.Sprintf("%s Unable to fetch templates", s.Tag()), err)}, calls, err
	}

	var pending []logger.Log

	out := make([]requests.APICall, len(calls))

	for i, call := range calls {
		out[i] = call

		if call.Status != requests.StatusPending || call.TemplateID == (common.Hash{}) {
			continue
		}

		template, ok := templates[call.TemplateID]
		if !ok {
			out[i].Status = requests.StatusErrored
			out[i].ErrorCode = requests.CodeTemplateNotFound
			pending = append(pending, logger.Pend(logger.ERROR,
				fmt.Sprintf("%s Template ID:%s not found for Request ID:%s",
					s.Tag(), call.TemplateID.Hex(), call.ID.Hex())))

			continue
		}

		templateParams, err := requests.DecodeParameters(template.Parameters)
		if err != nil {
			out[i].Status = requests.StatusErrored
			out[i].ErrorCode = requests.CodeTemplateParameterDecodingFailed
			pending = append(pending, logger.PendErr(logger.ERROR,
				fmt.Sprintf("%s Unable to decode parameters of template ID:%s for Request ID:%s",
					s.Tag(), call.TemplateID.Hex(), call.ID.Hex()), err))

			continue
		}

		out[i].Parameters = requests.MergeParameters(templateParams, call.Parameters)
		out[i].EndpointID = template.EndpointID

		if out[i].RequesterIndex == nil {
			out[i].RequesterIndex = template.RequesterIndex
		}
		if out[i].DesignatedWallet == (common.Address{}) {
			out[i].DesignatedWallet = template.DesignatedWallet
		}
		if out[i].FulfillAddress == (common.Address{}) {
			out[i].FulfillAddress = template.FulfillAddress
		}
		if out[i].FulfillFunctionID == ([4]byte{}) {
			out[i].FulfillFunctionID = template.FulfillFunctionID
		}
	}

	return pending, out, nil
}

// fetchAuthorizations runs the batched endorsement check for the Pending API calls.
func (s *State) fetchAuthorizations(ctx context.Context, calls []requests.APICall) (map[common.Hash]bool, []logger.Log, error) {
	var queries []evm.AuthorizationQuery

	for _, call := range calls {
		if call.Status != requests.StatusPending {
			continue
		}

		queries = append(queries, evm.AuthorizationQuery{
			RequestID:        call.ID,
			EndpointID:       call.EndpointID,
			RequesterIndex:   call.RequesterIndex,
			DesignatedWallet: call.DesignatedWallet,
			ClientAddress:    call.ClientAddress,
		})
	}

	if len(queries) == 0 {
		return map[common.Hash]bool{}, nil, nil
	}

	authorized, err := retry.Do(ctx, func(actx context.Context) (map[common.Hash]bool, error) {
		return s.Client.CheckAuthorizationStatuses(actx, s.Master.ProviderID(), queries)
	})
	if err != nil {
		return nil, []logger.Log{logger.PendErr(logger.ERROR,
			fmt.Sprintf("%s Unable to fetch authorization statuses", s.Tag()), err)}, err
	}

	return authorized, nil, nil
}

// fetchTransactionCounts reads the on-chain transaction count of every designated wallet that will submit this run.
func (s *State) fetchTransactionCounts(ctx context.Context) ([]logger.Log, error) {
	indices := make(map[string]common.Address)

	for _, call := range s.Requests.APICalls {
		if call.RequesterIndex == nil {
			continue
		}
		if call.Status == requests.StatusPending || call.Status == requests.StatusErrored {
			indices[call.RequesterIndex.String()] = call.DesignatedWallet
		}
	}

	for _, wd := range s.Requests.Withdrawals {
		if wd.Status == requests.StatusPending && wd.RequesterIndex != nil {
			indices[wd.RequesterIndex.String()] = wd.DesignatedWallet
		}
	}

	sorted := make([]string, 0, len(indices))
	for idx := range indices {
		sorted = append(sorted, idx)
	}

	sort.Strings(sorted)

	counts := make(map[string]uint64, len(indices))

	var pending []logger.Log

	for _, idx := range sorted {
		addr := indices[idx]
		count, err := retry.Do(ctx, func(actx context.Context) (uint64, error) {
			return s.Client.TransactionCount(actx, addr)
		})
		if err != nil {
			return []logger.Log{logger.PendErr(logger.ERROR,
				fmt.Sprintf("%s Unable to fetch transaction count of wallet %s", s.Tag(), addr.Hex()), err)}, err
		}

		counts[idx] = count
		pending = append(pending, logger.Pend(logger.DEBUG,
			fmt.Sprintf("%s Requester %s designated wallet %s transaction count:%d", s.Tag(), idx, addr.Hex(), count)))
	}

	s.TransactionCounts = counts

	return pending, nil
}
