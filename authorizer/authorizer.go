// Package authorizer classifies Pending API-call requests against the node's configuration and the batched
// endorsement lookups: a request is served, silently ignored, permanently errored or dropped once blocked for too
// long. The classification is a pure function of its inputs; all chain reads happen before it runs.
package authorizer

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tarancss/airnode/caller"
	"github.com/tarancss/airnode/lib/config"
	"github.com/tarancss/airnode/lib/logger"
	"github.com/tarancss/airnode/requests"
)

// Authorize applies the authorization rules in order to every Pending API call; the first rule that matches decides
// the request. Blocked requests older than their ignore threshold are dropped from the batch entirely.
func Authorize(cfg config.Config, calls []requests.APICall,
	authorized map[common.Hash]bool) ([]logger.Log, []requests.APICall) {
	var pending []logger.Log

	out := make([]requests.APICall, 0, len(calls))

	for _, call := range calls {
		if call.Status == requests.StatusBlocked && call.Metadata.TooOldToBlock() {
			pending = append(pending, logger.Pend(logger.INFO,
				fmt.Sprintf("Request ID:%s has been blocked for more than %d blocks and is dropped",
					call.ID.Hex(), call.Metadata.IgnoreBlockedRequestsAfterBlocks)))

			continue
		}

		if call.Status != requests.StatusPending {
			out = append(out, call)

			continue
		}

		logs, decided := authorizeOne(cfg, call, authorized)
		pending = append(pending, logs...)
		out = append(out, decided)
	}

	return pending, out
}

func authorizeOne(cfg config.Config, call requests.APICall,
	authorized map[common.Hash]bool) ([]logger.Log, requests.APICall) {
	// 1. trigger match: endpoints this node does not serve are dropped silently
	trigger, ok := cfg.FindTrigger(call.EndpointID.Hex())
	if call.EndpointID == (common.Hash{}) || !ok {
		call.Status = requests.StatusIgnored

		return []logger.Log{logger.Pend(logger.DEBUG,
			fmt.Sprintf("Ignoring Request ID:%s for unknown endpoint ID:%s",
				call.ID.Hex(), call.EndpointID.Hex()))}, call
	}

	// 2. OIS resolution
	ois, found := cfg.FindOIS(trigger.OISTitle)
	if !found {
		call.Status = requests.StatusErrored
		call.ErrorCode = requests.CodeUnknownOIS

		return []logger.Log{logger.Pend(logger.ERROR,
			fmt.Sprintf("Unknown OIS:%s for Request ID:%s", trigger.OISTitle, call.ID.Hex()))}, call
	}

	var endpoint config.Endpoint

	found = false

	for _, e := range ois.Endpoints {
		if e.Name == trigger.EndpointName {
			endpoint = e
			found = true

			break
		}
	}

	if !found {
		call.Status = requests.StatusErrored
		call.ErrorCode = requests.CodeUnknownEndpointID

		return []logger.Log{logger.Pend(logger.ERROR,
			fmt.Sprintf("Unknown endpoint:%s in OIS:%s for Request ID:%s",
				trigger.EndpointName, trigger.OISTitle, call.ID.Hex()))}, call
	}

	// 3. reserved parameters
	if _, err := caller.ExtractReserved(endpoint, call.Parameters); err != nil {
		call.Status = requests.StatusErrored
		call.ErrorCode = requests.CodeReservedParametersInvalid

		return []logger.Log{logger.PendErr(logger.ERROR,
			fmt.Sprintf("Invalid reserved parameters for Request ID:%s", call.ID.Hex()), err)}, call
	}

	// 4. declared required parameters
	for _, p := range endpoint.Parameters {
		if !p.Required {
			continue
		}

		if _, supplied := call.Parameters[p.Name]; !supplied && p.Default == "" {
			call.Status = requests.StatusErrored
			call.ErrorCode = requests.CodeInsufficientParameters

			return []logger.Log{logger.Pend(logger.ERROR,
				fmt.Sprintf("Request ID:%s is missing required parameter:%s", call.ID.Hex(), p.Name))}, call
		}
	}

	// 5. endorsement
	if call.RequesterIndex != nil && !authorized[call.ID] {
		call.Status = requests.StatusErrored
		call.ErrorCode = requests.CodeUnauthorizedClient

		return []logger.Log{logger.Pend(logger.ERROR,
			fmt.Sprintf("Client:%s is not endorsed by requester %s for Request ID:%s",
				call.ClientAddress.Hex(), call.RequesterIndex.String(), call.ID.Hex()))}, call
	}

	return nil, call
}
