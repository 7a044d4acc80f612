// Package aggregator collapses equivalent API-call requests observed across chain providers into single aggregated
// calls, and maps the results back onto each provider's requests after execution. Equivalence is decided by a
// canonical fingerprint so the grouping is deterministic across runs.
package aggregator

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tarancss/airnode/lib/config"
	"github.com/tarancss/airnode/lib/logger"
	"github.com/tarancss/airnode/lib/util"
	"github.com/tarancss/airnode/requests"
)

// AggregatedAPICall is the coalesced representation of equivalent requests, executed once against the API.
type AggregatedAPICall struct {
	ID            common.Hash
	EndpointID    common.Hash
	Parameters    map[string]string
	Type          requests.Type
	Trigger       config.Trigger
	ResponseValue []byte
	ErrorCode     requests.ErrorCode
}

// Fingerprint canonicalizes an (endpointId, parameters) pair: parameter names sorted lexicographically, name and
// value joined verbatim. Requests with equal fingerprints are served by one API call.
func Fingerprint(endpointID common.Hash, params map[string]string) string {
	var b strings.Builder

	b.WriteString(endpointID.Hex())

	for _, k := range util.SortedKeys(params) {
		b.WriteByte(0x1f)
		b.WriteString(k)
		b.WriteByte(0x1e)
		b.WriteString(params[k])
	}

	return b.String()
}

// Aggregate groups the Pending API calls of all providers by fingerprint. Providers are visited in configuration
// order and requests in (block, log index) order, so the id of an aggregated call is the id of the first request
// encountered for its fingerprint. Each participating request is annotated with its aggregated id. The input groups
// are not mutated.
func Aggregate(cfg config.Config, groups [][]requests.APICall) ([]logger.Log, map[common.Hash]*AggregatedAPICall, [][]requests.APICall) {
	var pending []logger.Log

	aggregated := make(map[common.Hash]*AggregatedAPICall)
	byFingerprint := make(map[string]*AggregatedAPICall)

	out := make([][]requests.APICall, len(groups))

	for g, calls := range groups {
		out[g] = make([]requests.APICall, len(calls))

		for i, call := range calls {
			out[g][i] = call

			if call.Status != requests.StatusPending {
				continue
			}

			fp := Fingerprint(call.EndpointID, call.Parameters)

			agg, ok := byFingerprint[fp]
			if !ok {
				trigger, _ := cfg.FindTrigger(call.EndpointID.Hex())
				agg = &AggregatedAPICall{
					ID:         call.ID,
					EndpointID: call.EndpointID,
					Parameters: call.Parameters,
					Type:       call.Type,
					Trigger:    trigger,
				}
				byFingerprint[fp] = agg
				aggregated[agg.ID] = agg
			} else {
				pending = append(pending, logger.Pend(logger.DEBUG,
					fmt.Sprintf("Aggregating Request ID:%s into aggregated call ID:%s",
						call.ID.Hex(), agg.ID.Hex())))
			}

			out[g][i].AggregatedID = agg.ID
		}
	}

	return pending, aggregated, out
}

// Disaggregate maps executed aggregated calls back onto each provider's Pending requests. A request whose aggregated
// call is missing, or whose parameters no longer match the aggregated call's, is blocked rather than guessed at.
func Disaggregate(groups [][]requests.APICall, aggregated map[common.Hash]*AggregatedAPICall) ([]logger.Log, [][]requests.APICall) {
	var pending []logger.Log

	out := make([][]requests.APICall, len(groups))

	for g, calls := range groups {
		out[g] = make([]requests.APICall, len(calls))

		for i, call := range calls {
			out[g][i] = call

			if call.Status != requests.StatusPending {
				continue
			}

			agg, ok := aggregated[call.AggregatedID]
			if ok && !equalParams(call.Parameters, agg.Parameters) {
				ok = false // defensive: provider disagrees with the aggregated call
			}

			if !ok {
				out[g][i].Status = requests.StatusBlocked
				out[g][i].ErrorCode = requests.CodeNoMatchingAggregatedCall
				pending = append(pending, logger.Pend(logger.ERROR,
					fmt.Sprintf("Unable to find matching aggregated API calls for Request:%s", call.ID.Hex())))

				continue
			}

			if agg.ErrorCode != requests.CodeNone {
				out[g][i].Status = requests.StatusErrored
				out[g][i].ErrorCode = requests.CodeApiCallFailed

				continue
			}

			out[g][i].ResponseValue = agg.ResponseValue
		}
	}

	return pending, out
}

func equalParams(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
