package caller

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/semaphore"

	"github.com/tarancss/airnode/aggregator"
	"github.com/tarancss/airnode/lib/config"
	"github.com/tarancss/airnode/lib/logger"
	"github.com/tarancss/airnode/lib/retry"
	"github.com/tarancss/airnode/requests"
)

// maxConcurrentCalls bounds the HTTP fan-out over aggregated calls.
const maxConcurrentCalls = 10

// Execute invokes the API for every aggregated call with a bounded parallel fan-out. Calls are independent: one
// failure marks only its own aggregated call as failed. The returned map is a new snapshot; logs come back in
// aggregated-id order so the stream is deterministic.
func Execute(ctx context.Context, c Caller, cfg config.Config,
	aggregated map[common.Hash]*aggregator.AggregatedAPICall) ([]logger.Log, map[common.Hash]*aggregator.AggregatedAPICall) {
	ids := make([]common.Hash, 0, len(aggregated))
	for id := range aggregated {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i].Hex() < ids[j].Hex() })

	out := make(map[common.Hash]*aggregator.AggregatedAPICall, len(aggregated))
	logsByCall := make([][]logger.Log, len(ids))

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = semaphore.NewWeighted(maxConcurrentCalls)
	)

	for i, id := range ids {
		if err := sem.Acquire(ctx, 1); err != nil {
			// run deadline hit: remaining calls fail, already-finished ones keep their result
			logsByCall[i] = []logger.Log{logger.PendErr(logger.ERROR,
				fmt.Sprintf("API call aborted for aggregated call ID:%s", id.Hex()), err)}

			failed := *aggregated[id]
			failed.ErrorCode = requests.CodeApiCallFailed

			mu.Lock()
			out[id] = &failed
			mu.Unlock()

			continue
		}

		wg.Add(1)

		go func(i int, call aggregator.AggregatedAPICall) {
			defer wg.Done()
			defer sem.Release(1)

			logs, done := executeOne(ctx, c, cfg, call)

			mu.Lock()
			logsByCall[i] = logs
			out[done.ID] = &done
			mu.Unlock()
		}(i, *aggregated[id])
	}

	wg.Wait()

	return logger.Combine(logsByCall...), out
}

// executeOne runs a single aggregated call end to end: OIS resolution, the HTTP invocation with retries, response
// extraction and encoding.
func executeOne(ctx context.Context, c Caller, cfg config.Config,
	call aggregator.AggregatedAPICall) ([]logger.Log, aggregator.AggregatedAPICall) {
	ois, endpoint, err := cfg.FindEndpoint(call.Trigger.OISTitle, call.Trigger.EndpointName)
	if err != nil {
		call.ErrorCode = requests.CodeApiCallFailed

		return []logger.Log{logger.PendErr(logger.ERROR,
			fmt.Sprintf("Unable to resolve endpoint for aggregated call ID:%s", call.ID.Hex()), err)}, call
	}

	rsv, err := ExtractReserved(endpoint, call.Parameters)
	if err != nil {
		call.ErrorCode = requests.CodeApiCallFailed

		return []logger.Log{logger.PendErr(logger.ERROR,
			fmt.Sprintf("Invalid reserved parameters for aggregated call ID:%s", call.ID.Hex()), err)}, call
	}

	data, err := retry.Do(ctx, func(actx context.Context) ([]byte, error) {
		body, _, callErr := c.Call(actx, ois, endpoint, call.Parameters)

		return body, callErr
	})
	if err != nil {
		call.ErrorCode = requests.CodeApiCallFailed

		return []logger.Log{logger.PendErr(logger.ERROR,
			fmt.Sprintf("API call failed for aggregated call ID:%s endpoint:%s",
				call.ID.Hex(), call.Trigger.EndpointName), err)}, call
	}

	value, err := ExtractResponseValue(data, rsv)
	if err != nil {
		call.ErrorCode = requests.CodeApiCallFailed

		return []logger.Log{logger.PendErr(logger.ERROR,
			fmt.Sprintf("Unable to extract response value for aggregated call ID:%s", call.ID.Hex()), err)}, call
	}

	call.ResponseValue = value

	return []logger.Log{logger.Pend(logger.INFO,
		fmt.Sprintf("API call executed for aggregated call ID:%s endpoint:%s",
			call.ID.Hex(), call.Trigger.EndpointName))}, call
}
