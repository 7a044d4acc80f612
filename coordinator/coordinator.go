package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tarancss/airnode/aggregator"
	"github.com/tarancss/airnode/caller"
	"github.com/tarancss/airnode/lib/config"
	"github.com/tarancss/airnode/lib/logger"
	"github.com/tarancss/airnode/lib/retry"
	"github.com/tarancss/airnode/lib/wallet"
	"github.com/tarancss/airnode/provider"
	"github.com/tarancss/airnode/requests"
)

// Errors returned by a coordinator run.
var (
	ErrNoUsableProviders = errors.New("no chain provider could be initialized")
)

// maxConcurrentProviders bounds the per-provider fan-outs.
const maxConcurrentProviders = 4

// runTimeout bounds the wall clock of one run; submissions past it are aborted.
const runTimeout = 2 * time.Minute

// Run executes one coordinator run: initialize and fetch per provider, aggregate, execute, disaggregate and
// submit. The returned state carries the full ordered log stream; the error is non-nil only for run-fatal
// conditions (bad master key, every provider unusable).
func Run(ctx context.Context, cfg config.Config, c caller.Caller) (State, error) {
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	state := NewState(cfg)

	err, master := retry.Go(func() (*wallet.Master, error) {
		return wallet.New(cfg.Seed)
	})
	if err != nil {
		state = Update(state, Partial{Logs: []logger.Log{
			logger.PendErr(logger.ERROR, "Unable to derive the master wallet from the configured seed", err)}})

		return state, err
	}

	state = Update(state, Partial{Logs: []logger.Log{logger.Pend(logger.INFO,
		fmt.Sprintf("Coordinator run started, provider ID:%s", master.ProviderID().Hex()))}})

	// connect every configured (chain, provider) pair in configuration order
	var (
		providers []*provider.State
		dialLogs  []logger.Log
	)

	for _, chain := range cfg.Chains {
		for _, endpoint := range chain.Providers {
			p, dialErr := provider.New(chain, endpoint, master)
			if dialErr != nil {
				dialLogs = append(dialLogs, logger.PendErr(logger.ERROR,
					fmt.Sprintf("[%d:%s] Unable to connect to chain provider", chain.ID, endpoint.Name), dialErr))

				continue
			}

			providers = append(providers, p)
		}
	}

	state = Update(state, Partial{Logs: dialLogs})
	defer func() {
		for _, p := range providers {
			p.Close()
		}
	}()

	// initialize provider records and fetch requests with bounded parallelism; a failed provider is skipped
	// downstream, it never aborts its peers
	usable := make([]bool, len(providers))
	providerLogs := make([][]logger.Log, len(providers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentProviders)

	var mu sync.Mutex

	for i, p := range providers {
		i, p := i, p

		g.Go(func() error {
			initLogs, initErr := p.Initialize(gctx)
			if initErr != nil {
				mu.Lock()
				providerLogs[i] = initLogs
				mu.Unlock()

				return nil
			}

			fetchLogs, fetchErr := p.FetchRequests(gctx, cfg)

			mu.Lock()
			providerLogs[i] = logger.Combine(initLogs, fetchLogs)
			usable[i] = fetchErr == nil
			mu.Unlock()

			return nil
		})
	}

	_ = g.Wait()

	state = Update(state, Partial{Logs: logger.Combine(providerLogs...)})

	active := make([]*provider.State, 0, len(providers))
	for i, p := range providers {
		if usable[i] {
			active = append(active, p)
		}
	}

	if len(active) == 0 {
		state = Update(state, Partial{Logs: []logger.Log{
			logger.Pend(logger.ERROR, "No chain provider is usable, aborting the run")}})

		return state, ErrNoUsableProviders
	}

	state.Providers = active

	// aggregate equivalent requests across providers
	groups := make([][]requests.APICall, len(active))
	for i, p := range active {
		groups[i] = p.Requests.APICalls
	}

	aggLogs, aggregated, groups := aggregator.Aggregate(cfg, groups)
	state = Update(state, Partial{Logs: aggLogs})

	// execute each aggregated call once
	execLogs, executed := caller.Execute(ctx, c, cfg, aggregated)
	state = Update(state, Partial{Logs: execLogs, AggregatedCalls: executed})

	// map results back onto every provider's requests
	disLogs, groups := aggregator.Disaggregate(groups, executed)
	state = Update(state, Partial{Logs: disLogs})

	for i, p := range active {
		grouped := p.Requests
		grouped.APICalls = groups[i]
		*p = provider.Update(*p, provider.Partial{Requests: &grouped})
	}

	// submit fulfillments per provider with bounded parallelism
	submitLogs := make([][]logger.Log, len(active))
	submitTxs := make([][]provider.Transaction, len(active))

	sg, sctx := errgroup.WithContext(ctx)
	sg.SetLimit(maxConcurrentProviders)

	for i, p := range active {
		i, p := i, p

		sg.Go(func() error {
			logs, txs := p.SubmitTransactions(sctx)

			mu.Lock()
			submitLogs[i] = logs
			submitTxs[i] = txs
			mu.Unlock()

			return nil
		})
	}

	_ = sg.Wait()

	var txs []provider.Transaction
	for _, t := range submitTxs {
		txs = append(txs, t...)
	}

	state = Update(state, Partial{Logs: logger.Combine(submitLogs...), Transactions: txs})
	state = Update(state, Partial{Logs: []logger.Log{logger.Pend(logger.INFO,
		fmt.Sprintf("Coordinator run finished: %d aggregated calls, %d transactions",
			len(executed), len(txs)))}})

	observeRun(state)

	return state, nil
}
