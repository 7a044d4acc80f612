// Package airnode and its sub-packages implement the off-chain coordinator of an oracle node bridging on-chain
// request events to off-chain HTTP APIs.
/*
airnode provides one service:

the coordinator (package coordinator), executed as short batch runs. On each run the node reconciles its on-chain
provider record, ingests the event logs of the configured EVM chains, drives every observed request through
initialization, parameter decoding, authorization, aggregation, API execution, disaggregation and transaction
submission, and exits. Nothing persists between runs; the pending work is always reconstructed from chain state.

Architecture

Each configured chain can be backed by several chain providers (JSON-RPC endpoints). Requests observed on
independent providers are cross-referenced by the aggregator (package aggregator): equivalent requests collapse
into one aggregated API call keyed by a canonical fingerprint, the external API is invoked exactly once per
aggregated call (package caller), and the disaggregator copies each result back onto every provider's requests.
Per-provider work, the request materialization pipeline, runs in packages provider and requests; authorization
rules live in package authorizer.

The node is identified on every chain by a provider record derived from its master HD wallet (package lib/wallet):
the record carries the hash of the master extended public key, and each requester index maps to one designated
wallet derived from the same seed, which funds and signs that requester's fulfillment transactions. Transactions
for a requester are submitted in chain observation order with contiguous nonces starting at the designated
wallet's on-chain transaction count.

All chain access goes through package lib/evm. The decoding, overlay, authorization, aggregation and
disaggregation stages are pure: they receive values and return new values together with pending logs. The provider
stages that read the chain write their results onto the provider state in place. Pending logs are concatenated at
stage joins and shipped once per run in plain or JSON format (package lib/logger). Transient chain and API errors are retried with bounded backoff (package
lib/retry); per-request errors become request status transitions and fail transactions, never aborted batches.

The coordinator can optionally archive a report of each run to a database (package lib/store, MongoDB or
PostgreSQL) and publish one event per submitted transaction to a message broker (package lib/msg, AMQP). Both are
write-only side channels; the engine never reads them back.

The service can be monitored via a Prometheus API by setting the flag "-m" at startup, and can serve an HTTP API
to trigger runs externally by setting the flag "-s" (see cmd/airnode).
*/
package airnode
