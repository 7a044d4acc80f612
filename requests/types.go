// Package requests defines the request records the coordinator drives through its lifecycle and the stages that
// materialize them from chain logs: event decoding, record building, parameter decoding and the fulfilled/failed
// overlays. All stages are pure; they take values and return new values together with their pending logs.
package requests

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Type discriminates how a request supplies its parameters.
type Type string

// Request types.
const (
	TypeShort   Type = "short"   // template reference and client only
	TypeRegular Type = "regular" // template plus fulfillment parameters
	TypeFull    Type = "full"    // no template, everything inline
)

// Status is the lifecycle state of a request within a run. Transitions are monotone toward the terminal states
// Fulfilled, Ignored and Errored.
type Status string

// Request statuses.
const (
	StatusPending   Status = "Pending"
	StatusFulfilled Status = "Fulfilled"
	StatusIgnored   Status = "Ignored"
	StatusBlocked   Status = "Blocked"
	StatusErrored   Status = "Errored"
)

// ErrorCode explains why a request reached Errored or Blocked. The numeric value is the non-zero status code
// submitted with a fail transaction.
type ErrorCode int

// Error codes.
const (
	CodeNone                            ErrorCode = 0
	CodeRequestParameterDecodingFailed  ErrorCode = 1
	CodeReservedParametersInvalid       ErrorCode = 2
	CodeTemplateNotFound                ErrorCode = 3
	CodeTemplateParameterDecodingFailed ErrorCode = 4
	CodeInsufficientParameters          ErrorCode = 5
	CodeUnauthorizedClient              ErrorCode = 6
	CodePendingWithdrawal               ErrorCode = 7
	CodeNoMatchingAggregatedCall        ErrorCode = 8
	CodeApiCallFailed                   ErrorCode = 9
	CodeUnknownEndpointID               ErrorCode = 10
	CodeUnknownOIS                      ErrorCode = 11
)

// String returns the code name used in logs.
func (c ErrorCode) String() string {
	switch c {
	case CodeNone:
		return "None"
	case CodeRequestParameterDecodingFailed:
		return "RequestParameterDecodingFailed"
	case CodeReservedParametersInvalid:
		return "ReservedParametersInvalid"
	case CodeTemplateNotFound:
		return "TemplateNotFound"
	case CodeTemplateParameterDecodingFailed:
		return "TemplateParameterDecodingFailed"
	case CodeInsufficientParameters:
		return "InsufficientParameters"
	case CodeUnauthorizedClient:
		return "UnauthorizedClient"
	case CodePendingWithdrawal:
		return "PendingWithdrawal"
	case CodeNoMatchingAggregatedCall:
		return "NoMatchingAggregatedCall"
	case CodeApiCallFailed:
		return "ApiCallFailed"
	case CodeUnknownEndpointID:
		return "UnknownEndpointId"
	case CodeUnknownOIS:
		return "UnknownOIS"
	}
	return "Unknown"
}

// Metadata carries the chain context a request was observed with.
type Metadata struct {
	BlockNumber                      uint64
	LogIndex                         uint
	TransactionHash                  common.Hash
	CurrentBlock                     uint64
	IgnoreBlockedRequestsAfterBlocks uint64
}

// TooOldToBlock reports whether a Blocked request has aged past the point where it is dropped from the batch.
func (m Metadata) TooOldToBlock() bool {
	return m.CurrentBlock > m.BlockNumber &&
		m.CurrentBlock-m.BlockNumber > m.IgnoreBlockedRequestsAfterBlocks
}

// APICall is an API-call request observed on chain. Fields that are unknown until template application hold zero
// values; RequesterIndex is nil until known.
type APICall struct {
	ID                common.Hash
	Type              Type
	Status            Status
	ErrorCode         ErrorCode
	ProviderID        common.Hash
	RequesterIndex    *big.Int
	ClientAddress     common.Address
	DesignatedWallet  common.Address
	FulfillAddress    common.Address
	FulfillFunctionID [4]byte
	EndpointID        common.Hash
	TemplateID        common.Hash
	EncodedParameters []byte
	Parameters        map[string]string
	RequestCount      *big.Int
	Metadata          Metadata
	ResponseValue     []byte
	AggregatedID      common.Hash
}

// Withdrawal is a withdrawal request observed on chain.
type Withdrawal struct {
	ID               common.Hash
	ProviderID       common.Hash
	RequesterIndex   *big.Int
	DesignatedWallet common.Address
	Destination      common.Address
	Status           Status
	Metadata         Metadata
}

// Grouped are the pending records of one chain provider, separated by kind.
type Grouped struct {
	APICalls    []APICall
	Withdrawals []Withdrawal
}
