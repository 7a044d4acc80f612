// Package evm implements the connection to EVM chains: log ingestion, the Airnode and Convenience contract
// interfaces, and transaction submission. All chain access of the coordinator goes through a Client.
package evm

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Airnode contract event names.
const (
	EvClientRequestCreated      = "ClientRequestCreated"
	EvClientShortRequestCreated = "ClientShortRequestCreated"
	EvClientFullRequestCreated  = "ClientFullRequestCreated"
	EvClientRequestFulfilled    = "ClientRequestFulfilled"
	EvClientRequestFailed       = "ClientRequestFailed"
	EvWithdrawalRequested       = "WithdrawalRequested"
	EvWithdrawalFulfilled       = "WithdrawalFulfilled"
)

const airnodeABIJSON = `[
{"type":"event","name":"ClientRequestCreated","inputs":[
  {"indexed":true,"name":"providerId","type":"bytes32"},
  {"indexed":true,"name":"requestId","type":"bytes32"},
  {"indexed":false,"name":"noRequests","type":"uint256"},
  {"indexed":false,"name":"clientAddress","type":"address"},
  {"indexed":false,"name":"templateId","type":"bytes32"},
  {"indexed":false,"name":"requesterIndex","type":"uint256"},
  {"indexed":false,"name":"designatedWallet","type":"address"},
  {"indexed":false,"name":"fulfillAddress","type":"address"},
  {"indexed":false,"name":"fulfillFunctionId","type":"bytes4"},
  {"indexed":false,"name":"parameters","type":"bytes"}]},
{"type":"event","name":"ClientShortRequestCreated","inputs":[
  {"indexed":true,"name":"providerId","type":"bytes32"},
  {"indexed":true,"name":"requestId","type":"bytes32"},
  {"indexed":false,"name":"noRequests","type":"uint256"},
  {"indexed":false,"name":"clientAddress","type":"address"},
  {"indexed":false,"name":"templateId","type":"bytes32"},
  {"indexed":false,"name":"parameters","type":"bytes"}]},
{"type":"event","name":"ClientFullRequestCreated","inputs":[
  {"indexed":true,"name":"providerId","type":"bytes32"},
  {"indexed":true,"name":"requestId","type":"bytes32"},
  {"indexed":false,"name":"noRequests","type":"uint256"},
  {"indexed":false,"name":"clientAddress","type":"address"},
  {"indexed":false,"name":"endpointId","type":"bytes32"},
  {"indexed":false,"name":"requesterIndex","type":"uint256"},
  {"indexed":false,"name":"designatedWallet","type":"address"},
  {"indexed":false,"name":"fulfillAddress","type":"address"},
  {"indexed":false,"name":"fulfillFunctionId","type":"bytes4"},
  {"indexed":false,"name":"parameters","type":"bytes"}]},
{"type":"event","name":"ClientRequestFulfilled","inputs":[
  {"indexed":true,"name":"providerId","type":"bytes32"},
  {"indexed":true,"name":"requestId","type":"bytes32"},
  {"indexed":false,"name":"statusCode","type":"uint256"},
  {"indexed":false,"name":"data","type":"bytes"}]},
{"type":"event","name":"ClientRequestFailed","inputs":[
  {"indexed":true,"name":"providerId","type":"bytes32"},
  {"indexed":true,"name":"requestId","type":"bytes32"}]},
{"type":"event","name":"WithdrawalRequested","inputs":[
  {"indexed":true,"name":"providerId","type":"bytes32"},
  {"indexed":true,"name":"requesterIndex","type":"uint256"},
  {"indexed":true,"name":"withdrawalId","type":"bytes32"},
  {"indexed":false,"name":"designatedWallet","type":"address"},
  {"indexed":false,"name":"destination","type":"address"}]},
{"type":"event","name":"WithdrawalFulfilled","inputs":[
  {"indexed":true,"name":"providerId","type":"bytes32"},
  {"indexed":true,"name":"requesterIndex","type":"uint256"},
  {"indexed":true,"name":"withdrawalId","type":"bytes32"},
  {"indexed":false,"name":"designatedWallet","type":"address"},
  {"indexed":false,"name":"destination","type":"address"},
  {"indexed":false,"name":"amount","type":"uint256"}]},
{"type":"function","name":"fulfill","stateMutability":"nonpayable","inputs":[
  {"name":"requestId","type":"bytes32"},
  {"name":"providerId","type":"bytes32"},
  {"name":"statusCode","type":"uint256"},
  {"name":"data","type":"bytes"},
  {"name":"fulfillAddress","type":"address"},
  {"name":"fulfillFunctionId","type":"bytes4"}],"outputs":[
  {"name":"callSuccess","type":"bool"},
  {"name":"callData","type":"bytes"}]},
{"type":"function","name":"fail","stateMutability":"nonpayable","inputs":[
  {"name":"requestId","type":"bytes32"},
  {"name":"providerId","type":"bytes32"},
  {"name":"statusCode","type":"uint256"},
  {"name":"fulfillAddress","type":"address"},
  {"name":"fulfillFunctionId","type":"bytes4"}],"outputs":[]},
{"type":"function","name":"fulfillWithdrawal","stateMutability":"payable","inputs":[
  {"name":"withdrawalId","type":"bytes32"},
  {"name":"providerId","type":"bytes32"},
  {"name":"requesterIndex","type":"uint256"},
  {"name":"destination","type":"address"}],"outputs":[]},
{"type":"function","name":"createProvider","stateMutability":"payable","inputs":[
  {"name":"admin","type":"address"},
  {"name":"xpub","type":"string"},
  {"name":"authorizers","type":"address[]"}],"outputs":[
  {"name":"providerId","type":"bytes32"}]}
]`

const convenienceABIJSON = `[
{"type":"function","name":"getProviderAndBlockNumber","stateMutability":"view","inputs":[
  {"name":"providerId","type":"bytes32"}],"outputs":[
  {"name":"admin","type":"address"},
  {"name":"xpub","type":"string"},
  {"name":"authorizers","type":"address[]"},
  {"name":"blockNumber","type":"uint256"}]},
{"type":"function","name":"getTemplates","stateMutability":"view","inputs":[
  {"name":"templateIds","type":"bytes32[]"}],"outputs":[
  {"name":"providerIds","type":"bytes32[]"},
  {"name":"endpointIds","type":"bytes32[]"},
  {"name":"requesterIndices","type":"uint256[]"},
  {"name":"designatedWallets","type":"address[]"},
  {"name":"fulfillAddresses","type":"address[]"},
  {"name":"fulfillFunctionIds","type":"bytes4[]"},
  {"name":"parameters","type":"bytes[]"}]},
{"type":"function","name":"checkAuthorizationStatuses","stateMutability":"view","inputs":[
  {"name":"providerId","type":"bytes32"},
  {"name":"requestIds","type":"bytes32[]"},
  {"name":"endpointIds","type":"bytes32[]"},
  {"name":"requesterIndices","type":"uint256[]"},
  {"name":"designatedWallets","type":"address[]"},
  {"name":"clientAddresses","type":"address[]"}],"outputs":[
  {"name":"statuses","type":"bool[]"}]}
]`

// Parsed contract ABIs. Parsing happens once at load; the JSON above is a constant so a failure is a programming
// error and panics.
var (
	AirnodeABI     = mustParse(airnodeABIJSON)
	ConvenienceABI = mustParse(convenienceABIJSON)
)

func mustParse(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(err)
	}
	return parsed
}

// Topic returns the log topic hash of the named Airnode event.
func Topic(event string) common.Hash {
	return AirnodeABI.Events[event].ID
}
