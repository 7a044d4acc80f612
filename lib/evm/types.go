package evm

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ProviderRecord is the on-chain record identifying this node on a chain.
type ProviderRecord struct {
	Admin       common.Address
	XPub        string
	Authorizers []common.Address
	BlockNumber *big.Int
}

// Exists reports whether the record has been created on chain. An absent provider comes back with an empty xpub.
func (r ProviderRecord) Exists() bool {
	return r.XPub != ""
}

// Template is a stored (providerId, endpointId, parameters) triple referenced by short and regular requests.
type Template struct {
	ID                common.Hash
	ProviderID        common.Hash
	EndpointID        common.Hash
	RequesterIndex    *big.Int
	DesignatedWallet  common.Address
	FulfillAddress    common.Address
	FulfillFunctionID [4]byte
	Parameters        []byte
}
