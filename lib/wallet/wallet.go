// Package wallet implements the node's master hierarchical deterministic wallet. The provider record on every chain
// is identified by the hash of the master extended public key, and each requester index maps to one designated
// wallet derived from the same seed, so fulfillment transactions can be signed without any per-requester key
// management. Requester index 0 is reserved for the master wallet itself.
package wallet

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"math/big"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tarancss/hd"
)

// Errors returned deriving wallets.
var (
	ErrBadSeed       = errors.New("seed is not a valid hex string")
	ErrIndexTooLarge = errors.New("requester index does not fit a derivation index")
)

// Master holds the master HD node and the values derived from it once at startup.
type Master struct {
	hdw        *hd.HdWallet
	xpub       string
	providerID common.Hash
}

// New derives the master node from the hex-encoded seed.
func New(seedHex string) (*Master, error) {
	seed, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, ErrBadSeed
	}

	hdw, err := hd.Init(seed)
	if err != nil {
		return nil, err
	}

	// the extended public key identifies the provider record on chain
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, err
	}

	neutered, err := master.Neuter()
	if err != nil {
		return nil, err
	}

	xpub := neutered.String()

	return &Master{
		hdw:        hdw,
		xpub:       xpub,
		providerID: crypto.Keccak256Hash([]byte(xpub)),
	}, nil
}

// XPub returns the master extended public key.
func (m *Master) XPub() string {
	return m.xpub
}

// ProviderID returns the deterministic provider identifier, the keccak hash of the extended public key.
func (m *Master) ProviderID() common.Hash {
	return m.providerID
}

// MasterWallet returns the master wallet address and signing key. The master wallet funds provider record creation.
func (m *Master) MasterWallet() (common.Address, *ecdsa.PrivateKey, error) {
	return m.derive(0)
}

// DesignatedWallet returns the address and signing key of the wallet designated for the given requester index.
func (m *Master) DesignatedWallet(requesterIndex *big.Int) (common.Address, *ecdsa.PrivateKey, error) {
	if requesterIndex == nil || !requesterIndex.IsUint64() || requesterIndex.Uint64() > 1<<31-1 {
		return common.Address{}, nil, ErrIndexTooLarge
	}

	return m.derive(uint32(requesterIndex.Uint64()))
}

func (m *Master) derive(id uint32) (common.Address, *ecdsa.PrivateKey, error) {
	addr, key, _, err := m.hdw.Address(0, hd.External, id)
	if err != nil {
		return common.Address{}, nil, err
	}

	pk, err := crypto.ToECDSA(key)
	if err != nil {
		return common.Address{}, nil, err
	}

	return common.BytesToAddress(addr), pk, nil
}
