package provider

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/tarancss/airnode/lib/evm"
	"github.com/tarancss/airnode/lib/logger"
	"github.com/tarancss/airnode/lib/retry"
)

// createProviderValue is the placeholder value used when estimating createProvider; the real submission forwards the
// remaining master wallet balance to fund the record.
var createProviderValue = big.NewInt(1)

// Initialize reconciles the on-chain provider record with the configuration and pins the run's current block and gas
// price. When the record is absent or stale and the master wallet can afford it, a createProvider transaction is
// submitted; when it cannot, the node warns and keeps serving requests with the record as-is.
func (s *State) Initialize(ctx context.Context) ([]logger.Log, error) {
	providerID := s.Master.ProviderID()

	rec, err := retry.Do(ctx, func(actx context.Context) (evm.ProviderRecord, error) {
		return s.Client.GetProviderAndBlockNumber(actx, providerID)
	})
	if err != nil {
		return []logger.Log{logger.PendErr(logger.ERROR,
			fmt.Sprintf("%s Unable to fetch provider record", s.Tag()), err)}, err
	}

	gasPrice, err := retry.Do(ctx, func(actx context.Context) (*big.Int, error) {
		return s.Client.GasPrice(actx)
	})
	if err != nil {
		return []logger.Log{logger.PendErr(logger.ERROR,
			fmt.Sprintf("%s Unable to fetch gas price", s.Tag()), err)}, err
	}

	s.Record = rec
	s.CurrentBlock = rec.BlockNumber.Uint64()
	s.GasPrice = gasPrice

	pending := []logger.Log{logger.Pend(logger.INFO,
		fmt.Sprintf("%s Current block:%d gas price:%s", s.Tag(), s.CurrentBlock, gasPrice.String()))}

	if s.recordMatches(rec) {
		pending = append(pending, logger.Pend(logger.DEBUG,
			fmt.Sprintf("%s Provider record ID:%s is up to date", s.Tag(), providerID.Hex())))

		return pending, nil
	}

	logs := s.createOrUpdateRecord(ctx, rec)

	return append(pending, logs...), nil
}

// recordMatches reports whether the on-chain record agrees with the configuration.
func (s *State) recordMatches(rec evm.ProviderRecord) bool {
	if !rec.Exists() || rec.XPub != s.Master.XPub() {
		return false
	}

	if rec.Admin != common.HexToAddress(s.Chain.Admin) {
		return false
	}

	if len(rec.Authorizers) != len(s.Chain.Authorizers) {
		return false
	}

	for i, a := range s.Chain.Authorizers {
		if rec.Authorizers[i] != common.HexToAddress(a) {
			return false
		}
	}

	return true
}

// createOrUpdateRecord submits createProvider funded with the master wallet's remaining balance, or warns when the
// balance does not cover the transaction cost.
func (s *State) createOrUpdateRecord(ctx context.Context, rec evm.ProviderRecord) []logger.Log {
	masterAddr, masterKey, err := s.Master.MasterWallet()
	if err != nil {
		return []logger.Log{logger.PendErr(logger.ERROR,
			fmt.Sprintf("%s Unable to derive master wallet", s.Tag()), err)}
	}

	authorizers := make([]common.Address, len(s.Chain.Authorizers))
	for i, a := range s.Chain.Authorizers {
		authorizers[i] = common.HexToAddress(a)
	}

	admin := common.HexToAddress(s.Chain.Admin)

	data, err := evm.PackCreateProvider(admin, s.Master.XPub(), authorizers)
	if err != nil {
		return []logger.Log{logger.PendErr(logger.ERROR,
			fmt.Sprintf("%s Unable to encode createProvider", s.Tag()), err)}
	}

	balance, err := retry.Do(ctx, func(actx context.Context) (*big.Int, error) {
		return s.Client.Balance(actx, masterAddr)
	})
	if err != nil {
		return []logger.Log{logger.PendErr(logger.ERROR,
			fmt.Sprintf("%s Unable to fetch master wallet balance", s.Tag()), err)}
	}

	airnode := s.Client.AirnodeAddress()

	gas, err := retry.Do(ctx, func(actx context.Context) (uint64, error) {
		return s.Client.EstimateGas(actx, ethereum.CallMsg{
			From:  masterAddr,
			To:    &airnode,
			Value: createProviderValue,
			Data:  data,
		})
	})
	if err != nil {
		return []logger.Log{logger.PendErr(logger.ERROR,
			fmt.Sprintf("%s Unable to estimate createProvider gas", s.Tag()), err)}
	}

	txCost := new(big.Int).Mul(new(big.Int).SetUint64(gas), s.GasPrice)

	if balance.Cmp(txCost) < 0 {
		// keep serving requests, the record just cannot be updated this run
		var consequence string
		if rec.Exists() {
			consequence = "provider record cannot be updated to match the configuration"
		} else {
			consequence = "provider record cannot be created"
		}

		return []logger.Log{
			logger.Pend(logger.WARN,
				fmt.Sprintf("%s Master wallet %s balance is %s wei", s.Tag(), masterAddr.Hex(), balance.String())),
			logger.Pend(logger.WARN,
				fmt.Sprintf("%s createProvider would cost %s wei", s.Tag(), txCost.String())),
			logger.Pend(logger.WARN,
				fmt.Sprintf("%s Insufficient funds: %s", s.Tag(), consequence)),
		}
	}

	nonce, err := retry.Do(ctx, func(actx context.Context) (uint64, error) {
		return s.Client.TransactionCount(actx, masterAddr)
	})
	if err != nil {
		return []logger.Log{logger.PendErr(logger.ERROR,
			fmt.Sprintf("%s Unable to fetch master wallet transaction count", s.Tag()), err)}
	}

	// forward everything above the transaction cost to fund the provider record
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &airnode,
		Value:    new(big.Int).Sub(balance, txCost),
		Gas:      gas,
		GasPrice: s.GasPrice,
		Data:     data,
	})

	hash, err := retry.Do(ctx, func(actx context.Context) (common.Hash, error) {
		return s.Client.SignAndSend(actx, tx, masterKey)
	})
	if err != nil {
		return []logger.Log{logger.PendErr(logger.ERROR,
			fmt.Sprintf("%s Unable to submit createProvider", s.Tag()), err)}
	}

	return []logger.Log{logger.Pend(logger.INFO,
		fmt.Sprintf("%s Submitted createProvider tx:%s", s.Tag(), hash.Hex()))}
}
