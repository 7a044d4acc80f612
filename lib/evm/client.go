package evm

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Errors returned by the chain client.
var (
	ErrBadViewReturn = errors.New("unexpected return data from convenience view call")
	ErrBatchLength   = errors.New("convenience view returned a batch of the wrong length")
)

// Client is a connection to one chain provider (a JSON-RPC endpoint backing an EVM chain) bound to the chain's
// Airnode and Convenience contract addresses.
type Client struct {
	c           *ethclient.Client
	chainID     *big.Int
	airnode     common.Address
	convenience common.Address
}

// Dial connects to the chain provider at url.
func Dial(url string, chainID uint64, airnode, convenience string) (*Client, error) {
	c, err := ethclient.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("evm: cannot connect to %s: %w", url, err)
	}

	return &Client{
		c:           c,
		chainID:     new(big.Int).SetUint64(chainID),
		airnode:     common.HexToAddress(airnode),
		convenience: common.HexToAddress(convenience),
	}, nil
}

// Close ends the connection.
func (c *Client) Close() {
	c.c.Close()
}

// ChainID returns the configured chain id.
func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// AirnodeAddress returns the Airnode contract address transactions are sent to.
func (c *Client) AirnodeAddress() common.Address {
	return c.airnode
}

// CurrentBlock returns the number of the latest mined block.
func (c *Client) CurrentBlock(ctx context.Context) (uint64, error) {
	return c.c.BlockNumber(ctx)
}

// FetchLogs returns all Airnode contract logs in the given inclusive block range, in (block, log index) order as
// delivered by the chain provider.
func (c *Client) FetchLogs(ctx context.Context, from, to uint64) ([]types.Log, error) {
	return c.c.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{c.airnode},
	})
}

// Balance returns the account balance in wei.
func (c *Client) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	return c.c.BalanceAt(ctx, addr, nil)
}

// GasPrice returns the chain provider's suggested gas price.
func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	return c.c.SuggestGasPrice(ctx)
}

// TransactionCount returns the pending-inclusive transaction count of addr. Nonce assignment starts here.
func (c *Client) TransactionCount(ctx context.Context, addr common.Address) (uint64, error) {
	return c.c.PendingNonceAt(ctx, addr)
}

// EstimateGas estimates the gas needed for the given call.
func (c *Client) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return c.c.EstimateGas(ctx, msg)
}

// SignAndSend signs tx with key for this chain and submits it, returning the transaction hash.
func (c *Client) SignAndSend(ctx context.Context, tx *types.Transaction, key *ecdsa.PrivateKey) (common.Hash, error) {
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), key)
	if err != nil {
		return common.Hash{}, err
	}

	if err = c.c.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, err
	}

	return signed.Hash(), nil
}

// view packs and executes a Convenience contract view call, returning the raw return data.
func (c *Client) view(ctx context.Context, method string, args ...interface{}) ([]byte, error) {
	data, err := ConvenienceABI.Pack(method, args...)
	if err != nil {
		return nil, err
	}

	return c.c.CallContract(ctx, ethereum.CallMsg{To: &c.convenience, Data: data}, nil)
}

// GetProviderAndBlockNumber reads the on-chain provider record and the chain's current block in one call.
func (c *Client) GetProviderAndBlockNumber(ctx context.Context, providerID common.Hash) (ProviderRecord, error) {
	ret, err := c.view(ctx, "getProviderAndBlockNumber", providerID)
	if err != nil {
		return ProviderRecord{}, err
	}

	out, err := ConvenienceABI.Unpack("getProviderAndBlockNumber", ret)
	if err != nil || len(out) != 4 {
		return ProviderRecord{}, ErrBadViewReturn
	}

	rec := ProviderRecord{}
	var ok bool
	if rec.Admin, ok = out[0].(common.Address); !ok {
		return ProviderRecord{}, ErrBadViewReturn
	}
	if rec.XPub, ok = out[1].(string); !ok {
		return ProviderRecord{}, ErrBadViewReturn
	}
	if rec.Authorizers, ok = out[2].([]common.Address); !ok {
		return ProviderRecord{}, ErrBadViewReturn
	}
	if rec.BlockNumber, ok = out[3].(*big.Int); !ok {
		return ProviderRecord{}, ErrBadViewReturn
	}

	return rec, nil
}

// GetTemplates fetches the referenced templates in one batched view call. Unknown template ids come back with a zero
// providerId and are left out of the returned map.
func (c *Client) GetTemplates(ctx context.Context, templateIDs []common.Hash) (map[common.Hash]Template, error) {
	templates := make(map[common.Hash]Template, len(templateIDs))
	if len(templateIDs) == 0 {
		return templates, nil
	}

	ids := make([][32]byte, len(templateIDs))
	for i, id := range templateIDs {
		ids[i] = id
	}

	ret, err := c.view(ctx, "getTemplates", ids)
	if err != nil {
		return nil, err
	}

	out, err := ConvenienceABI.Unpack("getTemplates", ret)
	if err != nil || len(out) != 7 {
		return nil, ErrBadViewReturn
	}

	providerIDs, ok1 := out[0].([][32]byte)
	endpointIDs, ok2 := out[1].([][32]byte)
	requesterIndices, ok3 := out[2].([]*big.Int)
	designatedWallets, ok4 := out[3].([]common.Address)
	fulfillAddresses, ok5 := out[4].([]common.Address)
	fulfillFunctionIDs, ok6 := out[5].([][4]byte)
	parameters, ok7 := out[6].([][]byte)

	if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6 && ok7) {
		return nil, ErrBadViewReturn
	}
	if len(providerIDs) != len(templateIDs) {
		return nil, ErrBatchLength
	}

	for i, id := range templateIDs {
		if providerIDs[i] == ([32]byte{}) {
			continue // not found on chain
		}

		templates[id] = Template{
			ID:                id,
			ProviderID:        providerIDs[i],
			EndpointID:        endpointIDs[i],
			RequesterIndex:    requesterIndices[i],
			DesignatedWallet:  designatedWallets[i],
			FulfillAddress:    fulfillAddresses[i],
			FulfillFunctionID: fulfillFunctionIDs[i],
			Parameters:        parameters[i],
		}
	}

	return templates, nil
}

// AuthorizationQuery is one row of a batched endorsement check.
type AuthorizationQuery struct {
	RequestID        common.Hash
	EndpointID       common.Hash
	RequesterIndex   *big.Int
	DesignatedWallet common.Address
	ClientAddress    common.Address
}

// CheckAuthorizationStatuses performs the batched endorsement lookup, returning authorization per request id.
func (c *Client) CheckAuthorizationStatuses(ctx context.Context, providerID common.Hash,
	queries []AuthorizationQuery) (map[common.Hash]bool, error) {
	statuses := make(map[common.Hash]bool, len(queries))
	if len(queries) == 0 {
		return statuses, nil
	}

	requestIDs := make([][32]byte, len(queries))
	endpointIDs := make([][32]byte, len(queries))
	requesterIndices := make([]*big.Int, len(queries))
	designatedWallets := make([]common.Address, len(queries))
	clientAddresses := make([]common.Address, len(queries))

	for i, q := range queries {
		requestIDs[i] = q.RequestID
		endpointIDs[i] = q.EndpointID
		requesterIndices[i] = q.RequesterIndex
		if requesterIndices[i] == nil {
			requesterIndices[i] = new(big.Int)
		}
		designatedWallets[i] = q.DesignatedWallet
		clientAddresses[i] = q.ClientAddress
	}

	ret, err := c.view(ctx, "checkAuthorizationStatuses", providerID, requestIDs, endpointIDs,
		requesterIndices, designatedWallets, clientAddresses)
	if err != nil {
		return nil, err
	}

	out, err := ConvenienceABI.Unpack("checkAuthorizationStatuses", ret)
	if err != nil || len(out) != 1 {
		return nil, ErrBadViewReturn
	}

	flags, ok := out[0].([]bool)
	if !ok {
		return nil, ErrBadViewReturn
	}
	if len(flags) != len(queries) {
		return nil, ErrBatchLength
	}

	for i, q := range queries {
		statuses[q.RequestID] = flags[i]
	}

	return statuses, nil
}

// PackFulfill encodes the calldata of a fulfill transaction.
func PackFulfill(requestID, providerID common.Hash, statusCode uint64, data []byte,
	fulfillAddress common.Address, fulfillFunctionID [4]byte) ([]byte, error) {
	return AirnodeABI.Pack("fulfill", requestID, providerID, new(big.Int).SetUint64(statusCode), data,
		fulfillAddress, fulfillFunctionID)
}

// PackFail encodes the calldata of a fail transaction.
func PackFail(requestID, providerID common.Hash, statusCode uint64,
	fulfillAddress common.Address, fulfillFunctionID [4]byte) ([]byte, error) {
	return AirnodeABI.Pack("fail", requestID, providerID, new(big.Int).SetUint64(statusCode),
		fulfillAddress, fulfillFunctionID)
}

// PackFulfillWithdrawal encodes the calldata of a fulfillWithdrawal transaction.
func PackFulfillWithdrawal(withdrawalID, providerID common.Hash, requesterIndex *big.Int,
	destination common.Address) ([]byte, error) {
	return AirnodeABI.Pack("fulfillWithdrawal", withdrawalID, providerID, requesterIndex, destination)
}

// PackCreateProvider encodes the calldata of a createProvider transaction.
func PackCreateProvider(admin common.Address, xpub string, authorizers []common.Address) ([]byte, error) {
	return AirnodeABI.Pack("createProvider", admin, xpub, authorizers)
}
