// Package chain wraps the RPC plumbing shared by deployments and checks.
package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Backend is everything the tooling needs from a node: contract calls and
// transactions, receipts, balances and chain metadata. Both *ethclient.Client
// and the go-ethereum simulated backend satisfy it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// Client is a dialed node connection.
type Client struct {
	*ethclient.Client
	rpc *rpc.Client
	url string
}

// Dial connects to an Ethereum JSON-RPC endpoint.
func Dial(ctx context.Context, url string) (*Client, error) {
	rc, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &Client{
		Client: ethclient.NewClient(rc),
		rpc:    rc,
		url:    url,
	}, nil
}

// RPC returns the raw JSON-RPC client.
func (c *Client) RPC() *rpc.Client {
	return c.rpc
}

// URL returns the endpoint the client was dialed with.
func (c *Client) URL() string {
	return c.url
}

// DevNode returns evm_* controls for this connection.
func (c *Client) DevNode() *DevNode {
	return NewDevNode(c.rpc)
}
