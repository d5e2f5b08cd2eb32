package vrfmock

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bidon15/lottoctl/internal/chain"
	"github.com/Bidon15/lottoctl/internal/chain/chaintest"
)

func newCoordinator(t *testing.T) (*Coordinator, *chaintest.FakeContract, *bind.TransactOpts) {
	t.Helper()
	sim := chaintest.New(t, 1)
	addr := sim.DeployStub(t)
	sim.AutoCommit(t, 20*time.Millisecond)

	parsed, err := ParsedABI()
	require.NoError(t, err)
	fake := chaintest.NewFakeContract(sim.Client, addr, parsed)

	c, err := New(addr, fake)
	require.NoError(t, err)

	deployer, err := sim.Accounts.Deployer()
	require.NoError(t, err)
	opts, err := deployer.TransactOpts(context.Background(), chaintest.ChainID)
	require.NoError(t, err)
	return c, fake, opts
}

func TestConstructorArgs(t *testing.T) {
	args := ConstructorArgs()
	require.Len(t, args, 2)
	assert.Equal(t, "250000000000000000", args[0].(*big.Int).String())
	assert.Equal(t, "1000000000", args[1].(*big.Int).String())

	// callers may mutate the returned values
	args[0].(*big.Int).SetInt64(0)
	assert.Equal(t, "250000000000000000", BaseFee.String())
}

func TestParsedABI_PacksConstructor(t *testing.T) {
	parsed, err := ParsedABI()
	require.NoError(t, err)

	packed, err := parsed.Pack("", ConstructorArgs()...)
	require.NoError(t, err)
	assert.Len(t, packed, 64)
}

func TestCoordinator_GetSubscription(t *testing.T) {
	c, fake, _ := newCoordinator(t)
	owner := common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	consumer := common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	fake.Returns("getSubscription", big.NewInt(1e18), uint64(3), owner, []common.Address{consumer})

	sub, err := c.GetSubscription(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000", sub.Balance.String())
	assert.Equal(t, uint64(3), sub.ReqCount)
	assert.Equal(t, owner, sub.Owner)
	assert.Equal(t, []common.Address{consumer}, sub.Consumers)
}

func TestCoordinator_ConsumerIsAdded(t *testing.T) {
	c, fake, _ := newCoordinator(t)
	fake.Returns("consumerIsAdded", true)

	added, err := c.ConsumerIsAdded(context.Background(), 1, common.HexToAddress("0x01"))
	require.NoError(t, err)
	assert.True(t, added)
}

func TestCoordinator_FulfillNonexistentRequest(t *testing.T) {
	c, fake, opts := newCoordinator(t)
	fake.Reverts("fulfillRandomWords", chaintest.RevertErr(chaintest.ReasonData("nonexistent request")))

	for _, id := range []int64{0, 1} {
		_, err := c.FulfillRandomWords(context.Background(), opts, big.NewInt(id), common.HexToAddress("0x01"))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNonexistentRequest)

		var revert *chain.RevertError
		require.True(t, errors.As(err, &revert))
		assert.Equal(t, "nonexistent request", revert.Reason)
	}
}

func TestCoordinator_CustomErrors(t *testing.T) {
	tests := []struct {
		name    string
		revert  string
		args    []interface{}
		wantErr error
	}{
		{name: "invalid subscription", revert: "InvalidSubscription", wantErr: ErrInvalidSubscription},
		{name: "invalid consumer", revert: "InvalidConsumer", wantErr: ErrInvalidConsumer},
		{name: "insufficient balance", revert: "InsufficientBalance", wantErr: ErrInsufficientBalance},
		{
			name:    "must be owner",
			revert:  "MustBeSubOwner",
			args:    []interface{}{common.HexToAddress("0x02")},
			wantErr: ErrMustBeSubOwner,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, fake, opts := newCoordinator(t)
			fake.Reverts("addConsumer", chaintest.RevertErr(fake.RevertData(tc.revert, tc.args...)))

			_, err := c.AddConsumer(context.Background(), opts, 1, common.HexToAddress("0x01"))
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestCoordinator_FundSubscription(t *testing.T) {
	c, fake, opts := newCoordinator(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	receipt, err := c.FundSubscription(ctx, opts, 1, SubscriptionFundAmount)
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)
	assert.Equal(t, 1, fake.Calls("fundSubscription"))
}

func TestCoordinator_CreateSubscriptionNeedsEvent(t *testing.T) {
	c, _, opts := newCoordinator(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, receipt, err := c.CreateSubscription(ctx, opts)
	assert.ErrorIs(t, err, ErrEventNotFound)
	assert.NotNil(t, receipt)
}
