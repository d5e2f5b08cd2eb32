package accounts

import (
	"context"
	"encoding/hex"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromHex(t *testing.T) {
	acct, err := FromHex("0x" + DevKeys[0])
	require.NoError(t, err)
	assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", acct.Address().Hex())

	_, err = FromHex("not-a-key")
	assert.Error(t, err)
}

func TestLoad_DevelopmentFallsBackToDevKeys(t *testing.T) {
	set, err := Load(Source{Development: true})
	require.NoError(t, err)
	assert.Equal(t, len(DevKeys), set.Len())

	deployer, err := set.Deployer()
	require.NoError(t, err)
	assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", deployer.Address().Hex())

	player, err := set.Player()
	require.NoError(t, err)
	assert.Equal(t, "0x70997970C51812dc3A010C7d01b50e0d17dc79C8", player.Address().Hex())

	want := []string{
		"0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
		"0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		"0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC",
		"0x90F79bf6EB2c4f870365E785982E1f101E93b906",
		"0x15d34AAf54267DB7D7c367839AAf71A00a2C6A65",
	}
	require.Len(t, set.All(), len(want))
	for i, acct := range set.All() {
		assert.Equal(t, want[i], acct.Address().Hex(), "account %d", i)
	}
}

func TestLoad_LiveWithoutKeysFails(t *testing.T) {
	_, err := Load(Source{})
	assert.ErrorIs(t, err, ErrNoAccounts)
}

func TestLoad_ConfiguredKeysWinOverDevKeys(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	hexKey := hex.EncodeToString(crypto.FromECDSA(key))

	set, err := Load(Source{PrivateKeys: []string{hexKey, ""}, Development: true})
	require.NoError(t, err)
	assert.Equal(t, 1, set.Len())

	player, err := set.Player()
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), player.Address(), "player falls back to deployer")
}

func TestLoad_Keystore(t *testing.T) {
	dir := t.TempDir()
	ks := keystore.NewKeyStore(dir, keystore.LightScryptN, keystore.LightScryptP)
	created, err := ks.NewAccount("secret")
	require.NoError(t, err)

	set, err := Load(Source{Keystores: []string{created.URL.Path}, KeystorePassword: "secret"})
	require.NoError(t, err)
	deployer, err := set.Deployer()
	require.NoError(t, err)
	assert.Equal(t, created.Address, deployer.Address())

	_, err = Load(Source{Keystores: []string{created.URL.Path}, KeystorePassword: "wrong"})
	assert.Error(t, err)

	_, err = Load(Source{Keystores: []string{filepath.Join(dir, "missing.json")}})
	assert.Error(t, err)
}

func TestSet_At(t *testing.T) {
	set, err := Load(Source{Development: true})
	require.NoError(t, err)

	_, err = set.At(-1)
	assert.Error(t, err)
	_, err = set.At(set.Len())
	assert.Error(t, err)
	assert.Len(t, set.All(), set.Len())
}

func TestAccount_TransactOpts(t *testing.T) {
	acct, err := FromHex(DevKeys[1])
	require.NoError(t, err)

	ctx := context.Background()
	opts, err := acct.TransactOpts(ctx, big.NewInt(31337))
	require.NoError(t, err)
	assert.Equal(t, acct.Address(), opts.From)
	assert.Equal(t, ctx, opts.Context)
}
