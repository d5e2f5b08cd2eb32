// Package accounts resolves the named signing accounts used by deployments
// and scenario checks.
package accounts

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Named account indexes.
const (
	DeployerIndex = 0
	PlayerIndex   = 1
)

// DevKeys are the publicly known keys prefunded by local dev nodes
// (hardhat node, anvil). Only ever used on development networks.
var DevKeys = []string{
	"ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80",
	"59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d",
	"5de4111afa1a4b94908f83103eb1f1706367c2e68ca870fc3fb9a804cdab365a",
	"7c852118294e51e653712a81e05800f419141751be58f605c371e15141b007a6",
	"47e179ec197488593b187f80a00eb0da91f1b9d0b13f8733639f19c30a34926a",
}

var ErrNoAccounts = errors.New("accounts: no signing accounts configured")

// Account is a signing key with its address.
type Account struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// Address returns the account address.
func (a *Account) Address() common.Address {
	return a.address
}

// PrivateKey returns the signing key.
func (a *Account) PrivateKey() *ecdsa.PrivateKey {
	return a.key
}

// TransactOpts returns transactor options bound to ctx for the given chain.
func (a *Account) TransactOpts(ctx context.Context, chainID *big.Int) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(a.key, chainID)
	if err != nil {
		return nil, fmt.Errorf("create transactor for %s: %w", a.address.Hex(), err)
	}
	opts.Context = ctx
	return opts, nil
}

// FromKey builds an account from an ECDSA key.
func FromKey(key *ecdsa.PrivateKey) *Account {
	return &Account{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

// FromHex builds an account from a hex private key, with or without 0x.
func FromHex(hexKey string) (*Account, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return FromKey(key), nil
}

// FromKeystore decrypts a go-ethereum keystore file.
func FromKeystore(path, password string) (*Account, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keystore %s: %w", path, err)
	}
	key, err := keystore.DecryptKey(data, password)
	if err != nil {
		return nil, fmt.Errorf("decrypt keystore %s: %w", path, err)
	}
	return FromKey(key.PrivateKey), nil
}

// Set is an ordered list of accounts; position is the named-account index.
type Set struct {
	accounts []*Account
}

// Source describes where signing keys come from.
type Source struct {
	// PrivateKeys are hex keys, in named-account order.
	PrivateKeys []string
	// Keystores are keystore file paths, appended after PrivateKeys.
	Keystores []string
	// KeystorePassword decrypts every keystore file.
	KeystorePassword string
	// Development falls back to DevKeys when nothing else is configured.
	Development bool
}

// Load resolves the accounts described by src.
func Load(src Source) (*Set, error) {
	set := &Set{}
	for i, k := range src.PrivateKeys {
		if strings.TrimSpace(k) == "" {
			continue
		}
		acct, err := FromHex(k)
		if err != nil {
			return nil, fmt.Errorf("account %d: %w", i, err)
		}
		set.accounts = append(set.accounts, acct)
	}
	for _, path := range src.Keystores {
		acct, err := FromKeystore(path, src.KeystorePassword)
		if err != nil {
			return nil, err
		}
		set.accounts = append(set.accounts, acct)
	}
	if len(set.accounts) == 0 && src.Development {
		for _, k := range DevKeys {
			acct, err := FromHex(k)
			if err != nil {
				return nil, err
			}
			set.accounts = append(set.accounts, acct)
		}
	}
	if len(set.accounts) == 0 {
		return nil, ErrNoAccounts
	}
	return set, nil
}

// NewSet wraps already resolved accounts.
func NewSet(accts ...*Account) *Set {
	return &Set{accounts: accts}
}

// Len returns the number of accounts.
func (s *Set) Len() int {
	return len(s.accounts)
}

// At returns the account at index i.
func (s *Set) At(i int) (*Account, error) {
	if i < 0 || i >= len(s.accounts) {
		return nil, fmt.Errorf("accounts: index %d out of range (have %d)", i, len(s.accounts))
	}
	return s.accounts[i], nil
}

// All returns every account in order.
func (s *Set) All() []*Account {
	return append([]*Account(nil), s.accounts...)
}

// Deployer returns the named deployer account.
func (s *Set) Deployer() (*Account, error) {
	return s.At(DeployerIndex)
}

// Player returns the named player account, falling back to the deployer
// when only one key is configured.
func (s *Set) Player() (*Account, error) {
	if len(s.accounts) > PlayerIndex {
		return s.accounts[PlayerIndex], nil
	}
	return s.Deployer()
}
