package lottery

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/Bidon15/lottoctl/internal/chain"
)

var (
	ErrNotEnoughETHEntered = errors.New("lottery: not enough ETH entered")
	ErrNotOpen             = errors.New("lottery: not open")
	ErrTransferFailed      = errors.New("lottery: transfer failed")
	ErrUpkeepNotNeeded     = errors.New("lottery: upkeep not needed")
	ErrEventNotFound       = errors.New("lottery: event not found")
)

// UpkeepNotNeededError carries the state reported by a rejected performUpkeep.
type UpkeepNotNeededError struct {
	Balance *big.Int
	Players *big.Int
	State   State
}

func (e *UpkeepNotNeededError) Error() string {
	return fmt.Sprintf("%v (balance %s, players %s, state %s)", ErrUpkeepNotNeeded, e.Balance, e.Players, e.State)
}

func (e *UpkeepNotNeededError) Is(target error) bool {
	return target == ErrUpkeepNotNeeded
}

// decode maps a revert of the lottery contract onto the package errors.
// Anything else is returned unchanged.
func (l *Lottery) decode(err error) error {
	decoded := chain.DecodeRevert(l.abi, err)
	var revert *chain.RevertError
	if !errors.As(decoded, &revert) {
		return err
	}
	switch revert.Name {
	case "Lottery__NotEnoughETHEntered":
		return fmt.Errorf("%w: %w", ErrNotEnoughETHEntered, revert)
	case "Lottery__NotOpen":
		return fmt.Errorf("%w: %w", ErrNotOpen, revert)
	case "Lottery__TransferFailed":
		return fmt.Errorf("%w: %w", ErrTransferFailed, revert)
	case "Lottery__UpkeepNotNeeded":
		upkeep := &UpkeepNotNeededError{Balance: new(big.Int), Players: new(big.Int)}
		if len(revert.Args) == 3 {
			upkeep.Balance, _ = revert.Args[0].(*big.Int)
			upkeep.Players, _ = revert.Args[1].(*big.Int)
			if state, ok := revert.Args[2].(*big.Int); ok {
				upkeep.State = State(state.Uint64())
			}
		}
		return upkeep
	}
	return revert
}
