package pair

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Logger is the minimal structured logging surface the pair depends on.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Event is implemented by every pair event type.
type Event interface {
	eventName() string
}

// EventSink receives every event the pair emits, in order. A nil sink
// disables event delivery; logging happens regardless.
type EventSink interface {
	Emit(event Event)
}

type InitializeEvent struct {
	SqrtPriceX96 *big.Int
	Tick         int32
}

type MintEvent struct {
	Owner                common.Address
	TickLower, TickUpper int32
	Amount               *big.Int
	Amount0, Amount1     *big.Int
}

type BurnEvent struct {
	Owner                common.Address
	TickLower, TickUpper int32
	Amount               *big.Int
	Amount0, Amount1     *big.Int
}

type CollectEvent struct {
	Owner                common.Address
	Recipient            common.Address
	TickLower, TickUpper int32
	Amount0, Amount1     *big.Int
}

type SwapEvent struct {
	Recipient        common.Address
	Amount0, Amount1 *big.Int
	SqrtPriceX96     *big.Int
	Liquidity        *big.Int
	Tick             int32
}

type FlashEvent struct {
	Recipient        common.Address
	Amount0, Amount1 *big.Int
	Paid0, Paid1     *big.Int
}

type IncreaseObservationCardinalityNextEvent struct {
	Old, New uint16
}

type SetFeeProtocolEvent struct {
	Old, New uint8
}

type CollectProtocolEvent struct {
	Recipient        common.Address
	Amount0, Amount1 *big.Int
}

func (InitializeEvent) eventName() string                         { return "initialize" }
func (MintEvent) eventName() string                               { return "mint" }
func (BurnEvent) eventName() string                               { return "burn" }
func (CollectEvent) eventName() string                            { return "collect" }
func (SwapEvent) eventName() string                               { return "swap" }
func (FlashEvent) eventName() string                              { return "flash" }
func (IncreaseObservationCardinalityNextEvent) eventName() string { return "grow_oracle" }
func (SetFeeProtocolEvent) eventName() string                     { return "set_fee_protocol" }
func (CollectProtocolEvent) eventName() string                    { return "collect_protocol" }

func (p *Pair) emit(event Event) {
	if p.sink != nil {
		p.sink.Emit(event)
	}
	p.logger.Debug("pair event", "event", event.eventName())
}
