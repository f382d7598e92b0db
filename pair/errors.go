package pair

import "errors"

// Stable short error codes surfaced by pair operations. Callers match on
// these with errors.Is; the strings themselves are part of the API.
var (
	// ErrLocked is returned when an operation re-enters the pair while a
	// mutating operation holds the lock, or runs before initialization.
	ErrLocked = errors.New("LOK")
	// ErrAlreadyInitialized rejects a second initialize.
	ErrAlreadyInitialized = errors.New("AI")
	// ErrPriceTooLow / ErrPriceTooHigh reject a starting price outside the
	// representable sqrt-price range.
	ErrPriceTooLow  = errors.New("MIN")
	ErrPriceTooHigh = errors.New("MAX")

	// ErrTickOrder rejects tickLower >= tickUpper.
	ErrTickOrder = errors.New("TLU")
	// ErrTickLowerTooSmall rejects tickLower below the minimum tick.
	ErrTickLowerTooSmall = errors.New("TLM")
	// ErrTickUpperTooLarge rejects tickUpper above the maximum tick.
	ErrTickUpperTooLarge = errors.New("TUM")
	// ErrCannotRemove rejects burning more liquidity than a position holds.
	ErrCannotRemove = errors.New("CP")

	// ErrMintUnderpaid0 / ErrMintUnderpaid1 fire when the mint callback did
	// not deliver the owed token amounts.
	ErrMintUnderpaid0 = errors.New("M0")
	ErrMintUnderpaid1 = errors.New("M1")
	// ErrSwapUnderpaid fires when the swap callback did not deliver the
	// input amount.
	ErrSwapUnderpaid = errors.New("IIA")
	// ErrFlashUnderpaid0 / ErrFlashUnderpaid1 fire when a flash loan is not
	// repaid with its fee.
	ErrFlashUnderpaid0 = errors.New("F0")
	ErrFlashUnderpaid1 = errors.New("F1")
	// ErrFlashNoLiquidity rejects a flash loan while no liquidity is active.
	ErrFlashNoLiquidity = errors.New("L")

	// ErrPriceLimit rejects a price limit on the wrong side of the current
	// price, or outside the representable range.
	ErrPriceLimit = errors.New("SPL")
	// ErrAmountSpecified rejects a zero swap amount.
	ErrAmountSpecified = errors.New("AS")
	// ErrTickBound is returned when a swap attempts to move beyond the
	// minimum or maximum tick.
	ErrTickBound = errors.New("TN")

	// ErrAmountTooLarge rejects a mint amount at or above 2^127.
	ErrAmountTooLarge = errors.New("mint amount exceeds int128 range")
	// ErrNotOwner rejects protocol-fee operations from non-owner callers.
	ErrNotOwner = errors.New("caller is not the pair owner")
	// ErrInvalidFeeProtocol rejects a protocol fee denominator outside
	// {0, 4..10}.
	ErrInvalidFeeProtocol = errors.New("fee protocol must be 0 or in [4, 10]")
)
