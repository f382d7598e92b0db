package tickbitmap

import (
	"errors"

	"github.com/holiman/uint256"

	"github.com/defistate/defistate-pair-go/calculator/bitmath"
)

// ErrTickMisaligned is returned when a tick is not a multiple of the spacing.
var ErrTickMisaligned = errors.New("tick not aligned to spacing")

var one = uint256.NewInt(1)

// Bitmap is a sparse set of initialized ticks, packed 256 compressed ticks per
// word. Bit b of word w is set iff tick (w*256 + b) * spacing is initialized.
type Bitmap map[int16]*uint256.Int

// New returns an empty bitmap.
func New() Bitmap {
	return make(Bitmap)
}

// Clone returns a deep copy of the bitmap.
func (b Bitmap) Clone() Bitmap {
	c := make(Bitmap, len(b))
	for w, word := range b {
		c[w] = new(uint256.Int).Set(word)
	}
	return c
}

// position splits a compressed tick into its word index and the bit offset
// within the word. The arithmetic shift floors for negative ticks and the low
// byte is the offset mod 256.
func position(compressed int32) (wordPos int16, bitPos uint8) {
	return int16(compressed >> 8), uint8(compressed & 0xff)
}

// compress floors tick/spacing towards negative infinity.
func compress(tick, tickSpacing int32) int32 {
	compressed := tick / tickSpacing
	if tick < 0 && tick%tickSpacing != 0 {
		compressed--
	}
	return compressed
}

// FlipTick toggles the initialized state of a tick. The tick must lie on the
// spacing grid.
func (b Bitmap) FlipTick(tick, tickSpacing int32) error {
	if tick%tickSpacing != 0 {
		return ErrTickMisaligned
	}
	wordPos, bitPos := position(tick / tickSpacing)

	mask := new(uint256.Int).Lsh(one, uint(bitPos))
	word, ok := b[wordPos]
	if !ok {
		word = new(uint256.Int)
		b[wordPos] = word
	}
	word.Xor(word, mask)
	if word.IsZero() {
		delete(b, wordPos)
	}
	return nil
}

// IsInitialized reports whether a tick's bit is set. The tick must be aligned.
func (b Bitmap) IsInitialized(tick, tickSpacing int32) bool {
	if tick%tickSpacing != 0 {
		return false
	}
	wordPos, bitPos := position(tick / tickSpacing)
	word, ok := b[wordPos]
	if !ok {
		return false
	}
	probe := new(uint256.Int).Lsh(one, uint(bitPos))
	return !probe.And(probe, word).IsZero()
}

// NextInitializedTickWithinOneWord returns the next initialized tick within
// the same 256-bit word as the given tick, in the given direction.
//
// With lte true it searches left from (and including) the current tick; with
// lte false it searches right from (and excluding) it. When the word holds no
// initialized tick in that direction, the boundary tick of the word is
// returned with initialized == false so the caller can continue word by word.
func (b Bitmap) NextInitializedTickWithinOneWord(tick, tickSpacing int32, lte bool) (next int32, initialized bool) {
	compressed := compress(tick, tickSpacing)

	if lte {
		wordPos, bitPos := position(compressed)
		// Bits at or below bitPos.
		mask := new(uint256.Int).Lsh(one, uint(bitPos)+1)
		mask.Sub(mask, one)
		masked := b.maskedWord(wordPos, mask)

		if !masked.IsZero() {
			msb, _ := bitmath.MostSignificantBit(masked)
			return (compressed - int32(bitPos-msb)) * tickSpacing, true
		}
		return (compressed - int32(bitPos)) * tickSpacing, false
	}

	// Start from the next tick since the current one is excluded.
	wordPos, bitPos := position(compressed + 1)
	// Bits at or above bitPos.
	mask := new(uint256.Int).Lsh(one, uint(bitPos))
	mask.Sub(mask, one)
	mask.Not(mask)
	masked := b.maskedWord(wordPos, mask)

	if !masked.IsZero() {
		lsb, _ := bitmath.LeastSignificantBit(masked)
		return (compressed + 1 + int32(lsb-bitPos)) * tickSpacing, true
	}
	return (compressed + 1 + int32(255-bitPos)) * tickSpacing, false
}

func (b Bitmap) maskedWord(wordPos int16, mask *uint256.Int) *uint256.Int {
	word, ok := b[wordPos]
	if !ok {
		return new(uint256.Int)
	}
	return mask.And(mask, word)
}
