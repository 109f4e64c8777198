package insteon

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Value encoding constants.
const (
	// maxLevel is the brightness ceiling in percent.
	maxLevel = 100

	// maxLevelByte is the full-scale wire byte for a level.
	maxLevelByte = 255

	// maxNibble is the full-scale half-byte value.
	maxNibble = 15

	// nibbleMask isolates the low half of a byte.
	nibbleMask = 0x0F

	// nibbleShift moves a value into the high half of a byte.
	nibbleShift = 4

	// RampFastMillis is the duration the "fast" ramp category stands for.
	RampFastMillis = 100

	// RampSlowMillis is the duration the "slow" ramp category stands for.
	RampSlowMillis = 47000

	// maxRateByte is the highest index in the ramp table (fastest ramp).
	maxRateByte = 0x1F
)

// rampTable maps a ramp-rate byte (the index) to its duration in milliseconds.
// Entries are protocol constants; index 0x00 is the slowest ramp (9 minutes)
// and 0x1F the fastest (0.1 s). Durations strictly decrease with the index.
var rampTable = [maxRateByte + 1]int{
	540000, 480000, 420000, 360000, 300000, 270000, 240000, 210000, // 0x00-0x07
	180000, 150000, 120000, 90000, 60000, 47000, 43000, 38500, // 0x08-0x0F
	34000, 32000, 30000, 28000, 26000, 23500, 21500, 19000, // 0x10-0x17
	8500, 6500, 4500, 2000, 500, 300, 200, 100, // 0x18-0x1F
}

// RampCategory is a named ramp speed.
type RampCategory string

// Known ramp categories.
const (
	RampFast RampCategory = "fast"
	RampSlow RampCategory = "slow"
)

// RampRate is a ramp duration given either as a named category or in
// milliseconds. When Category is set it takes precedence over Millis.
type RampRate struct {
	Category RampCategory
	Millis   int
}

// RampOf returns a RampRate for a named category.
func RampOf(category RampCategory) RampRate {
	return RampRate{Category: category}
}

// RampMillis returns a RampRate for an explicit duration.
func RampMillis(ms int) RampRate {
	return RampRate{Millis: ms}
}

// RampCategoryToMillis resolves a named category to its duration.
//
// Returns:
//   - int: Duration in milliseconds
//   - bool: false if the category is unknown
func RampCategoryToMillis(category RampCategory) (int, bool) {
	switch category {
	case RampFast:
		return RampFastMillis, true
	case RampSlow:
		return RampSlowMillis, true
	default:
		return 0, false
	}
}

// ToMillis returns the duration the rate stands for. An unknown category
// falls back to Millis.
func (r RampRate) ToMillis() int {
	if r.Category != "" {
		if ms, ok := RampCategoryToMillis(r.Category); ok {
			return ms
		}
	}
	return r.Millis
}

// String returns the category name or the duration with an "ms" suffix.
func (r RampRate) String() string {
	if r.Category != "" {
		return string(r.Category)
	}
	return strconv.Itoa(r.Millis) + "ms"
}

// ParseRampRate converts a loosely typed value (as found in decoded JSON
// parameters) to a RampRate.
//
// Accepts "fast", "slow", numeric strings, and JSON numbers (milliseconds).
//
// Parameters:
//   - v: Value to convert
//
// Returns:
//   - RampRate: Parsed rate
//   - error: ErrInvalidRampRate if v cannot be interpreted
func ParseRampRate(v any) (RampRate, error) {
	switch val := v.(type) {
	case string:
		s := strings.ToLower(strings.TrimSpace(val))
		if _, ok := RampCategoryToMillis(RampCategory(s)); ok {
			return RampOf(RampCategory(s)), nil
		}
		ms, err := strconv.Atoi(s)
		if err != nil || ms < 0 {
			return RampRate{}, fmt.Errorf("%w: %q", ErrInvalidRampRate, val)
		}
		return RampMillis(ms), nil
	case float64:
		if val < 0 || math.IsNaN(val) || math.IsInf(val, 0) {
			return RampRate{}, fmt.Errorf("%w: %v", ErrInvalidRampRate, val)
		}
		return RampMillis(int(math.Round(val))), nil
	case int:
		if val < 0 {
			return RampRate{}, fmt.Errorf("%w: %d", ErrInvalidRampRate, val)
		}
		return RampMillis(val), nil
	default:
		return RampRate{}, fmt.Errorf("%w: unsupported type %T", ErrInvalidRampRate, v)
	}
}

// clampLevel limits a brightness level to [0,100]. Callers that overshoot
// slightly (e.g. 101 from a UI slider) get full scale rather than an error.
func clampLevel(level int) int {
	switch {
	case level < 0:
		return 0
	case level > maxLevel:
		return maxLevel
	default:
		return level
	}
}

// ceilDiv returns ceil(n/d) for non-negative n and positive d.
func ceilDiv(n, d int) int {
	return (n + d - 1) / d
}

// LevelToByte encodes a 0-100 brightness as a full wire byte,
// round(level*255/100). Out-of-range levels are clamped, not rejected.
func LevelToByte(level int) byte {
	l := clampLevel(level)
	return byte(math.Round(float64(l*maxLevelByte) / maxLevel))
}

// ByteToLevel decodes a wire byte to a 0-100 brightness, ceil(b*100/255).
func ByteToLevel(b byte) int {
	return ceilDiv(int(b)*maxLevel, maxLevelByte)
}

// LevelToNibble encodes a 0-100 brightness as a half-byte,
// round(level*15/100). Out-of-range levels are clamped, not rejected.
func LevelToNibble(level int) byte {
	l := clampLevel(level)
	return byte(math.Round(float64(l*maxNibble) / maxLevel))
}

// NibbleToLevel decodes a half-byte to a 0-100 brightness, ceil(n*100/15).
// Only the low four bits of n are used.
func NibbleToLevel(n byte) int {
	return ceilDiv(int(n&nibbleMask)*maxLevel, maxNibble)
}

// MillisToRateByte encodes a ramp duration as the index of the nearest
// ramp-table bucket. A tie between two buckets goes to the longer one.
// The protocol numbers buckets from slowest to fastest, so longer ramps
// give smaller bytes. Durations below the fastest bucket encode as 0x1F.
func MillisToRateByte(ms int) byte {
	best := 0
	bestDiff := absInt(ms - rampTable[0])
	for i := 1; i < len(rampTable); i++ {
		if diff := absInt(ms - rampTable[i]); diff < bestDiff {
			best, bestDiff = i, diff
		}
	}
	return byte(best)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// RateByteToMillis decodes a ramp-table index to its duration.
// Bytes beyond the table decode as the fastest bucket.
func RateByteToMillis(b byte) int {
	if int(b) > maxRateByte {
		return rampTable[maxRateByte]
	}
	return rampTable[b]
}

// MillisToRateNibble encodes a ramp duration for the half-byte ramp field
// of on/off-with-ramp commands.
func MillisToRateNibble(ms int) byte {
	return MillisToRateByte(ms) >> 1
}
