package state

import (
	"fmt"
	"strings"

	sdkmath "cosmossdk.io/math"
)

// parseDec converts a NUMERIC column value into a LegacyDec.
func parseDec(value string) (sdkmath.LegacyDec, error) {
	dec, err := sdkmath.LegacyNewDecFromStr(strings.TrimSpace(value))
	if err != nil {
		return sdkmath.LegacyDec{}, fmt.Errorf("failed to parse decimal column %q: %w", value, err)
	}
	return dec, nil
}

// parseInt converts a NUMERIC(78, 0) column value into an Int.
func parseInt(value string) (sdkmath.Int, error) {
	trimmed := strings.TrimSpace(value)
	i, ok := sdkmath.NewIntFromString(trimmed)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("failed to parse integer column %q", value)
	}
	return i, nil
}
