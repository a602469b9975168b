package motion

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatAxisValue_RoundTripsSimpleDecimals(t *testing.T) {
	assert.Equal(t, "12.5", FormatAxisValue(12.5))
	assert.Equal(t, "0", FormatAxisValue(0))
	assert.Equal(t, "-3.25", FormatAxisValue(-3.25))
}

func TestFormatAxisValue_HandlesNonFinite(t *testing.T) {
	assert.NotPanics(t, func() { FormatAxisValue(math.NaN()) })
	assert.NotPanics(t, func() { FormatAxisValue(math.Inf(1)) })
}
