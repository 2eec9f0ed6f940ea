package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMoney(t *testing.T) {
	tests := []struct {
		input   string
		want    MinorUnits
		wantErr bool
	}{
		{input: "12.50", want: 1250},
		{input: "0.01", want: 1},
		{input: "0", want: 0},
		{input: "199", want: 19900},
		{input: "-5.25", want: -525},
		{input: "12.505", wantErr: true},
		{input: "abc", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseMoney(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "12.50", FormatMoney(1250))
	assert.Equal(t, "0.00", FormatMoney(0))
	assert.Equal(t, "0.01", FormatMoney(1))
	assert.Equal(t, "-5.25", FormatMoney(-525))
	assert.Equal(t, "199.00", FormatMoney(19900))
}

func TestQuantity(t *testing.T) {
	assert.True(t, Quantity(0).IsZero())
	assert.True(t, Quantity(3).IsPositive())
	assert.True(t, Quantity(-3).IsNegative())
	assert.Equal(t, Quantity(-3), Quantity(3).Neg())
	assert.Equal(t, Quantity(3), Quantity(-3).Abs())
	assert.Equal(t, "42", Quantity(42).String())
}
