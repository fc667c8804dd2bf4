package money

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"10", "10.00"},
		{"1.005", "1.01"},
		{"2.675", "2.68"},
		{"0.004", "0.00"},
		{"0", "0.00"},
		{"1234.5", "1234.50"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatMoney(d(tt.in)))
		})
	}
}

func TestFormatFloat(t *testing.T) {
	assert.Equal(t, "1.01", FormatFloat(1.005))
	assert.Equal(t, "0.30", FormatFloat(0.1+0.2))
	assert.Equal(t, "8.00", FormatFloat(4+4))
	assert.Equal(t, "0.00", FormatFloat(math.NaN()))
	assert.Equal(t, "0.00", FormatFloat(math.Inf(1)))
}

func TestSnapToHalfStep(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "0.5"},
		{"-3", "0.5"},
		{"0.3", "0.5"},
		{"0.74", "0.5"},
		{"0.75", "1"},
		{"1.2", "1"},
		{"1.25", "1.5"},
		{"2", "2"},
		{"7.9", "8"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := SnapToHalfStep(d(tt.in))
			assert.True(t, got.Equal(d(tt.want)), "got %s, want %s", got, tt.want)
		})
	}
}

func TestSnapAlwaysLandsOnStep(t *testing.T) {
	for i := -40; i <= 400; i++ {
		v := decimal.New(int64(i), -2).Mul(d("3.7"))
		got := SnapToHalfStep(v)
		assert.True(t, IsHalfStep(got), "%s snapped to %s", v, got)
		assert.True(t, got.GreaterThanOrEqual(MinItem), "%s snapped to %s", v, got)
	}
}

func TestSnapNonFinite(t *testing.T) {
	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		assert.True(t, SnapFloat(f).Equal(MinItem))
	}
	assert.True(t, SnapFloat(1.3).Equal(d("1.5")))
}

func TestSnapText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "0.5"},
		{"abc", "0.5"},
		{"NaN", "0.5"},
		{"Infinity", "0.5"},
		{"1,2", "1"},
		{" 2.3 kg", "2.5"},
		{"1.5", "1.5"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.True(t, SnapText(tt.in).Equal(d(tt.want)))
		})
	}
}

func TestParseAmount(t *testing.T) {
	v, ok := ParseAmount("")
	assert.True(t, ok)
	assert.True(t, v.IsZero())

	v, ok = ParseAmount("1,5")
	assert.True(t, ok)
	assert.True(t, v.Equal(d("1.5")))

	_, ok = ParseAmount("-1")
	assert.False(t, ok)

	_, ok = ParseAmount("lots")
	assert.False(t, ok)

	v, ok = ParseAmount("1000")
	assert.True(t, ok)
	assert.True(t, v.Equal(MaxQuantity))

	for _, in := range []string{"1000.5", "25000", "1e3", "2E1", "1e99999999", "1e-99999999"} {
		_, ok = ParseAmount(in)
		assert.False(t, ok, in)
	}
}

func TestClampQuantity(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"-2", "0"},
		{"0", "0"},
		{"2.5", "2.5"},
		{"999.9", "999.9"},
		{"1000", "1000"},
		{"1000.01", "1000"},
		{"123456", "1000"},
		{"1e99999999", "1000"},
		{"1e-99999999", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ClampQuantity(d(tt.in))
			assert.True(t, got.Equal(d(tt.want)), "got %s, want %s", got, tt.want)
		})
	}
}

func TestSnapHugeExponents(t *testing.T) {
	assert.True(t, SnapToHalfStep(d("1e99999999")).Equal(MaxQuantity))
	assert.True(t, SnapToHalfStep(d("1e-99999999")).Equal(MinItem))
	assert.True(t, SnapText("1e99999999").Equal(MinItem))
	assert.True(t, SnapText("4000").Equal(MaxQuantity))
}

func TestIsHalfStep(t *testing.T) {
	assert.True(t, IsHalfStep(d("1.5")))
	assert.True(t, IsHalfStep(d("1.0000001")))
	assert.False(t, IsHalfStep(d("0.3")))
	assert.False(t, IsHalfStep(d("1.01")))
}

func TestFormatQuantity(t *testing.T) {
	assert.Equal(t, "0.5", FormatQuantity(d("0.5")))
	assert.Equal(t, "1.0", FormatQuantity(d("1")))
}
