package tax

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestComputeIntrastate(t *testing.T) {
	b, err := Compute(d("1000"), d("18"), ModeIntrastate)
	require.NoError(t, err)
	require.True(t, b.CGST.Equal(d("90")), "cgst = %s", b.CGST)
	require.True(t, b.SGST.Equal(d("90")), "sgst = %s", b.SGST)
	require.True(t, b.IGST.IsZero())
	require.True(t, b.Total.Equal(d("1180")), "total = %s", b.Total)
}

func TestComputeInterstate(t *testing.T) {
	b, err := Compute(d("1000"), d("18"), ModeInterstate)
	require.NoError(t, err)
	require.True(t, b.IGST.Equal(d("180")))
	require.True(t, b.CGST.IsZero())
	require.True(t, b.SGST.IsZero())
	require.True(t, b.Total.Equal(d("1180")))
}

func TestHalvesAreEqualAndModesAgree(t *testing.T) {
	subtotals := []string{"0", "1", "99.99", "1234.56", "100000"}
	rates := []string{"0", "5", "12", "18", "28", "100"}

	for _, s := range subtotals {
		for _, r := range rates {
			intra, err := Compute(d(s), d(r), ModeIntrastate)
			require.NoError(t, err)
			inter, err := Compute(d(s), d(r), ModeInterstate)
			require.NoError(t, err)

			require.True(t, intra.CGST.Equal(intra.SGST),
				"subtotal=%s rate=%s cgst=%s sgst=%s", s, r, intra.CGST, intra.SGST)
			require.True(t, intra.CGST.Add(intra.SGST).Equal(inter.IGST),
				"subtotal=%s rate=%s", s, r)
			require.True(t, intra.Total.Equal(inter.Total),
				"subtotal=%s rate=%s", s, r)
		}
	}
}

func TestModesAreMutuallyExclusive(t *testing.T) {
	intra, err := Compute(d("500"), d("12"), ModeIntrastate)
	require.NoError(t, err)
	require.True(t, intra.IGST.IsZero())
	require.False(t, intra.CGST.IsZero())

	inter, err := Compute(d("500"), d("12"), ModeInterstate)
	require.NoError(t, err)
	require.True(t, inter.CGST.IsZero())
	require.True(t, inter.SGST.IsZero())
	require.False(t, inter.IGST.IsZero())
}

func TestComputeInvalidInputs(t *testing.T) {
	_, err := Compute(d("-1"), d("18"), ModeIntrastate)
	require.ErrorIs(t, err, ErrNegativeSubtotal)

	_, err = Compute(d("100"), d("-1"), ModeIntrastate)
	require.ErrorIs(t, err, ErrInvalidRate)

	_, err = Compute(d("100"), d("101"), ModeInterstate)
	require.ErrorIs(t, err, ErrInvalidRate)

	_, err = Compute(d("100"), d("18"), Mode("OFFSHORE"))
	require.ErrorIs(t, err, ErrInvalidMode)
}

func TestRoundedKeepsTotalInvariant(t *testing.T) {
	// 333.33 at 18% intrastate: each half is 29.9997, which rounds to 30.00.
	b, err := Compute(d("333.33"), d("18"), ModeIntrastate)
	require.NoError(t, err)

	rounded := b.Rounded()
	require.True(t, rounded.CGST.Equal(d("30.00")), "cgst = %s", rounded.CGST)
	require.True(t, rounded.SGST.Equal(d("30.00")))
	require.True(t, rounded.Total.Equal(rounded.Subtotal.Add(rounded.CGST).Add(rounded.SGST)))
}

func TestRoundingIsDeferredToBoundary(t *testing.T) {
	// The unrounded breakdown keeps full precision so accumulating many
	// line items does not drift.
	b, err := Compute(d("0.01"), d("18"), ModeIntrastate)
	require.NoError(t, err)
	require.True(t, b.CGST.Equal(d("0.0009")), "cgst = %s", b.CGST)

	sum := decimal.Zero
	for i := 0; i < 100; i++ {
		sum = sum.Add(b.TaxAmount())
	}
	require.True(t, sum.Equal(d("0.18")), "sum = %s", sum)
}
