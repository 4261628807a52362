package uom

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/papyrus-erp/papyrus-erp/internal/masterdata/products"
)

func TestUnitWeight(t *testing.T) {
	cases := []struct {
		name    string
		product products.Product
		want    float64
	}{
		{
			name:    "board divides by ream factor",
			product: products.Product{Length: 10, Width: 20, Grams: 100, Type: products.TypeBoard},
			want:    float64(10*20*100) / 15500,
		},
		{
			name:    "reel multiplies dimensions",
			product: products.Product{Length: 10, Width: 20, Grams: 100, Type: products.TypeReel},
			want:    20000,
		},
		{
			name:    "empty type behaves as reel",
			product: products.Product{Length: 10, Width: 20, Grams: 100},
			want:    20000,
		},
		{
			name:    "missing length yields zero",
			product: products.Product{Width: 20, Grams: 100, Type: products.TypeBoard},
			want:    0,
		},
		{
			name:    "negative grams yields zero",
			product: products.Product{Length: 10, Width: 20, Grams: -1, Type: products.TypeReel},
			want:    0,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, _ := UnitWeight(tc.product).Float64()
			require.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestRowWeightRounding(t *testing.T) {
	p := products.Product{Length: 10, Width: 20, Grams: 100, Type: products.TypeBoard}

	// unit weight 1.2903..., three packets round to 4dp
	got, _ := RowWeight(3, p).Float64()
	require.InDelta(t, 3.871, got, 0.00005)

	require.True(t, RowWeight(5, products.Product{}).IsZero())
}
