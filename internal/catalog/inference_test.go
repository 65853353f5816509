package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInferCategoryAndShelfLife(t *testing.T) {
	cases := []struct {
		itemCode string
		category string
		days     int
	}{
		{"OGB101", "BREAD", 4},
		{"OGC200", "CAKE", 3},
		{"OGK301", "COOKIES", 30},
		{"OGR401", "RUSK", 60},
		{"OGS501", "SAVOURY", 2},
		{"OGD601", "DECORATION", 0},
		{"OG999", "BAKERY", 5},
		{"XX123", "GENERAL", 0},
		{"", "GENERAL", 0},
	}
	for _, tc := range cases {
		t.Run(tc.itemCode, func(t *testing.T) {
			got := InferCategoryAndShelfLife(tc.itemCode)
			require.Equal(t, tc.category, got.Category)
			require.Equal(t, tc.days, got.ShelfLifeDays)
		})
	}
}

func TestInferNormalisesCase(t *testing.T) {
	got := InferCategoryAndShelfLife("  ogb101 ")
	require.Equal(t, "BREAD", got.Category)
	require.Equal(t, 4, got.ShelfLifeDays)
}

func TestPerishable(t *testing.T) {
	require.True(t, Product{ShelfLifeDays: 3}.Perishable())
	require.False(t, Product{ShelfLifeDays: 0}.Perishable())
}
