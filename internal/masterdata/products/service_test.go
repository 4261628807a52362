package products

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/papyrus-erp/papyrus-erp/internal/shared"
)

func TestValidateProduct(t *testing.T) {
	svc := NewService(nil)

	cases := []struct {
		name    string
		product Product
		field   string
	}{
		{"missing code", Product{Name: "Reel"}, "code"},
		{"missing name", Product{Code: "RL-1"}, "name"},
		{"bad type", Product{Code: "RL-1", Name: "Reel", Type: "SHEET"}, "type"},
		{"negative dims", Product{Code: "RL-1", Name: "Reel", Length: -1}, "dimensions"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.validate(tc.product)
			var verr *shared.ValidationError
			require.ErrorAs(t, err, &verr)
			require.Equal(t, tc.field, verr.Field)
		})
	}

	require.NoError(t, svc.validate(Product{Code: "BD-1", Name: "Board", Type: TypeBoard, Length: 22, Width: 30, Grams: 250}))
	// empty type means reel, dimensions optional
	require.NoError(t, svc.validate(Product{Code: "RL-2", Name: "Reel"}))
}
