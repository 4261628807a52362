package stores

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/papyrus-erp/papyrus-erp/internal/shared"
)

func TestValidateStore(t *testing.T) {
	err := validate(Store{Name: "Main Godown"})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "code", verr.Field)

	err = validate(Store{Code: "MAIN"})
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "name", verr.Field)

	require.NoError(t, validate(Store{Code: "MAIN", Name: "Main Godown"}))
}
