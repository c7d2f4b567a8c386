package coreerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsMatchesByCode(t *testing.T) {
	err := New(BadRequest, "duplicate asset in bid list")
	require.True(t, errors.Is(err, ErrBadRequest))
	require.False(t, errors.Is(err, ErrInvalidLiquidation))
}

func TestWrapPreservesCauseAndCode(t *testing.T) {
	cause := fmt.Errorf("transfer reverted")
	err := Wrap(TransferFailed, "payout failed", cause)
	require.True(t, errors.Is(err, ErrTransferFailed))
	require.ErrorIs(t, err, cause)
	require.Equal(t, TransferFailed, err.Code())
}
