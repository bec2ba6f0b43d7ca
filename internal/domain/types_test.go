package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityIDs(t *testing.T) {
	assert.Equal(t, "0xAA-1", NftID("0xAA", "1"))
	assert.Equal(t, "0xCC-0x00-0xAA-1-5", BalanceID("0xCC", "0x00", "0xAA", "1", "5"))
	assert.Equal(t, "0xSeller-0xBuyer-42", OrderID("0xSeller", "0xBuyer", "42"))
}

func TestBalanceIDEmbedsQuantity(t *testing.T) {
	a := BalanceID("0xCC", "0xBB", "0xAA", "1", "2")
	b := BalanceID("0xCC", "0xBB", "0xAA", "1", "3")
	assert.NotEqual(t, a, b)
}

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "lowercase address is checksummed",
			input:    "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed",
			expected: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		},
		{
			name:     "checksummed address is unchanged",
			input:    "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
			expected: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		},
		{
			name:     "non hex input is returned as is",
			input:    "0xAA",
			expected: "0xAA",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeAddress(tt.input))
		})
	}
}

func TestIsZeroAddress(t *testing.T) {
	assert.True(t, IsZeroAddress(ETHEREUM_ZERO_ADDRESS))
	assert.True(t, IsZeroAddress("0x0000000000000000000000000000000000000000"))
	assert.False(t, IsZeroAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"))
	assert.False(t, IsZeroAddress("0x0"))
}

func TestParseUint256(t *testing.T) {
	n, err := ParseUint256("115792089237316195423570985008687907853269984665640564039457584007913129639935")
	require.NoError(t, err)
	assert.Equal(t, 256, n.BitLen())

	n, err = ParseUint256("")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n.Int64())

	_, err = ParseUint256("-1")
	assert.ErrorIs(t, err, ErrInvalidEvent)

	_, err = ParseUint256("abc")
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestEventDecode(t *testing.T) {
	ev, err := NewEvent(EventTypeTransfer, 137, "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", TransferParams{
		From:    ETHEREUM_ZERO_ADDRESS,
		To:      "0xCC",
		TokenID: "1",
	})
	require.NoError(t, err)
	assert.Equal(t, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", ev.SrcAddress)

	var p TransferParams
	require.NoError(t, ev.Decode(&p))
	assert.Equal(t, "1", p.TokenID)
	assert.Equal(t, "0xCC", p.To)

	ev.Params = []byte("{")
	assert.ErrorIs(t, ev.Decode(&p), ErrInvalidEvent)

	ev.Params = nil
	assert.ErrorIs(t, ev.Decode(&p), ErrInvalidEvent)
}

func TestEventID(t *testing.T) {
	ev := &Event{ChainID: 137, TxHash: "0xABCD", LogIndex: 7}
	assert.Equal(t, "137-0xabcd-7", ev.ID())
}

func TestIsPermanent(t *testing.T) {
	assert.True(t, IsPermanent(fmt.Errorf("%w: %w", ErrDataIntegrity, ErrNftNotFound)))
	assert.True(t, IsPermanent(fmt.Errorf("wrapped: %w", ErrInvalidEvent)))
	assert.True(t, IsPermanent(ErrUnknownEventType))
	assert.False(t, IsPermanent(errors.New("connection refused")))
	assert.False(t, IsPermanent(nil))
}
