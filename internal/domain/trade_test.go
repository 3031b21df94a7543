package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSameAddress(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{
			name: "identical",
			a:    "0xabcdef0123456789abcdef0123456789abcdef01",
			b:    "0xabcdef0123456789abcdef0123456789abcdef01",
			want: true,
		},
		{
			name: "checksum casing differs",
			a:    "0xABCDef0123456789ABCDEF0123456789abcdEF01",
			b:    "0xabcdef0123456789abcdef0123456789abcdef01",
			want: true,
		},
		{
			name: "different accounts",
			a:    "0xabcdef0123456789abcdef0123456789abcdef01",
			b:    "0x1111111111111111111111111111111111111111",
			want: false,
		},
		{
			name: "empty left",
			a:    "",
			b:    "0xabcdef0123456789abcdef0123456789abcdef01",
			want: false,
		},
		{
			name: "both empty",
			a:    "",
			b:    "",
			want: false,
		},
		{
			name: "non-hex fallback is case-insensitive",
			a:    "Supporter.One",
			b:    "supporter.one",
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, SameAddress(tt.a, tt.b))
		})
	}
}

func TestValidAddress(t *testing.T) {
	require.True(t, ValidAddress("0xabcdef0123456789abcdef0123456789abcdef01"))
	require.False(t, ValidAddress(""))
	require.False(t, ValidAddress("0x123"))
	require.False(t, ValidAddress("not an address"))
}

func TestAmountUnits(t *testing.T) {
	tr := ShadowTrade{Amount: "1000000"}
	n, err := tr.AmountUnits()
	require.NoError(t, err)
	require.Equal(t, int64(1000000), n.Int64())

	tr.Amount = "-5"
	_, err = tr.AmountUnits()
	require.Error(t, err)

	tr.Amount = "1.5"
	_, err = tr.AmountUnits()
	require.Error(t, err)

	orig := OriginalTrade{Amount: "0"}
	n, err = orig.AmountUnits()
	require.NoError(t, err)
	require.Zero(t, n.Sign())
}

func TestShadowTradeWireFields(t *testing.T) {
	raw := `{
		"matchId": "m1",
		"monachadAddress": "0x2222222222222222222222222222222222222222",
		"supporterAddress": "0xabcdef0123456789abcdef0123456789abcdef01",
		"tradeType": "OPEN",
		"dex": "ambient",
		"amount": "1000000",
		"positionType": "LONG",
		"leverage": "5",
		"assetId": "ETH-USD",
		"transactionHash": "0xdeadbeef",
		"timestamp": 1700000000000
	}`

	var tr ShadowTrade
	require.NoError(t, json.Unmarshal([]byte(raw), &tr))
	require.Equal(t, "m1", tr.MatchID)
	require.Equal(t, TradeOpen, tr.TradeType)
	require.Equal(t, PositionLong, tr.PositionType)
	require.Equal(t, "0xdeadbeef", tr.TransactionHash)
	require.Equal(t, int64(1700000000000), tr.Timestamp)
}
