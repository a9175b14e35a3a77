package market

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	mr := NewMarketRegistry()

	id, err := mr.Register(DefaultParams(SymbolFor(0), 100, 1, 1e6))
	require.NoError(t, err)
	require.Equal(t, 0, id)

	id, err = mr.Register(DefaultParams("GOLD", 1800, 0.5, 1e4))
	require.NoError(t, err)
	require.Equal(t, 1, id)
	require.Equal(t, 2, mr.Len())

	_, err = mr.Register(DefaultParams("GOLD", 1, 1, 1))
	require.ErrorContains(t, err, "already registered")

	got, err := mr.Lookup("ASSET-0")
	require.NoError(t, err)
	require.Equal(t, 0, got)
	_, err = mr.Lookup("SILVER")
	require.Error(t, err)

	p, err := mr.Get(1)
	require.NoError(t, err)
	require.Equal(t, 1800.0, p.StartPrice)
	_, err = mr.Get(2)
	require.Error(t, err)

	list := mr.List()
	require.Len(t, list, 2)
	list[0].Symbol = "mutated"
	p, _ = mr.Get(0)
	require.Equal(t, "ASSET-0", p.Symbol)
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name   string
		params Params
		errMsg string
	}{
		{"valid", DefaultParams("A", 1, 0, 0), ""},
		{"empty symbol", DefaultParams("", 1, 1, 1), "symbol"},
		{"zero price", DefaultParams("A", 0, 1, 1), "start price"},
		{"negative beta", DefaultParams("A", 1, -1, 1), "beta"},
		{"negative supply", DefaultParams("A", 1, 1, -1), "supply"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if tt.errMsg == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.errMsg)
		})
	}
}
