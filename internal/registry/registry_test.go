package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/enginecore/internal/decimalx"
	"github.com/aristath/enginecore/internal/domain"
)

func tickSize(v float64) decimalx.Decimal {
	return decimalx.NewFromFloat(v)
}

func TestBuild_AssignsDenseIndices(t *testing.T) {
	r, err := Build(
		[]ExchangeSpec{{Name: "binance"}, {Name: "kraken"}},
		[]AssetSpec{
			{Exchange: "binance", Symbol: "BTC"},
			{Exchange: "binance", Symbol: "USDT"},
		},
		[]InstrumentSpec{
			{Exchange: "binance", Base: "BTC", Quote: "USDT", Kind: domain.SpotKind(), PriceTick: tickSize(0.01), QuantityTick: tickSize(0.0001)},
		},
	)
	require.NoError(t, err)

	exIdx, err := r.ExchangeIndex("binance")
	require.NoError(t, err)
	assert.Equal(t, domain.ExchangeIndex(0), exIdx)

	krakenIdx, err := r.ExchangeIndex("kraken")
	require.NoError(t, err)
	assert.Equal(t, domain.ExchangeIndex(1), krakenIdx)

	btcIdx, err := r.AssetIndex("binance", "BTC")
	require.NoError(t, err)
	assert.Equal(t, domain.AssetIndex(0), btcIdx)

	instIdx, err := r.InstrumentIndex("binance", "BTC", "USDT", domain.SpotKind())
	require.NoError(t, err)
	assert.Equal(t, domain.InstrumentIndex(0), instIdx)

	inst, err := r.Instrument(instIdx)
	require.NoError(t, err)
	assert.Equal(t, exIdx, inst.Exchange)
	assert.Equal(t, btcIdx, inst.Base)
}

func TestBuild_DuplicateExchangeIsConfigError(t *testing.T) {
	_, err := Build([]ExchangeSpec{{Name: "binance"}, {Name: "binance"}}, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfig)
}

func TestBuild_InstrumentSelfReferenceIsConfigError(t *testing.T) {
	_, err := Build(
		[]ExchangeSpec{{Name: "binance"}},
		[]AssetSpec{{Exchange: "binance", Symbol: "BTC"}},
		[]InstrumentSpec{
			{Exchange: "binance", Base: "BTC", Quote: "BTC", Kind: domain.SpotKind(), PriceTick: tickSize(0.01), QuantityTick: tickSize(0.0001)},
		},
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfig)
}

func TestBuild_UnregisteredAssetReferenceIsConfigError(t *testing.T) {
	_, err := Build(
		[]ExchangeSpec{{Name: "binance"}},
		[]AssetSpec{{Exchange: "binance", Symbol: "BTC"}},
		[]InstrumentSpec{
			{Exchange: "binance", Base: "BTC", Quote: "USDT", Kind: domain.SpotKind(), PriceTick: tickSize(0.01), QuantityTick: tickSize(0.0001)},
		},
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfig)
}

func TestBuild_NonPositiveTickSizeIsConfigError(t *testing.T) {
	_, err := Build(
		[]ExchangeSpec{{Name: "binance"}},
		[]AssetSpec{
			{Exchange: "binance", Symbol: "BTC"},
			{Exchange: "binance", Symbol: "USDT"},
		},
		[]InstrumentSpec{
			{Exchange: "binance", Base: "BTC", Quote: "USDT", Kind: domain.SpotKind(), PriceTick: decimalx.Zero, QuantityTick: tickSize(1)},
		},
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfig)
}

func TestLookup_MissingNameReturnsUnknownIdentifier(t *testing.T) {
	r, err := Build([]ExchangeSpec{{Name: "binance"}}, nil, nil)
	require.NoError(t, err)

	_, err = r.ExchangeIndex("coinbase")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnknownIdentifier)

	_, err = r.AssetIndex("binance", "ETH")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnknownIdentifier)

	_, err = r.Instrument(domain.InstrumentIndex(99))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnknownIdentifier)
}

func TestRegistry_DenseVectorsMatchCounts(t *testing.T) {
	r, err := Build(
		[]ExchangeSpec{{Name: "binance"}},
		[]AssetSpec{
			{Exchange: "binance", Symbol: "BTC"},
			{Exchange: "binance", Symbol: "USDT"},
			{Exchange: "binance", Symbol: "ETH"},
		},
		[]InstrumentSpec{
			{Exchange: "binance", Base: "BTC", Quote: "USDT", Kind: domain.SpotKind(), PriceTick: tickSize(0.01), QuantityTick: tickSize(0.0001)},
			{Exchange: "binance", Base: "ETH", Quote: "USDT", Kind: domain.SpotKind(), PriceTick: tickSize(0.01), QuantityTick: tickSize(0.0001)},
		},
	)
	require.NoError(t, err)

	assert.Equal(t, 3, r.NumAssets())
	assert.Equal(t, 2, r.NumInstruments())
	assert.Equal(t, 1, r.NumExchanges())
	assert.Len(t, r.Assets(), 3)
	assert.Len(t, r.Instruments(), 2)
}
