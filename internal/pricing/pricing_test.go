package pricing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixed(t *testing.T) {
	src, err := New(Config{Source: "fixed", FixedPrice: "102"})
	require.NoError(t, err)

	p, err := src.Quote(context.Background(), "BTC")
	require.NoError(t, err)
	assert.True(t, p.Equal(decimal.NewFromInt(102)))

	_, err = New(Config{Source: "fixed", FixedPrice: "abc"})
	require.Error(t, err)
	_, err = New(Config{Source: "oracle"})
	require.Error(t, err)
}

func TestMessari(t *testing.T) {
	var gotPath, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-messari-api-key")
		switch r.URL.Path {
		case "/assets/btc/metrics/market-data":
			_, _ = w.Write([]byte(`{"status":{"elapsed":1},"data":{"id":"x","market_data":{"price_usd":64123.456789012345}}}`))
		case "/assets/dead/metrics/market-data":
			_, _ = w.Write([]byte(`{"data":{"market_data":{"price_usd":null}}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	m := NewMessari(MessariConfig{BaseURL: srv.URL + "/", APIKey: "k"}, srv.Client())

	p, err := m.Quote(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Equal(t, "64123.456789012345", p.String())
	assert.Equal(t, "/assets/btc/metrics/market-data", gotPath)
	assert.Equal(t, "k", gotKey)

	_, err = m.Quote(context.Background(), "NOPE")
	require.ErrorIs(t, err, ErrUnknownSymbol)

	_, err = m.Quote(context.Background(), "DEAD")
	require.ErrorIs(t, err, ErrUnknownSymbol)
}

func TestMessari_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewMessari(MessariConfig{BaseURL: srv.URL}, srv.Client()).Quote(context.Background(), "BTC")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnknownSymbol)
}

func TestMessari_Assets(t *testing.T) {
	var gotFields string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/assets", r.URL.Path)
		gotFields = r.URL.Query().Get("fields")
		_, _ = w.Write([]byte(`{"status":{},"data":[
			{"id":"1e31218a","symbol":"BTC","name":"Bitcoin","slug":"bitcoin",
			 "metrics":{"market_data":{"price_usd":64123.5}},
			 "profile":{"general":{"overview":{"project_details":"Digital gold"}}}},
			{"id":"21c795f5","symbol":"ETH","name":"Ethereum","slug":"ethereum",
			 "metrics":{"market_data":{"price_usd":null}},"profile":null},
			{"id":"ffff","symbol":"DOGE","name":"Dogecoin","slug":"dogecoin","metrics":null,"profile":null}
		]}`))
	}))
	defer srv.Close()

	assets, err := NewMessari(MessariConfig{BaseURL: srv.URL}, srv.Client()).Assets(context.Background())
	require.NoError(t, err)
	assert.Contains(t, gotFields, "metrics/market_data/price_usd")

	require.Len(t, assets, 2)
	btc := assets[0]
	assert.Equal(t, "1e31218a", btc.ID)
	assert.Equal(t, "Bitcoin", btc.Name)
	assert.Equal(t, "bitcoin", btc.Slug)
	assert.Equal(t, "Digital gold", btc.ProjectDetails)
	require.True(t, btc.PriceUSD.Valid)
	assert.Equal(t, "64123.5", btc.PriceUSD.Decimal.String())

	eth := assets[1]
	assert.Equal(t, "ETH", eth.Symbol)
	assert.False(t, eth.PriceUSD.Valid)
	assert.Empty(t, eth.ProjectDetails)
}

func TestMessari_Exchanges(t *testing.T) {
	var gotPage string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/markets", r.URL.Path)
		gotPage = r.URL.Query().Get("page")
		_, _ = w.Write([]byte(`{"data":[
			{"exchange_id":"d8b0f0c2","exchange_name":"Kraken","exchange_slug":"kraken",
			 "base_asset_symbol":"BTC","price_usd":64000.25,"last_trade_at":"2025-06-01T10:20:30.123Z"},
			{"exchange_id":"a1","exchange_name":"Idle","exchange_slug":"idle",
			 "base_asset_symbol":"LINK","price_usd":null,"last_trade_at":null}
		]}`))
	}))
	defer srv.Close()
	m := NewMessari(MessariConfig{BaseURL: srv.URL}, srv.Client())

	page, err := m.Exchanges(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "3", gotPage)
	assert.Equal(t, 3, page.PageNumber)
	require.Len(t, page.Items, 2)

	kraken := page.Items[0]
	assert.Equal(t, "d8b0f0c2", kraken.ID)
	assert.Equal(t, "Kraken", kraken.Name)
	assert.Equal(t, "kraken", kraken.Slug)
	assert.Equal(t, "BTC", kraken.AssetSymbol)
	assert.Equal(t, "64000.25", kraken.PriceUSD.Decimal.String())
	assert.Equal(t, time.Date(2025, 6, 1, 10, 20, 30, 123000000, time.UTC), kraken.LastTrade.UTC())

	assert.False(t, page.Items[1].PriceUSD.Valid)
	assert.True(t, page.Items[1].LastTrade.IsZero())

	page, err = m.Exchanges(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "1", gotPage)
	assert.Equal(t, 1, page.PageNumber)
}

func TestMessari_ListingError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	m := NewMessari(MessariConfig{BaseURL: srv.URL}, srv.Client())

	_, err := m.Assets(context.Background())
	require.ErrorContains(t, err, "status 502")
	_, err = m.Exchanges(context.Background(), 1)
	require.ErrorContains(t, err, "status 502")
}
