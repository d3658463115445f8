package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"card-sync/core/fingerprint"
	"card-sync/core/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cardProduct(id int64, number string) Product {
	return Product{
		ProductID: id,
		Name:      "Cloud",
		CleanName: "Cloud",
		GroupID:   23,
		ImageURL:  "https://img.example/cloud.jpg",
		ExtendedData: []ExtendedData{
			{Name: "Number", Value: number},
			{Name: "Rarity", Value: "Legend"},
			{Name: "Cost", Value: "5"},
			{Name: "Power", Value: "9000"},
			{Name: "Element", Value: "Wind;Fire"},
			{Name: "Job", Value: "SOLDIER"},
			{Name: "CardType", Value: "Forward"},
		},
	}
}

func TestMapProduct(t *testing.T) {
	r, err := MapProduct(cardProduct(1, "1-182S/PR-001"))
	require.NoError(t, err)

	assert.Equal(t, int64(1), r.ID)
	assert.Equal(t, []string{"1-182S", "PR-001"}, r.Numbers)
	assert.Equal(t, "1-182S", r.PrimaryNumber)
	assert.Equal(t, []string{"Wind", "Fire"}, r.Elements)
	assert.Equal(t, "SOLDIER", r.Job)
	assert.False(t, r.Promo)
	assert.Equal(t, "9000", r.ExtendedAttributes["Power"])
}

func TestMapProduct_Errors(t *testing.T) {
	_, err := MapProduct(cardProduct(2, ""))
	assert.ErrorIs(t, err, ErrMissingNumber)

	sealed := Product{ProductID: 3, Name: "Opus XX Booster Display"}
	_, err = MapProduct(sealed)
	assert.ErrorIs(t, err, ErrSealedProduct)

	promo := cardProduct(4, "")
	promo.Name = "Cloud (PR-050)"
	r, err := MapProduct(promo)
	require.NoError(t, err)
	assert.True(t, r.Promo)
	assert.Equal(t, []string{"PR-050"}, r.Numbers)
}

func TestRecord_FingerprintIgnoresVolatileFields(t *testing.T) {
	a, err := MapProduct(cardProduct(1, "1-182S"))
	require.NoError(t, err)
	b := a
	b.ModifiedOn = "2030-01-01T00:00:00"
	b.ImageStatus = ImageStatusPending
	b.Elements = []string{"Fire", "Wind"}

	fa, err := fingerprint.Of(a)
	require.NoError(t, err)
	fb, err := fingerprint.Of(b)
	require.NoError(t, err)
	assert.Equal(t, fa, fb)

	b.Power = "8000"
	fc, err := fingerprint.Of(b)
	require.NoError(t, err)
	assert.NotEqual(t, fa, fc)
}

func TestGroupPrices(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	rows := []PriceRow{
		{ProductID: 20, MarketPrice: f(1.5), SubTypeName: "Foil"},
		{ProductID: 10, MarketPrice: f(0.25), SubTypeName: "Normal"},
		{ProductID: 20, MarketPrice: f(0.5), SubTypeName: "Normal"},
		{ProductID: 30, MarketPrice: f(9), SubTypeName: "Holofoil"},
	}

	got := GroupPrices(7, rows)
	require.Len(t, got, 2)
	assert.Equal(t, int64(20), got[0].ProductID, "upstream order kept")
	assert.Equal(t, 1.5, *got[0].Foil.Market)
	assert.Equal(t, 0.5, *got[0].Normal.Market)
	assert.Equal(t, int64(7), got[0].GroupID)
	assert.Equal(t, int64(10), got[1].ProductID)
	assert.Nil(t, got[1].Foil)
}

func TestClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/24/groups":
			_, _ = w.Write([]byte(`{"success":true,"errors":[],"results":[{"groupId":23,"name":"Opus I"}]}`))
		case "/24/23/products":
			_, _ = w.Write([]byte(`{"success":true,"results":[{"productId":1,"name":"Cloud","extendedData":[{"name":"Number","displayName":"Number","value":"1-182S"}]}]}`))
		case "/24/23/prices":
			_, _ = w.Write([]byte(`{"success":true,"results":[{"productId":1,"marketPrice":1.25,"subTypeName":"Normal"}]}`))
		case "/24/99/products":
			_, _ = w.Write([]byte(`{"success":false,"errors":["group not found"],"results":[]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL + "/", CategoryID: 24, TimeoutSeconds: 5})
	ctx := context.Background()

	groups, err := c.Groups(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Group{{GroupID: 23, Name: "Opus I"}}, groups)

	products, err := c.Products(ctx, 23)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "1-182S", products[0].ExtendedData[0].Value)

	prices, err := c.Prices(ctx, 23)
	require.NoError(t, err)
	assert.Equal(t, 1.25, *prices[0].MarketPrice)

	_, err = c.Products(ctx, 99)
	assert.ErrorContains(t, err, "group not found")
	assert.False(t, retry.Retryable(err))
}
