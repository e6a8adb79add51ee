package domain

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCart() Cart {
	return Cart{
		{ID: 1, Title: "Tênis de Caminhada", Price: decimal.RequireFromString("179.90"), Amount: 2},
		{ID: 2, Title: "Tênis VR Caminhada", Price: decimal.RequireFromString("139.90"), Amount: 1},
		{ID: 3, Title: "Tênis Adidas Duramo", Price: decimal.RequireFromString("219.90"), Amount: 3},
	}
}

func TestFind(t *testing.T) {
	c := sampleCart()

	p, ok := c.Find(2)
	require.True(t, ok)
	assert.Equal(t, "Tênis VR Caminhada", p.Title)

	_, ok = c.Find(42)
	assert.False(t, ok)
}

func TestWithAmount_DoesNotModifyReceiver(t *testing.T) {
	c := sampleCart()

	next := c.WithAmount(1, 7)

	assert.Equal(t, 7, next[0].Amount)
	assert.Equal(t, 2, c[0].Amount)
	assert.Equal(t, c[1], next[1])
	assert.Equal(t, c[2], next[2])
}

func TestWithAmount_MissingID(t *testing.T) {
	c := sampleCart()
	next := c.WithAmount(99, 4)
	assert.Equal(t, c, next)
}

func TestAppend_DoesNotShareBacking(t *testing.T) {
	c := make(Cart, 0, 10)
	c = append(c, Product{ID: 1, Amount: 1})

	a := c.Append(Product{ID: 2, Amount: 1})
	b := c.Append(Product{ID: 3, Amount: 1})

	require.Len(t, a, 2)
	require.Len(t, b, 2)
	assert.Equal(t, int64(2), a[1].ID)
	assert.Equal(t, int64(3), b[1].ID)
	assert.Len(t, c, 1)
}

func TestWithout_KeepsOrder(t *testing.T) {
	c := sampleCart()

	next := c.Without(2)

	require.Len(t, next, 2)
	assert.Equal(t, int64(1), next[0].ID)
	assert.Equal(t, int64(3), next[1].ID)
	assert.Len(t, c, 3)
}

func TestTotal(t *testing.T) {
	c := sampleCart()

	assert.True(t, decimal.RequireFromString("359.80").Equal(c.Subtotal(c[0])))
	// 359.80 + 139.90 + 659.70
	assert.True(t, decimal.RequireFromString("1159.40").Equal(c.Total()), c.Total().String())
	assert.True(t, Cart{}.Total().IsZero())
	assert.Equal(t, 3, c.Size())
}

func TestProduct_DecodesNumericPrice(t *testing.T) {
	var p Product
	err := json.Unmarshal([]byte(`{"id":1,"title":"Tênis","price":179.9,"image":"https://x/1.jpg"}`), &p)
	require.NoError(t, err)

	assert.Equal(t, int64(1), p.ID)
	assert.True(t, decimal.RequireFromString("179.9").Equal(p.Price))
	assert.Equal(t, 0, p.Amount)
}
