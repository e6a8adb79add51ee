package domain

import "github.com/shopspring/decimal"

// Product is a cart line: catalog display fields plus the amount selected by the shopper.
type Product struct {
	ID     int64           `json:"id"`
	Title  string          `json:"title"`
	Price  decimal.Decimal `json:"price"`
	Image  string          `json:"image"`
	Amount int             `json:"amount"`
}

// Stock is the number of units available for a product.
type Stock struct {
	ID     int64 `json:"id"`
	Amount int   `json:"amount"`
}

// Cart is the ordered list of selected products. At most one entry per product id.
// Methods never modify the receiver.
type Cart []Product

func (c Cart) Find(productID int64) (Product, bool) {
	for _, p := range c {
		if p.ID == productID {
			return p, true
		}
	}
	return Product{}, false
}

func (c Cart) Clone() Cart {
	out := make(Cart, len(c))
	copy(out, c)
	return out
}

// WithAmount returns a copy where the entry for productID has the given amount.
// The copy equals the receiver when no such entry exists.
func (c Cart) WithAmount(productID int64, amount int) Cart {
	out := c.Clone()
	for i := range out {
		if out[i].ID == productID {
			out[i].Amount = amount
		}
	}
	return out
}

func (c Cart) Append(p Product) Cart {
	out := make(Cart, 0, len(c)+1)
	out = append(out, c...)
	return append(out, p)
}

func (c Cart) Without(productID int64) Cart {
	out := make(Cart, 0, len(c))
	for _, p := range c {
		if p.ID != productID {
			out = append(out, p)
		}
	}
	return out
}

// Size is the number of distinct products.
func (c Cart) Size() int {
	return len(c)
}

func (c Cart) Subtotal(p Product) decimal.Decimal {
	return p.Price.Mul(decimal.NewFromInt(int64(p.Amount)))
}

func (c Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, p := range c {
		total = total.Add(c.Subtotal(p))
	}
	return total
}
