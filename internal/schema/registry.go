package schema

import (
	"math"

	"github.com/yanun0323/errors"
)

// ProductID is the numeric identifier for a product.
type ProductID uint32

// Product describes a tradable instrument and its price scaling.
type Product struct {
	ID       ProductID
	Name     string
	Exchange Exchange
	TickSize float64
	// PriceDivisor converts wire prices to float prices: float = wire / divisor.
	PriceDivisor int64
}

// Contract returns the wire contract for the product.
func (p Product) Contract() Contract {
	return Contract{Exchange: p.Exchange, SecDesc: p.Name, WhName: p.Name}
}

// FromWire converts a scaled wire price to a float price.
func (p Product) FromWire(price Price) float64 {
	if p.PriceDivisor <= 1 {
		return float64(price)
	}
	return float64(price) / float64(p.PriceDivisor)
}

// ToWire converts a float price to a scaled wire price.
func (p Product) ToWire(price float64) Price {
	if p.PriceDivisor <= 1 {
		return Price(math.Round(price))
	}
	return Price(math.Round(price * float64(p.PriceDivisor)))
}

// Registry stores product mappings in a compact form.
type Registry struct {
	products      []Product
	productByName map[string]ProductID
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		productByName: make(map[string]ProductID),
	}
}

// AddProduct registers a new product and returns its ID.
func (r *Registry) AddProduct(name string, exchange Exchange, tickSize float64, divisor int64) (ProductID, error) {
	if name == "" {
		return 0, errors.New("product name is empty")
	}
	if exchange == ExchangeUnknown {
		return 0, errors.Errorf("product %s: exchange is unknown", name)
	}
	if tickSize <= 0 {
		return 0, errors.Errorf("product %s: tick size must be positive", name)
	}
	if divisor <= 0 {
		return 0, errors.Errorf("product %s: price divisor must be positive", name)
	}
	if id, ok := r.productByName[name]; ok {
		return id, errors.Errorf("product already exists: %s", name)
	}
	id := ProductID(len(r.products) + 1)
	r.products = append(r.products, Product{
		ID:           id,
		Name:         name,
		Exchange:     exchange,
		TickSize:     tickSize,
		PriceDivisor: divisor,
	})
	r.productByName[name] = id
	return id, nil
}

// Product returns the product by ID.
func (r *Registry) Product(id ProductID) (Product, bool) {
	if id == 0 || int(id) > len(r.products) {
		return Product{}, false
	}
	return r.products[id-1], true
}

// ProductByName returns the product registered under name.
func (r *Registry) ProductByName(name string) (Product, bool) {
	id, ok := r.productByName[name]
	if !ok {
		return Product{}, false
	}
	return r.Product(id)
}

// ProductCount returns the number of products in the registry.
func (r *Registry) ProductCount() int {
	return len(r.products)
}

// Products returns a copy of all registered products in ID order.
func (r *Registry) Products() []Product {
	out := make([]Product, len(r.products))
	copy(out, r.products)
	return out
}
