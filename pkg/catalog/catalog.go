// Package catalog provides the static product catalog orders are placed against.
package catalog

import "fmt"

// Product describes one orderable item.
type Product struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Price int64  `json:"price"` // smallest currency unit
}

// ErrUnknownProduct is returned when a product ID is not in the catalog.
var ErrUnknownProduct = fmt.Errorf("unknown product")

// products is the fixed menu. IDs are stable; callers hold them across restarts.
var products = []Product{
	{ID: 1, Name: "Margherita Pizza", Price: 29900},
	{ID: 2, Name: "Paneer Tikka Bowl", Price: 24900},
	{ID: 3, Name: "Veggie Burger", Price: 19900},
	{ID: 4, Name: "Masala Dosa", Price: 17900},
	{ID: 5, Name: "Mango Lassi", Price: 9900},
}

// ByID looks up a product by ID.
func ByID(id int) (Product, error) {
	for _, p := range products {
		if p.ID == id {
			return p, nil
		}
	}
	return Product{}, fmt.Errorf("%w: %d", ErrUnknownProduct, id)
}

// All returns the full catalog in listing order.
func All() []Product {
	out := make([]Product, len(products))
	copy(out, products)
	return out
}
