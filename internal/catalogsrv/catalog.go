// Package catalogsrv serves a product and stock API from a seed file.
// It stands in for the storefront's remote catalog during development and tests.
package catalogsrv

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/abgdnv/rocketcart/internal/cart"
	"github.com/go-playground/validator/v10"
)

var ErrNotFound = errors.New("not found")
var ErrInvalidSeed = errors.New("invalid seed")

// Seed is the content of the seed file.
type Seed struct {
	Products []cart.Product `json:"products"`
	Stock    []StockEntry   `json:"stock" validate:"dive"`
}

type StockEntry struct {
	ID     int `json:"id" validate:"gt=0"`
	Amount int `json:"amount" validate:"gte=0"`
}

// Catalog holds products and stock in memory.
type Catalog struct {
	mu       sync.RWMutex
	products map[int]cart.Product
	stock    map[int]int
}

// LoadSeed reads and validates the seed file at path.
func LoadSeed(path string) (Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("failed to read seed file: %w", err)
	}
	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return Seed{}, fmt.Errorf("%w: %s: %v", ErrInvalidSeed, path, err)
	}
	return seed, nil
}

// NewCatalog validates seed and builds a catalog from it.
func NewCatalog(seed Seed) (*Catalog, error) {
	validate := validator.New()
	if err := validate.Struct(seed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSeed, err)
	}
	c := &Catalog{
		products: make(map[int]cart.Product, len(seed.Products)),
		stock:    make(map[int]int, len(seed.Stock)),
	}
	for _, p := range seed.Products {
		if err := validate.Var(p.ID, "gt=0"); err != nil {
			return nil, fmt.Errorf("%w: product id %d: %v", ErrInvalidSeed, p.ID, err)
		}
		if _, dup := c.products[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate product id %d", ErrInvalidSeed, p.ID)
		}
		c.products[p.ID] = p
	}
	for _, s := range seed.Stock {
		if _, dup := c.stock[s.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate stock id %d", ErrInvalidSeed, s.ID)
		}
		c.stock[s.ID] = s.Amount
	}
	return c, nil
}

// Product returns the product with the given id.
// Returns ErrNotFound if no product exists with the given ID.
func (c *Catalog) Product(id int) (cart.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.products[id]
	if !ok {
		return cart.Product{}, ErrNotFound
	}
	return p, nil
}

// Products returns all products ordered by id.
func (c *Catalog) Products() []cart.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()

	list := make([]cart.Product, 0, len(c.products))
	for _, p := range c.products {
		list = append(list, p)
	}
	slices.SortFunc(list, func(a, b cart.Product) int { return a.ID - b.ID })
	return list
}

// Stock returns the stock record of a product.
// Returns ErrNotFound if there is none.
func (c *Catalog) Stock(id int) (cart.Stock, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	amount, ok := c.stock[id]
	if !ok {
		return cart.Stock{}, ErrNotFound
	}
	return cart.Stock{ID: id, Amount: amount}, nil
}

// AllStock returns every stock record ordered by id.
func (c *Catalog) AllStock() []cart.Stock {
	c.mu.RLock()
	defer c.mu.RUnlock()

	list := make([]cart.Stock, 0, len(c.stock))
	for id, amount := range c.stock {
		list = append(list, cart.Stock{ID: id, Amount: amount})
	}
	slices.SortFunc(list, func(a, b cart.Stock) int { return a.ID - b.ID })
	return list
}

// SetStock replaces the available amount of an existing stock record.
// Returns ErrNotFound if there is none.
func (c *Catalog) SetStock(id, amount int) (cart.Stock, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.stock[id]; !ok {
		return cart.Stock{}, ErrNotFound
	}
	c.stock[id] = amount
	return cart.Stock{ID: id, Amount: amount}, nil
}
