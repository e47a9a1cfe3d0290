// Package cart holds the storefront cart state and the rules for changing it.
package cart

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"math"
)

// Product is a catalog entry as returned by the product API.
// Everything except the id is kept verbatim in Attributes.
type Product struct {
	ID         int
	Attributes map[string]any
}

// LineItem is a product in the cart together with the requested amount.
type LineItem struct {
	ProductID  int
	Amount     int
	Attributes map[string]any
}

// Stock is the available quantity of a product.
type Stock struct {
	ID     int `json:"id"`
	Amount int `json:"amount"`
}

// Cart is the ordered list of line items. Product ids are unique.
type Cart []LineItem

func (p Product) MarshalJSON() ([]byte, error) {
	return marshalFlat(p.Attributes, map[string]any{"id": p.ID})
}

func (p *Product) UnmarshalJSON(data []byte) error {
	fields, attrs, err := unmarshalFlat(data, "id")
	if err != nil {
		return err
	}
	p.ID = fields["id"]
	p.Attributes = attrs
	return nil
}

func (li LineItem) MarshalJSON() ([]byte, error) {
	return marshalFlat(li.Attributes, map[string]any{"id": li.ProductID, "amount": li.Amount})
}

func (li *LineItem) UnmarshalJSON(data []byte) error {
	fields, attrs, err := unmarshalFlat(data, "id", "amount")
	if err != nil {
		return err
	}
	li.ProductID = fields["id"]
	li.Amount = fields["amount"]
	li.Attributes = attrs
	return nil
}

// newLineItem copies the product attributes into a line item with amount 1.
func newLineItem(p Product) LineItem {
	return LineItem{ProductID: p.ID, Amount: 1, Attributes: maps.Clone(p.Attributes)}
}

func marshalFlat(attrs map[string]any, fields map[string]any) ([]byte, error) {
	out := make(map[string]any, len(attrs)+len(fields))
	maps.Copy(out, attrs)
	maps.Copy(out, fields)
	return json.Marshal(out)
}

func unmarshalFlat(data []byte, intKeys ...string) (map[string]int, map[string]any, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, err
	}
	fields := make(map[string]int, len(intKeys))
	for _, key := range intKeys {
		v, ok := raw[key]
		if !ok {
			continue
		}
		n, err := decodeInt(v)
		if err != nil {
			return nil, nil, fmt.Errorf("field %q: %w", key, err)
		}
		fields[key] = n
		delete(raw, key)
	}
	var attrs map[string]any
	if len(raw) > 0 {
		attrs = make(map[string]any, len(raw))
		for key, v := range raw {
			var value any
			if err := json.Unmarshal(v, &value); err != nil {
				return nil, nil, fmt.Errorf("field %q: %w", key, err)
			}
			attrs[key] = value
		}
	}
	return fields, attrs, nil
}

// decodeInt accepts any JSON number with an integral value, so 2 and 2.0 are the same amount.
func decodeInt(v json.RawMessage) (int, error) {
	dec := json.NewDecoder(bytes.NewReader(v))
	dec.UseNumber()
	var x any
	if err := dec.Decode(&x); err != nil {
		return 0, err
	}
	if x == nil {
		return 0, nil
	}
	num, ok := x.(json.Number)
	if !ok {
		return 0, fmt.Errorf("not a number: %s", v)
	}
	if i, err := num.Int64(); err == nil {
		return int(i), nil
	}
	f, err := num.Float64()
	if err != nil || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, fmt.Errorf("not an integer: %s", num)
	}
	return int(f), nil
}

// Index returns the position of the product in the cart or -1.
func (c Cart) Index(productID int) int {
	for i, item := range c {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

// Clone returns a copy that can be changed without affecting c.
func (c Cart) Clone() Cart {
	out := make(Cart, len(c))
	for i, item := range c {
		item.Attributes = maps.Clone(item.Attributes)
		out[i] = item
	}
	return out
}

func (c Cart) without(productID int) Cart {
	out := make(Cart, 0, len(c))
	for _, item := range c {
		if item.ProductID != productID {
			out = append(out, item)
		}
	}
	return out
}
