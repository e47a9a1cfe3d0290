package cart

import (
	"context"
	"errors"
	"sync"
)

var errBoom = errors.New("boom")

// fakeStock answers stock lookups from a map. Unknown ids have no stock.
type fakeStock struct {
	mu      sync.Mutex
	amounts map[int]int
	err     error
	panics  bool
	calls   int
}

func (f *fakeStock) Stock(_ context.Context, id int) (Stock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.panics {
		panic("stock service exploded")
	}
	if f.err != nil {
		return Stock{}, f.err
	}
	return Stock{ID: id, Amount: f.amounts[id]}, nil
}

// fakeProducts answers product lookups from a map. Unknown ids are ErrProductNotFound.
type fakeProducts struct {
	mu       sync.Mutex
	products map[int]Product
	err      error
	// results, when set, are returned one per call before falling back to the map.
	results []error
	calls   int
}

func (f *fakeProducts) Product(_ context.Context, id int) (Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.results) > 0 {
		err := f.results[0]
		f.results = f.results[1:]
		if err != nil {
			return Product{}, err
		}
	}
	if f.err != nil {
		return Product{}, f.err
	}
	p, ok := f.products[id]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}

type memKV struct {
	mu     sync.Mutex
	data   map[string]string
	getErr error
	setErr error
	sets   int
}

func newMemKV() *memKV {
	return &memKV{data: make(map[string]string)}
}

func (m *memKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", false, m.getErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.sets++
	m.data[key] = value
	return nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *recordingNotifier) Notify(_ context.Context, n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *recordingNotifier) kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Kind, 0, len(r.notices))
	for _, n := range r.notices {
		out = append(out, n.Kind)
	}
	return out
}

type recordingObserver struct {
	mu      sync.Mutex
	results map[Op][]error
}

func (r *recordingObserver) ObserveOperation(op Op, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.results == nil {
		r.results = make(map[Op][]error)
	}
	r.results[op] = append(r.results[op], err)
}

func sneaker(id int, title string) Product {
	return Product{ID: id, Attributes: map[string]any{"title": title, "price": 179.9, "image": "https://img/" + title}}
}
