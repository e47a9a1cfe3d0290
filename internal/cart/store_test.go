package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store    *Store
	stock    *fakeStock
	products *fakeProducts
	kv       *memKV
	notifier *recordingNotifier
}

func newFixture(t *testing.T, initial Cart, stock map[int]int, opts Options) *fixture {
	t.Helper()
	f := &fixture{
		stock: &fakeStock{amounts: stock},
		products: &fakeProducts{products: map[int]Product{
			1: sneaker(1, "A"),
			2: sneaker(2, "B"),
			3: sneaker(3, "C"),
		}},
		kv:       newMemKV(),
		notifier: &recordingNotifier{},
	}
	if initial != nil {
		data, err := json.Marshal(initial)
		require.NoError(t, err)
		key := opts.Key
		if key == "" {
			key = DefaultStorageKey
		}
		f.kv.data[key] = string(data)
	}
	s, err := NewStore(context.Background(), Deps{
		Stock:    f.stock,
		Products: f.products,
		Storage:  f.kv,
		Notifier: f.notifier,
	}, opts)
	require.NoError(t, err)
	f.store = s
	return f
}

// persisted decodes what is currently saved under the default key.
func (f *fixture) persisted(t *testing.T) Cart {
	t.Helper()
	raw, ok := f.kv.data[DefaultStorageKey]
	require.True(t, ok, "cart was never saved")
	var c Cart
	require.NoError(t, json.Unmarshal([]byte(raw), &c))
	return c
}

func item(id, amount int, title string) LineItem {
	li := newLineItem(sneaker(id, title))
	li.Amount = amount
	return li
}

func TestNewStore(t *testing.T) {
	t.Run("empty when nothing is saved", func(t *testing.T) {
		f := newFixture(t, nil, nil, Options{})
		assert.Empty(t, f.store.Cart())
		assert.NotNil(t, f.store.Cart())
		assert.Equal(t, 0, f.store.Len())
	})

	t.Run("loads saved cart under a custom key", func(t *testing.T) {
		saved := Cart{item(2, 3, "B"), item(1, 1, "A")}
		f := newFixture(t, saved, nil, Options{Key: "shop:cart"})
		assert.Equal(t, saved, f.store.Cart())
		assert.Equal(t, 2, f.store.Len())
	})

	t.Run("blank saved value starts empty", func(t *testing.T) {
		for _, blank := range []string{"", "  \n"} {
			kv := newMemKV()
			kv.data[DefaultStorageKey] = blank
			store, err := NewStore(context.Background(), Deps{
				Stock: &fakeStock{}, Products: &fakeProducts{}, Storage: kv, Notifier: &recordingNotifier{},
			}, Options{})
			require.NoError(t, err)
			assert.Equal(t, Cart{}, store.Cart())
		}
	})

	t.Run("malformed saved cart is an error", func(t *testing.T) {
		kv := newMemKV()
		kv.data[DefaultStorageKey] = "{not json"
		_, err := NewStore(context.Background(), Deps{
			Stock: &fakeStock{}, Products: &fakeProducts{}, Storage: kv, Notifier: &recordingNotifier{},
		}, Options{})
		assert.Error(t, err)
	})

	t.Run("storage error is returned", func(t *testing.T) {
		kv := newMemKV()
		kv.getErr = errBoom
		_, err := NewStore(context.Background(), Deps{
			Stock: &fakeStock{}, Products: &fakeProducts{}, Storage: kv, Notifier: &recordingNotifier{},
		}, Options{})
		assert.ErrorIs(t, err, errBoom)
	})

	t.Run("missing dependency", func(t *testing.T) {
		_, err := NewStore(context.Background(), Deps{Stock: &fakeStock{}}, Options{})
		assert.ErrorIs(t, err, ErrMissingDependency)
	})
}

func TestStore_AddProduct(t *testing.T) {
	testCases := []struct {
		name        string
		initial     Cart
		stock       map[int]int
		productID   int
		expected    Cart
		expectErr   error
		expectKinds []Kind
	}{
		{
			name:        "new product is appended with amount 1",
			initial:     Cart{item(2, 1, "B")},
			productID:   1,
			expected:    Cart{item(2, 1, "B"), item(1, 1, "A")},
			expectKinds: []Kind{},
		},
		{
			name:        "new product is added without a stock check",
			initial:     nil,
			stock:       map[int]int{1: 0},
			productID:   1,
			expected:    Cart{item(1, 1, "A")},
			expectKinds: []Kind{},
		},
		{
			name:        "existing product is incremented in place",
			initial:     Cart{item(1, 1, "A"), item(2, 4, "B"), item(3, 1, "C")},
			stock:       map[int]int{2: 5},
			productID:   2,
			expected:    Cart{item(1, 1, "A"), item(2, 5, "B"), item(3, 1, "C")},
			expectKinds: []Kind{},
		},
		{
			name:        "no room for one more",
			initial:     Cart{item(1, 3, "A")},
			stock:       map[int]int{1: 3},
			productID:   1,
			expected:    Cart{item(1, 3, "A")},
			expectErr:   ErrStockUnavailable,
			expectKinds: []Kind{KindStockUnavailable},
		},
		{
			name:        "stock exhausted",
			initial:     Cart{item(1, 1, "A")},
			stock:       map[int]int{1: 0},
			productID:   1,
			expected:    Cart{item(1, 1, "A")},
			expectErr:   ErrStockUnavailable,
			expectKinds: []Kind{KindStockUnavailable},
		},
		{
			name:        "unknown product",
			initial:     Cart{item(1, 1, "A")},
			productID:   99,
			expected:    Cart{item(1, 1, "A")},
			expectErr:   ErrProductNotFound,
			expectKinds: []Kind{KindProductNotFound},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			f := newFixture(t, tc.initial, tc.stock, Options{})
			setsBefore := f.kv.sets

			// when
			err := f.store.AddProduct(context.Background(), tc.productID)

			// then
			if tc.expectErr != nil {
				assert.ErrorIs(t, err, tc.expectErr)
				assert.Equal(t, setsBefore, f.kv.sets, "rejected add must not be saved")
			} else {
				require.NoError(t, err)
				assert.Equal(t, tc.expected, f.persisted(t))
			}
			assert.Equal(t, tc.expected, f.store.Cart())
			assert.Equal(t, tc.expectKinds, f.notifier.kinds())
		})
	}
}

func TestStore_AddProduct_ExistenceCheck(t *testing.T) {
	t.Run("missing product aborts by default", func(t *testing.T) {
		f := newFixture(t, nil, nil, Options{})

		err := f.store.AddProduct(context.Background(), 42)

		assert.ErrorIs(t, err, ErrProductNotFound)
		assert.Equal(t, 1, f.products.calls)
		assert.Equal(t, []Kind{KindProductNotFound}, f.notifier.kinds())
		assert.Empty(t, f.store.Cart())
	})

	t.Run("advisory check still fetches details and reports twice", func(t *testing.T) {
		f := newFixture(t, nil, nil, Options{AdvisoryExistenceCheck: true})

		err := f.store.AddProduct(context.Background(), 42)

		assert.ErrorIs(t, err, ErrAddFailed)
		assert.Equal(t, 2, f.products.calls)
		assert.Equal(t, []Kind{KindProductNotFound, KindAddFailed}, f.notifier.kinds())
		assert.Empty(t, f.store.Cart())
	})

	t.Run("advisory check appends when the details fetch succeeds", func(t *testing.T) {
		f := newFixture(t, nil, nil, Options{AdvisoryExistenceCheck: true})
		f.products.results = []error{ErrProductNotFound}

		err := f.store.AddProduct(context.Background(), 1)

		require.NoError(t, err)
		assert.Equal(t, []Kind{KindProductNotFound}, f.notifier.kinds())
		assert.Equal(t, Cart{item(1, 1, "A")}, f.store.Cart())
	})

	t.Run("lookup error is a generic failure", func(t *testing.T) {
		f := newFixture(t, nil, nil, Options{})
		f.products.err = errBoom

		err := f.store.AddProduct(context.Background(), 1)

		assert.ErrorIs(t, err, ErrAddFailed)
		assert.NotErrorIs(t, err, errBoom)
		assert.Equal(t, []Kind{KindAddFailed}, f.notifier.kinds())
	})
}

func TestStore_AddProduct_Failures(t *testing.T) {
	t.Run("stock lookup error", func(t *testing.T) {
		f := newFixture(t, Cart{item(1, 1, "A")}, nil, Options{})
		f.stock.err = errBoom

		err := f.store.AddProduct(context.Background(), 1)

		assert.ErrorIs(t, err, ErrAddFailed)
		assert.Equal(t, Cart{item(1, 1, "A")}, f.store.Cart())
		assert.Equal(t, []Kind{KindAddFailed}, f.notifier.kinds())
	})

	t.Run("save error leaves cart unchanged", func(t *testing.T) {
		f := newFixture(t, Cart{item(1, 1, "A")}, map[int]int{1: 5}, Options{})
		f.kv.setErr = errBoom

		err := f.store.AddProduct(context.Background(), 2)

		assert.ErrorIs(t, err, ErrAddFailed)
		assert.Equal(t, Cart{item(1, 1, "A")}, f.store.Cart())
		assert.Equal(t, Cart{item(1, 1, "A")}, f.persisted(t))
		assert.Equal(t, []Kind{KindAddFailed}, f.notifier.kinds())
	})
}

func TestStore_RemoveProduct(t *testing.T) {
	testCases := []struct {
		name        string
		initial     Cart
		productID   int
		setErr      error
		expected    Cart
		expectErr   error
		expectKinds []Kind
	}{
		{
			name:        "present product is removed",
			initial:     Cart{item(1, 1, "A"), item(2, 2, "B"), item(3, 1, "C")},
			productID:   2,
			expected:    Cart{item(1, 1, "A"), item(3, 1, "C")},
			expectKinds: []Kind{},
		},
		{
			name:        "last product leaves an empty cart",
			initial:     Cart{item(1, 1, "A")},
			productID:   1,
			expected:    Cart{},
			expectKinds: []Kind{},
		},
		{
			name:        "absent product",
			initial:     Cart{item(1, 1, "A")},
			productID:   2,
			expected:    Cart{item(1, 1, "A")},
			expectErr:   ErrProductNotInCart,
			expectKinds: []Kind{KindProductNotInCart},
		},
		{
			name:        "save error",
			initial:     Cart{item(1, 1, "A")},
			productID:   1,
			setErr:      errBoom,
			expected:    Cart{item(1, 1, "A")},
			expectErr:   ErrRemoveFailed,
			expectKinds: []Kind{KindRemoveFailed},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			f := newFixture(t, tc.initial, nil, Options{})
			f.kv.setErr = tc.setErr

			// when
			err := f.store.RemoveProduct(context.Background(), tc.productID)

			// then
			if tc.expectErr != nil {
				assert.ErrorIs(t, err, tc.expectErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tc.expected, f.persisted(t))
			}
			assert.Equal(t, tc.expected, f.store.Cart())
			assert.Equal(t, tc.expectKinds, f.notifier.kinds())
		})
	}
}

func TestStore_RemoveProduct_NotInCartMessage(t *testing.T) {
	f := newFixture(t, nil, nil, Options{})

	_ = f.store.RemoveProduct(context.Background(), 7)

	require.Len(t, f.notifier.notices, 1)
	n := f.notifier.notices[0]
	assert.Equal(t, EnglishMessages.RemoveFailed, n.Message)
	assert.Equal(t, OpRemove, n.Op)
	assert.Equal(t, 7, n.ProductID)
	assert.NotEmpty(t, n.ID)
	assert.False(t, n.CreatedAt.IsZero())
}

func TestStore_UpdateProductAmount(t *testing.T) {
	testCases := []struct {
		name        string
		initial     Cart
		stock       map[int]int
		productID   int
		amount      int
		stockErr    error
		expected    Cart
		expectErr   error
		expectKinds []Kind
	}{
		{
			name:        "amount is replaced",
			initial:     Cart{item(1, 1, "A"), item(2, 1, "B")},
			stock:       map[int]int{2: 5},
			productID:   2,
			amount:      5,
			expected:    Cart{item(1, 1, "A"), item(2, 5, "B")},
			expectKinds: []Kind{},
		},
		{
			name:        "more than available",
			initial:     Cart{item(1, 1, "A")},
			stock:       map[int]int{1: 5},
			productID:   1,
			amount:      6,
			expected:    Cart{item(1, 1, "A")},
			expectErr:   ErrStockUnavailable,
			expectKinds: []Kind{KindStockUnavailable},
		},
		{
			name:        "stock is checked before membership",
			initial:     Cart{item(1, 1, "A")},
			stock:       map[int]int{2: 1},
			productID:   2,
			amount:      3,
			expected:    Cart{item(1, 1, "A")},
			expectErr:   ErrStockUnavailable,
			expectKinds: []Kind{KindStockUnavailable},
		},
		{
			name:        "product not in cart",
			initial:     Cart{item(1, 1, "A")},
			stock:       map[int]int{2: 10},
			productID:   2,
			amount:      3,
			expected:    Cart{item(1, 1, "A")},
			expectErr:   ErrProductNotInCart,
			expectKinds: []Kind{KindProductNotInCart},
		},
		{
			name:        "zero is a silent no-op",
			initial:     Cart{item(1, 2, "A")},
			stock:       map[int]int{1: 10},
			productID:   1,
			amount:      0,
			expected:    Cart{item(1, 2, "A")},
			expectKinds: []Kind{},
		},
		{
			name:        "negative is a silent no-op",
			initial:     Cart{item(1, 2, "A")},
			stock:       map[int]int{1: 10},
			productID:   1,
			amount:      -4,
			expected:    Cart{item(1, 2, "A")},
			expectKinds: []Kind{},
		},
		{
			name:        "stock lookup error",
			initial:     Cart{item(1, 2, "A")},
			productID:   1,
			amount:      1,
			stockErr:    errBoom,
			expected:    Cart{item(1, 2, "A")},
			expectErr:   ErrUpdateFailed,
			expectKinds: []Kind{KindUpdateFailed},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			f := newFixture(t, tc.initial, tc.stock, Options{})
			f.stock.err = tc.stockErr
			setsBefore := f.kv.sets

			// when
			err := f.store.UpdateProductAmount(context.Background(), tc.productID, tc.amount)

			// then
			if tc.expectErr != nil {
				assert.ErrorIs(t, err, tc.expectErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tc.expected, f.store.Cart())
			assert.Equal(t, tc.expected, f.persisted(t))
			assert.Equal(t, tc.expectKinds, f.notifier.kinds())
			if tc.amount < 1 || tc.expectErr != nil {
				assert.Equal(t, setsBefore, f.kv.sets)
			}
		})
	}
}

func TestStore_UpdateProductAmount_NotInCartMessage(t *testing.T) {
	f := newFixture(t, nil, map[int]int{4: 10}, Options{})

	_ = f.store.UpdateProductAmount(context.Background(), 4, 2)

	require.Len(t, f.notifier.notices, 1)
	assert.Equal(t, EnglishMessages.UpdateFailed, f.notifier.notices[0].Message)
}

func TestStore_WorkedExample(t *testing.T) {
	// given
	initial := Cart{{ProductID: 1, Amount: 1, Attributes: map[string]any{"name": "A"}}}
	f := newFixture(t, initial, map[int]int{1: 5}, Options{})

	// when
	require.NoError(t, f.store.AddProduct(context.Background(), 1))

	// then
	afterAdd := Cart{{ProductID: 1, Amount: 2, Attributes: map[string]any{"name": "A"}}}
	assert.Equal(t, afterAdd, f.store.Cart())

	// when
	err := f.store.UpdateProductAmount(context.Background(), 1, 10)

	// then
	assert.ErrorIs(t, err, ErrStockUnavailable)
	assert.Equal(t, afterAdd, f.store.Cart())
	assert.Equal(t, []Kind{KindStockUnavailable}, f.notifier.kinds())
	assert.Equal(t, EnglishMessages.StockUnavailable, f.notifier.notices[0].Message)
}

func TestStore_RoundTrip(t *testing.T) {
	// given
	f := newFixture(t, nil, map[int]int{1: 10, 2: 10, 3: 10}, Options{})
	ctx := context.Background()
	require.NoError(t, f.store.AddProduct(ctx, 3))
	require.NoError(t, f.store.AddProduct(ctx, 1))
	require.NoError(t, f.store.AddProduct(ctx, 2))
	require.NoError(t, f.store.UpdateProductAmount(ctx, 1, 4))
	require.NoError(t, f.store.RemoveProduct(ctx, 2))

	// when
	fresh, err := NewStore(ctx, Deps{
		Stock: f.stock, Products: f.products, Storage: f.kv, Notifier: f.notifier,
	}, Options{})

	// then
	require.NoError(t, err)
	assert.Equal(t, Cart{item(3, 1, "C"), item(1, 4, "A")}, fresh.Cart())
	assert.Equal(t, f.store.Cart(), fresh.Cart())
}

func TestStore_CartReturnsCopy(t *testing.T) {
	f := newFixture(t, Cart{item(1, 1, "A")}, nil, Options{})

	c := f.store.Cart()
	c[0].Amount = 100
	c[0].Attributes["title"] = "changed"

	assert.Equal(t, Cart{item(1, 1, "A")}, f.store.Cart())
}

func TestStore_ConcurrentAddsAreSerialized(t *testing.T) {
	// given
	f := newFixture(t, Cart{item(1, 1, "A")}, map[int]int{1: 1000}, Options{})
	const workers = 50

	// when
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.store.AddProduct(context.Background(), 1)
		}()
	}
	wg.Wait()

	// then
	assert.Equal(t, 1+workers, f.store.Cart()[0].Amount)
	assert.Equal(t, 1+workers, f.persisted(t)[0].Amount)
	assert.Empty(t, f.notifier.kinds())
}

func TestStore_ConcurrentAddsRespectStock(t *testing.T) {
	f := newFixture(t, Cart{item(1, 1, "A")}, map[int]int{1: 10}, Options{})

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.store.AddProduct(context.Background(), 1)
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, f.store.Cart()[0].Amount)
	assert.Len(t, f.notifier.kinds(), 11)
}

func TestStore_PanicBecomesGenericFailure(t *testing.T) {
	f := newFixture(t, Cart{item(1, 1, "A")}, nil, Options{})
	f.stock.panics = true

	var err error
	require.NotPanics(t, func() {
		err = f.store.UpdateProductAmount(context.Background(), 1, 2)
	})

	assert.ErrorIs(t, err, ErrUpdateFailed)
	assert.Equal(t, []Kind{KindUpdateFailed}, f.notifier.kinds())
	assert.Equal(t, Cart{item(1, 1, "A")}, f.store.Cart())
}

func TestStore_ObserverAndMessages(t *testing.T) {
	// given
	observer := &recordingObserver{}
	messages := Messages{
		StockUnavailable: "Quantidade solicitada fora de estoque",
		ProductNotFound:  "Produto não existe",
		AddFailed:        "Erro na adição do produto",
		RemoveFailed:     "Erro na remoção do produto",
		UpdateFailed:     "Erro na alteração de quantidade do produto",
	}
	f := newFixture(t, nil, map[int]int{1: 1}, Options{Observer: observer, Messages: &messages})
	ctx := context.Background()

	// when
	_ = f.store.AddProduct(ctx, 1)
	_ = f.store.AddProduct(ctx, 1)
	_ = f.store.RemoveProduct(ctx, 2)

	// then
	assert.Equal(t, []error{nil, ErrStockUnavailable}, observer.results[OpAdd])
	assert.Equal(t, []error{ErrProductNotInCart}, observer.results[OpRemove])
	require.Len(t, f.notifier.notices, 2)
	assert.Equal(t, "Quantidade solicitada fora de estoque", f.notifier.notices[0].Message)
	assert.Equal(t, "Erro na remoção do produto", f.notifier.notices[1].Message)
}

func TestLineItem_JSON(t *testing.T) {
	li := item(1, 2, "A")

	data, err := json.Marshal(li)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1,"amount":2,"title":"A","price":179.9,"image":"https://img/A"}`, string(data))

	var decoded LineItem
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, li, decoded)
}

func TestCart_UnmarshalIntegralFloats(t *testing.T) {
	testCases := []struct {
		name     string
		raw      string
		expected Cart
	}{
		{name: "plain integers", raw: `[{"id":1,"amount":2}]`, expected: Cart{{ProductID: 1, Amount: 2}}},
		{name: "trailing zero fraction", raw: `[{"id":1.0,"amount":2.0}]`, expected: Cart{{ProductID: 1, Amount: 2}}},
		{name: "exponent", raw: `[{"id":3e0,"amount":1E1}]`, expected: Cart{{ProductID: 3, Amount: 10}}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var c Cart
			require.NoError(t, json.Unmarshal([]byte(tc.raw), &c))
			assert.Equal(t, tc.expected, c)
		})
	}

	t.Run("saved cart with float amounts loads", func(t *testing.T) {
		kv := newMemKV()
		kv.data[DefaultStorageKey] = `[{"id":1.0,"amount":2.0,"title":"A"}]`
		store, err := NewStore(context.Background(), Deps{
			Stock: &fakeStock{}, Products: &fakeProducts{}, Storage: kv, Notifier: &recordingNotifier{},
		}, Options{})
		require.NoError(t, err)
		assert.Equal(t, Cart{{ProductID: 1, Amount: 2, Attributes: map[string]any{"title": "A"}}}, store.Cart())
	})
}

func TestCart_UnmarshalErrors(t *testing.T) {
	for _, raw := range []string{`[{"id":"x"}]`, `[{"id":"1"}]`, `[{"id":1,"amount":1.5}]`, `[{"id":1e300}]`, `{"id":1}`} {
		t.Run(fmt.Sprintf("%q", raw), func(t *testing.T) {
			var c Cart
			assert.Error(t, json.Unmarshal([]byte(raw), &c))
		})
	}
}
