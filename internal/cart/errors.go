package cart

import "errors"

var ErrStockUnavailable = errors.New("requested quantity is out of stock")
var ErrProductNotFound = errors.New("product not found")
var ErrProductNotInCart = errors.New("product is not in the cart")

var ErrAddFailed = errors.New("failed to add product")
var ErrRemoveFailed = errors.New("failed to remove product")
var ErrUpdateFailed = errors.New("failed to update product amount")

var ErrMissingDependency = errors.New("cart: missing dependency")
