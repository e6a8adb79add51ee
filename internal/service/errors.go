package service

import (
	"errors"

	"github.com/fjod/shoes_cart/internal/notify"
)

// Failures surfaced to the shopper. Every failing operation keeps the previous cart.
var (
	ErrOutOfStock     = errors.New("requested quantity is out of stock")
	ErrAdditionFailed = errors.New("failed to add product")
	ErrRemovalFailed  = errors.New("failed to remove product")
	ErrUpdateFailed   = errors.New("failed to update product amount")
)

var notifications = map[error]struct {
	kind    notify.Kind
	message string
}{
	ErrOutOfStock:     {notify.KindOutOfStock, "Quantidade solicitada fora de estoque"},
	ErrAdditionFailed: {notify.KindAdditionFailed, "Erro na adição do produto"},
	ErrRemovalFailed:  {notify.KindRemovalFailed, "Erro na remoção do produto"},
	ErrUpdateFailed:   {notify.KindUpdateFailed, "Erro na alteração de quantidade do produto"},
}

func kindOf(err error) notify.Kind {
	return notifications[err].kind
}

func messageOf(err error) string {
	return notifications[err].message
}
