package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/shoes_cart/internal/domain"
	"github.com/fjod/shoes_cart/internal/notify"
	"github.com/fjod/shoes_cart/internal/storage"
	"github.com/sirupsen/logrus"
)

const DefaultStorageKey = "@RocketShoes:cart"

// StockService and ProductCatalog are defined here, by the consumer.
type StockService interface {
	GetStock(ctx context.Context, productID int64) (domain.Stock, error)
}

type ProductCatalog interface {
	GetProduct(ctx context.Context, productID int64) (domain.Product, error)
}

type Options struct {
	Stock    StockService
	Catalog  ProductCatalog
	Storage  storage.Storage
	Notifier notify.Notifier
	// Key under which the cart snapshot is stored. Defaults to DefaultStorageKey.
	Key string
	Log *logrus.Entry
}

type UpdateProductAmount struct {
	ProductID int64 `json:"product_id"`
	Amount    int   `json:"amount"`
}

// CartStore owns the shopper's cart. Mutations are serialized, validated against
// the stock service, written through to storage and only then made visible.
type CartStore struct {
	stock    StockService
	catalog  ProductCatalog
	storage  storage.Storage
	notifier notify.Notifier
	key      string
	log      *logrus.Entry

	opMu sync.Mutex // held for the whole of a mutating operation

	mu   sync.RWMutex
	cart domain.Cart

	subMu       sync.Mutex
	nextSubID   int
	subscribers []subscriber
}

type subscriber struct {
	id int
	fn func(domain.Cart)
}

func NewCartStore(ctx context.Context, opts Options) (*CartStore, error) {
	if opts.Stock == nil || opts.Catalog == nil || opts.Storage == nil {
		return nil, errors.New("stock, catalog and storage are required")
	}
	if opts.Key == "" {
		opts.Key = DefaultStorageKey
	}
	if opts.Log == nil {
		opts.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.NewLog(opts.Log)
	}

	s := &CartStore{
		stock:    opts.Stock,
		catalog:  opts.Catalog,
		storage:  opts.Storage,
		notifier: opts.Notifier,
		key:      opts.Key,
		log:      opts.Log,
	}

	cart, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	s.cart = cart
	s.log.WithField("items", len(cart)).Info("cart loaded")
	return s, nil
}

func (s *CartStore) load(ctx context.Context) (domain.Cart, error) {
	data, err := s.storage.Get(ctx, s.key)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.Cart{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cart snapshot: %w", err)
	}

	var cart domain.Cart
	if errUnmarshal := json.Unmarshal(data, &cart); errUnmarshal != nil || !isValid(cart) {
		s.log.WithError(errUnmarshal).Warn("discarding malformed cart snapshot")
		if errDelete := s.storage.Delete(ctx, s.key); errDelete != nil {
			s.log.WithError(errDelete).Warn("failed to delete malformed cart snapshot")
		}
		return domain.Cart{}, nil
	}
	return cart, nil
}

// isValid rejects snapshots that would break the one-entry-per-id invariant.
func isValid(cart domain.Cart) bool {
	seen := make(map[int64]struct{}, len(cart))
	for _, p := range cart {
		if p.Amount < 1 {
			return false
		}
		if _, dup := seen[p.ID]; dup {
			return false
		}
		seen[p.ID] = struct{}{}
	}
	return true
}

// Cart returns a copy of the current cart.
func (s *CartStore) Cart() domain.Cart {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.Clone()
}

// Subscribe registers fn to receive every new cart after a successful mutation.
// Subscribers run synchronously, in registration order, on the mutating goroutine.
func (s *CartStore) Subscribe(fn func(domain.Cart)) (cancel func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.subscribers = append(s.subscribers, subscriber{id: id, fn: fn})

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		for i, sub := range s.subscribers {
			if sub.id == id {
				s.subscribers = append(s.subscribers[:i:i], s.subscribers[i+1:]...)
				return
			}
		}
	}
}

func (s *CartStore) AddProduct(ctx context.Context, productID int64) (err error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	defer s.recoverAs(ErrAdditionFailed, &err)

	current := s.Cart()
	existing, found := current.Find(productID)

	stock, err := s.stock.GetStock(ctx, productID)
	if err != nil {
		return s.fail(ctx, ErrAdditionFailed, err)
	}
	if stock.Amount == 0 {
		return s.fail(ctx, ErrOutOfStock, fmt.Errorf("product %d has no stock", productID))
	}
	if stock.Amount-existing.Amount <= 0 {
		return s.fail(ctx, ErrOutOfStock, fmt.Errorf("product %d: %d in cart, %d in stock", productID, existing.Amount, stock.Amount))
	}

	var next domain.Cart
	if found {
		next = current.WithAmount(productID, existing.Amount+1)
	} else {
		product, errProduct := s.catalog.GetProduct(ctx, productID)
		if errProduct != nil {
			return s.fail(ctx, ErrAdditionFailed, errProduct)
		}
		product.ID = productID
		product.Amount = 1
		next = current.Append(product)
	}

	if errCommit := s.commit(ctx, next); errCommit != nil {
		return s.fail(ctx, ErrAdditionFailed, errCommit)
	}
	return nil
}

func (s *CartStore) RemoveProduct(ctx context.Context, productID int64) (err error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	defer s.recoverAs(ErrRemovalFailed, &err)

	current := s.Cart()
	if _, found := current.Find(productID); !found {
		return s.fail(ctx, ErrRemovalFailed, fmt.Errorf("product %d is not in the cart", productID))
	}

	if errCommit := s.commit(ctx, current.Without(productID)); errCommit != nil {
		return s.fail(ctx, ErrRemovalFailed, errCommit)
	}
	return nil
}

func (s *CartStore) UpdateProductAmount(ctx context.Context, req UpdateProductAmount) (err error) {
	if req.Amount < 1 {
		return nil
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()
	defer s.recoverAs(ErrUpdateFailed, &err)

	current := s.Cart()
	existing, found := current.Find(req.ProductID)

	if req.Amount > existing.Amount {
		stock, errStock := s.stock.GetStock(ctx, req.ProductID)
		if errStock != nil {
			return s.fail(ctx, ErrUpdateFailed, errStock)
		}
		if stock.Amount-existing.Amount <= 0 {
			return s.fail(ctx, ErrOutOfStock, fmt.Errorf("product %d: %d in cart, %d in stock", req.ProductID, existing.Amount, stock.Amount))
		}
	}

	if !found {
		return nil
	}

	if errCommit := s.commit(ctx, current.WithAmount(req.ProductID, req.Amount)); errCommit != nil {
		return s.fail(ctx, ErrUpdateFailed, errCommit)
	}
	return nil
}

// commit writes next through to storage, then swaps it in and publishes it.
// Nothing becomes visible when the write fails.
func (s *CartStore) commit(ctx context.Context, next domain.Cart) error {
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}
	if err := s.storage.Set(ctx, s.key, data); err != nil {
		return fmt.Errorf("persist cart failed: %w", err)
	}

	s.mu.Lock()
	s.cart = next
	s.mu.Unlock()

	s.publish(next)
	return nil
}

func (s *CartStore) publish(cart domain.Cart) {
	s.subMu.Lock()
	subs := make([]subscriber, len(s.subscribers))
	copy(subs, s.subscribers)
	s.subMu.Unlock()

	for _, sub := range subs {
		s.callSubscriber(sub, cart.Clone())
	}
}

// callSubscriber isolates the store from a misbehaving subscriber: the
// mutation is already committed at this point.
func (s *CartStore) callSubscriber(sub subscriber, cart domain.Cart) {
	defer func() {
		if r := recover(); r != nil {
			s.log.WithField("subscriber", sub.id).Errorf("subscriber panicked: %v", r)
		}
	}()
	sub.fn(cart)
}

func (s *CartStore) fail(ctx context.Context, kind error, cause error) error {
	s.log.WithError(cause).WithField("kind", kindOf(kind)).Info("cart operation failed")
	s.notifier.Notify(ctx, notify.Notification{
		Kind:    kindOf(kind),
		Message: messageOf(kind),
		At:      time.Now(),
	})
	return fmt.Errorf("%w: %w", kind, cause)
}

func (s *CartStore) recoverAs(kind error, err *error) {
	if r := recover(); r != nil {
		*err = s.fail(context.Background(), kind, fmt.Errorf("panic: %v", r))
	}
}
