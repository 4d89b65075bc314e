// Пакет memory реализует эфемерный бэкенд стратегии: все записи живут в
// памяти процесса, опционально со снапшотом в плоский JSON-файл.
package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/comanda/internal/domain"
	"github.com/vladislavdragonenkov/comanda/internal/resolver"
)

// Store — in-memory реализация domain.Strategy. Один RWMutex сериализует
// записи целиком: этого достаточно, чтобы конкурентные AddProductToCart и
// Checkout по одному клиенту не теряли обновления.
type Store struct {
	mu       sync.RWMutex
	products []domain.Product
	clients  []domain.Client
	orders   []domain.Order

	snapshotPath string
	logger       *log.Entry
}

// NewStore создаёт пустой стор с предзагруженным каталогом.
func NewStore(products []domain.Product) *Store {
	catalog := make([]domain.Product, len(products))
	copy(catalog, products)
	return &Store{
		products: catalog,
		clients:  []domain.Client{},
		orders:   []domain.Order{},
		logger:   log.WithField("component", "memory-store"),
	}
}

// NewStoreWithSnapshot создаёт стор и, если файл path существует, загружает
// из него клиентов и заказы. Каталог всегда берётся из products, не из снапшота.
func NewStoreWithSnapshot(products []domain.Product, path string) (*Store, error) {
	s := NewStore(products)
	s.snapshotPath = path
	if err := s.loadSnapshot(); err != nil {
		return nil, err
	}
	return s, nil
}

// Products возвращает снапшот каталога в порядке загрузки.
func (s *Store) Products() ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Product, len(s.products))
	copy(out, s.products)
	return out, nil
}

// ProductByRef ищет позицию каталога по id или названию.
func (s *Store) ProductByRef(ref string) (domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, ok := resolver.FindProduct(s.products, ref)
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return product, nil
}

// Orders возвращает копию журнала заказов от старых к новым.
func (s *Store) Orders() ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Order, 0, len(s.orders))
	for _, order := range s.orders {
		out = append(out, order.Clone())
	}
	return out, nil
}

// OrderByRef ищет заказ по id или имени клиента-владельца.
func (s *Store) OrderByRef(ref string) (domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.findOrder(ref)
	if idx < 0 {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return s.orders[idx].Clone(), nil
}

// Cart возвращает текущую корзину клиента.
func (s *Store) Cart(clientRef string) (domain.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.findClient(clientRef)
	if idx < 0 {
		return domain.Cart{}, domain.ErrClientNotFound
	}
	return s.clients[idx].Cart.Clone(), nil
}

// AddProductToCart добавляет позицию в корзину, создавая клиента при
// первом обращении. Корзина — мультисет, повторное добавление кладёт позицию ещё раз.
func (s *Store) AddProductToCart(clientRef, productRef string) (domain.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := resolver.FindProduct(s.products, productRef)
	if !ok {
		return domain.Client{}, domain.ErrProductNotFound
	}

	idx := s.findClient(clientRef)
	if idx < 0 {
		s.clients = append(s.clients, domain.Client{
			ID:   uuid.NewString(),
			Name: clientRef,
			Cart: domain.EmptyCart(),
		})
		idx = len(s.clients) - 1
	}

	client := &s.clients[idx]
	client.Cart.Products = append(client.Cart.Products, product)
	client.Cart.TotalMinor += product.PriceMinor

	return client.Clone(), nil
}

// RemoveProductFromCart убирает ровно одно вхождение позиции (первое по id).
func (s *Store) RemoveProductFromCart(clientRef, productRef string) (domain.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.findClient(clientRef)
	if idx < 0 {
		return domain.Client{}, domain.ErrClientNotFound
	}

	product, ok := resolver.FindProduct(s.products, productRef)
	if !ok {
		return domain.Client{}, domain.ErrProductNotFound
	}

	client := &s.clients[idx]
	pos := -1
	for i, p := range client.Cart.Products {
		if p.ID == product.ID {
			pos = i
			break
		}
	}
	if pos < 0 {
		return domain.Client{}, domain.ErrProductNotInCart
	}

	removed := client.Cart.Products[pos]
	client.Cart.Products = append(client.Cart.Products[:pos], client.Cart.Products[pos+1:]...)
	client.Cart.TotalMinor -= removed.PriceMinor

	return client.Clone(), nil
}

// Checkout превращает непустую корзину в заказ и очищает корзину. Всё
// происходит под одним локом, поэтому читатели видят переход атомарно.
func (s *Store) Checkout(clientRef, paymentMethod string, observation *string) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.findClient(clientRef)
	if idx < 0 {
		return domain.Order{}, domain.ErrClientNotFound
	}

	client := &s.clients[idx]
	if len(client.Cart.Products) == 0 {
		return domain.Order{}, domain.ErrCartEmpty
	}

	order := newOrder(*client, paymentMethod, observation)

	s.orders = append(s.orders, order)
	s.evictOldest()
	client.Cart = domain.EmptyCart()

	return order.Clone(), nil
}

// MarkOrderComplete помечает заказ готовым к выдаче.
func (s *Store) MarkOrderComplete(ref string) (domain.Order, error) {
	return s.setComplete(ref, true)
}

// MarkOrderIncomplete возвращает заказ в работу.
func (s *Store) MarkOrderIncomplete(ref string) (domain.Order, error) {
	return s.setComplete(ref, false)
}

// ModifyOrderObservation меняет заметку незавершённого заказа; nil очищает её.
func (s *Store) ModifyOrderObservation(ref string, observation *string) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.findOrder(ref)
	if idx < 0 {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	order := &s.orders[idx]
	// Статус проверяется в момент записи, под тем же локом.
	if order.Complete {
		return domain.Order{}, domain.ErrOrderComplete
	}

	if observation == nil {
		order.Observation = nil
	} else {
		obs := *observation
		order.Observation = &obs
	}
	return order.Clone(), nil
}

// Ping у эфемерного бэкенда всегда успешен.
func (s *Store) Ping() error { return nil }

// Close сохраняет снапшот, если он настроен.
func (s *Store) Close() error {
	if s.snapshotPath == "" {
		return nil
	}
	return s.SaveSnapshot()
}

// newOrder строит снапшот корзины клиента. Сумма пересчитывается из позиций,
// накопленному TotalMinor корзины не доверяем.
func newOrder(client domain.Client, paymentMethod string, observation *string) domain.Order {
	cart := client.Cart.Clone()
	order := domain.Order{
		ID:            uuid.NewString(),
		Complete:      false,
		ClientID:      client.ID,
		ClientName:    client.Name,
		Products:      cart.Products,
		TotalMinor:    cart.SumMinor(),
		PaymentMethod: paymentMethod,
		CreatedAt:     time.Now().UTC(),
	}
	if observation != nil {
		obs := *observation
		order.Observation = &obs
	}
	return order
}

func (s *Store) setComplete(ref string, complete bool) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.findOrder(ref)
	if idx < 0 {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	s.orders[idx].Complete = complete
	return s.orders[idx].Clone(), nil
}

// evictOldest применяет политику удержания: при достижении порога журнал
// теряет пачку самых старых заказов независимо от их статуса.
func (s *Store) evictOldest() {
	if len(s.orders) < domain.OrderLedgerCap {
		return
	}
	evicted := s.orders[:domain.OrderEvictBatch]
	s.orders = append([]domain.Order{}, s.orders[domain.OrderEvictBatch:]...)
	s.logger.WithFields(log.Fields{
		"evicted": len(evicted),
		"size":    len(s.orders),
	}).Info("order ledger trimmed")
}

func (s *Store) findClient(ref string) int {
	for i, c := range s.clients {
		if resolver.MatchClient(c, ref) {
			return i
		}
	}
	return -1
}

func (s *Store) findOrder(ref string) int {
	for i, o := range s.orders {
		if resolver.MatchOrder(o, ref) {
			return i
		}
	}
	return -1
}

var _ domain.Strategy = (*Store)(nil)
