package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jackc/pgx/v5/pgconn"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/comanda/internal/domain"
)

const (
	opTimeout = 5 * time.Second

	productCacheSize = 256
)

// Strategy — PostgreSQL-реализация domain.Strategy. Разрешение ссылок
// выполняется запросами id-или-имя, эквивалентными правилам пакета resolver.
// Каталог неизменяем на время жизни процесса, поэтому разрешённые позиции
// кэшируются в LRU.
type Strategy struct {
	db       *sql.DB
	products *lru.Cache[string, domain.Product]
	logger   *log.Entry
}

// NewStrategy создаёт долговечную стратегию поверх открытого Store.
func NewStrategy(store *Store) (*Strategy, error) {
	cache, err := lru.New[string, domain.Product](productCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create product cache: %w", err)
	}
	return &Strategy{
		db:       store.DB(),
		products: cache,
		logger:   log.WithField("component", "postgres-strategy"),
	}, nil
}

// SeedProducts загружает каталог в таблицу products (upsert по id).
// Порядок загрузки фиксируется колонкой seq при первой вставке.
func (s *Strategy) SeedProducts(ctx context.Context, products []domain.Product) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed tx: %w", err)
	}

	for _, p := range products {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO products (id, name, price_minor)
			VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name, price_minor = EXCLUDED.price_minor
		`, p.ID, p.Name, p.PriceMinor); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("seed product %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	s.logger.WithField("products", len(products)).Info("catalog seeded")
	return nil
}

// Products возвращает каталог в порядке загрузки.
func (s *Strategy) Products() ([]domain.Product, error) {
	ctx, cancel := opCtx()
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, price_minor
		FROM products
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, domain.Transient(fmt.Errorf("list products: %w", err))
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.PriceMinor); err != nil {
			return nil, domain.Transient(fmt.Errorf("scan product: %w", err))
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Transient(fmt.Errorf("iterate products: %w", err))
	}

	return products, nil
}

// ProductByRef ищет позицию по id (с учётом регистра) или названию (без учёта).
func (s *Strategy) ProductByRef(ref string) (domain.Product, error) {
	if p, ok := s.products.Get(ref); ok {
		return p, nil
	}

	ctx, cancel := opCtx()
	defer cancel()

	var p domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, price_minor
		FROM products
		WHERE id = $1 OR LOWER(name) = LOWER($1)
		ORDER BY seq ASC
		LIMIT 1
	`, ref).Scan(&p.ID, &p.Name, &p.PriceMinor)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, domain.Transient(fmt.Errorf("select product: %w", err))
	}

	s.products.Add(ref, p)
	return p, nil
}

// Orders возвращает журнал заказов от старых к новым.
func (s *Strategy) Orders() ([]domain.Order, error) {
	ctx, cancel := opCtx()
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, complete, client_id, client_name, products, total_minor,
		       payment_method, observation, created_at
		FROM orders
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, domain.Transient(fmt.Errorf("list orders: %w", err))
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Transient(fmt.Errorf("iterate orders: %w", err))
	}

	return orders, nil
}

// OrderByRef ищет заказ по id или имени клиента-владельца; при нескольких
// совпадениях по имени возвращается самый старый.
func (s *Strategy) OrderByRef(ref string) (domain.Order, error) {
	ctx, cancel := opCtx()
	defer cancel()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, complete, client_id, client_name, products, total_minor,
		       payment_method, observation, created_at
		FROM orders
		WHERE id = $1 OR LOWER(client_name) = LOWER($1)
		ORDER BY seq ASC
		LIMIT 1
	`, ref)

	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, err
	}
	return order, nil
}

// Cart возвращает текущую корзину клиента.
func (s *Strategy) Cart(clientRef string) (domain.Cart, error) {
	ctx, cancel := opCtx()
	defer cancel()

	client, err := s.selectClient(ctx, s.db, clientRef, false)
	if err != nil {
		return domain.Cart{}, err
	}
	return client.Cart, nil
}

// AddProductToCart добавляет позицию одним UPDATE строки клиента: запись
// документа корзины атомарна на уровне строки.
func (s *Strategy) AddProductToCart(clientRef, productRef string) (domain.Client, error) {
	product, err := s.ProductByRef(productRef)
	if err != nil {
		return domain.Client{}, err
	}

	ctx, cancel := opCtx()
	defer cancel()

	productJSON, err := json.Marshal([]domain.Product{product})
	if err != nil {
		return domain.Client{}, domain.Transient(fmt.Errorf("marshal product: %w", err))
	}

	for attempt := 0; attempt < 2; attempt++ {
		client, err := s.appendToCart(ctx, clientRef, productJSON, product.PriceMinor)
		if err == nil {
			return client, nil
		}
		if !errors.Is(err, domain.ErrClientNotFound) {
			return domain.Client{}, err
		}

		// Клиента ещё нет: создаём с пустой корзиной и повторяем UPDATE.
		// Гонку на создание гасит уникальный индекс по LOWER(name).
		if _, err := s.db.ExecContext(ctx, `
			INSERT INTO clients (id, name)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, uuid.NewString(), clientRef); err != nil {
			if !isUniqueViolation(err) {
				return domain.Client{}, domain.Transient(fmt.Errorf("create client: %w", err))
			}
		}
	}

	return domain.Client{}, domain.Transient(fmt.Errorf("add product: client %q not reachable after create", clientRef))
}

func (s *Strategy) appendToCart(ctx context.Context, clientRef string, productJSON []byte, priceMinor int64) (domain.Client, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE clients
		SET cart = jsonb_set(
		        jsonb_set(cart, '{products}', (cart->'products') || $2::jsonb),
		        '{total_minor}',
		        to_jsonb((cart->>'total_minor')::bigint + $3)
		    ),
		    updated_at = NOW()
		WHERE id = $1 OR LOWER(name) = LOWER($1)
		RETURNING id, name, cart
	`, clientRef, string(productJSON), priceMinor)

	client, err := scanClient(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Client{}, domain.ErrClientNotFound
		}
		return domain.Client{}, err
	}
	return client, nil
}

// RemoveProductFromCart убирает ровно одно вхождение позиции. Строка клиента
// блокируется на время read-modify-write, чтобы операции по одному клиенту
// сериализовались.
func (s *Strategy) RemoveProductFromCart(clientRef, productRef string) (domain.Client, error) {
	ctx, cancel := opCtx()
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Client{}, domain.Transient(fmt.Errorf("begin tx: %w", err))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	client, err := s.selectClient(ctx, tx, clientRef, true)
	if err != nil {
		return domain.Client{}, err
	}

	product, err := s.ProductByRef(productRef)
	if err != nil {
		return domain.Client{}, err
	}

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

	if err := updateCart(ctx, tx, client.ID, client.Cart); err != nil {
		return domain.Client{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Client{}, domain.Transient(fmt.Errorf("commit remove: %w", err))
	}

	return client, nil
}

// Checkout — две записи в заявленном порядке: вставка заказа (с вытеснением
// в той же транзакции), затем очистка корзины. Сбой между ними оставляет
// заказ созданным, а корзину непустой — это документированное окно
// несогласованности, а не скрытая мультидокументная транзакция.
func (s *Strategy) Checkout(clientRef, paymentMethod string, observation *string) (domain.Order, error) {
	ctx, cancel := opCtx()
	defer cancel()

	client, err := s.selectClient(ctx, s.db, clientRef, false)
	if err != nil {
		return domain.Order{}, err
	}
	if len(client.Cart.Products) == 0 {
		return domain.Order{}, domain.ErrCartEmpty
	}

	order := domain.Order{
		ID:            uuid.NewString(),
		Complete:      false,
		ClientID:      client.ID,
		ClientName:    client.Name,
		Products:      client.Cart.Products,
		TotalMinor:    client.Cart.SumMinor(),
		PaymentMethod: paymentMethod,
		CreatedAt:     time.Now().UTC(),
	}
	if observation != nil {
		obs := *observation
		order.Observation = &obs
	}

	if err := s.insertOrderAndEvict(ctx, order); err != nil {
		return domain.Order{}, err
	}

	if err := updateCart(ctx, s.db, client.ID, domain.EmptyCart()); err != nil {
		// Заказ уже в журнале; корзина осталась непустой. Окно описано выше.
		s.logger.WithError(err).WithField("order_id", order.ID).
			Error("cart clear failed after order insert")
		return domain.Order{}, err
	}

	return order, nil
}

func (s *Strategy) insertOrderAndEvict(ctx context.Context, order domain.Order) error {
	productsJSON, err := json.Marshal(order.Products)
	if err != nil {
		return domain.Transient(fmt.Errorf("marshal order products: %w", err))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Transient(fmt.Errorf("begin checkout tx: %w", err))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, complete, client_id, client_name, products, total_minor,
			payment_method, observation, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		order.ID, order.Complete, order.ClientID, order.ClientName,
		string(productsJSON), order.TotalMinor, order.PaymentMethod,
		order.Observation, order.CreatedAt,
	); err != nil {
		return domain.Transient(fmt.Errorf("insert order: %w", err))
	}

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&count); err != nil {
		return domain.Transient(fmt.Errorf("count orders: %w", err))
	}
	if count >= domain.OrderLedgerCap {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM orders
			WHERE seq IN (SELECT seq FROM orders ORDER BY seq ASC LIMIT $1)
		`, domain.OrderEvictBatch)
		if err != nil {
			return domain.Transient(fmt.Errorf("evict oldest orders: %w", err))
		}
		if evicted, err := res.RowsAffected(); err == nil {
			s.logger.WithFields(log.Fields{
				"evicted": evicted,
				"size":    count - int(evicted),
			}).Info("order ledger trimmed")
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.Transient(fmt.Errorf("commit checkout: %w", err))
	}
	return nil
}

// MarkOrderComplete помечает заказ готовым к выдаче.
func (s *Strategy) MarkOrderComplete(ref string) (domain.Order, error) {
	return s.setComplete(ref, true)
}

// MarkOrderIncomplete возвращает заказ в работу.
func (s *Strategy) MarkOrderIncomplete(ref string) (domain.Order, error) {
	return s.setComplete(ref, false)
}

func (s *Strategy) setComplete(ref string, complete bool) (domain.Order, error) {
	ctx, cancel := opCtx()
	defer cancel()

	row := s.db.QueryRowContext(ctx, `
		UPDATE orders
		SET complete = $2
		WHERE seq = (
			SELECT seq FROM orders
			WHERE id = $1 OR LOWER(client_name) = LOWER($1)
			ORDER BY seq ASC
			LIMIT 1
		)
		RETURNING id, complete, client_id, client_name, products, total_minor,
		          payment_method, observation, created_at
	`, ref, complete)

	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, err
	}
	return order, nil
}

// ModifyOrderObservation меняет заметку незавершённого заказа; проверка
// complete входит в сам UPDATE, а не делается по устаревшему чтению.
func (s *Strategy) ModifyOrderObservation(ref string, observation *string) (domain.Order, error) {
	ctx, cancel := opCtx()
	defer cancel()

	row := s.db.QueryRowContext(ctx, `
		UPDATE orders
		SET observation = $2
		WHERE seq = (
			SELECT seq FROM orders
			WHERE id = $1 OR LOWER(client_name) = LOWER($1)
			ORDER BY seq ASC
			LIMIT 1
		)
		AND complete = FALSE
		RETURNING id, complete, client_id, client_name, products, total_minor,
		          payment_method, observation, created_at
	`, ref, observation)

	order, err := scanOrder(row)
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, err
	}

	// UPDATE не сработал: различаем «нет заказа» и «заказ завершён».
	var complete bool
	probeErr := s.db.QueryRowContext(ctx, `
		SELECT complete FROM orders
		WHERE id = $1 OR LOWER(client_name) = LOWER($1)
		ORDER BY seq ASC
		LIMIT 1
	`, ref).Scan(&complete)
	if errors.Is(probeErr, sql.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if probeErr != nil {
		return domain.Order{}, domain.Transient(fmt.Errorf("probe order: %w", probeErr))
	}
	if complete {
		return domain.Order{}, domain.ErrOrderComplete
	}
	return domain.Order{}, domain.ErrOrderNotFound
}

// Ping проверяет доступность базы.
func (s *Strategy) Ping() error {
	ctx, cancel := opCtx()
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		return domain.Transient(fmt.Errorf("ping: %w", err))
	}
	return nil
}

// Close ничего не делает: подключением владеет Store.
func (s *Strategy) Close() error { return nil }

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Strategy) selectClient(ctx context.Context, q querier, clientRef string, forUpdate bool) (domain.Client, error) {
	query := `
		SELECT id, name, cart
		FROM clients
		WHERE id = $1 OR LOWER(name) = LOWER($1)
	`
	if forUpdate {
		query += " FOR UPDATE"
	}

	client, err := scanClient(q.QueryRowContext(ctx, query, clientRef))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Client{}, domain.ErrClientNotFound
		}
		return domain.Client{}, err
	}
	return client, nil
}

func updateCart(ctx context.Context, q querier, clientID string, cart domain.Cart) error {
	cartJSON, err := json.Marshal(cart)
	if err != nil {
		return domain.Transient(fmt.Errorf("marshal cart: %w", err))
	}
	res, err := q.ExecContext(ctx, `
		UPDATE clients
		SET cart = $2, updated_at = NOW()
		WHERE id = $1
	`, clientID, string(cartJSON))
	if err != nil {
		return domain.Transient(fmt.Errorf("update cart: %w", err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Transient(fmt.Errorf("rows affected: %w", err))
	}
	if affected == 0 {
		return domain.ErrClientNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClient(row rowScanner) (domain.Client, error) {
	var (
		client  domain.Client
		cartRaw []byte
	)
	if err := row.Scan(&client.ID, &client.Name, &cartRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Client{}, err
		}
		return domain.Client{}, domain.Transient(fmt.Errorf("scan client: %w", err))
	}
	if err := json.Unmarshal(cartRaw, &client.Cart); err != nil {
		return domain.Client{}, domain.Transient(fmt.Errorf("parse cart document: %w", err))
	}
	if client.Cart.Products == nil {
		client.Cart.Products = []domain.Product{}
	}
	return client, nil
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order       domain.Order
		productsRaw []byte
	)
	if err := row.Scan(
		&order.ID, &order.Complete, &order.ClientID, &order.ClientName,
		&productsRaw, &order.TotalMinor, &order.PaymentMethod,
		&order.Observation, &order.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, err
		}
		return domain.Order{}, domain.Transient(fmt.Errorf("scan order: %w", err))
	}
	if err := json.Unmarshal(productsRaw, &order.Products); err != nil {
		return domain.Order{}, domain.Transient(fmt.Errorf("parse order products: %w", err))
	}
	return order, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), opTimeout)
}

var _ domain.Strategy = (*Strategy)(nil)
