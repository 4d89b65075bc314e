package domain

// Strategy — контракт хранилища, единственная точка полиморфизма ядра.
// Обе реализации (in-memory и postgres) обязаны соблюдать одинаковые
// пред/постусловия и одинаковую таксономию ошибок; вызывающий код не должен
// замечать подмену бэкенда ничем, кроме латентности и долговечности.
//
// Каждый вызов — самостоятельная транзакция; операции над разными клиентами
// независимы, операции над одним клиентом сериализуются реализацией.
type Strategy interface {
	// Products возвращает снапшот каталога в порядке загрузки.
	Products() ([]Product, error)
	// ProductByRef ищет позицию по id или названию. Возвращает ErrProductNotFound.
	ProductByRef(ref string) (Product, error)

	// Orders возвращает журнал заказов от старых к новым.
	Orders() ([]Order, error)
	// OrderByRef ищет заказ по id или имени клиента-владельца. Возвращает ErrOrderNotFound.
	OrderByRef(ref string) (Order, error)

	// Cart возвращает текущую корзину клиента (возможно пустую).
	// Возвращает ErrClientNotFound, если записи о клиенте нет.
	Cart(clientRef string) (Cart, error)
	// AddProductToCart добавляет позицию в корзину, создавая клиента при
	// необходимости. Корзина — мультисет: повторное добавление кладёт позицию ещё раз.
	AddProductToCart(clientRef, productRef string) (Client, error)
	// RemoveProductFromCart убирает ровно одно вхождение позиции (первое по id).
	// Возвращает ErrClientNotFound, ErrProductNotFound или ErrProductNotInCart.
	RemoveProductFromCart(clientRef, productRef string) (Client, error)

	// Checkout атомарно превращает непустую корзину в заказ и очищает корзину.
	// Сумма заказа пересчитывается из позиций, а не берётся из корзины.
	// Возвращает ErrClientNotFound или ErrCartEmpty; при ошибке корзина не меняется.
	Checkout(clientRef, paymentMethod string, observation *string) (Order, error)

	// MarkOrderComplete и MarkOrderIncomplete переключают флаг готовности.
	// Терминального состояния нет, переходы повторяемы.
	MarkOrderComplete(ref string) (Order, error)
	MarkOrderIncomplete(ref string) (Order, error)
	// ModifyOrderObservation меняет заметку незавершённого заказа; nil очищает её.
	// Статус complete проверяется в момент записи. Возвращает ErrOrderNotFound
	// или ErrOrderComplete.
	ModifyOrderObservation(ref string, observation *string) (Order, error)

	// Ping проверяет доступность хранилища.
	Ping() error
	// Close освобождает ресурсы бэкенда.
	Close() error
}
