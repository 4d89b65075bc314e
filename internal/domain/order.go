package domain

import "time"

const (
	// OrderLedgerCap — порог размера журнала заказов, при достижении которого
	// срабатывает вытеснение.
	OrderLedgerCap = 150
	// OrderEvictBatch — сколько самых старых заказов удаляется за одно вытеснение,
	// независимо от их статуса complete.
	OrderEvictBatch = 5
)

// Order — неизменяемый снапшот корзины на момент checkout. Изменяемыми
// остаются только флаг Complete и Observation.
type Order struct {
	ID string `json:"id"`
	// Complete выставляется кухней; допускаются переходы в обе стороны.
	Complete bool `json:"complete"`
	// ClientID и ClientName — ссылка на владельца по значению, не живой указатель.
	ClientID   string `json:"client_id"`
	ClientName string `json:"client_name"`
	// Products — копия позиций корзины на момент checkout.
	Products []Product `json:"products"`
	// TotalMinor пересчитан из позиций на момент checkout.
	TotalMinor int64 `json:"total_minor"`
	// PaymentMethod — метка способа оплаты, ядро её только хранит.
	PaymentMethod string    `json:"payment_method"`
	Observation   *string   `json:"observation,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Clone возвращает копию заказа с собственным срезом позиций.
func (o Order) Clone() Order {
	out := o
	out.Products = make([]Product, len(o.Products))
	copy(out.Products, o.Products)
	if o.Observation != nil {
		obs := *o.Observation
		out.Observation = &obs
	}
	return out
}
