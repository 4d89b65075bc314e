package domain

// Product — позиция меню. Каталог курируется снаружи и в рамках ядра неизменяем.
type Product struct {
	// ID — короткий мнемонический код позиции, например "ESPFIL".
	ID string `json:"id"`
	// Name — полное человекочитаемое название, например "Espresso Filtrado".
	Name string `json:"name"`
	// PriceMinor — цена в минимальных денежных единицах (сентаво).
	PriceMinor int64 `json:"price_minor"`
}

// Cart — корзина клиента: изменяемый мультисет выбранных позиций.
type Cart struct {
	Products []Product `json:"products"`
	// TotalMinor всегда равен сумме цен позиций; пересчитывается при каждой мутации.
	TotalMinor int64 `json:"total_minor"`
	// Observation — опциональная заметка для кухни.
	Observation *string `json:"observation,omitempty"`
}

// EmptyCart возвращает пустую корзину.
func EmptyCart() Cart {
	return Cart{Products: []Product{}, TotalMinor: 0}
}

// SumMinor пересчитывает сумму по позициям. Используется на checkout,
// чтобы не доверять накопленному TotalMinor.
func (c Cart) SumMinor() int64 {
	var total int64
	for _, p := range c.Products {
		total += p.PriceMinor
	}
	return total
}

// Clone возвращает глубокую копию корзины: снапшоты заказов не должны
// зависеть от последующих мутаций корзины.
func (c Cart) Clone() Cart {
	out := Cart{
		Products:   make([]Product, len(c.Products)),
		TotalMinor: c.TotalMinor,
	}
	copy(out.Products, c.Products)
	if c.Observation != nil {
		obs := *c.Observation
		out.Observation = &obs
	}
	return out
}

// Client — клиент с единственной корзиной. Создаётся неявно при первой
// мутации корзины; отдельной регистрации нет.
type Client struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Cart Cart   `json:"cart"`
}

// Clone возвращает копию клиента вместе с корзиной.
func (c Client) Clone() Client {
	out := c
	out.Cart = c.Cart.Clone()
	return out
}
