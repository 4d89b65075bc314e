// Пакет resolver содержит общие правила разрешения ссылок: сущность ищется
// сперва по идентификатору, затем по человекочитаемому имени. Идентификаторы
// сравниваются чувствительно к регистру, имена — нечувствительно. Правила
// едины для всех бэкендов, чтобы их поведение не расходилось.
package resolver

import (
	"strings"

	"github.com/vladislavdragonenkov/comanda/internal/domain"
)

// MatchClient сообщает, указывает ли ref на клиента (id, затем имя).
func MatchClient(c domain.Client, ref string) bool {
	return c.ID == ref || strings.EqualFold(c.Name, ref)
}

// MatchProduct сообщает, указывает ли ref на позицию меню (id, затем название).
func MatchProduct(p domain.Product, ref string) bool {
	return p.ID == ref || strings.EqualFold(p.Name, ref)
}

// MatchOrder сообщает, указывает ли ref на заказ. «Именем» заказа считается
// имя клиента-владельца.
func MatchOrder(o domain.Order, ref string) bool {
	return o.ID == ref || strings.EqualFold(o.ClientName, ref)
}

// FindProduct возвращает первую подходящую позицию каталога.
func FindProduct(products []domain.Product, ref string) (domain.Product, bool) {
	for _, p := range products {
		if MatchProduct(p, ref) {
			return p, true
		}
	}
	return domain.Product{}, false
}
