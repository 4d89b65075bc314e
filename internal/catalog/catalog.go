// Пакет catalog загружает каталог позиций меню. Каталог читается один раз
// на старте процесса и в дальнейшем неизменяем; перезагрузка из источника —
// административная операция вне ядра.
package catalog

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/vladislavdragonenkov/comanda/internal/domain"
)

//go:embed seed/products.json
var seedFS embed.FS

const seedPath = "seed/products.json"

// Load читает каталог из файла path. Пустой path означает встроенный seed.
func Load(path string) ([]domain.Product, error) {
	var (
		raw []byte
		err error
	)
	if path == "" {
		raw, err = seedFS.ReadFile(seedPath)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return parse(raw)
}

func parse(raw []byte) ([]domain.Product, error) {
	var products []domain.Product
	if err := json.Unmarshal(raw, &products); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(products) == 0 {
		return nil, fmt.Errorf("catalog is empty")
	}
	for i, p := range products {
		if p.ID == "" || p.Name == "" {
			return nil, fmt.Errorf("catalog entry %d: id and name are required", i)
		}
		if p.PriceMinor < 0 {
			return nil, fmt.Errorf("catalog entry %q: price must be non-negative", p.ID)
		}
	}
	return products, nil
}
