package memory_test

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/vladislavdragonenkov/comanda/internal/domain"
	"github.com/vladislavdragonenkov/comanda/internal/storage/memory"
)

func testCatalog() []domain.Product {
	return []domain.Product{
		{ID: "ESPFIL", Name: "Espresso Filtrado", PriceMinor: 495},
		{ID: "ESPTRA", Name: "Espresso Tradicional", PriceMinor: 350},
		{ID: "PAOQUE", Name: "Pão de Queijo", PriceMinor: 420},
	}
}

func TestStore_ProductByRef(t *testing.T) {
	store := memory.NewStore(testCatalog())

	byID, err := store.ProductByRef("ESPFIL")
	if err != nil {
		t.Fatalf("lookup by id failed: %v", err)
	}
	byName, err := store.ProductByRef("espresso filtrado")
	if err != nil {
		t.Fatalf("lookup by name failed: %v", err)
	}
	if byID.ID != byName.ID {
		t.Fatalf("id and name lookups must agree: %s vs %s", byID.ID, byName.ID)
	}

	if _, err := store.ProductByRef("espfil"); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("id lookup must be case-sensitive, got %v", err)
	}
	if _, err := store.ProductByRef("CAFE"); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestStore_AddProductCreatesClient(t *testing.T) {
	store := memory.NewStore(testCatalog())

	client, err := store.AddProductToCart("Ana", "ESPFIL")
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if client.Name != "Ana" {
		t.Fatalf("expected client Ana, got %s", client.Name)
	}
	if client.ID == "" {
		t.Fatal("implicitly created client must get an id")
	}
	if len(client.Cart.Products) != 1 || client.Cart.TotalMinor != 495 {
		t.Fatalf("unexpected cart: %+v", client.Cart)
	}
}

func TestStore_AddProductIsMultiset(t *testing.T) {
	store := memory.NewStore(testCatalog())

	if _, err := store.AddProductToCart("Ana", "ESPFIL"); err != nil {
		t.Fatalf("first add failed: %v", err)
	}
	client, err := store.AddProductToCart("ana", "ESPFIL")
	if err != nil {
		t.Fatalf("second add failed: %v", err)
	}
	if len(client.Cart.Products) != 2 || client.Cart.TotalMinor != 990 {
		t.Fatalf("same product must be addable twice: %+v", client.Cart)
	}

	// "ana" разрешилось в того же клиента, нового создавать нельзя.
	cart, err := store.Cart("Ana")
	if err != nil {
		t.Fatalf("get cart failed: %v", err)
	}
	if len(cart.Products) != 2 {
		t.Fatalf("expected a single shared cart, got %+v", cart)
	}
}

func TestStore_AddProductUnknownProduct(t *testing.T) {
	store := memory.NewStore(testCatalog())

	if _, err := store.AddProductToCart("Ana", "NOPE"); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
	// Неудачное добавление не должно создать клиента.
	if _, err := store.Cart("Ana"); !errors.Is(err, domain.ErrClientNotFound) {
		t.Fatalf("client must not be created on failure, got %v", err)
	}
}

func TestStore_RemoveProduct(t *testing.T) {
	store := memory.NewStore(testCatalog())

	if _, err := store.AddProductToCart("Ana", "ESPFIL"); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if _, err := store.AddProductToCart("Ana", "ESPTRA"); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	client, err := store.RemoveProductFromCart("Ana", "espresso filtrado")
	if err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if len(client.Cart.Products) != 1 || client.Cart.Products[0].ID != "ESPTRA" {
		t.Fatalf("unexpected cart after removal: %+v", client.Cart)
	}
	if client.Cart.TotalMinor != 350 {
		t.Fatalf("total must drop by the removed price, got %d", client.Cart.TotalMinor)
	}
}

func TestStore_RemoveProductFailures(t *testing.T) {
	store := memory.NewStore(testCatalog())

	if _, err := store.RemoveProductFromCart("Ana", "ESPFIL"); !errors.Is(err, domain.ErrClientNotFound) {
		t.Fatalf("expected ErrClientNotFound, got %v", err)
	}

	if _, err := store.AddProductToCart("Ana", "ESPFIL"); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if _, err := store.RemoveProductFromCart("Ana", "NOPE"); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
	if _, err := store.RemoveProductFromCart("Ana", "PAOQUE"); !errors.Is(err, domain.ErrProductNotInCart) {
		t.Fatalf("expected ErrProductNotInCart, got %v", err)
	}

	// Неудачное удаление оставляет корзину нетронутой.
	cart, err := store.Cart("Ana")
	if err != nil {
		t.Fatalf("get cart failed: %v", err)
	}
	if len(cart.Products) != 1 || cart.TotalMinor != 495 {
		t.Fatalf("cart must be unchanged after failed removal: %+v", cart)
	}
}

func TestStore_Checkout(t *testing.T) {
	store := memory.NewStore(testCatalog())

	if _, err := store.AddProductToCart("Ana", "ESPFIL"); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if _, err := store.AddProductToCart("Ana", "ESPTRA"); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	obs := "sem açúcar"
	order, err := store.Checkout("Ana", "cash", &obs)
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if order.ID == "" {
		t.Fatal("order must get a generated id")
	}
	if order.Complete {
		t.Fatal("new order must start incomplete")
	}
	if order.TotalMinor != 845 {
		t.Fatalf("order total must equal the sum of snapshot prices, got %d", order.TotalMinor)
	}
	if len(order.Products) != 2 {
		t.Fatalf("order must snapshot the cart, got %d products", len(order.Products))
	}
	if order.PaymentMethod != "cash" {
		t.Fatalf("payment method must be recorded, got %q", order.PaymentMethod)
	}
	if order.Observation == nil || *order.Observation != "sem açúcar" {
		t.Fatalf("observation must be carried over, got %v", order.Observation)
	}

	cart, err := store.Cart("Ana")
	if err != nil {
		t.Fatalf("get cart failed: %v", err)
	}
	if len(cart.Products) != 0 || cart.TotalMinor != 0 {
		t.Fatalf("checkout must empty the cart: %+v", cart)
	}
}

func TestStore_CheckoutFailures(t *testing.T) {
	store := memory.NewStore(testCatalog())

	if _, err := store.Checkout("Ana", "cash", nil); !errors.Is(err, domain.ErrClientNotFound) {
		t.Fatalf("expected ErrClientNotFound, got %v", err)
	}

	if _, err := store.AddProductToCart("Ana", "ESPFIL"); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if _, err := store.Checkout("Ana", "cash", nil); err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if _, err := store.Checkout("Ana", "cash", nil); !errors.Is(err, domain.ErrCartEmpty) {
		t.Fatalf("second checkout must fail with ErrCartEmpty, got %v", err)
	}
}

func TestStore_OrderSnapshotIsIsolated(t *testing.T) {
	store := memory.NewStore(testCatalog())

	if _, err := store.AddProductToCart("Ana", "ESPFIL"); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	order, err := store.Checkout("Ana", "cash", nil)
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	// Последующие мутации корзины не трогают уже созданный заказ.
	if _, err := store.AddProductToCart("Ana", "PAOQUE"); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	stored, err := store.OrderByRef(order.ID)
	if err != nil {
		t.Fatalf("get order failed: %v", err)
	}
	if len(stored.Products) != 1 || stored.Products[0].ID != "ESPFIL" {
		t.Fatalf("order snapshot must be immutable: %+v", stored.Products)
	}
}

func TestStore_OrderByRef(t *testing.T) {
	store := memory.NewStore(testCatalog())

	if _, err := store.AddProductToCart("Ana", "ESPFIL"); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	order, err := store.Checkout("Ana", "card", nil)
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	byID, err := store.OrderByRef(order.ID)
	if err != nil {
		t.Fatalf("lookup by id failed: %v", err)
	}
	byName, err := store.OrderByRef("ana")
	if err != nil {
		t.Fatalf("lookup by owner name failed: %v", err)
	}
	if byID.ID != byName.ID {
		t.Fatalf("lookups must agree: %s vs %s", byID.ID, byName.ID)
	}
	if _, err := store.OrderByRef("missing"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestStore_CompleteTransitions(t *testing.T) {
	store := memory.NewStore(testCatalog())

	if _, err := store.AddProductToCart("Ana", "ESPFIL"); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	order, err := store.Checkout("Ana", "cash", nil)
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	done, err := store.MarkOrderComplete(order.ID)
	if err != nil {
		t.Fatalf("mark complete failed: %v", err)
	}
	if !done.Complete {
		t.Fatal("order must be complete")
	}

	// Переходы повторяемы в обе стороны, терминального состояния нет.
	reopened, err := store.MarkOrderIncomplete(order.ID)
	if err != nil {
		t.Fatalf("mark incomplete failed: %v", err)
	}
	if reopened.Complete {
		t.Fatal("order must be incomplete again")
	}
	if _, err := store.MarkOrderComplete(order.ID); err != nil {
		t.Fatalf("repeat transition failed: %v", err)
	}

	if _, err := store.MarkOrderComplete("missing"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestStore_ModifyObservation(t *testing.T) {
	store := memory.NewStore(testCatalog())

	if _, err := store.AddProductToCart("Ana", "ESPFIL"); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	obs := "sem açúcar"
	order, err := store.Checkout("Ana", "cash", &obs)
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	newObs := "no pickles"
	updated, err := store.ModifyOrderObservation(order.ID, &newObs)
	if err != nil {
		t.Fatalf("modify observation failed: %v", err)
	}
	if updated.Observation == nil || *updated.Observation != "no pickles" {
		t.Fatalf("unexpected observation: %v", updated.Observation)
	}

	cleared, err := store.ModifyOrderObservation(order.ID, nil)
	if err != nil {
		t.Fatalf("clear observation failed: %v", err)
	}
	if cleared.Observation != nil {
		t.Fatal("nil must clear the observation")
	}

	if _, err := store.MarkOrderComplete(order.ID); err != nil {
		t.Fatalf("mark complete failed: %v", err)
	}
	if _, err := store.ModifyOrderObservation(order.ID, &newObs); !errors.Is(err, domain.ErrOrderComplete) {
		t.Fatalf("expected ErrOrderComplete, got %v", err)
	}

	// Неудачное редактирование не меняет заметку.
	stored, err := store.OrderByRef(order.ID)
	if err != nil {
		t.Fatalf("get order failed: %v", err)
	}
	if stored.Observation != nil {
		t.Fatalf("failed edit must leave the observation unchanged: %v", stored.Observation)
	}

	if _, err := store.ModifyOrderObservation("missing", nil); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestStore_LedgerEviction(t *testing.T) {
	store := memory.NewStore(testCatalog())

	var firstIDs []string
	for i := 0; i < domain.OrderLedgerCap; i++ {
		client := fmt.Sprintf("client-%03d", i)
		if _, err := store.AddProductToCart(client, "ESPFIL"); err != nil {
			t.Fatalf("add failed: %v", err)
		}
		order, err := store.Checkout(client, "cash", nil)
		if err != nil {
			t.Fatalf("checkout %d failed: %v", i, err)
		}
		if i < domain.OrderEvictBatch {
			firstIDs = append(firstIDs, order.ID)
		}
	}

	orders, err := store.Orders()
	if err != nil {
		t.Fatalf("list orders failed: %v", err)
	}
	if len(orders) != domain.OrderLedgerCap-domain.OrderEvictBatch {
		t.Fatalf("expected %d orders after eviction, got %d",
			domain.OrderLedgerCap-domain.OrderEvictBatch, len(orders))
	}

	// Вытесняются именно самые старые, независимо от статуса.
	for _, id := range firstIDs {
		if _, err := store.OrderByRef(id); !errors.Is(err, domain.ErrOrderNotFound) {
			t.Fatalf("order %s must be evicted, got %v", id, err)
		}
	}
}

func TestStore_ConcurrentAddsSameClient(t *testing.T) {
	store := memory.NewStore(testCatalog())

	const workers = 16
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			if _, err := store.AddProductToCart("Ana", "ESPTRA"); err != nil {
				t.Errorf("add failed: %v", err)
			}
		}()
	}
	wg.Wait()

	cart, err := store.Cart("Ana")
	if err != nil {
		t.Fatalf("get cart failed: %v", err)
	}
	if len(cart.Products) != workers {
		t.Fatalf("lost update: expected %d products, got %d", workers, len(cart.Products))
	}
	if cart.TotalMinor != int64(workers)*350 {
		t.Fatalf("total drifted: expected %d, got %d", workers*350, cart.TotalMinor)
	}
}

func TestStore_SnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")

	store, err := memory.NewStoreWithSnapshot(testCatalog(), path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, err := store.AddProductToCart("Ana", "ESPFIL"); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	order, err := store.Checkout("Ana", "cash", nil)
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if _, err := store.AddProductToCart("Bruno", "ESPTRA"); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	restored, err := memory.NewStoreWithSnapshot(testCatalog(), path)
	if err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	stored, err := restored.OrderByRef(order.ID)
	if err != nil {
		t.Fatalf("restored order lookup failed: %v", err)
	}
	if stored.TotalMinor != order.TotalMinor {
		t.Fatalf("restored order total mismatch: %d vs %d", stored.TotalMinor, order.TotalMinor)
	}
	cart, err := restored.Cart("Bruno")
	if err != nil {
		t.Fatalf("restored cart lookup failed: %v", err)
	}
	if len(cart.Products) != 1 || cart.Products[0].ID != "ESPTRA" {
		t.Fatalf("restored cart mismatch: %+v", cart)
	}
}
