// Пакет httpapi — HTTP-граница сервиса: маршруты /api/v1 поверх
// прикладного сервиса заказов и механическое отображение кодов ошибок
// в статусы ответов.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/comanda/internal/domain"
	"github.com/vladislavdragonenkov/comanda/internal/service/orders"
)

// Handler обслуживает маршруты /api/v1.
type Handler struct {
	service *orders.Service
	logger  *log.Entry
}

// NewHandler создаёт HTTP-хендлер поверх сервиса заказов.
func NewHandler(service *orders.Service, logger *log.Entry) *Handler {
	if logger == nil {
		logger = log.WithField("component", "httpapi")
	}
	return &Handler{service: service, logger: logger}
}

type checkoutRequest struct {
	Client        string  `json:"client"`
	PaymentMethod string  `json:"paymentMethod"`
	Observation   *string `json:"observation"`
}

type patchOrderRequest struct {
	Op          string  `json:"op"`
	Observation *string `json:"observation"`
}

type addProductRequest struct {
	Product string `json:"product"`
}

func (h *Handler) listProducts(w http.ResponseWriter, _ *http.Request) {
	products, err := h.service.Products()
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, products)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.service.ProductByRef(chi.URLParam(r, "productRef"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, product)
}

func (h *Handler) listOrders(w http.ResponseWriter, _ *http.Request) {
	list, err := h.service.Orders()
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, list)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.OrderByRef(chi.URLParam(r, "orderRef"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorCode(w, http.StatusBadRequest, "MALFORMED_BODY")
		return
	}
	order, err := h.service.Checkout(req.Client, req.PaymentMethod, req.Observation)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, order)
}

// patchOrder диспетчеризует переходы заказа по полю op: complete,
// incomplete или observation. Неизвестный op отклоняется кодом
// UNKNOWN_OPERATION.
func (h *Handler) patchOrder(w http.ResponseWriter, r *http.Request) {
	var req patchOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorCode(w, http.StatusBadRequest, "MALFORMED_BODY")
		return
	}

	ref := chi.URLParam(r, "orderRef")

	var (
		order domain.Order
		err   error
	)
	switch req.Op {
	case "complete":
		order, err = h.service.MarkOrderComplete(ref)
	case "incomplete":
		order, err = h.service.MarkOrderIncomplete(ref)
	case "observation":
		order, err = h.service.ModifyOrderObservation(ref, req.Observation)
	default:
		err = domain.ErrUnknownOperation
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.service.Cart(chi.URLParam(r, "clientRef"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, cart)
}

func (h *Handler) addToCart(w http.ResponseWriter, r *http.Request) {
	var req addProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorCode(w, http.StatusBadRequest, "MALFORMED_BODY")
		return
	}
	client, err := h.service.AddProductToCart(chi.URLParam(r, "clientRef"), req.Product)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, client)
}

func (h *Handler) removeFromCart(w http.ResponseWriter, r *http.Request) {
	client, err := h.service.RemoveProductFromCart(
		chi.URLParam(r, "clientRef"), chi.URLParam(r, "productRef"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, client)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.WithError(err).Error("response encode failed")
	}
}

// writeError переводит типизированную ошибку ядра в HTTP-статус и тело
// вида {"error": "<CODE>"}.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	code, ok := domain.ErrorCode(err)
	if !ok {
		h.logger.WithError(err).Error("unclassified error")
		h.writeErrorCode(w, http.StatusInternalServerError, "INTERNAL")
		return
	}

	var (
		notFound     *domain.NotFoundError
		precondition *domain.PreconditionError
		invalidInput *domain.InvalidInputError
	)
	switch {
	case errors.As(err, &notFound):
		h.writeErrorCode(w, http.StatusNotFound, string(code))
	case errors.As(err, &precondition), errors.As(err, &invalidInput):
		h.writeErrorCode(w, http.StatusBadRequest, string(code))
	case domain.IsTransient(err):
		h.logger.WithError(err).Error("backend failure")
		h.writeErrorCode(w, http.StatusInternalServerError, string(code))
	default:
		h.logger.WithError(err).Error("unmapped error code")
		h.writeErrorCode(w, http.StatusInternalServerError, string(code))
	}
}

func (h *Handler) writeErrorCode(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": code}); err != nil {
		h.logger.WithError(err).Error("response encode failed")
	}
}
