package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// HeaderIdempotencyKey permite reintentar un envío sin duplicar su efecto.
const HeaderIdempotencyKey = "Idempotency-Key"

// InventoryHandler maneja las peticiones HTTP del libro de inventario (protegido).
type InventoryHandler struct {
	ledger        *inventory.LedgerUseCase
	query         *inventory.QueryUseCase
	replenishment *inventory.ReplenishmentUseCase
	report        *inventory.ReportUseCase
}

// NewInventoryHandler construye el handler.
func NewInventoryHandler(
	ledger *inventory.LedgerUseCase,
	query *inventory.QueryUseCase,
	replenishment *inventory.ReplenishmentUseCase,
	report *inventory.ReportUseCase,
) *InventoryHandler {
	return &InventoryHandler{ledger: ledger, query: query, replenishment: replenishment, report: report}
}

// SubmitTransaction godoc
// @Summary      Registrar transacción de inventario
// @Description  Entrada (intake) o salida (depletion) sobre un par producto/bodega.
// @Description  Con Idempotency-Key (o request_id) un reintento devuelve la transacción original.
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key  header  string  false  "Clave de idempotencia"
// @Param        body  body  dto.SubmitTransactionRequest  true  "product_id, location_id, kind, quantity, unit_measure, reason (salidas)"
// @Success      201   {object}  dto.SubmitTransactionResponse
// @Success      200   {object}  dto.SubmitTransactionResponse  "reintento ya aplicado"
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Failure      422   {object}  dto.ErrorResponse
// @Failure      503   {object}  dto.ErrorResponse
// @Router       /api/inventory/transactions [post]
func (h *InventoryHandler) SubmitTransaction(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	var in dto.SubmitTransactionRequest
	if ok, err := bindJSON(c, &in); !ok {
		return err
	}
	out, err := h.ledger.SubmitFromRequest(c.UserContext(), userID, strings.TrimSpace(c.Get(HeaderIdempotencyKey)), in)
	if err != nil {
		return writeError(c, err)
	}
	if out.Replayed {
		return c.Status(fiber.StatusOK).JSON(out)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// ListStock godoc
// @Summary      Listar stock
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        location_id  query  string  false  "Filtrar por bodega"
// @Param        low_stock    query  bool    false  "Solo pares en o bajo el punto de reorden"
// @Param        search       query  string  false  "Texto en SKU o nombre del producto (sin distinguir acentos)"
// @Success      200  {array}   dto.StockView
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/inventory/stock [get]
func (h *InventoryHandler) ListStock(c *fiber.Ctx) error {
	var q dto.StockQuery
	if ok, err := bindQuery(c, &q); !ok {
		return err
	}
	list, err := h.query.ListStock(c.UserContext(), q)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"total": len(list), "items": list})
}

// ListTransactions godoc
// @Summary      Historial de transacciones
// @Description  Orden cronológico. Requiere product_id, location_id o ambos; se conserva tras borrar el producto o la bodega.
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        product_id   query  string  false  "ID del producto"
// @Param        location_id  query  string  false  "ID de la bodega"
// @Success      200  {object}  dto.TransactionListResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/inventory/transactions [get]
func (h *InventoryHandler) ListTransactions(c *fiber.Ctx) error {
	out, err := h.query.ListTransactions(c.UserContext(), c.Query("product_id"), c.Query("location_id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// SetThreshold godoc
// @Summary      Fijar punto de reorden
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.SetThresholdRequest  true  "product_id, location_id, threshold"
// @Success      200   {object}  dto.StockView
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/inventory/stock/threshold [put]
func (h *InventoryHandler) SetThreshold(c *fiber.Ctx) error {
	var in dto.SetThresholdRequest
	if ok, err := bindJSON(c, &in); !ok {
		return err
	}
	key := entity.StockKey{ProductID: strings.TrimSpace(in.ProductID), LocationID: strings.TrimSpace(in.LocationID)}
	rec, err := h.ledger.SetReorderThreshold(c.UserContext(), key, in.Threshold)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.StockView{
		ID:               rec.ID,
		ProductID:        rec.ProductID,
		LocationID:       rec.LocationID,
		QuantityOnHand:   rec.QuantityOnHand,
		UnitMeasure:      rec.UnitMeasure,
		ReorderThreshold: rec.ReorderThreshold,
		LowStock:         rec.IsLowStock(),
		UpdatedAt:        rec.UpdatedAt,
	})
}

// GetReplenishmentList godoc
// @Summary      Lista de reposición
// @Description  Pares en o bajo el punto de reorden con la cantidad sugerida para llegar a 1.5 veces el umbral.
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        location_id  query  string  false  "Filtrar por bodega. Vacío = todas."
// @Success      200  {array}   dto.ReplenishmentSuggestionDTO
// @Failure      401  {object}  dto.ErrorResponse
// @Router       /api/inventory/replenishment-list [get]
func (h *InventoryHandler) GetReplenishmentList(c *fiber.Ctx) error {
	list, err := h.replenishment.GenerateReplenishmentList(c.UserContext(), c.Query("location_id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"total":          len(list),
		"replenishments": list,
	})
}

// StockReport godoc
// @Summary      Reporte PDF de stock
// @Tags         inventory
// @Security     Bearer
// @Produce      application/pdf
// @Param        location_id  query  string  false  "Filtrar por bodega"
// @Param        low_stock    query  bool    false  "Solo stock bajo"
// @Success      200  {file}  binary
// @Router       /api/inventory/report.pdf [get]
func (h *InventoryHandler) StockReport(c *fiber.Ctx) error {
	var q dto.StockQuery
	if ok, err := bindQuery(c, &q); !ok {
		return err
	}
	pdf, err := h.report.StockReport(c.UserContext(), q)
	if err != nil {
		return writeError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `inline; filename="stock.pdf"`)
	return c.Send(pdf)
}
