package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/memstore"
)

// DiagnosticsSource expone el resultado de la carga de arranque.
type DiagnosticsSource interface {
	Diagnostics() ([]memstore.Diagnostic, memstore.ReconcileReport)
}

// HealthHandler informa si alguna colección arrancó vacía por no poder leerse.
type HealthHandler struct {
	src DiagnosticsSource
}

// NewHealthHandler construye el handler.
func NewHealthHandler(src DiagnosticsSource) *HealthHandler {
	return &HealthHandler{src: src}
}

// Health godoc
// @Summary      Estado del servicio
// @Description  status=degraded cuando una colección no se pudo cargar o la reconciliación no pudo persistir.
// @Tags         health
// @Produce      json
// @Success      200  {object}  dto.HealthResponse
// @Router       /health [get]
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	diags, report := h.src.Diagnostics()
	out := dto.HealthResponse{Status: "ok", Collections: make([]dto.CollectionStatus, 0, len(diags)), Reconcile: report}
	for _, d := range diags {
		if d.Status == memstore.StatusDegraded {
			out.Status = "degraded"
		}
		out.Collections = append(out.Collections, dto.CollectionStatus{
			Name:          d.Collection,
			Status:        string(d.Status),
			Records:       d.Records,
			Error:         d.Error,
			QuarantinedTo: d.QuarantinedTo,
		})
	}
	if report.SaveError != "" {
		out.Status = "degraded"
	}
	// El servicio sigue atendiendo en modo degradado; el estado va en el cuerpo.
	return c.JSON(out)
}
