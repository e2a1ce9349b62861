package inventory

import (
	"context"
	"strings"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/domain/ledger"
)

// SubmitFromRequest adapta el request HTTP al motor Submit(ctx, ledger.Request).
// actorID sale del JWT; requestID del header Idempotency-Key si el body no lo trae.
func (uc *LedgerUseCase) SubmitFromRequest(ctx context.Context, actorID, requestID string, in dto.SubmitTransactionRequest) (*dto.SubmitTransactionResponse, error) {
	if strings.TrimSpace(in.RequestID) == "" {
		in.RequestID = requestID
	}
	res, err := uc.Submit(ctx, ledger.Request{
		ProductID:   strings.TrimSpace(in.ProductID),
		LocationID:  strings.TrimSpace(in.LocationID),
		Kind:        in.Kind,
		Quantity:    in.Quantity,
		UnitMeasure: in.UnitMeasure,
		Reason:      strings.TrimSpace(in.Reason),
		Reference:   in.Reference,
		Notes:       in.Notes,
		ActorID:     actorID,
		RequestID:   strings.TrimSpace(in.RequestID),
	})
	if err != nil {
		return nil, err
	}
	out := &dto.SubmitTransactionResponse{Transaction: res.Transaction, Replayed: res.Replayed}
	if res.Record != nil {
		out.StockRecord = &dto.StockView{
			ID:               res.Record.ID,
			ProductID:        res.Record.ProductID,
			LocationID:       res.Record.LocationID,
			QuantityOnHand:   res.Record.QuantityOnHand,
			UnitMeasure:      res.Record.UnitMeasure,
			ReorderThreshold: res.Record.ReorderThreshold,
			LowStock:         res.Record.IsLowStock(),
			UpdatedAt:        res.Record.UpdatedAt,
		}
	}
	return out, nil
}
