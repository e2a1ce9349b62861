package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// LocationUseCase casos de uso CRUD para bodegas.
type LocationUseCase struct {
	repo repository.LocationRepository
	log  zerolog.Logger
}

// NewLocationUseCase construye el caso de uso.
func NewLocationUseCase(repo repository.LocationRepository, log zerolog.Logger) *LocationUseCase {
	return &LocationUseCase{repo: repo, log: log}
}

// Create crea una nueva bodega.
func (uc *LocationUseCase) Create(ctx context.Context, in dto.CreateLocationRequest) (*dto.LocationResponse, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, domain.ErrInvalidInput
	}
	now := time.Now().UTC()
	location := &entity.Location{
		ID:        uuid.New().String(),
		Name:      name,
		Address:   in.Address,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.repo.CreateLocation(ctx, location); err != nil {
		return nil, err
	}
	uc.log.Info().Str("location_id", location.ID).Msg("bodega creada")
	return toLocationResponse(location), nil
}

// GetByID obtiene una bodega por ID.
func (uc *LocationUseCase) GetByID(ctx context.Context, id string) (*dto.LocationResponse, error) {
	location, err := uc.repo.GetLocation(ctx, id)
	if err != nil {
		return nil, err
	}
	if location == nil {
		return nil, nil
	}
	return toLocationResponse(location), nil
}

// Update actualiza una bodega.
func (uc *LocationUseCase) Update(ctx context.Context, id string, in dto.UpdateLocationRequest) (*dto.LocationResponse, error) {
	location, err := uc.repo.GetLocation(ctx, id)
	if err != nil {
		return nil, err
	}
	if location == nil {
		return nil, nil
	}
	if in.Name != nil {
		location.Name = strings.TrimSpace(*in.Name)
	}
	if in.Address != nil {
		location.Address = *in.Address
	}
	location.UpdatedAt = time.Now().UTC()
	if err := uc.repo.UpdateLocation(ctx, location); err != nil {
		return nil, err
	}
	return toLocationResponse(location), nil
}

// List lista bodegas con paginación.
func (uc *LocationUseCase) List(ctx context.Context, limit, offset int) (*dto.LocationListResponse, error) {
	list, err := uc.repo.ListLocations(ctx)
	if err != nil {
		return nil, err
	}
	total := len(list)
	list = page(list, limit, offset)
	items := make([]dto.LocationResponse, 0, len(list))
	for _, l := range list {
		items = append(items, *toLocationResponse(l))
	}
	return &dto.LocationListResponse{
		Items: items,
		Page:  dto.PageResponse{Limit: limit, Offset: offset, Total: total},
	}, nil
}

// Delete elimina una bodega y en cascada sus StockRecord; el historial se conserva.
func (uc *LocationUseCase) Delete(ctx context.Context, id string) (*dto.DeleteResponse, error) {
	removed, err := uc.repo.DeleteLocation(ctx, id)
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("location_id", id).Int("stock_records", removed).Msg("bodega eliminada")
	return &dto.DeleteResponse{ID: id, StockRecordsRemoved: removed}, nil
}

func toLocationResponse(l *entity.Location) *dto.LocationResponse {
	if l == nil {
		return nil
	}
	return &dto.LocationResponse{
		ID:        l.ID,
		Name:      l.Name,
		Address:   l.Address,
		CreatedAt: l.CreatedAt,
		UpdatedAt: l.UpdatedAt,
	}
}
