package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/domain"
)

// productCreator lo implementa *usecase.ProductUseCase.
type productCreator interface {
	Create(ctx context.Context, in dto.CreateProductRequest) (*dto.ProductResponse, error)
}

// importResult resumen de una importación.
type importResult struct {
	Created    int
	Duplicates []string // SKUs ya existentes
	Invalid    []string // "línea N: motivo"
}

// decodeReader envuelve r según la codificación del archivo (utf-8 | latin1).
func decodeReader(r io.Reader, encoding string) (io.Reader, error) {
	switch strings.ToLower(encoding) {
	case "", "utf-8", "utf8":
		return r, nil
	case "latin1", "latin-1", "iso-8859-1":
		return transform.NewReader(r, charmap.ISO8859_1.NewDecoder()), nil
	case "windows-1252", "cp1252":
		return transform.NewReader(r, charmap.Windows1252.NewDecoder()), nil
	}
	return nil, fmt.Errorf("codificación no soportada: %s", encoding)
}

// parseProducts lee filas sku,name,unit,description,price. description y price son opcionales.
func parseProducts(r io.Reader, skipHeader bool) ([]dto.CreateProductRequest, []string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var (
		out     []dto.CreateProductRequest
		invalid []string
		line    int
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("leer CSV: %w", err)
		}
		line++
		if line == 1 && skipHeader {
			continue
		}
		if len(rec) < 3 {
			invalid = append(invalid, fmt.Sprintf("línea %d: se esperan al menos sku,name,unit", line))
			continue
		}
		in := dto.CreateProductRequest{
			SKU:         strings.TrimSpace(rec[0]),
			Name:        strings.TrimSpace(rec[1]),
			UnitMeasure: strings.TrimSpace(rec[2]),
		}
		if len(rec) > 3 {
			in.Description = strings.TrimSpace(rec[3])
		}
		if len(rec) > 4 && strings.TrimSpace(rec[4]) != "" {
			price, err := decimal.NewFromString(strings.TrimSpace(rec[4]))
			if err != nil {
				invalid = append(invalid, fmt.Sprintf("línea %d: precio inválido %q", line, rec[4]))
				continue
			}
			in.Price = &price
		}
		out = append(out, in)
	}
	return out, invalid, nil
}

// importProducts crea cada fila a través del caso de uso; los SKU repetidos se omiten.
func importProducts(ctx context.Context, uc productCreator, rows []dto.CreateProductRequest) (importResult, error) {
	var res importResult
	for _, in := range rows {
		_, err := uc.Create(ctx, in)
		switch {
		case err == nil:
			res.Created++
		case errors.Is(err, domain.ErrDuplicate):
			res.Duplicates = append(res.Duplicates, in.SKU)
		case errors.Is(err, domain.ErrInvalidInput):
			res.Invalid = append(res.Invalid, fmt.Sprintf("sku %q: datos inválidos", in.SKU))
		default:
			return res, fmt.Errorf("crear %s: %w", in.SKU, err)
		}
	}
	return res, nil
}
