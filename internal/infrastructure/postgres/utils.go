package postgres

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// isTransient indica si vale la pena reintentar. Errores de red o de conexión sí;
// un error SQL del servidor (tabla inexistente, permisos, sintaxis) no cambia al reintentar.
func isTransient(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return true
	}
	switch {
	case strings.HasPrefix(pgErr.Code, "08"): // connection_exception
		return true
	case pgErr.Code == "40001", pgErr.Code == "40P01": // serialization_failure, deadlock_detected
		return true
	case pgErr.Code == "57P01", pgErr.Code == "57P03": // admin_shutdown, cannot_connect_now
		return true
	case pgErr.Code == "53300": // too_many_connections
		return true
	}
	return false
}
