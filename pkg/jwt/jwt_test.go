package jwt_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgjwt "github.com/jhoicas/stock-ledger/pkg/jwt"
)

func TestGenerateParse(t *testing.T) {
	tok, err := pkgjwt.Generate("s3cret", "u-1", pkgjwt.RoleWarehouseStaff, "stock-ledger", 5)
	require.NoError(t, err)

	userID, role, err := pkgjwt.Parse("s3cret", "stock-ledger", tok)
	require.NoError(t, err)
	assert.Equal(t, "u-1", userID)
	assert.Equal(t, pkgjwt.RoleWarehouseStaff, role)
}

func TestParse_Rechazos(t *testing.T) {
	tok, err := pkgjwt.Generate("s3cret", "u-1", pkgjwt.RoleAdmin, "otro", 5)
	require.NoError(t, err)

	_, _, err = pkgjwt.Parse("s3cret", "stock-ledger", tok)
	assert.Error(t, err, "issuer distinto")

	_, _, err = pkgjwt.Parse("otra-clave", "", tok)
	assert.Error(t, err, "firma incorrecta")

	expired, err := pkgjwt.Generate("s3cret", "u-1", pkgjwt.RoleAdmin, "", -1)
	require.NoError(t, err)
	_, _, err = pkgjwt.Parse("s3cret", "", expired)
	assert.Error(t, err, "token vencido")

	_, err = pkgjwt.Generate("", "u-1", pkgjwt.RoleAdmin, "", 5)
	assert.Error(t, err)
}
