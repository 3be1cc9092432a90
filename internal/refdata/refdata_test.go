package refdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vialy-app/vialy-api/internal/domain"
)

func TestTierValues(t *testing.T) {
	c, ok := TierByCode("c")
	require.True(t, ok)
	assert.Equal(t, 15, c.SMLDV)
	assert.Equal(t, 711_750, c.Pesos)

	e, ok := TierByCode(TierE)
	require.True(t, ok)
	assert.Equal(t, 2_135_250, e.Pesos)

	_, ok = TierByCode("Z")
	assert.False(t, ok)
}

func TestDetectInfractions(t *testing.T) {
	keys := DetectInfractions("Me pasé un SEMÁFORO en rojo y además iba con exceso de velocidad")
	assert.Equal(t, []string{"exceso_velocidad", "semaforo_rojo"}, keys, "table order, not mention order")

	assert.Empty(t, DetectInfractions("hola, buenos días"))
}

func TestInfractionByKey(t *testing.T) {
	inf, ok := InfractionByKey("semaforo_rojo")
	require.True(t, ok)
	assert.Equal(t, "131-D.4", inf.Article)
	assert.Equal(t, TierD, inf.Tier)
}

func TestFormatPesos(t *testing.T) {
	assert.Equal(t, "$1.423.500", FormatPesos(1_423_500))
	assert.Equal(t, "$47.450", FormatPesos(47_450))
	assert.Equal(t, "$800", FormatPesos(800))
}

func TestCategoryName(t *testing.T) {
	assert.Equal(t, "Sanciones y Multas", CategoryName(domain.CategoryMulta))
	assert.Equal(t, "Consulta General", CategoryName(domain.Category("OTRA")))
}
