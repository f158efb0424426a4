package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyIsIdempotent(t *testing.T) {
	t.Parallel()

	samples := []string{
		"",
		"José da Silva",
		"  Extensão-Bolsas: Nº 01  ",
		"Trilhas (das) Abelhas/UENF.",
		"ﬁlosoﬁa ＵＥＮＦ ２０２５",
		"Straße dos Açores",
		"ǰ caron",
		"Maria\tCristina\n\nGaglianone",
		"100% — garantido!",
		"snake_case_title",
	}

	for _, s := range samples {
		once := Key(s)
		assert.Equal(t, once, Key(once), "input %q", s)
	}
}

func TestKeyFoldsAccentsAndPunctuation(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Key("EXTENSAO BOLSAS NO 01"), Key("Extensão-Bolsas: Nº 01"))
	assert.Equal(t, "EXTENSAO BOLSAS NO 01", Key("Extensão-Bolsas: Nº 01"))
	assert.Equal(t, "JOSE DA SILVA", Key("  josé   da SILVA "))
	assert.Equal(t, "TRILHAS DAS ABELHASUENF", Key("Trilhas (das) Abelhas/UENF."))
	assert.Equal(t, "A B", Key("a:b"))
	assert.Empty(t, Key(""))
	assert.Empty(t, Key("!!! ... ???"))
}

func TestDisplayNameKeepsAccents(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ANA SOUZA", DisplayName("  Ana   Souza "))
	assert.Equal(t, "JOSÉ DA SILVA", DisplayName("José da Silva"))
	assert.Empty(t, DisplayName(""))
}

func TestNormalizeProfile(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"1":    "01",
		" 01 ": "01",
		"12":   "12",
		"":     "",
		"  ":   "",
		"123":  "123",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeProfile(in), "input %q", in)
	}
}

func TestTermFilterDropsStopWordsAndBoilerplate(t *testing.T) {
	t.Parallel()

	f := NewTermFilter([]string{"DE", "DAS", "O"}, []string{"PROJETO", "EXTENSÃO"})
	assert.Equal(t, f.Key("Abelhas"), f.Key("O Projeto de Extensão das Abelhas"))
	assert.Equal(t, "ABELHAS", f.Key("O Projeto de Extensão das Abelhas"))
}

func TestDefaultTermFilterDropsNumbers(t *testing.T) {
	t.Parallel()

	f := DefaultTermFilter()
	assert.Equal(t, "TRILHAS ABELHAS", f.Key("Edital PROEX 2025 - Projeto 01: Trilhas das Abelhas"))
	assert.Equal(t, "SAUDE", f.Key("Saúde"))
	require.Empty(t, f.Tokens("Projeto de Extensão 2024"))
}
