package filter

import (
	"testing"

	"github.com/kavlex/vectorcore/pkg/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalBasicComparisons(t *testing.T) {
	meta := record.Metadata{
		"category": record.String("shoes"),
		"price":    record.Number(80),
		"on_sale":  record.Bool(true),
	}

	assert.True(t, Eval(Eq("category", record.String("shoes")), meta))
	assert.True(t, Eval(Lt("price", record.Number(100)), meta))
	assert.False(t, Eval(Gt("price", record.Number(100)), meta))
	assert.True(t, Eval(And(Eq("category", record.String("shoes")), Lt("price", record.Number(100))), meta))
}

func TestEvalMissingFieldIsFalseExceptNotExists(t *testing.T) {
	meta := record.Metadata{}
	assert.False(t, Eval(Eq("color", record.String("red")), meta))
	assert.False(t, Eval(Exists("color"), meta))
	assert.True(t, Eval(Not(Exists("color")), meta))
}

func TestEvalInNin(t *testing.T) {
	meta := record.Metadata{"category": record.String("shoes")}
	assert.True(t, Eval(In("category", record.String("shoes"), record.String("hats")), meta))
	assert.False(t, Eval(Nin("category", record.String("shoes")), meta))
}

func TestEvalContains(t *testing.T) {
	meta := record.Metadata{"tags": record.Array(record.String("a"), record.String("b"))}
	assert.True(t, Eval(Contains("tags", record.String("a")), meta))
	assert.False(t, Eval(Contains("tags", record.String("z")), meta))
}

func TestParseSimpleAndOr(t *testing.T) {
	expr, err := Parse(`category = 'shoes' AND (price < 100 OR on_sale = true)`)
	require.NoError(t, err)

	meta := record.Metadata{"category": record.String("shoes"), "price": record.Number(150), "on_sale": record.Bool(true)}
	assert.True(t, Eval(expr, meta))

	meta2 := record.Metadata{"category": record.String("shoes"), "price": record.Number(150), "on_sale": record.Bool(false)}
	assert.False(t, Eval(expr, meta2))
}

func TestParseNestedParens(t *testing.T) {
	expr, err := Parse(`(a = 1 OR b = 2) AND (c = 3 OR d = 4)`)
	require.NoError(t, err)
	meta := record.Metadata{"a": record.Number(1), "c": record.Number(99), "d": record.Number(4)}
	assert.True(t, Eval(expr, meta))
}

func TestParseInClause(t *testing.T) {
	expr, err := Parse(`category IN ('shoes', 'hats')`)
	require.NoError(t, err)
	assert.True(t, Eval(expr, record.Metadata{"category": record.String("hats")}))
}

func TestParseNot(t *testing.T) {
	expr, err := Parse(`NOT EXISTS(deleted_at)`)
	require.NoError(t, err)
	assert.True(t, Eval(expr, record.Metadata{}))
	assert.False(t, Eval(expr, record.Metadata{"deleted_at": record.String("now")}))
}

func TestParseInvalidSyntaxErrors(t *testing.T) {
	_, err := Parse(`category = `)
	require.Error(t, err)
}
