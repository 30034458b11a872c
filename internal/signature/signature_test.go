package signature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToName(t *testing.T) {
	tests := []struct {
		sig  string
		want string
	}{
		{"I", "int"},
		{"Z", "boolean"},
		{"V", "void"},
		{"[J", "long[]"},
		{"[[D", "double[][]"},
		{"Ljava/lang/String;", "java.lang.String"},
		{"[Ljava/util/Map$Entry;", "java.util.Map$Entry[]"},
		{"Ljava/util/List<Ljava/lang/String;>;", "java.util.List"},
		{"Q", "Q"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ToName(tt.sig), tt.sig)
	}
}

func TestFromNameInvertsToName(t *testing.T) {
	for _, sig := range []string{"I", "[B", "[[Ljava/lang/Object;", "Lcom/example/Outer$Inner;", "V"} {
		assert.Equal(t, sig, FromName(ToName(sig)))
	}
}

func TestPredicates(t *testing.T) {
	assert.True(t, IsPrimitive("C"))
	assert.False(t, IsPrimitive("[C"))
	assert.False(t, IsPrimitive("Ljava/lang/Object;"))
	assert.True(t, IsReference("[C"))
	assert.True(t, IsReference("LFoo;"))
	assert.False(t, IsReference("J"))
	assert.Equal(t, "[I", Component("[[I"))
	assert.Equal(t, "", Component("I"))
	assert.Equal(t, 2, Dimensions("[[I"))
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("(I[Ljava/lang/String;JLjava/util/List<Ljava/lang/Integer;>;)Ljava/lang/Object;")
	require.NoError(t, err)
	assert.Equal(t, []string{"I", "[Ljava/lang/String;", "J", "Ljava/util/List<Ljava/lang/Integer;>;"}, m.Arguments)
	assert.Equal(t, "Ljava/lang/Object;", m.Return)
	assert.Equal(t, []string{"int", "java.lang.String[]", "long", "java.util.List"}, m.ArgumentNames())
	assert.Equal(t, "java.lang.Object", m.ReturnName())

	m, err = ParseMethod("()V")
	require.NoError(t, err)
	assert.Empty(t, m.Arguments)
	assert.Equal(t, "V", m.Return)
}

func TestParseMethodMalformed(t *testing.T) {
	for _, sig := range []string{"I", "(I", "(Ljava/lang/String)V", "(X)V", "(I)VV", "()"} {
		_, err := ParseMethod(sig)
		assert.ErrorIs(t, err, ErrMalformed, sig)
	}
}
