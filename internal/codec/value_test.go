package codec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/libreledger/consensus-node/internal/common"
)

func TestObjSortsKeysRegardlessOfInsertionOrder(t *testing.T) {
	a := Encode(Obj(map[string]Value{"b": Int(1), "a": Int(2), "c": Int(3)}))
	b := Encode(Obj(map[string]Value{"c": Int(3), "a": Int(2), "b": Int(1)}))
	assert.Equal(t, string(a), string(b))
	assert.Equal(t, `{"a":2,"b":1,"c":3}`, string(a))
}

func TestDecRendersFixedSixDecimals(t *testing.T) {
	amt := common.MustParseAmount("289.999")
	got := Encode(Dec(amt))
	assert.Equal(t, `"289.999000"`, string(got))
}

func TestArrayPreservesOrder(t *testing.T) {
	got := Encode(Array(Int(3), Int(1), Int(2)))
	assert.Equal(t, `[3,1,2]`, string(got))
}

func TestStrEscapesLikeJSON(t *testing.T) {
	got := Encode(Str(`quote"here`))
	assert.Equal(t, `"quote\"here"`, string(got))
}

func TestHashHexIsDeterministic(t *testing.T) {
	v := Obj(map[string]Value{"x": Int(1), "y": Str("hello")})
	h1 := HashHex(v)
	h2 := HashHex(v)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestHashHexIgnoresKeyInsertionOrder(t *testing.T) {
	v1 := Obj(map[string]Value{"x": Int(1), "y": Int(2)})
	v2 := Obj(map[string]Value{"y": Int(2), "x": Int(1)})
	assert.Equal(t, HashHex(v1), HashHex(v2))
}

func TestZeroHashIs64Zeros(t *testing.T) {
	assert.Len(t, ZeroHash, 64)
	assert.Equal(t, strings.Repeat("0", 64), ZeroHash)
}
