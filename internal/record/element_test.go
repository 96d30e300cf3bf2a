package record

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestElement_CompareSameKind(t *testing.T) {
	c, err := IntValue(1).Compare(IntValue(2))
	require.NoError(t, err)
	assert.Equal(t, -1, c)

	c, err = RealValue(2.5).Compare(RealValue(2.5))
	require.NoError(t, err)
	assert.Equal(t, 0, c)

	c, err = BoolValue(true).Compare(BoolValue(false))
	require.NoError(t, err)
	assert.Equal(t, 1, c)

	c, err = CharValue("alice").Compare(CharValue("bob"))
	require.NoError(t, err)
	assert.Equal(t, -1, c)

	c, err = MustBitValue("10").Compare(MustBitValue("01"))
	require.NoError(t, err)
	assert.Equal(t, 1, c)
}

func TestElement_CompareAcrossKindsIsTypeError(t *testing.T) {
	_, err := IntValue(1).Compare(RealValue(1))
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrType))

	assert.False(t, IntValue(1).Equal(CharValue("1")))
}

func TestElement_Contains(t *testing.T) {
	ok, err := CharValue("alice").Contains(CharValue("lic"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = MustBitValue("0110").Contains(MustBitValue("11"))
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = IntValue(10).Contains(IntValue(1))
	require.ErrorIs(t, err, ErrType)

	_, err = CharValue("abc").Contains(MustBitValue("1"))
	require.ErrorIs(t, err, ErrType)
}

func TestBitValue_RejectsNonBits(t *testing.T) {
	_, err := BitValue("0120")
	require.ErrorIs(t, err, ErrValue)

	_, err = BitValue("")
	require.ErrorIs(t, err, ErrValue)
}

func TestParseLiteral_Inference(t *testing.T) {
	cases := []struct {
		in   string
		want Element
	}{
		{"12", IntValue(12)},
		{"-3", IntValue(-3)},
		{"1.5", RealValue(1.5)},
		{"TRUE", BoolValue(true)},
		{"false", BoolValue(false)},
		{"b'0101'", MustBitValue("0101")},
		{"'hello world'", CharValue("hello world")},
		{"alice", CharValue("alice")},
		{"''", CharValue("")},
	}
	for _, tc := range cases {
		got, err := ParseLiteral(tc.in)
		require.NoError(t, err, tc.in)
		assert.True(t, tc.want.Equal(got), "%s: want %s got %s", tc.in, tc.want, got)
	}

	_, err := ParseLiteral("12abc")
	require.ErrorIs(t, err, ErrValue)
}

func TestParseAs_UsesTargetKind(t *testing.T) {
	e, err := ParseAs(KindChar, "42")
	require.NoError(t, err)
	assert.Equal(t, KindChar, e.Kind())
	assert.Equal(t, "42", e.Chars())

	e, err = ParseAs(KindBit, "0101")
	require.NoError(t, err)
	assert.Equal(t, "0101", e.BitStr())

	e, err = ParseAs(KindReal, "3")
	require.NoError(t, err)
	assert.Equal(t, 3.0, e.Real())

	_, err = ParseAs(KindInteger, "alice")
	require.ErrorIs(t, err, ErrType)
}

func TestParseAs_BitLiteralIsNotChar(t *testing.T) {
	_, err := ParseAs(KindChar, "b'01'")
	require.ErrorIs(t, err, ErrType)

	// quoted, it is just text
	e, err := ParseAs(KindChar, "'b01'")
	require.NoError(t, err)
	assert.Equal(t, "b01", e.Chars())
}

func TestCharLengthCountsRunes(t *testing.T) {
	e := CharValue("héé")
	assert.Equal(t, 3, e.Len())
	require.NoError(t, Char(3).Check(e))
	require.ErrorIs(t, Char(2).Check(e), ErrType)
	assert.Equal(t, 2, MustBitValue("01").Len())
}

func TestType_ParseAndCheck(t *testing.T) {
	typ, err := ParseType("CHAR(10)")
	require.NoError(t, err)
	assert.Equal(t, Char(10), typ)
	assert.Equal(t, "char(10)", typ.String())

	require.NoError(t, typ.Check(CharValue("alice")))
	require.ErrorIs(t, typ.Check(CharValue("much too long")), ErrType)
	require.ErrorIs(t, typ.Check(IntValue(1)), ErrType)

	typ, err = ParseType("bit(3)")
	require.NoError(t, err)
	require.NoError(t, typ.Check(MustBitValue("101")))
	require.ErrorIs(t, typ.Check(MustBitValue("1")), ErrType)

	_, err = ParseType("varchar(3)")
	require.ErrorIs(t, err, ErrSchema)
	_, err = ParseType("bit(0)")
	require.ErrorIs(t, err, ErrSchema)

	zero, err := ParseType("char(0)")
	require.NoError(t, err)
	require.NoError(t, zero.Check(CharValue("")))
}
