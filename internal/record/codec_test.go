package record

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestElement_EncodeDecodeBoundaries(t *testing.T) {
	elems := []Element{
		IntValue(0),
		IntValue(-9223372036854775808),
		BoolValue(true),
		RealValue(0.1),
		RealValue(-1e300),
		CharValue(""), // char(0)
		CharValue("with: colon"),
		MustBitValue("1"), // bit(1)
		MustBitValue("0000000011111111"),
	}
	for _, e := range elems {
		enc := e.Encode()
		got, err := DecodeElement(enc)
		require.NoError(t, err, enc)
		assert.True(t, e.Equal(got), "%s round-tripped to %s", enc, got.Encode())
		assert.Equal(t, enc, got.Encode())
	}
}

func TestDecodeElement_Malformed(t *testing.T) {
	for _, s := range []string{"", "i", "i:x", "q:1", "x:012", "b:maybe"} {
		_, err := DecodeElement(s)
		require.ErrorIs(t, err, ErrValue, s)
	}
}

func TestRow_JSONRoundTrip(t *testing.T) {
	r := Row{"id": IntValue(1), "name": CharValue("alice"), "flags": MustBitValue("1")}
	b, err := json.Marshal(r)
	require.NoError(t, err)

	var got Row
	require.NoError(t, json.Unmarshal(b, &got))
	assert.True(t, r.Equal(got))
}

func TestTableData_RoundTrip(t *testing.T) {
	tbl := NewTable(Schema{Cols: []Column{
		{Name: "id", Type: Integer, PrimaryKey: true},
		{Name: "name", Type: Char(0)},
		{Name: "b", Type: Bit(1)},
	}})
	tbl, _ = tbl.Insert(Row{"id": IntValue(1), "name": CharValue(""), "b": MustBitValue("0")})
	tbl, _ = tbl.Insert(Row{"id": IntValue(2), "b": MustBitValue("1")})
	tbl = tbl.Remove(1)

	b, err := json.Marshal(tbl.Data())
	require.NoError(t, err)

	var d TableData
	require.NoError(t, json.Unmarshal(b, &d))
	got, err := FromData(d)
	require.NoError(t, err)
	assert.True(t, tbl.Equal(got), "want:\n%s\ngot:\n%s", tbl, got)
	assert.Equal(t, RowID(3), got.NextID())
}

func TestFromData_RejectsBrokenInvariants(t *testing.T) {
	cols := []Column{{Name: "id", Type: Integer, PrimaryKey: true}}

	_, err := FromData(TableData{Columns: cols, Rows: []RowData{
		{ID: 1, Fields: Row{"id": IntValue(1)}},
		{ID: 2, Fields: Row{"id": IntValue(1)}},
	}})
	require.ErrorIs(t, err, ErrSchema)

	_, err = FromData(TableData{Columns: cols, Rows: []RowData{
		{ID: 1, Fields: Row{"id": CharValue("x")}},
	}})
	require.ErrorIs(t, err, ErrType)

	_, err = FromData(TableData{Columns: cols, Rows: []RowData{
		{ID: 1, Fields: Row{"nope": IntValue(1)}},
	}})
	require.ErrorIs(t, err, ErrSchema)
}
