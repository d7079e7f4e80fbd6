package columnar

import (
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/kscrap/kscrap/pkg/item"
	"github.com/kscrap/kscrap/pkg/kscraperrors"
)

var baseSpecs = []item.FieldSpec{
	{Name: "tipo", Kind: item.KindString},
	{Name: "calle", Kind: item.KindString},
}

var wideSpecs = []item.FieldSpec{
	{Name: "tipo", Kind: item.KindString},
	{Name: "calle", Kind: item.KindString},
	{Name: "precio", Kind: item.KindFloat64},
	{Name: "numHab", Kind: item.KindInt32},
}

func newStore(t *testing.T, specs []item.FieldSpec) *ColumnStore {
	t.Helper()
	s := NewColumnStore(zaptest.NewLogger(t))
	require.NoError(t, s.CreateColumns(specs))
	return s
}

func TestCreateColumnsSkipsUnsupported(t *testing.T) {
	s := NewColumnStore(zaptest.NewLogger(t))
	err := s.CreateColumns([]item.FieldSpec{
		{Name: "calle", Kind: item.KindString},
		{Name: "hogar", Kind: item.KindUnsupported},
		{Name: "m2", Kind: item.KindInt32},
		{Name: "calle", Kind: item.KindInt64},
	})

	require.Error(t, err)
	assert.True(t, kscraperrors.IsType(err, kscraperrors.ErrorTypeSchema))
	assert.Contains(t, err.Error(), "hogar,calle")
	assert.Equal(t, []string{"calle", "m2"}, s.ColumnNames())
	assert.Equal(t, []item.FieldSpec{
		{Name: "calle", Kind: item.KindString},
		{Name: "m2", Kind: item.KindInt32},
	}, s.Fields())
}

func TestAppendRow(t *testing.T) {
	s := newStore(t, []item.FieldSpec{
		{Name: "calle", Kind: item.KindString},
		{Name: "m2", Kind: item.KindInt32},
		{Name: "precio", Kind: item.KindFloat64},
		{Name: "garaje", Kind: item.KindBool},
	})

	s.AppendRow(map[string]string{"calle": "Sol", "m2": "100", "precio": "300000", "garaje": "true"})
	s.AppendRow(map[string]string{"calle": "Luna", "m2": "many"})

	assert.Equal(t, 2, s.RowCount())
	assert.Equal(t, 2, s.MinRowCount())

	row, ok := s.Row(0)
	require.True(t, ok)
	assert.Equal(t, []string{"Sol", "100", "300000.0", "true"}, row)

	row, ok = s.Row(1)
	require.True(t, ok)
	assert.Equal(t, []string{"Luna", "", "", ""}, row)

	_, ok = s.Row(2)
	assert.False(t, ok)
}

func TestWiden(t *testing.T) {
	s := newStore(t, baseSpecs)
	s.AppendRow(map[string]string{"tipo": "piso", "calle": "Sol"})

	require.True(t, s.Widen(wideSpecs))
	assert.True(t, s.Widened())
	assert.Equal(t, []string{"tipo", "calle", "precio", "numHab"}, s.ColumnNames())

	s.AppendRow(map[string]string{"tipo": "casa", "calle": "Luna", "precio": "1.5", "numHab": "3"})

	row, _ := s.Row(0)
	assert.Equal(t, []string{"piso", "Sol", "", ""}, row)
	row, _ = s.Row(1)
	assert.Equal(t, []string{"casa", "Luna", "1.5", "3"}, row)

	assert.False(t, s.Widen(append(wideSpecs, item.FieldSpec{Name: "extra", Kind: item.KindBool})))
	assert.Equal(t, 4, s.ColumnCount())
}

func TestWidenAppendsNewColumns(t *testing.T) {
	s := newStore(t, baseSpecs)
	s.AppendRow(map[string]string{"tipo": "piso", "calle": "Sol"})

	require.True(t, s.Widen([]item.FieldSpec{
		{Name: "precio", Kind: item.KindFloat64},
		{Name: "calle", Kind: item.KindString},
		{Name: "extra", Kind: item.KindBool},
		{Name: "tipo", Kind: item.KindString},
	}))
	assert.Equal(t, []string{"tipo", "calle", "precio", "extra"}, s.ColumnNames())

	s.AppendRow(map[string]string{"tipo": "casa", "calle": "Luna", "precio": "2", "extra": "true"})
	row, _ := s.Row(0)
	assert.Equal(t, []string{"piso", "Sol", "", ""}, row)
	row, _ = s.Row(1)
	assert.Equal(t, []string{"casa", "Luna", "2.0", "true"}, row)
}

func TestMemoryUsage(t *testing.T) {
	s := newStore(t, wideSpecs)
	empty := s.MemoryUsage()

	for i := 0; i < 100; i++ {
		s.AppendRow(map[string]string{"tipo": "piso", "calle": "calle" + strconv.Itoa(i), "precio": "1", "numHab": "2"})
	}
	full := s.MemoryUsage()
	assert.Greater(t, full, empty)

	s.Clear()
	assert.Less(t, s.MemoryUsage(), full)
}

func TestWidenRejectsIncompatible(t *testing.T) {
	tests := []struct {
		name  string
		specs []item.FieldSpec
	}{
		{
			name:  "drops a column",
			specs: []item.FieldSpec{{Name: "tipo", Kind: item.KindString}},
		},
		{
			name: "narrows a kind",
			specs: []item.FieldSpec{
				{Name: "tipo", Kind: item.KindString},
				{Name: "calle", Kind: item.KindInt32},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t, baseSpecs)
			s.AppendRow(map[string]string{"tipo": "piso", "calle": "Sol"})

			assert.False(t, s.Widen(tt.specs))
			assert.False(t, s.Widened())
			assert.Equal(t, []string{"tipo", "calle"}, s.ColumnNames())
			row, _ := s.Row(0)
			assert.Equal(t, []string{"piso", "Sol"}, row)

			assert.True(t, s.Widen(wideSpecs))
		})
	}
}

func TestWidenConvertsKinds(t *testing.T) {
	s := newStore(t, []item.FieldSpec{
		{Name: "m2", Kind: item.KindInt32},
		{Name: "ratio", Kind: item.KindFloat32},
		{Name: "ok", Kind: item.KindBool},
	})
	s.AppendRow(map[string]string{"m2": "90", "ratio": "0.1", "ok": "true"})
	s.AppendRow(map[string]string{"m2": "70"})

	require.True(t, s.Widen([]item.FieldSpec{
		{Name: "m2", Kind: item.KindInt64},
		{Name: "ratio", Kind: item.KindFloat64},
		{Name: "ok", Kind: item.KindString},
	}))

	assert.Equal(t, []item.FieldSpec{
		{Name: "m2", Kind: item.KindInt64},
		{Name: "ratio", Kind: item.KindFloat64},
		{Name: "ok", Kind: item.KindString},
	}, s.Fields())
	row, _ := s.Row(0)
	assert.Equal(t, []string{"90", "0.1", "true"}, row)
	row, _ = s.Row(1)
	assert.Equal(t, []string{"70", "", ""}, row)
}

func TestCompatible(t *testing.T) {
	assert.True(t, Compatible(item.KindInt32, item.KindInt64))
	assert.True(t, Compatible(item.KindFloat32, item.KindFloat64))
	assert.True(t, Compatible(item.KindBool, item.KindString))
	assert.False(t, Compatible(item.KindInt64, item.KindInt32))
	assert.False(t, Compatible(item.KindInt64, item.KindFloat32))
	assert.False(t, Compatible(item.KindUnsupported, item.KindString))
}

func TestClearAndDiscard(t *testing.T) {
	s := newStore(t, wideSpecs)
	for i := 0; i < 130; i++ {
		s.AppendRow(map[string]string{"tipo": "t" + strconv.Itoa(i), "numHab": strconv.Itoa(i)})
	}

	s.Discard(65)
	assert.Equal(t, 65, s.RowCount())
	row, _ := s.Row(0)
	assert.Equal(t, []string{"t65", "", "", "65"}, row)

	s.Discard(64)
	row, _ = s.Row(0)
	assert.Equal(t, []string{"t129", "", "", "129"}, row)

	s.Clear()
	assert.Equal(t, 0, s.RowCount())
	assert.Equal(t, 4, s.ColumnCount())

	s.AppendRow(map[string]string{"tipo": "again"})
	row, _ = s.Row(0)
	assert.Equal(t, []string{"again", "", "", ""}, row)
}

func TestRecords(t *testing.T) {
	schema := item.MustDefine("listing", wideSpecs...)
	s := NewColumnStoreWithSchema(schema, zaptest.NewLogger(t))
	s.AppendRow(map[string]string{"tipo": "piso", "calle": "Sol", "precio": "10"})

	records, err := s.Records(schema)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, map[string]string{"tipo": "piso", "calle": "Sol", "precio": "10.0", "numHab": "0"}, item.Values(records[0]))
}

func TestConcurrentAppend(t *testing.T) {
	s := newStore(t, baseSpecs)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				s.AppendRow(map[string]string{"tipo": "x", "calle": "y"})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 800, s.RowCount())
	assert.Equal(t, 800, s.MinRowCount())
}
