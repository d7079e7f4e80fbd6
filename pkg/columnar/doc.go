// Package columnar stores items column by column. Each column holds values of
// a single kind plus a validity bitmap marking rows that carry no value.
//
// # Basic Usage
//
//	store := columnar.NewColumnStore(log)
//	if err := store.CreateColumns(schema.Fields()); err != nil {
//	    log.Warn("some fields will not be stored", zap.Error(err))
//	}
//	store.AppendRow(item.Values(it))
//
//	src := store.NewRowSource()
//	for {
//	    row, ok := src.Next()
//	    if !ok {
//	        break
//	    }
//	    // write row
//	}
//
// # Widening
//
// A store may replace its column set once with a wider one (Widen). Existing
// columns must survive with the same kind or a kind their values convert to:
// int32 to int64, int32 or float32 to float64, and anything to string. New
// columns read as null for rows stored before the widening.
//
// # Thread Safety
//
// ColumnStore is safe for concurrent use. A RowSource belongs to one reader.
package columnar
