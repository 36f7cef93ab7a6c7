package frame

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/compress"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"

	"price-signal-lab/internal/domain"
)

// Record converts the frame to an Arrow record. Time columns become
// Date32 (day resolution), NaN floats become nulls.
// The caller must Release the record.
func (f *Frame) Record(mem memory.Allocator) arrow.Record {
	fields := make([]arrow.Field, 0, len(f.order))
	arrays := make([]arrow.Array, 0, len(f.order))

	for _, name := range f.order {
		c := f.cols[name]
		switch c.Kind {
		case KindString:
			b := array.NewStringBuilder(mem)
			b.AppendValues(c.str, nil)
			fields = append(fields, arrow.Field{Name: name, Type: arrow.BinaryTypes.String})
			arrays = append(arrays, b.NewArray())
			b.Release()
		case KindTime:
			b := array.NewDate32Builder(mem)
			for _, t := range c.tm {
				b.Append(arrow.Date32FromTime(t))
			}
			fields = append(fields, arrow.Field{Name: name, Type: arrow.FixedWidthTypes.Date32})
			arrays = append(arrays, b.NewArray())
			b.Release()
		case KindFloat:
			b := array.NewFloat64Builder(mem)
			valid := make([]bool, len(c.f))
			for i, v := range c.f {
				valid[i] = !math.IsNaN(v)
			}
			b.AppendValues(c.f, valid)
			fields = append(fields, arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Float64, Nullable: true})
			arrays = append(arrays, b.NewArray())
			b.Release()
		}
	}

	rec := array.NewRecord(arrow.NewSchema(fields, nil), arrays, int64(f.n))
	for _, a := range arrays {
		a.Release()
	}
	return rec
}

// WriteParquet encodes the frame as a snappy-compressed parquet file.
func (f *Frame) WriteParquet(w io.Writer) error {
	mem := memory.DefaultAllocator
	rec := f.Record(mem)
	defer rec.Release()

	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	fw, err := pqarrow.NewFileWriter(rec.Schema(), w, props, pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema()))
	if err != nil {
		return fmt.Errorf("create parquet writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		fw.Close()
		return fmt.Errorf("write parquet record: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

// SaveParquet writes the frame to path, creating parent directories.
func (f *Frame) SaveParquet(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := f.WriteParquet(out); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// ReadParquet decodes a parquet file written by WriteParquet (or any file
// whose columns are strings, dates, timestamps or numbers).
func ReadParquet(ctx context.Context, r parquet.ReaderAtSeeker) (*Frame, error) {
	mem := memory.DefaultAllocator
	tbl, err := pqarrow.ReadTable(ctx, r, parquet.NewReaderProperties(mem), pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		return nil, fmt.Errorf("read parquet: %w", err)
	}
	defer tbl.Release()

	n := int(tbl.NumRows())
	cols := make([]Column, 0, tbl.NumCols())
	for i := 0; i < int(tbl.NumCols()); i++ {
		col, err := fromArrow(tbl.Column(i), n)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	return New(cols...)
}

// LoadParquet reads a parquet file from disk.
func LoadParquet(ctx context.Context, path string) (*Frame, error) {
	in, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer in.Close()
	return ReadParquet(ctx, in)
}

func fromArrow(col *arrow.Column, n int) (Column, error) {
	name := col.Name()
	switch col.DataType().ID() {
	case arrow.STRING:
		out := make([]string, 0, n)
		for _, chunk := range col.Data().Chunks() {
			a := chunk.(*array.String)
			for i := 0; i < a.Len(); i++ {
				out = append(out, a.Value(i))
			}
		}
		return StringColumn(name, out), nil

	case arrow.DATE32:
		out := make([]time.Time, 0, n)
		for _, chunk := range col.Data().Chunks() {
			a := chunk.(*array.Date32)
			for i := 0; i < a.Len(); i++ {
				out = append(out, a.Value(i).ToTime())
			}
		}
		return TimeColumn(name, out), nil

	case arrow.TIMESTAMP:
		unit := col.DataType().(*arrow.TimestampType).Unit
		out := make([]time.Time, 0, n)
		for _, chunk := range col.Data().Chunks() {
			a := chunk.(*array.Timestamp)
			for i := 0; i < a.Len(); i++ {
				out = append(out, a.Value(i).ToTime(unit).UTC())
			}
		}
		return TimeColumn(name, out), nil

	case arrow.FLOAT64:
		out := make([]float64, 0, n)
		for _, chunk := range col.Data().Chunks() {
			a := chunk.(*array.Float64)
			for i := 0; i < a.Len(); i++ {
				if a.IsNull(i) {
					out = append(out, math.NaN())
					continue
				}
				out = append(out, a.Value(i))
			}
		}
		return FloatColumn(name, out), nil

	case arrow.INT64:
		out := make([]float64, 0, n)
		for _, chunk := range col.Data().Chunks() {
			a := chunk.(*array.Int64)
			for i := 0; i < a.Len(); i++ {
				if a.IsNull(i) {
					out = append(out, math.NaN())
					continue
				}
				out = append(out, float64(a.Value(i)))
			}
		}
		return FloatColumn(name, out), nil
	}
	return Column{}, fmt.Errorf("%w: column %s has unsupported parquet type %s", domain.ErrType, name, col.DataType())
}
