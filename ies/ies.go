// Package ies reads IES data tables, the stat tables that accompany
// game assets packed in IPF archives.
//
// An IES file carries a fixed header, a column descriptor block, and a
// row block. Blocks are addressed from the end of the file, so a table
// can only be parsed from seekable storage. Column names and string
// cells are obfuscated by XORing each byte with 0x01.
package ies

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
)

// Sentinel errors returned by Parse.
var (
	// ErrTruncatedHeader is returned when the file is too small to hold
	// the fixed header.
	ErrTruncatedHeader = errors.New("ies: truncated header")

	// ErrTruncatedTable is returned when the column or row block is cut
	// short.
	ErrTruncatedTable = errors.New("ies: truncated table")

	// ErrCorruptTable is returned when the header describes blocks that
	// cannot exist, or a column uses an unknown type.
	ErrCorruptTable = errors.New("ies: corrupt table")
)

const (
	nameSize   = 128
	headerSize = nameSize + 16 + 12

	columnNameSize = 64
	columnSize     = 2*columnNameSize + 8

	rowHeaderSize = 6
)

// ColumnType identifies how a column's cells are encoded.
type ColumnType uint16

const (
	// ColumnNumber cells are float32 values.
	ColumnNumber ColumnType = 0

	// ColumnString cells are length-prefixed obfuscated strings.
	ColumnString ColumnType = 1

	// ColumnStringAux appears in some tables and decodes identically to
	// ColumnString.
	ColumnStringAux ColumnType = 2
)

// IsString reports whether cells of this type decode as strings.
func (t ColumnType) IsString() bool {
	return t == ColumnString || t == ColumnStringAux
}

func (t ColumnType) valid() bool {
	return t == ColumnNumber || t.IsString()
}

// Column describes one column of a table.
type Column struct {
	// Name is the column's primary name.
	Name string

	// Name2 is the column's secondary name, often a display alias.
	Name2 string

	// Type identifies the cell encoding.
	Type ColumnType

	// Position is the column's rank within its type group.
	Position int
}

// ValueKind identifies what a cell holds.
type ValueKind uint8

const (
	ValueNumber ValueKind = iota
	ValueString
)

// Value is a single table cell, either a number or a string.
type Value struct {
	text   string
	number float32
	kind   ValueKind
}

// NumberValue returns a numeric cell.
func NumberValue(f float32) Value {
	return Value{number: f, kind: ValueNumber}
}

// StringValue returns a string cell.
func StringValue(s string) Value {
	return Value{text: s, kind: ValueString}
}

// Kind returns what the cell holds.
func (v Value) Kind() ValueKind {
	return v.kind
}

// Number returns the numeric value. It is zero for string cells.
func (v Value) Number() float32 {
	return v.number
}

// Text returns the string value. It is empty for numeric cells.
func (v Value) Text() string {
	return v.text
}

// String renders the cell for display. Numbers that are integral render
// without a fraction, so 3.0 prints as "3" and 3.5 as "3.5".
func (v Value) String() string {
	if v.kind == ValueString {
		return v.text
	}
	f := float64(v.number)
	if f == math.Trunc(f) && !math.IsInf(f, 0) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 32)
}

// Table is a parsed IES data table.
type Table struct {
	// Name is the table name from the file header, NUL padding removed.
	Name string

	// Columns lists the columns in cell order: numeric columns ordered
	// by position, then string columns ordered by position.
	Columns []Column

	// Rows holds one cell per column, in column order.
	Rows [][]Value
}

// Open parses the IES table at path.
func Open(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open table: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse reads a complete IES table from r. The reader must span the
// whole file: block offsets are relative to its end.
func Parse(r io.ReadSeeker) (*Table, error) {
	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("measure table: %w", err)
	}
	if size < headerSize {
		return nil, fmt.Errorf("%w: %d bytes, need %d", ErrTruncatedHeader, size, headerSize)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind table: %w", err)
	}

	hdr, err := parseHeader(r)
	if err != nil {
		return nil, err
	}

	columnsOff := size - int64(hdr.resourceOffset) - int64(hdr.dataOffset)
	rowsOff := size - int64(hdr.resourceOffset)
	if columnsOff < 0 || rowsOff < columnsOff || rowsOff > size {
		return nil, fmt.Errorf("%w: blocks at %d and %d do not fit in %d bytes",
			ErrCorruptTable, columnsOff, rowsOff, size)
	}
	if int64(hdr.columnCount)*columnSize > rowsOff-columnsOff {
		return nil, fmt.Errorf("%w: %d columns cannot fit in %d bytes",
			ErrCorruptTable, hdr.columnCount, rowsOff-columnsOff)
	}

	t := &Table{Name: hdr.name}

	if _, err := r.Seek(columnsOff, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek columns: %w", err)
	}
	t.Columns, err = parseColumns(bufio.NewReader(r), hdr.columnCount)
	if err != nil {
		return nil, err
	}

	if _, err := r.Seek(rowsOff, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek rows: %w", err)
	}
	t.Rows, err = parseRows(bufio.NewReader(r), t.Columns, hdr)
	if err != nil {
		return nil, err
	}
	return t, nil
}

type header struct {
	name              string
	dataOffset        uint32
	resourceOffset    uint32
	fileSize          uint32
	rowCount          uint16
	columnCount       uint16
	intColumnCount    uint16
	stringColumnCount uint16
}

func parseHeader(r io.Reader) (header, error) {
	var h header
	buf := make([]byte, headerSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return h, fmt.Errorf("%w: %d byte header", ErrTruncatedHeader, headerSize)
	}

	h.name = string(bytes.Trim(buf[:nameSize], "\x00"))
	h.dataOffset = binary.LittleEndian.Uint32(buf[nameSize+4 : nameSize+8])
	h.resourceOffset = binary.LittleEndian.Uint32(buf[nameSize+8 : nameSize+12])
	h.fileSize = binary.LittleEndian.Uint32(buf[nameSize+12 : nameSize+16])
	h.rowCount = binary.LittleEndian.Uint16(buf[nameSize+18 : nameSize+20])
	h.columnCount = binary.LittleEndian.Uint16(buf[nameSize+20 : nameSize+22])
	h.intColumnCount = binary.LittleEndian.Uint16(buf[nameSize+22 : nameSize+24])
	h.stringColumnCount = binary.LittleEndian.Uint16(buf[nameSize+24 : nameSize+26])
	return h, nil
}

func parseColumns(r io.Reader, count uint16) ([]Column, error) {
	var nums, strs []Column
	buf := make([]byte, columnSize)
	for range count {
		if err := readBlock(r, buf, "column descriptor"); err != nil {
			return nil, err
		}

		c := Column{
			Name:     decodeString(buf[:columnNameSize]),
			Name2:    decodeString(buf[columnNameSize : 2*columnNameSize]),
			Type:     ColumnType(binary.LittleEndian.Uint16(buf[2*columnNameSize : 2*columnNameSize+2])),
			Position: int(binary.LittleEndian.Uint16(buf[2*columnNameSize+6 : 2*columnNameSize+8])),
		}
		if !c.Type.valid() {
			return nil, fmt.Errorf("%w: column %q has unknown type %d", ErrCorruptTable, c.Name, c.Type)
		}
		if c.Type == ColumnNumber {
			nums = append(nums, c)
		} else {
			strs = append(strs, c)
		}
	}

	byPosition := func(a, b Column) int { return a.Position - b.Position }
	slices.SortStableFunc(nums, byPosition)
	slices.SortStableFunc(strs, byPosition)
	return append(nums, strs...), nil
}

func parseRows(r io.Reader, columns []Column, hdr header) ([][]Value, error) {
	rows := make([][]Value, 0, hdr.rowCount)
	buf := make([]byte, rowHeaderSize)
	for range hdr.rowCount {
		if err := readBlock(r, buf, "row header"); err != nil {
			return nil, err
		}

		// The row header carries a row ID and the length of an optional
		// per-row annotation, which readers skip.
		skip := int64(binary.LittleEndian.Uint16(buf[4:6]))
		if err := discard(r, skip, "row annotation"); err != nil {
			return nil, err
		}

		row := make([]Value, 0, len(columns))
		for _, c := range columns {
			v, err := parseCell(r, c.Type)
			if err != nil {
				return nil, err
			}
			row = append(row, v)
		}

		// One flag byte trails each row per string column.
		if err := discard(r, int64(hdr.stringColumnCount), "row padding"); err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseCell(r io.Reader, t ColumnType) (Value, error) {
	if t == ColumnNumber {
		var buf [4]byte
		if err := readBlock(r, buf[:], "number cell"); err != nil {
			return Value{}, err
		}
		return NumberValue(math.Float32frombits(binary.LittleEndian.Uint32(buf[:]))), nil
	}

	var lenBuf [2]byte
	if err := readBlock(r, lenBuf[:], "string cell"); err != nil {
		return Value{}, err
	}
	n := binary.LittleEndian.Uint16(lenBuf[:])
	if n == 0 {
		return StringValue(""), nil
	}

	buf := make([]byte, n)
	if err := readBlock(r, buf, "string cell"); err != nil {
		return Value{}, err
	}
	return StringValue(decodeString(buf)), nil
}

// readBlock fills buf, mapping a premature end of input to
// ErrTruncatedTable. Other read failures pass through wrapped.
func readBlock(r io.Reader, buf []byte, what string) error {
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: %s cut short", ErrTruncatedTable, what)
		}
		return fmt.Errorf("read %s: %w", what, err)
	}
	return nil
}

func discard(r io.Reader, n int64, what string) error {
	if n == 0 {
		return nil
	}
	if _, err := io.CopyN(io.Discard, r, n); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: %s cut short", ErrTruncatedTable, what)
		}
		return fmt.Errorf("read %s: %w", what, err)
	}
	return nil
}

// decodeString strips NUL padding and reverses the XOR obfuscation.
func decodeString(b []byte) string {
	b = bytes.Trim(b, "\x00")
	out := make([]byte, len(b))
	for i, c := range b {
		out[i] = c ^ 0x01
	}
	return string(out)
}
