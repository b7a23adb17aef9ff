package documenttest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"maps"
	"slices"
	"unicode/utf16"
)

// XLSSheet is one worksheet of a MinimalXLS workbook. Rows maps a row index
// to its cells; rows absent from the map have no record at all. Cells may be
// string, int, float64, SharedString or nil (no cell record).
type XLSSheet struct {
	Name string
	Rows map[int][]any
}

// SharedString is a cell pointing straight at a shared string table index.
// An index past the table yields a broken workbook.
type SharedString uint32

const (
	biffBOF        = 0x0809
	biffEOF        = 0x000A
	biffSST        = 0x00FC
	biffBoundSheet = 0x0085
	biffRow        = 0x0208
	biffLabelSST   = 0x00FD
	biffNumber     = 0x0203

	biffVersion   = 0x0600
	bofGlobals    = 0x0005
	bofWorksheet  = 0x0010
	unicodeString = 0x01
)

// MinimalXLS builds a BIFF8 workbook wrapped in a compound file.
func MinimalXLS(sheets ...XLSSheet) []byte {
	return compoundFile("Workbook", biffWorkbook(sheets))
}

func biffWorkbook(sheets []XLSSheet) []byte {
	var sst []string
	index := make(map[string]uint32)
	labels := 0
	for _, sh := range sheets {
		for _, cells := range sh.Rows {
			for _, c := range cells {
				s, ok := c.(string)
				if !ok {
					continue
				}
				labels++
				if _, seen := index[s]; !seen {
					index[s] = uint32(len(sst))
					sst = append(sst, s)
				}
			}
		}
	}

	bodies := make([][]byte, len(sheets))
	for i, sh := range sheets {
		bodies[i] = biffSheet(sh, index)
	}

	offsets := make([]uint32, len(sheets))
	globals := biffGlobals(sheets, sst, labels, offsets)
	pos := uint32(len(globals))
	for i, b := range bodies {
		offsets[i] = pos
		pos += uint32(len(b))
	}
	globals = biffGlobals(sheets, sst, labels, offsets)

	var buf bytes.Buffer
	buf.Write(globals)
	for _, b := range bodies {
		buf.Write(b)
	}
	return buf.Bytes()
}

func biffGlobals(sheets []XLSSheet, sst []string, labels int, offsets []uint32) []byte {
	var buf bytes.Buffer
	writeRecord(&buf, biffBOF, bofBody(bofGlobals))

	var table bytes.Buffer
	put(&table, uint32(labels), uint32(len(sst)))
	for _, s := range sst {
		units := utf16.Encode([]rune(s))
		put(&table, uint16(len(units)), byte(unicodeString), units)
	}
	writeRecord(&buf, biffSST, table.Bytes())

	for i, sh := range sheets {
		units := utf16.Encode([]rune(sh.Name))
		var bs bytes.Buffer
		put(&bs, offsets[i], byte(0), byte(0), byte(len(units)), byte(unicodeString), units)
		writeRecord(&buf, biffBoundSheet, bs.Bytes())
	}

	writeRecord(&buf, biffEOF, nil)
	return buf.Bytes()
}

func biffSheet(sh XLSSheet, index map[string]uint32) []byte {
	var buf bytes.Buffer
	writeRecord(&buf, biffBOF, bofBody(bofWorksheet))

	rows := slices.Sorted(maps.Keys(sh.Rows))
	for _, r := range rows {
		var row bytes.Buffer
		put(&row, uint16(r), uint16(0), uint16(len(sh.Rows[r])), uint16(0x00FF), uint16(0), uint16(0), uint32(0x0100))
		writeRecord(&buf, biffRow, row.Bytes())
	}

	for _, r := range rows {
		for c, v := range sh.Rows[r] {
			var cell bytes.Buffer
			switch v := v.(type) {
			case nil:
				continue
			case string:
				put(&cell, uint16(r), uint16(c), uint16(0), index[v])
				writeRecord(&buf, biffLabelSST, cell.Bytes())
			case SharedString:
				put(&cell, uint16(r), uint16(c), uint16(0), uint32(v))
				writeRecord(&buf, biffLabelSST, cell.Bytes())
			case int:
				put(&cell, uint16(r), uint16(c), uint16(0), float64(v))
				writeRecord(&buf, biffNumber, cell.Bytes())
			case float64:
				put(&cell, uint16(r), uint16(c), uint16(0), v)
				writeRecord(&buf, biffNumber, cell.Bytes())
			default:
				panic(fmt.Sprintf("documenttest: unsupported xls cell %T", v))
			}
		}
	}

	writeRecord(&buf, biffEOF, nil)
	return buf.Bytes()
}

func bofBody(kind uint16) []byte {
	var buf bytes.Buffer
	put(&buf, uint16(biffVersion), kind, uint16(0), uint16(0), uint32(0), uint32(biffVersion))
	return buf.Bytes()
}

func writeRecord(buf *bytes.Buffer, id uint16, body []byte) {
	put(buf, id, uint16(len(body)))
	buf.Write(body)
}

func put(buf *bytes.Buffer, values ...any) {
	for _, v := range values {
		if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
			panic(err)
		}
	}
}

const (
	cfbSectorSize    = 512
	cfbStreamCutoff  = 4096
	cfbEntriesPerFAT = cfbSectorSize / 4

	cfbFATSector  = 0xFFFFFFFD
	cfbEndOfChain = 0xFFFFFFFE
	cfbFree       = 0xFFFFFFFF
	cfbNoStream   = 0xFFFFFFFF

	cfbStorageRoot = 5
	cfbStream      = 2
)

type cfbHeader struct {
	Signature          [8]byte
	CLSID              [16]byte
	MinorVersion       uint16
	MajorVersion       uint16
	ByteOrder          uint16
	SectorShift        uint16
	MiniSectorShift    uint16
	Reserved           [6]byte
	DirSectors         uint32
	FATSectors         uint32
	FirstDirSector     uint32
	TransactionSig     uint32
	MiniStreamCutoff   uint32
	FirstMiniFATSector uint32
	MiniFATSectors     uint32
	FirstDIFATSector   uint32
	DIFATSectors       uint32
	DIFAT              [109]uint32
}

type cfbDirEntry struct {
	Name     [32]uint16
	NameLen  uint16
	Type     byte
	Color    byte
	Left     uint32
	Right    uint32
	Child    uint32
	CLSID    [16]byte
	State    uint32
	Created  uint64
	Modified uint64
	Start    uint32
	Size     uint32
	SizeHigh uint32
}

func newDirEntry(name string, kind byte, start, size uint32) cfbDirEntry {
	e := cfbDirEntry{Type: kind, Color: 1, Left: cfbNoStream, Right: cfbNoStream, Child: cfbNoStream, Start: start, Size: size}
	units := utf16.Encode([]rune(name))
	copy(e.Name[:], units)
	e.NameLen = uint16((len(units) + 1) * 2)
	return e
}

// compoundFile lays out one stream in a version 3 compound file: sector 0
// holds the FAT, sector 1 the directory and the stream follows contiguously.
// The stream is padded past the mini stream cutoff so no mini FAT is needed.
func compoundFile(name string, stream []byte) []byte {
	size := max(len(stream), cfbStreamCutoff)
	size = (size + cfbSectorSize - 1) / cfbSectorSize * cfbSectorSize
	padded := make([]byte, size)
	copy(padded, stream)

	sectors := size / cfbSectorSize
	if 2+sectors > cfbEntriesPerFAT {
		panic("documenttest: xls fixture too large")
	}

	header := cfbHeader{
		Signature:          [8]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1},
		MinorVersion:       0x003E,
		MajorVersion:       0x0003,
		ByteOrder:          0xFFFE,
		SectorShift:        9,
		MiniSectorShift:    6,
		FATSectors:         1,
		FirstDirSector:     1,
		MiniStreamCutoff:   cfbStreamCutoff,
		FirstMiniFATSector: cfbEndOfChain,
		FirstDIFATSector:   cfbEndOfChain,
	}
	for i := range header.DIFAT {
		header.DIFAT[i] = cfbFree
	}
	header.DIFAT[0] = 0

	var fat [cfbEntriesPerFAT]uint32
	for i := range fat {
		fat[i] = cfbFree
	}
	fat[0] = cfbFATSector
	fat[1] = cfbEndOfChain
	for i := 0; i < sectors; i++ {
		fat[2+i] = uint32(3 + i)
	}
	fat[2+sectors-1] = cfbEndOfChain

	root := newDirEntry("Root Entry", cfbStorageRoot, cfbEndOfChain, 0)
	root.Child = 1
	dir := [4]cfbDirEntry{
		root,
		newDirEntry(name, cfbStream, 2, uint32(size)),
	}

	var buf bytes.Buffer
	put(&buf, header, fat, dir)
	buf.Write(padded)
	return buf.Bytes()
}
