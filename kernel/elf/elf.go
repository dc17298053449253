// Package elf implements the minimal ELF64 little-endian reader the kernel
// needs to load application images: just enough of the format to find LOAD
// program headers and the entry point. Go's debug/elf cannot be used here:
// it is built around io.ReaderAt/os.File and pulls in the os package, which
// does not exist in a freestanding binary. This reader works directly off
// an in-memory byte slice instead, the same way tools/redirects reads ELF
// headers with encoding/binary rather than letting debug/elf touch the
// filesystem.
package elf

import (
	"encoding/binary"

	"github.com/gopher-riscv/sv39kernel/kernel"
)

var (
	// ErrBadMagic is returned when the input does not begin with the ELF
	// magic bytes 0x7F 'E' 'L' 'F'.
	ErrBadMagic = &kernel.Error{Module: "elf", Message: "invalid elf: bad magic"}
	// ErrNotELF64 is returned for anything other than a 64-bit,
	// little-endian ELF file; this kernel only runs on riscv64.
	ErrNotELF64 = &kernel.Error{Module: "elf", Message: "invalid elf: expected 64-bit little-endian class"}
	// ErrTruncated is returned when the byte slice is too short to
	// contain the header structures its own fields describe.
	ErrTruncated = &kernel.Error{Module: "elf", Message: "invalid elf: truncated header or program header table"}
)

// ProgramHeaderType identifies the kind of segment a program header
// describes. Only PTLoad is meaningful to this loader.
type ProgramHeaderType uint32

// PTLoad marks a program header as a loadable segment.
const PTLoad ProgramHeaderType = 1

// Segment access permission bits, as stored in a program header's p_flags
// field.
const (
	PFExec  = 1 << 0
	PFWrite = 1 << 1
	PFRead  = 1 << 2
)

// ProgramHeader is the subset of an Elf64_Phdr this kernel needs.
type ProgramHeader struct {
	Type       ProgramHeaderType
	Flags      uint32
	Offset     uint64
	VirtAddr   uint64
	FileSize   uint64
	MemSize    uint64
}

// File is a parsed view over an in-memory ELF64 image. It keeps a reference
// to the original bytes; ProgramHeader.Offset/FileSize index back into Data.
type File struct {
	Entry          uint64
	ProgramHeaders []ProgramHeader
	Data           []byte
}

const (
	magic0, magic1, magic2, magic3 = 0x7F, 'E', 'L', 'F'

	elfClass64      = 2
	elfDataLittle   = 1
	ehPhoffOffset   = 0x20
	ehEntryOffset   = 0x18
	ehPhentsizeOff  = 0x36
	ehPhnumOffset   = 0x38
	ehHeaderSize    = 0x40
	phTypeOffset    = 0x00
	phFlagsOffset   = 0x04
	phOffsetOffset  = 0x08
	phVAddrOffset   = 0x10
	phFileSzOffset  = 0x20
	phMemSzOffset   = 0x28
)

// Parse validates the ELF64 header in data and decodes its program header
// table.
func Parse(data []byte) (*File, *kernel.Error) {
	if len(data) < ehHeaderSize {
		return nil, ErrTruncated
	}
	if data[0] != magic0 || data[1] != magic1 || data[2] != magic2 || data[3] != magic3 {
		return nil, ErrBadMagic
	}
	if data[4] != elfClass64 || data[5] != elfDataLittle {
		return nil, ErrNotELF64
	}

	entry := binary.LittleEndian.Uint64(data[ehEntryOffset:])
	phoff := binary.LittleEndian.Uint64(data[ehPhoffOffset:])
	phentsize := binary.LittleEndian.Uint16(data[ehPhentsizeOff:])
	phnum := binary.LittleEndian.Uint16(data[ehPhnumOffset:])

	f := &File{Entry: entry, Data: data}
	for i := uint16(0); i < phnum; i++ {
		base := phoff + uint64(i)*uint64(phentsize)
		if base+uint64(phentsize) > uint64(len(data)) {
			return nil, ErrTruncated
		}
		raw := data[base:]

		ph := ProgramHeader{
			Type:     ProgramHeaderType(binary.LittleEndian.Uint32(raw[phTypeOffset:])),
			Flags:    binary.LittleEndian.Uint32(raw[phFlagsOffset:]),
			Offset:   binary.LittleEndian.Uint64(raw[phOffsetOffset:]),
			VirtAddr: binary.LittleEndian.Uint64(raw[phVAddrOffset:]),
			FileSize: binary.LittleEndian.Uint64(raw[phFileSzOffset:]),
			MemSize:  binary.LittleEndian.Uint64(raw[phMemSzOffset:]),
		}
		f.ProgramHeaders = append(f.ProgramHeaders, ph)
	}

	return f, nil
}

// FileBytes returns the segment's on-disk bytes: data[Offset:Offset+FileSize].
// When FileSize < MemSize the remainder is implicitly zero-filled by the
// caller's fresh, zeroed backing frames.
func (p ProgramHeader) FileBytes(f *File) ([]byte, *kernel.Error) {
	end := p.Offset + p.FileSize
	if end > uint64(len(f.Data)) {
		return nil, ErrTruncated
	}
	return f.Data[p.Offset:end], nil
}
