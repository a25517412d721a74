// Package elfx provides helpers for opening ELF binaries, locating sections, and mapping virtual addresses to file offsets.
package elfx

import (
	"debug/elf"
	"fmt"
	"os"
	"sort"
	"strings"
	"syscall"
)

type Image struct {
	Path     string
	File     *elf.File
	All      []byte
	Loads    []Seg
	Sections []Section // allocated sections, sorted by VA
	Text     Section
	Rodata   Section
	Symbols  []Sym // defined symbols, sorted by address
	f        *os.File
}

type Seg struct {
	Vaddr, Off, Filesz uint64
	Flags              elf.ProgFlag
}

type Section struct {
	Name          string
	VA, Off, Size uint64
}

func (s Section) Contains(va uint64) bool {
	return s.Size != 0 && va >= s.VA && va < s.VA+s.Size
}

type Sym struct {
	Name string
	Addr uint64
	Size uint64
	Func bool
}

func Open(path string) (*Image, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open elf: %w", err)
	}

	of, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open file: %w", err)
	}

	fi, err := of.Stat()
	if err != nil {
		of.Close()
		f.Close()
		return nil, fmt.Errorf("stat file: %w", err)
	}

	all, err := syscall.Mmap(int(of.Fd()), 0, int(fi.Size()), syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		of.Close()
		f.Close()
		return nil, fmt.Errorf("mmap file: %w", err)
	}

	im := &Image{Path: path, File: f, All: all, f: of}
	for _, p := range f.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		im.Loads = append(im.Loads, Seg{
			Vaddr:  uint64(p.Vaddr),
			Off:    uint64(p.Off),
			Filesz: uint64(p.Filesz),
			Flags:  p.Flags,
		})
	}

	// Use true sections if present.
	for _, s := range f.Sections {
		if s.Flags&elf.SHF_ALLOC == 0 || s.Size == 0 {
			continue
		}
		sec := Section{s.Name, s.Addr, s.Offset, s.Size}
		im.Sections = append(im.Sections, sec)
		switch s.Name {
		case ".text":
			im.Text = sec
		case ".rodata":
			im.Rodata = sec
		}
	}
	sort.Slice(im.Sections, func(i, j int) bool { return im.Sections[i].VA < im.Sections[j].VA })

	im.loadSymbols()

	// Fallbacks if stripped.
	if im.Text.Size == 0 {
		for _, l := range im.Loads {
			if l.Flags&elf.PF_X != 0 && l.Filesz > 0 {
				im.Text = Section{"LOAD(exec)", l.Vaddr, l.Off, l.Filesz}
				break
			}
		}
	}
	if im.Rodata.Size == 0 {
		for _, l := range im.Loads {
			if (l.Flags&elf.PF_R != 0) && (l.Flags&elf.PF_W == 0) && l.Filesz > 0 {
				im.Rodata = Section{"LOAD(ro)", l.Vaddr, l.Off, l.Filesz}
				break
			}
		}
	}
	return im, nil
}

// Close unmaps the memory and closes the underlying files.
func (im *Image) Close() error {
	var err1, err2 error
	if im.All != nil {
		err1 = syscall.Munmap(im.All)
		im.All = nil
	}
	if im.f != nil {
		err2 = im.f.Close()
		im.f = nil
	}
	if im.File != nil {
		err3 := im.File.Close()
		if err3 != nil && err2 == nil {
			err2 = err3
		}
		im.File = nil
	}
	if err1 != nil {
		return err1
	}
	return err2
}

// Bits reports the address width of the binary in bits.
func (im *Image) Bits() int {
	if im.File != nil && im.File.Class == elf.ELFCLASS32 {
		return 32
	}
	return 64
}

// VA2Off translates a virtual address into a file offset
// using PT_LOAD segments. It returns false if VA is unmapped.
func (im *Image) VA2Off(va uint64) (uint64, bool) {
	for _, l := range im.Loads {
		if va >= l.Vaddr && va < l.Vaddr+l.Filesz {
			return l.Off + (va - l.Vaddr), true
		}
	}
	return 0, false
}

// SliceVA returns a subslice of the mapped file corresponding to the virtual address range [va, va+size).
// It returns (nil, false) if the VA is unmapped or the range is out of bounds.
func (im *Image) SliceVA(va uint64, size uint64) ([]byte, bool) {
	off, ok := im.VA2Off(va)
	if !ok {
		return nil, false
	}
	if size == 0 {
		return []byte{}, true
	}
	end := off + size
	if end > uint64(len(im.All)) {
		return nil, false
	}
	return im.All[off:end], true
}

// ReadBytesVA reads exactly size bytes from a virtual address.
// Returns false if VA is unmapped or size extends beyond file bounds.
func (im *Image) ReadBytesVA(va uint64, size int) ([]byte, bool) {
	if size <= 0 {
		return []byte{}, true
	}
	return im.SliceVA(va, uint64(size))
}

// SectionAt returns the allocated section covering va.
func (im *Image) SectionAt(va uint64) (Section, bool) {
	i := sort.Search(len(im.Sections), func(i int) bool {
		return im.Sections[i].VA+im.Sections[i].Size > va
	})
	if i < len(im.Sections) && im.Sections[i].Contains(va) {
		return im.Sections[i], true
	}
	return Section{}, false
}

// InRodata reports whether the VA lies within the chosen
// read-only data region.
func (im *Image) InRodata(va uint64) bool {
	return im.Rodata.Contains(va)
}

// InText reports whether the VA lies within the executable region.
func (im *Image) InText(va uint64) bool {
	return im.Text.Contains(va)
}

// CStringVA reads a NUL-terminated string at va, up to max bytes.
// Returns false if the VA is unmapped or the bytes are not printable ASCII.
func (im *Image) CStringVA(va uint64, max int) (string, bool) {
	off, ok := im.VA2Off(va)
	if !ok {
		return "", false
	}
	end := off + uint64(max)
	if end > uint64(len(im.All)) {
		end = uint64(len(im.All))
	}
	data := im.All[off:end]
	for i, b := range data {
		if b == 0 {
			if i == 0 {
				return "", false
			}
			return string(data[:i]), true
		}
		if b < 0x20 || b > 0x7e {
			return "", false
		}
	}
	return "", false
}

// loadSymbols merges static and dynamic symbol tables into a single
// address-sorted list of defined symbols.
func (im *Image) loadSymbols() {
	seen := make(map[uint64]bool)

	add := func(syms []elf.Symbol) {
		for _, sym := range syms {
			// Skip undefined symbols and mapping markers.
			if sym.Value == 0 || sym.Name == "" || strings.HasPrefix(sym.Name, "$") {
				continue
			}
			if seen[sym.Value] {
				continue
			}
			seen[sym.Value] = true
			im.Symbols = append(im.Symbols, Sym{
				Name: sym.Name,
				Addr: sym.Value,
				Size: sym.Size,
				Func: elf.ST_TYPE(sym.Info) == elf.STT_FUNC,
			})
		}
	}

	if syms, err := im.File.Symbols(); err == nil {
		add(syms)
	}
	if dynsyms, err := im.File.DynamicSymbols(); err == nil {
		add(dynsyms)
	}

	sort.Slice(im.Symbols, func(i, j int) bool { return im.Symbols[i].Addr < im.Symbols[j].Addr })
}

// SymbolAt returns the symbol defined exactly at va.
func (im *Image) SymbolAt(va uint64) (Sym, bool) {
	i := sort.Search(len(im.Symbols), func(i int) bool { return im.Symbols[i].Addr >= va })
	if i < len(im.Symbols) && im.Symbols[i].Addr == va {
		return im.Symbols[i], true
	}
	return Sym{}, false
}

// NearestSymbol returns the last symbol at or before va.
func (im *Image) NearestSymbol(va uint64) (Sym, bool) {
	i := sort.Search(len(im.Symbols), func(i int) bool { return im.Symbols[i].Addr > va })
	if i == 0 {
		return Sym{}, false
	}
	return im.Symbols[i-1], true
}

// FuncSymbols returns the function symbols inside the executable region,
// sorted by address.
func (im *Image) FuncSymbols() []Sym {
	var funcs []Sym
	for _, sym := range im.Symbols {
		if sym.Func && im.InText(sym.Addr) {
			funcs = append(funcs, sym)
		}
	}
	return funcs
}
