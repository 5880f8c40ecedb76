package stm32

import (
	"fmt"
	mmap "github.com/edsrzf/mmap-go"
	"log"
	"os"
	"unsafe"
)

const (
	MEM_FILE  = "/dev/mem"
	PAGE_SIZE = 4096 // Theoretically, we could get this via whatever getconf does
)

// mmapRegs is the production RegisterFile: the RCC block mapped from
// /dev/mem. Reads and writes land directly on the hardware registers, no
// shadow copy.
type mmapRegs struct {
	buf  mmap.MMap
	offs uintptr
}

// mapMem opens /dev/mem and uses mmap to map a given physical address into
// our address space. Since the mapping has to start at a page boundary, the
// physical address is rounded down to the nearest page boundary. mapMem
// returns the mapped memory and the offset that should be used to access it
// (=physAddr%PAGE_SIZE).
func mapMem(physAddr uintptr, size int) (mmap.MMap, uintptr, error) {
	f, err := os.OpenFile(MEM_FILE, os.O_RDWR|os.O_SYNC, os.ModePerm)
	if err != nil {
		return nil, 0, fmt.Errorf("couldn't open %s: %v", MEM_FILE, err)
	}

	pagemask := ^uintptr(PAGE_SIZE - 1)
	mapAddr := physAddr & pagemask
	size += int(physAddr - mapAddr)
	mm, err := mmap.MapRegion(f, size, mmap.RDWR, 0, int64(mapAddr))
	if err != nil {
		return nil, 0, fmt.Errorf("couldn't map region (%v, %v): %v", physAddr, size, err)
	}
	f.Close() // Ignore error

	return mm, physAddr & (PAGE_SIZE - 1), nil
}

// NewRCC maps the real clock-control block and returns an RCC driving it.
func NewRCC() (*RCC, error) {
	buf, offs, err := mapMem(RCC_BASE, RCC_BLOCK_SIZE)
	if err != nil {
		return nil, fmt.Errorf("couldn't map RCC block at %08X: %v", RCC_BASE, err)
	}
	log.Printf("Got RCC block[%d], offset %d\n", len(buf), offs)
	return NewRCCFromRegs(&mmapRegs{buf, offs}), nil
}

func (m *mmapRegs) reg(off uintptr) *uint32 {
	return (*uint32)(unsafe.Pointer(&m.buf[m.offs+off]))
}

func (m *mmapRegs) Read(off uintptr) uint32 {
	return *m.reg(off)
}

func (m *mmapRegs) Write(off uintptr, val uint32) {
	*m.reg(off) = val
}

func (m *mmapRegs) SetBits(off uintptr, mask uint32) {
	*m.reg(off) |= mask
}

func (m *mmapRegs) ClearBits(off uintptr, mask uint32) {
	*m.reg(off) &^= mask
}
