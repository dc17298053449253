package mem

import "unsafe"

// physMem, when non-nil, backs every physical-address pointer conversion
// performed by this package with a plain Go byte slice instead of a raw
// pointer into physical memory. Production builds never set this. Package
// tests that need to exercise frame zeroing or page table walks from a
// hosted Go binary call SetPhysMemForTesting so those accesses land in
// ordinary heap memory instead of faulting on an address with no backing
// page.
var (
	physMem     []byte
	physMemBase PhysAddr
)

// SetPhysMemForTesting redirects every PhysAddr pointer conversion to index
// into buf, treating buf[0] as physical address 0. Passing nil restores the
// default identity behavior. Intended for use from _test.go files only.
func SetPhysMemForTesting(buf []byte) {
	SetPhysMemForTestingAt(0, buf)
}

// SetPhysMemForTestingAt is SetPhysMemForTesting for callers that operate
// on a fixed, non-zero physical address range (e.g. the AppBaseAddress
// application slots), treating buf[0] as physical address base rather than
// address 0. Passing a nil buf restores the default identity behavior.
// Intended for use from _test.go files only.
func SetPhysMemForTestingAt(base PhysAddr, buf []byte) {
	physMemBase = base
	physMem = buf
}

// Pointer returns a Go pointer to the byte at this physical address. On
// real hardware this is valid because the kernel identity-maps all of
// physical memory into its own address space; under test it is redirected
// via SetPhysMemForTesting.
func (pa PhysAddr) Pointer() unsafe.Pointer {
	if physMem != nil {
		return unsafe.Pointer(&physMem[int(pa-physMemBase)])
	}
	return unsafe.Pointer(uintptr(pa))
}
