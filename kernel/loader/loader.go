// Package loader stages the kernel's embedded application images at their
// fixed physical slots. Kmain runs each app from its slot in the kernel's
// own address space; nothing here parses the images with vmm.FromELF.
package loader

import (
	"unsafe"

	"github.com/gopher-riscv/sv39kernel/kernel"
	"github.com/gopher-riscv/sv39kernel/kernel/cpu"
	"github.com/gopher-riscv/sv39kernel/kernel/kfmt/early"
	"github.com/gopher-riscv/sv39kernel/kernel/mem"
)

// ErrImageTooLarge is returned by LoadApps when an embedded image does not
// fit in a single AppSizeLimit-sized slot.
var ErrImageTooLarge = &kernel.Error{Module: "loader", Message: "application image exceeds AppSizeLimit"}

// Hooks the boot assembly installs once the linker-provided app count and
// offset table are known, exactly like multiboot.SetInfoPtr hands the
// teacher's kernel a pointer it cannot discover any other way.
var (
	appCountFn func() int
	appImageFn func(i int) []byte
)

// SetAppTable wires the linker-provided application count and per-index
// image accessor. tools/mkimage is responsible for producing the table
// these functions read; see §2b.
func SetAppTable(count func() int, image func(i int) []byte) {
	appCountFn = count
	appImageFn = image
}

// LoadApps copies every embedded application image into its fixed
// AppBaseAddress + i*AppSizeLimit slot, zeroing the slot first, then
// issues a single fence.i so the hart observes the freshly written
// instructions. It returns one byte slice per slot, each trimmed to the
// image's real length, ready to be handed to vmm.FromELF.
func LoadApps() ([][]byte, *kernel.Error) {
	n := appCountFn()
	slots := make([][]byte, n)

	for i := 0; i < n; i++ {
		img := appImageFn(i)
		if mem.Size(len(img)) > mem.AppSizeLimit {
			return nil, ErrImageTooLarge
		}

		slotBase := mem.PhysAddrFromUint64(mem.AppBaseAddress + uint64(i)*mem.AppSizeLimit)
		slot := unsafe.Slice((*byte)(slotBase.Pointer()), mem.AppSizeLimit)

		for j := range slot {
			slot[j] = 0
		}
		copy(slot, img)

		early.Printf("[kernel] loaded app %d: 0x%16x bytes at 0x%16x\n", i, uint64(len(img)), slotBase.Uint64())
		slots[i] = slot[:len(img):len(img)]
	}

	cpu.FenceI()
	return slots, nil
}
