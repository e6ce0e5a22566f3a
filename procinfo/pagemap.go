package procinfo

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/vmlab-project/vmlab/vm"
)

// Pagemap entry bits, per the kernel's admin-guide/mm/pagemap documentation.
const (
	pagemapPresent = uint64(1) << 63
	pagemapSwapped = uint64(1) << 62
	pagemapPFNMask = (uint64(1) << 55) - 1
)

// WalkIndices are the four page-table indices an x86-64 four-level walk of
// the address would follow.
type WalkIndices struct {
	PGD uint64 `json:"pgd"`
	PUD uint64 `json:"pud"`
	PMD uint64 `json:"pmd"`
	PTE uint64 `json:"pte"`
}

// WalkOf splits vaddr into its 9-bit table indices.
func WalkOf(vaddr uint64) WalkIndices {
	return WalkIndices{
		PGD: (vaddr >> 39) & 0x1ff,
		PUD: (vaddr >> 30) & 0x1ff,
		PMD: (vaddr >> 21) & 0x1ff,
		PTE: (vaddr >> 12) & 0x1ff,
	}
}

// A Translation reports where a virtual address lives physically.
type Translation struct {
	Vaddr   uint64      `json:"vaddr"`
	VPN     uint64      `json:"vpn"`
	Offset  uint64      `json:"offset"`
	Present bool        `json:"present"`
	Swapped bool        `json:"swapped"`
	PFN     uint64      `json:"pfn"`
	Paddr   uint64      `json:"paddr"`
	Walk    WalkIndices `json:"walk"`
}

// DecodePagemapEntry interprets one 64-bit pagemap entry for vaddr. The PFN
// reads as zero for unprivileged callers on hardened kernels.
func DecodePagemapEntry(entry, vaddr uint64) Translation {
	t := Translation{
		Vaddr:   vaddr,
		VPN:     vm.VPNOf(vaddr),
		Offset:  vm.PageOffset(vaddr),
		Present: entry&pagemapPresent != 0,
		Swapped: entry&pagemapSwapped != 0,
		Walk:    WalkOf(vaddr),
	}

	if t.Present {
		t.PFN = entry & pagemapPFNMask
		t.Paddr = t.PFN<<vm.PageShift | t.Offset
	}

	return t
}

// Translate resolves vaddr through /proc/[pid]/pagemap. Reading another
// process's pagemap needs CAP_SYS_ADMIN on most kernels.
func Translate(pid int32, vaddr uint64) (Translation, error) {
	f, err := os.Open(fmt.Sprintf("/proc/%d/pagemap", pid))
	if err != nil {
		return Translation{}, fmt.Errorf(
			"read pagemap for pid %d: %w", pid, err)
	}
	defer f.Close()

	buf := make([]byte, 8)
	if _, err := f.ReadAt(buf, int64(vm.VPNOf(vaddr))*8); err != nil {
		return Translation{}, fmt.Errorf(
			"read pagemap entry for %s: %w", vm.FormatHex(vaddr), err)
	}

	entry := binary.LittleEndian.Uint64(buf)

	return DecodePagemapEntry(entry, vaddr), nil
}
