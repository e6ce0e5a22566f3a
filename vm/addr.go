// Package vm holds the definitions shared by the simulators: address parsing
// and formatting, the error taxonomy, and the access history ring.
package vm

import (
	"fmt"
	"strconv"
	"strings"
)

// Page geometry for 4 KiB pages.
const (
	PageShift = 12
	PageSize  = 1 << PageShift
)

// ParseAddr converts the textual form of an address, VPN, or PFN into its
// numeric value. Both 0x-prefixed hexadecimal and plain decimal are accepted.
func ParseAddr(s string) (uint64, error) {
	s = strings.TrimSpace(s)

	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}

	v, err := strconv.ParseUint(s, base, 64)
	if err != nil {
		return 0, InvalidArgumentErr("parse",
			fmt.Sprintf("malformed address %q", s))
	}

	return v, nil
}

// FormatHex renders v the way every display surface expects, lowercase with
// a 0x prefix.
func FormatHex(v uint64) string {
	return fmt.Sprintf("0x%x", v)
}

// VPNOf returns the virtual page number holding the address.
func VPNOf(addr uint64) uint64 {
	return addr >> PageShift
}

// PageOffset returns the offset of the address within its page.
func PageOffset(addr uint64) uint64 {
	return addr & (PageSize - 1)
}
