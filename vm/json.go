package vm

import (
	"encoding/json"
	"fmt"
)

// An Addr is an unsigned integer that unmarshals from either a JSON number
// or a string in 0x-hex or decimal form, the two request representations
// accepted for virtual addresses, VPNs, and PFNs.
type Addr uint64

// UnmarshalJSON normalizes both representations into the same unsigned
// integer domain.
func (a *Addr) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return InvalidArgumentErr("parse",
				fmt.Sprintf("malformed address %s", data))
		}

		v, err := ParseAddr(s)
		if err != nil {
			return err
		}

		*a = Addr(v)

		return nil
	}

	var v uint64
	if err := json.Unmarshal(data, &v); err != nil {
		return InvalidArgumentErr("parse",
			fmt.Sprintf("malformed address %s", data))
	}

	*a = Addr(v)

	return nil
}

// Uint64 returns the plain numeric value.
func (a Addr) Uint64() uint64 {
	return uint64(a)
}

// Hex renders the value for display.
func (a Addr) Hex() string {
	return FormatHex(uint64(a))
}
