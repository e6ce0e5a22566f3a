package procinfo

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// A Region is one mapped address range from /proc/[pid]/maps.
type Region struct {
	Start  uint64 `json:"start"`
	End    uint64 `json:"end"`
	Size   uint64 `json:"size"`
	Perms  string `json:"perms"`
	Offset uint64 `json:"offset"`
	Path   string `json:"path,omitempty"`
	Kind   string `json:"kind"`
}

// MemoryRegions reads and parses /proc/[pid]/maps.
func MemoryRegions(pid int32) ([]Region, error) {
	f, err := os.Open(fmt.Sprintf("/proc/%d/maps", pid))
	if err != nil {
		return nil, fmt.Errorf("read maps for pid %d: %w", pid, err)
	}
	defer f.Close()

	var regions []Region

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		r, err := ParseMapsLine(line)
		if err != nil {
			return nil, err
		}

		regions = append(regions, r)
	}

	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read maps for pid %d: %w", pid, err)
	}

	return regions, nil
}

// ParseMapsLine parses one /proc/[pid]/maps line of the form
// "start-end perms offset dev inode [path]".
func ParseMapsLine(line string) (Region, error) {
	fields := strings.Fields(line)
	if len(fields) < 5 {
		return Region{}, fmt.Errorf("malformed maps line %q", line)
	}

	addrs := strings.SplitN(fields[0], "-", 2)
	if len(addrs) != 2 {
		return Region{}, fmt.Errorf("malformed maps range %q", fields[0])
	}

	start, err := strconv.ParseUint(addrs[0], 16, 64)
	if err != nil {
		return Region{}, fmt.Errorf("malformed maps range %q", fields[0])
	}

	end, err := strconv.ParseUint(addrs[1], 16, 64)
	if err != nil {
		return Region{}, fmt.Errorf("malformed maps range %q", fields[0])
	}

	offset, err := strconv.ParseUint(fields[2], 16, 64)
	if err != nil {
		return Region{}, fmt.Errorf("malformed maps offset %q", fields[2])
	}

	r := Region{
		Start:  start,
		End:    end,
		Size:   end - start,
		Perms:  fields[1],
		Offset: offset,
	}

	if len(fields) >= 6 {
		r.Path = strings.Join(fields[5:], " ")
	}

	r.Kind = classifyRegion(r.Perms, r.Path)

	return r, nil
}

// classifyRegion buckets a mapping for display.
func classifyRegion(perms, path string) string {
	switch {
	case path == "[stack]":
		return "stack"
	case path == "[heap]":
		return "heap"
	case path == "[vdso]" || path == "[vvar]" || path == "[vsyscall]":
		return "vdso"
	case strings.HasPrefix(path, "["):
		return "special"
	case path == "":
		return "anon"
	case strings.Contains(perms, "x"):
		return "code"
	default:
		return "data"
	}
}
