//go:build unix

// Package playground manages anonymous memory mappings that users can
// allocate, lock, advise, and free to watch the kernel react.
package playground

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/vmlab-project/vmlab/vm"
)

// MaxRegions caps how many live mappings a manager will hold.
const MaxRegions = 32

// Allocation sizes are expressed in whole megabytes.
const (
	MinSizeMB = 1
	MaxSizeMB = 1024
)

const bytesPerMB = 1 << 20

var adviceFlags = map[string]int{
	"normal":     unix.MADV_NORMAL,
	"random":     unix.MADV_RANDOM,
	"sequential": unix.MADV_SEQUENTIAL,
	"willneed":   unix.MADV_WILLNEED,
	"dontneed":   unix.MADV_DONTNEED,
}

// A Region is one live anonymous mapping.
type Region struct {
	ID     int    `json:"id"`
	SizeMB int    `json:"size_mb"`
	Bytes  int    `json:"bytes"`
	Addr   string `json:"addr"`
	Locked bool   `json:"locked"`
	Advice string `json:"advice"`

	data []byte
}

// A Summary reports every live region plus totals.
type Summary struct {
	Count      int      `json:"count"`
	TotalBytes int      `json:"total_bytes"`
	Regions    []Region `json:"regions"`
}

// A Manager owns a set of mapped regions. All methods are safe for
// concurrent use.
type Manager struct {
	mu      sync.Mutex
	regions map[int]*Region
	nextID  int
}

// NewManager returns an empty manager.
func NewManager() *Manager {
	return &Manager{regions: make(map[int]*Region)}
}

// Alloc maps sizeMB megabytes of anonymous memory and touches every page so
// the allocation is resident immediately.
func (m *Manager) Alloc(sizeMB int) (Region, error) {
	if sizeMB < MinSizeMB || sizeMB > MaxSizeMB {
		return Region{}, vm.InvalidArgumentErr("alloc",
			fmt.Sprintf("size must be %d to %d MB, got %d",
				MinSizeMB, MaxSizeMB, sizeMB))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.regions) >= MaxRegions {
		return Region{}, vm.InvalidArgumentErr("alloc",
			fmt.Sprintf("at most %d regions may be live", MaxRegions))
	}

	data, err := unix.Mmap(-1, 0, sizeMB*bytesPerMB,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return Region{}, fmt.Errorf("mmap %d MB: %w", sizeMB, err)
	}

	for i := 0; i < len(data); i += vm.PageSize {
		data[i] = 1
	}

	m.nextID++
	r := &Region{
		ID:     m.nextID,
		SizeMB: sizeMB,
		Bytes:  len(data),
		Addr:   fmt.Sprintf("%p", data),
		Advice: "normal",
		data:   data,
	}
	m.regions[r.ID] = r

	return *r, nil
}

// Lock pins the region's pages in physical memory.
func (m *Manager) Lock(id int) (Region, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, err := m.region("lock", id)
	if err != nil {
		return Region{}, err
	}

	if err := unix.Mlock(r.data); err != nil {
		return Region{}, fmt.Errorf("mlock region %d: %w", id, err)
	}
	r.Locked = true

	return *r, nil
}

// Unlock releases a previous Lock. Unlocking a region that was never locked
// succeeds.
func (m *Manager) Unlock(id int) (Region, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, err := m.region("unlock", id)
	if err != nil {
		return Region{}, err
	}

	if err := unix.Munlock(r.data); err != nil {
		return Region{}, fmt.Errorf("munlock region %d: %w", id, err)
	}
	r.Locked = false

	return *r, nil
}

// Advise applies one of madvise's normal, random, sequential, willneed, or
// dontneed hints to the region.
func (m *Manager) Advise(id int, advice string) (Region, error) {
	flag, ok := adviceFlags[strings.ToLower(advice)]
	if !ok {
		return Region{}, vm.InvalidArgumentErr("advise",
			fmt.Sprintf("unknown advice %q", advice))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	r, err := m.region("advise", id)
	if err != nil {
		return Region{}, err
	}

	if err := unix.Madvise(r.data, flag); err != nil {
		return Region{}, fmt.Errorf("madvise region %d: %w", id, err)
	}
	r.Advice = strings.ToLower(advice)

	return *r, nil
}

// Free unmaps the region and forgets it.
func (m *Manager) Free(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, err := m.region("free", id)
	if err != nil {
		return err
	}

	if err := unix.Munmap(r.data); err != nil {
		return fmt.Errorf("munmap region %d: %w", id, err)
	}
	delete(m.regions, id)

	return nil
}

// Status reports all live regions ordered by ID.
func (m *Manager) Status() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Summary{Regions: make([]Region, 0, len(m.regions))}
	for _, r := range m.regions {
		s.Regions = append(s.Regions, *r)
		s.TotalBytes += r.Bytes
	}
	s.Count = len(s.Regions)

	sort.Slice(s.Regions, func(i, j int) bool {
		return s.Regions[i].ID < s.Regions[j].ID
	})

	return s
}

// Reset frees every region. IDs restart from 1 afterwards.
func (m *Manager) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, r := range m.regions {
		if err := unix.Munmap(r.data); err != nil {
			return fmt.Errorf("munmap region %d: %w", id, err)
		}
		delete(m.regions, id)
	}
	m.nextID = 0

	return nil
}

func (m *Manager) region(op string, id int) (*Region, error) {
	r, ok := m.regions[id]
	if !ok {
		return nil, vm.InvalidArgumentErr(op,
			fmt.Sprintf("no region with id %d", id))
	}
	return r, nil
}
