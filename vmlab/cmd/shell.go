package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vmlab-project/vmlab/eviction"
	"github.com/vmlab-project/vmlab/pagingsim"
	"github.com/vmlab-project/vmlab/playground"
	"github.com/vmlab-project/vmlab/procinfo"
	"github.com/vmlab-project/vmlab/tlbsim"
	"github.com/vmlab-project/vmlab/vm"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Drive the simulators and the playground interactively.",
	Long: "`shell` starts a read-eval-print loop over the same operations " +
		"the HTTP API serves. Addresses accept decimal or 0x-hex.",
	Run: func(cmd *cobra.Command, args []string) {
		newShellSession(os.Stdout).run(os.Stdin)
	},
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

type shellSession struct {
	tlb    *tlbsim.Simulator
	paging *pagingsim.Simulator
	mem    *playground.Manager
	out    io.Writer
}

func newShellSession(out io.Writer) *shellSession {
	return &shellSession{
		mem: playground.NewManager(),
		out: out,
	}
}

func (s *shellSession) run(in io.Reader) {
	fmt.Fprintln(s.out,
		"Virtual memory lab shell. Type 'help' for commands.")

	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(s.out, "vmlab> ")

		if !sc.Scan() {
			fmt.Fprintln(s.out)
			return
		}

		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "exit" || fields[0] == "quit" {
			return
		}

		if err := s.dispatch(fields); err != nil {
			fmt.Fprintf(s.out, "Error: %v\n", err)
		}
	}
}

func (s *shellSession) dispatch(fields []string) error {
	switch fields[0] {
	case "help":
		s.printHelp()
		return nil
	case "tlb":
		return s.tlbCommand(fields[1:])
	case "paging":
		return s.pagingCommand(fields[1:])
	case "mem":
		return s.memCommand(fields[1:])
	case "ps":
		return s.printProcesses()
	case "maps":
		return s.printMaps(fields[1:])
	case "translate":
		return s.printTranslation(fields[1:])
	case "stats":
		return s.printProcessStats(fields[1:])
	case "sysinfo":
		return s.printSysinfo()
	default:
		return vm.InvalidArgumentErr("shell",
			fmt.Sprintf("unknown command %q, try 'help'", fields[0]))
	}
}

func (s *shellSession) printHelp() {
	fmt.Fprint(s.out, `Commands:
  tlb init <size> <policy>      build a TLB (LRU, FIFO, RANDOM, CLOCK)
  tlb lookup <vpn>              probe without filling
  tlb insert <vpn> <pfn>        install a mapping
  tlb access <vpn> [pfn]        lookup, then fill on a miss when pfn given
  tlb status | flush | reset
  paging init <frames> <policy> build a paging simulator
  paging access <addr>          touch the page holding addr
  paging seq <addr> [addr...]   touch pages in order
  paging status | reset
  mem alloc <mb>                map and touch anonymous memory
  mem lock|unlock|free <id>
  mem advise <id> <advice>      normal, random, sequential, willneed, dontneed
  mem status | reset
  ps                            list processes
  maps <pid>                    address space regions
  translate <pid> <addr>        pagemap walk for addr
  stats <pid>                   memory counters
  sysinfo                       system memory
  exit
`)
}

func (s *shellSession) tlbSim() (*tlbsim.Simulator, error) {
	if s.tlb == nil {
		return nil, vm.NotInitializedErr("tlb")
	}
	return s.tlb, nil
}

func (s *shellSession) pagingSim() (*pagingsim.Simulator, error) {
	if s.paging == nil {
		return nil, vm.NotInitializedErr("paging")
	}
	return s.paging, nil
}

func usageErr(op, usage string) error {
	return vm.InvalidArgumentErr(op, "usage: "+usage)
}

func parseInt(op, name, raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, vm.InvalidArgumentErr(op,
			fmt.Sprintf("bad %s %q", name, raw))
	}
	return n, nil
}

func (s *shellSession) tlbCommand(args []string) error {
	if len(args) == 0 {
		return usageErr("tlb", "tlb <init|lookup|insert|access|status|flush|reset> ...")
	}

	switch args[0] {
	case "init":
		if len(args) != 3 {
			return usageErr("tlb", "tlb init <size> <policy>")
		}
		size, err := parseInt("tlb", "size", args[1])
		if err != nil {
			return err
		}
		policy, err := eviction.ParsePolicy(args[2])
		if err != nil {
			return err
		}
		sim, err := tlbsim.MakeBuilder().
			WithSize(size).
			WithPolicy(policy).
			Build("tlb")
		if err != nil {
			return err
		}
		s.tlb = sim
		fmt.Fprintf(s.out, "TLB ready: %d slots, %s\n", size, policy)
		return nil

	case "lookup":
		sim, err := s.tlbSim()
		if err != nil {
			return err
		}
		if len(args) != 2 {
			return usageErr("tlb", "tlb lookup <vpn>")
		}
		vpn, err := vm.ParseAddr(args[1])
		if err != nil {
			return err
		}
		res := sim.Lookup(vpn)
		if res.Hit {
			fmt.Fprintf(s.out, "HIT  vpn %s -> pfn %s\n",
				vm.FormatHex(res.VPN), vm.FormatHex(res.PFN))
		} else {
			fmt.Fprintf(s.out, "MISS vpn %s\n", vm.FormatHex(res.VPN))
		}
		return nil

	case "insert":
		sim, err := s.tlbSim()
		if err != nil {
			return err
		}
		if len(args) != 3 {
			return usageErr("tlb", "tlb insert <vpn> <pfn>")
		}
		vpn, err := vm.ParseAddr(args[1])
		if err != nil {
			return err
		}
		pfn, err := vm.ParseAddr(args[2])
		if err != nil {
			return err
		}
		res := sim.Insert(vpn, pfn)
		if res.EvictedVPN != nil {
			fmt.Fprintf(s.out, "slot %d <- vpn %s (evicted vpn %s)\n",
				res.Slot, vm.FormatHex(vpn),
				vm.FormatHex(*res.EvictedVPN))
		} else {
			fmt.Fprintf(s.out, "slot %d <- vpn %s\n",
				res.Slot, vm.FormatHex(vpn))
		}
		return nil

	case "access":
		sim, err := s.tlbSim()
		if err != nil {
			return err
		}
		if len(args) != 2 && len(args) != 3 {
			return usageErr("tlb", "tlb access <vpn> [pfn]")
		}
		vpn, err := vm.ParseAddr(args[1])
		if err != nil {
			return err
		}
		var pfn *uint64
		if len(args) == 3 {
			v, err := vm.ParseAddr(args[2])
			if err != nil {
				return err
			}
			pfn = &v
		}
		res := sim.Access(vpn, pfn)
		switch {
		case res.Hit:
			fmt.Fprintf(s.out, "HIT  vpn %s -> pfn %s\n",
				vm.FormatHex(res.VPN), vm.FormatHex(res.PFN))
		case res.Inserted:
			fmt.Fprintf(s.out, "MISS vpn %s, filled slot %d\n",
				vm.FormatHex(res.VPN), res.Slot)
		default:
			fmt.Fprintf(s.out, "MISS vpn %s\n", vm.FormatHex(res.VPN))
		}
		return nil

	case "status":
		return s.printTLBStatus()

	case "flush":
		sim, err := s.tlbSim()
		if err != nil {
			return err
		}
		sim.Flush()
		fmt.Fprintln(s.out, "TLB flushed")
		return nil

	case "reset":
		sim, err := s.tlbSim()
		if err != nil {
			return err
		}
		sim.ResetStats()
		fmt.Fprintln(s.out, "TLB statistics reset")
		return nil

	default:
		return vm.InvalidArgumentErr("tlb",
			fmt.Sprintf("unknown subcommand %q", args[0]))
	}
}

func (s *shellSession) printTLBStatus() error {
	sim, err := s.tlbSim()
	if err != nil {
		return err
	}

	st := sim.Status()
	fmt.Fprintf(s.out,
		"%s: %d slots, %s, hits %d, misses %d, hit rate %.2f%%\n",
		st.Name, st.Size, st.Policy, st.Hits, st.Misses, st.HitRate)

	tw := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "slot\tvpn\tpfn\tvalid\tlast access")
	for _, e := range st.Entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%t\t%d\n",
			e.Index, e.VPN, e.PFN, e.Valid, e.LastAccessTick)
	}
	return tw.Flush()
}

func (s *shellSession) pagingCommand(args []string) error {
	if len(args) == 0 {
		return usageErr("paging", "paging <init|access|seq|status|reset> ...")
	}

	switch args[0] {
	case "init":
		if len(args) != 3 {
			return usageErr("paging", "paging init <frames> <policy>")
		}
		frames, err := parseInt("paging", "frames", args[1])
		if err != nil {
			return err
		}
		policy, err := eviction.ParsePolicy(args[2])
		if err != nil {
			return err
		}
		sim, err := pagingsim.MakeBuilder().
			WithNumFrames(frames).
			WithPolicy(policy).
			Build("paging")
		if err != nil {
			return err
		}
		s.paging = sim
		fmt.Fprintf(s.out, "Paging ready: %d frames, %s\n", frames, policy)
		return nil

	case "access":
		sim, err := s.pagingSim()
		if err != nil {
			return err
		}
		if len(args) != 2 {
			return usageErr("paging", "paging access <addr>")
		}
		addr, err := vm.ParseAddr(args[1])
		if err != nil {
			return err
		}
		s.printPagingResult(sim.Access(vm.VPNOf(addr)))
		return nil

	case "seq":
		sim, err := s.pagingSim()
		if err != nil {
			return err
		}
		if len(args) < 2 {
			return usageErr("paging", "paging seq <addr> [addr...]")
		}
		vpns := make([]uint64, len(args)-1)
		for i, raw := range args[1:] {
			addr, err := vm.ParseAddr(raw)
			if err != nil {
				return err
			}
			vpns[i] = vm.VPNOf(addr)
		}
		for _, res := range sim.Sequence(vpns) {
			s.printPagingResult(res)
		}
		return nil

	case "status":
		return s.printPagingStatus()

	case "reset":
		sim, err := s.pagingSim()
		if err != nil {
			return err
		}
		sim.ResetStats()
		fmt.Fprintln(s.out, "Paging statistics reset")
		return nil

	default:
		return vm.InvalidArgumentErr("paging",
			fmt.Sprintf("unknown subcommand %q", args[0]))
	}
}

func (s *shellSession) printPagingResult(res pagingsim.AccessResult) {
	switch {
	case res.Hit:
		fmt.Fprintf(s.out, "HIT   vpn %s in frame %d\n",
			vm.FormatHex(res.VPN), res.FrameIndex)
	case res.EvictedVPN != nil:
		fmt.Fprintf(s.out, "FAULT vpn %s -> frame %d (evicted vpn %s)\n",
			vm.FormatHex(res.VPN), res.FrameIndex,
			vm.FormatHex(*res.EvictedVPN))
	default:
		fmt.Fprintf(s.out, "FAULT vpn %s -> frame %d\n",
			vm.FormatHex(res.VPN), res.FrameIndex)
	}
}

func (s *shellSession) printPagingStatus() error {
	sim, err := s.pagingSim()
	if err != nil {
		return err
	}

	st := sim.Status()
	fmt.Fprintf(s.out,
		"%s: %d frames, %s, faults %d, hits %d, hit rate %.2f%%, disk reads %d\n",
		st.Name, st.NumFrames, st.Policy, st.PageFaults, st.PageHits,
		st.HitRate, st.DiskReads)

	tw := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "frame\tvpn\tloaded\tlast access\toccupied")
	for _, f := range st.Frames {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%t\n",
			f.Index, f.VPN, f.LoadedAtTick, f.LastAccessTick, f.Occupied)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(st.History) > 0 {
		fmt.Fprintln(s.out, "recent accesses:")
		for _, r := range st.History {
			mark := "fault"
			if r.Hit {
				mark = "hit"
			}
			fmt.Fprintf(s.out, "  %s %s frame %d\n", r.VPN, mark, r.Frame)
		}
	}
	return nil
}

func (s *shellSession) memCommand(args []string) error {
	if len(args) == 0 {
		return usageErr("mem", "mem <alloc|lock|unlock|advise|free|status|reset> ...")
	}

	switch args[0] {
	case "alloc":
		if len(args) != 2 {
			return usageErr("mem", "mem alloc <mb>")
		}
		sizeMB, err := parseInt("mem", "size", args[1])
		if err != nil {
			return err
		}
		r, err := s.mem.Alloc(sizeMB)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "region %d: %d MB at %s\n", r.ID, r.SizeMB, r.Addr)
		return nil

	case "lock", "unlock", "free":
		if len(args) != 2 {
			return usageErr("mem", "mem "+args[0]+" <id>")
		}
		id, err := parseInt("mem", "id", args[1])
		if err != nil {
			return err
		}
		switch args[0] {
		case "lock":
			if _, err := s.mem.Lock(id); err != nil {
				return err
			}
			fmt.Fprintf(s.out, "region %d locked\n", id)
		case "unlock":
			if _, err := s.mem.Unlock(id); err != nil {
				return err
			}
			fmt.Fprintf(s.out, "region %d unlocked\n", id)
		case "free":
			if err := s.mem.Free(id); err != nil {
				return err
			}
			fmt.Fprintf(s.out, "region %d freed\n", id)
		}
		return nil

	case "advise":
		if len(args) != 3 {
			return usageErr("mem", "mem advise <id> <advice>")
		}
		id, err := parseInt("mem", "id", args[1])
		if err != nil {
			return err
		}
		r, err := s.mem.Advise(id, args[2])
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "region %d advice %s\n", r.ID, r.Advice)
		return nil

	case "status":
		sum := s.mem.Status()
		fmt.Fprintf(s.out, "%d regions, %d bytes\n", sum.Count, sum.TotalBytes)
		tw := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "id\tsize\taddr\tlocked\tadvice")
		for _, r := range sum.Regions {
			fmt.Fprintf(tw, "%d\t%d MB\t%s\t%t\t%s\n",
				r.ID, r.SizeMB, r.Addr, r.Locked, r.Advice)
		}
		return tw.Flush()

	case "reset":
		if err := s.mem.Reset(); err != nil {
			return err
		}
		fmt.Fprintln(s.out, "all regions freed")
		return nil

	default:
		return vm.InvalidArgumentErr("mem",
			fmt.Sprintf("unknown subcommand %q", args[0]))
	}
}

func (s *shellSession) printProcesses() error {
	procs, err := procinfo.ListProcesses()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "pid\tname\tstate\tuser\trss\tvms")
	for _, p := range procs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%d\n",
			p.PID, p.Name, p.State, p.User, p.RSS, p.VMS)
	}
	return tw.Flush()
}

func parsePIDArg(op string, args []string, n int, usage string) (int32, error) {
	if len(args) != n {
		return 0, usageErr(op, usage)
	}
	pid, err := parseInt(op, "pid", args[0])
	if err != nil || pid <= 0 {
		return 0, vm.InvalidArgumentErr(op,
			fmt.Sprintf("bad pid %q", args[0]))
	}
	return int32(pid), nil
}

func (s *shellSession) printMaps(args []string) error {
	pid, err := parsePIDArg("maps", args, 1, "maps <pid>")
	if err != nil {
		return err
	}

	regions, err := procinfo.MemoryRegions(pid)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "start\tend\tperms\tkind\tpath")
	for _, r := range regions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			vm.FormatHex(r.Start), vm.FormatHex(r.End),
			r.Perms, r.Kind, r.Path)
	}
	return tw.Flush()
}

func (s *shellSession) printTranslation(args []string) error {
	if len(args) != 2 {
		return usageErr("translate", "translate <pid> <addr>")
	}
	pid, err := parsePIDArg("translate", args[:1], 1, "translate <pid> <addr>")
	if err != nil {
		return err
	}
	addr, err := vm.ParseAddr(args[1])
	if err != nil {
		return err
	}

	tr, err := procinfo.Translate(pid, addr)
	if err != nil {
		return err
	}

	fmt.Fprintf(s.out, "vaddr %s = vpn %s + offset %s\n",
		vm.FormatHex(tr.Vaddr), vm.FormatHex(tr.VPN),
		vm.FormatHex(tr.Offset))
	fmt.Fprintf(s.out, "walk: pgd %d, pud %d, pmd %d, pte %d\n",
		tr.Walk.PGD, tr.Walk.PUD, tr.Walk.PMD, tr.Walk.PTE)
	switch {
	case tr.Present:
		fmt.Fprintf(s.out, "present, pfn %s, paddr %s\n",
			vm.FormatHex(tr.PFN), vm.FormatHex(tr.Paddr))
	case tr.Swapped:
		fmt.Fprintln(s.out, "swapped out")
	default:
		fmt.Fprintln(s.out, "not present")
	}
	return nil
}

func (s *shellSession) printProcessStats(args []string) error {
	pid, err := parsePIDArg("stats", args, 1, "stats <pid>")
	if err != nil {
		return err
	}

	st, err := procinfo.ProcessMemoryStats(pid)
	if err != nil {
		return err
	}

	fmt.Fprintf(s.out, "rss %d, vms %d, data %d, stack %d\n",
		st.RSS, st.VMS, st.Data, st.Stack)
	fmt.Fprintf(s.out, "locked %d, swap %d, minor faults %d, major faults %d\n",
		st.Locked, st.Swap, st.MinorFaults, st.MajorFaults)
	return nil
}

func (s *shellSession) printSysinfo() error {
	info, err := procinfo.SystemMemory()
	if err != nil {
		return err
	}

	fmt.Fprintf(s.out, "total %d, available %d, used %.1f%%\n",
		info.Total, info.Available, info.UsedPercent)
	fmt.Fprintf(s.out, "swap total %d, swap used %d, page size %d\n",
		info.SwapTotal, info.SwapUsed, info.PageSize)
	return nil
}
