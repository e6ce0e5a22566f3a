package cmd

import (
	"bufio"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vmlab-project/vmlab/eviction"
	"github.com/vmlab-project/vmlab/pagingsim"
	"github.com/vmlab-project/vmlab/recording"
	"github.com/vmlab-project/vmlab/vm"
)

var replayCmd = &cobra.Command{
	Use:   "replay <tracefile>",
	Short: "Run a recorded address trace through a fresh paging simulator.",
	Long: "`replay` reads one page number per line (decimal or 0x-hex, " +
		"'#' starts a comment), or one byte address per line with " +
		"--addresses, touches the pages in order, and prints each " +
		"outcome plus a final summary.",
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		asAddresses, _ := cmd.Flags().GetBool("addresses")
		vpns, err := readTrace(args[0], asAddresses)
		if err != nil {
			log.Fatalf("Error reading trace: %v", err)
		}
		if len(vpns) == 0 {
			log.Fatalf("Error: trace %s holds no addresses", args[0])
		}

		frames, _ := cmd.Flags().GetInt("frames")
		rawPolicy, _ := cmd.Flags().GetString("policy")
		policy, err := eviction.ParsePolicy(rawPolicy)
		if err != nil {
			log.Fatalf("Error: %v", err)
		}

		b := pagingsim.MakeBuilder().
			WithNumFrames(frames).
			WithPolicy(policy)

		if seed := resolveSeed(cmd); seed != nil {
			b = b.WithRand(rand.New(rand.NewSource(*seed)))
		}

		var writer *recording.Writer
		if record, _ := cmd.Flags().GetString("record"); record != "" {
			writer, err = recording.NewWriter(record)
			if err != nil {
				log.Fatalf("Error opening trace database: %v", err)
			}
			if err := writer.CreateTable("paging_accesses"); err != nil {
				log.Fatalf("Error creating trace table: %v", err)
			}
			b = b.WithTraceSink(writer.Sink("paging_accesses"))
		}

		sim, err := b.Build("replay")
		if err != nil {
			log.Fatalf("Error: %v", err)
		}

		for _, res := range sim.Sequence(vpns) {
			printReplayResult(res)
		}

		st := sim.Status()
		fmt.Printf("\n%d accesses: %d faults, %d hits, "+
			"hit rate %.2f%%, %d disk reads\n",
			len(vpns), st.PageFaults, st.PageHits, st.HitRate,
			st.DiskReads)

		if writer != nil {
			writer.Flush()
		}
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().Int("frames", 8, "Number of physical frames")
	replayCmd.Flags().String("policy", "LRU",
		"Eviction policy: LRU, FIFO, RANDOM, or CLOCK")
	replayCmd.Flags().Int64("seed", 0,
		"Seed for the RANDOM policy (default VMLAB_SEED, then time)")
	replayCmd.Flags().Bool("addresses", false,
		"Treat trace lines as byte addresses instead of page numbers")
	replayCmd.Flags().String("record", "",
		"Record accesses to this SQLite trace database")
}

// resolveSeed prefers the --seed flag, then VMLAB_SEED, then nil for time
// seeding.
func resolveSeed(cmd *cobra.Command) *int64 {
	if cmd.Flags().Changed("seed") {
		seed, _ := cmd.Flags().GetInt64("seed")
		return &seed
	}

	if raw := os.Getenv("VMLAB_SEED"); raw != "" {
		seed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			log.Fatalf("Error: bad VMLAB_SEED %q", raw)
		}
		return &seed
	}

	return nil
}

func readTrace(path string, asAddresses bool) ([]uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var vpns []uint64
	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++

		line := sc.Text()
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		v, err := vm.ParseAddr(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if asAddresses {
			v = vm.VPNOf(v)
		}
		vpns = append(vpns, v)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	return vpns, nil
}

func printReplayResult(res pagingsim.AccessResult) {
	switch {
	case res.Hit:
		fmt.Printf("HIT   vpn %s in frame %d\n",
			vm.FormatHex(res.VPN), res.FrameIndex)
	case res.EvictedVPN != nil:
		fmt.Printf("FAULT vpn %s -> frame %d (evicted vpn %s)\n",
			vm.FormatHex(res.VPN), res.FrameIndex,
			vm.FormatHex(*res.EvictedVPN))
	default:
		fmt.Printf("FAULT vpn %s -> frame %d\n",
			vm.FormatHex(res.VPN), res.FrameIndex)
	}
}
