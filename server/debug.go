package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/pprof"
	"sort"
	"strconv"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/syifan/goseth"

	"github.com/vmlab-project/vmlab/vm"
)

// listSimulatorState serializes the live simulator named by {target}, one
// level deep, so a frontend can inspect internals the status reports leave
// out.
func (s *Server) listSimulatorState(w http.ResponseWriter, r *http.Request) {
	target := mux.Vars(r)["target"]

	var root interface{}
	s.mu.Lock()
	switch target {
	case "tlb":
		if s.tlb != nil {
			root = s.tlb
		}
	case "paging":
		if s.paging != nil {
			root = s.paging
		}
	default:
		s.mu.Unlock()
		respondErr(w, vm.InvalidArgumentErr("debug",
			fmt.Sprintf("unknown target %q", target)))
		return
	}
	s.mu.Unlock()

	if root == nil {
		respondErr(w, vm.NotInitializedErr(target))
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(root)
	serializer.SetMaxDepth(1)

	buf := bytes.NewBuffer(nil)
	err := serializer.Serialize(buf)
	dieOnErr(err)

	respond(w, json.RawMessage(buf.Bytes()))
}

type functionSamples struct {
	Function string `json:"function"`
	Value    int64  `json:"value"`
}

type profileReport struct {
	DurationNanos int64             `json:"duration_nanos"`
	SampleCount   int               `json:"sample_count"`
	TotalValue    int64             `json:"total_value"`
	TopFunctions  []functionSamples `json:"top_functions"`
}

// collectProfile captures a CPU profile of the server itself for
// ?seconds=n (default 1) and reports the hottest leaf functions.
func (s *Server) collectProfile(w http.ResponseWriter, r *http.Request) {
	seconds := 1
	if raw := r.URL.Query().Get("seconds"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 30 {
			respondErr(w, vm.InvalidArgumentErr("profile",
				fmt.Sprintf("seconds must be 1 to 30, got %q", raw)))
			return
		}
		seconds = n
	}

	buf := bytes.NewBuffer(nil)

	if err := pprof.StartCPUProfile(buf); err != nil {
		respondErr(w, err)
		return
	}

	time.Sleep(time.Duration(seconds) * time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	respond(w, summarizeProfile(prof))
}

// summarizeProfile attributes each sample's last value to its leaf function
// and keeps the ten hottest.
func summarizeProfile(prof *profile.Profile) profileReport {
	flat := make(map[string]int64)
	report := profileReport{
		DurationNanos: prof.DurationNanos,
		SampleCount:   len(prof.Sample),
	}

	for _, smp := range prof.Sample {
		if len(smp.Value) == 0 {
			continue
		}
		v := smp.Value[len(smp.Value)-1]
		report.TotalValue += v

		if len(smp.Location) == 0 || len(smp.Location[0].Line) == 0 {
			continue
		}
		fn := smp.Location[0].Line[0].Function
		if fn == nil {
			continue
		}
		flat[fn.Name] += v
	}

	for name, v := range flat {
		report.TopFunctions = append(report.TopFunctions,
			functionSamples{Function: name, Value: v})
	}
	sort.Slice(report.TopFunctions, func(i, j int) bool {
		return report.TopFunctions[i].Value > report.TopFunctions[j].Value
	})
	if len(report.TopFunctions) > 10 {
		report.TopFunctions = report.TopFunctions[:10]
	}

	return report
}
