package server

import (
	"net/http"

	"github.com/vmlab-project/vmlab/eviction"
	"github.com/vmlab-project/vmlab/tlbsim"
	"github.com/vmlab-project/vmlab/vm"
)

type tlbInitReq struct {
	Size   int    `json:"size"`
	Policy string `json:"policy"`
	Seed   *int64 `json:"seed"`
}

type tlbLookupReq struct {
	VPN *vm.Addr `json:"vpn"`
}

type tlbInsertReq struct {
	VPN *vm.Addr `json:"vpn"`
	PFN *vm.Addr `json:"pfn"`
}

type tlbAccessReq struct {
	VPN *vm.Addr `json:"vpn"`
	PFN *vm.Addr `json:"pfn"`
}

func (s *Server) tlbInit(w http.ResponseWriter, r *http.Request) {
	var req tlbInitReq
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, err)
		return
	}

	b := tlbsim.MakeBuilder()
	if req.Size != 0 {
		b = b.WithSize(req.Size)
	}
	if req.Policy != "" {
		p, err := eviction.ParsePolicy(req.Policy)
		if err != nil {
			respondErr(w, err)
			return
		}
		b = b.WithPolicy(p)
	}
	if rng := s.chooseRand(req.Seed); rng != nil {
		b = b.WithRand(rng)
	}
	if s.recorder != nil {
		b = b.WithTraceSink(s.recorder.Sink(tlbTraceTable))
	}

	sim, err := b.Build("tlb")
	if err != nil {
		respondErr(w, err)
		return
	}

	s.mu.Lock()
	s.tlb = sim
	s.mu.Unlock()

	respond(w, sim.Status())
}

func (s *Server) tlbLookup(w http.ResponseWriter, r *http.Request) {
	sim, err := s.tlbSim()
	if err != nil {
		respondErr(w, err)
		return
	}

	var req tlbLookupReq
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, err)
		return
	}
	if req.VPN == nil {
		respondErr(w, vm.InvalidArgumentErr("lookup", "vpn is required"))
		return
	}

	respond(w, sim.Lookup(req.VPN.Uint64()))
}

func (s *Server) tlbInsert(w http.ResponseWriter, r *http.Request) {
	sim, err := s.tlbSim()
	if err != nil {
		respondErr(w, err)
		return
	}

	var req tlbInsertReq
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, err)
		return
	}
	if req.VPN == nil || req.PFN == nil {
		respondErr(w, vm.InvalidArgumentErr("insert",
			"vpn and pfn are required"))
		return
	}

	respond(w, sim.Insert(req.VPN.Uint64(), req.PFN.Uint64()))
}

func (s *Server) tlbAccess(w http.ResponseWriter, r *http.Request) {
	sim, err := s.tlbSim()
	if err != nil {
		respondErr(w, err)
		return
	}

	var req tlbAccessReq
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, err)
		return
	}
	if req.VPN == nil {
		respondErr(w, vm.InvalidArgumentErr("access", "vpn is required"))
		return
	}

	var pfn *uint64
	if req.PFN != nil {
		v := req.PFN.Uint64()
		pfn = &v
	}

	respond(w, sim.Access(req.VPN.Uint64(), pfn))
}

func (s *Server) tlbStatus(w http.ResponseWriter, _ *http.Request) {
	sim, err := s.tlbSim()
	if err != nil {
		respondErr(w, err)
		return
	}

	respond(w, sim.Status())
}

func (s *Server) tlbFlush(w http.ResponseWriter, _ *http.Request) {
	sim, err := s.tlbSim()
	if err != nil {
		respondErr(w, err)
		return
	}

	sim.Flush()
	respond(w, sim.Status())
}

func (s *Server) tlbReset(w http.ResponseWriter, _ *http.Request) {
	sim, err := s.tlbSim()
	if err != nil {
		respondErr(w, err)
		return
	}

	sim.ResetStats()
	respond(w, sim.Status())
}
