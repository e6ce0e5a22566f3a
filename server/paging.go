package server

import (
	"net/http"

	"github.com/vmlab-project/vmlab/eviction"
	"github.com/vmlab-project/vmlab/pagingsim"
	"github.com/vmlab-project/vmlab/vm"
)

type pagingInitReq struct {
	Frames int    `json:"frames"`
	Policy string `json:"policy"`
	Seed   *int64 `json:"seed"`
}

// pagingAccessReq carries exactly one of vpn or address. An address is
// folded onto its page before the simulator sees it.
type pagingAccessReq struct {
	VPN     *vm.Addr `json:"vpn"`
	Address *vm.Addr `json:"address"`
}

type pagingSequenceReq struct {
	Addresses []vm.Addr `json:"addresses"`
}

func (s *Server) pagingInit(w http.ResponseWriter, r *http.Request) {
	var req pagingInitReq
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, err)
		return
	}

	b := pagingsim.MakeBuilder()
	if req.Frames != 0 {
		b = b.WithNumFrames(req.Frames)
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
		b = b.WithTraceSink(s.recorder.Sink(pagingTraceTable))
	}

	sim, err := b.Build("paging")
	if err != nil {
		respondErr(w, err)
		return
	}

	s.mu.Lock()
	s.paging = sim
	s.mu.Unlock()

	respond(w, sim.Status())
}

func (s *Server) pagingAccess(w http.ResponseWriter, r *http.Request) {
	sim, err := s.pagingSim()
	if err != nil {
		respondErr(w, err)
		return
	}

	var req pagingAccessReq
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, err)
		return
	}
	if (req.VPN == nil) == (req.Address == nil) {
		respondErr(w, vm.InvalidArgumentErr("access",
			"provide exactly one of vpn or address"))
		return
	}

	vpn := uint64(0)
	if req.VPN != nil {
		vpn = req.VPN.Uint64()
	} else {
		vpn = vm.VPNOf(req.Address.Uint64())
	}

	respond(w, sim.Access(vpn))
}

func (s *Server) pagingSequence(w http.ResponseWriter, r *http.Request) {
	sim, err := s.pagingSim()
	if err != nil {
		respondErr(w, err)
		return
	}

	var req pagingSequenceReq
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, err)
		return
	}
	if len(req.Addresses) == 0 {
		respondErr(w, vm.InvalidArgumentErr("sequence",
			"addresses must not be empty"))
		return
	}

	vpns := make([]uint64, len(req.Addresses))
	for i, a := range req.Addresses {
		vpns[i] = vm.VPNOf(a.Uint64())
	}

	respond(w, sim.Sequence(vpns))
}

func (s *Server) pagingStatus(w http.ResponseWriter, _ *http.Request) {
	sim, err := s.pagingSim()
	if err != nil {
		respondErr(w, err)
		return
	}

	respond(w, sim.Status())
}

func (s *Server) pagingReset(w http.ResponseWriter, _ *http.Request) {
	sim, err := s.pagingSim()
	if err != nil {
		respondErr(w, err)
		return
	}

	sim.ResetStats()
	respond(w, sim.Status())
}
