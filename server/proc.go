package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/vmlab-project/vmlab/procinfo"
	"github.com/vmlab-project/vmlab/vm"
)

func parsePID(r *http.Request) (int32, error) {
	raw := mux.Vars(r)["pid"]

	pid, err := strconv.Atoi(raw)
	if err != nil || pid <= 0 {
		return 0, vm.InvalidArgumentErr("process",
			fmt.Sprintf("bad pid %q", raw))
	}

	return int32(pid), nil
}

func (s *Server) listProcesses(w http.ResponseWriter, _ *http.Request) {
	procs, err := procinfo.ListProcesses()
	if err != nil {
		respondErr(w, err)
		return
	}

	respond(w, procs)
}

func (s *Server) processDetail(w http.ResponseWriter, r *http.Request) {
	pid, err := parsePID(r)
	if err != nil {
		respondErr(w, err)
		return
	}

	detail, err := procinfo.ProcessByPID(pid)
	if err != nil {
		respondErr(w, err)
		return
	}

	respond(w, detail)
}

func (s *Server) processMaps(w http.ResponseWriter, r *http.Request) {
	pid, err := parsePID(r)
	if err != nil {
		respondErr(w, err)
		return
	}

	regions, err := procinfo.MemoryRegions(pid)
	if err != nil {
		respondErr(w, err)
		return
	}

	respond(w, regions)
}

func (s *Server) processStats(w http.ResponseWriter, r *http.Request) {
	pid, err := parsePID(r)
	if err != nil {
		respondErr(w, err)
		return
	}

	stats, err := procinfo.ProcessMemoryStats(pid)
	if err != nil {
		respondErr(w, err)
		return
	}

	respond(w, stats)
}

func (s *Server) processTranslate(w http.ResponseWriter, r *http.Request) {
	pid, err := parsePID(r)
	if err != nil {
		respondErr(w, err)
		return
	}

	addr, err := vm.ParseAddr(mux.Vars(r)["addr"])
	if err != nil {
		respondErr(w, err)
		return
	}

	translation, err := procinfo.Translate(pid, addr)
	if err != nil {
		respondErr(w, err)
		return
	}

	respond(w, translation)
}

func (s *Server) systemMemory(w http.ResponseWriter, _ *http.Request) {
	info, err := procinfo.SystemMemory()
	if err != nil {
		respondErr(w, err)
		return
	}

	respond(w, info)
}
