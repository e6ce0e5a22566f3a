// Package server exposes the simulators, the memory playground, and the
// live-kernel inspectors over an HTTP JSON API.
//
// Every route answers with an envelope of the form
// {"success": true, "data": ...} or {"success": false, "error": "..."}.
// Caller mistakes map to HTTP 400, collaborator failures to 500.
package server

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net"
	"net/http"
	"os"
	"sync"

	"github.com/gorilla/mux"

	"github.com/vmlab-project/vmlab/pagingsim"
	"github.com/vmlab-project/vmlab/playground"
	"github.com/vmlab-project/vmlab/recording"
	"github.com/vmlab-project/vmlab/tlbsim"
	"github.com/vmlab-project/vmlab/vm"
)

// Trace tables the server records into when built with a writer.
const (
	tlbTraceTable    = "tlb_accesses"
	pagingTraceTable = "paging_accesses"
)

// A Server owns at most one TLB simulator and one paging simulator at a
// time, plus the playground manager. Re-initializing a simulator replaces
// the previous instance.
type Server struct {
	mu       sync.Mutex
	tlb      *tlbsim.Simulator
	paging   *pagingsim.Simulator
	mem      *playground.Manager
	recorder *recording.Writer
	seed     *int64
	router   *mux.Router
	listener net.Listener
}

// New builds a server. recorder may be nil, in which case accesses are not
// recorded.
func New(recorder *recording.Writer) (*Server, error) {
	s := &Server{
		mem:      playground.NewManager(),
		recorder: recorder,
	}

	if recorder != nil {
		if err := recorder.CreateTable(tlbTraceTable); err != nil {
			return nil, err
		}
		if err := recorder.CreateTable(pagingTraceTable); err != nil {
			return nil, err
		}
	}

	s.router = s.routes()

	return s, nil
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()

	r.Use(corsMiddleware)

	r.HandleFunc("/api/health", s.health)

	r.HandleFunc("/api/tlb/init", s.tlbInit)
	r.HandleFunc("/api/tlb/lookup", s.tlbLookup)
	r.HandleFunc("/api/tlb/insert", s.tlbInsert)
	r.HandleFunc("/api/tlb/access", s.tlbAccess)
	r.HandleFunc("/api/tlb/status", s.tlbStatus)
	r.HandleFunc("/api/tlb/flush", s.tlbFlush)
	r.HandleFunc("/api/tlb/reset", s.tlbReset)

	r.HandleFunc("/api/paging/init", s.pagingInit)
	r.HandleFunc("/api/paging/access", s.pagingAccess)
	r.HandleFunc("/api/paging/sequence", s.pagingSequence)
	r.HandleFunc("/api/paging/status", s.pagingStatus)
	r.HandleFunc("/api/paging/reset", s.pagingReset)

	r.HandleFunc("/api/processes", s.listProcesses)
	r.HandleFunc("/api/process/{pid}", s.processDetail)
	r.HandleFunc("/api/process/{pid}/maps", s.processMaps)
	r.HandleFunc("/api/process/{pid}/stats", s.processStats)
	r.HandleFunc("/api/process/{pid}/translate/{addr}", s.processTranslate)
	r.HandleFunc("/api/system/memory", s.systemMemory)

	r.HandleFunc("/api/mem/alloc", s.memAlloc)
	r.HandleFunc("/api/mem/lock", s.memLock)
	r.HandleFunc("/api/mem/unlock", s.memUnlock)
	r.HandleFunc("/api/mem/advise", s.memAdvise)
	r.HandleFunc("/api/mem/free", s.memFree)
	r.HandleFunc("/api/mem/status", s.memStatus)
	r.HandleFunc("/api/mem/reset", s.memReset)

	r.HandleFunc("/api/debug/{target}", s.listSimulatorState)
	r.HandleFunc("/api/profile", s.collectProfile)

	return r
}

// SetDefaultSeed makes simulators built without an explicit seed use a
// deterministic random source. Call before Listen.
func (s *Server) SetDefaultSeed(seed int64) {
	s.seed = &seed
}

// chooseRand resolves the random source for a new simulator: the request's
// seed wins, then the server default, then nil for time seeding.
func (s *Server) chooseRand(reqSeed *int64) *rand.Rand {
	seed := reqSeed
	if seed == nil {
		seed = s.seed
	}
	if seed == nil {
		return nil
	}

	return rand.New(rand.NewSource(*seed))
}

// Listen binds addr and reports the URL the server is reachable at. Pass
// ":0" to pick an ephemeral port.
func (s *Server) Listen(addr string) (string, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}
	s.listener = listener

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Serving the lab at %s\n", url)

	return url, nil
}

// Serve answers requests until the listener closes.
func (s *Server) Serve() error {
	return http.Serve(s.listener, s.router)
}

// Handler exposes the routing table so tests can drive the API without a
// listener.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	tlbReady := s.tlb != nil
	pagingReady := s.paging != nil
	s.mu.Unlock()

	respond(w, map[string]interface{}{
		"status":             "ok",
		"tlb_initialized":    tlbReady,
		"paging_initialized": pagingReady,
		"regions":            s.mem.Status().Count,
		"recording":          s.recorder != nil,
	})
}

func (s *Server) tlbSim() (*tlbsim.Simulator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tlb == nil {
		return nil, vm.NotInitializedErr("tlb")
	}
	return s.tlb, nil
}

func (s *Server) pagingSim() (*pagingsim.Simulator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paging == nil {
		return nil, vm.NotInitializedErr("paging")
	}
	return s.paging, nil
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func respond(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")

	bytes, err := json.Marshal(envelope{Success: true, Data: data})
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func respondErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if vm.CodeOf(err) != 0 {
		status = http.StatusBadRequest
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	bytes, merr := json.Marshal(envelope{Error: err.Error()})
	dieOnErr(merr)

	_, werr := w.Write(bytes)
	dieOnErr(werr)
}

func decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return vm.InvalidArgumentErr("request",
			"malformed JSON body: "+err.Error())
	}
	return nil
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
