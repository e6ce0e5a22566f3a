package server

import (
	"net/http"
)

type memAllocReq struct {
	SizeMB int `json:"size_mb"`
}

type memRegionReq struct {
	ID int `json:"id"`
}

type memAdviseReq struct {
	ID     int    `json:"id"`
	Advice string `json:"advice"`
}

func (s *Server) memAlloc(w http.ResponseWriter, r *http.Request) {
	var req memAllocReq
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, err)
		return
	}

	region, err := s.mem.Alloc(req.SizeMB)
	if err != nil {
		respondErr(w, err)
		return
	}

	respond(w, region)
}

func (s *Server) memLock(w http.ResponseWriter, r *http.Request) {
	var req memRegionReq
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, err)
		return
	}

	region, err := s.mem.Lock(req.ID)
	if err != nil {
		respondErr(w, err)
		return
	}

	respond(w, region)
}

func (s *Server) memUnlock(w http.ResponseWriter, r *http.Request) {
	var req memRegionReq
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, err)
		return
	}

	region, err := s.mem.Unlock(req.ID)
	if err != nil {
		respondErr(w, err)
		return
	}

	respond(w, region)
}

func (s *Server) memAdvise(w http.ResponseWriter, r *http.Request) {
	var req memAdviseReq
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, err)
		return
	}

	region, err := s.mem.Advise(req.ID, req.Advice)
	if err != nil {
		respondErr(w, err)
		return
	}

	respond(w, region)
}

func (s *Server) memFree(w http.ResponseWriter, r *http.Request) {
	var req memRegionReq
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, err)
		return
	}

	if err := s.mem.Free(req.ID); err != nil {
		respondErr(w, err)
		return
	}

	respond(w, s.mem.Status())
}

func (s *Server) memStatus(w http.ResponseWriter, _ *http.Request) {
	respond(w, s.mem.Status())
}

func (s *Server) memReset(w http.ResponseWriter, _ *http.Request) {
	if err := s.mem.Reset(); err != nil {
		respondErr(w, err)
		return
	}

	respond(w, s.mem.Status())
}
