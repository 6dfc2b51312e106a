// Copyright (c) 2025-2026 The BitQuill developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Command bitquilld hosts the provenance engine behind an HTTP API: one
// editlog.Log per document, backed by a leveldb snapshot store, with a
// cron-scheduled sweep that upgrades pending anchor receipts.
package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/robfig/cron"

	"github.com/bitquill/provenance/internal/config"
	"github.com/bitquill/provenance/internal/slogutil"
	"github.com/bitquill/provenance/internal/store"
	"github.com/bitquill/provenance/pkg/analyzer"
	"github.com/bitquill/provenance/pkg/anchor"
	"github.com/bitquill/provenance/pkg/delta"
	"github.com/bitquill/provenance/pkg/difficulty"
	"github.com/bitquill/provenance/pkg/editlog"
)

var log = slogutil.Disabled

// Server holds every open document's Log alongside the daemon's
// application context.
type Server struct {
	mu        sync.Mutex
	documents map[string]*editlog.Log

	cfg       *config.Config
	router    *mux.Router
	store     *store.Store
	anchorCli *anchor.Client
	cron      *cron.Cron
}

func newServer(cfg *config.Config, st *store.Store, anchorCli *anchor.Client) *Server {
	return &Server{
		documents: make(map[string]*editlog.Log),
		cfg:       cfg,
		router:    mux.NewRouter(),
		store:     st,
		anchorCli: anchorCli,
		cron:      cron.New(),
	}
}

func (s *Server) documentConfigs() (analyzer.Config, difficulty.Config) {
	analyzerCfg := analyzer.DefaultConfig()
	analyzerCfg.WindowSize = s.cfg.AnalyzerWindowSize
	difficultyCfg := difficulty.DefaultConfig()
	difficultyCfg.TargetIntervalMs = s.cfg.DifficultyTarget
	difficultyCfg.MaxDifficulty = s.cfg.DifficultyMax
	return analyzerCfg, difficultyCfg
}

func (s *Server) createDocument(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "missing id query parameter")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.documents[id]; exists {
		respondError(w, http.StatusConflict, "document already exists")
		return
	}

	analyzerCfg, difficultyCfg := s.documentConfigs()
	l, err := editlog.NewLog(delta.QuillComposer{}, analyzerCfg, difficultyCfg, s.anchorCli, nowMs())
	if err != nil {
		log.Errorf("create document %s: %v", id, err)
		respondError(w, http.StatusInternalServerError, "failed to create document")
		return
	}
	s.documents[id] = l
	s.persist(id, l)
	respondJSON(w, http.StatusCreated, map[string]interface{}{"id": id})
}

func (s *Server) getDocument(id string) (*editlog.Log, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.documents[id]
	return l, ok
}

func (s *Server) persist(id string, l *editlog.Log) {
	data, err := l.Serialize()
	if err != nil {
		log.Errorf("serialize document %s: %v", id, err)
		return
	}
	if err := s.store.Put(id, data); err != nil {
		log.Errorf("persist document %s: %v", id, err)
	}
}

// sealPayload hands back the exact bytes and difficulty a host must seal
// with pow.Seal before submitting an edit.
func (s *Server) sealPayload(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	l, ok := s.getDocument(id)
	if !ok {
		respondError(w, http.StatusNotFound, "unknown document")
		return
	}

	var body struct {
		Delta delta.Delta `json:"delta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	payload, err := l.SealPayload(body.Delta)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"payload_hex": hex.EncodeToString(payload),
		"difficulty":  l.RequiredDifficulty(),
	})
}

func (s *Server) addEdit(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	l, ok := s.getDocument(id)
	if !ok {
		respondError(w, http.StatusNotFound, "unknown document")
		return
	}

	var body struct {
		Delta       delta.Delta     `json:"delta"`
		Pow         editlog.PowInfo `json:"pow"`
		TimestampMs int64           `json:"timestamp_ms"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	leaf, err := l.AddLeaf(r.Context(), body.Delta, body.Pow, body.TimestampMs)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	s.persist(id, l)
	respondJSON(w, http.StatusCreated, leaf)
}

func (s *Server) currentContent(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	l, ok := s.getDocument(id)
	if !ok {
		respondError(w, http.StatusNotFound, "unknown document")
		return
	}
	content, err := l.CurrentContent(r.Context())
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, content)
}

func (s *Server) proof(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	l, ok := s.getDocument(vars["id"])
	if !ok {
		respondError(w, http.StatusNotFound, "unknown document")
		return
	}
	var index int
	if _, err := fmt.Sscanf(vars["index"], "%d", &index); err != nil {
		respondError(w, http.StatusBadRequest, "invalid leaf index")
		return
	}
	proof, err := l.Proof(index)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, proof)
}

func (s *Server) verifyProof(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	l, ok := s.getDocument(id)
	if !ok {
		respondError(w, http.StatusNotFound, "unknown document")
		return
	}
	var proof editlog.InclusionProof
	if err := json.NewDecoder(r.Body).Decode(&proof); err != nil {
		respondError(w, http.StatusBadRequest, "invalid proof body")
		return
	}
	respondJSON(w, http.StatusOK, l.VerifyProof(proof))
}

func (s *Server) anchorNow(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	l, ok := s.getDocument(id)
	if !ok {
		respondError(w, http.StatusNotFound, "unknown document")
		return
	}
	receipt, err := l.ManualTimestamp(r.Context(), nowMs())
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, receipt)
}

// upgradePending sweeps every open document's pending anchor receipts on
// the cron schedule configured by anchorpollinterval.
func (s *Server) upgradePending() {
	s.mu.Lock()
	docs := make(map[string]*editlog.Log, len(s.documents))
	for id, l := range s.documents {
		docs[id] = l
	}
	s.mu.Unlock()

	for id, l := range docs {
		for _, root := range s.anchorCli.Pending() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			state, err := l.UpgradeTimestamp(ctx, root, nowMs())
			cancel()
			if err != nil {
				log.Debugf("upgrade %s/%s: %v", id, root, err)
				continue
			}
			if state != anchor.StatePending {
				log.Infof("document %s root %s upgraded to %s", id, root, state)
			}
		}
	}
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	l, ok := s.getDocument(id)
	if !ok {
		respondError(w, http.StatusNotFound, "unknown document")
		return
	}
	respondJSON(w, http.StatusOK, l.History())
}

func (s *Server) editStats(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	l, ok := s.getDocument(id)
	if !ok {
		respondError(w, http.StatusNotFound, "unknown document")
		return
	}
	respondJSON(w, http.StatusOK, l.EditStats())
}

func (s *Server) routes() {
	s.router.HandleFunc("/documents", s.createDocument).Methods("POST")
	s.router.HandleFunc("/documents/{id}/seal-payload", s.sealPayload).Methods("POST")
	s.router.HandleFunc("/documents/{id}/edits", s.addEdit).Methods("POST")
	s.router.HandleFunc("/documents/{id}/content", s.currentContent).Methods("GET")
	s.router.HandleFunc("/documents/{id}/history", s.history).Methods("GET")
	s.router.HandleFunc("/documents/{id}/stats", s.editStats).Methods("GET")
	s.router.HandleFunc("/documents/{id}/proof/{index}", s.proof).Methods("GET")
	s.router.HandleFunc("/documents/{id}/proof/verify", s.verifyProof).Methods("POST")
	s.router.HandleFunc("/documents/{id}/anchor", s.anchorNow).Methods("POST")
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondEngineError maps an editlog.Error's Kind to an HTTP status; the
// engine returns structured errors and the host translates them here.
func respondEngineError(w http.ResponseWriter, err error) {
	var ee *editlog.Error
	if e, ok := err.(*editlog.Error); ok {
		ee = e
	}
	if ee == nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	status := http.StatusUnprocessableEntity
	switch ee.Kind {
	case editlog.KindPowRequired, editlog.KindPowInvalid:
		status = http.StatusPreconditionFailed
	case editlog.KindSuspiciousEdit:
		status = http.StatusTooManyRequests
	case editlog.KindChainBroken, editlog.KindProofInvalid, editlog.KindDeserializationError:
		status = http.StatusConflict
	case editlog.KindAnchorUnavailable:
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, map[string]string{"error": ee.Error(), "kind": string(ee.Kind)})
}

func nowMs() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.LogDir != "" {
		if err := slogutil.UseRotator(cfg.LogDir+"/bitquilld.log", 8); err != nil {
			return err
		}
	}
	defer slogutil.Close()
	log = slogutil.NewSubsystem("BQLD")
	editlog.UseLogger(slogutil.NewSubsystem("EDLG"))
	anchor.UseLogger(slogutil.NewSubsystem("ANCR"))
	if err := slogutil.SetLevels(cfg.DebugLevel); err != nil {
		return err
	}

	st, err := store.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer st.Close()

	var calendar anchor.CalendarClient = anchor.NewHTTPCalendar(cfg.CalendarURL, nil)
	anchorCli := anchor.NewClient(calendar, anchor.DefaultBackoff())

	s := newServer(cfg, st, anchorCli)
	s.routes()

	ids, err := st.List()
	if err != nil {
		return err
	}
	for _, id := range ids {
		data, ok, err := st.Get(id)
		if err != nil || !ok {
			continue
		}
		analyzerCfg, difficultyCfg := s.documentConfigs()
		l, err := editlog.Deserialize(context.Background(), data, delta.QuillComposer{}, analyzerCfg, difficultyCfg, anchorCli)
		if err != nil {
			log.Errorf("failed to restore document %s: %v", id, err)
			continue
		}
		s.documents[id] = l
		log.Infof("restored document %s (%d leaves)", id, l.Len())
	}

	if err := s.cron.AddFunc(fmt.Sprintf("@every %ds", cfg.AnchorPollIntervalSec), s.upgradePending); err != nil {
		return fmt.Errorf("schedule anchor poll: %w", err)
	}
	s.cron.Start()
	defer s.cron.Stop()

	handler := handlers.LoggingHandler(os.Stdout, handlers.RecoveryHandler()(s.router))
	server := &http.Server{Addr: cfg.Listen, Handler: handler}

	listenErr := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", cfg.Listen)
		listenErr <- server.ListenAndServe()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigs:
		log.Infof("terminating with %v", sig)
	case err := <-listenErr:
		if err != nil && err != http.ErrServerClosed {
			log.Errorf("listen: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
