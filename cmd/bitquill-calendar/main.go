// Copyright (c) 2025-2026 The BitQuill developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Command bitquill-calendar is a reference implementation of the
// external anchoring calendar pkg/anchor.HTTPCalendar talks to: POST
// /digest submits a root hash and gets an opaque receipt blob back, GET
// /verify/{hex} reports whether that root has since been confirmed.
package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/bitquill/provenance/internal/slogutil"
	"github.com/bitquill/provenance/pkg/digest"
)

var log = slogutil.NewSubsystem("CLDR")

// confirmAfter is how long a submitted digest stays pending before this
// reference calendar confirms it, simulating a real calendar's block
// confirmation delay.
const confirmAfter = 10 * time.Second

type entry struct {
	submittedAt time.Time
}

// Calendar is the in-memory reference calendar: a submitted root is
// pending until confirmAfter has elapsed, then permanently confirmed.
// It has no persistence and is meant for local development against
// cmd/bitquilld, not production anchoring.
type Calendar struct {
	mu      sync.Mutex
	entries map[string]entry
}

func newCalendar() *Calendar {
	return &Calendar{entries: make(map[string]entry)}
}

func (c *Calendar) submit(hash digest.Hash) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := hash.String()
	if _, ok := c.entries[key]; !ok {
		c.entries[key] = entry{submittedAt: time.Now()}
	}
	return key
}

// status reports http.StatusOK once confirmAfter has elapsed since
// submission, http.StatusAccepted while still pending, and
// http.StatusNotFound for a digest that was never submitted.
func (c *Calendar) status(hash digest.Hash) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[hash.String()]
	if !ok {
		return http.StatusNotFound
	}
	if time.Since(e.submittedAt) >= confirmAfter {
		return http.StatusOK
	}
	return http.StatusAccepted
}

func (c *Calendar) handleDigest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, digest.Size+1))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	hash, err := digest.NewHash(body)
	if err != nil {
		http.Error(w, fmt.Sprintf("expected a %d-byte digest", digest.Size), http.StatusBadRequest)
		return
	}

	key := c.submit(hash)
	log.Infof("submitted root %s", key)
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, time.Now().UTC().Format(time.RFC3339))
}

func (c *Calendar) handleVerify(w http.ResponseWriter, r *http.Request) {
	hexDigest := mux.Vars(r)["digest"]
	raw, err := hex.DecodeString(hexDigest)
	if err != nil {
		http.Error(w, "invalid hex digest", http.StatusBadRequest)
		return
	}
	hash, err := digest.NewHash(raw)
	if err != nil {
		http.Error(w, fmt.Sprintf("expected a %d-byte digest", digest.Size), http.StatusBadRequest)
		return
	}

	status := c.status(hash)
	w.WriteHeader(status)
}

func run() error {
	listen := ":8787"
	if v := os.Getenv("BITQUILL_CALENDAR_LISTEN"); v != "" {
		listen = v
	}

	c := newCalendar()
	router := mux.NewRouter()
	router.HandleFunc("/digest", c.handleDigest).Methods("POST")
	router.HandleFunc("/verify/{digest}", c.handleVerify).Methods("GET")

	handler := handlers.LoggingHandler(os.Stdout, router)
	log.Infof("listening on %s", listen)
	return http.ListenAndServe(listen, handler)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
