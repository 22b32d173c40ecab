// Package httpapi is the thin administrative front door over a Journal: a
// producer POSTs records, a consumer GETs them back and reports commit
// progress. It is glue, not storage-engine logic — everything interesting
// lives in internal/journal.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gumlog/journal/internal/journal"
)

// NewServer wires up the record/throttle/metrics routes over j and returns a
// ready-to-serve http.Server.
func NewServer(addr string, j *journal.Journal) *http.Server {
	h := &handler{journal: j}
	router := mux.NewRouter()

	router.HandleFunc("/records", h.handleAppend).Methods(http.MethodPost)
	router.HandleFunc("/records", h.handleRead).Methods(http.MethodGet)
	router.HandleFunc("/throttle", h.handleThrottle).Methods(http.MethodGet)
	router.HandleFunc("/commit", h.handleCommit).Methods(http.MethodPost)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return &http.Server{Addr: addr, Handler: router}
}

type handler struct {
	journal *journal.Journal
}

// appendRequest carries key/payload as base64 since JSON strings must be
// valid UTF-8 and message payloads are arbitrary bytes.
type appendRequest struct {
	Key     []byte `json:"key"`
	Payload []byte `json:"payload"`
}

type appendResponse struct {
	Offset uint64 `json:"offset"`
}

type readEntry struct {
	Offset  uint64 `json:"offset"`
	Key     []byte `json:"key"`
	Payload []byte `json:"payload"`
}

type readResponse struct {
	Entries []readEntry `json:"entries"`
}

type commitRequest struct {
	Offset uint64 `json:"offset"`
}

func (h *handler) handleAppend(w http.ResponseWriter, r *http.Request) {
	var body appendRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	offset, err := h.journal.Write(body.Key, body.Payload)
	if err != nil {
		writeJournalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appendResponse{Offset: offset})
}

func (h *handler) handleRead(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	maxCount := 100
	if raw := q.Get("max"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, "max must be a positive integer", http.StatusUnprocessableEntity)
			return
		}
		maxCount = n
	}

	var entries []journal.JournalReadEntry
	var err error
	if raw := q.Get("from"); raw != "" {
		from, perr := strconv.ParseUint(raw, 10, 64)
		if perr != nil {
			http.Error(w, "from must be a non-negative integer", http.StatusUnprocessableEntity)
			return
		}
		entries, err = h.journal.ReadFrom(from, maxCount)
	} else {
		entries, err = h.journal.Read(maxCount)
	}
	if err != nil {
		writeJournalError(w, err)
		return
	}

	out := make([]readEntry, len(entries))
	for i, e := range entries {
		out[i] = readEntry{Offset: e.Offset, Key: e.Key, Payload: e.Payload}
	}
	writeJSON(w, http.StatusOK, readResponse{Entries: out})
}

func (h *handler) handleCommit(w http.ResponseWriter, r *http.Request) {
	var body commitRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.journal.MarkJournalOffsetCommitted(body.Offset)
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) handleThrottle(w http.ResponseWriter, r *http.Request) {
	h.journal.SetThrottleState()
	writeJSON(w, http.StatusOK, h.journal.GetThrottleState())
}

func writeJournalError(w http.ResponseWriter, err error) {
	var oor *journal.OffsetOutOfRangeError
	switch {
	case errors.As(err, &oor):
		http.Error(w, err.Error(), http.StatusRequestedRangeNotSatisfiable)
	case errors.Is(err, journal.ErrSegmentFull), errors.Is(err, journal.ErrEntryTooLarge):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
