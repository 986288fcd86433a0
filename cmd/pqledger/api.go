package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/pzverkov/quantum-agility/internal/constants"
	qerrors "github.com/pzverkov/quantum-agility/internal/errors"
	"github.com/pzverkov/quantum-agility/pkg/ledger"
	"github.com/pzverkov/quantum-agility/pkg/metrics"
)

// api serves a ledger over HTTP. Routes:
//
//	POST /v1/entries          commit the request body
//	GET  /v1/entries          list entry metadata
//	GET  /v1/entries/latest   plaintext of the newest entry
//	GET  /v1/entries/{index}  plaintext of one entry
//	GET  /v1/verify           verify the chain
//	GET  /v1/status           identity, modes and tip
type api struct {
	l       *ledger.Ledger
	logger  *metrics.Logger
	maxBody int64
}

func newAPI(l *ledger.Ledger, logger *metrics.Logger) http.Handler {
	a := &api{l: l, logger: logger, maxBody: constants.MaxPayloadSize}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/entries", a.commit)
	mux.HandleFunc("GET /v1/entries", a.list)
	mux.HandleFunc("GET /v1/entries/latest", a.readLatest)
	mux.HandleFunc("GET /v1/entries/{index}", a.read)
	mux.HandleFunc("GET /v1/verify", a.verify)
	mux.HandleFunc("GET /v1/status", a.status)
	return mux
}

type commitResponse struct {
	Index uint64 `json:"index"`
}

type entryInfo struct {
	Index       uint64 `json:"index"`
	CommittedAt string `json:"committed_at"`
	KEMMode     string `json:"kem_mode"`
	KEMEpoch    uint32 `json:"kem_epoch"`
	SigMode     string `json:"sig_mode"`
	SigEpoch    uint32 `json:"sig_epoch"`
	Open        bool   `json:"open"`
}

type verifyResponse struct {
	Valid   bool   `json:"valid"`
	Entries int    `json:"entries"`
	Error   string `json:"error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (a *api) commit(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, a.maxBody+1))
	if err != nil {
		a.fail(w, qerrors.ErrMessageTooLarge)
		return
	}
	index, err := a.l.Commit(r.Context(), body)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, commitResponse{Index: index})
}

func (a *api) list(w http.ResponseWriter, _ *http.Request) {
	entries := a.l.Entries()
	out := make([]entryInfo, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryInfo{
			Index:       e.Index,
			CommittedAt: e.CommittedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
			KEMMode:     e.KEMMode.String(),
			KEMEpoch:    e.KEMEpoch,
			SigMode:     e.SigMode.String(),
			SigEpoch:    e.SigEpoch,
			Open:        e.MercyOpen,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *api) readLatest(w http.ResponseWriter, r *http.Request) {
	plaintext, err := a.l.ReadLatest(r.Context())
	a.writePlaintext(w, plaintext, err)
}

func (a *api) read(w http.ResponseWriter, r *http.Request) {
	index, err := parseIndex(r.PathValue("index"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	plaintext, err := a.l.ReadEntry(r.Context(), index)
	a.writePlaintext(w, plaintext, err)
}

func (a *api) writePlaintext(w http.ResponseWriter, plaintext []byte, err error) {
	if err != nil {
		a.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(plaintext)
}

func (a *api) verify(w http.ResponseWriter, r *http.Request) {
	resp := verifyResponse{Valid: true, Entries: a.l.Len()}
	if err := a.l.VerifyChainErr(r.Context()); err != nil {
		resp.Valid = false
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *api) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusOf(a.l))
}

func (a *api) fail(w http.ResponseWriter, err error) {
	code := statusCode(err)
	if code >= http.StatusInternalServerError {
		a.logger.Error("request failed", metrics.Fields{"error": err.Error()})
	}
	writeJSON(w, code, errorResponse{Error: err.Error()})
}

// statusCode maps ledger errors to HTTP status codes.
func statusCode(err error) int {
	switch {
	case errors.Is(err, qerrors.ErrEntryNotFound):
		return http.StatusNotFound
	case errors.Is(err, qerrors.ErrMessageTooLarge):
		return http.StatusRequestEntityTooLarge
	case qerrors.IsPolicy(err):
		return http.StatusForbidden
	case errors.Is(err, qerrors.ErrKeyRetired):
		return http.StatusGone
	case errors.Is(err, qerrors.ErrWrongEraKey):
		return http.StatusConflict
	case errors.Is(err, qerrors.ErrLedgerClosed):
		return http.StatusServiceUnavailable
	case qerrors.IsConfig(err):
		return http.StatusBadRequest
	case qerrors.IsCrypto(err):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
