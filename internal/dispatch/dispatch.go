// Package dispatch implements the post-match fan-out (spec.md §4.7): one
// detached call per match event that POSTs to the room-creation HTTP API
// and routes the resulting MatchSuccess/MatchFailure packets back to every
// lobby session that contributed a winner.
//
// Grounded on the teacher's generateRoomID (internal/matchmaker/matchmaker.go)
// for random-ID generation and on Matchmaker's "return a result the caller
// translates into a client-visible outcome" shape; the teacher's matchmaker
// itself is pure in-memory room bookkeeping with no HTTP or JSON in it, so
// the POST-and-decode flow below has no pack precedent and is built
// straight from the documented room-create contract using net/http.
package dispatch

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/EaseCation/rank-matcher/internal/ids"
	"github.com/EaseCation/rank-matcher/internal/matchmaking"
	"github.com/EaseCation/rank-matcher/internal/registry"
	"github.com/EaseCation/rank-matcher/internal/wire"
)

// HTTPClient is the subset of *http.Client Dispatch needs.
type HTTPClient interface {
	Post(url, contentType string, body io.Reader) (*http.Response, error)
}

// Dispatcher holds the configuration a match event needs to reach the
// room-creation API and route results back to sessions.
type Dispatcher struct {
	client HTTPClient
	apiURL string
	reg    *registry.Registry
	log    zerolog.Logger
}

func New(client HTTPClient, apiURL string, reg *registry.Registry, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{client: client, apiURL: apiURL, reg: reg, log: log}
}

type roomCreateRequest struct {
	Game     string `json:"game"`
	Matching string `json:"matching"`
}

// roomCreateResponse covers both success and error shapes; exactly one of
// the two groups of fields should be non-zero, per spec.md §6.
type roomCreateResponse struct {
	RequestID *int64  `json:"request_id"`
	ErrorID   *int64  `json:"error_id"`
	ErrorMsg  *string `json:"error_msg"`
}

// Dispatch runs one match event to completion (spec.md §4.7). Call it from
// a detached goroutine; it never panics and always completes its HTTP call
// before returning, per spec.md §5's "not cancelled mid-flight" rule.
func (d *Dispatcher) Dispatch(arena string, winners []matchmaking.Candidate) {
	bySession := groupBySession(d.reg, winners)

	matching, err := randomMatchingTag()
	if err != nil {
		d.failAll(arena, 9001, "cannot reach central server: "+err.Error(), bySession)
		return
	}

	reqBody, err := json.Marshal(roomCreateRequest{Game: arena, Matching: matching})
	if err != nil {
		d.failAll(arena, 9000, "invalid JSON: "+err.Error(), bySession)
		return
	}

	resp, err := d.client.Post(d.apiURL, "application/json", bytes.NewReader(reqBody))
	if err != nil {
		d.failAll(arena, 9001, "cannot reach central server: "+err.Error(), bySession)
		return
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		d.failAll(arena, 9001, "cannot reach central server: "+err.Error(), bySession)
		return
	}

	var parsed roomCreateResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		d.failAll(arena, 9000, "invalid JSON: "+err.Error(), bySession)
		return
	}

	switch {
	case parsed.RequestID != nil:
		for session, members := range bySession {
			d.enqueue(session, wire.EncodeMatchSuccess(wire.MatchSuccess{
				Arena:          arena,
				StageRequestID: *parsed.RequestID,
				Players:        members,
			}))
		}
	case parsed.ErrorID != nil:
		msg := ""
		if parsed.ErrorMsg != nil {
			msg = *parsed.ErrorMsg
		}
		d.failAll(arena, *parsed.ErrorID, msg, bySession)
	default:
		d.failAll(arena, 9000, "invalid JSON: response has neither request_id nor error_id", bySession)
	}
}

func (d *Dispatcher) failAll(arena string, errorID int64, errorMsg string, bySession map[ids.SessionID][]wire.MatchMember) {
	d.log.Warn().Str("arena", arena).Int64("error_id", errorID).Str("error_msg", errorMsg).Msg("match dispatch failed")
	for session, members := range bySession {
		d.enqueue(session, wire.EncodeMatchFailure(wire.MatchFailure{
			Arena:    arena,
			ErrorID:  errorID,
			ErrorMsg: errorMsg,
			Players:  members,
		}))
	}
}

func (d *Dispatcher) enqueue(session ids.SessionID, frame []byte) {
	peer, ok := d.reg.Peer(session)
	if !ok {
		d.log.Info().Str("session", session.String()).Msg("dropping match result for vanished session")
		return
	}
	if err := peer.Enqueue(frame); err != nil {
		d.log.Info().Str("session", session.String()).Err(err).Msg("enqueue failed, dropping match result")
	}
}

func groupBySession(reg *registry.Registry, winners []matchmaking.Candidate) map[ids.SessionID][]wire.MatchMember {
	out := make(map[ids.SessionID][]wire.MatchMember)
	for _, w := range winners {
		owner, ok := reg.Sender(w.PlayerID)
		if !ok {
			continue
		}
		out[owner] = append(out[owner], wire.MatchMember{Player: w.PlayerID, Length: w.Length})
	}
	return out
}

// randomMatchingTag produces "Rank#<32-bit random>" per spec.md §4.7 step 2.
func randomMatchingTag() (string, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	n := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	return fmt.Sprintf("Rank#%d", n), nil
}

// defaultHTTPClient is what cmd/matchserver wires in. Deliberately has no
// Timeout set: spec.md §5 says "none intrinsic; HTTP timeout is the
// client's default", and Go's http.Client default is no timeout at all.
func defaultHTTPClient() *http.Client {
	return &http.Client{}
}

// NewWithDefaultClient is the common-case constructor.
func NewWithDefaultClient(apiURL string, reg *registry.Registry, log zerolog.Logger) *Dispatcher {
	return New(defaultHTTPClient(), apiURL, reg, log)
}
