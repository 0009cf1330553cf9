package dispatch

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EaseCation/rank-matcher/internal/ids"
	"github.com/EaseCation/rank-matcher/internal/matchmaking"
	"github.com/EaseCation/rank-matcher/internal/registry"
	"github.com/EaseCation/rank-matcher/internal/wire"
)

// stubClient returns a fixed response (or error) for every POST, and
// records the request bodies it was handed.
type stubClient struct {
	status int
	body   string
	err    error
	posted []string
}

func (c *stubClient) Post(url, contentType string, body io.Reader) (*http.Response, error) {
	if c.err != nil {
		return nil, c.err
	}
	raw, _ := io.ReadAll(body)
	c.posted = append(c.posted, string(raw))
	return &http.Response{
		StatusCode: c.status,
		Body:       io.NopCloser(strings.NewReader(c.body)),
	}, nil
}

// fakePeer records every frame enqueued to it.
type fakePeer struct {
	frames [][]byte
}

func (p *fakePeer) Enqueue(frame []byte) error {
	p.frames = append(p.frames, frame)
	return nil
}

func TestDispatchSuccessRoutesMatchSuccessToEachSession(t *testing.T) {
	reg := registry.New()
	session1 := ids.NewSessionID()
	session2 := ids.NewSessionID()
	peer1, peer2 := &fakePeer{}, &fakePeer{}
	reg.AddPeer(session1, peer1)
	reg.AddPeer(session2, peer2)
	reg.SetSender("p1", session1)
	reg.SetSender("p2", session2)

	client := &stubClient{status: 200, body: `{"request_id": 42}`}
	d := New(client, "http://example.invalid/customAddStage", reg, zerolog.Nop())

	d.Dispatch("ranked", []matchmaking.Candidate{
		{PlayerID: "p1", Length: 1},
		{PlayerID: "p2", Length: 1},
	})

	require.Len(t, peer1.frames, 1)
	require.Len(t, peer2.frames, 1)

	msg, err := wire.Decode(peer1.frames[0])
	require.NoError(t, err)
	ms, ok := msg.(wire.MatchSuccess)
	require.True(t, ok)
	assert.Equal(t, "ranked", ms.Arena)
	assert.Equal(t, int64(42), ms.StageRequestID)
	assert.Equal(t, []wire.MatchMember{{Player: "p1", Length: 1}}, ms.Players)

	require.Len(t, client.posted, 1)
	assert.Contains(t, client.posted[0], `"game":"ranked"`)
	assert.Contains(t, client.posted[0], `"matching":"Rank#`)
}

func TestDispatchErrorJSONRoutesMatchFailure(t *testing.T) {
	reg := registry.New()
	session1 := ids.NewSessionID()
	peer1 := &fakePeer{}
	reg.AddPeer(session1, peer1)
	reg.SetSender("p1", session1)

	client := &stubClient{status: 200, body: `{"error_id": 7, "error_msg": "arena full upstream"}`}
	d := New(client, "http://example.invalid/customAddStage", reg, zerolog.Nop())

	d.Dispatch("ranked", []matchmaking.Candidate{{PlayerID: "p1", Length: 1}})

	require.Len(t, peer1.frames, 1)
	msg, err := wire.Decode(peer1.frames[0])
	require.NoError(t, err)
	mf, ok := msg.(wire.MatchFailure)
	require.True(t, ok)
	assert.Equal(t, int64(7), mf.ErrorID)
	assert.Equal(t, "arena full upstream", mf.ErrorMsg)
}

func TestDispatchNonJSONBodySynthesizesErrorID9000(t *testing.T) {
	reg := registry.New()
	session1 := ids.NewSessionID()
	peer1 := &fakePeer{}
	reg.AddPeer(session1, peer1)
	reg.SetSender("p1", session1)

	client := &stubClient{status: 200, body: `not json at all`}
	d := New(client, "http://example.invalid/customAddStage", reg, zerolog.Nop())

	d.Dispatch("ranked", []matchmaking.Candidate{{PlayerID: "p1", Length: 1}})

	require.Len(t, peer1.frames, 1)
	msg, err := wire.Decode(peer1.frames[0])
	require.NoError(t, err)
	mf := msg.(wire.MatchFailure)
	assert.Equal(t, int64(9000), mf.ErrorID)
	assert.Contains(t, mf.ErrorMsg, "invalid JSON")
}

func TestDispatchTransportFailureSynthesizesErrorID9001(t *testing.T) {
	reg := registry.New()
	session1 := ids.NewSessionID()
	peer1 := &fakePeer{}
	reg.AddPeer(session1, peer1)
	reg.SetSender("p1", session1)

	client := &stubClient{err: assertableErr{"connection refused"}}
	d := New(client, "http://example.invalid/customAddStage", reg, zerolog.Nop())

	d.Dispatch("ranked", []matchmaking.Candidate{{PlayerID: "p1", Length: 1}})

	require.Len(t, peer1.frames, 1)
	msg, err := wire.Decode(peer1.frames[0])
	require.NoError(t, err)
	mf := msg.(wire.MatchFailure)
	assert.Equal(t, int64(9001), mf.ErrorID)
	assert.Contains(t, mf.ErrorMsg, "cannot reach central server")
}

func TestDispatchVanishedSessionDropsSilently(t *testing.T) {
	reg := registry.New()
	// p1's owner session never registered a peer -- simulates a session
	// that disappeared between match selection and dispatch completing.
	session1 := ids.NewSessionID()
	reg.SetSender("p1", session1)

	client := &stubClient{status: 200, body: `{"request_id": 1}`}
	d := New(client, "http://example.invalid/customAddStage", reg, zerolog.Nop())

	assert.NotPanics(t, func() {
		d.Dispatch("ranked", []matchmaking.Candidate{{PlayerID: "p1", Length: 1}})
	})
}

type assertableErr struct{ msg string }

func (e assertableErr) Error() string { return e.msg }
