package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"livepoll/domain"
	apperrors "livepoll/errors"
	"livepoll/runtime"
)

type fakeStorage struct {
	users map[string]string
}

func (s *fakeStorage) GetUser(_ context.Context, userID string) (domain.User, error) {
	name, ok := s.users[userID]
	if !ok {
		return domain.User{}, apperrors.ErrUnknownUser
	}
	return domain.User{ID: userID, Name: name}, nil
}

func (s *fakeStorage) GetPoll(_ context.Context, _ string) (domain.Poll, error) {
	return domain.Poll{}, apperrors.ErrPollNotFound
}

func (s *fakeStorage) InsertVote(_ context.Context, _ domain.Vote) error { return nil }

func (s *fakeStorage) CountVotes(_ context.Context, _ string) (domain.TallyResult, error) {
	return domain.TallyResult{}, nil
}

type submission struct {
	userID, pollID, optionID string
}

type fakeVotes struct {
	mu          sync.Mutex
	submissions []submission
}

func (v *fakeVotes) SubmitVote(_ context.Context, userID, pollID, optionID string) (domain.TallyResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.submissions = append(v.submissions, submission{userID, pollID, optionID})
	return domain.TallyResult{PollID: pollID}, nil
}

func (v *fakeVotes) Tally(_ context.Context, pollID string) (domain.TallyResult, error) {
	return domain.TallyResult{PollID: pollID}, nil
}

func (v *fakeVotes) Submissions() []submission {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]submission(nil), v.submissions...)
}

func newTestServer(t *testing.T) (*httptest.Server, *runtime.Registry, *fakeVotes) {
	t.Helper()
	registry := runtime.NewRegistry()
	router := runtime.NewRouter(slog.Default(), registry)
	votes := &fakeVotes{}
	storage := &fakeStorage{users: map[string]string{"u1": "Alice", "u2": "Bob"}}

	handler := NewHandler(slog.Default(), registry, router, votes, storage, 16, time.Second, time.Second)
	mux := http.NewServeMux()
	mux.Handle("GET /ws/{user_id}", handler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, registry, votes
}

func dial(t *testing.T, srv *httptest.Server, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + userID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var frame map[string]any
	require.NoError(t, json.Unmarshal(raw, &frame))
	return frame
}

func TestHandler_Join_Registers_And_Announces(t *testing.T) {
	req := require.New(t)
	srv, registry, _ := newTestServer(t)

	// When a known user connects
	conn := dial(t, srv, "u1")

	// Then the presence announcement reaches the joiner too
	frame := readFrame(t, conn)
	req.Equal("voter_join", frame["type"])
	req.Equal("Alice", frame["data"])
	req.Equal("u1", frame["user_id"])

	// And the registry holds exactly one live connection
	req.Eventually(func() bool { return registry.Count() == 1 }, time.Second, 10*time.Millisecond)
}

func TestHandler_Unknown_User_Is_Refused(t *testing.T) {
	req := require.New(t)
	srv, registry, _ := newTestServer(t)

	// When an unknown user connects
	conn := dial(t, srv, "ghost")

	// Then it receives an error frame and is never registered
	frame := readFrame(t, conn)
	req.Equal("error", frame["type"])
	req.Equal("unknown user", frame["data"])
	req.Zero(registry.Count())

	// And the connection is closed by the server
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	req.Error(err)
}

func TestHandler_Vote_Frame_Reaches_Coordinator(t *testing.T) {
	req := require.New(t)
	srv, _, votes := newTestServer(t)
	conn := dial(t, srv, "u1")
	readFrame(t, conn) // consume the join announcement

	// When the client submits a vote frame
	err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"vote","poll_id":"p1","option_id":"o1"}`))
	req.NoError(err)

	// Then the coordinator receives it
	req.Eventually(func() bool {
		subs := votes.Submissions()
		return len(subs) == 1 && subs[0] == submission{"u1", "p1", "o1"}
	}, time.Second, 10*time.Millisecond)
}

func TestHandler_Malformed_Message_Yields_Local_Error(t *testing.T) {
	req := require.New(t)
	srv, _, votes := newTestServer(t)
	conn := dial(t, srv, "u1")
	readFrame(t, conn) // consume the join announcement

	// When the client sends garbage
	req.NoError(conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))

	// Then it gets an error frame and the session stays usable
	frame := readFrame(t, conn)
	req.Equal("error", frame["type"])
	req.Equal("malformed message", frame["data"])

	req.NoError(conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"vote","poll_id":"p1","option_id":"o1"}`)))
	req.Eventually(func() bool { return len(votes.Submissions()) == 1 }, time.Second, 10*time.Millisecond)
}

func TestHandler_Disconnect_Unregisters(t *testing.T) {
	req := require.New(t)
	srv, registry, _ := newTestServer(t)
	conn := dial(t, srv, "u1")
	readFrame(t, conn)
	req.Eventually(func() bool { return registry.Count() == 1 }, time.Second, 10*time.Millisecond)

	// When the client goes away
	req.NoError(conn.Close())

	// Then the registry entry disappears
	req.Eventually(func() bool { return registry.Count() == 0 }, time.Second, 10*time.Millisecond)
}

func TestHandler_Reconnect_Supersedes_Old_Connection(t *testing.T) {
	req := require.New(t)
	srv, registry, _ := newTestServer(t)

	// Given a user connected twice in quick succession
	first := dial(t, srv, "u1")
	readFrame(t, first)
	second := dial(t, srv, "u1")
	readFrame(t, second)

	// Then only one live connection remains for that user
	req.Eventually(func() bool { return registry.Count() == 1 }, time.Second, 10*time.Millisecond)

	// And the first handle is closed by the eviction
	_ = first.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := first.ReadMessage(); err != nil {
			break
		}
	}

	// And a later broadcast reaches the second handle
	u2 := dial(t, srv, "u2")
	readFrame(t, u2)
	frame := readFrame(t, second)
	req.Equal("voter_join", frame["type"])
	req.Equal("u2", frame["user_id"])
}
