package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AmanSingh336699/ai-interview-battle/internal/api"
	"github.com/AmanSingh336699/ai-interview-battle/internal/battle"
	"github.com/AmanSingh336699/ai-interview-battle/internal/broadcast"
	"github.com/AmanSingh336699/ai-interview-battle/internal/event"
	"github.com/AmanSingh336699/ai-interview-battle/internal/oracle"
	"github.com/AmanSingh336699/ai-interview-battle/internal/store"
)

type stubOracle struct{}

func (stubOracle) GenerateQuestions(context.Context, string, string) ([]string, error) {
	qs := make([]string, oracle.QuestionsPerBattle)
	for i := range qs {
		qs[i] = fmt.Sprintf("question %d", i+1)
	}
	return qs, nil
}

func (stubOracle) Score(context.Context, string, string) (int, error) {
	return 7, nil
}

func (stubOracle) Rank(_ context.Context, entries []oracle.RankEntry) ([]oracle.RankEntry, error) {
	return entries, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	eb := event.NewBus()
	t.Cleanup(eb.Stop)

	mem := store.NewMemory()
	svc := battle.NewService(battle.Config{
		Battles:  mem,
		Answers:  mem,
		Oracle:   stubOracle{},
		EventBus: eb,
	})

	presence := broadcast.NewPresence(broadcast.PresenceConfig{
		Redis:         rdb,
		EventBus:      eb,
		Prefix:        "test",
		TTL:           time.Minute,
		SweepInterval: time.Minute,
	})

	engine := gin.New()
	api.New(api.Config{
		Engine:   engine,
		Battle:   svc,
		Presence: presence,
	})

	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func createBattle(t *testing.T, srv *httptest.Server) string {
	t.Helper()

	resp := postJSON(t, srv.URL+"/api/battles", map[string]any{
		"userId":     "owner",
		"name":       "Alice",
		"topic":      "golang",
		"difficulty": "medium",
		"maxPlayers": 2,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	code, ok := decodeBody(t, resp)["battleCode"].(string)
	require.True(t, ok)
	require.NotEmpty(t, code)
	return code
}

func TestCreateBattle(t *testing.T) {
	srv := newTestServer(t)

	t.Run("created", func(t *testing.T) {
		code := createBattle(t, srv)
		assert.Len(t, code, 12)
	})

	t.Run("missing fields", func(t *testing.T) {
		resp := postJSON(t, srv.URL+"/api/battles", map[string]any{
			"userId": "owner",
		})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("malformed body", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/api/battles", "application/json", bytes.NewReader([]byte("{")))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestJoinBattle(t *testing.T) {
	srv := newTestServer(t)
	code := createBattle(t, srv)

	t.Run("joined", func(t *testing.T) {
		resp := postJSON(t, srv.URL+"/api/battles/"+code+"/join", map[string]any{
			"userId": "guest",
			"name":   "Bob",
		})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("duplicate join conflicts", func(t *testing.T) {
		resp := postJSON(t, srv.URL+"/api/battles/"+code+"/join", map[string]any{
			"userId": "guest",
			"name":   "Bob",
		})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("unknown battle", func(t *testing.T) {
		resp := postJSON(t, srv.URL+"/api/battles/NOPE/join", map[string]any{
			"userId": "guest",
			"name":   "Bob",
		})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestBattleFlow(t *testing.T) {
	srv := newTestServer(t)
	code := createBattle(t, srv)

	resp := postJSON(t, srv.URL+"/api/battles/"+code+"/join", map[string]any{
		"userId": "guest",
		"name":   "Bob",
	})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	t.Run("current question", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/battles/" + code + "/question")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Equal(t, "question 1", body["question"])
		assert.Equal(t, float64(0), body["currentIndex"])
	})

	t.Run("answer and check", func(t *testing.T) {
		resp := postJSON(t, srv.URL+"/api/battles/"+code+"/answers", map[string]any{
			"userId": "owner",
			"answer": "interfaces describe behaviour",
		})
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		got, err := http.Get(srv.URL + "/api/battles/" + code + "/answered?userId=owner")
		require.NoError(t, err)
		assert.Equal(t, true, decodeBody(t, got)["hasAnswered"])

		got, err = http.Get(srv.URL + "/api/battles/" + code + "/answered?userId=guest")
		require.NoError(t, err)
		assert.Equal(t, false, decodeBody(t, got)["hasAnswered"])
	})

	t.Run("duplicate answer conflicts", func(t *testing.T) {
		resp := postJSON(t, srv.URL+"/api/battles/"+code+"/answers", map[string]any{
			"userId": "owner",
			"answer": "second try",
		})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("summary before completion is not ready", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/battles/" + code + "/summary")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Equal(t, false, body["ready"])
	})
}

func TestCompletedBattleSummary(t *testing.T) {
	srv := newTestServer(t)
	code := createBattle(t, srv)

	resp := postJSON(t, srv.URL+"/api/battles/"+code+"/join", map[string]any{
		"userId": "guest",
		"name":   "Bob",
	})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	for i := 0; i < oracle.QuestionsPerBattle; i++ {
		for _, userID := range []string{"owner", "guest"} {
			resp := postJSON(t, srv.URL+"/api/battles/"+code+"/answers", map[string]any{
				"userId": userID,
				"answer": fmt.Sprintf("answer %d from %s", i, userID),
			})
			resp.Body.Close()
			require.Equal(t, http.StatusOK, resp.StatusCode)
		}
	}

	got, err := http.Get(srv.URL + "/api/battles/" + code + "/question")
	require.NoError(t, err)
	body := decodeBody(t, got)
	assert.Equal(t, true, body["finished"])

	got, err = http.Get(srv.URL + "/api/battles/" + code + "/summary")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, got.StatusCode)
	summary := decodeBody(t, got)
	assert.Equal(t, "completed", summary["status"])
	assert.NotEmpty(t, summary["players"])
}

func TestLobby(t *testing.T) {
	srv := newTestServer(t)
	code := createBattle(t, srv)

	resp, err := http.Get(srv.URL + "/api/battles/" + code + "/lobby")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "waiting", body["status"])
	players, ok := body["players"].([]any)
	require.True(t, ok)
	assert.Len(t, players, 1)
}

func TestTyping(t *testing.T) {
	srv := newTestServer(t)
	code := createBattle(t, srv)

	resp := postJSON(t, srv.URL+"/api/battles/"+code+"/typing", map[string]any{
		"userId": "owner",
		"typing": true,
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPresence(t *testing.T) {
	srv := newTestServer(t)
	code := createBattle(t, srv)

	resp := postJSON(t, srv.URL+"/api/battles/"+code+"/presence", map[string]any{
		"userId": "owner",
		"name":   "Alice",
	})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got, err := http.Get(srv.URL + "/api/battles/" + code + "/presence")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, got.StatusCode)

	members, ok := decodeBody(t, got)["members"].([]any)
	require.True(t, ok)
	assert.Len(t, members, 1)
}
