package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/svdguess/assets"
	"github.com/robalobadob/svdguess/internal/catalog"
	"github.com/robalobadob/svdguess/internal/daily"
	"github.com/robalobadob/svdguess/internal/database"
	"github.com/robalobadob/svdguess/internal/game"
	"github.com/robalobadob/svdguess/internal/imagebuf"
	"github.com/robalobadob/svdguess/internal/store"
)

var testShape = imagebuf.Shape{Height: 8, Width: 8, Channels: 4}

var testNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

// fixedCatalog always samples the same entry.
type fixedCatalog struct {
	*catalog.Memory
	pick string
}

func (c fixedCatalog) SampleOne(ctx context.Context) (string, []byte, error) {
	b, err := c.Lookup(ctx, c.pick)
	return c.pick, b, err
}

func pattern(t *testing.T, seed int) []byte {
	t.Helper()
	pix := make([]uint8, testShape.Len())
	for y := 0; y < testShape.Height; y++ {
		for x := 0; x < testShape.Width; x++ {
			for c := 0; c < testShape.Channels; c++ {
				pix[(y*testShape.Width+x)*testShape.Channels+c] = uint8((x*seed + y*y*3 + c*7 + x*y) % 256)
			}
		}
	}
	im, err := imagebuf.New(testShape, pix)
	require.NoError(t, err)
	b, err := imagebuf.Export(im)
	require.NoError(t, err)
	return b
}

func newTestServer(t *testing.T, cat game.Catalog) *Server {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db, assets.Migrations()))

	codec, err := imagebuf.NewCodec(testShape)
	require.NoError(t, err)
	clock := func() time.Time { return testNow }
	eng := game.NewEngine(cat, codec, game.WithClock(clock))
	return New(eng, store.NewMemoryStore(), db, Options{
		JWTSecret: "test-secret",
		DailySalt: "test-salt",
		Now:       clock,
	})
}

func defaultCatalog(t *testing.T, pick string) game.Catalog {
	t.Helper()
	mem, err := catalog.NewMemory(map[string][]byte{
		"Alpha": pattern(t, 3),
		"Beta":  pattern(t, 11),
		"Gamma": pattern(t, 29),
	})
	require.NoError(t, err)
	return fixedCatalog{Memory: mem, pick: pick}
}

// roundJSON mirrors roundRes for decoding.
type roundJSON struct {
	SessionID  string      `json:"sessionId"`
	Image      string      `json:"image"`
	Message    string      `json:"message"`
	Stats      *game.Stats `json:"stats"`
	StatsLines []string    `json:"statsLines"`
	Phase      string      `json:"phase"`
	Round      int         `json:"round"`
	Rank       int         `json:"rank"`
	MaxRank    int         `json:"maxRank"`
	Guesses    int         `json:"guesses"`
	Score      int         `json:"score"`
	Answer     string      `json:"answer"`
	Exhausted  bool        `json:"exhausted"`
	Date       string      `json:"date"`
	Played     bool        `json:"played"`
}

type client struct {
	t       *testing.T
	h       http.Handler
	cookies map[string]*http.Cookie
}

func newClient(t *testing.T, s *Server) *client {
	return &client{t: t, h: s.Router(), cookies: map[string]*http.Cookie{}}
}

func (c *client) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c.h.ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.MaxAge < 0 {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck
	}
	return rec
}

func (c *client) round(method, path string, body any) roundJSON {
	c.t.Helper()
	rec := c.do(method, path, body)
	require.Equal(c.t, http.StatusOK, rec.Code, rec.Body.String())
	var out roundJSON
	require.NoError(c.t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthAndNames(t *testing.T) {
	c := newClient(t, newTestServer(t, defaultCatalog(t, "Alpha")))

	rec := c.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok":true`)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	rec = c.do(http.MethodGet, "/catalog/names", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var names struct{ Names []string }
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &names))
	assert.Equal(t, []string{"Alpha", "Beta", "Gamma"}, names.Names)

	rec = c.do(http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGameFlow(t *testing.T) {
	c := newClient(t, newTestServer(t, defaultCatalog(t, "Beta")))

	start := c.round(http.MethodPost, "/game/new", nil)
	require.NotEmpty(t, start.SessionID)
	assert.Equal(t, "playing", start.Phase)
	assert.Equal(t, game.MsgGo, start.Message)
	assert.Equal(t, 1, start.Rank)
	assert.Equal(t, 1, start.Round)
	assert.True(t, strings.HasPrefix(start.Image, "data:image/png;base64,"))
	require.NotNil(t, start.Stats)
	assert.Equal(t, 8+8*4+1, start.Stats.BytesShown)
	assert.Len(t, start.StatsLines, 3)
	assert.Empty(t, start.Answer, "target stays hidden while playing")
	assert.Contains(t, c.cookies, anonCookieName)

	wrong := c.round(http.MethodPost, "/game/guess", guessReq{SessionID: start.SessionID, Guess: "Alpha"})
	assert.Equal(t, game.MsgNope, wrong.Message)
	assert.Equal(t, 2, wrong.Rank)
	assert.Equal(t, "playing", wrong.Phase)

	// unknown names do not cost a singular value
	rec := c.do(http.MethodPost, "/game/guess", guessReq{SessionID: start.SessionID, Guess: "Zeta"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	view := c.round(http.MethodGet, "/game/"+start.SessionID, nil)
	assert.Equal(t, 2, view.Rank)

	won := c.round(http.MethodPost, "/game/guess", guessReq{SessionID: start.SessionID, Guess: " beta "})
	assert.Equal(t, "won", won.Phase)
	assert.Equal(t, 9, won.Score)
	assert.Equal(t, "You did it!! Your score: 9", won.Message)
	assert.Equal(t, "Beta", won.Answer)
	assert.NotEmpty(t, won.Image)

	rec = c.do(http.MethodPost, "/game/guess", guessReq{SessionID: start.SessionID, Guess: "Beta"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	again := c.round(http.MethodPost, "/game/new", newGameReq{SessionID: start.SessionID})
	assert.Equal(t, start.SessionID, again.SessionID)
	assert.Equal(t, 2, again.Round)
	assert.Equal(t, 1, again.Rank)
}

func TestGuessUnknownSession(t *testing.T) {
	c := newClient(t, newTestServer(t, defaultCatalog(t, "Alpha")))

	rec := c.do(http.MethodPost, "/game/guess", guessReq{SessionID: "missing", Guess: "Alpha"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "session_not_found")

	rec = c.do(http.MethodGet, "/game/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = c.do(http.MethodPost, "/game/guess", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRevealEndsRound(t *testing.T) {
	c := newClient(t, newTestServer(t, defaultCatalog(t, "Gamma")))

	start := c.round(http.MethodPost, "/game/new", nil)
	out := c.round(http.MethodPost, "/game/reveal", sessionReq{SessionID: start.SessionID})
	assert.Equal(t, "idle", out.Phase)
	assert.Equal(t, "Gamma", out.Answer)
	assert.Equal(t, "It was Gamma", out.Message)
	assert.Equal(t, 0, out.Score)
	assert.NotEmpty(t, out.Image)

	rec := c.do(http.MethodPost, "/game/reveal", sessionReq{SessionID: start.SessionID})
	assert.Equal(t, http.StatusConflict, rec.Code)

	idle := c.round(http.MethodGet, "/game/"+start.SessionID, nil)
	assert.Equal(t, game.MsgPrompt, idle.Message)
	assert.Empty(t, idle.StatsLines)
	assert.Nil(t, idle.Stats)
}

func TestBadCatalogImageIs502(t *testing.T) {
	mem, err := catalog.NewMemory(map[string][]byte{"Broken": []byte("not an image")})
	require.NoError(t, err)
	c := newClient(t, newTestServer(t, fixedCatalog{Memory: mem, pick: "Broken"}))

	rec := c.do(http.MethodPost, "/game/new", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestAuthFlowAndHistory(t *testing.T) {
	s := newTestServer(t, defaultCatalog(t, "Alpha"))
	c := newClient(t, s)

	rec := c.do(http.MethodGet, "/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// a guest round, claimed at signup
	start := c.round(http.MethodPost, "/game/new", nil)
	c.round(http.MethodPost, "/game/guess", guessReq{SessionID: start.SessionID, Guess: "Alpha"})

	rec = c.do(http.MethodPost, "/auth/signup", credentials{Username: "ab", Password: "password123"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do(http.MethodPost, "/auth/signup", credentials{Username: "player_one", Password: "password123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, c.cookies, "svdguess_token")

	rec = c.do(http.MethodPost, "/auth/signup", credentials{Username: "PLAYER_ONE", Password: "password123"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = c.do(http.MethodGet, "/auth/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"player_one"`)

	// a logged-in round
	start = c.round(http.MethodPost, "/game/new", nil)
	c.round(http.MethodPost, "/game/guess", guessReq{SessionID: start.SessionID, Guess: "Beta"})
	c.round(http.MethodPost, "/game/guess", guessReq{SessionID: start.SessionID, Guess: "alpha"})

	rec = c.do(http.MethodGet, "/stats/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats struct {
		GamesPlayed int `json:"gamesPlayed"`
		Wins        int `json:"wins"`
		TotalScore  int `json:"totalScore"`
		BestScore   int `json:"bestScore"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.GamesPlayed)
	assert.Equal(t, 2, stats.Wins)
	assert.Equal(t, 19, stats.TotalScore)
	assert.Equal(t, 10, stats.BestScore)

	rec = c.do(http.MethodGet, "/games/mine", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var games []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &games))
	assert.Len(t, games, 2)

	rec = c.do(http.MethodPost, "/auth/logout", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, c.cookies, "svdguess_token")
	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodGet, "/stats/me", nil).Code)

	rec = c.do(http.MethodPost, "/auth/login", credentials{Username: "player_one", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = c.do(http.MethodPost, "/auth/login", credentials{Username: "Player_One", Password: "password123"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBearerToken(t *testing.T) {
	s := newTestServer(t, defaultCatalog(t, "Alpha"))
	c := newClient(t, s)
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/auth/signup", credentials{Username: "bearer_user", Password: "password123"}).Code)
	tok := c.cookies["svdguess_token"].Value

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok+"x")
	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDailyChallenge(t *testing.T) {
	s := newTestServer(t, defaultCatalog(t, "Alpha"))
	c := newClient(t, s)
	target := daily.Target(testNow, "test-salt", []string{"Alpha", "Beta", "Gamma"})

	start := c.round(http.MethodPost, "/daily/new", nil)
	assert.Equal(t, "2026-03-14", start.Date)
	assert.False(t, start.Played)
	assert.Equal(t, "playing", start.Phase)

	resumed := c.round(http.MethodPost, "/daily/new", nil)
	assert.Equal(t, start.SessionID, resumed.SessionID)

	rec := c.do(http.MethodPost, "/daily/guess", guessReq{SessionID: "other", Guess: target})
	assert.Equal(t, http.StatusConflict, rec.Code)

	won := c.round(http.MethodPost, "/daily/guess", guessReq{SessionID: start.SessionID, Guess: target})
	assert.Equal(t, "won", won.Phase)
	assert.Equal(t, 10, won.Score)

	done := c.round(http.MethodPost, "/daily/new", nil)
	assert.True(t, done.Played)
	assert.Empty(t, done.SessionID)

	rec = c.do(http.MethodGet, "/daily/leaderboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var lb struct {
		Date string        `json:"date"`
		Top  []daily.LBRow `json:"top"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lb))
	assert.Equal(t, "2026-03-14", lb.Date)
	require.Len(t, lb.Top, 1)
	assert.Equal(t, 10, lb.Top[0].Score)
	assert.Equal(t, c.cookies[anonCookieName].Value, lb.Top[0].PlayerID)

	// a second guest gets the same target
	other := newClient(t, s)
	st := other.round(http.MethodPost, "/daily/new", nil)
	assert.NotEqual(t, start.SessionID, st.SessionID)
	w := other.round(http.MethodPost, "/daily/guess", guessReq{SessionID: st.SessionID, Guess: target})
	assert.Equal(t, "won", w.Phase)
}

func TestCORSPreflight(t *testing.T) {
	c := newClient(t, newTestServer(t, defaultCatalog(t, "Alpha")))
	rec := c.do(http.MethodOptions, "/game/new", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

type gameRowJSON struct {
	Round   int    `json:"round"`
	Status  string `json:"status"`
	Target  string `json:"target"`
	Guesses int    `json:"guesses"`
}

func (c *client) myGames() []gameRowJSON {
	c.t.Helper()
	rec := c.do(http.MethodGet, "/games/mine", nil)
	require.Equal(c.t, http.StatusOK, rec.Code, rec.Body.String())
	var out []gameRowJSON
	require.NoError(c.t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestRestartAbandonsUnfinishedRound(t *testing.T) {
	s := newTestServer(t, defaultCatalog(t, "Alpha"))
	c := newClient(t, s)
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/auth/signup", credentials{Username: "quitter", Password: "password123"}).Code)

	start := c.round(http.MethodPost, "/game/new", nil)
	c.round(http.MethodPost, "/game/guess", guessReq{SessionID: start.SessionID, Guess: "Beta"})

	again := c.round(http.MethodPost, "/game/new", newGameReq{SessionID: start.SessionID})
	assert.Equal(t, start.SessionID, again.SessionID)
	assert.Equal(t, 2, again.Round)

	games := c.myGames()
	require.Len(t, games, 2)
	assert.Equal(t, gameRowJSON{Round: 2, Status: "playing"}, games[0])
	assert.Equal(t, gameRowJSON{Round: 1, Status: "abandoned", Guesses: 1}, games[1])

	// ending the session abandons the live round too
	rec := c.do(http.MethodDelete, "/game/"+start.SessionID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, http.StatusNotFound, c.do(http.MethodGet, "/game/"+start.SessionID, nil).Code)
	assert.Equal(t, http.StatusNotFound, c.do(http.MethodDelete, "/game/"+start.SessionID, nil).Code)

	games = c.myGames()
	require.Len(t, games, 2)
	assert.Equal(t, "abandoned", games[0].Status)

	rec = c.do(http.MethodGet, "/stats/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"gamesPlayed":2`)
	assert.Contains(t, rec.Body.String(), `"wins":0`)
}

func TestDailyWinStandsWhenResultIsLost(t *testing.T) {
	s := newTestServer(t, defaultCatalog(t, "Alpha"))
	_, err := s.db.Exec(`CREATE TRIGGER reject_results BEFORE INSERT ON daily_results
		BEGIN SELECT RAISE(ABORT, 'rejected'); END`)
	require.NoError(t, err)
	c := newClient(t, s)
	target := daily.Target(testNow, "test-salt", []string{"Alpha", "Beta", "Gamma"})

	start := c.round(http.MethodPost, "/daily/new", nil)
	won := c.round(http.MethodPost, "/daily/guess", guessReq{SessionID: start.SessionID, Guess: target})
	require.Equal(t, "won", won.Phase)

	again := c.round(http.MethodPost, "/daily/new", nil)
	assert.True(t, again.Played)
	assert.Empty(t, again.SessionID)
}
