package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"astroarena/store"
)

// Router 所有 HTTP 路由
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/ws", s.hub.HandleWS)

	r.HandleFunc("/sessions", s.handleCreateSession).Methods(http.MethodPost)
	r.HandleFunc("/sessions", s.handleListSessions).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}", s.handleGetSession).Methods(http.MethodGet)

	r.HandleFunc("/ships", s.handleListShips).Methods(http.MethodGet)
	r.HandleFunc("/ships", s.handleCreateShip).Methods(http.MethodPost)
	r.HandleFunc("/ships/passphrase/{passphrase}", s.handleFindShip).Methods(http.MethodGet)
	r.HandleFunc("/ships/{id}", s.handleGetShip).Methods(http.MethodGet)
	r.HandleFunc("/ships/{id}", s.handleUpdateShip).Methods(http.MethodPut)

	r.HandleFunc("/highscores", s.handleTopScores).Methods(http.MethodGet)
	r.HandleFunc("/highscores", s.handleAddScore).Methods(http.MethodPost)

	r.HandleFunc("/admin/config", s.HandleAdminConfig).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/metrics", s.HandleMetrics).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.HandleHealth).Methods(http.MethodGet)
	return r
}

type createSessionBody struct {
	HostPlayerID string  `json:"hostPlayerId"`
	MaxPlayers   int     `json:"maxPlayers"`
	WorldWidth   float64 `json:"worldWidth"`
	WorldHeight  float64 `json:"worldHeight"`
}

// POST /sessions
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var body createSessionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		HandleError(w, BadRequestError{Msg: "invalid json"})
		return
	}
	if body.HostPlayerID == "" {
		HandleError(w, BadRequestError{Msg: "hostPlayerId is required"})
		return
	}
	sess, err := s.registry.CreateSession(body.HostPlayerID, body.MaxPlayers, body.WorldWidth, body.WorldHeight)
	if err != nil {
		HandleError(w, err)
		return
	}
	s.metrics.IncSessionsCreated()
	HandleSuccess(w, http.StatusCreated, "session", sess)
}

// GET /sessions：可加入的会话，返回前用房间人数校正
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	HandleSuccess(w, http.StatusOK, "sessions", s.registry.ListAvailable(s.hub))
}

// GET /sessions/{id}
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.registry.Get(mux.Vars(r)["id"])
	if err != nil {
		HandleError(w, err)
		return
	}
	HandleSuccess(w, http.StatusOK, "session", sess)
}

func (s *Server) handleListShips(w http.ResponseWriter, r *http.Request) {
	ships, err := s.store.ListShips(r.Context())
	if err != nil {
		HandleError(w, err)
		return
	}
	if ships == nil {
		ships = []store.Ship{}
	}
	HandleSuccess(w, http.StatusOK, "ships", ships)
}

func (s *Server) handleCreateShip(w http.ResponseWriter, r *http.Request) {
	var ship store.Ship
	if err := json.NewDecoder(r.Body).Decode(&ship); err != nil {
		HandleError(w, BadRequestError{Msg: "invalid json"})
		return
	}
	created, err := s.store.CreateShip(r.Context(), ship)
	if err != nil {
		HandleError(w, err)
		return
	}
	HandleSuccess(w, http.StatusCreated, "ship", created)
}

func (s *Server) handleFindShip(w http.ResponseWriter, r *http.Request) {
	ship, err := s.store.FindShip(r.Context(), mux.Vars(r)["passphrase"])
	if err != nil {
		HandleError(w, err)
		return
	}
	HandleSuccess(w, http.StatusOK, "ship", ship)
}

func (s *Server) handleGetShip(w http.ResponseWriter, r *http.Request) {
	ship, err := s.store.GetShip(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		HandleError(w, err)
		return
	}
	ship.Passphrase = ""
	HandleSuccess(w, http.StatusOK, "ship", ship)
}

func (s *Server) handleUpdateShip(w http.ResponseWriter, r *http.Request) {
	var ship store.Ship
	if err := json.NewDecoder(r.Body).Decode(&ship); err != nil {
		HandleError(w, BadRequestError{Msg: "invalid json"})
		return
	}
	ship.ID = mux.Vars(r)["id"]
	updated, err := s.store.UpdateShip(r.Context(), ship)
	if err != nil {
		HandleError(w, err)
		return
	}
	HandleSuccess(w, http.StatusOK, "ship", updated)
}

// GET /highscores?limit=10
func (s *Server) handleTopScores(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			HandleError(w, BadRequestError{Msg: "limit must be an integer"})
			return
		}
		limit = n
	}
	scores, err := s.store.TopScores(r.Context(), limit)
	if err != nil {
		HandleError(w, err)
		return
	}
	if scores == nil {
		scores = []store.HighScore{}
	}
	HandleSuccess(w, http.StatusOK, "highscores", scores)
}

func (s *Server) handleAddScore(w http.ResponseWriter, r *http.Request) {
	var h store.HighScore
	if err := json.NewDecoder(r.Body).Decode(&h); err != nil {
		HandleError(w, BadRequestError{Msg: "invalid json"})
		return
	}
	created, err := s.store.AddScore(r.Context(), h)
	if err != nil {
		HandleError(w, err)
		return
	}
	HandleSuccess(w, http.StatusCreated, "highscore", created)
}
