package httpapi

import (
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"chainindexer/shared/types"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/blockchain/status", s.statusHandler).Methods("GET")
	s.router.HandleFunc("/blockchain/chains/{id}/status", s.chainStatusHandler).Methods("GET")
	s.router.HandleFunc("/blockchain/chains/{id}/restart", s.restartHandler).Methods("POST")
	s.router.HandleFunc("/blockchain/chains/{id}/strategy", s.strategyHandler).Methods("POST")
	s.router.HandleFunc("/blockchain/listeners/start", s.listenersStartHandler).Methods("POST")
	s.router.HandleFunc("/blockchain/listeners/stop", s.listenersStopHandler).Methods("POST")
	s.router.HandleFunc("/blockchain/contracts/symbol/{sym}", s.contractsBySymbolHandler).Methods("GET")
	s.router.HandleFunc("/blockchain/contracts/enable-symbol/{sym}", s.enableSymbolHandler).Methods("POST")
	s.router.HandleFunc("/blockchain/contracts/disable-symbol/{sym}", s.disableSymbolHandler).Methods("POST")
	s.router.HandleFunc("/blockchain/contracts/enable-chain/{id}", s.enableChainHandler).Methods("POST")
	s.router.HandleFunc("/blockchain/contracts/disable-chain/{id}", s.disableChainHandler).Methods("POST")
	s.router.HandleFunc("/worker/health", s.workerHealthHandler).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func parseChainID(r *http.Request) (int64, error) {
	idStr := mux.Vars(r)["id"]
	return strconv.ParseInt(idStr, 10, 64)
}

// statusHandler handles GET /blockchain/status.
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.supervisor.Status(r.Context()))
}

// chainStatusHandler handles GET /blockchain/chains/{id}/status.
func (s *Server) chainStatusHandler(w http.ResponseWriter, r *http.Request) {
	chainID, err := parseChainID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	cs, err := s.supervisor.ChainStatus(r.Context(), chainID)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

// restartHandler handles POST /blockchain/chains/{id}/restart.
func (s *Server) restartHandler(w http.ResponseWriter, r *http.Request) {
	chainID, err := parseChainID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := s.supervisor.RestartListener(r.Context(), chainID); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "restarted"})
}

type strategyRequest struct {
	Strategy types.Strategy `json:"strategy"`
}

// strategyHandler handles POST /blockchain/chains/{id}/strategy.
func (s *Server) strategyHandler(w http.ResponseWriter, r *http.Request) {
	chainID, err := parseChainID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var body strategyRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := s.supervisor.SwitchStrategy(r.Context(), chainID, body.Strategy); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "switched"})
}

// listenersStartHandler handles POST /blockchain/listeners/start.
func (s *Server) listenersStartHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.supervisor.StartAll(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

// listenersStopHandler handles POST /blockchain/listeners/stop.
func (s *Server) listenersStopHandler(w http.ResponseWriter, r *http.Request) {
	s.supervisor.StopAll()
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// contractsBySymbolHandler handles GET /blockchain/contracts/symbol/{sym}.
func (s *Server) contractsBySymbolHandler(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["sym"]
	contracts, err := s.configs.ContractsBySymbol(r.Context(), symbol)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, contracts)
}

// enableSymbolHandler handles POST /blockchain/contracts/enable-symbol/{sym}.
func (s *Server) enableSymbolHandler(w http.ResponseWriter, r *http.Request) {
	s.setSymbolEnabled(w, r, true)
}

// disableSymbolHandler handles POST /blockchain/contracts/disable-symbol/{sym}.
func (s *Server) disableSymbolHandler(w http.ResponseWriter, r *http.Request) {
	s.setSymbolEnabled(w, r, false)
}

func (s *Server) setSymbolEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	symbol := mux.Vars(r)["sym"]
	if err := s.configs.SetContractEnabledBySymbol(r.Context(), symbol, enabled); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"symbol": symbol, "enabled": enabled})
}

// enableChainHandler handles POST /blockchain/contracts/enable-chain/{id}.
func (s *Server) enableChainHandler(w http.ResponseWriter, r *http.Request) {
	s.setChainEnabled(w, r, true)
}

// disableChainHandler handles POST /blockchain/contracts/disable-chain/{id}.
func (s *Server) disableChainHandler(w http.ResponseWriter, r *http.Request) {
	s.setChainEnabled(w, r, false)
}

func (s *Server) setChainEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	chainID, err := parseChainID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.configs.SetChainEnabled(r.Context(), chainID, enabled); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"chainId": chainID, "enabled": enabled})
}

// workerHealthHandler handles GET /worker/health: process uptime and
// memory, for a load balancer liveness probe.
func (s *Server) workerHealthHandler(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"uptimeSec":    time.Since(s.startedAt).Seconds(),
		"allocBytes":   mem.Alloc,
		"sysBytes":     mem.Sys,
		"numGoroutine": runtime.NumGoroutine(),
	})
}
