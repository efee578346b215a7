package api

import (
	"encoding/json"
	"net/http"

	"github.com/raiden-network/raiden-core/primitives"
)

// Handler wraps a Server as the HTTP surface spec §6's --rpclisten flag
// binds to. Route shape intentionally stays close to the original node's
// REST API (raiden/api/v1/resources.py): one JSON endpoint per Api
// operation, method-disambiguated where an operation both reads and
// writes (GET lists, PUT/POST mutates).
type Handler struct {
	server *Server
	mux    *http.ServeMux
}

// NewHandler builds the HTTP mux for server.
func NewHandler(server *Server) *Handler {
	h := &Handler{server: server, mux: http.NewServeMux()}
	h.mux.HandleFunc("/api/v1/address", h.handleAddress)
	h.mux.HandleFunc("/api/v1/status", h.handleStatus)
	h.mux.HandleFunc("/api/v1/channels", h.handleChannels)
	h.mux.HandleFunc("/api/v1/payments", h.handlePayments)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) handleAddress(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"address": h.server.Address().String()})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": h.server.Status().String()})
}

func (h *Handler) handleChannels(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.server.ListChannels(primitives.Address{}))
	case http.MethodPut:
		var req struct {
			TokenNetworkAddress string `json:"token_network_address"`
			Partner             string `json:"partner_address"`
			SettleTimeout       uint64 `json:"settle_timeout"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		tokenNetwork, err := primitives.AddressFromHex(req.TokenNetworkAddress)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		partner, err := primitives.AddressFromHex(req.Partner)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		txHash, err := h.server.CreateChannel(r.Context(), tokenNetwork, partner, primitives.SettleTimeout(req.SettleTimeout))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"transaction_hash": txHash.String()})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handlePayments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		TokenNetworkAddress string `json:"token_network_address"`
		Target              string `json:"target_address"`
		Amount              uint64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	tokenNetwork, err := primitives.AddressFromHex(req.TokenNetworkAddress)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	target, err := primitives.AddressFromHex(req.Target)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amount := primitives.NewUint256FromUint64(req.Amount)
	if err := h.server.InitiatePayment(r.Context(), tokenNetwork, target, amount); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
