package www

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/messaging"
	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/stationstate"
	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/store"
)

type startLotRequest struct {
	OrderID   string `json:"order_id"`
	Machine   string `json:"machine"`
	LotNumber string `json:"lot_number"`
	Operator  string `json:"operator"`
}

type advanceLotRequest struct {
	Step string `json:"step"`
}

type rejectLotRequest struct {
	Reason string `json:"reason"`
}

type assignRequest struct {
	Machine  string `json:"machine"`
	Operator string `json:"operator"`
}

func (h *Handlers) apiListLots(w http.ResponseWriter, r *http.Request) {
	lots, err := h.engine.Production().ListLots(r.Context(), r.URL.Query().Get("order"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if lots == nil {
		lots = []store.TrackedProduct{}
	}
	writeJSON(w, lots)
}

func (h *Handlers) apiStartLot(w http.ResponseWriter, r *http.Request) {
	var req startLotRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OrderID == "" || req.LotNumber == "" || req.Machine == "" {
		writeError(w, http.StatusBadRequest, "order_id, machine and lot_number are required")
		return
	}
	lot, err := h.engine.Production().StartLot(r.Context(), req.OrderID, req.Machine, req.LotNumber, req.Operator)
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSONStatus(w, http.StatusCreated, lot)
}

func (h *Handlers) apiAdvanceLot(w http.ResponseWriter, r *http.Request) {
	var req advanceLotRequest
	if err := decodeJSON(r, &req); err != nil || req.Step == "" {
		writeError(w, http.StatusBadRequest, "step is required")
		return
	}
	lot, err := h.engine.Production().AdvanceStep(r.Context(), chi.URLParam(r, "id"), req.Step)
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSON(w, lot)
}

func (h *Handlers) apiFinishLot(w http.ResponseWriter, r *http.Request) {
	lot, err := h.engine.Production().Finish(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSON(w, lot)
}

func (h *Handlers) apiRejectLot(w http.ResponseWriter, r *http.Request) {
	var req rejectLotRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	lot, err := h.engine.Production().Reject(r.Context(), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSON(w, lot)
}

func (h *Handlers) apiListOccupancy(w http.ResponseWriter, r *http.Request) {
	if m := r.URL.Query().Get("machine"); m != "" {
		state, err := h.engine.Occupancy().ListByMachine(r.Context(), m)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, []*stationstate.MachineState{state})
		return
	}
	states, err := h.engine.Occupancy().ListAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if states == nil {
		states = []*stationstate.MachineState{}
	}
	writeJSON(w, states)
}

func (h *Handlers) apiAssignOperator(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Machine == "" || req.Operator == "" {
		writeError(w, http.StatusBadRequest, "machine and operator are required")
		return
	}
	occ, err := h.engine.Occupancy().Assign(r.Context(), req.Machine, req.Operator)
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSONStatus(w, http.StatusCreated, occ)
}

func (h *Handlers) apiReleaseOperator(w http.ResponseWriter, r *http.Request) {
	if _, err := h.engine.Occupancy().Release(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) apiTerminals(w http.ResponseWriter, r *http.Request) {
	th := h.engine.Terminals()
	if th == nil {
		writeJSON(w, []messaging.TerminalStatus{})
		return
	}
	writeJSON(w, th.Terminals())
}

func (h *Handlers) apiHealth(w http.ResponseWriter, r *http.Request) {
	orders, active := h.engine.Stats()
	received, dropped := h.engine.IngestStats()
	writeJSON(w, map[string]any{
		"status":            "ok",
		"database":          h.engine.DB().Driver(),
		"messaging":         h.engine.MessagingConnected(),
		"open_orders":       orders,
		"active_lots":       active,
		"sse_clients":       h.eventHub.ClientCount(),
		"terminal_received": received,
		"terminal_dropped":  dropped,
	})
}
