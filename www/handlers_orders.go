package www

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/lookup"
	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/planning"
	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/store"
)

// orderView is an order with its display urgency.
type orderView struct {
	store.Order
	Week     int              `json:"week"`
	DaysLeft *int             `json:"daysLeft,omitempty"`
	Urgency  planning.Urgency `json:"urgency,omitempty"`
}

func newOrderView(o store.Order, now time.Time) orderView {
	v := orderView{Order: o, Week: o.EffectiveWeek()}
	if o.DeliveryDate != nil {
		days := planning.DaysUntil(*o.DeliveryDate, now)
		v.DaysLeft = &days
		v.Urgency = planning.Classify(*o.DeliveryDate, now)
	}
	return v
}

// apiListOrders filters by status, machine and effective week.
func (h *Handlers) apiListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filters []store.Filter
	if s := q.Get("status"); s != "" {
		filters = append(filters, store.In(store.KeyStatus, splitList(s)...))
	}
	if m := q.Get("machine"); m != "" {
		filters = append(filters, store.Eq(store.KeyMachine, planning.NormalizeMachine(m)))
	}
	week := 0
	if wk := q.Get("week"); wk != "" {
		n, err := strconv.Atoi(wk)
		if err != nil || n < 1 || n > 53 {
			writeError(w, http.StatusBadRequest, "invalid week")
			return
		}
		week = n
	}

	orders, err := h.engine.DB().ListOrders(r.Context(), filters...)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	now := time.Now()
	out := make([]orderView, 0, len(orders))
	for _, o := range orders {
		if week != 0 && o.EffectiveWeek() != week {
			continue
		}
		out = append(out, newOrderView(o, now))
	}
	writeJSON(w, out)
}

func (h *Handlers) apiGetOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	o, err := h.engine.DB().GetOrder(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	lots, err := h.engine.Production().ListLots(r.Context(), o.OrderID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if lots == nil {
		lots = []store.TrackedProduct{}
	}
	writeJSON(w, map[string]any{
		"order": newOrderView(*o, time.Now()),
		"lots":  lots,
	})
}

// apiDeleteOrder hard-deletes one order line.
func (h *Handlers) apiDeleteOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.engine.DB().GetOrder(r.Context(), id); errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	if err := h.engine.DB().DeleteOrder(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type searchResult struct {
	lookup.Record
	Tier string `json:"tier"`
}

func (h *Handlers) apiSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	results := h.engine.Index().Search(query)
	out := make([]searchResult, len(results))
	for i, res := range results {
		out[i] = searchResult{Record: res.Record, Tier: res.Tier.String()}
	}
	writeJSON(w, map[string]any{
		"query":   query,
		"tokens":  lookup.ExtractTokens(query),
		"results": out,
	})
}

func (h *Handlers) apiMetrics(w http.ResponseWriter, r *http.Request) {
	if machines := splitList(r.URL.Query().Get("machines")); len(machines) > 0 {
		writeJSON(w, h.engine.Metrics().For(machines))
		return
	}
	writeJSON(w, h.engine.Metrics().Current())
}

// apiUrgency classifies one delivery date for the dashboard.
func (h *Handlers) apiUrgency(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("date")
	d, ok := planning.ParseDate(raw)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid date")
		return
	}
	now := time.Now()
	window := planning.NewCalculator(h.engine.AppConfig().Import.LeadTimeDays).Window(raw)
	writeJSON(w, map[string]any{
		"date":        d.Format(planning.DateLayout),
		"daysLeft":    planning.DaysUntil(d, now),
		"urgency":     planning.Classify(d, now),
		"week":        planning.ISOWeek(d),
		"plannedDate": planning.FormatDate(window.Planned),
	})
}

type stationsRequest struct {
	Machines []string `json:"machines"`
}

func (h *Handlers) apiGetStations(w http.ResponseWriter, r *http.Request) {
	cfg := h.engine.AppConfig()
	cfg.Lock()
	machines := append([]string(nil), cfg.Stations.Machines...)
	cfg.Unlock()
	writeJSON(w, stationsRequest{Machines: machines})
}

func (h *Handlers) apiSetStations(w http.ResponseWriter, r *http.Request) {
	var req stationsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	var machines []string
	for _, m := range req.Machines {
		if m = strings.TrimSpace(m); m != "" {
			machines = append(machines, m)
		}
	}
	if err := h.engine.SetMachines(machines); err != nil {
		writeError(w, http.StatusInternalServerError, "save config: "+err.Error())
		return
	}
	writeJSON(w, stationsRequest{Machines: machines})
}
