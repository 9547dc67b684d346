package handler

import (
	"net/http"

	"hotelops/internal/slots/service"
	httputil "hotelops/pkg/http"
	"hotelops/pkg/logger"
	"hotelops/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type SlotHandler struct {
	service service.SlotService
	log     *logger.Logger
}

func NewSlotHandler(svc service.SlotService, log *logger.Logger) *SlotHandler {
	return &SlotHandler{
		service: svc,
		log:     log,
	}
}

func (h *SlotHandler) Allocate(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.AllocateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Allocate", err)
		return
	}

	rec, err := h.service.Allocate(r.Context(), req.SlotNumber, req.OccupantRef)
	if err != nil {
		h.writeError(w, "Allocate", err)
		return
	}

	if err := httputil.WriteCreated(w, rec); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Allocate", "operation", "WriteCreated", "error", err)
	}
}

func (h *SlotHandler) Release(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.ReleaseRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Release", err)
		return
	}

	rec, err := h.service.Release(r.Context(), req.SlotNumber)
	if err != nil {
		h.writeError(w, "Release", err)
		return
	}

	if err := httputil.WriteSuccess(w, rec); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Release", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SlotHandler) State(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	slotNumber, err := httputil.PathInt(ps, "slot")
	if err != nil {
		h.writeError(w, "State", err)
		return
	}

	status, err := h.service.State(r.Context(), slotNumber)
	if err != nil {
		h.writeError(w, "State", err)
		return
	}

	if err := httputil.WriteSuccess(w, status); err != nil {
		h.log.Error("failed to write JSON response", "handler", "State", "operation", "WriteSuccess", "error", err)
	}
}

// QueryState answers the same question as State for callers that send the
// slot number in a JSON body.
func (h *SlotHandler) QueryState(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.StateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "QueryState", err)
		return
	}

	status, err := h.service.State(r.Context(), req.SlotNumber)
	if err != nil {
		h.writeError(w, "QueryState", err)
		return
	}

	if err := httputil.WriteSuccess(w, status); err != nil {
		h.log.Error("failed to write JSON response", "handler", "QueryState", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SlotHandler) Board(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	board, err := h.service.Board(r.Context())
	if err != nil {
		h.writeError(w, "Board", err)
		return
	}

	if err := httputil.WriteSuccess(w, board); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Board", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SlotHandler) History(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	slotNumber, err := httputil.PathInt(ps, "slot")
	if err != nil {
		h.writeError(w, "History", err)
		return
	}

	history, err := h.service.History(r.Context(), slotNumber)
	if err != nil {
		h.writeError(w, "History", err)
		return
	}

	if err := httputil.WriteSuccess(w, history); err != nil {
		h.log.Error("failed to write JSON response", "handler", "History", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SlotHandler) AllocationLog(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	records, err := h.service.AllocationLog(r.Context())
	if err != nil {
		h.writeError(w, "AllocationLog", err)
		return
	}

	if err := httputil.WriteSuccess(w, records); err != nil {
		h.log.Error("failed to write JSON response", "handler", "AllocationLog", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SlotHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *SlotHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/slots/allocate", h.Allocate)
	router.POST("/api/v1/slots/release", h.Release)
	router.POST("/api/v1/slots/state", h.QueryState)
	router.GET("/api/v1/slots", h.Board)
	router.GET("/api/v1/slots/allocations", h.AllocationLog)
	router.GET("/api/v1/slots/number/:slot", h.State)
	router.GET("/api/v1/slots/number/:slot/history", h.History)
}
