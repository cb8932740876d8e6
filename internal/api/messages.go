package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/nerrad567/sensor-net-proxy/internal/bridges/mysensors"
)

// SendMessageRequest is the body of POST /api/v1/messages. Either Raw or
// the structured fields must be set; Raw wins when both are.
type SendMessageRequest struct {
	NodeID  *int `json:"node_id"`
	ChildID *int `json:"child_id"`
	mysensors.CommandMessage
}

// SendMessageResponse reports how many gateways accepted the message.
type SendMessageResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
	Sent    int    `json:"sent"`
}

// handleSendMessage forwards a message to every registered gateway through
// the event loop.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if req.Raw == "" && (req.NodeID == nil || req.ChildID == nil) {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "node_id and child_id are required without raw")
		return
	}

	var nodeID, childID int
	if req.NodeID != nil {
		nodeID = *req.NodeID
	}
	if req.ChildID != nil {
		childID = *req.ChildID
	}

	msg, err := req.ToMessage(nodeID, childID)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	sent, err := s.loop.Submit(r.Context(), msg)
	switch {
	case err == nil:
	case errors.Is(err, mysensors.ErrMalformed):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	case errors.Is(err, mysensors.ErrLoopStopped), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "event loop unavailable")
		return
	case sent == 0:
		s.logger.Warn("forward failed", "message", msg.String(), "error", err, "request_id", requestID(r.Context()))
		writeError(w, http.StatusBadGateway, ErrCodeSendFailed, err.Error())
		return
	default:
		// Partial delivery: report what was sent and log the rest.
		s.logger.Warn("forward partially failed", "message", msg.String(), "sent", sent, "error", err)
	}

	s.logger.Debug("message forwarded via API", "id", req.ID, "message", msg.String(), "sent", sent)
	writeJSON(w, http.StatusAccepted, SendMessageResponse{
		ID:      req.ID,
		Message: msg.String(),
		Sent:    sent,
	})
}
