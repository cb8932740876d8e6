package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/sensor-net-proxy/internal/inventory"
)

// handleListNodes returns every known node with its children.
func (s *Server) handleListNodes(w http.ResponseWriter, _ *http.Request) {
	if s.nodes == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "node inventory is disabled")
		return
	}

	nodes := s.nodes.ListNodes()
	writeJSON(w, http.StatusOK, map[string]any{
		"nodes": nodes,
		"count": len(nodes),
	})
}

// handleGetNode returns a single node by ID.
func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	id, ok := s.nodeIDParam(w, r)
	if !ok {
		return
	}

	node, err := s.nodes.GetNode(r.Context(), id)
	if err != nil {
		s.writeNodeError(w, r, id, err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

// handleDeleteNode removes a node and its children from the inventory.
// A node that keeps transmitting will be rediscovered.
func (s *Server) handleDeleteNode(w http.ResponseWriter, r *http.Request) {
	id, ok := s.nodeIDParam(w, r)
	if !ok {
		return
	}

	if err := s.nodes.DeleteNode(r.Context(), id); err != nil {
		s.writeNodeError(w, r, id, err)
		return
	}

	s.logger.Info("node deleted via API", "node_id", id, "request_id", requestID(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

// nodeIDParam parses the {id} URL parameter. It writes the error response
// and returns false when the request cannot proceed.
func (s *Server) nodeIDParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	if s.nodes == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "node inventory is disabled")
		return 0, false
	}

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || !inventory.ValidNodeID(id) {
		writeBadRequest(w, "node id must be an integer between 0 and 254")
		return 0, false
	}
	return id, true
}

func (s *Server) writeNodeError(w http.ResponseWriter, r *http.Request, id int, err error) {
	if errors.Is(err, inventory.ErrNodeNotFound) {
		writeNotFound(w, "node "+strconv.Itoa(id)+" not found")
		return
	}
	s.logger.Error("node inventory error", "node_id", id, "error", err, "request_id", requestID(r.Context()))
	writeInternalError(w, "node inventory error")
}
