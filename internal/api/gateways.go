package api

import (
	"net/http"
	"time"

	"github.com/nerrad567/sensor-net-proxy/internal/bridges/mysensors"
)

// GatewayResponse describes one registered gateway.
type GatewayResponse struct {
	Remote       string    `json:"remote"`
	LocalSocket  string    `json:"local_socket"`
	RegisteredAt time.Time `json:"registered_at"`
}

// handleListGateways returns the gateways in registration order.
func (s *Server) handleListGateways(w http.ResponseWriter, _ *http.Request) {
	gws := s.gateways.Gateways()

	out := make([]GatewayResponse, 0, len(gws))
	for _, gw := range gws {
		out = append(out, toGatewayResponse(gw))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"gateways": out,
		"count":    len(out),
	})
}

func toGatewayResponse(gw mysensors.GatewayEndpoint) GatewayResponse {
	resp := GatewayResponse{RegisteredAt: gw.RegisteredAt}
	if gw.Remote != nil {
		resp.Remote = gw.Remote.String()
	}
	if gw.Socket != nil {
		resp.LocalSocket = gw.Socket.String()
	}
	return resp
}
