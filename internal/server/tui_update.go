// ABOUTME: TUI update helpers for server
// ABOUTME: Functions to send server state updates to TUI
package server

import "sort"

// status snapshots the server state for display
func (s *Server) status() ServerStatus {
	s.clientsMu.RLock()
	clients := make([]ClientInfo, 0, len(s.clients))
	for _, client := range s.clients {
		client.mu.RLock()
		clients = append(clients, ClientInfo{
			Addr:        client.Addr,
			ID:          client.ID,
			State:       client.State,
			Conversions: client.Conversions,
		})
		client.mu.RUnlock()
	}
	s.clientsMu.RUnlock()

	sort.Slice(clients, func(i, j int) bool { return clients[i].Addr < clients[j].Addr })

	status := ServerStatus{
		Name:    s.config.Name,
		Port:    s.config.Port,
		Clients: clients,
		Samples: s.library.Len(),
	}
	if samples := s.library.List(); len(samples) > 0 {
		status.LastSample = samples[len(samples)-1].Name
	}
	return status
}

// updateTUI sends current server state to TUI
func (s *Server) updateTUI() {
	if s.tui == nil {
		return
	}
	s.tui.Update(s.status())
}
