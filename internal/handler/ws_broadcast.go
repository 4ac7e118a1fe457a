package handler

// BroadcastSweepEvent implements sweep.Broadcaster using the WebSocket hub.
func (h *Hub) BroadcastSweepEvent(sweepID string, eventType string, data any) {
	h.BroadcastToSweep(sweepID, WSEvent{
		Type:    eventType,
		SweepID: sweepID,
		Data:    data,
	})
}
