package gateway

import (
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizhub/go/internal/models"
	"github.com/mcdev12/quizhub/go/internal/quiz/timer"
)

// EmitToRoom sends an event to every socket of a room.
func (cm *ConnectionManager) EmitToRoom(roomID string, eventType EventType, payload any) {
	event, err := NewRoomEvent(roomID, eventType, payload, cm.clock.Now())
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID).Str("event_type", string(eventType)).Msg("failed to build room event")
		return
	}
	cm.BroadcastToRoom(roomID, event)
}

// EmitToUser sends an event to a single socket.
func (cm *ConnectionManager) EmitToUser(roomID, userID string, eventType EventType, payload any) {
	event, err := NewRoomEvent(roomID, eventType, payload, cm.clock.Now())
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID).Str("user_id", userID).Str("event_type", string(eventType)).Msg("failed to build user event")
		return
	}
	cm.BroadcastToUser(roomID, userID, event)
}

func (cm *ConnectionManager) EmitStateChange(roomID string, change StateChange) {
	cm.EmitToRoom(roomID, EventTypeStateChange, change)
}

// EmitTimeTick implements timer.Emitter.
func (cm *ConnectionManager) EmitTimeTick(roomID string, tick timer.Tick) {
	cm.EmitToRoom(roomID, EventTypeTimeTick, tick)
}

// EmitChatMessage appends msg to the room history and relays it.
func (cm *ConnectionManager) EmitChatMessage(roomID string, msg models.ChatMessage) {
	cm.historyMu.Lock()
	messages := append(cm.history[roomID], msg)
	if limit := cm.config.MaxHistory; limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	cm.history[roomID] = messages
	cm.historyMu.Unlock()

	cm.EmitToRoom(roomID, EventTypeChat, msg)
}

// History returns a copy of the room's chat log.
func (cm *ConnectionManager) History(roomID string) []models.ChatMessage {
	cm.historyMu.RLock()
	defer cm.historyMu.RUnlock()
	return append([]models.ChatMessage{}, cm.history[roomID]...)
}

// Disconnect closes a socket once the messages already queued for it are sent.
func (cm *ConnectionManager) Disconnect(roomID, userID string) {
	if userID == "" {
		return
	}
	cm.enqueue(BroadcastMessage{RoomID: roomID, UserID: userID, Close: true})
}

// OnRoomRemoved drops the room's chat log and closes its remaining sockets.
func (cm *ConnectionManager) OnRoomRemoved(roomID string) {
	cm.historyMu.Lock()
	delete(cm.history, roomID)
	cm.historyMu.Unlock()

	cm.enqueue(BroadcastMessage{RoomID: roomID, Close: true})

	log.Debug().Str("room_id", roomID).Msg("room history discarded")
}
