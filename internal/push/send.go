package push

import "github.com/brunodmt/tether/internal/state"

type wireUser struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName,omitempty"`
}

type wireMessage struct {
	ID        string   `json:"id"`
	ChannelID string   `json:"channelId"`
	Sender    wireUser `json:"sender"`
	Content   string   `json:"content"`
	CreatedAt int64    `json:"createdAt"`
	UpdatedAt int64    `json:"updatedAt"`
}

// SendChatMessage pushes an outbound chat message, fire-and-forget.
func (m *Manager) SendChatMessage(msg state.Message) {
	m.Send(EventChatMessage, wireMessage{
		ID:        msg.ID,
		ChannelID: msg.ChannelID,
		Sender: wireUser{
			ID:          msg.Sender.ID,
			Username:    msg.Sender.Username,
			DisplayName: msg.Sender.DisplayName,
		},
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
		UpdatedAt: msg.UpdatedAt,
	})
}

// AnnounceJoin tells the server this client joined a freshly provisioned
// room, fire-and-forget.
func (m *Manager) AnnounceJoin(channelID string) {
	m.Send(EventJoinRoom, map[string]string{"channelId": channelID})
}
