package cache

import (
	"fmt"

	"github.com/brunodmt/tether/internal/state"
)

// SaveChannels rewrites the cached view from a store snapshot, keeping
// store order via the position columns. The whole rewrite is one
// transaction so a crash never leaves a half-written cache.
func (db *DB) SaveChannels(channels []state.Channel) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"messages", "channel_users", "channels"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for ci, c := range channels {
		if _, err := tx.Exec(`
			INSERT INTO channels (id, name, created_at, updated_at, position)
			VALUES (?, ?, ?, ?, ?)`,
			c.ID, c.Name, c.CreatedAt, c.UpdatedAt, ci); err != nil {
			return fmt.Errorf("insert channel: %w", err)
		}
		for ui, u := range c.Users {
			if _, err := tx.Exec(`
				INSERT INTO channel_users (channel_id, user_id, username, display_name, position)
				VALUES (?, ?, ?, ?, ?)`,
				c.ID, u.ID, u.Username, u.DisplayName, ui); err != nil {
				return fmt.Errorf("insert channel user: %w", err)
			}
		}
		for mi, m := range c.Messages {
			if _, err := tx.Exec(`
				INSERT INTO messages (channel_id, msg_id, sender_id, sender_username, sender_display_name, content, created_at, updated_at, position)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				c.ID, m.ID, m.Sender.ID, m.Sender.Username, m.Sender.DisplayName,
				m.Content, m.CreatedAt, m.UpdatedAt, mi); err != nil {
				return fmt.Errorf("insert message: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// LoadChannels reads the cached view back in store order. Message order
// preserves the cached arrival order, not display order.
func (db *DB) LoadChannels() ([]state.Channel, error) {
	rows, err := db.Query(`
		SELECT id, name, created_at, updated_at
		FROM channels ORDER BY position ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var channels []state.Channel
	for rows.Next() {
		var c state.Channel
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		channels = append(channels, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range channels {
		users, err := db.loadUsers(channels[i].ID)
		if err != nil {
			return nil, err
		}
		channels[i].Users = users

		msgs, err := db.loadMessages(channels[i].ID)
		if err != nil {
			return nil, err
		}
		channels[i].Messages = msgs
	}
	return channels, nil
}

func (db *DB) loadUsers(channelID string) ([]state.User, error) {
	rows, err := db.Query(`
		SELECT user_id, username, display_name
		FROM channel_users WHERE channel_id = ? ORDER BY position ASC`, channelID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var users []state.User
	for rows.Next() {
		var u state.User
		if err := rows.Scan(&u.ID, &u.Username, &u.DisplayName); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (db *DB) loadMessages(channelID string) ([]state.Message, error) {
	rows, err := db.Query(`
		SELECT msg_id, sender_id, sender_username, sender_display_name, content, created_at, updated_at
		FROM messages WHERE channel_id = ? ORDER BY position ASC`, channelID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []state.Message
	for rows.Next() {
		var m state.Message
		if err := rows.Scan(&m.ID, &m.Sender.ID, &m.Sender.Username, &m.Sender.DisplayName,
			&m.Content, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		m.ChannelID = channelID
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
