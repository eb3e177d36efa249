package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// Member is one viewer of a playbook. The record lives only in Redis while
// the viewer's socket is open; nothing is persisted.
type Member struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	JoinedAt    time.Time `json:"joined_at"`
}

// Channel tracks who is viewing each playbook. Membership is a Redis hash
// keyed by user ID; every change is announced on a pub/sub channel so each
// API instance can push fresh snapshots to its local sockets.
type Channel struct {
	rdb *redis.Client
}

func NewChannel(rdb *redis.Client) *Channel {
	return &Channel{rdb: rdb}
}

func membersKey(playbookID string) string {
	return "presence:" + playbookID
}

func eventsChannel(playbookID string) string {
	return "presence:events:" + playbookID
}

func (c *Channel) Join(ctx context.Context, playbookID string, m Member) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal member: %w", err)
	}
	if err := c.rdb.HSet(ctx, membersKey(playbookID), m.UserID, data).Err(); err != nil {
		return fmt.Errorf("presence join: %w", err)
	}
	return c.announce(ctx, playbookID)
}

func (c *Channel) Leave(ctx context.Context, playbookID, userID string) error {
	if err := c.rdb.HDel(ctx, membersKey(playbookID), userID).Err(); err != nil {
		return fmt.Errorf("presence leave: %w", err)
	}
	return c.announce(ctx, playbookID)
}

// Members returns the current snapshot, ordered by join time so clients
// render a stable list.
func (c *Channel) Members(ctx context.Context, playbookID string) ([]Member, error) {
	raw, err := c.rdb.HGetAll(ctx, membersKey(playbookID)).Result()
	if err != nil {
		return nil, fmt.Errorf("presence members: %w", err)
	}

	members := make([]Member, 0, len(raw))
	for _, v := range raw {
		var m Member
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			// A corrupt record should not break the whole snapshot.
			continue
		}
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].JoinedAt.Equal(members[j].JoinedAt) {
			return members[i].UserID < members[j].UserID
		}
		return members[i].JoinedAt.Before(members[j].JoinedAt)
	})
	return members, nil
}

// Subscribe returns a pub/sub subscription for membership-change
// announcements on one playbook. The caller owns the subscription and must
// Close it.
func (c *Channel) Subscribe(ctx context.Context, playbookID string) *redis.PubSub {
	return c.rdb.Subscribe(ctx, eventsChannel(playbookID))
}

func (c *Channel) announce(ctx context.Context, playbookID string) error {
	if err := c.rdb.Publish(ctx, eventsChannel(playbookID), "changed").Err(); err != nil {
		return fmt.Errorf("presence announce: %w", err)
	}
	return nil
}
