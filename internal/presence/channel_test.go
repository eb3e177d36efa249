package presence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChannel(t *testing.T) (*Channel, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewChannel(rdb), mr
}

func TestJoinAndMembers(t *testing.T) {
	ch, _ := newTestChannel(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, ch.Join(ctx, "pb1", Member{UserID: "u2", DisplayName: "Bea", JoinedAt: base.Add(time.Second)}))
	require.NoError(t, ch.Join(ctx, "pb1", Member{UserID: "u1", DisplayName: "Avi", JoinedAt: base}))

	members, err := ch.Members(ctx, "pb1")
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "u1", members[0].UserID, "snapshot is ordered by join time")
	assert.Equal(t, "u2", members[1].UserID)
}

func TestMembersScopedPerPlaybook(t *testing.T) {
	ch, _ := newTestChannel(t)
	ctx := context.Background()

	require.NoError(t, ch.Join(ctx, "pb1", Member{UserID: "u1", JoinedAt: time.Now()}))
	require.NoError(t, ch.Join(ctx, "pb2", Member{UserID: "u2", JoinedAt: time.Now()}))

	members, err := ch.Members(ctx, "pb1")
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "u1", members[0].UserID)
}

func TestRejoinReplacesRecord(t *testing.T) {
	ch, _ := newTestChannel(t)
	ctx := context.Background()

	require.NoError(t, ch.Join(ctx, "pb1", Member{UserID: "u1", DisplayName: "old", JoinedAt: time.Now()}))
	require.NoError(t, ch.Join(ctx, "pb1", Member{UserID: "u1", DisplayName: "new", JoinedAt: time.Now()}))

	members, err := ch.Members(ctx, "pb1")
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "new", members[0].DisplayName)
}

func TestLeaveRemovesMember(t *testing.T) {
	ch, _ := newTestChannel(t)
	ctx := context.Background()

	require.NoError(t, ch.Join(ctx, "pb1", Member{UserID: "u1", JoinedAt: time.Now()}))
	require.NoError(t, ch.Leave(ctx, "pb1", "u1"))

	members, err := ch.Members(ctx, "pb1")
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestLeaveUnknownMemberIsHarmless(t *testing.T) {
	ch, _ := newTestChannel(t)
	assert.NoError(t, ch.Leave(context.Background(), "pb1", "ghost"))
}

func TestMembersSkipsCorruptRecord(t *testing.T) {
	ch, mr := newTestChannel(t)
	ctx := context.Background()

	require.NoError(t, ch.Join(ctx, "pb1", Member{UserID: "u1", JoinedAt: time.Now()}))
	mr.HSet("presence:pb1", "broken", "{not json")

	members, err := ch.Members(ctx, "pb1")
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "u1", members[0].UserID)
}

func TestJoinAnnouncesChange(t *testing.T) {
	ch, _ := newTestChannel(t)
	ctx := context.Background()

	sub := ch.Subscribe(ctx, "pb1")
	defer sub.Close()
	// wait for the subscription before publishing
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, ch.Join(ctx, "pb1", Member{UserID: "u1", JoinedAt: time.Now()}))

	select {
	case msg := <-sub.Channel():
		assert.Equal(t, "presence:events:pb1", msg.Channel)
		assert.Equal(t, "changed", msg.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("no announcement received")
	}
}
