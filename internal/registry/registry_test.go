package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttachDetachSingleConnection(t *testing.T) {
	r := New()

	r.Attach("c1", "u1")
	assert.Equal(t, "u1", r.UserOfConn("c1"))
	assert.True(t, r.IsUserOnline("u1"))

	user, left := r.Detach("c1")
	assert.Equal(t, "u1", user)
	assert.Empty(t, left)
	assert.False(t, r.IsUserOnline("u1"))
	assert.Equal(t, "", r.UserOfConn("c1"))
}

func TestMultiDeviceStaysOnline(t *testing.T) {
	r := New()

	r.Attach("c1", "u1")
	r.Attach("c2", "u1")
	r.JoinRoom("u1", "room1")

	// Dropping one of two connections keeps the user online and in the room.
	_, left := r.Detach("c1")
	assert.Empty(t, left)
	assert.True(t, r.IsUserOnline("u1"))
	assert.Equal(t, []string{"u1"}, r.UsersInRoom("room1"))

	// Dropping the last connection leaves all rooms.
	user, left := r.Detach("c2")
	assert.Equal(t, "u1", user)
	assert.Equal(t, []string{"room1"}, left)
	assert.Empty(t, r.UsersInRoom("room1"))
}

func TestRoomMembership(t *testing.T) {
	r := New()
	r.Attach("c1", "u1")
	r.Attach("c2", "u2")

	r.JoinRoom("u1", "room1")
	r.JoinRoom("u2", "room1")
	r.JoinRoom("u1", "room2")

	assert.ElementsMatch(t, []string{"u1", "u2"}, r.UsersInRoom("room1"))
	assert.ElementsMatch(t, []string{"room1", "room2"}, r.RoomsOfUser("u1"))

	r.LeaveRoom("u1", "room1")
	assert.Equal(t, []string{"u2"}, r.UsersInRoom("room1"))

	r.LeaveAllRooms("u1")
	assert.Empty(t, r.RoomsOfUser("u1"))
}

func TestCleanupRemovesStaleRoomEntries(t *testing.T) {
	r := New()
	// Room membership without any connection is stale.
	r.JoinRoom("ghost", "room1")
	require.Equal(t, []string{"ghost"}, r.UsersInRoom("room1"))

	removed := r.Cleanup()
	assert.Equal(t, 1, removed)
	assert.Empty(t, r.UsersInRoom("room1"))
}

func TestConcurrentChurn(t *testing.T) {
	r := New()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			conn := string(rune('a' + n%26))
			r.Attach(conn, "u1")
			r.JoinRoom("u1", "room1")
			r.ConnsOfUser("u1")
			r.UsersInRoom("room1")
			r.Detach(conn)
		}(i)
	}
	wg.Wait()

	assert.False(t, r.IsUserOnline("u1"))
}
