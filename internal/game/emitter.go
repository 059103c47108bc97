package game

// Emitter is the outbound side of the session bus as the game layer sees it.
// The ws hub implements it.
type Emitter interface {
	// ToUser delivers to every connection the user holds.
	ToUser(userID, event string, data map[string]interface{})
	// ToRoom delivers to the room's audience.
	ToRoom(roomID, event string, data map[string]interface{})
}

// NopEmitter discards everything.
type NopEmitter struct{}

func (NopEmitter) ToUser(string, string, map[string]interface{}) {}
func (NopEmitter) ToRoom(string, string, map[string]interface{}) {}
