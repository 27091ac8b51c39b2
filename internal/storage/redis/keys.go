package redis

import (
	"fmt"

	"github.com/mcoot/turnrelay/internal/model"
)

// Key prefix for all relay data
const keyPrefix = "turnrelay"

// userKey returns the Redis key for a User
func userKey(username string) string {
	return fmt.Sprintf("%s:user:%s", keyPrefix, username)
}

// usersIndexKey returns the Redis key for the SET of all usernames
func usersIndexKey() string {
	return fmt.Sprintf("%s:idx:users", keyPrefix)
}

// onlineIndexKey returns the Redis key for the SET of online usernames
func onlineIndexKey() string {
	return fmt.Sprintf("%s:idx:online", keyPrefix)
}

// eventKey returns the Redis key for an Event
func eventKey(id model.EventID) string {
	return fmt.Sprintf("%s:event:%d", keyPrefix, id)
}

// eventSequenceKey returns the Redis key for the event id counter
func eventSequenceKey() string {
	return fmt.Sprintf("%s:seq:event", keyPrefix)
}

// userEventsIndexKey returns the Redis key for the ZSET of a user's event ids, scored by id
func userEventsIndexKey(username string) string {
	return fmt.Sprintf("%s:idx:user_events:%s", keyPrefix, username)
}

// allKeysPattern matches every key owned by this store
func allKeysPattern() string {
	return keyPrefix + ":*"
}
