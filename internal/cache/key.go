// Canonical cache keys used by every reader and writer of the Agora read cache.

package cache

import (
	"strconv"
	"strings"
)

// Key names one cached, independently fetchable view.
// Two keys are equal iff every element is equal.
type Key []string

// Unit separator; never appears in ids or usernames.
const sep = "\x1f"

// NewKey builds a key from its parts.
func NewKey(parts ...string) Key {
	return Key(parts)
}

// Equal reports whether k and other hold the same elements.
func (k Key) Equal(other Key) bool {
	if len(k) != len(other) {
		return false
	}
	for i := range k {
		if k[i] != other[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether the leading elements of k equal prefix.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	return k[:len(prefix)].Equal(prefix)
}

// String renders the key for logs and the relay, e.g. thread:42:subscribers.
func (k Key) String() string {
	return strings.Join(k, ":")
}

// id is the map identity of the key.
func (k Key) id() string {
	return strings.Join(k, sep)
}

// ParseKey is the inverse of String for keys whose parts contain no colon.
func ParseKey(s string) Key {
	if s == "" {
		return nil
	}
	return Key(strings.Split(s, ":"))
}

// ThreadKey names the detail view of one thread.
func ThreadKey(threadID string) Key {
	return Key{"thread", threadID}
}

// ThreadScope is the prefix covering every view scoped to one thread.
func ThreadScope(threadID string) Key {
	return ThreadKey(threadID)
}

// ThreadListPrefix covers every cached page of the thread list.
var ThreadListPrefix = Key{"threads", "list"}

// ThreadListKey names one page of the thread list.
func ThreadListKey(page int) Key {
	return Key{"threads", "list", strconv.Itoa(page)}
}

// SubscribersKey names the subscriber list of one thread.
func SubscribersKey(threadID string) Key {
	return Key{"thread", threadID, "subscribers"}
}

// RoleKey names the role one user holds inside a thread.
func RoleKey(threadID, username string) Key {
	return Key{"thread", threadID, "role", username}
}
