// Navigation tracker tests in Agora.

package navigation

import (
	"Agora/pkg/log"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNavigateIsIdempotent(t *testing.T) {
	tracker := NewTracker("/threads/42", log.Nop())
	var seen []string
	cancel := tracker.Watch(func(path string) { seen = append(seen, path) })

	assert.True(t, tracker.Navigate("/threads/42/banned"))
	assert.False(t, tracker.Navigate("/threads/42/banned"))
	assert.Equal(t, "/threads/42/banned", tracker.Current())

	cancel()
	assert.True(t, tracker.Navigate("/"))
	assert.Equal(t, []string{"/threads/42/banned"}, seen)
}
