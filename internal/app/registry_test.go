package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/voxroom/signaling/internal/core"
)

type nopConn struct{}

func (nopConn) TrySend(core.Frame) error { return nil }
func (nopConn) Close()                   {}

func TestBindSignalCancelsPreviousBinding(t *testing.T) {
	r := NewRegistry()
	u := r.GetOrCreateUser("s1")

	ctx1, cancel1 := context.WithCancel(context.Background())
	r.BindSignal("s1", core.NewMemberSession(u, nopConn{}), cancel1)

	second := core.NewMemberSession(u, nopConn{})
	r.BindSignal("s1", second, func() {})

	select {
	case <-ctx1.Done():
	default:
		t.Fatal("rebind must cancel the previous binding's context")
	}

	sess, ok := r.GetSession("s1")
	assert.True(t, ok)
	assert.Same(t, second, sess, "the newest binding wins")
}

func TestBindSignalFirstBindCancelsNothing(t *testing.T) {
	r := NewRegistry()
	u := r.GetOrCreateUser("s1")

	canceled := false
	r.BindSignal("s1", core.NewMemberSession(u, nopConn{}), func() { canceled = true })

	assert.False(t, canceled)
}
