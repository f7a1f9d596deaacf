package network

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMonitorStartsOnline(t *testing.T) {
	m := NewMonitor(nil)
	assert.True(t, m.IsOnline())
}

func TestMonitorReconnectHookFiresOncePerTransition(t *testing.T) {
	m := NewMonitor(nil)
	fired := 0
	m.OnReconnect(func() { fired++ })

	// Already online: no edge, no hook.
	m.SetOnline(true)
	assert.Equal(t, 0, fired)

	m.SetOnline(false)
	assert.Equal(t, 0, fired, "going offline must not fire reconnect hooks")

	m.SetOnline(true)
	assert.Equal(t, 1, fired)

	// Duplicate online reports are no-ops.
	m.SetOnline(true)
	m.SetOnline(true)
	assert.Equal(t, 1, fired)

	m.SetOnline(false)
	m.SetOnline(true)
	assert.Equal(t, 2, fired)
}

func TestMonitorMultipleHooksAllFire(t *testing.T) {
	m := NewMonitor(nil)
	var order []string
	m.OnReconnect(func() { order = append(order, "first") })
	m.OnReconnect(func() { order = append(order, "second") })

	m.SetOnline(false)
	m.SetOnline(true)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestMonitorRecheckFeedsTransition(t *testing.T) {
	probeResult := false
	m := NewMonitor(ProberFunc(func(ctx context.Context) bool { return probeResult }))
	fired := 0
	m.OnReconnect(func() { fired++ })

	m.Recheck(context.Background())
	assert.False(t, m.IsOnline())
	assert.Equal(t, 0, fired)

	probeResult = true
	m.Recheck(context.Background())
	assert.True(t, m.IsOnline())
	assert.Equal(t, 1, fired)

	// Recheck with an unchanged result does not re-fire.
	m.Recheck(context.Background())
	assert.Equal(t, 1, fired)
}

func TestMonitorRecheckWithoutProber(t *testing.T) {
	m := NewMonitor(nil)
	m.Recheck(context.Background())
	assert.True(t, m.IsOnline())
}
