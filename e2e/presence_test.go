package e2e

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigil/internal/presence/models"
	dErrors "vigil/pkg/domain-errors"
)

func TestConnectReceivesInitialStats(t *testing.T) {
	b := newBackend(t)
	b.putOnline(t, "u-1", "t-acme", "Acme Corp")
	b.putOnline(t, "u-2", "t-acme", "Acme Corp")
	b.putOnline(t, "u-3", "t-globex", "Globex")
	b.putUser(t, "u-4", "t-globex", "Globex", false, time.Hour)

	c := newConsole(t, b, b.mintToken(t))
	require.NoError(t, c.svc.Start())
	c.waitState(t, models.StateOpen)

	require.Eventually(t, func() bool {
		return c.svc.Snapshot().Stats.TotalOnline == 3
	}, waitFor, tick, "initial stats never reached the store")

	snap := c.svc.Snapshot()
	assert.Equal(t, 1, snap.Stats.TotalOffline)
	assert.Equal(t, map[string]int{"Acme Corp": 2, "Globex": 1}, snap.Stats.OnlineByTenant)
}

func TestScheduledBroadcastReplacesUserList(t *testing.T) {
	b := newBackend(t)
	b.putOnline(t, "u-1", "t-acme", "Acme Corp")
	b.putOnline(t, "u-2", "t-globex", "Globex")

	c := newConsole(t, b, b.mintToken(t))
	require.NoError(t, c.svc.Start())
	c.waitState(t, models.StateOpen)

	b.sim.BroadcastUsers(context.Background())

	require.Eventually(t, func() bool {
		return len(c.svc.Snapshot().Users) == 2
	}, waitFor, tick, "users_update never reached the store")
	assert.Equal(t, []string{"u-1", "u-2"}, onlineIDs(c.svc.Snapshot()))
}

func TestForceOfflineRemovesUserImmediately(t *testing.T) {
	b := newBackend(t)
	b.putOnline(t, "u-1", "t-acme", "Acme Corp")
	b.putOnline(t, "u-2", "t-acme", "Acme Corp")
	ctx := context.Background()

	c := newConsole(t, b, b.mintToken(t))
	require.NoError(t, c.svc.Start())
	c.waitState(t, models.StateOpen)
	require.NoError(t, c.svc.RefreshNow(ctx))
	require.Len(t, c.svc.Snapshot().Users, 2)

	res, err := c.svc.ForceOffline(ctx, "u-2")
	require.NoError(t, err)
	assert.True(t, res.Success)

	// The removal is applied locally on success; no push round trip needed.
	assert.Equal(t, []string{"u-1"}, onlineIDs(c.svc.Snapshot()))

	rec, err := b.store.Get(ctx, "u-2")
	require.NoError(t, err)
	assert.False(t, rec.IsOnline)

	// The echoed user_offline push is a no-op on the already-updated view.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, []string{"u-1"}, onlineIDs(c.svc.Snapshot()))
	require.Eventually(t, func() bool {
		return c.svc.Snapshot().Stats.TotalOnline == 1
	}, waitFor, tick, "stats push never arrived")
}

func TestBulkForceOffline(t *testing.T) {
	b := newBackend(t)
	b.putOnline(t, "u-1", "t-acme", "Acme Corp")
	b.putOnline(t, "u-2", "t-acme", "Acme Corp")
	b.putOnline(t, "u-3", "t-globex", "Globex")
	ctx := context.Background()

	c := newConsole(t, b, b.mintToken(t))
	require.NoError(t, c.svc.Start())
	c.waitState(t, models.StateOpen)
	require.NoError(t, c.svc.RefreshNow(ctx))

	res, err := c.svc.BulkForceOffline(ctx, []string{"u-1", "u-3", "u-1", "ghost"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.UpdatedCount)
	assert.Equal(t, 1, res.FailedCount)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "ghost")

	// Every submitted id leaves the view, including the failed one; the
	// next authoritative push would restore it.
	assert.Equal(t, []string{"u-2"}, onlineIDs(c.svc.Snapshot()))

	for id, wantOnline := range map[string]bool{"u-1": false, "u-2": true, "u-3": false} {
		rec, err := b.store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, wantOnline, rec.IsOnline, "server state for %s", id)
	}
}

func TestReconnectAfterServerDrop(t *testing.T) {
	b := newBackend(t)
	b.putOnline(t, "u-1", "t-acme", "Acme Corp")
	ctx := context.Background()

	c := newConsole(t, b, b.mintToken(t))
	require.NoError(t, c.svc.Start())
	c.waitState(t, models.StateOpen)
	require.Eventually(t, func() bool {
		return c.svc.Snapshot().Stats.TotalOnline == 1
	}, waitFor, tick, "initial stats never arrived")

	b.hub.CloseAll()
	c.waitDrop(t)

	// State changes while the stream is down arrive with the fresh
	// initial_stats after the single fixed-delay reconnect.
	_, err := b.sim.ForceOffline(ctx, "u-1")
	require.NoError(t, err)

	c.waitState(t, models.StateOpen)
	require.Eventually(t, func() bool { return b.hub.Count() == 1 },
		waitFor, tick, "server never saw the reconnected client")
	require.Eventually(t, func() bool {
		return c.svc.Snapshot().Stats.TotalOnline == 0
	}, waitFor, tick, "reconnect did not refresh the stats")
}

func TestBackgroundingPausesReconnect(t *testing.T) {
	b := newBackend(t)
	c := newConsole(t, b, b.mintToken(t))
	require.NoError(t, c.svc.Start())
	c.waitState(t, models.StateOpen)

	// Backgrounding leaves the live socket alone.
	c.vis.Set(false)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, models.StateOpen, c.svc.ConnectionState())

	// A drop while hidden stays down; no retry is armed.
	b.hub.CloseAll()
	c.waitState(t, models.StateDisconnected)

	time.Sleep(300 * time.Millisecond) // several reconnect delays
	assert.Equal(t, models.StateDisconnected, c.svc.ConnectionState())
	assert.False(t, c.mgr.RetryPending())
	assert.Equal(t, 0, b.hub.Count())

	// Foregrounding performs the one deferred reconnect.
	c.vis.Set(true)
	c.waitState(t, models.StateOpen)
	require.Eventually(t, func() bool { return b.hub.Count() == 1 },
		waitFor, tick, "server never saw the foreground reconnect")
}

func TestFilterRidesTheSocketAndSurvivesReconnect(t *testing.T) {
	b := newBackend(t)
	b.putOnline(t, "u-1", "t-acme", "Acme Corp")
	b.putOnline(t, "u-2", "t-globex", "Globex")
	b.putOnline(t, "u-3", "t-acme", "Acme Corp")
	ctx := context.Background()

	c := newConsole(t, b, b.mintToken(t))
	require.NoError(t, c.svc.Start())
	c.waitState(t, models.StateOpen)

	require.NoError(t, c.svc.SetFilter(ctx, models.Filter{TenantID: "t-acme"}))

	acmeOnly := func() bool {
		snap := c.svc.Snapshot()
		if len(snap.Users) != 2 {
			return false
		}
		for _, u := range snap.Users {
			if u.TenantID != "t-acme" {
				return false
			}
		}
		return true
	}
	require.Eventually(t, acmeOnly, waitFor, tick, "filtered users_update never arrived")

	// After a drop the fresh socket re-asserts the filter, so scheduled
	// broadcasts keep honoring it.
	b.hub.CloseAll()
	c.waitDrop(t)
	c.waitState(t, models.StateOpen)
	require.Eventually(t, func() bool { return b.hub.Count() == 1 }, waitFor, tick,
		"server never saw the reconnected client")

	b.sim.BroadcastUsers(ctx)
	require.Eventually(t, acmeOnly, waitFor, tick, "filter was lost across the reconnect")
}

func TestPollingFallbackConverges(t *testing.T) {
	b := newBackend(t)
	b.putOnline(t, "u-1", "t-acme", "Acme Corp")
	b.putOnline(t, "u-2", "t-globex", "Globex")
	ctx := context.Background()

	c := newConsole(t, b, b.mintToken(t), withPolling(100*time.Millisecond))
	require.NoError(t, c.svc.Start())

	assert.Equal(t, models.StateDisconnected, c.svc.ConnectionState())
	assert.False(t, c.svc.PushEnabled())

	require.Eventually(t, func() bool {
		return len(c.svc.Snapshot().Users) == 2
	}, waitFor, tick, "initial poll never populated the view")

	// A server-side change arrives on the next poll; no socket involved.
	_, err := b.sim.ForceOffline(ctx, "u-2")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		snap := c.svc.Snapshot()
		return len(snap.Users) == 1 && snap.Stats.TotalOnline == 1
	}, waitFor, tick, "polling never converged on the new state")
}

func TestExpiredSessionLatchesOnce(t *testing.T) {
	b := newBackend(t)
	b.putOnline(t, "u-1", "t-acme", "Acme Corp")

	var hookCalls atomic.Int32
	c := newConsole(t, b, b.expiredToken(t), withExpiredHook(func() { hookCalls.Add(1) }))
	require.NoError(t, c.svc.Start())

	require.Eventually(t, func() bool { return c.svc.SessionExpired() },
		waitFor, tick, "session expiry never latched")
	require.Eventually(t, func() bool {
		return c.svc.ConnectionState() == models.StateDisconnected && !c.mgr.RetryPending()
	}, waitFor, tick, "expiry did not stop the reconnect machinery")
	assert.Equal(t, int32(1), hookCalls.Load())

	// Later REST calls still fail with 401 but the latch absorbs them.
	err := c.svc.RefreshNow(context.Background())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	assert.Equal(t, int32(1), hookCalls.Load())
}

func TestTenantAndSessionLookups(t *testing.T) {
	b := newBackend(t)
	b.putOnline(t, "u-1", "t-acme", "Acme Corp")
	b.putOnline(t, "u-2", "t-globex", "Globex")
	ctx := context.Background()

	c := newConsole(t, b, b.mintToken(t))
	require.NoError(t, c.svc.Start())
	c.waitState(t, models.StateOpen)

	group, err := c.svc.TenantUsers(ctx, "t-acme")
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", group.TenantName)
	assert.Equal(t, 1, group.OnlineCount)
	require.Len(t, group.Users, 1)
	assert.Equal(t, "u-1", group.Users[0].UserID)

	// The server serves the raw user agent; the gateway derives the
	// display name and kind locally.
	detail, err := c.svc.SessionDetail(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "sess-u-1", detail.SessionID)
	assert.Contains(t, detail.DeviceDisplayName, "Chrome")
	assert.Equal(t, "desktop", detail.DeviceKind)

	_, err = c.svc.SessionDetail(ctx, "ghost")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestCleanupExpiresIdleSessions(t *testing.T) {
	b := newBackend(t)
	b.putOnline(t, "u-1", "t-acme", "Acme Corp")
	// Idle past the 10m threshold but inside the 30m retention, so the
	// sweep marks the session offline without deleting the record.
	b.putUser(t, "u-2", "t-acme", "Acme Corp", true, 15*time.Minute)
	ctx := context.Background()

	c := newConsole(t, b, b.mintToken(t))
	require.NoError(t, c.svc.Start())
	c.waitState(t, models.StateOpen)

	res, err := c.svc.CleanupStale(ctx)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Contains(t, res.Message, "1 idle sessions expired")

	rec, err := b.store.Get(ctx, "u-2")
	require.NoError(t, err)
	assert.False(t, rec.IsOnline)

	rec, err = b.store.Get(ctx, "u-1")
	require.NoError(t, err)
	assert.True(t, rec.IsOnline)
}
