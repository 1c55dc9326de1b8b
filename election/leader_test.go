package election

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/soroosh-tanzadeh/nxlock/metrics"
	"github.com/soroosh-tanzadeh/nxlock/redisstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type leaderWatcher struct {
	promoted, demoted, errored atomic.Int32
	lastError                  atomic.Value
}

func makeRedis(t *testing.T) (*miniredis.Miniredis, *redisstore.Store) {
	mr := miniredis.RunT(t)
	cli := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = cli.Close() })

	return mr, redisstore.New(cli)
}

func makeWatcher(host string, opts Opts) (*Elector, *leaderWatcher) {
	lead, promote, demote, errs := NewElector(host, opts)
	watcher := &leaderWatcher{}
	go func() {
		for {
			select {
			case <-promote:
				watcher.promoted.Add(1)
			case <-demote:
				watcher.demoted.Add(1)
			case err := <-errs:
				watcher.errored.Add(1)
				watcher.lastError.Store(err)
			}
		}
	}()
	return lead, watcher
}

func testOpts(store *redisstore.Store) Opts {
	return Opts{
		Store:    store,
		TTL:      100 * time.Millisecond,
		Wait:     10 * time.Millisecond,
		JitterMS: 5,
		Key:      "test1",
	}
}

func TestLeader(t *testing.T) {
	mr, store := makeRedis(t)

	leader1, watch1 := makeWatcher("leader1", testOpts(store))
	leader1.Start()
	require.Eventually(t, func() bool { return watch1.promoted.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.NoError(t, leader1.IsLeader(context.Background()))
	assert.True(t, mr.Exists(makeKey("test1")))

	leader2, watch2 := makeWatcher("leader2", testOpts(store))
	leader2.Start()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), watch2.promoted.Load())
	assert.ErrorIs(t, leader2.IsLeader(context.Background()), ErrNotLeader)

	require.NoError(t, leader1.Stop())
	require.Eventually(t, func() bool { return watch1.demoted.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, leader1.IsLeader(context.Background()), ErrNotLeader)

	require.Eventually(t, func() bool { return watch2.promoted.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.NoError(t, leader2.IsLeader(context.Background()))

	require.NoError(t, leader2.Stop())
	assert.False(t, mr.Exists(makeKey("test1")))
	assert.Equal(t, int32(0), watch1.errored.Load()+watch2.errored.Load())
}

func TestLeader_ShouldStepDown_WhenLeaseIsLost(t *testing.T) {
	mr, store := makeRedis(t)
	baseline := testutil.ToFloat64(metrics.HeldGauge)

	leader, watch := makeWatcher("leader1", testOpts(store))
	leader.Start()
	require.Eventually(t, func() bool { return watch.promoted.Load() == 1 }, time.Second, 5*time.Millisecond)

	// Someone else takes over the key.
	mr.Set(makeKey("test1"), "intruder")

	require.Eventually(t, func() bool { return watch.demoted.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(0), watch.errored.Load())

	mr.Del(makeKey("test1"))
	require.Eventually(t, func() bool { return watch.promoted.Load() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, baseline+1, testutil.ToFloat64(metrics.HeldGauge))

	require.NoError(t, leader.Stop())
	assert.Equal(t, baseline, testutil.ToFloat64(metrics.HeldGauge))
}

func TestLeader_ShouldReportErrors_WhenRedisFails(t *testing.T) {
	mr, store := makeRedis(t)
	baseline := testutil.ToFloat64(metrics.HeldGauge)

	leader, watch := makeWatcher("leader1", testOpts(store))
	leader.Start()
	require.Eventually(t, func() bool { return watch.promoted.Load() == 1 }, time.Second, 5*time.Millisecond)

	mr.SetError("ERR redis is down")
	require.Eventually(t, func() bool { return watch.demoted.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return watch.errored.Load() >= 1 }, time.Second, 5*time.Millisecond)
	assert.ErrorContains(t, watch.lastError.Load().(error), "trying to renew lease")
	assert.Equal(t, baseline, testutil.ToFloat64(metrics.HeldGauge))
	mr.SetError("")

	require.NoError(t, leader.Stop())
	assert.Equal(t, baseline, testutil.ToFloat64(metrics.HeldGauge))
}

func TestStartStop_ShouldBeIdempotent(t *testing.T) {
	_, store := makeRedis(t)

	leader, _ := makeWatcher("leader1", testOpts(store))
	assert.NoError(t, leader.Stop())
	leader.Start()
	leader.Start()
	assert.NoError(t, leader.Stop())
	assert.NoError(t, leader.Stop())
}

func TestNewElector_ShouldPanicOnZeroValues(t *testing.T) {
	assert.Panics(t, func() { NewElector("h", Opts{Wait: time.Second}) })
	assert.Panics(t, func() { NewElector("h", Opts{TTL: time.Second}) })
}
