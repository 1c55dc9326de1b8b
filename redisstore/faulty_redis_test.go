package redisstore

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

type faultyClient struct {
	breakFlag *atomic.Bool
	client    *redis.Client
}

func newFaultyClient(breakFlag bool, client *redis.Client) *faultyClient {
	flag := &atomic.Bool{}
	flag.Store(breakFlag)
	return &faultyClient{
		breakFlag: flag,
		client:    client,
	}
}

func (f *faultyClient) checkBreak() error {
	if f.breakFlag.Load() {
		return errors.New("operation aborted: break flag is set")
	}
	return nil
}

func (f *faultyClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	if err := f.checkBreak(); err != nil {
		cmd := redis.NewBoolCmd(ctx)
		cmd.SetErr(err)
		return cmd
	}
	return f.client.SetNX(ctx, key, value, expiration)
}

func (f *faultyClient) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	if err := f.checkBreak(); err != nil {
		cmd := redis.NewIntCmd(ctx)
		cmd.SetErr(err)
		return cmd
	}
	return f.client.Del(ctx, keys...)
}

func (f *faultyClient) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	if err := f.checkBreak(); err != nil {
		cmd := redis.NewCmd(ctx)
		cmd.SetErr(err)
		return cmd
	}
	return f.client.Eval(ctx, script, keys, args...)
}

func (f *faultyClient) EvalSha(ctx context.Context, sha1 string, keys []string, args ...interface{}) *redis.Cmd {
	if err := f.checkBreak(); err != nil {
		cmd := redis.NewCmd(ctx)
		cmd.SetErr(err)
		return cmd
	}
	return f.client.EvalSha(ctx, sha1, keys, args...)
}

func (f *faultyClient) EvalRO(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	if err := f.checkBreak(); err != nil {
		cmd := redis.NewCmd(ctx)
		cmd.SetErr(err)
		return cmd
	}
	return f.client.EvalRO(ctx, script, keys, args...)
}

func (f *faultyClient) EvalShaRO(ctx context.Context, sha1 string, keys []string, args ...interface{}) *redis.Cmd {
	if err := f.checkBreak(); err != nil {
		cmd := redis.NewCmd(ctx)
		cmd.SetErr(err)
		return cmd
	}
	return f.client.EvalShaRO(ctx, sha1, keys, args...)
}

func (f *faultyClient) ScriptExists(ctx context.Context, hashes ...string) *redis.BoolSliceCmd {
	if err := f.checkBreak(); err != nil {
		cmd := redis.NewBoolSliceCmd(ctx)
		cmd.SetErr(err)
		return cmd
	}
	return f.client.ScriptExists(ctx, hashes...)
}

func (f *faultyClient) ScriptLoad(ctx context.Context, script string) *redis.StringCmd {
	if err := f.checkBreak(); err != nil {
		cmd := redis.NewStringCmd(ctx)
		cmd.SetErr(err)
		return cmd
	}
	return f.client.ScriptLoad(ctx, script)
}
