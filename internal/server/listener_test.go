package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/eternalApril/moonmock/internal/resp"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupListener(t *testing.T) (*Engine, *Listener) {
	t.Helper()
	e, _ := setupEngine(t)
	l, err := e.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() }) //nolint:errcheck
	return e, l
}

// rawConn is a bare socket speaking RESP without a client library
type rawConn struct {
	t    *testing.T
	conn net.Conn
	dec  *resp.Decoder
}

func dialRaw(t *testing.T, l *Listener) *rawConn {
	t.Helper()
	conn, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() }) //nolint:errcheck
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))
	return &rawConn{t: t, conn: conn, dec: resp.NewDecoder(conn)}
}

func (r *rawConn) write(payload string) {
	r.t.Helper()
	_, err := r.conn.Write([]byte(payload))
	require.NoError(r.t, err)
}

func (r *rawConn) send(args ...string) {
	r.write(string(resp.EncodeCommand(args...)))
}

func (r *rawConn) read() resp.Value {
	r.t.Helper()
	v, err := r.dec.Read()
	require.NoError(r.t, err)
	return v
}

func TestListenerServesGoRedis(t *testing.T) {
	for _, proto := range []int{2, 3} {
		_, l := setupListener(t)
		rdb := redis.NewClient(&redis.Options{Addr: l.Addr().String(), Protocol: proto})
		t.Cleanup(func() { rdb.Close() }) //nolint:errcheck
		ctx := context.Background()

		require.NoError(t, rdb.HSet(ctx, "h", "a", "1", "b", "2").Err())
		all, err := rdb.HGetAll(ctx, "h").Result()
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"a": "1", "b": "2"}, all)

		members, err := rdb.ZRangeWithScores(ctx, "missing", 0, -1).Result()
		require.NoError(t, err)
		assert.Empty(t, members)

		require.NoError(t, rdb.ZAdd(ctx, "z", redis.Z{Score: 1.5, Member: "m"}).Err())
		members, err = rdb.ZRangeWithScores(ctx, "z", 0, -1).Result()
		require.NoError(t, err)
		assert.Equal(t, []redis.Z{{Score: 1.5, Member: "m"}}, members)
	}
}

func TestListenerInlineCommands(t *testing.T) {
	_, l := setupListener(t)
	r := dialRaw(t, l)

	r.write("PING\r\n")
	assert.Equal(t, "PONG", r.read().Text())

	r.write("SET greeting \"hello world\"\r\nGET greeting\n")
	assert.Equal(t, "OK", r.read().Text())
	assert.Equal(t, resp.MakeBulkString("hello world"), r.read())

	// blank lines are skipped
	r.write("\r\nECHO 'a b'\r\n")
	assert.Equal(t, resp.MakeBulkString("a b"), r.read())
}

func TestListenerProtocolErrorClosesConnection(t *testing.T) {
	_, l := setupListener(t)
	r := dialRaw(t, l)

	r.write("*1\r\n:1\r\n")
	v := r.read()
	assert.Equal(t, "ERR Protocol error: expected an array of bulk strings", v.Text())

	_, err := r.dec.Read()
	assert.Error(t, err)
}

func TestListenerPipelinedReplies(t *testing.T) {
	_, l := setupListener(t)
	r := dialRaw(t, l)

	var payload []byte
	for i := 0; i < 50; i++ {
		payload = append(payload, resp.EncodeCommand("INCR", "n")...)
	}
	r.write(string(payload))
	for i := 1; i <= 50; i++ {
		assert.Equal(t, resp.MakeInteger(int64(i)), r.read())
	}
}

func TestListenerRepliesPrecedeTheirPushes(t *testing.T) {
	_, l := setupListener(t)
	r := dialRaw(t, l)

	r.send("HELLO", "3")
	assert.Equal(t, byte(resp.TypeMap), r.read().Type)

	// the confirmation is written before the message published right after it
	r.write(string(resp.EncodeCommand("SUBSCRIBE", "ch")) + string(resp.EncodeCommand("PUBLISH", "ch", "hi")))

	confirm := r.read()
	assert.Equal(t, byte(resp.TypePush), confirm.Type)
	require.Len(t, confirm.Array, 3)
	assert.Equal(t, "subscribe", confirm.Array[0].Text())
	assert.Equal(t, int64(1), confirm.Array[2].Integer)
	assert.Equal(t, resp.MakeInteger(1), r.read())

	msg := r.read()
	assert.Equal(t, byte(resp.TypePush), msg.Type)
	assert.Equal(t, []string{"message", "ch", "hi"}, strs(msg))
}

func TestListenerRESP2SubscriberReceivesMessages(t *testing.T) {
	_, l := setupListener(t)
	sub := dialRaw(t, l)
	pub := dialRaw(t, l)

	sub.send("SUBSCRIBE", "news")
	confirm := sub.read()
	assert.Equal(t, byte(resp.TypeArray), confirm.Type)
	assert.Equal(t, "subscribe", confirm.Array[0].Text())

	pub.send("PUBLISH", "news", "hello")
	assert.Equal(t, resp.MakeInteger(1), pub.read())

	msg := sub.read()
	assert.Equal(t, byte(resp.TypeArray), msg.Type)
	assert.Equal(t, []string{"message", "news", "hello"}, strs(msg))
}

func TestListenerQuit(t *testing.T) {
	e, l := setupListener(t)
	r := dialRaw(t, l)

	r.send("QUIT")
	assert.Equal(t, "OK", r.read().Text())
	_, err := r.dec.Read()
	assert.Error(t, err)

	require.Eventually(t, func() bool {
		e.mu.Lock()
		defer e.mu.Unlock()
		return len(e.clients) == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestListenerCloseWakesBlockedClients(t *testing.T) {
	e, l := setupListener(t)
	rdb := redis.NewClient(&redis.Options{Addr: l.Addr().String(), MaxRetries: -1})
	t.Cleanup(func() { rdb.Close() }) //nolint:errcheck

	done := make(chan error, 1)
	go func() {
		done <- rdb.BLPop(context.Background(), 0, "jobs").Err()
	}()
	waitBlocked(t, e, 1)

	require.NoError(t, l.Close())
	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("blocked client not released by Close")
	}

	_, err := net.Dial("tcp", l.Addr().String())
	assert.Error(t, err)
}

func TestListenerDisconnectWhileBlockedKeepsPushedData(t *testing.T) {
	e, l := setupListener(t)
	r := dialRaw(t, l)

	r.send("BLPOP", "q", "0")
	waitBlocked(t, e, 1)
	require.NoError(t, r.conn.Close())
	waitBlocked(t, e, 0)

	c := e.NewClient()
	assert.Equal(t, resp.MakeInteger(1), do(c, "RPUSH", "q", "x"))
	assert.Equal(t, resp.MakeInteger(1), do(c, "LLEN", "q"))
}

func TestListenerTimedOutGoRedisBlockReleasesWaiter(t *testing.T) {
	e, l := setupListener(t)
	rdb := redis.NewClient(&redis.Options{
		Addr:                  l.Addr().String(),
		MaxRetries:            -1,
		ContextTimeoutEnabled: true,
	})
	t.Cleanup(func() { rdb.Close() }) //nolint:errcheck

	// the client gives up on its own deadline and drops the connection
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	assert.Error(t, rdb.BLPop(ctx, 0, "jobs").Err())
	waitBlocked(t, e, 0)

	c := e.NewClient()
	ok(t, c, "RPUSH", "jobs", "j1")
	assert.Equal(t, resp.MakeBulkString("j1"), do(c, "LPOP", "jobs"))
}

func TestListenerFlushesRepliesBeforeBlocking(t *testing.T) {
	e, l := setupListener(t)
	r := dialRaw(t, l)

	r.write(string(resp.EncodeCommand("SET", "a", "1")) + string(resp.EncodeCommand("BLPOP", "q", "0")))
	assert.Equal(t, "OK", r.read().Text())
	waitBlocked(t, e, 1)

	ok(t, e.NewClient(), "RPUSH", "q", "x")
	assert.Equal(t, resp.MakeBulkArray([]string{"q", "x"}), r.read())
}

func TestListenerRESP2ScoresAvoidExponent(t *testing.T) {
	_, l := setupListener(t)
	r := dialRaw(t, l)

	r.send("ZADD", "z", "1234567.25", "m")
	assert.Equal(t, resp.MakeInteger(1), r.read())
	r.send("ZSCORE", "z", "m")
	assert.Equal(t, resp.MakeBulkString("1234567.25"), r.read())
	r.send("ZINCRBY", "z", "0.5", "m")
	assert.Equal(t, resp.MakeBulkString("1234567.75"), r.read())
	r.send("ZADD", "z", "1e20", "big")
	assert.Equal(t, resp.MakeInteger(1), r.read())
	r.send("ZSCORE", "z", "big")
	assert.Equal(t, resp.MakeBulkString("1e+20"), r.read())
}

func TestListenerDropConnections(t *testing.T) {
	e, l := setupListener(t)
	r := dialRaw(t, l)
	r.send("PING")
	assert.Equal(t, "PONG", r.read().Text())

	e.SetConnected(false)
	l.DropConnections()
	_, err := r.dec.Read()
	assert.Error(t, err)

	// accepted while disconnected, then closed at once
	late := dialRaw(t, l)
	_, err = late.dec.Read()
	assert.Error(t, err)

	e.SetConnected(true)
	again := dialRaw(t, l)
	again.send("PING")
	assert.Equal(t, "PONG", again.read().Text())
}
