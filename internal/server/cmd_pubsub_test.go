package server

import (
	"strconv"
	"testing"
	"time"

	"github.com/eternalApril/moonmock/internal/resp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// nextMessage returns the next push delivered to c as plain strings
func nextMessage(t *testing.T, c *Client) []string {
	t.Helper()
	select {
	case v, open := <-c.Messages():
		require.True(t, open, "message channel closed")
		require.Equal(t, byte(resp.TypePush), v.Type)
		return strs(v)
	case <-time.After(2 * time.Second):
		t.Fatal("no message delivered")
		return nil
	}
}

// noMessage fails if c has a pending delivery
func noMessage(t *testing.T, c *Client) {
	t.Helper()
	select {
	case v := <-c.Messages():
		t.Fatalf("unexpected message %v", strs(v))
	default:
	}
}

// confirmations flattens the pushes of a (un)subscribe reply
func confirmations(v resp.Value) [][]string {
	out := make([][]string, len(v.Array))
	for i, p := range v.Array {
		row := make([]string, len(p.Array))
		for j, el := range p.Array {
			if el.Type == resp.TypeInteger {
				row[j] = strconv.FormatInt(el.Integer, 10)
				continue
			}
			row[j] = el.Text()
		}
		out[i] = row
	}
	return out
}

func TestSubscribeConfirmations(t *testing.T) {
	e, _ := setupEngine(t)
	c := e.NewClient()

	v := do(c, "SUBSCRIBE", "a", "b", "a")
	assert.Equal(t, byte(resp.TypeSequence), v.Type)
	assert.Equal(t, [][]string{
		{"subscribe", "a", "1"},
		{"subscribe", "b", "2"},
		{"subscribe", "a", "2"},
	}, confirmations(v))

	assert.Equal(t, [][]string{{"psubscribe", "n*", "3"}}, confirmations(do(c, "PSUBSCRIBE", "n*")))
	assert.Equal(t, [][]string{
		{"unsubscribe", "a", "2"},
		{"unsubscribe", "b", "1"},
	}, confirmations(do(c, "UNSUBSCRIBE")))
	assert.Equal(t, [][]string{{"punsubscribe", "n*", "0"}}, confirmations(do(c, "PUNSUBSCRIBE")))

	empty := do(c, "UNSUBSCRIBE")
	require.Len(t, empty.Array, 1)
	assert.True(t, empty.Array[0].Array[1].IsNull)
	assert.Equal(t, int64(0), empty.Array[0].Array[2].Integer)
}

func TestPublishDelivers(t *testing.T) {
	e, _ := setupEngine(t)
	sub, pub := e.NewClient(), e.NewClient()

	ok(t, sub, "SUBSCRIBE", "news")
	ok(t, sub, "PSUBSCRIBE", "ne*")

	assert.Equal(t, resp.MakeInteger(2), do(pub, "PUBLISH", "news", "hello"))
	assert.Equal(t, []string{"message", "news", "hello"}, nextMessage(t, sub))
	assert.Equal(t, []string{"pmessage", "ne*", "news", "hello"}, nextMessage(t, sub))

	assert.Equal(t, resp.MakeInteger(0), do(pub, "PUBLISH", "other", "x"))
	noMessage(t, sub)

	ok(t, sub, "SSUBSCRIBE", "shard")
	assert.Equal(t, resp.MakeInteger(1), do(pub, "SPUBLISH", "shard", "s1"))
	assert.Equal(t, []string{"smessage", "shard", "s1"}, nextMessage(t, sub))
	// shard channels are not visible to PUBLISH
	assert.Equal(t, resp.MakeInteger(0), do(pub, "PUBLISH", "shard", "s2"))
}

func TestSubscribedRestrictionOnlyForRESP2(t *testing.T) {
	e, _ := setupEngine(t)
	c := e.NewClient()

	ok(t, c, "SUBSCRIBE", "ch")
	assert.Equal(t,
		"ERR Can't execute 'get': only (P|S)SUBSCRIBE / (P|S)UNSUBSCRIBE / PING / QUIT / RESET are allowed in this context",
		do(c, "GET", "k").Text())
	assert.Equal(t, []string{"pong", ""}, strs(do(c, "PING")))
	assert.Equal(t, []string{"pong", "hi"}, strs(do(c, "PING", "hi")))

	ok(t, c, "UNSUBSCRIBE")
	assert.True(t, do(c, "GET", "k").IsNull)

	resp3 := e.NewClient()
	ok(t, resp3, "HELLO", "3")
	ok(t, resp3, "SUBSCRIBE", "ch")
	assert.True(t, do(resp3, "GET", "k").IsNull)
	assert.Equal(t, resp.MakeSimpleString("PONG"), do(resp3, "PING"))
}

func TestResetDropsSubscriptions(t *testing.T) {
	e, _ := setupEngine(t)
	c, pub := e.NewClient(), e.NewClient()

	ok(t, c, "SUBSCRIBE", "ch")
	assert.Equal(t, resp.MakeSimpleString("RESET"), do(c, "RESET"))
	assert.Equal(t, resp.MakeInteger(0), do(pub, "PUBLISH", "ch", "x"))
}

func TestPubSubIntrospection(t *testing.T) {
	e, _ := setupEngine(t)
	a, b, c := e.NewClient(), e.NewClient(), e.NewClient()

	ok(t, a, "SUBSCRIBE", "news.tech", "news.art")
	ok(t, b, "SUBSCRIBE", "news.tech")
	ok(t, b, "PSUBSCRIBE", "news.*", "x*")
	ok(t, a, "SSUBSCRIBE", "orders")

	assert.Equal(t, []string{"news.art", "news.tech"}, strs(do(c, "PUBSUB", "CHANNELS")))
	assert.Equal(t, []string{"news.tech"}, strs(do(c, "PUBSUB", "CHANNELS", "*tech")))
	assert.Equal(t, []string{"orders"}, strs(do(c, "PUBSUB", "SHARDCHANNELS")))

	numsub := do(c, "PUBSUB", "NUMSUB", "news.tech", "none")
	assert.Equal(t, []resp.Value{
		resp.MakeBulkString("news.tech"), resp.MakeInteger(2),
		resp.MakeBulkString("none"), resp.MakeInteger(0),
	}, numsub.Array)
	assert.Equal(t, resp.MakeInteger(2), do(c, "PUBSUB", "NUMPAT"))
	assert.Equal(t, "ERR wrong number of arguments for 'pubsub|numpat' command", do(c, "PUBSUB", "NUMPAT", "x").Text())
}

func TestCloseStopsDelivery(t *testing.T) {
	e, _ := setupEngine(t)
	sub, pub := e.NewClient(), e.NewClient()

	ok(t, sub, "SUBSCRIBE", "ch")
	sub.Close()
	_, open := <-sub.Messages()
	assert.False(t, open)
	assert.Equal(t, resp.MakeInteger(0), do(pub, "PUBLISH", "ch", "x"))
}

func TestKeyspaceNotifications(t *testing.T) {
	e, clock := setupEngine(t)
	sub, c := e.NewClient(), e.NewClient()

	assert.Equal(t, resp.MakeOK(), do(c, "CONFIG", "SET", "notify-keyspace-events", "KEA"))
	assert.Equal(t, []string{"notify-keyspace-events", "AKE"}, strs(do(c, "CONFIG", "GET", "notify-keyspace-events")))

	ok(t, sub, "PSUBSCRIBE", "__key*@0__:*")

	ok(t, c, "SET", "k", "v")
	assert.Equal(t, []string{"pmessage", "__key*@0__:*", "__keyspace@0__:k", "set"}, nextMessage(t, sub))
	assert.Equal(t, []string{"pmessage", "__key*@0__:*", "__keyevent@0__:set", "k"}, nextMessage(t, sub))

	ok(t, c, "LPUSH", "l", "x")
	assert.Equal(t, "lpush", nextMessage(t, sub)[3])
	assert.Equal(t, "__keyevent@0__:lpush", nextMessage(t, sub)[2])

	ok(t, c, "PEXPIRE", "k", "100")
	assert.Equal(t, "expire", nextMessage(t, sub)[3])
	nextMessage(t, sub)

	clock.Advance(time.Second)
	assert.True(t, do(c, "GET", "k").IsNull)
	assert.Equal(t, []string{"pmessage", "__key*@0__:*", "__keyspace@0__:k", "expired"}, nextMessage(t, sub))
	nextMessage(t, sub)

	// keys in other databases report their own index
	ok(t, c, "SELECT", "2")
	ok(t, c, "SET", "k", "v")
	noMessage(t, sub)
}

func TestKeyspaceNotificationClasses(t *testing.T) {
	e, _ := setupEngine(t)
	sub, c := e.NewClient(), e.NewClient()

	ok(t, c, "CONFIG", "SET", "notify-keyspace-events", "El")
	ok(t, sub, "SUBSCRIBE", "__keyevent@0__:rpush", "__keyevent@0__:set")

	ok(t, c, "SET", "s", "v")
	ok(t, c, "RPUSH", "l", "a")
	assert.Equal(t, []string{"message", "__keyevent@0__:rpush", "l"}, nextMessage(t, sub))
	noMessage(t, sub)

	assert.Contains(t, do(c, "CONFIG", "SET", "notify-keyspace-events", "Q").Text(), "Invalid event class character")
	assert.Equal(t, []string{"notify-keyspace-events", "lE"}, strs(do(c, "CONFIG", "GET", "notify-keyspace-events")))
}
