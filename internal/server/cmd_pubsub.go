package server

import (
	"strings"

	"github.com/eternalApril/moonmock/internal/resp"
)

func registerPubSubCommands(r *registry) {
	r.add("SUBSCRIBE", subscribe, -2, "pubsub noscript loading stale", noKeys, anyKind, "2.0.0",
		"Listens for messages published to channels.")
	r.add("UNSUBSCRIBE", subscribe, -1, "pubsub noscript loading stale", noKeys, anyKind, "2.0.0",
		"Stops listening to messages posted to channels.")
	r.add("PSUBSCRIBE", subscribe, -2, "pubsub noscript loading stale", noKeys, anyKind, "2.0.0",
		"Listens for messages published to channels that match one or more patterns.")
	r.add("PUNSUBSCRIBE", subscribe, -1, "pubsub noscript loading stale", noKeys, anyKind, "2.0.0",
		"Stops listening to messages published to channels that match one or more patterns.")
	r.add("SSUBSCRIBE", subscribe, -2, "pubsub noscript loading stale", noKeys, anyKind, "7.0.0",
		"Listens for messages published to shard channels.")
	r.add("SUNSUBSCRIBE", subscribe, -1, "pubsub noscript loading stale", noKeys, anyKind, "7.0.0",
		"Stops listening to messages posted to shard channels.")
	r.add("PUBLISH", publish, 3, "pubsub loading stale fast", noKeys, anyKind, "2.0.0",
		"Posts a message to a channel.")
	r.add("SPUBLISH", publish, 3, "pubsub loading stale fast", noKeys, anyKind, "7.0.0",
		"Post a message to a shard channel")
	r.add("PUBSUB", pubsubCommand, -2, "pubsub loading stale", noKeys, anyKind, "2.8.0",
		"A container for Pub/Sub commands.")
}

// subscriptionOp pairs a SUBSCRIBE style command with the broker call it makes
type subscriptionOp struct {
	event  string
	apply  func(ctx *Context, name string) int
	remove bool
	// current lists what an argument-less unsubscribe drops
	current func(ctx *Context) []string
}

var subscriptionOps = map[string]subscriptionOp{
	"SUBSCRIBE": {
		event: "subscribe",
		apply: func(ctx *Context, ch string) int { return ctx.e.broker.Subscribe(ctx.client, ch) },
	},
	"UNSUBSCRIBE": {
		event:  "unsubscribe",
		apply:  func(ctx *Context, ch string) int { return ctx.e.broker.Unsubscribe(ctx.client, ch) },
		remove: true,
		current: func(ctx *Context) []string {
			channels, _, _ := ctx.e.broker.Subscriptions(ctx.client)
			return channels
		},
	},
	"PSUBSCRIBE": {
		event: "psubscribe",
		apply: func(ctx *Context, p string) int { return ctx.e.broker.PSubscribe(ctx.client, p) },
	},
	"PUNSUBSCRIBE": {
		event:  "punsubscribe",
		apply:  func(ctx *Context, p string) int { return ctx.e.broker.PUnsubscribe(ctx.client, p) },
		remove: true,
		current: func(ctx *Context) []string {
			_, patterns, _ := ctx.e.broker.Subscriptions(ctx.client)
			return patterns
		},
	},
	"SSUBSCRIBE": {
		event: "ssubscribe",
		apply: func(ctx *Context, ch string) int { return ctx.e.broker.SSubscribe(ctx.client, ch) },
	},
	"SUNSUBSCRIBE": {
		event:  "sunsubscribe",
		apply:  func(ctx *Context, ch string) int { return ctx.e.broker.SUnsubscribe(ctx.client, ch) },
		remove: true,
		current: func(ctx *Context) []string {
			_, _, shards := ctx.e.broker.Subscriptions(ctx.client)
			return shards
		},
	},
}

func subscriptionPush(event string, name resp.Value, count int) resp.Value {
	return resp.MakePush([]resp.Value{resp.MakeBulkString(event), name, intReply(count)})
}

// subscribe serves the six (un)subscribe commands. Each argument gets its own
// confirmation push, written back to back
func subscribe(ctx *Context) resp.Value {
	op := subscriptionOps[ctx.name]

	names := ctx.args
	if op.remove && len(names) == 0 {
		names = op.current(ctx)
		if len(names) == 0 {
			count := ctx.e.broker.Count(ctx.client)
			if ctx.name == "SUNSUBSCRIBE" {
				count = ctx.e.broker.ShardCount(ctx.client)
			}
			return resp.MakeSequence([]resp.Value{subscriptionPush(op.event, resp.MakeNilBulkString(), count)})
		}
	}

	pushes := make([]resp.Value, len(names))
	for i, name := range names {
		pushes[i] = subscriptionPush(op.event, resp.MakeBulkString(name), op.apply(ctx, name))
	}
	return resp.MakeSequence(pushes)
}

// publish serves PUBLISH and SPUBLISH
func publish(ctx *Context) resp.Value {
	channel, payload := ctx.args[0], ctx.args[1]
	if ctx.name == "PUBLISH" {
		return intReply(ctx.e.publish(channel, payload))
	}
	n := ctx.e.broker.SPublish(channel, payload)
	ctx.e.stats.published += int64(n)
	ctx.e.metrics.Published(n)
	return intReply(n)
}

var pubsubSubcommands = map[string]subcommand{
	"CHANNELS":      {pubsubChannels, -2},
	"SHARDCHANNELS": {pubsubChannels, -2},
	"NUMSUB":        {pubsubNumSub, -2},
	"SHARDNUMSUB":   {pubsubNumSub, -2},
	"NUMPAT":        {pubsubNumPat, 2},
}

func pubsubCommand(ctx *Context) resp.Value {
	return dispatchSub(ctx, pubsubSubcommands)
}

func pubsubChannels(ctx *Context) resp.Value {
	if len(ctx.args) > 2 {
		return resp.MakeErrorWrongNumberOfArguments("pubsub|" + strings.ToLower(ctx.args[0]))
	}
	pattern := ""
	if len(ctx.args) == 2 {
		pattern = ctx.args[1]
	}
	if strings.ToUpper(ctx.args[0]) == "SHARDCHANNELS" {
		return bulks(ctx.e.broker.ShardChannels(pattern))
	}
	return bulks(ctx.e.broker.Channels(pattern))
}

func pubsubNumSub(ctx *Context) resp.Value {
	shard := strings.ToUpper(ctx.args[0]) == "SHARDNUMSUB"
	channels := ctx.args[1:]
	out := make([]resp.Value, 0, 2*len(channels))
	for _, ch := range channels {
		n := ctx.e.broker.NumSub(ch)
		if shard {
			n = ctx.e.broker.ShardNumSub(ch)
		}
		out = append(out, resp.MakeBulkString(ch), intReply(n))
	}
	return resp.MakeArray(out)
}

func pubsubNumPat(ctx *Context) resp.Value {
	return intReply(ctx.e.broker.NumPat())
}
