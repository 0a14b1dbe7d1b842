package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/meteor314/twitch-bot/telemetry"
)

// reconnectDelay is the pause between failed connection attempts.
const reconnectDelay = 5 * time.Second

// Options configures a Client.
type Options struct {
	Username string
	// Token is the IRC password ("oauth:..." form).
	Token   string
	Channel string
	// MaxInFlight bounds concurrently running handlers (default 1: serial).
	MaxInFlight int
}

// Client is a single-channel Twitch IRC connection.
type Client struct {
	irc     *twitch.Client
	channel string

	handler   Handler
	slots     chan struct{}
	inflight  sync.WaitGroup
	connected atomic.Bool
	logger    *slog.Logger
}

// NewClient builds a Client; call OnMessage then Run.
func NewClient(opts Options) *Client {
	max := opts.MaxInFlight
	if max < 1 {
		max = 1
	}
	return &Client{
		irc:     twitch.NewClient(opts.Username, opts.Token),
		channel: opts.Channel,
		slots:   make(chan struct{}, max),
		logger:  slog.Default().With(slog.String("component", "chat")),
	}
}

// OnMessage registers the inbound handler. It must be called before Run.
func (c *Client) OnMessage(h Handler) { c.handler = h }

// Connected reports whether the IRC session is up.
func (c *Client) Connected() bool { return c.connected.Load() }

// SetToken replaces the IRC password used on the next connect.
func (c *Client) SetToken(token string) { c.irc.SetIRCToken(token) }

// Send writes text to channel.
func (c *Client) Send(ctx context.Context, channel, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.Connected() {
		return ErrNotConnected
	}
	if channel == "" {
		channel = c.channel
	}
	c.irc.Say(channel, text)
	return nil
}

// Run joins the channel and blocks until ctx is cancelled, reconnecting on failure.
// In-flight handlers are waited for before Run returns.
func (c *Client) Run(ctx context.Context) error {
	if c.handler == nil {
		return errors.New("chat: no message handler registered")
	}
	c.irc.OnConnect(func() {
		c.connected.Store(true)
		telemetry.SetChatConnected(true)
		c.logger.Info("connected to twitch chat", slog.String("channel", c.channel))
	})
	c.irc.OnPrivateMessage(func(pm twitch.PrivateMessage) {
		c.deliver(ctx, FromPrivateMessage(pm))
	})
	c.irc.Join(c.channel)

	stop := context.AfterFunc(ctx, func() {
		_ = c.irc.Disconnect()
	})
	defer stop()
	defer c.inflight.Wait()

	for {
		err := c.irc.Connect()
		c.connected.Store(false)
		telemetry.SetChatConnected(false)
		if ctx.Err() != nil || errors.Is(err, twitch.ErrClientDisconnected) {
			return nil
		}
		if errors.Is(err, twitch.ErrLoginAuthenticationFailed) {
			return fmt.Errorf("twitch chat login: %w", err)
		}
		c.logger.Warn("twitch chat connection lost, reconnecting", slog.Any("err", err), slog.Duration("in", reconnectDelay))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reconnectDelay):
		}
	}
}

// deliver hands msg to the handler once a slot is free. With a single slot the
// IRC reader blocks here, which preserves message order.
func (c *Client) deliver(ctx context.Context, msg Message) {
	select {
	case c.slots <- struct{}{}:
	case <-ctx.Done():
		return
	}
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		defer func() { <-c.slots }()
		c.handler(ctx, msg)
	}()
}

// InFlight returns the number of handlers currently running.
func (c *Client) InFlight() int { return len(c.slots) }
