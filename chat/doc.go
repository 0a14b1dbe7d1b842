// Package chat is the Twitch IRC boundary of the bot.
//
// Client wraps a go-twitch-irc connection for a single channel. Inbound
// PRIVMSGs are converted to Message values and handed to a Handler through a
// bounded pool of in-flight slots (one slot keeps handling strictly serial);
// outbound text goes through Send. Client reconnects with a fixed backoff
// until its context is cancelled.
//
// Tally is the in-memory per-chatter message counter. It lives apart from the
// connection so command handlers can query it through a narrow interface
// without holding a reference to the transport.
//
// Credentials: the IRC client requires a bot username and an OAuth token with
// chat:read/chat:edit scopes. SetToken swaps the token after a refresh; it is
// used on the next (re)connect.
package chat
