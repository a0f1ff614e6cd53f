// Package chat implements the public chat log: message storage, the submit path with its
// per-identity rate limit, history reads, moderation deletes, and the HTTP handlers.
//
// Every successful insert or delete is published on the realtime change feed, which is
// what drives INSERT and DELETE events on the clients' "messages" channels.
package chat
