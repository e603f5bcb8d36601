// Package api exposes the conversation machine over HTTP: conversations,
// messages, streamed confirmation, cancellation and the transaction log.
package api
