// Package client contains the agent's building blocks for talking to the
// jtrack sync server and for opening its local replica.
//
// # Overview
//
//  1. A transport contract (see the Client interface): Ping, Pull, Push and
//     AttachmentURL.
//  2. A gRPC implementation (see GRPCClient) that injects the bearer token
//     and the client id through an interceptor and maps gRPC status codes
//     to sentinel errors.
//  3. Local persistence bootstrap (InitDatabase, RunMigrations) and the
//     Repositories bundle used inside one SQLite transaction.
//
// # Error Handling
//
// Transport conditions are exposed as sentinel errors that callers match
// with errors.Is: ErrUnavailable, ErrUnauthorized, ErrForbidden. Payload
// rejections come back as *protocol.ValidationError.
package client
