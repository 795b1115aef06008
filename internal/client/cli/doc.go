// Package cli implements the jtrack agent command line.
//
// Every command opens the local replica, records or reads offline state
// through services.MutationService, and talks to the sync server only
// when it has to: sync, run and fetch. The bearer token is read from the
// configuration or prompted for without echo on first network use.
//
// Commands:
//   - sync, run, status, conflicts
//   - tickets, ticket create|show|update|status|delete
//   - comment add|delete, attach, fetch, pay
//   - transitions
package cli
