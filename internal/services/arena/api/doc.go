// Package api contains the arena's outer surfaces.
//
// Subpackages:
//   - http: JSON routes for starting battles, commit/reveal, the trusted
//     submission path and reads, plus the websocket spectator feed
//   - grpc/query: the read-only arena.v1.BattleQuery service
package api
