// Package battle defines the shared data model and plugin contracts of the
// turn resolution engine.
//
// Everything here is plain data or an interface. Packages that store, pack,
// dispatch, order, validate, and execute turns all speak in these types so the
// singles and doubles executors share one vocabulary and one set of plugin
// boundaries (moves, abilities, effects, validators, randomness, rosters).
package battle
