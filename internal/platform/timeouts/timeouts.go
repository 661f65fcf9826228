// Package timeouts holds the durations shared by the arena's servers.
package timeouts

import "time"

// ReadHeader limits how long the HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long servers wait for in-flight requests when stopping.
const Shutdown = 5 * time.Second

// Store caps a single persistence call made while serving a request.
const Store = 3 * time.Second

// FeedWrite caps one websocket frame write to a spectator.
const FeedWrite = 2 * time.Second

// Sweep is how often the timeout sweeper checks live battles.
const Sweep = time.Second
