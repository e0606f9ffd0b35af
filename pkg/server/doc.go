// Package server serves a compiled root component to browsers.
//
// A GET of the page renders the root component to HTML with its initial
// state. The page loads a small client that opens a WebSocket and speaks
// pkg/protocol: every connection gets a Session, which mounts the root
// component on its own scheduler and streams the ops of every commit as
// numbered batches. The client replays them on its mount point and sends
// events back by node ID.
//
// # Session Lifecycle
//
//  1. The client sends Hello, optionally naming a session and the last
//     batch it applied.
//  2. The server answers Welcome. A known session with every missed batch
//     still in its History resumes: Resumed is set and the batches follow.
//     Otherwise the client clears its mount point and receives one batch
//     building the whole current tree.
//  3. Events are dispatched on the scheduler goroutine; the renders they
//     cause go out in the next batch.
//  4. When the connection drops the session stays alive for ResumeWindow.
//     A Close control message ends it immediately.
//
// # Thread Safety
//
// A session's scheduler runs on one goroutine. The read loop and other
// goroutines reach it through Session.Do.
package server
