// Package protocol implements the wire protocol between a server-side
// scheduler and a thin client that owns the real DOM.
//
// The server streams the ops of every commit; the client replays them on
// its mount point and reports events on engine node IDs. The client holds
// no templates and no state.
//
// # Wire Format
//
// Every message is framed with a 6-byte header:
//
//	┌────────────┬───────────┬─────────────────────────────┐
//	│ Frame Type │ Flags     │ Payload Length              │
//	│ (1 byte)   │ (1 byte)  │ (4 bytes, big-endian)       │
//	└────────────┴───────────┴─────────────────────────────┘
//
// # Frame Types
//
//   - FrameHello (0x00): Client → Server handshake
//   - FrameEvent (0x01): Client → Server event
//   - FrameOps (0x02): Server → Client op batch
//   - FrameControl (0x03): Ping, pong, resync, close
//   - FrameWelcome (0x04): Server → Client handshake reply
//   - FrameError (0x05): Error message
//
// # Codecs
//
// Payloads use one of two codecs, negotiated as a WebSocket subprotocol and
// marked per frame by FlagMsgPack:
//
//   - Binary ("villain.v1.bin"): varints, ZigZag signed integers and
//     length-prefixed strings. A SetText op is [0x06][node][len][text].
//   - MsgPack ("villain.v1.msgpack"): MessagePack maps with one-letter keys.
//
// # Sessions
//
// Op batches carry a sequence number. A client that reconnects sends its
// session ID and the last sequence it applied; the server replays the
// missed batches or, when they are gone, remounts from scratch.
package protocol
