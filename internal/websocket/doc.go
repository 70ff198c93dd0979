// Package websocket pushes analysis progress to browser clients.
//
// A Hub owns the client set and fans out JSON messages (see Message);
// each Client runs a read pump for heartbeats and a write pump with
// pings. Broadcasting never blocks: full queues drop the message and slow
// clients are disconnected.
package websocket
