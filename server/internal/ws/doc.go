// Package ws implements the live dashboard stream of minerdash-server.
//
// Hub.ServeHTTP upgrades an HTTP connection to WebSocket and sends the
// current dashboard snapshot immediately. After that the client drives the
// stream: each {"event":"refresh"} frame triggers one recomputation and one
// reply. The hub runs no ticker of its own.
//
// Message format sent to clients:
//
//	{
//	  "event": "snapshot",
//	  "data":  { /* same schema as GET /api/v1/snapshot */ }
//	}
//
// Unknown or malformed frames are answered with {"event":"error","error":...}.
// Hub.Close cancels in-flight computations and closes every connection.
// The endpoint is mounted at /ws/stream by the server.
package ws
