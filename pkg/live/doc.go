// Package live serves a store over HTTP and WebSocket.
//
// A Handler exposes one store under a chi router:
//
//	GET  /      current value as a Frame
//	PUT  /      replace the value with the JSON request body
//	POST /reset re-run the store initializer
//	GET  /ws    WebSocket stream of Frames, one per change
//
// Every WebSocket connection is a store subscription. The first frame is
// sent as soon as the connection opens; afterwards a frame is sent on each
// notification. A frame with Initialized false means the store holds no
// value yet. Clients may send a JSON value on the socket to write it to the
// store.
//
// Watch is the matching client.
package live
