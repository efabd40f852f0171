// Package protocol defines the JSON messages exchanged between clickhub-server
// and its WebSocket clients. It is shared by the server and the clicker agent.
//
// Every message is a JSON object tagged by its "type" field:
//
//	{"type":"init","total_clicks":0}
//	{"type":"click_response","client_clicks":1,"total_clicks":1,"timestamp":"2024-01-01T00:00:00Z"}
//	{"type":"global_update","total_clicks":1}
//	{"type":"click"}
//	{"type":"ping"}
//	{"type":"pong"}
//
// Clients may only send click and ping; the rest are server-to-client.
//
// Message is a closed set: only the six types in this package implement it.
// Decode reports ErrMalformed for payloads that are not a JSON object with a
// string "type", and ErrUnknownType for any other tag. Both are recoverable.
package protocol
