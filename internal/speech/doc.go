// Package speech reads document text aloud.
//
// A Controller owns at most one active utterance. The utterance is synthesized
// chunk by chunk and its audio is streamed to a Sink (the session's WebSocket
// connections). Natural completion is reported through the callback given to
// Start; Stop cancels without reporting.
package speech
