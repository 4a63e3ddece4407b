package session

// Info describes the client and environment a session was created for.
// It is captured by the transport at session creation and read-only
// afterwards. The user agent is the raw header value; parsing it is the
// application's business.
type Info struct {
	// UserAgent is the client's User-Agent header, verbatim.
	UserAgent string

	// Language is the client's Accept-Language header, verbatim.
	Language string

	// Origin is the page origin, e.g. "http://localhost:8080".
	Origin string

	// Host is the server host the client connected to.
	Host string

	// Path is the request path the conversation was opened on.
	Path string

	// IP is the client address as seen by the server.
	IP string

	// Protocol names the transport: "websocket", "http" or "script".
	Protocol string

	// Backend names the serving program.
	Backend string
}
