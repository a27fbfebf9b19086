// Package jembatan executes logical GET and POST requests through a small,
// predictable pipeline:
//
//   - Interceptors run in registration order and may add headers or veto the
//     request (Continue, or Cancel with CancelReturn / CancelThrow)
//   - GET responses may be served from a TTL cache addressed by the SHA-1 of
//     the full request URI
//   - Request headers are merged over client defaults and the request is
//     handed to a pluggable Sender
//   - Listeners observe OnExecuting / OnExecuted / OnError
//   - Every execution failure is returned as a single *RequestError that
//     wraps the original cause
//
// Nothing is retried. Retry, connection pooling and TLS belong to the
// transport or to the caller.
//
// Typical usage:
//
//	client := jembatan.New(
//	    jembatan.WithBaseAddress("https://api.example.com/", 10*time.Second),
//	    jembatan.WithMemoryCache(),
//	    jembatan.WithListeners(jembatan.NewLogListener(jembatan.NewSimpleLogger())),
//	)
//	req, _ := jembatan.NewGetRequest("api/cars",
//	    jembatan.WithParameter("make", "volvo"),
//	    jembatan.WithCaching(time.Minute),
//	)
//	cars, err := jembatan.Get[[]Car](ctx, client, req)
//
// Clients for named purposes are usually produced by a Builder fed from a
// TOML file and JEMBATAN_* environment variables (see LoadConfig).
package jembatan
