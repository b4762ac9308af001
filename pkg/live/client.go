package live

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
)

// Watch connects to a handler's /ws endpoint and calls fn for every frame
// until ctx is cancelled, the server closes the connection, or fn returns
// an error.
func Watch(ctx context.Context, url string, header http.Header, fn func(Frame) error) error {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return fmt.Errorf("live: dial %s: %w", url, err)
	}
	defer ws.Close()

	stop := context.AfterFunc(ctx, func() { _ = ws.Close() })
	defer stop()

	for {
		var frame Frame
		if err := ws.ReadJSON(&frame); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("live: read: %w", err)
		}
		if err := fn(frame); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
}

// ErrStop can be returned from a Watch callback to end the watch cleanly.
var ErrStop = errors.New("live: stop watching")
