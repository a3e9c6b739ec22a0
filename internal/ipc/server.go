package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
)

// Handler executes one control command against the running daemon.
type Handler interface {
	Handle(context.Context, Request) Response
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(context.Context, Request) Response

func (f HandlerFunc) Handle(ctx context.Context, req Request) Response {
	return f(ctx, req)
}

// Serve accepts control clients on the daemon socket until ctx cancellation
// or listener close. A connection may issue any number of commands; each
// request line gets exactly one response line.
func Serve(ctx context.Context, listener net.Listener, handler Handler) error {
	var wg sync.WaitGroup

	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				wg.Wait()
				return nil
			}
			return fmt.Errorf("accept control connection: %w", err)
		}

		wg.Add(1)
		go func(c net.Conn) {
			defer wg.Done()
			defer c.Close()
			serveConn(ctx, c, handler)
		}(conn)
	}
}

// serveConn runs the per-connection command loop. A malformed line is
// answered with an error response rather than tearing down the connection;
// EOF or a write failure ends the loop.
func serveConn(ctx context.Context, conn net.Conn, handler Handler) {
	scanner := bufio.NewScanner(conn)
	encoder := json.NewEncoder(conn)

	for scanner.Scan() {
		var req Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			if encodeErr := encoder.Encode(Response{OK: false, Error: fmt.Sprintf("malformed command: %v", err)}); encodeErr != nil {
				return
			}
			continue
		}

		if err := encoder.Encode(handler.Handle(ctx, req)); err != nil {
			return
		}
	}
}
