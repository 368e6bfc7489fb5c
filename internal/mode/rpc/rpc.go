// ABOUTME: RPC mode for editor integrations
// ABOUTME: JSONL-based protocol over a reader/writer pair, with server-pushed events

package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/mauromedda/gpt-go/internal/log"
)

// Server handles RPC requests from an external client.
type Server struct {
	reader  *bufio.Scanner
	handler func(context.Context, Request) Response

	mu     sync.Mutex
	writer io.Writer

	concurrent map[string]bool
	wg         sync.WaitGroup
}

// NewServer creates an RPC server reading requests from r and writing
// responses and events to w.
func NewServer(r io.Reader, w io.Writer, handler func(context.Context, Request) Response) *Server {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024)
	return &Server{
		reader:     scanner,
		writer:     w,
		handler:    handler,
		concurrent: make(map[string]bool),
	}
}

// Concurrent marks methods that may block; they are served on their own
// goroutine so other requests keep flowing.
func (s *Server) Concurrent(methods ...string) {
	for _, m := range methods {
		s.concurrent[m] = true
	}
}

// Run serves requests until the input ends or ctx is canceled, then waits
// for in-flight concurrent requests.
func (s *Server) Run(ctx context.Context) error {
	defer s.wg.Wait()
	for s.reader.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := s.reader.Bytes()
		if len(line) == 0 {
			continue
		}
		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.reply(Response{Error: NewParseError(fmt.Sprintf("parse error: %v", err))})
			continue
		}
		if req.Method == "" {
			s.reply(Response{ID: req.ID, Error: NewInvalidRequestError("missing method")})
			continue
		}

		if s.concurrent[req.Method] {
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.serve(ctx, req)
			}()
			continue
		}
		s.serve(ctx, req)
	}
	return s.reader.Err()
}

func (s *Server) serve(ctx context.Context, req Request) {
	resp := s.handler(ctx, req)
	resp.ID = req.ID
	s.reply(resp)
}

func (s *Server) reply(resp Response) {
	if err := s.write(resp); err != nil {
		log.Warn("rpc: %v", err)
		if resp.Error == nil {
			_ = s.write(Response{ID: resp.ID, Error: NewInternalError(fmt.Sprintf("internal error: %v", err))})
		}
	}
}

// Notify pushes a server event to the client.
func (s *Server) Notify(event string, data any) {
	if err := s.write(Notification{Event: event, Data: data}); err != nil {
		log.Warn("rpc: event %s: %v", event, err)
	}
}

func (s *Server) write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}
	data = append(data, '\n')
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.writer.Write(data); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}
	return nil
}
