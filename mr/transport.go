package mr

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/rs/zerolog/log"
)

// rpcTimeout bounds a single connection's I/O so a partitioned worker
// cannot stall a coordinator handler indefinitely (spec.md §5).
const rpcTimeout = 10 * time.Second

// maxMessageSize guards against a malformed length prefix asking for
// an unreasonable allocation.
const maxMessageSize = 64 << 20

// Request is one RPC call, framed and JSON-encoded over the wire.
type Request struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// Response is the reply to a Request.
type Response struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// writeFrame writes a 4-byte big-endian length prefix followed by the
// JSON encoding of v.
func writeFrame(w io.Writer, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write frame body: %w", err)
	}
	return nil
}

// readFrame reads one length-prefixed JSON frame and unmarshals it
// into v.
func readFrame(r io.Reader, v interface{}) error {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return fmt.Errorf("read frame header: %w", err)
	}
	size := binary.BigEndian.Uint32(header[:])
	if size > maxMessageSize {
		return fmt.Errorf("frame size %d exceeds limit", size)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return fmt.Errorf("read frame body: %w", err)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("unmarshal frame: %w", err)
	}
	return nil
}

// Handler answers one RPC method given its raw params, returning a
// result to be marshaled or an error to be reported in the response.
type Handler func(params json.RawMessage) (interface{}, error)

// Server accepts framed JSON RPC connections and dispatches them to
// registered handlers, one request/response per connection.
type Server struct {
	listener net.Listener
	handlers map[string]Handler
	done     chan struct{}
}

// NewServer binds a TCP listener on an ephemeral port.
func NewServer() (*Server, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	return &Server{
		listener: l,
		handlers: make(map[string]Handler),
		done:     make(chan struct{}),
	}, nil
}

// Addr returns the "host:port" the server is listening on.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Register installs the handler for method. Call before Serve.
func (s *Server) Register(method string, h Handler) {
	s.handlers[method] = h
}

// Serve accepts connections until Close is called. Each connection is
// handled in its own goroutine; handlers are responsible for their
// own internal synchronization (spec.md §4.3: "handlers share the
// single coordinator lock").
func (s *Server) Serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				log.Warn().Err(err).Msg("accept failed")
				return
			}
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(rpcTimeout))

	var req Request
	if err := readFrame(conn, &req); err != nil {
		log.Warn().Err(err).Msg("failed to read request")
		return
	}

	h, ok := s.handlers[req.Method]
	if !ok {
		writeFrame(conn, Response{Success: false, Error: fmt.Sprintf("unknown method: %s", req.Method)})
		return
	}

	result, err := h(req.Params)
	if err != nil {
		writeFrame(conn, Response{Success: false, Error: err.Error()})
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		writeFrame(conn, Response{Success: false, Error: fmt.Sprintf("marshal result: %v", err)})
		return
	}
	if err := writeFrame(conn, Response{Success: true, Result: payload}); err != nil {
		log.Warn().Err(err).Msg("failed to write response")
	}
}

// Close stops Serve and releases the listening socket.
func (s *Server) Close() error {
	close(s.done)
	return s.listener.Close()
}

// Client makes one-shot framed JSON RPC calls against a coordinator
// at addr. Each call dials a fresh connection, sends one request,
// reads one response, and closes — there is no session state
// (spec.md §4.3).
type Client struct {
	addr string
}

func NewClient(addr string) *Client {
	return &Client{addr: addr}
}

// Call invokes method with params marshaled to JSON, and unmarshals
// the result into result (which may be nil if the caller doesn't
// need it).
func (c *Client) Call(method string, params interface{}, result interface{}) error {
	conn, err := net.DialTimeout("tcp", c.addr, rpcTimeout)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.addr, err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(rpcTimeout))

	rawParams, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}

	if err := writeFrame(conn, Request{Method: method, Params: rawParams}); err != nil {
		return fmt.Errorf("send request: %w", err)
	}

	var resp Response
	if err := readFrame(conn, &resp); err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if !resp.Success {
		return fmt.Errorf("rpc %s failed: %s", method, resp.Error)
	}
	if result != nil && len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("unmarshal result: %w", err)
		}
	}
	return nil
}
