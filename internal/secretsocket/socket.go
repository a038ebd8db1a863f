// Package secretsocket implements the secret-registration server (C3): a
// per-job Unix-domain-socket service that accepts length-prefixed JSON
// registration requests and feeds the masker at runtime, so a containerized
// job can register secrets it generates mid-run.
//
// Grounded in _examples/Aureuma-si/agents/shared's length-prefixed framing
// used by its MCP stdio/socket transports (read-exact-N-bytes-then-parse),
// adapted here to a Unix listener rather than a stdio pipe.
package secretsocket

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/catalystcommunity/reactorcide/internal/errs"
	"github.com/catalystcommunity/reactorcide/internal/logging"
	"github.com/catalystcommunity/reactorcide/internal/masker"
)

const (
	maxMessageSize  = 1 << 20 // 1 MiB
	connTimeout     = 5 * time.Second
	acceptPollDelay = 500 * time.Millisecond
	stopWait        = 1 * time.Second
)

// Server is a per-run secret-registration socket bound to SocketPath once
// Start succeeds.
type Server struct {
	SocketPath string

	masker   *masker.Masker
	log      *logging.Logger
	listener *net.UnixListener
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New derives the conventional per-process socket path and binds masker m
// to it once Start is called.
func New(m *masker.Masker, log *logging.Logger) *Server {
	return &Server{
		SocketPath: fmt.Sprintf("/tmp/reactorcide-secrets-%d.sock", os.Getpid()),
		masker:     m,
		log:        log.Named("secretsocket"),
	}
}

type registerRequest struct {
	Action  string      `json:"action"`
	Secrets interface{} `json:"secrets"`
}

type okResponse struct {
	Status     string `json:"status"`
	Registered int    `json:"registered"`
}

// Start binds the socket, chmods it 0666 so a containerized client can
// reach it after /tmp is bind-mounted, and spawns the accept loop.
func (s *Server) Start() error {
	_ = os.Remove(s.SocketPath)
	addr, err := net.ResolveUnixAddr("unix", s.SocketPath)
	if err != nil {
		return errs.Wrap(errs.KindContainer, "resolving secret socket address", err)
	}
	ln, err := net.ListenUnix("unix", addr)
	if err != nil {
		return errs.Wrap(errs.KindContainer, "binding secret socket", err)
	}
	if err := os.Chmod(s.SocketPath, 0666); err != nil {
		_ = ln.Close()
		return errs.Wrap(errs.KindContainer, "chmod secret socket", err)
	}
	s.listener = ln
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.acceptLoop()
	return nil
}

// Stop clears the cooperative shutdown flag, closes the listener, waits up
// to 1s for the accept loop to exit, and unlinks the socket file.
func (s *Server) Stop() error {
	if s.listener == nil {
		return nil
	}
	close(s.stopCh)
	_ = s.listener.Close()
	select {
	case <-s.doneCh:
	case <-time.After(stopWait):
		s.log.Warn("secret socket accept loop did not exit within stop timeout")
	}
	_ = os.Remove(s.SocketPath)
	return nil
}

func (s *Server) acceptLoop() {
	defer close(s.doneCh)
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}
		_ = s.listener.SetDeadline(time.Now().Add(acceptPollDelay))
		conn, err := s.listener.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			select {
			case <-s.stopCh:
				return
			default:
				s.log.Warn("secret socket accept error", "error", err)
				continue
			}
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(connTimeout))

	r := bufio.NewReader(conn)
	var lenBuf [4]byte
	if _, err := readFull(r, lenBuf[:]); err != nil {
		return
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxMessageSize {
		return // oversized message: silently dropped, per §4.3
	}
	body := make([]byte, n)
	if _, err := readFull(r, body); err != nil {
		return
	}

	var req registerRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeLine(conn, "ERROR: Invalid JSON")
		return
	}
	if req.Action != "register" {
		writeLine(conn, "ERROR: Unknown action")
		return
	}

	values := extractSecrets(req.Secrets)
	registered := s.masker.RegisterMany(values)

	resp, _ := json.Marshal(okResponse{Status: "ok", Registered: registered})
	writeLine(conn, string(resp))
}

func extractSecrets(raw interface{}) []string {
	switch v := raw.(type) {
	case string:
		return []string{v}
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func writeLine(conn net.Conn, s string) {
	_, _ = conn.Write([]byte(s + "\n"))
}
