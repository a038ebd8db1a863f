package secretsocket

import (
	"encoding/binary"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/catalystcommunity/reactorcide/internal/logging"
	"github.com/catalystcommunity/reactorcide/internal/masker"
)

func sendRegister(t *testing.T, sockPath string, body registerRequest) string {
	t.Helper()
	conn, err := net.DialTimeout("unix", sockPath, 2*time.Second)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := conn.Write(lenBuf[:]); err != nil {
		t.Fatal(err)
	}
	if _, err := conn.Write(payload); err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 4096)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read response failed: %v", err)
	}
	return string(buf[:n])
}

func TestServerRegistersSecretOverSocket(t *testing.T) {
	m := masker.New()
	s := New(m, logging.New())
	if err := s.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer s.Stop()

	resp := sendRegister(t, s.SocketPath, registerRequest{Action: "register", Secrets: []interface{}{"dynamicsecretvalue"}})
	if resp != `{"status":"ok","registered":1}`+"\n" {
		t.Fatalf("unexpected response: %q", resp)
	}
	if !m.Contains("dynamicsecretvalue") {
		t.Fatalf("expected secret registered in masker")
	}
}

func TestServerRegistersSingleStringSecret(t *testing.T) {
	m := masker.New()
	s := New(m, logging.New())
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	resp := sendRegister(t, s.SocketPath, registerRequest{Action: "register", Secrets: "singlevalue"})
	if resp != `{"status":"ok","registered":1}`+"\n" {
		t.Fatalf("unexpected response: %q", resp)
	}
	if !m.Contains("singlevalue") {
		t.Fatalf("expected secret registered")
	}
}

func TestServerRegisteredCountExcludesSubMinLengthValues(t *testing.T) {
	m := masker.New()
	s := New(m, logging.New())
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	resp := sendRegister(t, s.SocketPath, registerRequest{Action: "register", Secrets: []interface{}{"ab", "longenoughvalue"}})
	if resp != `{"status":"ok","registered":1}`+"\n" {
		t.Fatalf("expected registered count to exclude the sub-minimum-length value, got %q", resp)
	}
	if !m.Contains("longenoughvalue") {
		t.Fatalf("expected the qualifying value registered")
	}
	if m.Contains("ab") {
		t.Fatalf("expected the too-short value dropped, not registered")
	}
}

func TestServerUnknownActionError(t *testing.T) {
	m := masker.New()
	s := New(m, logging.New())
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	resp := sendRegister(t, s.SocketPath, registerRequest{Action: "delete"})
	if resp != "ERROR: Unknown action\n" {
		t.Fatalf("unexpected response: %q", resp)
	}
}

func TestServerInvalidJSONError(t *testing.T) {
	m := masker.New()
	s := New(m, logging.New())
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	conn, err := net.DialTimeout("unix", s.SocketPath, 2*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	payload := []byte("not json")
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	conn.Write(lenBuf[:])
	conn.Write(payload)

	buf := make([]byte, 4096)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatal(err)
	}
	if string(buf[:n]) != "ERROR: Invalid JSON\n" {
		t.Fatalf("unexpected response: %q", buf[:n])
	}
}

func TestServerOversizedMessageDropped(t *testing.T) {
	m := masker.New()
	s := New(m, logging.New())
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	conn, err := net.DialTimeout("unix", s.SocketPath, 2*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(2<<20)) // > 1 MiB
	conn.Write(lenBuf[:])

	buf := make([]byte, 16)
	conn.SetReadDeadline(time.Now().Add(1 * time.Second))
	n, err := conn.Read(buf)
	if err == nil && n > 0 {
		t.Fatalf("expected connection closed with no response for oversized message, got %q", buf[:n])
	}
}

func TestStopUnlinksSocketFile(t *testing.T) {
	m := masker.New()
	s := New(m, logging.New())
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	path := s.SocketPath
	if err := s.Stop(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := net.Dial("unix", path); err == nil {
		t.Fatalf("expected socket unlinked after Stop")
	}
}
