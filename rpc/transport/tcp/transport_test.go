package tcp

import (
	"bytes"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/tomkarw/kiwi-store/rpc/common"
)

// freeEndpoint reserves a loopback port and returns it as host:port
func freeEndpoint(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to reserve port: %v", err)
	}
	endpoint := l.Addr().String()
	l.Close()
	return endpoint
}

func TestClientServerRoundTrip(t *testing.T) {
	endpoint := freeEndpoint(t)

	serverConf := common.ServerConfig{
		Endpoint:      endpoint,
		TimeoutSecond: 5,
	}

	// Echo server that prefixes every request
	server := NewTCPServerTransport(serverConf)
	server.RegisterHandler(func(req []byte) []byte {
		return append([]byte("echo:"), req...)
	})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Listen(serverConf)
	}()
	defer server.Close()

	client := NewTCPClientTransport()
	clientConf := common.ClientConfig{
		Endpoints:     []string{endpoint},
		TimeoutSecond: 5,
		RetryCount:    10,
	}

	// The listener may not be up yet, retry the initial connect
	var err error
	for i := 0; i < 50; i++ {
		if err = client.Connect(clientConf); err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer client.Close()

	// Concurrent requests over the shared connection must be correlated
	// back to their callers by request ID
	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := []byte(fmt.Sprintf("req-%d", i))
			resp, err := client.Send(req)
			if err != nil {
				errs <- fmt.Errorf("send %d failed: %v", i, err)
				return
			}
			want := append([]byte("echo:"), req...)
			if !bytes.Equal(resp, want) {
				errs <- fmt.Errorf("send %d: got %q, want %q", i, resp, want)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	// Close must unblock Listen without an error
	if err := server.Close(); err != nil {
		t.Fatalf("server close failed: %v", err)
	}
	select {
	case err := <-serverErr:
		if err != nil {
			t.Fatalf("listen returned error after close: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("listen did not return after close")
	}
}

func TestSendWithoutServer(t *testing.T) {
	client := NewTCPClientTransport()
	err := client.Connect(common.ClientConfig{
		Endpoints:     []string{"127.0.0.1:1"}, // nothing listens here
		TimeoutSecond: 1,
		RetryCount:    1,
	})
	if err == nil {
		t.Fatal("expected connect error for unreachable endpoint")
	}
}

func TestLargePayload(t *testing.T) {
	endpoint := freeEndpoint(t)

	serverConf := common.ServerConfig{
		Endpoint:      endpoint,
		TimeoutSecond: 5,
	}

	server := NewTCPServerTransport(serverConf)
	server.RegisterHandler(func(req []byte) []byte {
		return req
	})
	go server.Listen(serverConf)
	defer server.Close()

	client := NewTCPClientTransport()
	clientConf := common.ClientConfig{
		Endpoints:     []string{endpoint},
		TimeoutSecond: 5,
	}
	var err error
	for i := 0; i < 50; i++ {
		if err = client.Connect(clientConf); err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer client.Close()

	// Larger than the server's pooled read buffer, forces reallocation
	payload := make([]byte, 2*defaultBufferSize)
	for i := range payload {
		payload[i] = byte(i)
	}

	resp, err := client.Send(payload)
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if !bytes.Equal(resp, payload) {
		t.Fatal("large payload was not echoed intact")
	}
}
