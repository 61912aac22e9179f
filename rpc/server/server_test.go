package server

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/tomkarw/kiwi-store/lib/engine/memory"
	"github.com/tomkarw/kiwi-store/lib/kv"
	"github.com/tomkarw/kiwi-store/rpc/client"
	"github.com/tomkarw/kiwi-store/rpc/common"
	"github.com/tomkarw/kiwi-store/rpc/serializer"
	"github.com/tomkarw/kiwi-store/rpc/transport/tcp"
)

// --------------------------------------------------------------------------
// Adapter Tests
// --------------------------------------------------------------------------

func newTestDispatcher(t *testing.T) *kv.Dispatcher {
	t.Helper()
	d := kv.NewDispatcher(memory.NewMemoryEngine(nil), nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		d.Shutdown(ctx)
	})
	return d
}

func TestAdapterSetGetRemove(t *testing.T) {
	adapter := NewKVServerAdapter()
	d := newTestDispatcher(t)

	// Set
	resp := adapter.Handle(common.NewSetRequest("fruit", []byte("kiwi")), d)
	if resp.Err != "" {
		t.Fatalf("set failed: %s", resp.Err)
	}
	if resp.MsgType != common.MsgTKVSet {
		t.Fatalf("unexpected response type: %s", resp.MsgType)
	}

	// Get existing
	resp = adapter.Handle(common.NewGetRequest("fruit"), d)
	if resp.Err != "" {
		t.Fatalf("get failed: %s", resp.Err)
	}
	if !resp.Ok || !bytes.Equal(resp.Value, []byte("kiwi")) {
		t.Fatalf("get returned ok=%v value=%q", resp.Ok, resp.Value)
	}

	// Get missing
	resp = adapter.Handle(common.NewGetRequest("missing"), d)
	if resp.Err != "" || resp.Ok {
		t.Fatalf("get of missing key returned ok=%v err=%q", resp.Ok, resp.Err)
	}

	// Remove existing
	resp = adapter.Handle(common.NewRemoveRequest("fruit"), d)
	if resp.Err != "" || !resp.Ok {
		t.Fatalf("remove returned ok=%v err=%q", resp.Ok, resp.Err)
	}

	// Remove again, key is gone
	resp = adapter.Handle(common.NewRemoveRequest("fruit"), d)
	if resp.Err != "" || resp.Ok {
		t.Fatalf("second remove returned ok=%v err=%q", resp.Ok, resp.Err)
	}
}

func TestAdapterUnsupportedType(t *testing.T) {
	adapter := NewKVServerAdapter()
	d := newTestDispatcher(t)

	resp := adapter.Handle(&common.Message{MsgType: common.MsgTUnknown}, d)
	if resp.MsgType != common.MsgTError || resp.Err == "" {
		t.Fatalf("expected error response, got %+v", resp)
	}
}

func TestAdapterKeepsErrorCode(t *testing.T) {
	adapter := NewKVServerAdapter()
	d := kv.NewDispatcher(memory.NewMemoryEngine(nil), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	// Submitting after shutdown must surface the dispatch error code
	resp := adapter.Handle(common.NewSetRequest("k", []byte("v")), d)
	if resp.Err == "" {
		t.Fatal("expected error response after shutdown")
	}
	if kv.ErrCode(resp.ErrCode) != kv.ErrCPoolClosed {
		t.Fatalf("expected PoolClosed code, got %d", resp.ErrCode)
	}
}

// --------------------------------------------------------------------------
// End-to-End Test
// --------------------------------------------------------------------------

func TestServerEndToEnd(t *testing.T) {
	// Reserve a loopback port
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to reserve port: %v", err)
	}
	endpoint := l.Addr().String()
	l.Close()

	config := common.ServerConfig{
		Endpoint:      endpoint,
		Engine:        "memory",
		TimeoutSecond: 5,
		LogLevel:      "error",
	}

	s := NewRPCServer(config, tcp.NewTCPServerTransport(config), serializer.NewBinarySerializer())

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.Serve()
	}()

	clientConf := common.ClientConfig{
		Endpoints:     []string{endpoint},
		TimeoutSecond: 5,
		RetryCount:    3,
	}

	// The server may not be listening yet, retry the initial connect
	var c client.IKVClient
	for i := 0; i < 50; i++ {
		c, err = client.NewKVClient(clientConf, tcp.NewTCPClientTransport(), serializer.NewBinarySerializer())
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer c.Close()

	if err := c.Set("greeting", []byte("hello")); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	value, found, err := c.Get("greeting")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !found || !bytes.Equal(value, []byte("hello")) {
		t.Fatalf("get returned found=%v value=%q", found, value)
	}

	found, err = c.Remove("greeting")
	if err != nil || !found {
		t.Fatalf("remove returned found=%v err=%v", found, err)
	}

	_, found, err = c.Get("greeting")
	if err != nil {
		t.Fatalf("get after remove failed: %v", err)
	}
	if found {
		t.Fatal("key still present after remove")
	}

	// Graceful shutdown must unblock Serve
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
	select {
	case err := <-serveErr:
		if err != nil {
			t.Fatalf("serve returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after shutdown")
	}
}
