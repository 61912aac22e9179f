package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/tomkarw/kiwi-store/lib/engine"
	"github.com/tomkarw/kiwi-store/lib/engine/bolt"
	"github.com/tomkarw/kiwi-store/lib/engine/kiwi"
	"github.com/tomkarw/kiwi-store/lib/engine/memory"
	"github.com/tomkarw/kiwi-store/lib/kv"
	"github.com/tomkarw/kiwi-store/rpc/common"
	"github.com/tomkarw/kiwi-store/rpc/serializer"
	"github.com/tomkarw/kiwi-store/rpc/transport"

	_ "net/http/pprof"
)

var logger = common.GetLogger("rpc/server")

// Request counters exposed on the metrics endpoint
var (
	setRequests    = metrics.NewCounter(`kiwi_requests_total{op="set"}`)
	getRequests    = metrics.NewCounter(`kiwi_requests_total{op="get"}`)
	removeRequests = metrics.NewCounter(`kiwi_requests_total{op="remove"}`)
	badRequests    = metrics.NewCounter(`kiwi_requests_total{op="invalid"}`)
	errorResponses = metrics.NewCounter(`kiwi_request_errors_total`)
)

// NewRPCServer creates a new RPC server.
// It takes a config, transport and serializer as parameters.
//
// Usage:
//
//	s := server.NewRPCServer(
//		config,
//		tcp.NewTCPServerTransport(config),
//		serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	return &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		adapter:    NewKVServerAdapter(),
	}
}

// RPCServer ties an engine, a dispatcher and a transport together into a
// runnable key-value server
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	adapter    IRPCServerAdapter

	engine     engine.KVEngine
	dispatcher *kv.Dispatcher
	metricsSrv *http.Server

	shutdownOnce sync.Once
	shutdownErr  error
}

// --------------------------------------------------------------------------
// Setup
// --------------------------------------------------------------------------

func (s *RPCServer) registerTransportHandler() {
	s.transport.RegisterHandler(func(req []byte) []byte {
		var msg common.Message
		var respMsg common.Message

		// Decode the request
		if err := s.serializer.Deserialize(req, &msg); err != nil {
			badRequests.Inc()
			respMsg = *common.NewErrorResponse(fmt.Sprintf("failed to deserialize request: %s", err))
		} else {
			s.countRequest(msg.MsgType)

			// Let the adapter handle the request
			respMsg = *s.adapter.Handle(&msg, s.dispatcher)
		}

		if respMsg.Err != "" {
			errorResponses.Inc()
		}

		// Return result
		val, err := s.serializer.Serialize(respMsg)
		if err != nil {
			logger.Errorf("failed to serialize response: %v", err)
			val, _ = s.serializer.Serialize(*common.NewErrorResponse("failed to serialize response"))
		}
		return val
	})
}

func (s *RPCServer) countRequest(t common.MessageType) {
	switch t {
	case common.MsgTKVSet:
		setRequests.Inc()
	case common.MsgTKVGet:
		getRequests.Inc()
	case common.MsgTKVRemove:
		removeRequests.Inc()
	default:
		badRequests.Inc()
	}
}

// newEngine creates the storage engine selected in the config
func newEngine(config common.ServerConfig) (engine.KVEngine, error) {
	switch config.Engine {
	case "kiwi", "":
		return kiwi.NewKiwiEngine(config.DataDir, &kiwi.EngineOptions{
			SyncWrites: config.SyncWrites,
		})
	case "bolt":
		return bolt.NewBoltEngine(config.DataDir)
	case "memory":
		return memory.NewMemoryEngine(nil), nil
	default:
		return nil, fmt.Errorf("unknown engine %q (expected kiwi, bolt or memory)", config.Engine)
	}
}

func (s *RPCServer) init() error {
	// Init logger
	common.InitLoggers(s.config)

	logger.Infof("starting kiwi-store server")
	logger.Info(s.config.String())

	// Create the storage engine
	eng, err := newEngine(s.config)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	s.engine = eng

	// Create the dispatch layer on top of the engine
	s.dispatcher = kv.NewDispatcher(eng, &kv.Options{
		Lanes:         s.config.Lanes,
		QueueCapacity: s.config.QueueCapacity,
	})

	logger.Infof("dispatcher ready with %d lanes", s.dispatcher.Lanes())

	// Configure the transport layer
	s.registerTransportHandler()

	// Optionally expose metrics and pprof
	if s.config.MetricsEndpoint != "" {
		s.startMetricsServer()
	}

	return nil
}

// startMetricsServer exposes Prometheus metrics and pprof on a separate
// HTTP endpoint
func (s *RPCServer) startMetricsServer() {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w, true)
	})
	mux.Handle("/debug/pprof/", http.DefaultServeMux)

	s.metricsSrv = &http.Server{
		Addr:    s.config.MetricsEndpoint,
		Handler: mux,
	}

	go func() {
		logger.Infof("metrics endpoint listening on %s", s.config.MetricsEndpoint)
		if err := s.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("metrics endpoint failed: %v", err)
		}
	}()
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// Serve initializes the server and blocks serving requests until Shutdown
// is called or a termination signal arrives
func (s *RPCServer) Serve() error {
	if err := s.init(); err != nil {
		return err
	}

	// Shut down gracefully on SIGINT/SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig, ok := <-sigCh
		if !ok {
			return
		}
		logger.Infof("received %s, shutting down", sig)
		if err := s.Shutdown(context.Background()); err != nil {
			logger.Errorf("shutdown: %v", err)
		}
	}()
	defer func() {
		signal.Stop(sigCh)
		close(sigCh)
	}()

	err := s.transport.Listen(s.config)

	// Listen returned, make sure everything is torn down even if no
	// signal triggered the shutdown
	if sErr := s.Shutdown(context.Background()); err == nil {
		err = sErr
	}
	return err
}

// Shutdown stops the transport, drains the dispatcher (flushing every lane)
// and closes the engine. Safe to call multiple times.
func (s *RPCServer) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		// Stop accepting new requests and wait for in-flight ones
		if err := s.transport.Close(); err != nil {
			logger.Errorf("transport close: %v", err)
		}

		// Drain all lanes and flush the engine
		if s.dispatcher != nil {
			drainCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			if err := s.dispatcher.Shutdown(drainCtx); err != nil {
				s.shutdownErr = fmt.Errorf("dispatcher shutdown: %w", err)
			}
		}

		if s.engine != nil {
			if err := s.engine.Close(); err != nil && s.shutdownErr == nil {
				s.shutdownErr = fmt.Errorf("engine close: %w", err)
			}
		}

		if s.metricsSrv != nil {
			s.metricsSrv.Shutdown(ctx)
		}

		logger.Infof("server stopped")
	})
	return s.shutdownErr
}
