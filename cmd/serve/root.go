package serve

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	cmdUtil "github.com/tomkarw/kiwi-store/cmd/util"
	"github.com/tomkarw/kiwi-store/rpc/common"
	"github.com/tomkarw/kiwi-store/rpc/serializer"
	"github.com/tomkarw/kiwi-store/rpc/server"
	"github.com/tomkarw/kiwi-store/rpc/transport"
	"github.com/tomkarw/kiwi-store/rpc/transport/tcp"
	"github.com/tomkarw/kiwi-store/rpc/transport/unix"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the kiwi-store server",
		Long:    `Start the kiwi-store server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is KIWI_<flag> (e.g. KIWI_ENGINE=bolt)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(initConfig)

	// add flags
	key := "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the server will listen (host:port for tcp, a socket path for unix)"))

	key = "engine"
	ServeCmd.PersistentFlags().String(key, "kiwi", cmdUtil.WrapString("Storage engine to use (kiwi, bolt, memory)"))

	key = "data-dir"
	ServeCmd.PersistentFlags().String(key, "data", cmdUtil.WrapString("Directory used for persistent storage (ignored for the memory engine)"))

	key = "sync-writes"
	ServeCmd.PersistentFlags().Bool(key, false, cmdUtil.WrapString("Fsync after every write instead of only on flush (kiwi engine only)"))

	key = "lanes"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("Number of worker lanes for the request dispatcher (0 = number of CPUs)"))

	key = "queue-capacity"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("Per-lane queue capacity before requests are refused with a backpressure error (0 = default)"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("Read/write timeout per connection in seconds"))

	key = "max-workers-per-conn"
	ServeCmd.PersistentFlags().Int(key, 16, cmdUtil.WrapString("Maximum concurrent requests processed per connection"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Optional address for the Prometheus metrics and pprof HTTP endpoint (e.g. 127.0.0.1:6060, empty = disabled)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and
// environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.Engine = viper.GetString("engine")
	serveCmdConfig.DataDir = viper.GetString("data-dir")
	serveCmdConfig.SyncWrites = viper.GetBool("sync-writes")
	serveCmdConfig.Lanes = viper.GetInt("lanes")
	serveCmdConfig.QueueCapacity = viper.GetInt("queue-capacity")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")
	serveCmdConfig.Transport.MaxWorkersPerConn = viper.GetInt("max-workers-per-conn")

	switch serveCmdConfig.Engine {
	case "kiwi", "bolt":
		if serveCmdConfig.DataDir == "" {
			return fmt.Errorf("data-dir is required for the %s engine", serveCmdConfig.Engine)
		}
	case "memory":
		// no persistence
	default:
		return fmt.Errorf("invalid engine %s (expected one of: kiwi, bolt, memory)", serveCmdConfig.Engine)
	}

	return nil
}

// run starts the kiwi-store server
func run(_ *cobra.Command, _ []string) error {

	// parse the serializer
	var s serializer.IRPCSerializer
	switch viper.GetString("serializer") {
	case "json":
		s = serializer.NewJSONSerializer()
	case "gob":
		s = serializer.NewGOBSerializer()
	case "binary":
		s = serializer.NewBinarySerializer()
	default:
		return fmt.Errorf("invalid serializer %s", viper.GetString("serializer"))
	}

	// parse the transport
	var t transport.IRPCServerTransport
	switch viper.GetString("transport") {
	case "tcp":
		t = tcp.NewTCPServerTransport(*serveCmdConfig)
	case "unix":
		t = unix.NewUnixServerTransport(*serveCmdConfig)
	default:
		return fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}

	serv := server.NewRPCServer(
		*serveCmdConfig,
		t,
		s,
	)

	return serv.Serve()
}

// initConfig reads in env files and environment variables if set
func initConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("kiwi")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}
