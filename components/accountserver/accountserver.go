package main

import (
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/xiaonanln/goTimer"
	"github.com/xiaonanln/go-xnsyncutil/xnsyncutil"

	"github.com/openmana/accountserver/engine/binutil"
	"github.com/openmana/accountserver/engine/common"
	"github.com/openmana/accountserver/engine/config"
	"github.com/openmana/accountserver/engine/consts"
	"github.com/openmana/accountserver/engine/netutil"
	"github.com/openmana/accountserver/engine/omlog"
	"github.com/openmana/accountserver/engine/storage"
	"github.com/openmana/accountserver/engine/token"
	"github.com/openmana/accountserver/server/gamelink"
	"github.com/openmana/accountserver/server/handoff"
	"github.com/openmana/accountserver/server/registry"
	"github.com/openmana/accountserver/server/stats"
)

var (
	configFile      string
	runInDaemonMode bool
	signalChan      = make(chan os.Signal, 1)
	terminated      = xnsyncutil.NewOneTimeCond()
)

func parseArgs() {
	flag.StringVar(&configFile, "configfile", "", "set config file path")
	flag.BoolVar(&runInDaemonMode, "d", false, "run in daemon mode")
	flag.Parse()
}

// brokerReconnectPreparer feeds reconnect tokens back into the handoff
// broker so the account session side can redeem them
type brokerReconnectPreparer struct {
	broker *handoff.Broker
}

func (p *brokerReconnectPreparer) Prepare(tok string, accountID common.AccountID, charID common.CharacterID) {
	p.broker.Prepare(tok, accountID, charID)
}

func main() {
	parseArgs()
	if runInDaemonMode {
		daemoncontext := binutil.Daemonize()
		defer daemoncontext.Release()
	}

	if configFile != "" {
		config.SetConfigFile(configFile)
	}

	cfg := config.GetAccountServer()
	if cfg.GoMaxProcs > 0 {
		omlog.Infof("SET GOMAXPROCS = %d", cfg.GoMaxProcs)
		runtime.GOMAXPROCS(cfg.GoMaxProcs)
	}
	binutil.SetupOMLog("accountserver", cfg.LogLevel, cfg.LogFile, cfg.LogStderr)
	omlog.Infof("account server config: \n%s", config.DumpPretty(cfg))

	store, err := storage.OpenStorage(config.GetStorage())
	if err != nil {
		omlog.Fatalf("open character storage failed: %v", err)
	}

	reg := registry.NewMapRegistry()
	broker := handoff.NewBroker(token.NewDispenser())
	service := gamelink.NewService(reg, broker, store, &brokerReconnectPreparer{broker})
	aggregator := stats.NewAggregator(reg)

	binutil.SetupHTTPServer(cfg.HTTPIp, cfg.HTTPPort, map[string]http.Handler{
		"/debug/gameservers": aggregator,
	})

	setupSignals()

	if cfg.StatsDumpInterval > 0 {
		timer.AddTimer(cfg.StatsDumpInterval, aggregator.DumpToLog)
	}
	go func() {
		for {
			timer.Tick()
			time.Sleep(consts.SERVICE_TICK_INTERVAL)
		}
	}()

	listenAddr := fmt.Sprintf("%s:%d", cfg.BindIp, cfg.BindPort)
	omlog.Infof("account server listening on %s for game servers ...", listenAddr)
	go netutil.ServeTCPForever(listenAddr, service)

	terminated.Wait()
	store.Close()
	omlog.Infof("account server terminated gracefully.")
}

func setupSignals() {
	omlog.Infof("Setup signals ...")
	signal.Ignore(syscall.SIGPIPE, syscall.SIGHUP)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		for {
			sig := <-signalChan
			if sig == syscall.SIGINT || sig == syscall.SIGTERM {
				omlog.Infof("Terminating account server ...")
				terminated.Signal()
			} else {
				omlog.Errorf("unexpected signal: %s", sig)
			}
		}
	}()
}
