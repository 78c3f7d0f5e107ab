// Command uwebd serves a small demo site with the uweb engine.
package main

import (
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/indigo-web/uweb"
	"github.com/indigo-web/uweb/config"
	"github.com/indigo-web/uweb/transport"
	"go.uber.org/zap"
)

var (
	addr       = flag.String("addr", ":8080", "address to listen on")
	configPath = flag.String("config", "", "path to a JSON config file")
	debug      = flag.Bool("debug", false, "log every request")
)

func main() {
	flag.Parse()

	logger, err := newLogger(*debug)
	if err != nil {
		_, _ = os.Stderr.WriteString("uwebd: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	cfg := config.Default()
	if *configPath != "" {
		if cfg, err = config.Load(*configPath); err != nil {
			logger.Fatal("loading config", zap.Error(err))
		}
	}

	a := newApp(cfg.Server.Name)
	engine := uweb.New(cfg, a, a, uweb.WithLogger(logger))

	sup := transport.NewSupervisor()
	if err = sup.Add(*addr, transport.NewTCP(), handler(engine, a)); err != nil {
		logger.Fatal("binding", zap.String("addr", *addr), zap.Error(err))
	}

	go func() {
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
		<-signals
		logger.Info("shutting down")
		sup.Stop()
	}()

	logger.Info("listening", zap.String("addr", *addr))
	if err = sup.Run(cfg.NET); err != nil {
		logger.Fatal("serving", zap.Error(err))
	}
}

func handler(engine *uweb.Engine, a *app) transport.Handler {
	return func(conn net.Conn) {
		session := engine.NewSession()
		_ = transport.Serve(engine, session, conn)
		a.done(session.Request())
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}

	return zap.NewProduction()
}
