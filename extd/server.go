package extd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yusufsyaifudin/emailer/container"
	"github.com/yusufsyaifudin/emailer/transport/restapi"
	"github.com/yusufsyaifudin/ylog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

const shutdownTimeout = 30 * time.Second

type ServerConfig struct {
	AppName    string
	AppVersion string
	Config     container.Config
}

// RunServer located in extd (extended) to add capability extends backend if you want to create custom backend.
// It blocks until SIGINT/SIGTERM, then stops the running campaign after its in-flight message.
func RunServer(ctx context.Context, cfg ServerConfig) (err error) {
	if ctx == nil {
		ctx = context.TODO()
	}

	shutdownTracing := SetupTracing(ctx, cfg.AppName, cfg.Config.Tracing)
	defer shutdownTracing(context.WithoutCancel(ctx))

	ylog.Info(ctx, "container preparation: starting")
	app, err := NewApp(ctx, cfg.Config, true)
	if err != nil {
		ylog.Error(ctx, "container preparation: failed", ylog.KV("error", err))
		return
	}

	defer func() {
		ylog.Info(ctx, "closing container: starting")
		if _err := app.Close(); _err != nil {
			ylog.Error(ctx, "closing container: failed", ylog.KV("error", _err))
		}

		ylog.Info(ctx, "closing container: done")
	}()

	// ** HTTP TRANSPORT
	ylog.Info(ctx, "http transport: starting")
	server, err := restapi.NewHTTPTransport(restapi.Config{
		AppServiceName:   cfg.AppName,
		AppVersion:       cfg.AppVersion,
		RecipientService: app.Services.Recipients(),
		CampaignService:  app.Services.Campaign(),
		Tags:             app.Services.Tags(),
	})
	if err != nil {
		ylog.Error(ctx, "http transport: failed", ylog.KV("error", err))
		return
	}

	port := cfg.Config.Transport.HTTP.Port
	h2s := &http2.Server{}
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           h2c.NewHandler(server.Server(), h2s), // HTTP/2 Cleartext handler
		ReadHeaderTimeout: 10 * time.Second,
	}

	var apiErrChan = make(chan error, 1)
	go func() {
		ylog.Info(ctx, fmt.Sprintf("http transport: done running on port %d", port))
		apiErrChan <- httpServer.ListenAndServe()
	}()

	ylog.Info(ctx, "system: up and running...")

	// ** listen for sigterm signal
	var signalChan = make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signalChan)

	select {
	case <-signalChan:
		ylog.Info(ctx, "system: exiting...")

	case _err := <-apiErrChan:
		if _err != nil && !errors.Is(_err, http.ErrServerClosed) {
			ylog.Error(ctx, "http transport: error", ylog.KV("error", _err))
			err = _err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	ylog.Info(ctx, "http transport: exiting...")
	if _err := httpServer.Shutdown(shutdownCtx); _err != nil {
		ylog.Error(ctx, "http transport: shutdown", ylog.KV("error", _err))
	}

	campaign := app.Services.Campaign()
	if campaign.Stop(shutdownCtx).WasSending {
		ylog.Info(ctx, "campaign: waiting in-flight message")
		if _err := campaign.Wait(shutdownCtx); _err != nil {
			ylog.Warn(ctx, "campaign: stopped with error", ylog.KV("error", _err))
		}
	}

	return
}
