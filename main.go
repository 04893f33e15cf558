package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/sirupsen/logrus"
	"go.bug.st/serial"

	"i4.energy/across/loragw/modem"
)

func main() {
	configPath := flag.String("config", "", "Path to the TOML configuration file")
	flag.Parse()

	config, err := LoadConfig(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	logger, err := newLogger(config.Log)
	if err != nil {
		logrus.WithError(err).Fatal("failed to set up logging")
	}

	modemConfig, err := modem.NewConfigBuilder().
		WithDialer(modem.SerialDialer{
			PortName: config.Serial.Port,
			Mode:     &serial.Mode{BaudRate: config.Serial.Baud, DataBits: 8, Parity: serial.NoParity, StopBits: serial.OneStopBit},
		}).
		WithLogger(logger).
		Build()
	if err != nil {
		logger.WithError(err).Fatal("failed to build modem config")
	}

	dialCtx, cancelDial := context.WithTimeout(context.Background(), 30*time.Second)
	m, err := modem.New(dialCtx, modemConfig)
	cancelDial()
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize modem")
	}

	gateway := NewGateway(config, logger, m)
	if err := gateway.Provision(); err != nil {
		logger.WithError(err).Fatal("failed to provision device")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var bridge *MQTTBridge
	if config.MQTT.Broker != "" {
		bridge = NewMQTTBridge(config.MQTT, logger, gateway)
		if err := bridge.Connect(); err != nil {
			// The bridge reconnects on its own; a dead broker at boot
			// should not take the HTTP surface down with it.
			logger.WithError(err).Error("mqtt bridge failed to connect")
		}
	}

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		gateway.Run(ctx)
	}()

	server := &Server{
		Logger:  logger.WithField("component", "http"),
		Service: gateway,
		Token:   config.HTTP.Token,
	}
	httpServer := &http.Server{
		Addr:    config.HTTP.Listen,
		Handler: server.Routes(),
	}
	go func() {
		logger.WithField("address", httpServer.Addr).Info("http listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("http server failed")
			cancel()
		}
	}()

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		logger.WithError(err).Warn("systemd notification failed")
	} else if sent {
		logger.Debug("systemd notified ready")
	}

	<-ctx.Done()
	logger.Info("shutting down")
	daemon.SdNotify(false, daemon.SdNotifyStopping)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("http shutdown failed")
	}

	if bridge != nil {
		bridge.Disconnect()
	}

	<-workerDone

	if err := gateway.Close(); err != nil {
		logger.WithError(err).Error("modem close failed")
	}
	logger.Info("stopped")
}
