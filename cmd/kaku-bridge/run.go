package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sweeney/kaku-bridge/internal/kaku"
	"github.com/sweeney/kaku-bridge/internal/mqtt"
	"github.com/sweeney/kaku-bridge/internal/status"
	"github.com/sweeney/kaku-bridge/internal/web"
)

// refreshInterval is how often connection state is copied into the tracker.
const refreshInterval = time.Second

var (
	broker         = "tcp://192.168.1.200:1883"
	clientID       = "kaku-bridge"
	httpAddr       = ":80"
	heartbeat      = 15 * time.Minute
	publishRepeats = false
)

func runCommand() *cobra.Command {
	cmd := cobra.Command{
		Use:   "run",
		Short: "Bridge the radio to MQTT and serve the status page",
		Args:  cobra.ExactArgs(0),
		RunE:  runDaemon,
	}
	cmd.Flags().StringVar(&broker, "broker", broker, "MQTT broker address")
	cmd.Flags().StringVar(&clientID, "client-id", clientID, "MQTT client ID")
	cmd.Flags().StringVar(&httpAddr, "http", httpAddr, "HTTP status address (empty to disable)")
	cmd.Flags().DurationVar(&heartbeat, "heartbeat", heartbeat, "Heartbeat interval (0 to disable)")
	cmd.Flags().BoolVar(&publishRepeats, "publish-repeats", publishRepeats, "Publish every received frame, not only new commands")

	return &cmd
}

func runDaemon(_ *cobra.Command, _ []string) error {
	r, err := openRadio(true)
	if err != nil {
		return err
	}
	defer r.close()

	tx, err := kaku.NewTransmitter(r.out, kaku.TransmitterConfig{
		Period:     period,
		Resolution: resolution,
		Repeats:    repeats,
	})
	if err != nil {
		return fmt.Errorf("init transmitter: %w", err)
	}
	rx := kaku.NewReceiver(kaku.ReceiverConfig{Name: r.name})

	publisher, err := mqtt.NewRealPublisher(broker, clientID)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		Broker:      broker,
		HTTPPort:    httpAddr,
		HeartbeatMs: heartbeat.Milliseconds(),
		Radio:       radioLabel(),
		RXPin:       pinRX,
		TXPin:       pinTX,
		PeriodUs:    period.Microseconds(),
		Repeats:     tx.Repeats(),
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	b := newBridge(rx, tx, publisher, tracker)
	b.source = r.name
	b.publishRepeats = publishRepeats
	publisher.OnSend(b.enqueue)

	if err := b.publishStatus("STARTUP", "", true); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	refresh := time.NewTicker(refreshInterval)
	defer refresh.Stop()

	var hb <-chan time.Time
	if heartbeat > 0 {
		t := time.NewTicker(heartbeat)
		defer t.Stop()
		hb = t.C
	}

	log.Printf("started: radio=%s period=%v repeats=%d broker=%s heartbeat=%v", r.name, period, tx.Repeats(), broker, heartbeat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return b.loop(ctx, refresh.C, hb, sigCh)
	})
	g.Go(func() error { return rx.Run(ctx) })
	g.Go(func() error {
		return r.listen(ctx, func(ts time.Duration, _ bool) { rx.OnEdge(ts) })
	})
	g.Go(func() error { return b.transmitLoop(ctx) })

	// Start HTTP status server
	if httpAddr != "" {
		srv := web.New(httpAddr, tracker, b.send)
		g.Go(func() error {
			log.Printf("http status server listening on %s", httpAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			return srv.Shutdown(context.Background())
		})
	}

	return g.Wait()
}
