package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sweeney/kaku-bridge/internal/capture"
	"github.com/sweeney/kaku-bridge/internal/kaku"
)

var showRepeats = false

func listenCommand() *cobra.Command {
	cmd := cobra.Command{
		Use:   "listen",
		Short: "Print received commands until interrupted",
		Args:  cobra.ExactArgs(0),
		RunE:  listen,
	}
	cmd.Flags().BoolVar(&showRepeats, "all", showRepeats, "Also print repeated frames")

	return &cmd
}

func listenStop() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)

	go func() {
		<-sigCh
		cancel()
	}()

	return ctx
}

// printCommand writes one decoded command as a line of text.
func printCommand(w io.Writer, cmd kaku.Command, repeats bool) {
	if cmd.Repeat > 0 && !repeats {
		return
	}
	fmt.Fprintf(w, "%s %s\n", time.Now().Format("15:04:05.000"), cmd)
}

func listen(_ *cobra.Command, _ []string) error {
	ctx := listenStop()

	r, err := openRadio(false)
	if err != nil {
		return err
	}
	defer r.close()

	rx := kaku.NewReceiver(kaku.ReceiverConfig{Name: r.name})
	rx.AddCallback(func(cmd kaku.Command) { printCommand(os.Stdout, cmd, showRepeats) })

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return rx.Run(ctx) })
	g.Go(func() error {
		return r.listen(ctx, func(ts time.Duration, _ bool) { rx.OnEdge(ts) })
	})

	return g.Wait()
}

func record(_ *cobra.Command, args []string) error {
	ctx := listenStop()

	f, err := os.Create(args[0])
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	r, err := openRadio(false)
	if err != nil {
		return err
	}
	defer r.close()

	rec := &capture.Recorder{Dest: f}
	err = r.listen(ctx, func(ts time.Duration, rising bool) {
		if err := rec.Record(capture.Edge{At: ts, Rising: rising}); err != nil {
			log.Printf("record: %v", err)
		}
	})
	log.Printf("recorded %d edges to %s", rec.Count(), args[0])
	return err
}

func replay(_ *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}
	defer f.Close()

	return decodeCapture(os.Stdout, f, showRepeats)
}

// decodeCapture runs a recorded edge stream through a fresh decoder and
// prints what it finds.
func decodeCapture(w io.Writer, r io.Reader, repeats bool) error {
	edges, err := capture.Timestamps(r)
	if err != nil {
		return err
	}

	d := kaku.NewDecoder()
	for _, ts := range edges {
		if cmd, ok := d.Edge(ts); ok && (cmd.Repeat == 0 || repeats) {
			fmt.Fprintf(w, "%12v %s\n", ts, cmd)
		}
	}
	return nil
}
