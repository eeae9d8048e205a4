// Command wslog-producer is a thin smoke-test harness for the producer
// side of the fabric: it wires internal/tracecontext.Engine to a console
// sink and, if --broker is set, an internal/link.Link, then emits a
// handful of nested calls so a broker or a local file can be inspected.
// The real CLI wrapper around the producer is an external, out-of-scope
// collaborator (§1 Non-goals); this exists only to exercise the stack
// end to end.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/martinbechard/wslog/internal/link"
	"github.com/martinbechard/wslog/internal/sinks"
	"github.com/martinbechard/wslog/internal/tracecontext"
	"github.com/martinbechard/wslog/pkg/logger"
)

func main() {
	var (
		brokerURL = flag.String("broker", "", "broker link URL, e.g. ws://localhost:8080/link (omit for serverless mode)")
		logFile   = flag.String("logfile", "", "path to also append rendered lines to (optional)")
		source    = flag.String("source", hostnameOrDefault(), "producer source identity")
	)
	flag.Parse()

	opts := []tracecontext.Option{
		tracecontext.WithSource(*source),
		tracecontext.WithSinks(sinks.NewConsoleSink()),
	}

	if *logFile != "" {
		fileSink, err := sinks.NewFileSink(*logFile)
		if err != nil {
			log.Fatalf("wslog-producer: %v", err)
		}
		defer fileSink.Close()
		opts = append(opts, tracecontext.WithSinks(fileSink))
	}

	zapLogger := logger.NewLogger()

	var l *link.Link
	if *brokerURL != "" {
		l = link.New(link.Config{URL: *brokerURL, MaxRetries: -1}, link.WSDialer{}, zapLogger)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		l.Start(ctx)
		opts = append(opts, tracecontext.WithTransport(l))
		defer l.Close()
	}

	engine := tracecontext.New(opts...)

	ctx := context.Background()
	_ = engine.RunInScope(ctx, tracecontext.Overrides{}, func(ctx context.Context) error {
		_, err := engine.Exec(ctx, "demoOuter", func(ctx context.Context) (any, error) {
			engine.Log(ctx, "info", "starting demo run", nil)
			_, innerErr := engine.Exec(ctx, "demoInner", func(ctx context.Context) (any, error) {
				engine.Log(ctx, "info", "doing inner work", map[string]any{"step": 1})
				return "inner-result", nil
			})
			return "outer-result", innerErr
		})
		return err
	})

	if l != nil {
		time.Sleep(200 * time.Millisecond) // let the queue drain before exit
	}
}

func hostnameOrDefault() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return fmt.Sprintf("wslog-producer-%d", os.Getpid())
	}
	return h
}
