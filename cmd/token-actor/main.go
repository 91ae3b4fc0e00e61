// Command token-actor serves an in-memory multi-token over RabbitMQ.  It is
// the counterpart of the ledger server's amqp token transport.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/event-ticket-ledger/internal/config"
	"github.com/iliyamo/event-ticket-ledger/internal/token"
)

func main() {
	config.LoadDotEnv()
	logger := log.New("token-actor")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &token.Server{
		URL:     config.AMQPURL(),
		Queue:   config.TokenQueue(),
		Handler: token.NewMultitoken(),
		Log:     logger,
	}
	logger.Infof("serving token requests on %s", srv.Queue)
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal(err)
	}
}
