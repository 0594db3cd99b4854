package rabbitmq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/getsentry/sentry-go"
	"github.com/labstack/gommon/log"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/ziflex/lecho/v3"

	"github.com/getchainhub/chainhub/db/models"
)

const contentTypeJSON = "application/json"

var bufPool = sync.Pool{
	New: func() interface{} { return new(bytes.Buffer) },
}

// SubscribeToInvoicesFunc hands the publisher a stream of invoice lifecycle
// transitions plus a teardown func.
type SubscribeToInvoicesFunc = func(ctx context.Context) (invoices chan models.Invoice, unsubscribe func())

type Client interface {
	StartPublishInvoices(ctx context.Context, subscribeFunc SubscribeToInvoicesFunc) error
	Close() error
}

type DefaultClient struct {
	conn *amqp.Connection

	publishChannel *amqp.Channel

	logger *lecho.Logger

	invoiceExchange string
}

type ClientOption = func(client *DefaultClient)

func WithInvoiceExchange(exchange string) ClientOption {
	return func(client *DefaultClient) {
		client.invoiceExchange = exchange
	}
}

func WithLogger(logger *lecho.Logger) ClientOption {
	return func(client *DefaultClient) {
		client.logger = logger
	}
}

// Dial sets up a connection to rabbitmq with a channel ready to publish,
// retrying with exponential backoff while the broker comes up.
func Dial(uri string, options ...ClientOption) (Client, error) {
	var conn *amqp.Connection
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.MaxInterval = time.Second * 10
	exponentialBackoff.MaxElapsedTime = time.Minute
	err := backoff.Retry(func() error {
		var err error
		conn, err = amqp.Dial(uri)
		return err
	}, exponentialBackoff)
	if err != nil {
		return nil, err
	}

	publishChannel, err := conn.Channel()
	if err != nil {
		return nil, err
	}

	client := &DefaultClient{
		conn:           conn,
		publishChannel: publishChannel,

		logger: lecho.New(
			os.Stdout,
			lecho.WithLevel(log.DEBUG),
			lecho.WithTimestamp(),
		),

		invoiceExchange: "chainhub_invoice",
	}

	for _, opt := range options {
		opt(client)
	}

	return client, nil
}

func (client *DefaultClient) Close() error { return client.conn.Close() }

// StartPublishInvoices exports every paid and forwarded invoice transition
// to the invoice exchange until the context is cancelled. The routing key is
// invoice.<currency>.<state>, so consumers can bind to a single asset or a
// single lifecycle edge.
func (client *DefaultClient) StartPublishInvoices(ctx context.Context, subscribeFunc SubscribeToInvoicesFunc) error {
	err := client.publishChannel.ExchangeDeclare(
		client.invoiceExchange,
		// topic exchange so consumers can bind per currency or per state
		"topic",
		// Durable and Non-Auto-Deleted exchanges will survive server restarts
		// and remain declared when there are no remaining bindings.
		true,
		false,
		// Non-Internal exchanges accept direct publishing
		false,
		// Nowait: wait for the server to confirm the declare
		false,
		nil,
	)
	if err != nil {
		return err
	}

	client.logger.Info("Starting rabbitmq publisher")

	invoices, unsubscribe := subscribeFunc(ctx)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return context.Canceled
		case invoice := <-invoices:
			err = client.publishToInvoiceExchange(ctx, invoice)
			if err != nil {
				captureErr(client.logger, err)
			}
		}
	}
}

func (client *DefaultClient) publishToInvoiceExchange(ctx context.Context, invoice models.Invoice) error {
	payload := bufPool.Get().(*bytes.Buffer)
	payload.Reset()
	defer bufPool.Put(payload)

	// the custody key is excluded by the model's json tags
	if err := json.NewEncoder(payload).Encode(invoice); err != nil {
		return err
	}

	key := fmt.Sprintf("invoice.%s.%s", invoice.Currency, invoice.State)

	err := client.publishChannel.PublishWithContext(ctx,
		client.invoiceExchange,
		key,
		false,
		false,
		amqp.Publishing{
			ContentType: contentTypeJSON,
			Body:        payload.Bytes(),
		},
	)
	if err != nil {
		captureErr(client.logger, err)
		return err
	}

	client.logger.Debugf("Successfully published invoice to rabbitmq: invoice_id:%s state:%s", invoice.ID, invoice.State)

	return nil
}

func captureErr(logger *lecho.Logger, err error) {
	logger.Error(err)
	sentry.CaptureException(err)
}
