package infrastructure

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/draftea/saga-engine/shared/events"
	"github.com/draftea/saga-engine/shared/models"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	SQSMessageIDKey     = "sqs_message_id"
	SQSReceiptHandleKey = "sqs_receipt_handle"
)

type sqsMessage struct {
	Message types.Message
	Event   *events.Event
	Err     error
}

// SQSEventSubscriber consumes events from an SQS queue fed by the SNS topic
// (raw delivery) and dispatches them to a single handler. Successfully
// handled messages are deleted; failed ones get their visibility timeout
// extended with the receive count so redelivery backs off.
type SQSEventSubscriber struct {
	client   *sqs.Client
	queueURL string
	handler  events.EventHandler
	logger   *zap.Logger
	options  sqsSubscriberOptions

	inbound  chan *sqsMessage
	outbound chan *sqsMessage
	cancel   context.CancelFunc
	running  atomic.Bool
	mu       sync.Mutex
}

type sqsSubscriberOptions struct {
	workers                 int
	readers                 int
	cleaners                int
	maxNumberOfMessages     int32
	waitTimeSeconds         int32
	visibilityTimeout       int32
	visibilityTimeoutOffset int32
	maxVisibilityTimeout    int32
	sleepAfterEmptyReceive  time.Duration
	sleepAfterError         time.Duration
}

// SQSSubscriberOption configures the subscriber
type SQSSubscriberOption func(*sqsSubscriberOptions)

// WithWorkers sets the number of handler goroutines
func WithWorkers(workers int) SQSSubscriberOption {
	return func(o *sqsSubscriberOptions) {
		o.workers = workers
	}
}

// WithVisibilityTimeout sets the base visibility timeout in seconds
func WithVisibilityTimeout(timeout int32) SQSSubscriberOption {
	return func(o *sqsSubscriberOptions) {
		o.visibilityTimeout = timeout
	}
}

// NewSQSEventSubscriber creates a subscriber over an existing SQS client
func NewSQSEventSubscriber(
	client *sqs.Client,
	queueURL string,
	handler events.EventHandler,
	logger *zap.Logger,
	opts ...SQSSubscriberOption,
) *SQSEventSubscriber {
	if logger == nil {
		logger = zap.NewNop()
	}

	options := sqsSubscriberOptions{
		workers:                 10,
		readers:                 1,
		cleaners:                2,
		maxNumberOfMessages:     5,
		waitTimeSeconds:         15,
		visibilityTimeout:       30,
		visibilityTimeoutOffset: 30,
		maxVisibilityTimeout:    900,
		sleepAfterEmptyReceive:  5 * time.Second,
		sleepAfterError:         20 * time.Second,
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &SQSEventSubscriber{
		client:   client,
		queueURL: queueURL,
		handler:  handler,
		logger:   logger,
		options:  options,
	}
}

// NewSQSEventSubscriberFromConfig builds the SQS client from the default
// AWS config chain
func NewSQSEventSubscriberFromConfig(
	ctx context.Context,
	queueURL string,
	handler events.EventHandler,
	logger *zap.Logger,
	opts ...SQSSubscriberOption,
) (*SQSEventSubscriber, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load AWS config")
	}
	return NewSQSEventSubscriber(sqs.NewFromConfig(cfg), queueURL, handler, logger, opts...), nil
}

// Start launches the reader, worker, and cleaner goroutines
func (s *SQSEventSubscriber) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.inbound = make(chan *sqsMessage, 10)
	s.outbound = make(chan *sqsMessage, 10)

	for i := 0; i < s.options.readers; i++ {
		go s.readLoop(ctx)
	}
	for i := 0; i < s.options.workers; i++ {
		go s.workLoop(ctx)
	}
	for i := 0; i < s.options.cleaners; i++ {
		go s.cleanLoop(ctx)
	}

	s.running.Store(true)
	return nil
}

// Stop cancels the processing goroutines
func (s *SQSEventSubscriber) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.Load() {
		return nil
	}

	s.cancel()
	s.running.Store(false)
	return nil
}

func (s *SQSEventSubscriber) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			if err := s.read(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("failed to read from SQS", zap.Error(err))
				sleep(ctx, s.options.sleepAfterError)
			}
		}
	}
}

func (s *SQSEventSubscriber) workLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case message := <-s.inbound:
			if message == nil {
				continue
			}
			message.Err = s.handler.Handle(ctx, message.Event)
			select {
			case s.outbound <- message:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (s *SQSEventSubscriber) cleanLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case message := <-s.outbound:
			if message == nil {
				continue
			}
			if err := s.clean(ctx, message); err != nil && ctx.Err() == nil {
				s.logger.Error("failed to settle SQS message", zap.Error(err))
			}
		}
	}
}

func (s *SQSEventSubscriber) read(ctx context.Context) error {
	output, err := s.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(s.queueURL),
		MaxNumberOfMessages: s.options.maxNumberOfMessages,
		WaitTimeSeconds:     s.options.waitTimeSeconds,
		VisibilityTimeout:   s.options.visibilityTimeout,
		AttributeNames: []types.QueueAttributeName{
			"ApproximateReceiveCount",
		},
		MessageAttributeNames: []string{"All"},
	})
	if err != nil {
		return errors.Wrap(err, "failed to receive messages")
	}

	if len(output.Messages) == 0 {
		sleep(ctx, s.options.sleepAfterEmptyReceive)
		return nil
	}

	for _, message := range output.Messages {
		event, err := s.decode(message)
		if err != nil {
			s.logger.Warn("skipping malformed message",
				zap.Stringp("message_id", message.MessageId),
				zap.Error(err),
			)
			continue
		}

		select {
		case s.inbound <- &sqsMessage{Message: message, Event: event}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

func (s *SQSEventSubscriber) decode(message types.Message) (*events.Event, error) {
	var envelope snsMessage
	if err := json.Unmarshal([]byte(*message.Body), &envelope); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal message body")
	}

	event := events.NewEvent(models.ID(envelope.AggregateID), envelope.Topic, json.RawMessage(envelope.Payload))
	event.ID = models.ID(envelope.ID)
	event.Timestamp = envelope.Timestamp
	if envelope.CorrelationID != "" {
		event.CorrelationID = models.ID(envelope.CorrelationID)
	}
	for k, v := range envelope.Metadata {
		event.Metadata.Set(k, v)
	}

	event.Metadata.Set(SQSMessageIDKey, aws.ToString(message.MessageId))
	if message.ReceiptHandle != nil {
		event.Metadata.Set(SQSReceiptHandleKey, *message.ReceiptHandle)
	}

	return event, nil
}

func (s *SQSEventSubscriber) clean(ctx context.Context, message *sqsMessage) error {
	if message.Err == nil {
		_, err := s.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
			QueueUrl:      &s.queueURL,
			ReceiptHandle: message.Message.ReceiptHandle,
		})
		return errors.Wrap(err, "failed to delete message")
	}

	receiveCount, err := strconv.Atoi(message.Message.Attributes["ApproximateReceiveCount"])
	if err != nil {
		receiveCount = 1
	}

	timeout := s.options.visibilityTimeout + int32(receiveCount)*s.options.visibilityTimeoutOffset
	if timeout > s.options.maxVisibilityTimeout {
		timeout = s.options.maxVisibilityTimeout
	}

	_, err = s.client.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          &s.queueURL,
		ReceiptHandle:     message.Message.ReceiptHandle,
		VisibilityTimeout: timeout,
	})
	return errors.Wrap(err, "failed to extend visibility timeout")
}

func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
