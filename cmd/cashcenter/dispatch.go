package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"bitbucket.org/mmdatafocus/cashcenter_backend/config"
	"bitbucket.org/mmdatafocus/cashcenter_backend/workflow"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type DispatchOptions struct {
	*RootOptions
	EnsureTopic bool
}

func NewDispatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DispatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dispatch-outbox",
		Short: "Publish outbox events to Pub/Sub until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDispatch(cmd, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.EnsureTopic, "ensure-topic", false, "create CASHCENTER_PUBSUB_TOPIC if it does not exist")
	return cmd
}

func runDispatch(cmd *cobra.Command, opts *DispatchOptions) error {
	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	db, err := connectDatabase()
	if err != nil {
		return err
	}

	publisher := config.NewPubSubPublisher()
	if opts.EnsureTopic {
		client, err := config.GetPubSubClient(sigCtx)
		if err != nil {
			return err
		}
		if _, err := config.CreateTopicIfNotExists(sigCtx, client, publisher.TopicName); err != nil {
			return err
		}
	}

	dispatcher := workflow.NewOutboxDispatcher(db, logger, config.NewBreakerPublisher(publisher, config.DefaultBreakerSettings(), logger))
	logger.WithFields(logrus.Fields{
		"field":         "OutboxDispatcher",
		"dispatcher_id": dispatcher.DispatcherID,
		"topic":         publisher.TopicName,
	}).Info("outbox dispatcher started")

	dispatcher.Run(sigCtx)

	logger.WithFields(logrus.Fields{
		"field":         "OutboxDispatcher",
		"dispatcher_id": dispatcher.DispatcherID,
	}).Info("outbox dispatcher stopped")
	return nil
}
