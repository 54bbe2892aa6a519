package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"gitevents/internal"
	"gitevents/pkg/worker"

	"github.com/spf13/cobra"
)

var (
	tailTopics      []string
	tailConcurrency int
)

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Follow recorded events published to the configured broker",
	Long: `tail subscribes to the topics emitted by the configured rules (or the
topics given with --topic) and prints each recorded event message.`,
	Args: cobra.NoArgs,
	RunE: runTail,
}

func init() {
	tailCmd.Flags().StringSliceVar(&tailTopics, "topic", nil, "topic to follow (repeatable); defaults to every rule topic")
	tailCmd.Flags().IntVar(&tailConcurrency, "concurrency", 1, "messages processed in parallel")
	rootCmd.AddCommand(tailCmd)
}

func runTail(cmd *cobra.Command, _ []string) error {
	logger := internal.NewLogger("tail")
	subCfg, err := worker.LoadSubscriberConfig(configPath)
	if err != nil {
		return err
	}
	topics := tailTopics
	if len(topics) == 0 {
		topics, err = worker.LoadTopicsFromConfig(configPath)
		if err != nil {
			return err
		}
	}
	if len(topics) == 0 {
		return fmt.Errorf("no topics: pass --topic or configure rules in %s", configPath)
	}

	wk, err := worker.NewFromConfig(subCfg,
		worker.WithTopics(topics...),
		worker.WithConcurrency(tailConcurrency),
		worker.WithLogger(logger),
		worker.WithRetry(worker.Drop{}),
	)
	if err != nil {
		return err
	}
	defer wk.Close()

	out := cmd.OutOrStdout()
	printEvent := func(ctx context.Context, evt *worker.Event) error {
		_, err := fmt.Fprintf(out, "[%s] %s\n", evt.Topic, evt.Record.Message)
		return err
	}
	for _, topic := range topics {
		wk.HandleTopic(topic, printEvent)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	logger.Infow("following topics", "topics", topics)
	return wk.Run(ctx)
}
