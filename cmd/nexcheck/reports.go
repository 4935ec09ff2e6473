package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/andrej220/nexcheck/internal/lg"
	"github.com/andrej220/nexcheck/internal/report"
	"github.com/andrej220/nexcheck/pkg/consumer"
	"github.com/spf13/cobra"
)

var errNoKafka = errors.New("no Kafka report topic is configured (report.kafka)")

type reportSource interface {
	Read(ctx context.Context) (report.Report, error)
}

// newReportsCmd follows the Kafka report topic, typically fed by other
// appliances running nexcheck.
func newReportsCmd(a *app) *cobra.Command {
	var (
		count int
		group string
	)
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Print reports published to the Kafka report topic",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			kc := a.cfg.Report.Kafka
			if kc == nil {
				return errNoKafka
			}
			c := consumer.NewConsumer[report.Report](consumer.Config{Brokers: kc.Brokers, Topic: kc.Topic, GroupID: group})
			defer c.Close()
			return tailReports(lg.Attach(cmd.Context(), a.logger), c, a.out, count)
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 1, "Number of reports to print (0 follows until interrupted)")
	cmd.Flags().StringVar(&group, "group", "", "Kafka consumer group; without one the topic is read from the start")
	return cmd
}

func tailReports(ctx context.Context, src reportSource, out io.Writer, count int) error {
	for i := 0; count == 0 || i < count; i++ {
		rep, err := src.Read(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("failed to read report: %w", err)
		}
		status := "ok"
		if !rep.Success {
			status = "FAILED " + strings.Join(rep.Failed(), ",")
		}
		lg.FromContext(ctx).Debug("report received", lg.String("id", rep.ID))
		fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", rep.Finished.Format("2006-01-02T15:04:05Z07:00"), rep.Host, rep.ID, status)
	}
	return nil
}
