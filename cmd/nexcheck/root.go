package main

import (
	"io"

	"github.com/spf13/cobra"
)

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out}

	root := &cobra.Command{
		Use:   SERVICENAME,
		Short: "Appliance health checks",
		Long: `nexcheck verifies a storage appliance: network reachability, name
resolution, cluster failover, pool health, disk throughput and kernel
tunables. Every run prints a JSON report and exits non-zero when a check
fails.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.SetOut(out)

	f := root.PersistentFlags()
	f.StringVarP(&a.configPath, "config", "c", CONFIGFILENAME, "Path to the YAML configuration file")
	f.StringVar(&a.configStore, "config-store", "file", "Configuration store: file or mongo")
	f.StringVar(&a.mongoURI, "mongo-uri", "mongodb://localhost:27017", "MongoDB URI for the mongo config store")
	f.StringVar(&a.mongoDB, "mongo-db", SERVICENAME, "MongoDB database for the mongo config store")
	f.StringVar(&a.mongoCollection, "mongo-collection", "config", "MongoDB collection for the mongo config store")
	f.BoolVar(&a.debug, "debug", false, "Enable debug logging")
	f.StringVar(&a.logFormat, "log-format", "json", "Log format: json or console")
	f.StringVar(&a.reportPath, "report", "", "Also write the report to this JSON file")
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(
		newPingCmd(a),
		newGatewayCmd(a),
		newDNSCmd(a),
		newDomainCmd(a),
		newLookupCmd(a),
		newCommandCmd(a),
		newRSFMoveCmd(a),
		newZpoolCmd(a),
		newPostCmd(a),
		newDiskPerfCmd(a),
		newMetadataCmd(a),
		newAllCmd(a),
		newReportsCmd(a),
	)
	return root
}
