// Command drilldown serves the example billing API over the drill-down query
// layer. Configuration is read from CLI flags, environment variables prefixed
// with DRILLDOWN, or a config.yaml in the working directory, in that order.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	// SQL drivers for the postgres and mysql datastore engines.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/relux-works/drilldown"
	"github.com/relux-works/drilldown/example"
	"github.com/relux-works/drilldown/httpapi"
	"github.com/relux-works/drilldown/logger"
	"github.com/relux-works/drilldown/memstore"
	"github.com/relux-works/drilldown/sqlstore"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.SetEnvPrefix("DRILLDOWN")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()

	root := &cobra.Command{
		Use:   "drilldown",
		Short: "A drill-down query API layer over relational entity graphs",
	}
	root.AddCommand(newRunCommand())
	return root
}

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Serve the example invoice API",
		RunE:  run,
	}
	flags := cmd.Flags()
	flags.String("addr", ":8080", "listen address")
	flags.String("datastore-engine", "memory", `datastore engine: "memory", "postgres", or "mysql"`)
	flags.String("datastore-uri", "", "datastore connection URI (unused for memory)")
	flags.String("log-format", "text", `log format: "text" or "json"`)
	flags.String("log-level", "info", "log level: debug, info, warn, error, none")
	flags.Bool("debug", false, "report storage round trips in the X-Query-Count header")
	_ = viper.BindPFlags(flags)
	return cmd
}

func run(cmd *cobra.Command, _ []string) error {
	log, err := logger.NewLogger(viper.GetString("log-format"), viper.GetString("log-level"))
	if err != nil {
		return err
	}

	schema := example.NewSchema()
	base, err := baseQuery(schema, log)
	if err != nil {
		return err
	}

	endpoint := drilldown.NewEndpoint(schema.Invoice, base,
		drilldown.WithDrilldowns(schema.Drilldowns()...),
		drilldown.WithLogger(log),
	)

	opts := []httpapi.Option{httpapi.WithLogger(log)}
	if viper.GetBool("debug") {
		opts = append(opts, httpapi.WithDebug())
	}

	mux := http.NewServeMux()
	mux.Handle("/invoices", httpapi.NewHandler(endpoint, opts...))

	addr := viper.GetString("addr")
	log.Info("serving drill-down API",
		zap.String("addr", addr),
		zap.String("engine", viper.GetString("datastore-engine")),
	)
	return http.ListenAndServe(addr, mux)
}

// baseQuery wires the configured datastore engine to the invoice entity.
func baseQuery(schema *example.Schema, log logger.Logger) (drilldown.BaseQueryFunc, error) {
	engine := viper.GetString("datastore-engine")
	switch engine {
	case "memory", "":
		store := memstore.New()
		example.Seed(store)
		return func(ctx context.Context) drilldown.QueryBuilder {
			return store.Query(schema.Invoice)
		}, nil
	case "postgres", "mysql":
		driver := "pgx"
		if engine == "mysql" {
			driver = "mysql"
		}
		ds, err := sqlstore.New(driver, viper.GetString("datastore-uri"), example.Tables(),
			sqlstore.WithLogger(log),
			sqlstore.WithMaxOpenConns(30),
		)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context) drilldown.QueryBuilder {
			return ds.Query(schema.Invoice)
		}, nil
	default:
		return nil, fmt.Errorf("unknown datastore engine %q", engine)
	}
}
