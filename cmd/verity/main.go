package main

import (
	"fmt"
	"os"
	"runtime"

	gojson "github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/verityhq/verity/pkg/config"
	"github.com/verityhq/verity/pkg/datacontext"
	"github.com/verityhq/verity/pkg/datasource"
	"github.com/verityhq/verity/pkg/logger"
	"github.com/verityhq/verity/pkg/store"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	var (
		rootDir    string
		configPath string
		logLevel   string
	)

	root := &cobra.Command{
		Use:   "verity",
		Short: "Verity - declarative data validation platform",
		Long: `Verity resolves a declarative project configuration against layered
override sources and manages the stores and datasources the validation
platform runs on.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logger.Init(logger.Config{Level: logLevel, Encoding: "console"})
		},
	}
	root.PersistentFlags().StringVar(&rootDir, "root", ".", "project root directory")
	root.PersistentFlags().StringVar(&configPath, "config", "verity.yml", "project config file, relative to the root")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Verity v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "kinds",
		Short: "List registered store backend and datasource kinds",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("Store backend kinds:")
			for _, kind := range store.DefaultRegistry().Kinds() {
				fmt.Printf("  - %s\n", kind)
			}
			fmt.Println("Datasource kinds:")
			for _, kind := range datasource.DefaultRegistry().Kinds() {
				fmt.Printf("  - %s\n", kind)
			}
		},
	})

	storesCmd := &cobra.Command{
		Use:   "stores",
		Short: "Inspect the project's configured stores",
	}
	var activeOnly bool
	storesList := &cobra.Command{
		Use:   "list",
		Short: "List configured stores with masked configs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := newContext(rootDir, configPath)
			if err != nil {
				return err
			}
			if activeOnly {
				return printJSON(ctx.ListActiveStores())
			}
			return printJSON(ctx.ListStores())
		},
	}
	storesList.Flags().BoolVar(&activeOnly, "active", false, "only stores referenced by a role pointer")
	storesCmd.AddCommand(storesList)
	root.AddCommand(storesCmd)

	datasourcesCmd := &cobra.Command{
		Use:   "datasources",
		Short: "Inspect the project's datasources",
	}
	datasourcesCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List persisted datasources with masked, substituted configs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := newContext(rootDir, configPath)
			if err != nil {
				return err
			}
			snapshots, err := ctx.ListDatasources()
			if err != nil {
				return err
			}
			return printJSON(snapshots)
		},
	})
	root.AddCommand(datasourcesCmd)

	idCmd := &cobra.Command{
		Use:   "id",
		Short: "Show the project's context identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := newContext(rootDir, configPath)
			if err != nil {
				return err
			}
			return printJSON(map[string]string{
				"context_id":  ctx.ContextID(),
				"instance_id": ctx.InstanceID(),
			})
		},
	}
	root.AddCommand(idCmd)

	if err := root.Execute(); err != nil {
		logger.Error("command failed", zap.Error(err))
		os.Exit(1)
	}
}

func newContext(rootDir, configPath string) (*datacontext.Context, error) {
	cfg, err := config.Load(resolvePath(rootDir, configPath))
	if err != nil {
		return nil, err
	}
	return datacontext.New(cfg, datacontext.Options{RootDirectory: rootDir})
}

func resolvePath(rootDir, path string) string {
	if len(path) > 0 && path[0] == '/' {
		return path
	}
	return rootDir + "/" + path
}

func printJSON(v interface{}) error {
	out, err := gojson.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
