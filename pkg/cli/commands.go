package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson"
	"gopkg.in/yaml.v3"

	"github.com/nimburion/repokit/pkg/config"
	"github.com/nimburion/repokit/pkg/health"
	"github.com/nimburion/repokit/pkg/observability/logger"
	"github.com/nimburion/repokit/pkg/observability/metrics"
	"github.com/nimburion/repokit/pkg/query"
	"github.com/nimburion/repokit/pkg/repository"
	"github.com/nimburion/repokit/pkg/repository/document"
	"github.com/nimburion/repokit/pkg/result"
	"github.com/nimburion/repokit/pkg/store"
	mongostore "github.com/nimburion/repokit/pkg/store/mongodb"
	"github.com/nimburion/repokit/pkg/version"
)

func newVersionCommand(name string) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeVersion(cmd.OutOrStdout(), version.Current(name), output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text, json or yaml")
	return cmd
}

func writeVersion(w io.Writer, info version.Info, format string) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		fmt.Fprintf(w, "Service:    %s\n", info.Service)
		fmt.Fprintf(w, "Version:    %s\n", info.Version)
		fmt.Fprintf(w, "Commit:     %s\n", info.Commit)
		fmt.Fprintf(w, "Build Time: %s\n", info.BuildTime)
		if info.GoVersion != "" {
			fmt.Fprintf(w, "Go:         %s\n", info.GoVersion)
		}
		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	case "yaml":
		data, err := yaml.Marshal(info)
		if err != nil {
			return fmt.Errorf("marshal version: %w", err)
		}
		_, err = w.Write(data)
		return err
	default:
		return fmt.Errorf("unsupported output format %q (supported: text, json, yaml)", format)
	}
}

func newConfigCommand(load loadFunc) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
	}
	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, secrets, _, err := load()
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), cfg.Redacted(secrets))
			return err
		},
	})
	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, _, _, err := load(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration is valid")
			return nil
		},
	})
	return configCmd
}

func newPingCommand(load loadFunc) *cobra.Command {
	var listCollections bool
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check connectivity to the configured store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, log, err := load()
			if err != nil {
				return err
			}
			adapter, err := store.NewStorageAdapter(cfg.Database, log)
			if err != nil {
				return err
			}
			defer adapter.Close()

			checks, err := storeChecks(cfg.Database, adapter, listCollections)
			if err != nil {
				return err
			}
			return ping(cmd.Context(), cmd.OutOrStdout(), checks)
		},
	}
	cmd.Flags().BoolVar(&listCollections, "collections", false, "list collections (mongodb only)")
	return cmd
}

// storeChecks registers the checks ping runs against adapter.
func storeChecks(cfg config.DatabaseConfig, adapter store.Adapter, listCollections bool) (*health.Registry, error) {
	reg := health.NewRegistry()
	reg.Register(health.NewAdapterChecker(cfg.Type, adapter, cfg.QueryTimeout))
	if listCollections {
		lister, ok := adapter.(health.CollectionLister)
		if !ok {
			return nil, fmt.Errorf("--collections is not supported by %s", cfg.Type)
		}
		reg.Register(health.NewCollectionsChecker("collections", lister, cfg.QueryTimeout))
	}
	return reg, nil
}

func ping(ctx context.Context, w io.Writer, checks *health.Registry) error {
	agg := checks.Check(ctx)
	for _, c := range agg.Checks {
		fmt.Fprintf(w, "%s: %s (%s)\n", c.Name, c.Status, c.Duration.Round(time.Millisecond))
		if c.Error != "" {
			fmt.Fprintf(w, "  error: %s\n", c.Error)
		}
		if names, ok := c.Metadata["collections"].([]string); ok {
			for _, name := range names {
				fmt.Fprintf(w, "  %s\n", name)
			}
		}
	}
	if agg.Status == health.StatusUnhealthy {
		return fmt.Errorf("store is %s", agg.Status)
	}
	return nil
}

// collectionFlags select records of one collection.
type collectionFlags struct {
	collection string
	search     []string
	size       int
}

func (f *collectionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.collection, "collection", "", "collection name")
	cmd.Flags().StringArrayVarP(&f.search, "search", "s", nil, "criterion as field=value, repeatable (value syntax: a,b,!c)")
	cmd.Flags().IntVar(&f.size, "size", 0, "page size (defaults to repository.default_page_size)")
	_ = cmd.MarkFlagRequired("collection")
}

func (f *collectionFlags) pageSize(cfg *config.Config) int {
	if f.size != 0 {
		return f.size
	}
	return cfg.Repository.DefaultPageSize
}

func newPagesCommand(load loadFunc) *cobra.Command {
	flags := &collectionFlags{}
	cmd := &cobra.Command{
		Use:   "pages",
		Short: "Count the pages of live records matching the criteria",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := parseSearch(flags.search)
			if err != nil {
				return err
			}
			cfg, _, log, err := load()
			if err != nil {
				return err
			}
			repo, reg, closeFn, err := openCollection(cfg, log, flags.collection)
			if err != nil {
				return err
			}
			defer closeFn()
			defer reportMetrics(log, reg)
			return countPages(cmd.Context(), cmd.OutOrStdout(), repo, spec, flags.pageSize(cfg))
		},
	}
	flags.register(cmd)
	return cmd
}

func newPageCommand(load loadFunc) *cobra.Command {
	flags := &collectionFlags{}
	var index int
	var sortField string
	cmd := &cobra.Command{
		Use:   "page",
		Short: "Print one page of live records as extended JSON, one per line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := parseSearch(flags.search)
			if err != nil {
				return err
			}
			cfg, _, log, err := load()
			if err != nil {
				return err
			}
			repo, reg, closeFn, err := openCollection(cfg, log, flags.collection)
			if err != nil {
				return err
			}
			defer closeFn()
			defer reportMetrics(log, reg)
			page := query.PageRequest{Size: flags.pageSize(cfg), Index: index, Sort: sortField}
			return printPage(cmd.Context(), cmd.OutOrStdout(), repo, spec, page)
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVar(&index, "index", 1, "1-based page index")
	cmd.Flags().StringVar(&sortField, "sort", "", "sort field, prefix with ! for descending")
	return cmd
}

// parseSearch reads field=value pairs. A field may appear once.
func parseSearch(pairs []string) (query.SearchSpec, error) {
	spec := query.SearchSpec{}
	for _, pair := range pairs {
		field, value, ok := strings.Cut(pair, "=")
		field = strings.TrimSpace(field)
		if !ok || field == "" {
			return nil, fmt.Errorf("invalid --search %q: expected field=value", pair)
		}
		if _, dup := spec[field]; dup {
			return nil, fmt.Errorf("invalid --search %q: field %s given twice", pair, field)
		}
		spec[field] = value
	}
	return spec, nil
}

// pageCounter is the part of a repository the pages command needs.
type pageCounter interface {
	Count(ctx context.Context, search query.SearchSpec, pageSize int) (int64, error)
}

func countPages(ctx context.Context, w io.Writer, repo pageCounter, spec query.SearchSpec, size int) error {
	pages, err := repo.Count(ctx, spec, size)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, pages)
	return nil
}

// pager is the part of a repository the page command needs.
type pager interface {
	GetPaging(ctx context.Context, search query.SearchSpec, page query.PageRequest) result.Result[[]*Record]
}

func printPage(ctx context.Context, w io.Writer, repo pager, spec query.SearchSpec, page query.PageRequest) error {
	res := repo.GetPaging(ctx, spec, page)
	records, ok := res.Get()
	if !ok {
		return res.Error()
	}
	for _, r := range records {
		line, err := bson.MarshalExtJSON(r.Document(), false, false)
		if err != nil {
			return fmt.Errorf("encode %s: %w", r.ID, err)
		}
		fmt.Fprintln(w, string(line))
	}
	return nil
}

// openCollection connects to the configured document store. The registry is
// nil unless observability.metrics_enabled is set.
func openCollection(cfg *config.Config, log logger.Logger, collection string) (*document.Repository[Record, *Record], *metrics.Registry, func(), error) {
	if cfg.Database.Type != config.DatabaseTypeMongoDB {
		return nil, nil, nil, fmt.Errorf("collection commands require database.type %s, got %q", config.DatabaseTypeMongoDB, cfg.Database.Type)
	}
	mongoCfg := store.MongoDBConfig(cfg.Database)
	mongoCfg.AppName = cfg.Service.Name
	adapter, err := mongostore.NewAdapter(mongoCfg, log)
	if err != nil {
		return nil, nil, nil, err
	}
	closeFn := func() {
		if err := adapter.Close(); err != nil {
			log.Warn("failed to close mongodb adapter", "error", err)
		}
	}

	exec, err := document.NewMongoDBExecutor(adapter)
	if err != nil {
		closeFn()
		return nil, nil, nil, err
	}
	opts := []repository.Option{repository.WithLogger(log)}
	var reg *metrics.Registry
	if cfg.Observability.MetricsEnabled {
		reg = metrics.NewRegistry()
		m, err := metrics.NewRepositoryMetrics(reg)
		if err != nil {
			closeFn()
			return nil, nil, nil, err
		}
		opts = append(opts, repository.WithMetrics(m))
	}
	repo, err := document.NewRepository[Record](exec, collection, opts...)
	if err != nil {
		closeFn()
		return nil, nil, nil, err
	}
	return repo, reg, closeFn, nil
}

// reportMetrics logs the operation counters gathered in reg.
func reportMetrics(log logger.Logger, reg *metrics.Registry) {
	if reg == nil {
		return
	}
	samples, err := reg.Counters("repository_operations_total")
	if err != nil {
		log.Warn("failed to gather metrics", "error", err)
		return
	}
	for _, s := range samples {
		log.Info("repository operations",
			"count", s.Value,
			"backend", s.Labels["backend"],
			"collection", s.Labels["collection"],
			"operation", s.Labels["operation"],
			"outcome", s.Labels["outcome"],
		)
	}
}
