package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rafata1/storefront-orders/apperr"
	"github.com/rafata1/storefront-orders/config"
	"github.com/rafata1/storefront-orders/database"
	"github.com/rafata1/storefront-orders/kafka"
	"github.com/rafata1/storefront-orders/logging"
	"github.com/rafata1/storefront-orders/model"
	"github.com/rafata1/storefront-orders/service/inventory"
	"github.com/rafata1/storefront-orders/service/invoice"
	"github.com/rafata1/storefront-orders/service/order"
	"github.com/rafata1/storefront-orders/service/stats"
)

func main() {
	var envFile string
	rootCmd := &cobra.Command{
		Use:           "storefront-orders",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "optional .env file to load before the environment")
	rootCmd.AddCommand(
		createMigrationCommand(&envFile),
		migrateCommand(&envFile),
		placeOrderCommand(&envFile),
		changeStatusCommand(&envFile),
		relayCommand(&envFile),
		consumePaymentsCommand(&envFile),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error (%s): %v\n", apperr.KindOf(err), err)
		os.Exit(1)
	}
}

func loadConfig(envFile string) (config.Config, error) {
	if envFile == "" {
		return config.Load()
	}
	return config.Load(envFile)
}

func createMigrationCommand(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate-create [name]",
		Short: "create sql migrations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig(*envFile)
			if err != nil {
				return err
			}
			up, down, err := database.CreateMigration(conf.Database.MigrationDir, args[0], time.Now())
			if err != nil {
				return err
			}
			fmt.Println("Created SQL up script:", up)
			fmt.Println("Created SQL down script:", down)
			return nil
		},
	}
}

func migrateCommand(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate-up",
		Short: "migrate all the way up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig(*envFile)
			if err != nil {
				return err
			}
			changed, err := database.MigrateUp(conf.Database.MigrationDir, conf.Database.DSN)
			if err != nil {
				return err
			}
			if !changed {
				fmt.Println("No change in migration")
				return nil
			}
			fmt.Println("Migrated up")
			return nil
		},
	}
}

func placeOrderCommand(envFile *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "place-order",
		Short: "place an order described by a JSON file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			var placeCmd order.PlaceOrderCommand
			if err := json.Unmarshal(content, &placeCmd); err != nil {
				return fmt.Errorf("%w: %s: %w", apperr.ErrInvalidInput, file, err)
			}

			return withApp(cmd.Context(), *envFile, appOptions{}, func(ctx context.Context, a *app) error {
				placed, err := a.orders.PlaceOrder(ctx, placeCmd)
				if err != nil {
					return err
				}
				return printJSON(placed)
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "JSON file holding customer, address and lines")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func changeStatusCommand(envFile *string) *cobra.Command {
	var (
		actorID string
		role    string
		note    string
	)
	cmd := &cobra.Command{
		Use:   "change-status [order-code] [status]",
		Short: "move an order to another status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := model.ParseOrderStatus(args[1])
			if err != nil {
				return fmt.Errorf("%w: %w", apperr.ErrInvalidInput, err)
			}
			actorRole, err := model.ParseRole(role)
			if err != nil {
				return fmt.Errorf("%w: %w", apperr.ErrInvalidInput, err)
			}

			return withApp(cmd.Context(), *envFile, appOptions{}, func(ctx context.Context, a *app) error {
				changed, err := a.orders.ProcessStatusChange(ctx, order.StatusChangeCommand{
					OrderCode:    args[0],
					TargetStatus: target,
					Note:         note,
					Actor:        model.Actor{ID: actorID, Role: actorRole},
				})
				if err != nil {
					return err
				}
				return printJSON(changed)
			})
		},
	}
	cmd.Flags().StringVar(&actorID, "actor", model.SystemActor.ID, "id of the acting user")
	cmd.Flags().StringVar(&role, "role", "admin", "role of the acting user: customer, staff or admin")
	cmd.Flags().StringVar(&note, "note", "", "note stored with the history entry")
	return cmd
}

func relayCommand(envFile *string) *cobra.Command {
	var every time.Duration
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "publish pending order events to kafka",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *envFile, appOptions{producer: true}, func(ctx context.Context, a *app) error {
				for {
					n, err := a.orders.RelayMessage(ctx, a.conf.RelayBatchSize)
					if err != nil {
						return err
					}
					logging.FromContext(ctx).Info("outbox relayed", zap.Int("messages", n))
					if every == 0 {
						return nil
					}
					select {
					case <-ctx.Done():
						return nil
					case <-time.After(every):
					}
				}
			})
		},
	}
	cmd.Flags().DurationVar(&every, "every", 0, "keep relaying at this interval (0 relays one batch)")
	return cmd
}

func consumePaymentsCommand(envFile *string) *cobra.Command {
	var stopAfter time.Duration
	cmd := &cobra.Command{
		Use:   "consume-payments",
		Short: "apply payment status events to orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *envFile, appOptions{consumer: true}, func(ctx context.Context, a *app) error {
				a.orders.ConsumePaymentStatuses(ctx, stopAfter)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&stopAfter, "stop-after", 0, "stop consuming after this long (0 runs until interrupted)")
	return cmd
}

type appOptions struct {
	producer bool
	consumer bool
}

type app struct {
	conf   config.Config
	orders order.IService
}

// withApp wires config, logger, database and kafka clients for one command run and releases
// them when fn returns.
func withApp(ctx context.Context, envFile string, opts appOptions, fn func(ctx context.Context, a *app) error) error {
	conf, err := loadConfig(envFile)
	if err != nil {
		return err
	}

	logger, err := logging.New(conf.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	ctx = logging.WithLogger(ctx, logger)

	db, err := database.Connect(ctx, conf.Database.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	deps, closeKafka, err := newServiceDeps(db, conf, opts)
	if err != nil {
		return err
	}
	defer closeKafka()

	orders, err := order.NewService(deps)
	if err != nil {
		return err
	}
	return fn(ctx, &app{conf: conf, orders: orders})
}

func newServiceDeps(db *sqlx.DB, conf config.Config, opts appOptions) (order.ServiceDeps, func(), error) {
	deps := order.ServiceDeps{
		Repo:      order.NewRepo(db),
		Inventory: inventory.NewService(inventory.NewRepo(db)),
		Invoices: invoice.NewService(invoice.NewRepo(db), invoice.Options{
			TaxRate:           conf.Invoice.TaxRate,
			MaxNumberAttempts: conf.Invoice.MaxNumberAttempts,
		}),
		Stats:           stats.NewService(stats.NewRepo(db), nil),
		Builder:         order.NewBuilder(nil, nil),
		MaxCodeAttempts: conf.Order.MaxCodeAttempts,
	}

	var closers []func() error
	closeAll := func() {
		for _, c := range closers {
			_ = c()
		}
	}

	if opts.producer {
		producer, err := kafka.NewProducer(conf.KafkaHost, conf.OrderEventsTopic)
		if err != nil {
			return order.ServiceDeps{}, closeAll, fmt.Errorf("connect producer: %w", err)
		}
		deps.Producer = producer
		closers = append(closers, producer.Close)
	}
	if opts.consumer {
		consumer, err := kafka.NewConsumer(conf.KafkaHost, conf.PaymentStatusTopic)
		if err != nil {
			closeAll()
			return order.ServiceDeps{}, func() {}, fmt.Errorf("connect consumer: %w", err)
		}
		deps.PaymentConsumer = consumer
		closers = append(closers, consumer.Close)
	}
	return deps, closeAll, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
