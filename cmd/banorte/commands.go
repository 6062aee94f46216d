package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cipher241/Smart-Cities-Banorte/internal/analysis"
	"github.com/cipher241/Smart-Cities-Banorte/internal/api"
	"github.com/cipher241/Smart-Cities-Banorte/internal/extractor"
	"github.com/cipher241/Smart-Cities-Banorte/internal/genai"
	"github.com/cipher241/Smart-Cities-Banorte/internal/hermes"
	"github.com/cipher241/Smart-Cities-Banorte/internal/monitor"
	"github.com/cipher241/Smart-Cities-Banorte/internal/processor"
	"github.com/cipher241/Smart-Cities-Banorte/internal/queue"
	"github.com/cipher241/Smart-Cities-Banorte/internal/storage"
	"github.com/cipher241/Smart-Cities-Banorte/internal/training"
)

func (a *app) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the document analysis API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			llm, err := genai.New(ctx, a.cfg, a.logger)
			if err != nil {
				return codeError(3, "generation client: %s", err)
			}
			defer a.closeLLM(llm)
			ledger, err := storage.LoadLedger(a.cfg.ProcessedFile)
			if err != nil {
				a.logger.Warn("ledger unavailable, status will omit document counts", "error", err)
				ledger = nil
			}
			analyzer := analysis.New(llm, analysis.Options{
				BestPromptPath:   a.cfg.BestPromptFile,
				DatasetDictPath:  a.cfg.DatasetDictFile,
				MaxDocumentChars: a.cfg.MaxDocumentChars,
				QuoteAware:       a.cfg.QuoteAwareScan,
			}, a.logger)
			srv := api.NewServer(api.Options{
				Port:               a.cfg.Port,
				APIToken:           a.cfg.APIToken,
				UploadDir:          a.cfg.UploadDir,
				Model:              llm.Model(),
				TrainingStatePath:  a.cfg.TrainingStateFile,
				WarehouseStatePath: a.cfg.WarehouseStateFile,
			}, analyzer, ledger, a.logger)
			a.logger.Info("banorte api starting", "port", a.cfg.Port, "model", llm.Model())
			return srv.Run(ctx)
		},
	}
}

func (a *app) closeLLM(llm genai.Client) {
	if err := genai.Close(llm); err != nil {
		a.logger.Warn("generation client close failed", "error", err)
	}
}

// pipeline builds the document processor together with the resources it
// holds open. The returned cleanup releases them.
func (a *app) pipeline(ctx context.Context, dryRun bool) (*processor.Processor, func(), error) {
	llm, err := genai.New(ctx, a.cfg, a.logger)
	if err != nil {
		return nil, nil, codeError(3, "generation client: %s", err)
	}
	cleanups := []func(){func() { a.closeLLM(llm) }}
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	ledger, err := storage.LoadLedger(a.cfg.ProcessedFile)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("load ledger: %w", err)
	}

	var warehouse processor.Warehouse
	if a.cfg.UploadToWarehouse && !dryRun {
		st, err := a.openStore(ctx)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("warehouse: %w", err)
		}
		cleanups = append(cleanups, st.Close)
		warehouse = st
	}

	events, client := a.openEvents(ctx)
	if client != nil {
		cleanups = append(cleanups, client.Close)
	}

	ext := extractor.New(llm, extractor.Options{
		RepairMalformed:  a.cfg.RepairMalformed,
		QuoteAware:       a.cfg.QuoteAwareScan,
		MaxDocumentChars: a.cfg.MaxDocumentChars,
	}, a.logger)

	proc := processor.New(
		ledger,
		storage.NewRecords(a.cfg.OutputJSON, a.cfg.OutputCSV),
		ext,
		warehouse,
		events,
		processor.Options{
			DebugDir:          a.cfg.DebugDir,
			UploadToWarehouse: warehouse != nil,
			DryRun:            dryRun,
		},
		a.logger,
	)
	return proc, cleanup, nil
}

func (a *app) processCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "process [dir]",
		Short: "Extract a project record from every document in a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := a.cfg.DocsDir
			if len(args) == 1 {
				dir = args[0]
			}
			proc, cleanup, err := a.pipeline(cmd.Context(), dryRun || a.cfg.DryRun)
			if err != nil {
				return err
			}
			defer cleanup()

			sum, err := proc.ProcessDir(cmd.Context(), dir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "processed=%d skipped=%d failed=%d errors=%d\n",
				sum.Processed, sum.Skipped, sum.Failed, sum.Errors)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Do not append records or upload to the warehouse")
	return cmd
}

func (a *app) monitorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Copy new documents from the sample folder and process them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var dispatcher monitor.Dispatcher
			if a.cfg.RedisURL != "" {
				enq, err := queue.NewEnqueuer(a.cfg.RedisURL, a.logger)
				if err != nil {
					return fmt.Errorf("queue: %w", err)
				}
				defer enq.Close()
				dispatcher = enq
				a.logger.Info("dispatching documents to queue", "queue", queue.QueueName)
			} else {
				proc, cleanup, err := a.pipeline(ctx, a.cfg.DryRun)
				if err != nil {
					return err
				}
				defer cleanup()
				dispatcher = monitor.DispatchFunc(func(ctx context.Context, path string) error {
					_, err := proc.Process(ctx, path)
					return err
				})
			}

			w := monitor.NewDocumentWatcher(a.cfg.SampleDir, a.cfg.DocsDir,
				storage.NewManifest(a.cfg.ManifestFile), dispatcher, a.logger)
			a.logger.Info("document monitor starting", "sample_dir", a.cfg.SampleDir, "interval", a.cfg.MonitorInterval)
			return w.Run(ctx, a.cfg.MonitorInterval)
		},
	}
}

// warehouseMonitor builds the monitor used by the warehouse and train
// commands. The trigger fans out to the flag file and, when connected, the
// event bus.
func (a *app) warehouseMonitor(ctx context.Context, events hermes.Publisher) (*monitor.WarehouseMonitor, func(), error) {
	st, err := a.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	trigger := monitor.Triggers{
		monitor.FileTrigger{Path: a.cfg.TriggerFile},
		monitor.EventTrigger{Publisher: events},
	}
	m := monitor.NewWarehouseMonitor(st, trigger, monitor.WarehouseOptions{
		StatePath:     a.cfg.WarehouseStateFile,
		VectorsPath:   a.cfg.DatasetFile,
		DictPath:      a.cfg.DatasetDictFile,
		MinNewRecords: int64(a.cfg.MinRetrainRecords),
	}, a.logger)
	return m, st.Close, nil
}

func (a *app) warehouseCmd() *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "warehouse",
		Short: "Watch the projects table and refresh the training dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			events, client := a.openEvents(ctx)
			if client != nil {
				defer client.Close()
			}
			m, closeStore, err := a.warehouseMonitor(ctx, events)
			if err != nil {
				return fmt.Errorf("warehouse: %w", err)
			}
			defer closeStore()

			if once {
				n, err := m.ExportOnce(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "exported %d records\n", n)
				return nil
			}
			a.logger.Info("warehouse monitor starting", "interval", a.cfg.WarehouseInterval)
			m.Run(ctx, a.cfg.WarehouseInterval)
			return nil
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "Export the dataset once and exit")
	return cmd
}

func (a *app) trainCmd() *cobra.Command {
	var continuous bool
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Iteratively improve the analysis prompt against the dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			llm, err := genai.New(ctx, a.cfg, a.logger)
			if err != nil {
				return codeError(3, "generation client: %s", err)
			}
			defer a.closeLLM(llm)
			events, client := a.openEvents(ctx)
			if client != nil {
				defer client.Close()
			}

			var exporter training.Exporter
			if a.cfg.DatabaseURL != "" {
				m, closeStore, err := a.warehouseMonitor(ctx, events)
				if err != nil {
					a.logger.Warn("warehouse unavailable, training on existing dataset", "error", err)
				} else {
					defer closeStore()
					exporter = m
				}
			}

			t := training.New(llm, exporter, events, training.Options{
				IterationsDir:  a.cfg.IterationsDir,
				StatePath:      a.cfg.TrainingStateFile,
				BestPromptPath: a.cfg.BestPromptFile,
				DatasetPath:    a.cfg.DatasetFile,
				MaxIterations:  a.cfg.MaxIterations,
				MaxPromptChars: a.cfg.MaxPromptChars,
				Interval:       a.cfg.TrainingInterval,
			}, a.logger)

			if !continuous {
				return t.Train(ctx, training.InitialPrompt)
			}

			chans := []<-chan hermes.RetrainRequested{
				monitor.FileTrigger{Path: a.cfg.TriggerFile}.Watch(ctx, 10*time.Second, a.logger),
			}
			if client != nil {
				sub, err := monitor.SubscribeRetrains(client, a.logger)
				if err != nil {
					a.logger.Warn("retrain subscription failed", "error", err)
				} else {
					chans = append(chans, sub)
				}
			}
			a.logger.Info("continuous training started", "trigger_file", a.cfg.TriggerFile)
			return t.RunContinuous(ctx, training.InitialPrompt, training.Merge(ctx, chans...))
		},
	}
	cmd.Flags().BoolVar(&continuous, "continuous", false, "Keep running and retrain on every trigger (defaults to CONTINUOUS_MODE)")
	cmd.PreRun = func(cmd *cobra.Command, args []string) {
		if !cmd.Flags().Changed("continuous") {
			continuous = a.cfg.ContinuousMode
		}
	}
	return cmd
}

func (a *app) workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Process documents from the Redis queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.RedisURL == "" {
				return codeError(3, "REDIS_URL is required for the worker")
			}
			ctx := cmd.Context()
			proc, cleanup, err := a.pipeline(ctx, a.cfg.DryRun)
			if err != nil {
				return err
			}
			defer cleanup()

			c, err := queue.NewConsumer(a.cfg.RedisURL, a.cfg.WorkerConcurrency, proc, a.logger)
			if err != nil {
				return fmt.Errorf("queue: %w", err)
			}
			a.logger.Info("worker starting", "queue", queue.QueueName, "concurrency", a.cfg.WorkerConcurrency)
			return c.Run(ctx)
		},
	}
}
