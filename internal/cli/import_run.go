package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/autolot/dealer-admin/internal/config"
	"github.com/autolot/dealer-admin/internal/events"
	"github.com/autolot/dealer-admin/internal/importer"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type ImportRunOptions struct {
	GlobalOptions

	FilePath     string
	Yes          bool
	PollInterval time.Duration
	PollJitter   time.Duration
}

func DefaultImportRunOptions() *ImportRunOptions {
	o := &ImportRunOptions{
		GlobalOptions: DefaultGlobalOptions(),
		PollInterval:  importer.DefaultPollInterval,
	}
	if cfg, err := config.New(); err == nil {
		o.PollInterval = cfg.Client.PollInterval
		o.PollJitter = cfg.Client.PollJitter
	}
	return o
}

func NewCmdImportRun() *cobra.Command {
	o := DefaultImportRunOptions()
	cmd := &cobra.Command{
		Use:          "run --file FILE",
		Short:        "Upload a workbook, review the preview and import the valid rows.",
		Example:      "import run --file cars.xlsx\nimport run --file cars.xlsx --yes",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Complete(cmd, args); err != nil {
				return err
			}
			if err := o.Validate(args); err != nil {
				return err
			}
			return o.Run(cmd.Context(), args)
		},
	}
	o.Bind(cmd.Flags())

	if err := markRequired(cmd, "file"); err != nil {
		panic(err)
	}

	return cmd
}

func (o *ImportRunOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)

	fs.StringVarP(&o.FilePath, "file", "f", o.FilePath, "Path to the Excel workbook (.xlsx)")
	fs.BoolVarP(&o.Yes, "yes", "y", o.Yes, "Import without asking for confirmation")
	fs.DurationVar(&o.PollInterval, "poll-interval", o.PollInterval, "Delay between two import status checks")
	fs.DurationVar(&o.PollJitter, "poll-jitter", o.PollJitter, "Random deviation added to the poll interval")
}

func (o *ImportRunOptions) Complete(cmd *cobra.Command, args []string) error {
	return o.GlobalOptions.Complete(cmd, args)
}

func (o *ImportRunOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}
	if o.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	return validateWorkbookPath(o.FilePath)
}

func (o *ImportRunOptions) Run(ctx context.Context, args []string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := o.Client()
	if err != nil {
		return err
	}

	file, err := os.Open(o.FilePath)
	if err != nil {
		return fmt.Errorf("opening workbook: %w", err)
	}
	defer file.Close()

	producer := events.NewEventProducer(&events.StdoutWriter{})
	defer func() {
		_ = producer.Close()
	}()

	notifier := newConsoleNotifier(o.errOut)
	coordinator := importer.NewCoordinator(c, importer.Options{
		PollInterval: o.PollInterval,
		PollJitter:   o.PollJitter,
		Notifier:     notifier,
		Events:       producer,
		OnStageChange: func(from, to importer.Stage) {
			notifier.Info(fmt.Sprintf("%s -> %s", from, to))
		},
		OnRefresh: func(ctx context.Context) {
			cars, err := c.ListCars(ctx)
			if err != nil {
				fmt.Fprintf(o.errOut, "[warning] could not refresh the car list: %s\n", err)
				return
			}
			fmt.Fprintf(o.out, "Inventory now lists %d cars\n", len(cars))
		},
	})
	coordinator.Open()
	// the closing context must outlive an interrupt
	defer func() {
		_ = coordinator.Close(context.Background())
	}()

	job, err := coordinator.UploadExcel(ctx, filepath.Base(o.FilePath), file)
	if err != nil {
		return fmt.Errorf("uploading %s: %w", o.FilePath, err)
	}
	printPreview(o.out, *job)

	if job.ValidCount() == 0 {
		fmt.Fprintln(o.out, "Nothing to import")
		return nil
	}

	if !o.Yes {
		confirmed, err := o.ask(ctx, fmt.Sprintf("Import %d cars? [y/N]: ", job.ValidCount()))
		if err != nil || !confirmed {
			fmt.Fprintln(o.out, "Import cancelled")
			return nil
		}
	}

	if err := coordinator.ConfirmImport(ctx); err != nil {
		return fmt.Errorf("confirming import %s: %w", job.JobID, err)
	}

	final, err := coordinator.Wait(ctx)
	if err != nil {
		fmt.Fprintf(o.out, "Stopped waiting; job %s keeps running on the server\n", job.JobID)
		return nil
	}

	if final.Stage != importer.StageComplete {
		return fmt.Errorf("import %s did not complete", job.JobID)
	}
	printRowErrors(o.out, final.Errors)
	fmt.Fprintf(o.out, "Job %s finished with status %s\n", final.JobID, final.Status)
	return nil
}

// ask reads a yes/no answer. An interrupt counts as no.
func (o *ImportRunOptions) ask(ctx context.Context, prompt string) (bool, error) {
	fmt.Fprint(o.out, prompt)

	answer := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(o.in).ReadString('\n')
		answer <- line
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(o.out)
		return false, ctx.Err()
	case line := <-answer:
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		default:
			return false, nil
		}
	}
}
