package migration

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/temirov/usermigration/internal/bootstrap"
)

const (
	workerCommandUseConstant              = "worker"
	workerCommandShortDescriptionConstant = "Run queued migration jobs"
	workerCommandLongDescriptionConstant  = "worker claims queued export and import jobs and runs them, polling until interrupted. With --once it processes the jobs queued right now and exits."
	onceFlagNameConstant                  = "once"
	onceFlagUsageConstant                 = "Process the currently queued jobs and exit"
	processedTemplateConstant             = "processed %d queued job(s)\n"
)

type processedView struct {
	Processed int `yaml:"processed"`
}

func (builder *CommandBuilder) buildWorkerCommand() *cobra.Command {
	var runOnce bool
	command := &cobra.Command{
		Use:           workerCommandUseConstant,
		Short:         workerCommandShortDescriptionConstant,
		Long:          workerCommandLongDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			return builder.withEnvironment(command, func(environment *bootstrap.Environment) error {
				if !runOnce {
					signalContext, stop := signal.NotifyContext(command.Context(), os.Interrupt, syscall.SIGTERM)
					defer stop()
					return environment.Worker.Run(signalContext)
				}
				return processOnce(command, environment)
			})
		},
	}
	command.Flags().BoolVar(&runOnce, onceFlagNameConstant, false, onceFlagUsageConstant)
	return command
}

func processOnce(command *cobra.Command, environment *bootstrap.Environment) error {
	processed, processError := environment.Worker.ProcessPending(command.Context())
	if processError != nil {
		return processError
	}
	return render(command, processedView{Processed: processed}, func(writer io.Writer) error {
		_, writeError := fmt.Fprintf(writer, processedTemplateConstant, processed)
		return writeError
	})
}
