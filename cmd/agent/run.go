package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rpw1134/web-automation-agent/internal/di"
	"github.com/rpw1134/web-automation-agent/internal/infrastructure/config"
	"github.com/rpw1134/web-automation-agent/internal/infrastructure/userinteraction"
)

func newRunCmd(load func() (*config.Config, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [task]",
		Short: "Run a single task and print its progress",
		Long:  "Run a single task. Without an argument the task is read from stdin.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := readTask(args, cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			cfg, err := load()
			if err != nil {
				return err
			}
			return runTask(cmd.Context(), cfg, task, cmd.OutOrStdout())
		},
	}
	return cmd
}

func readTask(args []string, in io.Reader, out io.Writer) (string, error) {
	if len(args) == 1 {
		if task := strings.TrimSpace(args[0]); task != "" {
			return task, nil
		}
		return "", errors.New("task must not be empty")
	}

	fmt.Fprintln(out, "Enter a task for the agent:")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read task: %w", err)
	}
	task := strings.TrimSpace(line)
	if task == "" {
		return "", errors.New("task must not be empty")
	}
	return task, nil
}

func runTask(ctx context.Context, cfg *config.Config, task string, out io.Writer) error {
	container, err := di.NewContainer(cfg, di.Options{
		Progress: userinteraction.NewConsoleProgress(out),
	})
	if err != nil {
		return err
	}
	defer func() { _ = container.Close(context.WithoutCancel(ctx)) }()

	if err := container.Start(ctx); err != nil {
		return err
	}

	container.Logger.Info("Task started", "task", task)
	res, err := container.TaskExecutor.Execute(ctx, task)
	if err != nil {
		container.Logger.Error("Task failed", "error", err)
		return err
	}
	container.Logger.Info("Task finished", "status", res.Status, "steps", res.Steps)
	return nil
}
