package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"cashly-copilot/internal/composer"
	"cashly-copilot/internal/service"
)

func newChatCmd(app *App, f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: `Start an interactive chat with Cashly Copilot. Each line is one message.

Commands inside the chat:
  /attach <path>   queue a .pdf or .txt file for the next message
  /quit            end the session`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runChat(ctx, app, f)
		},
	}
}

func runChat(ctx context.Context, app *App, f *flags) error {
	c, err := newClient(app, f)
	if err != nil {
		return err
	}
	defer c.close()

	fmt.Fprintln(app.Out, service.Greeting)

	var queued []composer.Upload
	scanner := bufio.NewScanner(app.In)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for {
		fmt.Fprint(app.Out, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			continue
		case line == "/quit" || line == "/exit":
			return nil
		case strings.HasPrefix(line, "/attach "):
			u, err := loadUpload(strings.TrimSpace(strings.TrimPrefix(line, "/attach ")))
			if err != nil {
				fmt.Fprintf(app.Out, "Error: %v\n", err)
				continue
			}
			queued = append(queued, u)
			fmt.Fprintf(app.Out, "Attached %s\n", u.Filename)
			continue
		}

		err := c.send(ctx, line, queued)
		if errors.Is(err, service.ErrTurnInProgress) || errors.Is(err, service.ErrEmptyTurn) {
			fmt.Fprintf(app.Out, "Error: %v\n", err)
			continue
		}
		if err != nil {
			return err
		}
		queued = nil
	}

	return scanner.Err()
}
