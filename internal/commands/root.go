// Package commands provides the copilot terminal client.
package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"cashly-copilot/internal/composer"
	"cashly-copilot/internal/config"
	"cashly-copilot/internal/gateway"
	"cashly-copilot/internal/render"
	"cashly-copilot/internal/service"
	"cashly-copilot/internal/utils"
	"cashly-copilot/pkg/logger"
)

// App carries what the commands need from the outside world, so tests can
// swap the terminal and the webhook.
type App struct {
	In         io.Reader
	Out        io.Writer
	NewGateway func(cfg *config.Config, variant config.Variant) service.Gateway
}

type flags struct {
	configPath string
	variant    string
	attach     []string
	raw        bool
	width      int
	style      string
}

func defaultGateway(cfg *config.Config, variant config.Variant) service.Gateway {
	return gateway.New(variant, utils.NewHTTPClient(cfg.Webhook.Timeout))
}

// Execute runs the CLI against the process's stdio.
func Execute() error {
	return NewRootCmd(&App{In: os.Stdin, Out: os.Stdout}).Execute()
}

func NewRootCmd(app *App) *cobra.Command {
	if app.NewGateway == nil {
		app.NewGateway = defaultGateway
	}
	f := &flags{}

	root := &cobra.Command{
		Use:   "copilot [message]",
		Short: "Terminal client for Cashly Copilot",
		Long: `copilot sends a message, and optionally .pdf or .txt attachments, to the
Cashly Copilot webhook and prints the reply as Markdown.

Examples:
  copilot "How much did I spend on food?"
  copilot -a statement.pdf "Summarize this statement"
  copilot chat                         Start an interactive chat
  copilot --variant test "ping"        Use the test webhook`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && len(f.attach) == 0 {
				return cmd.Help()
			}
			text := ""
			if len(args) > 0 {
				text = args[0]
			}
			return runOnce(cmd.Context(), app, f, text)
		},
	}
	root.SetIn(app.In)
	root.SetOut(app.Out)
	root.SetErr(app.Out)

	pf := root.PersistentFlags()
	pf.StringVarP(&f.configPath, "config", "c", "", "path to a config file")
	pf.StringVar(&f.variant, "variant", "", "webhook variant ("+strings.Join(config.VariantNames(), ", ")+")")
	pf.BoolVar(&f.raw, "raw", false, "print replies without Markdown rendering")
	pf.IntVar(&f.width, "width", 80, "wrap width for rendered replies")
	pf.StringVar(&f.style, "style", "dark", "glamour style for rendered replies")
	root.Flags().StringArrayVarP(&f.attach, "attach", "a", nil, "attach a .pdf or .txt file (repeatable)")

	root.AddCommand(newChatCmd(app, f))
	return root
}

// client is one CLI session over the chat service.
type client struct {
	app       *App
	flags     *flags
	service   *service.ChatService
	sessionID string
}

func newClient(app *App, f *flags) (*client, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	if err := logger.InitWithOutput(cfg.Log.Level, cfg.Log.Format, os.Stderr); err != nil {
		return nil, err
	}

	name := cfg.Webhook.Variant
	if f.variant != "" {
		name = f.variant
	}
	variant, err := config.LookupVariant(name)
	if err != nil {
		return nil, err
	}

	svc := service.NewChatService(cfg, app.NewGateway(cfg, variant), composer.Default())
	session, err := svc.CreateSession("")
	if err != nil {
		svc.Close()
		return nil, err
	}

	return &client{app: app, flags: f, service: svc, sessionID: session.ID}, nil
}

func (c *client) close() {
	c.service.DeleteSession(c.sessionID)
	c.service.Close()
}

func (c *client) send(ctx context.Context, text string, uploads []composer.Upload) error {
	turn, err := c.service.SendTurn(ctx, c.sessionID, text, uploads)
	if err != nil {
		return err
	}
	c.print(turn.Reply.Content, turn.Result.OK())
	return nil
}

func (c *client) print(text string, markdown bool) {
	if markdown && !c.flags.raw {
		out, err := render.Markdown(text, render.Options{Width: c.flags.width, Style: c.flags.style})
		if err == nil {
			fmt.Fprint(c.app.Out, out)
			return
		}
		logger.Warnf("Markdown rendering failed: %v", err)
	}
	fmt.Fprintln(c.app.Out, text)
}

func runOnce(ctx context.Context, app *App, f *flags, text string) error {
	uploads, err := loadUploads(f.attach)
	if err != nil {
		return err
	}

	c, err := newClient(app, f)
	if err != nil {
		return err
	}
	defer c.close()

	if ctx == nil {
		ctx = context.Background()
	}
	return c.send(ctx, text, uploads)
}

func loadUploads(paths []string) ([]composer.Upload, error) {
	uploads := make([]composer.Upload, 0, len(paths))
	for _, p := range paths {
		u, err := loadUpload(p)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, u)
	}
	return uploads, nil
}

func loadUpload(path string) (composer.Upload, error) {
	name := filepath.Base(path)
	if !composer.Allowed(name) {
		return composer.Upload{}, fmt.Errorf("unsupported file type: %s (only .pdf and .txt)", name)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return composer.Upload{}, fmt.Errorf("failed to read file: %w", err)
	}
	return composer.Upload{Filename: name, Data: data}, nil
}
