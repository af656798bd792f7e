package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/codefionn/bookshelf/internal/command"
	"github.com/codefionn/bookshelf/internal/socketclient"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var clientAddr string

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Interactive line client for a running server",
	Long: `Connect to a bookshelf server and send each input line as one command.
Replies are printed as they arrive. 'help' lists the commands.`,
	Args: cobra.NoArgs,
	RunE: runClient,
}

func init() {
	rootCmd.AddCommand(clientCmd)
	clientCmd.Flags().StringVar(&clientAddr, "addr", "", "Server address host:port (default from config)")
}

func runClient(cmd *cobra.Command, _ []string) error {
	addr := clientAddr
	if addr == "" {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		host := cfg.Host
		if host == "" {
			host = "localhost"
		}
		addr = fmt.Sprintf("%s:%d", host, cfg.Port)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	client := socketclient.NewClient(addr)
	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Close()

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	return repl(ctx, client, cmd.InOrStdin(), cmd.OutOrStdout(), interactive)
}

// repl sends each non-blank input line and prints the reply.
func repl(ctx context.Context, client *socketclient.Client, in io.Reader, out io.Writer, interactive bool) error {
	prompt := color.CyanString("bookshelf> ")
	if interactive {
		fmt.Fprintln(out, color.GreenString("Connected.")+" Type 'help' for commands, Ctrl-D to quit.")
	}

	scanner := bufio.NewScanner(in)
	for {
		if interactive {
			fmt.Fprint(out, prompt)
		}
		if !scanner.Scan() {
			if interactive {
				fmt.Fprintln(out)
			}
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var reply string
		var err error
		if command.IsKill(line) {
			reply, err = client.Shutdown(ctx)
		} else {
			reply, err = client.Send(ctx, line+"\n")
		}
		if err != nil {
			if errors.Is(err, socketclient.ErrNotConnected) || errors.Is(err, io.EOF) {
				return fmt.Errorf("connection closed: %w", err)
			}
			return err
		}
		fmt.Fprintln(out, reply)

		if command.IsKill(line) {
			return nil
		}
	}
}
