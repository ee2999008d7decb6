package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/jun/gophnote/internal/app"
)

var Version = "dev"

func main() {
	var configPath string
	var application *app.App

	rootCmd := &cobra.Command{
		Use:           "gophnote",
		Short:         "Work with notes from the command line",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.ConfigFromEnv()
			if configPath != "" {
				var err error
				if cfg, err = app.LoadFile(configPath, cfg); err != nil {
					return err
				}
			}
			a, err := app.NewApp(cmd.Context(), cfg, promptCode)
			if err != nil {
				return err
			}
			application = a
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	// glog registers its flags on the standard flag set.
	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)

	env := func() *app.App { return application }
	rootCmd.AddCommand(loginCmd(env))
	rootCmd.AddCommand(logoutCmd(env))
	rootCmd.AddCommand(notebooksCmd(env))
	rootCmd.AddCommand(uploadCmd(env))
	rootCmd.AddCommand(findCmd(env))
	rootCmd.AddCommand(downloadCmd(env))
	rootCmd.AddCommand(shareCmd(env))
	rootCmd.AddCommand(deleteCmd(env))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	glog.Flush()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// promptCode asks the user to authorize in a browser and paste the code.
func promptCode(ctx context.Context, authURL string) (string, error) {
	fmt.Fprintf(os.Stderr, "Open this URL to authorize gophnote:\n\n  %s\n\nPaste the code: ", authURL)
	lines := make(chan string, 1)
	errs := make(chan error, 1)
	go func() {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			errs <- err
			return
		}
		lines <- strings.TrimSpace(line)
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case err := <-errs:
		return "", err
	case line := <-lines:
		return line, nil
	}
}
