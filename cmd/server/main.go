package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/jun/gophnote/internal/logging"
	"github.com/jun/gophnote/internal/sandbox"
)

func main() {
	var (
		addr    string
		baseURL string
		users   []string
	)
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the in-memory sandbox note service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := sandbox.New(logging.Named("sandbox"))
			svc.SetBaseURL(baseURL)
			for _, name := range users {
				if name = strings.TrimSpace(name); name == "" {
					continue
				}
				a := svc.AddUser(name)
				fmt.Printf("user %s\n  note store: %s\n  token:      %s\n", name, a.NoteStoreURL(), a.Token())
			}

			fmt.Printf("Starting sandbox note service on %s\n", addr)
			return http.ListenAndServe(addr, svc)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&baseURL, "base-url", "http://localhost:8080", "externally visible base URL")
	cmd.Flags().StringSliceVar(&users, "user", []string{"sandbox"}, "users to create")

	err := cmd.Execute()
	glog.Flush()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
