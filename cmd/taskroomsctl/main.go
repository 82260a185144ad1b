package main

import (
	"fmt"
	"os"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
)

var (
	apiFlag   string
	tokenFlag string
	rootCmd   = &cobra.Command{
		Use:   "taskroomsctl",
		Short: "CLI client for the taskrooms REST API",
	}
)

func main() {
	rootCmd.PersistentFlags().StringVarP(&apiFlag, "api", "a", "http://localhost:8080", "Taskrooms service base URL")
	rootCmd.PersistentFlags().StringVarP(&tokenFlag, "token", "t", "", "Session token (from 'taskroomsctl users login')")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func client() *resty.Client {
	c := resty.New().SetBaseURL(apiFlag)
	if tokenFlag != "" {
		c.SetAuthToken(tokenFlag)
	}
	return c
}

// printResponse writes the body and fails on non-2xx statuses.
func printResponse(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("%s: %s", resp.Status(), resp.Body())
	}
	if len(resp.Body()) > 0 {
		_, _ = fmt.Fprintln(os.Stdout, string(resp.Body()))
	}
	return nil
}
