package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	usersCmd := &cobra.Command{Use: "users", Short: "User operations"}

	// register
	var username, password string
	registerCmd := &cobra.Command{
		Use:   "register",
		Short: "Create a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" || password == "" {
				return fmt.Errorf("--username and --password required")
			}
			resp, err := client().R().
				SetBody(map[string]string{"username": username, "password": password}).
				Post("/api/users")
			return printResponse(resp, err)
		},
	}
	registerCmd.Flags().StringVarP(&username, "username", "u", "", "Username (required)")
	registerCmd.Flags().StringVarP(&password, "password", "p", "", "Password (required)")
	_ = registerCmd.MarkFlagRequired("username")
	_ = registerCmd.MarkFlagRequired("password")
	usersCmd.AddCommand(registerCmd)

	// login
	var loginUser, loginPass string
	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and print a session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client().R().
				SetBody(map[string]string{"username": loginUser, "password": loginPass}).
				Post("/api/login")
			return printResponse(resp, err)
		},
	}
	loginCmd.Flags().StringVarP(&loginUser, "username", "u", "", "Username (required)")
	loginCmd.Flags().StringVarP(&loginPass, "password", "p", "", "Password (required)")
	_ = loginCmd.MarkFlagRequired("username")
	_ = loginCmd.MarkFlagRequired("password")
	usersCmd.AddCommand(loginCmd)

	rootCmd.AddCommand(usersCmd)
}
