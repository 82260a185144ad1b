package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	roomsCmd := &cobra.Command{Use: "rooms", Short: "Room operations"}

	// list
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List rooms you belong to",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client().R().Get("/api/rooms")
			return printResponse(resp, err)
		},
	}
	roomsCmd.AddCommand(listCmd)

	// create
	createCmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a room (you become its first member)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client().R().
				SetBody(map[string]string{"name": args[0]}).
				Post("/api/rooms")
			return printResponse(resp, err)
		},
	}
	roomsCmd.AddCommand(createCmd)

	// invite
	var inviteUser string
	inviteCmd := &cobra.Command{
		Use:   "invite ROOM",
		Short: "Invite a user to a room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if inviteUser == "" {
				return fmt.Errorf("--username required")
			}
			resp, err := client().R().
				SetBody(map[string]string{"username": inviteUser}).
				Post(fmt.Sprintf("/api/rooms/%s/invite", args[0]))
			return printResponse(resp, err)
		},
	}
	inviteCmd.Flags().StringVarP(&inviteUser, "username", "u", "", "Username to invite (required)")
	_ = inviteCmd.MarkFlagRequired("username")
	roomsCmd.AddCommand(inviteCmd)

	rootCmd.AddCommand(roomsCmd)
}
