package main

import (
	"errors"
	"fmt"

	"github.com/drewmudry/chatshorts-api/auth"
	"github.com/spf13/cobra"
)

var (
	tokenUser  uint
	tokenEmail string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an API bearer token for a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.JWTSecret == "" {
			return errors.New("JWT_SECRET is not set")
		}
		token, err := auth.GenerateJWT(cfg.JWTSecret, tokenUser, tokenEmail)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().UintVar(&tokenUser, "user", 0, "User ID")
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "User email")
	tokenCmd.MarkFlagRequired("user")
}
