package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/benaskins/credvault/internal/credential"
	"github.com/benaskins/credvault/internal/keychain"
)

var rotateCmd = &cobra.Command{
	Use:   "rotate <generic|internet> <service-or-server> <account>",
	Short: "Replace a stored password with the output of a command",
	Long: `Run --command through /bin/sh and store its stdout as the new password.
The command must print only the new value. The entry must already exist.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		command, _ := cmd.Flags().GetString("command")
		if command == "" {
			return fmt.Errorf("--command is required")
		}
		class, err := keychain.ParseClass(args[0])
		if err != nil {
			return err
		}

		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		var rec record
		switch class {
		case keychain.ClassInternet:
			r, err := lookupNetwork(cmd, s, args[1:])
			if err != nil {
				return err
			}
			rec = r
		default:
			id := credential.ServiceIdentity{Service: args[1], Account: args[2]}
			r, found, err := credential.LookupService(cmd.Context(), s.store, id, accessGroup(cmd, s))
			if err != nil {
				return describe(err)
			}
			if !found {
				return fmt.Errorf("no generic password for %s/%s", args[1], args[2])
			}
			rec = r
		}

		err = credential.Rotate(cmd.Context(), rec, command)
		s.store.LogRotation(rec.Key(), command, err)
		if err != nil {
			return describe(err)
		}
		fmt.Printf("Rotated %s\n", rec.Key())
		return nil
	},
}

func init() {
	rotateCmd.Flags().String("command", "", "shell command that prints the new password")
	addNetworkFlags(rotateCmd)
	addGroupFlag(rotateCmd)
	rootCmd.AddCommand(rotateCmd)
}
