package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/benaskins/credvault/internal/credential"
)

var genericCmd = &cobra.Command{
	Use:   "generic",
	Short: "Manage generic passwords (service + account)",
}

var genericSetCmd = &cobra.Command{
	Use:   "set <service> <account> [password]",
	Short: "Store a generic password",
	Long:  "Store a generic password. If password is omitted, it is read from stdin (useful for piping).",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		opts, err := optionsFromFlags(cmd, s)
		if err != nil {
			return err
		}
		if opts.Password, err = secretArg(args, 2); err != nil {
			return err
		}
		if generic, _ := cmd.Flags().GetString("generic"); generic != "" {
			opts.Generic = []byte(generic)
		}

		id := credential.ServiceIdentity{Service: args[0], Account: args[1]}
		rec, err := credential.CreateAndStoreService(cmd.Context(), s.store, id, opts)
		if err != nil {
			return describe(err)
		}
		fmt.Printf("Stored %s\n", rec.Key())
		return nil
	},
}

var genericGetCmd = &cobra.Command{
	Use:   "get <service> <account>",
	Short: "Print a generic password",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		id := credential.ServiceIdentity{Service: args[0], Account: args[1]}
		rec, found, err := credential.LookupService(cmd.Context(), s.store, id, accessGroup(cmd, s))
		if err != nil {
			return describe(err)
		}
		if !found {
			return fmt.Errorf("no generic password for %s/%s", args[0], args[1])
		}

		if attrs, _ := cmd.Flags().GetBool("attributes"); attrs {
			return describe(printRecord(cmd.Context(), rec, true))
		}
		pw, err := rec.Password(cmd.Context())
		if err != nil {
			return describe(err)
		}
		fmt.Println(pw)
		return nil
	},
}

var genericDeleteCmd = &cobra.Command{
	Use:     "delete <service> <account>",
	Short:   "Remove a generic password",
	Aliases: []string{"rm"},
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		id := credential.ServiceIdentity{Service: args[0], Account: args[1]}
		rec, found, err := credential.LookupService(cmd.Context(), s.store, id, accessGroup(cmd, s))
		if err != nil {
			return describe(err)
		}
		if !found {
			return fmt.Errorf("no generic password for %s/%s", args[0], args[1])
		}
		if err := rec.Delete(cmd.Context()); err != nil {
			return describe(err)
		}
		fmt.Printf("Deleted %s\n", id.Service+"/"+id.Account)
		return nil
	},
}

func init() {
	addAttributeFlags(genericSetCmd)
	genericSetCmd.Flags().String("generic", "", "application-defined generic attribute")
	for _, c := range []*cobra.Command{genericSetCmd, genericGetCmd, genericDeleteCmd} {
		addGroupFlag(c)
	}
	genericGetCmd.Flags().Bool("attributes", false, "print all attributes, not just the password")

	genericCmd.AddCommand(genericSetCmd)
	genericCmd.AddCommand(genericGetCmd)
	genericCmd.AddCommand(genericDeleteCmd)
	rootCmd.AddCommand(genericCmd)
}
