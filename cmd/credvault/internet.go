package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/benaskins/credvault/internal/credential"
)

var internetCmd = &cobra.Command{
	Use:   "internet",
	Short: "Manage internet passwords (server + protocol + port + path + account)",
}

var internetSetCmd = &cobra.Command{
	Use:   "set <server> <account> [password]",
	Short: "Store an internet password",
	Long:  "Store an internet password. If password is omitted, it is read from stdin (useful for piping).",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		id, err := networkIdentity(cmd, args[0], args[1])
		if err != nil {
			return err
		}
		opts, err := optionsFromFlags(cmd, s)
		if err != nil {
			return err
		}
		if opts.Password, err = secretArg(args, 2); err != nil {
			return err
		}

		rec, err := credential.CreateAndStoreNetwork(cmd.Context(), s.store, id, opts)
		if err != nil {
			return describe(err)
		}
		fmt.Printf("Stored %s\n", rec.Key())
		return nil
	},
}

var internetGetCmd = &cobra.Command{
	Use:   "get <server> <account>",
	Short: "Print an internet password",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		rec, err := lookupNetwork(cmd, s, args)
		if err != nil {
			return err
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

var internetDeleteCmd = &cobra.Command{
	Use:     "delete <server> <account>",
	Short:   "Remove an internet password",
	Aliases: []string{"rm"},
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		rec, err := lookupNetwork(cmd, s, args)
		if err != nil {
			return err
		}
		key := rec.Key()
		if err := rec.Delete(cmd.Context()); err != nil {
			return describe(err)
		}
		fmt.Printf("Deleted %s\n", key)
		return nil
	},
}

func lookupNetwork(cmd *cobra.Command, s *session, args []string) (*credential.NetworkCredential, error) {
	id, err := networkIdentity(cmd, args[0], args[1])
	if err != nil {
		return nil, err
	}
	rec, found, err := credential.LookupNetwork(cmd.Context(), s.store, id, accessGroup(cmd, s))
	if err != nil {
		return nil, describe(err)
	}
	if !found {
		return nil, fmt.Errorf("no internet password for %s@%s", args[1], args[0])
	}
	return rec, nil
}

func init() {
	addAttributeFlags(internetSetCmd)
	internetSetCmd.Flags().String("auth-type", "", "authentication type, e.g. http-basic or html-form")
	internetSetCmd.Flags().String("security-domain", "", "security domain (realm)")
	for _, c := range []*cobra.Command{internetSetCmd, internetGetCmd, internetDeleteCmd} {
		addNetworkFlags(c)
		addGroupFlag(c)
	}
	internetGetCmd.Flags().Bool("attributes", false, "print all attributes, not just the password")

	internetCmd.AddCommand(internetSetCmd)
	internetCmd.AddCommand(internetGetCmd)
	internetCmd.AddCommand(internetDeleteCmd)
	rootCmd.AddCommand(internetCmd)
}
