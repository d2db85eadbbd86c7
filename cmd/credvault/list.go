package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/benaskins/credvault/internal/credential"
	"github.com/benaskins/credvault/internal/keychain"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List stored passwords",
	Aliases: []string{"ls"},
	RunE: func(cmd *cobra.Command, args []string) error {
		var class keychain.Class
		if name, _ := cmd.Flags().GetString("class"); name != "" {
			c, err := keychain.ParseClass(name)
			if err != nil {
				return err
			}
			class = c
		}

		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		recs, err := credential.List(cmd.Context(), s.store, class)
		if err != nil {
			return describe(err)
		}
		if len(recs) == 0 {
			fmt.Println("No passwords stored")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CLASS\tKEY\tLABEL\tMODIFIED")
		for _, c := range recs {
			r, ok := c.(record)
			if !ok {
				continue
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Class(), r.Key(), r.Label(), formatDate(r.ModificationDate()))
		}
		return w.Flush()
	},
}

func init() {
	listCmd.Flags().String("class", "", "only list one class: generic or internet")
	rootCmd.AddCommand(listCmd)
}
