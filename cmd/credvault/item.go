package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/benaskins/credvault/internal/credential"
	"github.com/benaskins/credvault/internal/keychain"
)

// record is the surface the commands need from either credential type.
type record interface {
	credential.Credential
	Account() string
	Label() string
	Description() string
	Comment() string
	AccessGroup() string
	Accessible() keychain.Accessibility
	CreationDate() time.Time
	ModificationDate() time.Time
	Password(ctx context.Context) (string, error)
	SetPassword(v string)
}

var (
	_ record = (*credential.ServiceCredential)(nil)
	_ record = (*credential.NetworkCredential)(nil)
)

func addAttributeFlags(cmd *cobra.Command) {
	cmd.Flags().String("label", "", "user-visible label")
	cmd.Flags().String("description", "", "kind of item, e.g. \"application password\"")
	cmd.Flags().String("comment", "", "free-form comment")
	cmd.Flags().String("accessible", "", "accessibility policy (default from config)")
	cmd.Flags().Bool("overwrite", false, "update the entry if it already exists")
}

func addGroupFlag(cmd *cobra.Command) {
	cmd.Flags().String("access-group", "", "access group (default from config)")
}

func addNetworkFlags(cmd *cobra.Command) {
	cmd.Flags().String("protocol", "https", "protocol name or four-character code")
	cmd.Flags().Int("port", 0, "port (0 for unspecified)")
	cmd.Flags().String("path", "", "path on the server")
}

func accessGroup(cmd *cobra.Command, s *session) string {
	if cmd.Flags().Changed("access-group") {
		g, _ := cmd.Flags().GetString("access-group")
		return g
	}
	return s.cfg.AccessGroup
}

// optionsFromFlags builds record options from the attribute flags, falling
// back to the config defaults.
func optionsFromFlags(cmd *cobra.Command, s *session) (*credential.Options, error) {
	label, _ := cmd.Flags().GetString("label")
	description, _ := cmd.Flags().GetString("description")
	comment, _ := cmd.Flags().GetString("comment")
	overwrite, _ := cmd.Flags().GetBool("overwrite")

	accessible := s.cfg.AccessibleValue()
	if name, _ := cmd.Flags().GetString("accessible"); name != "" {
		a, err := keychain.ParseAccessibility(name)
		if err != nil {
			return nil, err
		}
		accessible = a
	}

	return &credential.Options{
		Label:       label,
		Description: description,
		Comment:     comment,
		Accessible:  accessible,
		AccessGroup: accessGroup(cmd, s),
		Overwrite:   overwrite,
	}, nil
}

func networkIdentity(cmd *cobra.Command, server, account string) (credential.NetworkIdentity, error) {
	protoName, _ := cmd.Flags().GetString("protocol")
	protocol, err := keychain.ParseProtocol(protoName)
	if err != nil {
		return credential.NetworkIdentity{}, err
	}
	port, _ := cmd.Flags().GetInt("port")
	path, _ := cmd.Flags().GetString("path")

	id := credential.NetworkIdentity{
		Server:   server,
		Protocol: protocol,
		Port:     port,
		Path:     path,
		Account:  account,
	}
	if cmd.Flags().Lookup("auth-type") != nil {
		authName, _ := cmd.Flags().GetString("auth-type")
		if id.AuthenticationType, err = keychain.ParseAuthenticationType(authName); err != nil {
			return credential.NetworkIdentity{}, err
		}
		id.SecurityDomain, _ = cmd.Flags().GetString("security-domain")
	}
	return id, nil
}

// secretArg returns args[i] when present, otherwise reads the secret from stdin.
func secretArg(args []string, i int) (string, error) {
	if len(args) > i {
		return args[i], nil
	}
	return readSecret("Enter password: ")
}

func printRecord(ctx context.Context, r record, showPassword bool) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "key:\t%s\n", r.Key())
	fmt.Fprintf(w, "handle:\t%s\n", r.Handle())
	if r.Label() != "" {
		fmt.Fprintf(w, "label:\t%s\n", r.Label())
	}
	if r.Description() != "" {
		fmt.Fprintf(w, "description:\t%s\n", r.Description())
	}
	if r.Comment() != "" {
		fmt.Fprintf(w, "comment:\t%s\n", r.Comment())
	}
	fmt.Fprintf(w, "accessible:\t%s\n", r.Accessible())
	fmt.Fprintf(w, "created:\t%s\n", formatDate(r.CreationDate()))
	fmt.Fprintf(w, "modified:\t%s\n", formatDate(r.ModificationDate()))
	if showPassword {
		pw, err := r.Password(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "password:\t%s\n", pw)
	}
	return w.Flush()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}

// describe renders err with the store's human-readable description.
func describe(err error) error {
	var se *credential.StoreError
	if errors.As(err, &se) {
		return fmt.Errorf("%s (%s)", se.Description(), se.Code)
	}
	return err
}
