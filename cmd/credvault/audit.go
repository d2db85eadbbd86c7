package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/benaskins/credvault/internal/audit"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show the audit log",
	Long:  "Print recent audit entries. With --follow, keep printing entries as they are appended.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		path, err := cfg.AuditLogPath()
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("lines")
		follow, _ := cmd.Flags().GetBool("follow")
		jsonOut, _ := cmd.Flags().GetBool("json")

		entries, offset, err := audit.ReadFile(path)
		if err != nil {
			return err
		}
		if limit > 0 && len(entries) > limit {
			entries = entries[len(entries)-limit:]
		}

		printEntry := entryPrinter(jsonOut)
		for _, e := range entries {
			printEntry(e)
		}
		if !follow {
			return nil
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return audit.Follow(ctx, path, offset, printEntry)
	},
}

func entryPrinter(jsonOut bool) func(audit.Entry) {
	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		return func(e audit.Entry) { _ = enc.Encode(e) }
	}
	return func(e audit.Entry) {
		detail := e.Key
		if len(e.Fields) > 0 {
			detail += " [" + strings.Join(e.Fields, ",") + "]"
		}
		if e.Error != "" {
			detail += " error=" + e.Error
		}
		fmt.Printf("%s  %-13s  %-7s  %s\n", e.Timestamp.Local().Format(time.DateTime), e.Action, e.Actor, detail)
	}
}

func init() {
	auditCmd.Flags().IntP("lines", "n", 20, "number of recent entries to show (0 for all)")
	auditCmd.Flags().BoolP("follow", "f", false, "keep printing new entries")
	auditCmd.Flags().Bool("json", false, "print raw JSON lines")
	rootCmd.AddCommand(auditCmd)
}
