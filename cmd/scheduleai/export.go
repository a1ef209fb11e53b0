package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"scheduleai/internal/config"
	"scheduleai/internal/service"
)

var (
	exportTelegramID int64
	exportOut        string
)

// exportCmd writes a user's active routine as an iCalendar file
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a user's active routine as iCalendar",
	Long: `Export the active routine of a signed-in bot user as an .ics file.

The user must have signed in through the bot; the stored session is reused.

Examples:
  # Print to stdout
  scheduleai export --telegram-id 123456

  # Write to a file
  scheduleai export --telegram-id 123456 --out week.ics`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().Int64Var(&exportTelegramID, "telegram-id", 0, "Telegram user id whose session to use")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "-", "output file, - for stdout")
	_ = exportCmd.MarkFlagRequired("telegram-id")
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*cfg.HTTPTimeout)
	defer cancel()

	session, err := a.sessions.FindByTelegramID(ctx, exportTelegramID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("telegram user %d never used the bot", exportTelegramID)
	}
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	var w io.Writer = cmd.OutOrStdout()
	if exportOut != "-" {
		f, err := os.Create(exportOut)
		if err != nil {
			return fmt.Errorf("create %s: %w", exportOut, err)
		}
		defer f.Close()
		buf := bufio.NewWriter(f)
		defer buf.Flush()
		w = buf
	}

	routine, err := a.routines.Export(ctx, session, w)
	if err != nil {
		if errors.Is(err, service.ErrNoRoutine) {
			return fmt.Errorf("telegram user %d has no active routine", exportTelegramID)
		}
		return fmt.Errorf("export routine: %w", err)
	}
	a.log.Info("routine exported",
		zap.Int64("telegram_id", exportTelegramID),
		zap.String("routine", routine.Name),
		zap.Int("events", len(routine.Events)))
	return nil
}
