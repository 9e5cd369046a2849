package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/frahmantamala/kakeibo/internal/session"
	"github.com/frahmantamala/kakeibo/pkg/logger"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage the admin credential",
}

var setPasswordCmd = &cobra.Command{
	Use:   "set-password",
	Short: "Replace the admin password",
	Long: `Prompt for a new admin password and store its bcrypt hash. The password
is read from the terminal without echo, or line by line from stdin when
stdin is not a terminal.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		password, err := promptNewPassword(cmd.InOrStdin(), cmd.OutOrStdout())
		if err != nil {
			return err
		}

		cfg, err := loadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		logger.Init(cfg.AppEnv, cfg.Logging.Level)
		lg := logger.LoggerWrapper()

		_, sqlDB, err := initDB(ctx, cfg.Database, lg)
		if err != nil {
			return fmt.Errorf("failed to init db: %w", err)
		}
		defer sqlDB.Close()

		authService := newAuthService(cfg, sqlDB, session.NewMemoryStore(), lg)
		if err := authService.SetPassword(ctx, cfg.Security.AdminUsername, password); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Password updated for %s\n", cfg.Security.AdminUsername)
		return nil
	},
}

func init() {
	adminCmd.AddCommand(setPasswordCmd)
}

var errPasswordMismatch = errors.New("passwords do not match")

// promptNewPassword asks for the password twice.
func promptNewPassword(stdin io.Reader, stdout io.Writer) (string, error) {
	pr := newPasswordReader(stdin)

	fmt.Fprint(stdout, "New password: ")
	password, err := pr.read()
	fmt.Fprintln(stdout)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if strings.TrimSpace(password) == "" {
		return "", errors.New("password cannot be empty")
	}

	fmt.Fprint(stdout, "Confirm password: ")
	confirm, err := pr.read()
	fmt.Fprintln(stdout)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if confirm != password {
		return "", errPasswordMismatch
	}
	return password, nil
}

type passwordReader struct {
	fd       int
	terminal bool
	lines    *bufio.Reader
}

func newPasswordReader(stdin io.Reader) *passwordReader {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return &passwordReader{fd: int(f.Fd()), terminal: true}
	}
	return &passwordReader{lines: bufio.NewReader(stdin)}
}

func (p *passwordReader) read() (string, error) {
	if p.terminal {
		b, err := term.ReadPassword(p.fd)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	line, err := p.lines.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
