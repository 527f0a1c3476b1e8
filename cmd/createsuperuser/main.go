// Command createsuperuser creates a staff account with every permission
// and can print a login token for it.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/cselefendi/recipe-app-api/internal/repository"
	"github.com/cselefendi/recipe-app-api/internal/service"
)

type output struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Token  string `json:"token,omitempty"`
}

// userRepository is the part of the repository this command uses.
type userRepository interface {
	service.UserStore
	Migrate(ctx context.Context) ([]string, error)
	Close()
}

// openRepository is replaced in tests.
var openRepository = func(ctx context.Context, databaseURL string) (userRepository, error) {
	return repository.New(ctx, databaseURL)
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes the command and returns the process exit code. Deferred
// cleanup always runs before the caller exits.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("createsuperuser", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		databaseURL = fs.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		email       = fs.String("email", "", "Superuser email (required)")
		password    = fs.String("password", os.Getenv("SUPERUSER_PASSWORD"), "Password; read from stdin when empty")
		issueToken  = fs.Bool("token", false, "Also issue a login token")
		tokenEnv    = fs.String("token-env", "live", "Token environment marker: live or test")
		migrate     = fs.Bool("migrate", false, "Apply pending migrations first")
		format      = fs.String("format", "plain", "Output format: plain or json")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	fail := func(a ...any) int {
		fmt.Fprintln(stderr, a...)
		return 1
	}

	if *databaseURL == "" {
		return fail("DATABASE_URL is required")
	}
	if strings.TrimSpace(*email) == "" {
		return fail("-email is required")
	}
	if *format != "plain" && *format != "json" {
		return fail("invalid format; use plain or json")
	}

	pw := *password
	if pw == "" {
		var err error
		if pw, err = readPassword(stdin, stderr); err != nil {
			return fail("read password:", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repo, err := openRepository(ctx, *databaseURL)
	if err != nil {
		return fail("connect database:", err)
	}
	defer repo.Close()

	if *migrate {
		if _, err := repo.Migrate(ctx); err != nil {
			return fail("migrate:", err)
		}
	}

	users := service.NewUserService(repo, nil, *tokenEnv, nil)
	user, err := users.CreateSuperuser(ctx, *email, pw)
	if err != nil {
		return fail("create superuser:", err)
	}

	out := output{UserID: user.ID, Email: user.Email}
	if *issueToken {
		plaintext, _, err := users.IssueToken(ctx, user)
		if err != nil {
			return fail("issue token:", err)
		}
		out.Token = plaintext
	}

	switch *format {
	case "plain":
		if out.Token != "" {
			fmt.Fprintln(stdout, out.Token)
		} else {
			fmt.Fprintln(stdout, out.UserID)
		}
	case "json":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	}
	return 0
}

// readPassword takes the first line of r, prompting on prompt.
func readPassword(r io.Reader, prompt io.Writer) (string, error) {
	fmt.Fprint(prompt, "Password: ")
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	pw := strings.TrimRight(line, "\r\n")
	if pw == "" {
		return "", errors.New("password may not be empty")
	}
	return pw, nil
}
