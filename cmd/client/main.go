// File: cmd/client/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log" // Standard log for critical startup/shutdown messages before/after zap is active
	"os"
	"os/signal"
	"syscall"
	"time"

	"servicebook_client/internal/api"
	"servicebook_client/internal/app"
	"servicebook_client/internal/auth"
	"servicebook_client/internal/config"
	"servicebook_client/internal/validation"

	"github.com/spf13/pflag"
)

const usage = `Usage: servicebook-client <command> [flags]

Commands:
  login            Sign in with email and password
  signup           Create an account
  google-login     Sign in with a Google account
  google-signup    Create an account with Google
  logout           Sign out and discard the stored session
  whoami           Show the signed-in user
  refresh          Exchange the refresh token for a new access token
  set-phone        Add or change the profile phone number
  forgot-password  Request a password-reset email
  reset-password   Complete a password reset with an emailed token
  check-email      Ask the backend whether an email is registered
  check-phone      Ask the backend whether a phone number is registered
  list-categories  Browse the public service catalog

Run 'servicebook-client <command> --help' for the command's flags.`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if os.Args[1] == "help" || os.Args[1] == "--help" || os.Args[1] == "-h" {
		fmt.Println(usage)
		return
	}

	if err := run(os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(command string, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	application, err := initializeApp(cfg)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize application: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Start(ctx); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := application.Shutdown(shutdownCtx); err != nil {
			log.Printf("ERROR: Shutdown failed: %v", err)
		}
	}()

	switch command {
	case "login":
		return cmdLogin(ctx, application, args)
	case "signup":
		return cmdSignup(ctx, application, args)
	case "google-login":
		return cmdGoogle(ctx, application, false)
	case "google-signup":
		return cmdGoogle(ctx, application, true)
	case "logout":
		application.Auth.Logout(ctx)
		fmt.Println("Signed out.")
		return nil
	case "whoami":
		return cmdWhoami(application)
	case "refresh":
		if err := application.Auth.Refresh(ctx); err != nil {
			return err
		}
		fmt.Println("Access token refreshed.")
		return nil
	case "set-phone":
		return cmdSetPhone(ctx, application, args)
	case "forgot-password":
		return cmdForgotPassword(ctx, application, args)
	case "reset-password":
		return cmdResetPassword(ctx, application, args)
	case "check-email":
		return cmdCheck(application, cfg, validation.FieldEmail, args)
	case "check-phone":
		return cmdCheck(application, cfg, validation.FieldPhone, args)
	case "list-categories":
		return cmdListCategories(ctx, application)
	default:
		fmt.Fprintln(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func cmdLogin(ctx context.Context, a *app.App, args []string) error {
	fs := pflag.NewFlagSet("login", pflag.ExitOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	fs.Parse(args)

	if err := a.Auth.Login(ctx, *email, *password); err != nil {
		return err
	}
	fmt.Println("Signed in.")
	return printUser(a)
}

func cmdSignup(ctx context.Context, a *app.App, args []string) error {
	fs := pflag.NewFlagSet("signup", pflag.ExitOnError)
	req := api.RegisterRequest{}
	fs.StringVar(&req.Email, "email", "", "account email")
	fs.StringVar(&req.Password, "password", "", "account password (min 8 characters)")
	fs.StringVar(&req.FirstName, "first-name", "", "first name")
	fs.StringVar(&req.LastName, "last-name", "", "last name")
	fs.StringVar(&req.PhoneNumber, "phone", "", "phone number (optional)")
	fs.Parse(args)

	if err := a.Auth.Signup(ctx, req); err != nil {
		return err
	}
	fmt.Println("Account created, signed in.")
	return printUser(a)
}

func cmdGoogle(ctx context.Context, a *app.App, signup bool) error {
	fmt.Println("Opening the browser for Google consent...")
	var result *auth.GoogleResult
	var err error
	if signup {
		result, err = a.Auth.GoogleSignup(ctx)
	} else {
		result, err = a.Auth.GoogleLogin(ctx)
	}
	if err != nil {
		return err
	}
	if result == nil {
		fmt.Println("Sign-in abandoned.")
		return nil
	}
	fmt.Println("Signed in with Google.")
	if result.NeedsCompletion {
		fmt.Println("Your profile has no phone number yet. Finish it with: servicebook-client set-phone --phone <number>")
	}
	return printUser(a)
}

func cmdWhoami(a *app.App) error {
	if !a.Auth.IsAuthenticated() {
		return errors.New("not signed in")
	}
	return printUser(a)
}

func cmdSetPhone(ctx context.Context, a *app.App, args []string) error {
	fs := pflag.NewFlagSet("set-phone", pflag.ExitOnError)
	phone := fs.String("phone", "", "phone number")
	fs.Parse(args)
	if *phone == "" {
		return errors.New("--phone is required")
	}

	user, err := a.Auth.UpdateProfile(ctx, api.ProfileUpdate{PhoneNumber: phone})
	if err != nil {
		return err
	}
	fmt.Printf("Phone number set to %s.\n", user.PhoneNumber)
	return nil
}

func cmdForgotPassword(ctx context.Context, a *app.App, args []string) error {
	fs := pflag.NewFlagSet("forgot-password", pflag.ExitOnError)
	email := fs.String("email", "", "account email")
	fs.Parse(args)

	resp, err := a.Auth.ForgotPassword(ctx, *email)
	if err != nil {
		return err
	}
	fmt.Println(resp.Message)
	return nil
}

func cmdResetPassword(ctx context.Context, a *app.App, args []string) error {
	fs := pflag.NewFlagSet("reset-password", pflag.ExitOnError)
	token := fs.String("token", "", "reset token from the email")
	password := fs.String("password", "", "new password")
	confirm := fs.String("confirm", "", "new password, again")
	fs.Parse(args)

	resp, err := a.Auth.ResetPassword(ctx, *token, *password, *confirm)
	if err != nil {
		return err
	}
	fmt.Println(resp.Message)
	return nil
}

// cmdCheck drives the debounced validation engine for a single value and
// waits for the published result.
func cmdCheck(a *app.App, cfg *config.Config, field validation.FieldKey, args []string) error {
	name := "check-email"
	flagName := "email"
	delay := cfg.EmailCheckDebounce
	if field == validation.FieldPhone {
		name = "check-phone"
		flagName = "phone"
		delay = cfg.PhoneCheckDebounce
	}
	fs := pflag.NewFlagSet(name, pflag.ExitOnError)
	value := fs.String(flagName, "", "value to check")
	fs.Parse(args)

	results := make(chan validation.Result, 1)
	a.Checks.Subscribe(func(f validation.FieldKey, r validation.Result) {
		if f == field {
			results <- r
		}
	})
	a.Checks.SetValue(field, *value)

	select {
	case r := <-results:
		if r.Exists {
			fmt.Printf("%s is already registered.\n", *value)
		} else {
			fmt.Printf("%s is available.\n", *value)
		}
		if !r.FormatValid {
			fmt.Println("The backend flagged the format as invalid.")
		}
		return nil
	case <-time.After(delay + 10*time.Second):
		return errors.New("no validation result (value failed the local shape check, or the backend is unreachable)")
	}
}

// cmdListCategories walks the paginated public catalog to the end.
func cmdListCategories(ctx context.Context, a *app.App) error {
	pageURL := ""
	for {
		page, err := a.API.ListServiceCategories(ctx, pageURL)
		if err != nil {
			return err
		}
		for _, cat := range page.Results {
			if !cat.IsActive {
				continue
			}
			fmt.Printf("  %-20s %s\n", cat.Code, cat.Name)
			if cat.Description != "" {
				fmt.Printf("  %-20s %s\n", "", cat.Description)
			}
		}
		if page.Next == nil || *page.Next == "" {
			return nil
		}
		pageURL = *page.Next
	}
}

func printUser(a *app.App) error {
	user := a.Auth.CurrentUser()
	if user == nil {
		return errors.New("no user loaded")
	}
	fmt.Printf("  ID:    %d\n", user.ID)
	fmt.Printf("  Name:  %s %s\n", user.FirstName, user.LastName)
	fmt.Printf("  Email: %s\n", user.Email)
	if user.PhoneNumber != "" {
		fmt.Printf("  Phone: %s\n", user.PhoneNumber)
	}
	return nil
}
