package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/yadielglz/littlesprout-sub001/internal/app"
	"github.com/yadielglz/littlesprout-sub001/internal/config"
	"github.com/yadielglz/littlesprout-sub001/internal/sprout"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer a.Close().
func newApp(ctx context.Context) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewApp(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// readPassphrase prompts for a passphrase without echoing it.
func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	data, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(data), nil
}

var rootCmd = &cobra.Command{
	Use:   "sprout",
	Short: "Baby care tracker",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		deviceID := uuid.New().String()

		cfg := config.NewConfig(deviceID, defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Device ID: %s\n", deviceID)
		fmt.Printf("Base Dir:  %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Device ID: %s\n", cfg.DeviceID)
		fmt.Printf("Base Dir:  %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:   %s\n", cfg.LogDir)
		fmt.Printf("Remote:    %s\n", cfg.Remote.Type)
		fmt.Printf("Database:  %s\n", cfg.Database.Type)
		return nil
	},
}

// session commands
var loginCmd = &cobra.Command{
	Use:   "login PRINCIPAL",
	Short: "Log in and pull remote data",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Login(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("login failed: %w", err)
		}

		fmt.Printf("Logged in as %s\n", args[0])
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out and stop syncing",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Logout(); err != nil {
			return fmt.Errorf("logout failed: %w", err)
		}

		fmt.Println("Logged out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in principal",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		principal, err := a.Principal()
		if err != nil {
			return err
		}
		if principal == "" {
			fmt.Println("Not logged in.")
			return nil
		}
		fmt.Println(principal)
		return nil
	},
}

// profile command
var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage baby profiles",
}

var profileAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		userName, _ := cmd.Flags().GetString("user")
		babyName, _ := cmd.Flags().GetString("baby")
		dob, _ := cmd.Flags().GetString("dob")

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.AddProfile(cmd.Context(), userName, babyName, dob)
		if err != nil {
			return fmt.Errorf("creating profile: %w", err)
		}

		fmt.Printf("Created profile %s (%s)\n", p.BabyName, p.ID)
		return nil
	},
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		profiles := a.Container().Profiles()
		if len(profiles) == 0 {
			fmt.Println("No profiles.")
			return nil
		}

		currentID := a.Container().CurrentProfileID()
		for _, p := range profiles {
			marker := " "
			if p.ID == currentID {
				marker = "*"
			}
			fmt.Printf("%s %s  %-12s  dob:%s  %s\n", marker, p.ID, p.BabyName, p.DOB, p.UserName)
		}
		return nil
	},
}

var profileUseCmd = &cobra.Command{
	Use:   "use ID",
	Short: "Switch the current profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.SelectProfile(args[0]); err != nil {
			return fmt.Errorf("switching profile: %w", err)
		}

		fmt.Printf("Current profile: %s\n", args[0])
		return nil
	},
}

var profileRmCmd = &cobra.Command{
	Use:   "rm ID",
	Short: "Delete a profile and all its data",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.DeleteProfile(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("deleting profile: %w", err)
		}

		fmt.Printf("Deleted profile %s\n", args[0])
		return nil
	},
}

// log command
var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Manage care logs",
}

var logAddCmd = &cobra.Command{
	Use:   "add TYPE DETAILS",
	Short: "Record a care event",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		notes, _ := cmd.Flags().GetString("notes")
		amountStr, _ := cmd.Flags().GetString("amount")
		durationStr, _ := cmd.Flags().GetString("duration")

		var rawAmount *float64
		if amountStr != "" {
			v, err := strconv.ParseFloat(amountStr, 64)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", amountStr, err)
			}
			rawAmount = &v
		}

		var rawDuration *int64
		if durationStr != "" {
			d, err := time.ParseDuration(durationStr)
			if err != nil {
				return fmt.Errorf("invalid duration %q: %w", durationStr, err)
			}
			ms := d.Milliseconds()
			rawDuration = &ms
		}

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		e, err := a.AddLog(cmd.Context(), sprout.LogCategory(args[0]), args[1], notes, rawAmount, rawDuration)
		if err != nil {
			return fmt.Errorf("recording log: %w", err)
		}

		fmt.Printf("Recorded %s: %s (%s)\n", e.Type, e.Details, e.ID)
		return nil
	},
}

var logListCmd = &cobra.Command{
	Use:   "list",
	Short: "View recent care events",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		profileID := a.Container().CurrentProfileID()
		if profileID == "" {
			fmt.Println("No profile selected.")
			return nil
		}

		logs := a.Container().Logs(profileID)
		if len(logs) == 0 {
			fmt.Println("No log entries.")
			return nil
		}
		if limit > 0 && len(logs) > limit {
			logs = logs[:limit]
		}

		for _, e := range logs {
			extra := ""
			if e.RawAmount != nil {
				extra += fmt.Sprintf("  amount:%g", *e.RawAmount)
			}
			if e.RawDuration != nil {
				extra += fmt.Sprintf("  duration:%s", time.Duration(*e.RawDuration)*time.Millisecond)
			}
			fmt.Printf("%s  %-12s  %s%s  %s\n",
				e.Time().Format("2006-01-02 15:04"),
				e.Type,
				e.Details,
				extra,
				e.ID,
			)
		}
		return nil
	},
}

var logRmCmd = &cobra.Command{
	Use:   "rm ID",
	Short: "Delete a care event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.DeleteLog(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("deleting log: %w", err)
		}

		fmt.Printf("Deleted log %s\n", args[0])
		return nil
	},
}

// inventory command
var inventoryCmd = &cobra.Command{
	Use:   "inventory",
	Short: "Manage supply counters",
}

var inventoryShowCmd = &cobra.Command{
	Use:   "show",
	Short: "View supply counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		profileID := a.Container().CurrentProfileID()
		if profileID == "" {
			fmt.Println("No profile selected.")
			return nil
		}

		inv := a.Container().GetInventory(profileID)
		fmt.Printf("Diapers: %d\n", inv.Diapers)
		fmt.Printf("Formula: %d\n", inv.Formula)
		return nil
	},
}

var inventorySetCmd = &cobra.Command{
	Use:   "set",
	Short: "Overwrite supply counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		diapers, _ := cmd.Flags().GetInt("diapers")
		formula, _ := cmd.Flags().GetInt("formula")

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		inv := sprout.Inventory{Diapers: diapers, Formula: formula}
		if err := a.SetInventory(cmd.Context(), inv); err != nil {
			return fmt.Errorf("setting inventory: %w", err)
		}

		fmt.Printf("Diapers: %d, Formula: %d\n", inv.Diapers, inv.Formula)
		return nil
	},
}

var inventoryAdjustCmd = &cobra.Command{
	Use:   "adjust",
	Short: "Apply deltas to supply counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		diapers, _ := cmd.Flags().GetInt("diapers")
		formula, _ := cmd.Flags().GetInt("formula")

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		inv, err := a.AdjustInventory(cmd.Context(), diapers, formula)
		if err != nil {
			return fmt.Errorf("adjusting inventory: %w", err)
		}

		fmt.Printf("Diapers: %d, Formula: %d\n", inv.Diapers, inv.Formula)
		return nil
	},
}

// reminder command
var reminderCmd = &cobra.Command{
	Use:   "reminder",
	Short: "Manage reminders",
}

var reminderAddCmd = &cobra.Command{
	Use:   "add TEXT",
	Short: "Create a reminder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		at, _ := cmd.Flags().GetString("at")
		freq, _ := cmd.Flags().GetString("freq")

		when, err := time.ParseInLocation("2006-01-02 15:04", at, time.Local)
		if err != nil {
			return fmt.Errorf("invalid time %q (want YYYY-MM-DD HH:MM): %w", at, err)
		}

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		r, err := a.AddReminder(cmd.Context(), args[0], when.UnixMilli(), sprout.ReminderFrequency(freq))
		if err != nil {
			return fmt.Errorf("creating reminder: %w", err)
		}

		fmt.Printf("Created reminder %s (%s)\n", r.Text, r.ID)
		return nil
	},
}

var reminderListCmd = &cobra.Command{
	Use:   "list",
	Short: "List reminders",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		profileID := a.Container().CurrentProfileID()
		if profileID == "" {
			fmt.Println("No profile selected.")
			return nil
		}

		reminders := a.Container().Reminders(profileID)
		if len(reminders) == 0 {
			fmt.Println("No reminders.")
			return nil
		}

		for _, r := range reminders {
			state := "off"
			if r.IsActive {
				state = "on "
			}
			fmt.Printf("%s  %s  %-7s  %s  %s\n",
				state,
				time.UnixMilli(r.Time).Format("15:04"),
				r.Frequency,
				r.Text,
				r.ID,
			)
		}
		return nil
	},
}

var reminderToggleCmd = &cobra.Command{
	Use:   "toggle ID",
	Short: "Flip a reminder's active state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.ToggleReminder(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("toggling reminder: %w", err)
		}

		fmt.Printf("Toggled reminder %s\n", args[0])
		return nil
	},
}

var reminderRmCmd = &cobra.Command{
	Use:   "rm ID",
	Short: "Delete a reminder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.DeleteReminder(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("deleting reminder: %w", err)
		}

		fmt.Printf("Deleted reminder %s\n", args[0])
		return nil
	},
}

// appt command
var apptCmd = &cobra.Command{
	Use:   "appt",
	Short: "Manage appointments",
}

var apptAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create an appointment",
	RunE: func(cmd *cobra.Command, args []string) error {
		appt := sprout.Appointment{}
		appt.Date, _ = cmd.Flags().GetString("date")
		appt.Time, _ = cmd.Flags().GetString("time")
		appt.Doctor, _ = cmd.Flags().GetString("doctor")
		appt.Location, _ = cmd.Flags().GetString("location")
		appt.Reason, _ = cmd.Flags().GetString("reason")
		appt.Notes, _ = cmd.Flags().GetString("notes")

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		created, err := a.AddAppointment(cmd.Context(), appt)
		if err != nil {
			return fmt.Errorf("creating appointment: %w", err)
		}

		fmt.Printf("Created appointment %s %s with %s (%s)\n",
			created.Date, created.Time, created.Doctor, created.ID)
		return nil
	},
}

var apptListCmd = &cobra.Command{
	Use:   "list",
	Short: "List appointments",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		profileID := a.Container().CurrentProfileID()
		if profileID == "" {
			fmt.Println("No profile selected.")
			return nil
		}

		appts := a.Container().Appointments(profileID)
		if len(appts) == 0 {
			fmt.Println("No appointments.")
			return nil
		}

		for _, ap := range appts {
			fmt.Printf("%s %s  %-16s  %-16s  %s  %s\n",
				ap.Date, ap.Time, ap.Doctor, ap.Location, ap.Reason, ap.ID)
		}
		return nil
	},
}

var apptRmCmd = &cobra.Command{
	Use:   "rm ID",
	Short: "Delete an appointment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.DeleteAppointment(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("deleting appointment: %w", err)
		}

		fmt.Printf("Deleted appointment %s\n", args[0])
		return nil
	},
}

// timer command
var timerCmd = &cobra.Command{
	Use:   "timer",
	Short: "Manage stopwatches",
}

var timerStartCmd = &cobra.Command{
	Use:   "start CATEGORY",
	Short: "Start a stopwatch (sleep, nap, tummy, helmet, shower)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		timer, err := a.StartTimer(sprout.TimerCategory(args[0]))
		if err != nil {
			return fmt.Errorf("starting timer: %w", err)
		}

		fmt.Printf("Started %s timer (%s)\n", timer.Category, timer.ID)
		return nil
	},
}

var timerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List running stopwatches",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		timers := a.Timers().Active()
		if len(timers) == 0 {
			fmt.Println("No running timers.")
			return nil
		}

		for _, tm := range timers {
			elapsed, _ := a.Timers().Elapsed(tm.ID)
			fmt.Printf("%-8s  %s  started:%s  %s\n",
				tm.Category,
				elapsed.Truncate(time.Second),
				tm.StartTime().Format("15:04:05"),
				tm.ID,
			)
		}
		return nil
	},
}

var timerStopCmd = &cobra.Command{
	Use:   "stop ID",
	Short: "Discard a stopwatch without logging",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.StopTimer(args[0]); err != nil {
			return fmt.Errorf("stopping timer: %w", err)
		}

		fmt.Printf("Stopped timer %s\n", args[0])
		return nil
	},
}

var timerSaveCmd = &cobra.Command{
	Use:   "save ID",
	Short: "Log a stopwatch as a care event and stop it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		notes, _ := cmd.Flags().GetString("notes")

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		e, err := a.SaveTimer(cmd.Context(), args[0], notes)
		if err != nil {
			return fmt.Errorf("saving timer: %w", err)
		}

		duration := time.Duration(0)
		if e.RawDuration != nil {
			duration = time.Duration(*e.RawDuration) * time.Millisecond
		}
		fmt.Printf("Logged %s: %s (%s)\n", e.Type, duration.Truncate(time.Second), e.ID)
		return nil
	},
}

// sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronize with the remote store",
}

var syncPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Replace local state with the remote dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.SyncPull(cmd.Context()); err != nil {
			return fmt.Errorf("pull failed: %w", err)
		}

		fmt.Printf("Pulled %d profile(s)\n", len(a.Container().Profiles()))
		return nil
	},
}

var syncWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Pull and apply remote changes until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		fmt.Println("Watching for remote changes. Press Ctrl-C to stop.")
		if err := a.SyncWatch(ctx); err != nil {
			return fmt.Errorf("watch failed: %w", err)
		}

		fmt.Println("Stopped.")
		return nil
	},
}

// backfill command
var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Push pre-existing local data to the remote store",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Backfill(cmd.Context())
		if err != nil {
			return fmt.Errorf("backfill failed: %w", err)
		}

		fmt.Printf("Pushed %d document(s), skipped %d already pushed\n", res.Pushed, res.Skipped)
		return nil
	},
}

// export / import commands
var exportCmd = &cobra.Command{
	Use:   "export PATH",
	Short: "Write an encrypted archive of all local data",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		passphrase, err := readPassphrase("Passphrase: ")
		if err != nil {
			return err
		}
		confirm, err := readPassphrase("Confirm passphrase: ")
		if err != nil {
			return err
		}
		if passphrase != confirm {
			return fmt.Errorf("passphrases do not match")
		}

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Export(args[0], passphrase); err != nil {
			return fmt.Errorf("export failed: %w", err)
		}

		fmt.Printf("Exported to %s\n", args[0])
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import PATH",
	Short: "Replace local data with an encrypted archive's contents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		passphrase, err := readPassphrase("Passphrase: ")
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Import(args[0], passphrase); err != nil {
			return fmt.Errorf("import failed: %w", err)
		}

		fmt.Printf("Imported %d profile(s) from %s\n", len(a.Container().Profiles()), args[0])
		return nil
	},
}

// summary command
var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show the current profile at a glance",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		sum, err := a.Summarize()
		if err != nil {
			return err
		}

		fmt.Printf("%s (dob %s)\n\n", sum.Profile.BabyName, sum.Profile.DOB)

		if len(sum.Counts) > 0 {
			var parts []string
			for category, n := range sum.Counts {
				parts = append(parts, fmt.Sprintf("%s:%d", category, n))
			}
			fmt.Printf("Logs:         %s\n", strings.Join(parts, "  "))
		}
		fmt.Printf("Inventory:    %d diaper(s), %d formula\n", sum.Inventory.Diapers, sum.Inventory.Formula)
		fmt.Printf("Reminders:    %d\n", sum.Reminders)
		fmt.Printf("Appointments: %d\n", sum.Appointments)
		for _, tm := range sum.ActiveTimers {
			fmt.Printf("Timer:        %s running since %s\n", tm.Category, tm.StartTime().Format("15:04:05"))
		}
		return nil
	},
}

// prefs command
var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Manage device preferences",
}

var prefsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "View preferences",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		prefs := a.Container().Preferences()
		fmt.Printf("Dark mode: %v\n", prefs.DarkMode)
		fmt.Printf("Unit:      %s\n", prefs.Unit)
		return nil
	},
}

var prefsDarkCmd = &cobra.Command{
	Use:   "dark",
	Short: "Toggle dark mode",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Container().ToggleDarkMode(); err != nil {
			return fmt.Errorf("toggling dark mode: %w", err)
		}

		fmt.Printf("Dark mode: %v\n", a.Container().Preferences().DarkMode)
		return nil
	},
}

var prefsUnitCmd = &cobra.Command{
	Use:   "unit UNIT",
	Short: "Set the measurement unit (metric or imperial)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Container().SetUnit(args[0]); err != nil {
			return fmt.Errorf("setting unit: %w", err)
		}

		fmt.Printf("Unit: %s\n", args[0])
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// profile subcommands
	profileCmd.AddCommand(profileAddCmd)
	profileAddCmd.Flags().String("user", "", "Caregiver name")
	profileAddCmd.Flags().String("baby", "", "Baby name")
	profileAddCmd.Flags().String("dob", "", "Date of birth (YYYY-MM-DD)")
	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileUseCmd)
	profileCmd.AddCommand(profileRmCmd)

	// log subcommands
	logCmd.AddCommand(logAddCmd)
	logAddCmd.Flags().String("notes", "", "Free-form notes")
	logAddCmd.Flags().String("amount", "", "Amount (e.g. 120 for ml)")
	logAddCmd.Flags().String("duration", "", "Duration (e.g. 45m, 1h30m)")
	logCmd.AddCommand(logListCmd)
	logListCmd.Flags().IntP("limit", "n", 20, "Maximum number of entries to show")
	logCmd.AddCommand(logRmCmd)

	// inventory subcommands
	inventoryCmd.AddCommand(inventoryShowCmd)
	inventoryCmd.AddCommand(inventorySetCmd)
	inventorySetCmd.Flags().Int("diapers", 0, "Diaper count")
	inventorySetCmd.Flags().Int("formula", 0, "Formula container count")
	inventoryCmd.AddCommand(inventoryAdjustCmd)
	inventoryAdjustCmd.Flags().Int("diapers", 0, "Diaper delta")
	inventoryAdjustCmd.Flags().Int("formula", 0, "Formula delta")

	// reminder subcommands
	reminderCmd.AddCommand(reminderAddCmd)
	reminderAddCmd.Flags().String("at", "", "Time (YYYY-MM-DD HH:MM)")
	reminderAddCmd.Flags().String("freq", "none", "Frequency (none, daily, weekly)")
	reminderCmd.AddCommand(reminderListCmd)
	reminderCmd.AddCommand(reminderToggleCmd)
	reminderCmd.AddCommand(reminderRmCmd)

	// appt subcommands
	apptCmd.AddCommand(apptAddCmd)
	apptAddCmd.Flags().String("date", "", "Date (YYYY-MM-DD)")
	apptAddCmd.Flags().String("time", "", "Time (HH:MM)")
	apptAddCmd.Flags().String("doctor", "", "Care provider")
	apptAddCmd.Flags().String("location", "", "Location")
	apptAddCmd.Flags().String("reason", "", "Reason for the visit")
	apptAddCmd.Flags().String("notes", "", "Free-form notes")
	apptCmd.AddCommand(apptListCmd)
	apptCmd.AddCommand(apptRmCmd)

	// timer subcommands
	timerCmd.AddCommand(timerStartCmd)
	timerCmd.AddCommand(timerListCmd)
	timerCmd.AddCommand(timerStopCmd)
	timerCmd.AddCommand(timerSaveCmd)
	timerSaveCmd.Flags().String("notes", "", "Free-form notes")

	// sync subcommands
	syncCmd.AddCommand(syncPullCmd)
	syncCmd.AddCommand(syncWatchCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(inventoryCmd)
	rootCmd.AddCommand(reminderCmd)
	rootCmd.AddCommand(apptCmd)
	rootCmd.AddCommand(timerCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(backfillCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(prefsCmd)
}
