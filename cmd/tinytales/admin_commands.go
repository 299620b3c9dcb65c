package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"tinytales/internal/admin"
	"tinytales/internal/services"
	"tinytales/internal/store"
)

const adminPasswordEnv = "TINYTALES_ADMIN_INPUT"

func newAdminCommand(ctx *commandContext) *cobra.Command {
	var password string

	adminCmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage users, feature switches and site settings",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			input, err := adminPassword(cmd, password)
			if err != nil {
				return err
			}
			return admin.NewGate(cfg.Admin.Password).Authorize(input)
		},
	}
	adminCmd.PersistentFlags().StringVar(&password, "password", "", "Admin password (or set "+adminPasswordEnv+")")

	adminCmd.AddCommand(newAdminUsersCommand(ctx))
	adminCmd.AddCommand(newAdminLimitsCommand(ctx))
	adminCmd.AddCommand(newAdminSettingsCommand(ctx))
	return adminCmd
}

// adminPassword resolves the caller's password from the flag, the
// environment, or an interactive prompt.
func adminPassword(cmd *cobra.Command, flagValue string) (string, error) {
	if value := strings.TrimSpace(flagValue); value != "" {
		return value, nil
	}
	if value := strings.TrimSpace(os.Getenv(adminPasswordEnv)); value != "" {
		return value, nil
	}
	in, ok := cmd.InOrStdin().(*os.File)
	if !ok || !term.IsTerminal(int(in.Fd())) {
		return "", services.Wrap(services.ErrValidation, "cli", "admin", "admin password required (use --password or "+adminPasswordEnv+")", nil)
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Admin password: ")
	raw, err := term.ReadPassword(int(in.Fd()))
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

func newAdminUsersCommand(ctx *commandContext) *cobra.Command {
	usersCmd := &cobra.Command{
		Use:   "users",
		Short: "Manage user records",
	}

	var jsonOutput bool
	listCmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.ensureRuntime()
			if err != nil {
				return err
			}
			users, err := rt.Store.ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, users)
			}
			if len(users) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No users")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderUserTable(users))
			return nil
		},
	}
	listCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	addCmd := &cobra.Command{
		Use:   "add <name> <email>",
		Short: "Create a pending user with full access",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.ensureRuntime()
			if err != nil {
				return err
			}
			user, err := rt.Store.CreateUser(cmd.Context(), store.NewUser(args[0], args[1]))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created user %s (%s)\n", user.ID, user.Status)
			return nil
		},
	}

	approveCmd := userMutationCommand(ctx, "approve <user-id>", "Approve a pending user", func(cmd *cobra.Command, st *store.Store, id string) (store.User, error) {
		return st.Approve(cmd.Context(), id)
	})
	toggleCmd := userMutationCommand(ctx, "toggle <user-id>", "Switch a user between approved and pending", func(cmd *cobra.Command, st *store.Store, id string) (store.User, error) {
		return st.ToggleApproval(cmd.Context(), id)
	})

	deleteCmd := &cobra.Command{
		Use:     "delete <user-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a user",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.ensureRuntime()
			if err != nil {
				return err
			}
			if err := rt.Store.DeleteUser(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted user %s\n", args[0])
			return nil
		},
	}

	var outPath string
	csvCmd := &cobra.Command{
		Use:   "csv",
		Short: "Export users as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.ensureRuntime()
			if err != nil {
				return err
			}
			users, err := rt.Store.ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			return writeCSV(cmd, outPath, func(w io.Writer) error {
				return admin.WriteUsersCSV(w, users)
			})
		},
	}
	csvCmd.Flags().StringVarP(&outPath, "out", "o", "", "Write the CSV to this file instead of stdout")

	usersCmd.AddCommand(listCmd, addCmd, approveCmd, toggleCmd, newAdminAccessCommand(ctx), deleteCmd, csvCmd)
	return usersCmd
}

func userMutationCommand(ctx *commandContext, use, short string, fn func(*cobra.Command, *store.Store, string) (store.User, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.ensureRuntime()
			if err != nil {
				return err
			}
			user, err := fn(cmd, rt.Store, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "User %s is now %s\n", user.ID, user.Status)
			return nil
		},
	}
}

func newAdminAccessCommand(ctx *commandContext) *cobra.Command {
	var (
		allow             []string
		deny              []string
		storyLimit        int
		illustrationLimit int
	)

	cmd := &cobra.Command{
		Use:   "access <user-id>",
		Short: "Change a user's capabilities and limits",
		Long:  "Allow or deny features (story, illustration, pdf, gif, video) and set numeric limits. A negative limit clears it.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.ensureRuntime()
			if err != nil {
				return err
			}
			user, err := rt.Store.GetUser(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			access := user.Access
			for _, value := range allow {
				if err := setCapability(&access, value, true); err != nil {
					return err
				}
			}
			for _, value := range deny {
				if err := setCapability(&access, value, false); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("story-limit") {
				access.StoryGenerationLimit = limitPointer(storyLimit)
			}
			if cmd.Flags().Changed("illustration-limit") {
				access.IllustrationGenerationLimit = limitPointer(illustrationLimit)
			}
			updated, err := rt.Store.UpdateAccess(cmd.Context(), user.ID, access)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderUserTable([]store.User{updated}))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&allow, "allow", nil, "Features to allow")
	cmd.Flags().StringSliceVar(&deny, "deny", nil, "Features to deny")
	cmd.Flags().IntVar(&storyLimit, "story-limit", -1, "Story generation limit")
	cmd.Flags().IntVar(&illustrationLimit, "illustration-limit", -1, "Illustration generation limit")
	return cmd
}

func setCapability(access *store.Access, value string, allowed bool) error {
	feature, err := admin.ParseFeature(strings.ToLower(strings.TrimSpace(value)))
	if err != nil {
		return err
	}
	switch feature {
	case admin.FeatureStory:
		access.CanGenerateStory = allowed
	case admin.FeatureIllustration:
		access.CanGenerateIllustration = allowed
	case admin.FeaturePDF:
		access.CanExportPDF = allowed
	case admin.FeatureGIF:
		access.CanExportGIF = allowed
	case admin.FeatureVideo:
		access.CanExportVideo = allowed
	}
	return nil
}

func limitPointer(value int) *int {
	if value < 0 {
		return nil
	}
	return &value
}

func renderUserTable(users []store.User) string {
	columns := []tableColumn{
		{Header: "ID"},
		{Header: "Name"},
		{Header: "Email"},
		{Header: "Status"},
		{Header: "Story"},
		{Header: "Illus."},
		{Header: "PDF"},
		{Header: "GIF"},
		{Header: "Video"},
		{Header: "Limits", Align: alignRight},
	}
	rows := make([][]string, 0, len(users))
	for _, u := range users {
		rows = append(rows, []string{
			u.ID,
			u.Name,
			u.Email,
			string(u.Status),
			yesNo(u.CanGenerateStory),
			yesNo(u.CanGenerateIllustration),
			yesNo(u.CanExportPDF),
			yesNo(u.CanExportGIF),
			yesNo(u.CanExportVideo),
			formatLimit(u.StoryGenerationLimit) + "/" + formatLimit(u.IllustrationGenerationLimit),
		})
	}
	return renderTable(columns, rows)
}

func formatLimit(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}

func newAdminLimitsCommand(ctx *commandContext) *cobra.Command {
	limitsCmd := &cobra.Command{
		Use:   "limits",
		Short: "Switch features off or on for everyone",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show global feature switches",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.ensureRuntime()
			if err != nil {
				return err
			}
			limits, err := rt.Store.GetLimits(cmd.Context())
			if err != nil {
				return err
			}
			printLimits(cmd, limits)
			return nil
		},
	}

	setCmd := &cobra.Command{
		Use:   "set <feature> <on|off>",
		Short: "Enable or disable a feature globally",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			feature, err := admin.ParseFeature(strings.ToLower(args[0]))
			if err != nil {
				return err
			}
			var disabled bool
			switch strings.ToLower(args[1]) {
			case "on", "enable", "enabled":
				disabled = false
			case "off", "disable", "disabled":
				disabled = true
			default:
				return services.Wrap(services.ErrValidation, "cli", "limits", fmt.Sprintf("expected on or off, got %q", args[1]), nil)
			}
			rt, err := ctx.ensureRuntime()
			if err != nil {
				return err
			}
			limits, err := rt.Store.GetLimits(cmd.Context())
			if err != nil {
				return err
			}
			limits = admin.SetLimit(limits, feature, disabled)
			if err := rt.Store.SetLimits(cmd.Context(), limits); err != nil {
				return err
			}
			printLimits(cmd, limits)
			return nil
		},
	}

	limitsCmd.AddCommand(showCmd, setCmd)
	return limitsCmd
}

func printLimits(cmd *cobra.Command, limits store.Limits) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	access := admin.Access{Limits: limits}
	for _, feature := range admin.Features() {
		if access.Disabled(feature) {
			fmt.Fprintln(out, renderStatusLine(feature.Label(), statusWarn, "disabled", colorize))
			continue
		}
		fmt.Fprintln(out, renderStatusLine(feature.Label(), statusOK, "enabled", colorize))
	}
}

func newAdminSettingsCommand(ctx *commandContext) *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "View or change integration settings",
	}

	var jsonOutput bool
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show integration settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.ensureRuntime()
			if err != nil {
				return err
			}
			settings, err := rt.Store.GetSiteSettings(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, settings)
			}
			printSettings(cmd, settings)
			return nil
		},
	}
	showCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	var (
		dataSource string
		firebase   string
		customURL  string
		customKey  string
		aiKey      string
	)
	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Update integration settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.ensureRuntime()
			if err != nil {
				return err
			}
			settings, err := rt.Store.GetSiteSettings(cmd.Context())
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("data-source") {
				source, ok := store.ParseDataSource(strings.ToLower(strings.TrimSpace(dataSource)))
				if !ok {
					return services.Wrap(services.ErrValidation, "cli", "settings", fmt.Sprintf("invalid data source %q", dataSource), nil)
				}
				settings.DataSource = source
			}
			if flags.Changed("firebase-config") {
				settings.FirebaseConfig = firebase
			}
			if flags.Changed("custom-api-url") {
				settings.CustomAPIURL = customURL
			}
			if flags.Changed("custom-api-key") {
				settings.CustomAPIKey = customKey
			}
			if flags.Changed("ai-service-api-key") {
				settings.AIServiceAPIKey = aiKey
			}
			if err := rt.Store.SetSiteSettings(cmd.Context(), settings); err != nil {
				return err
			}
			printSettings(cmd, settings)
			return nil
		},
	}
	setCmd.Flags().StringVar(&dataSource, "data-source", "", "local, firebase or custom")
	setCmd.Flags().StringVar(&firebase, "firebase-config", "", "Firebase configuration JSON")
	setCmd.Flags().StringVar(&customURL, "custom-api-url", "", "Custom backend URL")
	setCmd.Flags().StringVar(&customKey, "custom-api-key", "", "Custom backend key")
	setCmd.Flags().StringVar(&aiKey, "ai-service-api-key", "", "AI service key")

	settingsCmd.AddCommand(showCmd, setCmd)
	return settingsCmd
}

func printSettings(cmd *cobra.Command, settings store.SiteSettings) {
	fmt.Fprintln(cmd.OutOrStdout(), renderPairs([][2]string{
		{"Data source", string(settings.DataSource)},
		{"Firebase config", settings.FirebaseConfig},
		{"Custom API URL", settings.CustomAPIURL},
		{"Custom API key", maskSecret(settings.CustomAPIKey)},
		{"AI service key", maskSecret(settings.AIServiceAPIKey)},
	}, 60))
}

func maskSecret(value string) string {
	value = strings.TrimSpace(value)
	switch {
	case value == "":
		return ""
	case len(value) <= 4:
		return "****"
	}
	return "****" + value[len(value)-4:]
}
