package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"walletcsv/internal/application"
	"walletcsv/internal/infrastructure/llm"

	"github.com/spf13/cobra"
)

var settingsShowSecrets bool

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Read and change persisted settings",
}

var settingsGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print one setting, or all of them",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), appOptions{service: "settings", noArchive: true})
		if err != nil {
			return err
		}
		defer a.Close()

		keys := application.KnownSettings()
		if len(args) == 1 {
			if !application.KnownSetting(args[0]) {
				return fmt.Errorf("%w: %s", application.ErrUnknownSetting, args[0])
			}
			keys = args
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, key := range keys {
			value, ok, err := a.store.Setting(cmd.Context(), key)
			if err != nil {
				return err
			}
			if !ok {
				value = "(unset)"
			} else if application.SecretSetting(key) && !settingsShowSecrets {
				value = application.MaskSecret(value)
			}
			fmt.Fprintf(w, "%s\t%s\n", key, value)
		}
		return w.Flush()
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store a setting",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], strings.TrimSpace(args[1])
		if key == application.SettingLLMProvider {
			if len(llm.Models(value)) == 0 {
				return fmt.Errorf("unsupported llm provider %q", value)
			}
			value = strings.ToLower(value)
		}

		a, err := newApp(cmd.Context(), appOptions{service: "settings", noArchive: true})
		if err != nil {
			return err
		}
		defer a.Close()
		return a.store.SetSetting(cmd.Context(), key, value)
	},
}

var settingsDeleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Remove a setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !application.KnownSetting(args[0]) {
			return fmt.Errorf("%w: %s", application.ErrUnknownSetting, args[0])
		}
		a, err := newApp(cmd.Context(), appOptions{service: "settings", noArchive: true})
		if err != nil {
			return err
		}
		defer a.Close()
		return a.store.DeleteSetting(cmd.Context(), args[0])
	},
}

var settingsModelsCmd = &cobra.Command{
	Use:   "models <provider>",
	Short: "List the models offered for an LLM provider",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		models := llm.Models(args[0])
		if len(models) == 0 {
			return errors.New("providers are " + llm.ProviderOpenAI + " and " + llm.ProviderAnthropic)
		}
		for _, model := range models {
			fmt.Fprintln(cmd.OutOrStdout(), model)
		}
		return nil
	},
}

func init() {
	settingsGetCmd.Flags().BoolVar(&settingsShowSecrets, "show-secrets", false, "print secret values unmasked")

	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsDeleteCmd)
	settingsCmd.AddCommand(settingsModelsCmd)
}
