package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// AuthCmd creates the auth parent command
func AuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the server URL and API token",
		Long:  "Store, clear and show the server URL and bearer token used by interviewqa",
	}

	cmd.AddCommand(AuthLoginCmd())
	cmd.AddCommand(AuthLogoutCmd())
	cmd.AddCommand(AuthStatusCmd())

	return cmd
}

func AuthLoginCmd() *cobra.Command {
	var (
		token     string
		apiURL    string
		defaultKB string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store the API token",
		Long:  "Store the API token and URL in the global config (~/.config/interviewqa/config.json)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthLogin(token, apiURL, defaultKB)
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "API token configured on the server as IQA_API_TOKEN")
	cmd.Flags().StringVar(&apiURL, "url", defaultAPIURL, "API URL")
	cmd.Flags().StringVar(&defaultKB, "default-kb", "", "Knowledge base used by upload when --kb is omitted")

	return cmd
}

func AuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthLogout()
		},
	}
}

func AuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show where the URL and token come from",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			flagURL, _ := cmd.Flags().GetString("api-url")
			flagToken, _ := cmd.Flags().GetString("token")
			return runAuthStatus(flagURL, flagToken, outputJSON)
		},
	}
}

func runAuthLogin(token, apiURL, defaultKB string) error {
	if token == "" {
		fmt.Print("Enter API token: ")
		reader := bufio.NewReader(os.Stdin)
		input, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read API token: %w", err)
		}
		token = strings.TrimSpace(input)
	}
	if token == "" {
		return fmt.Errorf("API token cannot be empty")
	}

	config := &GlobalConfig{
		APIToken:  token,
		APIURL:    strings.TrimRight(apiURL, "/"),
		DefaultKB: defaultKB,
	}
	if err := SaveGlobalConfig(config); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}

	fmt.Println("Credentials saved")
	return nil
}

func runAuthLogout() error {
	if err := DeleteGlobalConfig(); err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}

	fmt.Println("Credentials cleared")
	return nil
}

func runAuthStatus(flagURL, flagToken string, outputJSON bool) error {
	s, err := ResolveSettings(flagURL, flagToken)
	if err != nil {
		return err
	}

	if outputJSON {
		status := map[string]interface{}{
			"api_url":      s.APIURL,
			"url_source":   string(s.URLSource),
			"has_token":    s.APIToken != "",
			"token_source": string(s.TokenSource),
			"default_kb":   s.DefaultKB,
		}
		if s.APIToken != "" {
			status["api_token"] = maskToken(s.APIToken)
		}
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal status: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("API URL: %s (%s)\n", s.APIURL, s.URLSource)
	if s.APIToken == "" {
		fmt.Println("API token: not set, uploads and knowledge base changes need one when the server requires it")
	} else {
		fmt.Printf("API token: %s (%s)\n", maskToken(s.APIToken), s.TokenSource)
	}
	if s.DefaultKB != "" {
		fmt.Printf("Default knowledge base: %s\n", s.DefaultKB)
	}
	return nil
}

func maskToken(token string) string {
	if len(token) < 8 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
