package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

type Config struct {
	BaseURL string `json:"base_url"`
}

func configPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".rosey")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(dir, "cli_config.json"), nil
}

func loadConfig() (*Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{BaseURL: "http://localhost:3020"}, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:3020"
	}
	return &cfg, nil
}

func saveConfig(cfg *Config) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func request(method, path string, body any) ([]byte, int, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, 0, err
	}
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, 0, err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, cfg.BaseURL+path, reader)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return data, resp.StatusCode, nil
}

func printJSON(data []byte) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		fmt.Println(string(data))
		return
	}
	fmt.Println(buf.String())
}

// --- Cobra root and commands ---

var rootCmd = &cobra.Command{
	Use:   "rosey",
	Short: "Rosey data service CLI",
}

var setURLCmd = &cobra.Command{
	Use:   "set-url <base-url>",
	Short: "Set the service base URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cfg.BaseURL = args[0]
		return saveConfig(cfg)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <namespace>",
	Short: "Show migration status for a namespace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, code, err := request(http.MethodGet, "/v1/namespaces/"+args[0]+"/migrations/status", nil)
		if err != nil {
			return err
		}
		printJSON(data)
		if code != http.StatusOK {
			return fmt.Errorf("status request failed (%d)", code)
		}
		return nil
	},
}

func migrationBody(target string, dryRun bool) map[string]any {
	body := map[string]any{"dry_run": dryRun}
	if target != "" {
		body["target"] = target
	}
	return body
}

func newApplyCmd() *cobra.Command {
	var target string
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "apply <namespace>",
		Short: "Apply pending migrations up to the target version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, code, err := request(http.MethodPost,
				"/v1/namespaces/"+args[0]+"/migrations/apply", migrationBody(target, dryRun))
			if err != nil {
				return err
			}
			printJSON(data)
			if code != http.StatusOK {
				return fmt.Errorf("apply request failed (%d)", code)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&target, "target", "latest", "Target version or \"latest\"")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Execute without persisting anything")
	return cmd
}

func newRollbackCmd() *cobra.Command {
	var target string
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "rollback <namespace>",
		Short: "Roll back migrations down to the target version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if target == "" {
				return fmt.Errorf("--target is required")
			}
			data, code, err := request(http.MethodPost,
				"/v1/namespaces/"+args[0]+"/migrations/rollback", migrationBody(target, dryRun))
			if err != nil {
				return err
			}
			printJSON(data)
			if code != http.StatusOK {
				return fmt.Errorf("rollback request failed (%d)", code)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&target, "target", "", "Target version to roll back to")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Execute without persisting anything")
	return cmd
}

func newSearchCmd() *cobra.Command {
	var filter, sort, aggregate string
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "search <table>",
		Short: "Search a table with a declarative filter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{}
			if filter != "" {
				body["filter"] = json.RawMessage(filter)
			}
			if sort != "" {
				body["sort"] = json.RawMessage(sort)
			}
			if aggregate != "" {
				body["aggregate"] = json.RawMessage(aggregate)
			}
			if cmd.Flags().Changed("limit") {
				body["limit"] = limit
			}
			if cmd.Flags().Changed("offset") {
				body["offset"] = offset
			}
			data, code, err := request(http.MethodPost, "/v1/tables/"+args[0]+"/search", body)
			if err != nil {
				return err
			}
			printJSON(data)
			if code != http.StatusOK {
				return fmt.Errorf("search request failed (%d)", code)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "", "Filter document (JSON)")
	cmd.Flags().StringVar(&sort, "sort", "", "Sort spec (JSON array)")
	cmd.Flags().StringVar(&aggregate, "aggregate", "", "Aggregate spec (JSON)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum rows to return")
	cmd.Flags().IntVar(&offset, "offset", 0, "Rows to skip")
	return cmd
}

func main() {
	rootCmd.AddCommand(setURLCmd, statusCmd, newApplyCmd(), newRollbackCmd(), newSearchCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
