package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/agentdeck/agentdeck/internal/app"
	"github.com/agentdeck/agentdeck/internal/config"
	"github.com/agentdeck/agentdeck/internal/domain/ports"
	"github.com/agentdeck/agentdeck/internal/overrides"
)

var (
	doctorJSON   bool
	doctorStrict bool
)

type doctorStatus string

const (
	doctorStatusOK   doctorStatus = "ok"
	doctorStatusWarn doctorStatus = "warn"
	doctorStatusFail doctorStatus = "fail"
)

type doctorCheck struct {
	ID          string       `json:"id" yaml:"id"`
	Status      doctorStatus `json:"status" yaml:"status"`
	Message     string       `json:"message" yaml:"message"`
	Remediation string       `json:"remediation,omitempty" yaml:"remediation,omitempty"`
}

type doctorReport struct {
	Version     string        `json:"version" yaml:"version"`
	GeneratedAt string        `json:"generated_at" yaml:"generated_at"`
	Overall     doctorStatus  `json:"overall_status" yaml:"overall_status"`
	Checks      []doctorCheck `json:"checks" yaml:"checks"`
}

// doctorCmd diagnoses the provider homes and local configuration.
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose provider homes and configuration",
	Long: `Check that each enabled provider's home directory exists and contains
transcript files, that the provider CLI is on PATH, and that the
overrides file and cache location are usable. Prints a YAML report by
default.`,
	RunE: runDoctor,
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorJSON, "json", false, "emit the report as JSON instead of YAML")
	doctorCmd.Flags().BoolVar(&doctorStrict, "strict", false, "exit non-zero on warnings, not just failures")
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	report := buildDoctorReport(cfg)

	var out []byte
	if doctorJSON {
		out, err = json.MarshalIndent(report, "", "  ")
	} else {
		out, err = yaml.Marshal(report)
	}
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if report.Overall == doctorStatusFail {
		return fmt.Errorf("doctor found failures")
	}
	if doctorStrict && report.Overall == doctorStatusWarn {
		return fmt.Errorf("doctor found warnings (strict mode)")
	}
	return nil
}

func buildDoctorReport(cfg *config.Config) doctorReport {
	var checks []doctorCheck

	checks = append(checks, checkConfigDir())
	checks = append(checks, checkOverrides(cfg.Overrides.Path))

	commands := map[string]string{}
	for name, pc := range cfg.Providers.EnabledProviders() {
		commands[name] = pc.Command
	}
	for _, provider := range app.BuildProviders(cfg) {
		checks = append(checks, checkProviderHome(provider))
		if command := commands[provider.Name().String()]; command != "" {
			checks = append(checks, checkProviderCommand(provider.Name().String(), command))
		}
	}

	overall := doctorStatusOK
	for _, check := range checks {
		switch check.Status {
		case doctorStatusFail:
			overall = doctorStatusFail
		case doctorStatusWarn:
			if overall == doctorStatusOK {
				overall = doctorStatusWarn
			}
		}
	}

	return doctorReport{
		Version:     version,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Overall:     overall,
		Checks:      checks,
	}
}

func checkConfigDir() doctorCheck {
	dir, err := config.EnsureConfigDir()
	if err != nil {
		return doctorCheck{
			ID:          "config_dir",
			Status:      doctorStatusFail,
			Message:     fmt.Sprintf("config directory unavailable: %v", err),
			Remediation: "create ~/.agentdeck manually and check permissions",
		}
	}
	return doctorCheck{
		ID:      "config_dir",
		Status:  doctorStatusOK,
		Message: fmt.Sprintf("config directory ready at %s", dir),
	}
}

func checkOverrides(path string) doctorCheck {
	if path == "" {
		return doctorCheck{
			ID:      "overrides",
			Status:  doctorStatusOK,
			Message: "no overrides file configured",
		}
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return doctorCheck{
			ID:      "overrides",
			Status:  doctorStatusOK,
			Message: fmt.Sprintf("overrides file absent (will be created on first edit): %s", path),
		}
	}
	if _, err := overrides.NewStore(path).Load(); err != nil {
		return doctorCheck{
			ID:          "overrides",
			Status:      doctorStatusFail,
			Message:     fmt.Sprintf("overrides file unreadable: %v", err),
			Remediation: fmt.Sprintf("fix or remove %s", path),
		}
	}
	return doctorCheck{
		ID:      "overrides",
		Status:  doctorStatusOK,
		Message: fmt.Sprintf("overrides file parses: %s", path),
	}
}

func checkProviderHome(provider ports.Provider) doctorCheck {
	id := fmt.Sprintf("provider_%s_home", provider.Name())
	home := provider.HomeDir()

	info, err := os.Stat(home)
	if err != nil {
		return doctorCheck{
			ID:          id,
			Status:      doctorStatusWarn,
			Message:     fmt.Sprintf("%s home missing: %s", provider.DisplayName(), home),
			Remediation: fmt.Sprintf("run %s once to create it, or disable the provider", provider.Name()),
		}
	}
	if !info.IsDir() {
		return doctorCheck{
			ID:      id,
			Status:  doctorStatusFail,
			Message: fmt.Sprintf("%s home is not a directory: %s", provider.DisplayName(), home),
		}
	}

	files, err := provider.ListSessionFiles()
	if err != nil {
		return doctorCheck{
			ID:      id,
			Status:  doctorStatusWarn,
			Message: fmt.Sprintf("%s transcripts unreadable: %v", provider.DisplayName(), err),
		}
	}
	if len(files) == 0 {
		return doctorCheck{
			ID:      id,
			Status:  doctorStatusOK,
			Message: fmt.Sprintf("%s home present, no transcripts yet: %s", provider.DisplayName(), home),
		}
	}
	return doctorCheck{
		ID:      id,
		Status:  doctorStatusOK,
		Message: fmt.Sprintf("%s home present with %d transcript files", provider.DisplayName(), len(files)),
	}
}

func checkProviderCommand(name, command string) doctorCheck {
	id := fmt.Sprintf("provider_%s_command", name)
	path, err := exec.LookPath(command)
	if err != nil {
		return doctorCheck{
			ID:          id,
			Status:      doctorStatusWarn,
			Message:     fmt.Sprintf("%s command %q not found on PATH", name, command),
			Remediation: fmt.Sprintf("install the %s CLI or adjust providers.%s.command", name, name),
		}
	}
	return doctorCheck{
		ID:      id,
		Status:  doctorStatusOK,
		Message: fmt.Sprintf("%s command resolved to %s", name, path),
	}
}
