// Package cron installs and removes the scheduled backup entry in the local
// user's crontab. The entry is tagged with a marker comment so repeated
// installs replace rather than accumulate.
package cron

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/AlecAivazis/survey/v2"
)

// Marker tags the crontab lines this tool owns.
const Marker = "# coolify-backup schedule"

// Installer manages the backup entry in the invoking user's crontab.
type Installer struct {
	// run executes a shell snippet and returns its stdout. Swapped out in
	// tests.
	run func(script string) (string, error)
}

// NewInstaller returns an Installer operating on the local crontab.
func NewInstaller() *Installer {
	return &Installer{run: runShell}
}

func runShell(script string) (string, error) {
	out, err := exec.Command("bash", "-lc", script).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%s: %s", err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// Install writes the tagged schedule entry, replacing any previous one. An
// empty schedule triggers an interactive prompt.
func (in *Installer) Install(schedule, command string) error {
	if schedule == "" {
		var err error
		schedule, err = promptSchedule()
		if err != nil {
			return err
		}
	}
	if err := ValidateCronExpression(schedule); err != nil {
		return err
	}
	if command == "" {
		return fmt.Errorf("cron command cannot be empty")
	}

	current, _ := in.run("crontab -l 2>/dev/null || true")
	if _, err := in.run("crontab -l 2>/dev/null > \"$HOME/crontab-backup.txt\" || true"); err != nil {
		fmt.Printf("Warning: failed to back up crontab: %v\n", err)
	}

	entry := fmt.Sprintf("%s\n%s %s", Marker, schedule, command)
	updated := spliceEntry(current, entry)
	if err := in.writeCrontab(updated); err != nil {
		return err
	}
	fmt.Printf("Installed backup schedule: %s %s\n", schedule, command)
	return nil
}

// Remove deletes the tagged entry if present.
func (in *Installer) Remove() error {
	current, err := in.run("crontab -l 2>/dev/null || true")
	if err != nil {
		return err
	}
	updated := spliceEntry(current, "")
	if updated == strings.TrimRight(current, "\n") {
		fmt.Println("No backup schedule installed.")
		return nil
	}
	if err := in.writeCrontab(updated); err != nil {
		return err
	}
	fmt.Println("Removed backup schedule.")
	return nil
}

// Show prints the currently installed entry, if any.
func (in *Installer) Show() error {
	current, err := in.run("crontab -l 2>/dev/null || true")
	if err != nil {
		return err
	}
	entry := installedEntry(current)
	if entry == "" {
		fmt.Println("No backup schedule installed.")
		return nil
	}
	fmt.Println(entry)
	return nil
}

func (in *Installer) writeCrontab(content string) error {
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	script := fmt.Sprintf("cat <<'EOF' | crontab -\n%sEOF", content)
	if _, err := in.run(script); err != nil {
		return fmt.Errorf("failed to update crontab: %w", err)
	}
	return nil
}

// spliceEntry removes any existing tagged entry (marker line plus the line
// after it) and appends the replacement. An empty replacement just removes.
func spliceEntry(crontab, entry string) string {
	lines := strings.Split(strings.TrimRight(crontab, "\n"), "\n")
	var kept []string
	skipNext := false
	for _, line := range lines {
		if skipNext {
			skipNext = false
			continue
		}
		if strings.TrimSpace(line) == Marker {
			skipNext = true
			continue
		}
		kept = append(kept, line)
	}
	for len(kept) > 0 && strings.TrimSpace(kept[len(kept)-1]) == "" {
		kept = kept[:len(kept)-1]
	}
	if entry != "" {
		kept = append(kept, entry)
	}
	return strings.Join(kept, "\n")
}

// installedEntry returns the tagged schedule line, without the marker.
func installedEntry(crontab string) string {
	lines := strings.Split(crontab, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) == Marker && i+1 < len(lines) {
			return strings.TrimSpace(lines[i+1])
		}
	}
	return ""
}

// promptSchedule asks the operator to pick a preset or type an expression.
func promptSchedule() (string, error) {
	presets := []struct {
		label string
		expr  string
	}{
		{"Daily at 02:00", "0 2 * * *"},
		{"Daily at 04:00", "0 4 * * *"},
		{"Twice daily (02:00 and 14:00)", "0 2,14 * * *"},
		{"Every 6 hours", "0 */6 * * *"},
		{"Weekly (Sunday 03:00)", "0 3 * * 0"},
		{"Custom expression", ""},
	}
	labels := make([]string, len(presets))
	for i, p := range presets {
		labels[i] = p.label
	}

	var picked string
	if err := survey.AskOne(&survey.Select{Message: "Backup schedule:", Options: labels}, &picked); err != nil {
		return "", fmt.Errorf("schedule selection aborted: %w", err)
	}
	for _, p := range presets {
		if p.label == picked && p.expr != "" {
			return p.expr, nil
		}
	}

	var expr string
	prompt := &survey.Input{
		Message: "Cron expression (minute hour day month weekday):",
		Help:    "Example: 0 2 * * 1 runs every Monday at 2 AM",
	}
	if err := survey.AskOne(prompt, &expr); err != nil {
		return "", fmt.Errorf("schedule input aborted: %w", err)
	}
	return strings.TrimSpace(expr), nil
}

// ValidateCronExpression checks a five-field cron expression.
func ValidateCronExpression(expr string) error {
	parts := strings.Fields(expr)
	if len(parts) != 5 {
		return fmt.Errorf("cron expression must have exactly 5 parts, got %d", len(parts))
	}

	fields := []struct {
		name string
		min  int
		max  int
	}{
		{"minute", 0, 59},
		{"hour", 0, 23},
		{"day", 1, 31},
		{"month", 1, 12},
		{"weekday", 0, 7}, // 0 and 7 are both Sunday
	}

	for i, part := range parts {
		if part == "*" {
			continue
		}

		if strings.Contains(part, "/") {
			stepParts := strings.Split(part, "/")
			if len(stepParts) != 2 {
				return fmt.Errorf("invalid step format in %s: %s", fields[i].name, part)
			}
			if stepParts[0] != "*" {
				if err := validateRange(stepParts[0], fields[i].min, fields[i].max); err != nil {
					return fmt.Errorf("invalid %s range: %w", fields[i].name, err)
				}
			}
			stepVal, err := strconv.Atoi(stepParts[1])
			if err != nil || stepVal <= 0 {
				return fmt.Errorf("invalid step value in %s: %s", fields[i].name, stepParts[1])
			}
			continue
		}

		if strings.Contains(part, "-") {
			rangeParts := strings.Split(part, "-")
			if len(rangeParts) != 2 {
				return fmt.Errorf("invalid range format in %s: %s", fields[i].name, part)
			}
			for _, rangePart := range rangeParts {
				if err := validateRange(rangePart, fields[i].min, fields[i].max); err != nil {
					return fmt.Errorf("invalid %s range: %w", fields[i].name, err)
				}
			}
			continue
		}

		if strings.Contains(part, ",") {
			for _, valuePart := range strings.Split(part, ",") {
				if err := validateRange(valuePart, fields[i].min, fields[i].max); err != nil {
					return fmt.Errorf("invalid %s value: %w", fields[i].name, err)
				}
			}
			continue
		}

		if err := validateRange(part, fields[i].min, fields[i].max); err != nil {
			return fmt.Errorf("invalid %s value: %w", fields[i].name, err)
		}
	}

	return nil
}

func validateRange(value string, min, max int) error {
	num, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("not a valid number: %s", value)
	}
	if num < min || num > max {
		return fmt.Errorf("value %d is outside allowed range [%d-%d]", num, min, max)
	}
	return nil
}
