// Package profile manages the participant profile stored at
// ~/.config/gazetrace/profile.json. It is created once by the setup wizard
// and fills gaps in the merged configuration on every command.
package profile

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fakeyudi/gazetrace/internal/config"
)

// Profile holds participant-level preferences set during setup.
type Profile struct {
	Participant   string `json:"participant"`
	DefaultFormat string `json:"default_format"` // "xml" | "json" | "yaml"
	OutputDir     string `json:"output_dir"`
	MonitorIndex  int    `json:"monitor_index"`
	CalibrationX  int    `json:"calibration_x"`
	CalibrationY  int    `json:"calibration_y"`
	Realtime      bool   `json:"realtime"`
}

// ConfigDir returns the gazetrace config directory.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "gazetrace"), nil
}

func profilePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "profile.json"), nil
}

// Exists reports whether a profile file is present on disk.
func Exists() bool {
	p, err := profilePath()
	if err != nil {
		return false
	}
	_, err = os.Stat(p)
	return err == nil
}

// Load reads the profile from disk.
func Load() (*Profile, error) {
	p, err := profilePath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("profile not found, run 'gazetrace setup' to configure: %w", err)
	}
	var prof Profile
	if err := json.Unmarshal(data, &prof); err != nil {
		return nil, fmt.Errorf("malformed profile at %s: %w", p, err)
	}
	return &prof, nil
}

// Save writes the profile, creating the config directory if needed.
func Save(prof *Profile) error {
	p, err := profilePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(prof, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o644)
}

// Apply fills cfg fields still at their defaults with profile values.
func (p *Profile) Apply(cfg *config.Config) {
	def := config.Defaults()
	if cfg.TraceFormat == def.TraceFormat && p.DefaultFormat != "" {
		cfg.TraceFormat = p.DefaultFormat
	}
	if cfg.OutputDir == def.OutputDir && p.OutputDir != "" {
		cfg.OutputDir = p.OutputDir
	}
	if cfg.Screen.MonitorIndex == def.Screen.MonitorIndex {
		cfg.Screen.MonitorIndex = p.MonitorIndex
	}
	if cfg.Calibration == def.Calibration && (p.CalibrationX != 0 || p.CalibrationY != 0) {
		cfg.Calibration = config.CalibrationConfig{OffsetX: p.CalibrationX, OffsetY: p.CalibrationY}
	}
	if !cfg.Realtime {
		cfg.Realtime = p.Realtime
	}
}

// RunSetup runs the interactive wizard over in/out and returns the
// resulting profile. existing, when non-nil, supplies the defaults.
func RunSetup(in io.Reader, out io.Writer, existing *Profile) (*Profile, error) {
	r := bufio.NewReader(in)

	ask := func(prompt, defaultVal string) (string, error) {
		if defaultVal != "" {
			fmt.Fprintf(out, "%s [%s]: ", prompt, defaultVal)
		} else {
			fmt.Fprintf(out, "%s: ", prompt)
		}
		line, err := r.ReadString('\n')
		if err != nil && err != io.EOF {
			return "", err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			return defaultVal, nil
		}
		return line, nil
	}

	askInt := func(prompt string, defaultVal int) (int, error) {
		for {
			ans, err := ask(prompt, strconv.Itoa(defaultVal))
			if err != nil {
				return 0, err
			}
			n, convErr := strconv.Atoi(ans)
			if convErr == nil {
				return n, nil
			}
			fmt.Fprintf(out, "  %q is not a whole number\n", ans)
		}
	}

	askBool := func(prompt string, defaultVal bool) (bool, error) {
		def := "n"
		if defaultVal {
			def = "y"
		}
		ans, err := ask(prompt+" (y/n)", def)
		if err != nil {
			return false, err
		}
		ans = strings.ToLower(ans)
		return ans == "y" || ans == "yes", nil
	}

	def := config.Defaults()
	prof := &Profile{
		DefaultFormat: def.TraceFormat,
		OutputDir:     def.OutputDir,
		CalibrationX:  def.Calibration.OffsetX,
		CalibrationY:  def.Calibration.OffsetY,
	}
	if existing != nil {
		*prof = *existing
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "  ┌───────────────────────────────────┐")
	fmt.Fprintln(out, "  │   gazetrace, participant setup    │")
	fmt.Fprintln(out, "  └───────────────────────────────────┘")
	fmt.Fprintln(out)

	var err error
	if prof.Participant, err = ask("  Participant ID (written into traces)", prof.Participant); err != nil {
		return nil, err
	}

	format, err := ask("  Trace format (xml/json/yaml)", prof.DefaultFormat)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(format) {
	case "json", "yaml":
		prof.DefaultFormat = strings.ToLower(format)
	default:
		prof.DefaultFormat = "xml"
	}

	if prof.OutputDir, err = ask("  Trace output directory", prof.OutputDir); err != nil {
		return nil, err
	}
	if prof.MonitorIndex, err = askInt("  Monitor index", prof.MonitorIndex); err != nil {
		return nil, err
	}
	if prof.CalibrationX, err = askInt("  Calibration offset X (px)", prof.CalibrationX); err != nil {
		return nil, err
	}
	if prof.CalibrationY, err = askInt("  Calibration offset Y (px)", prof.CalibrationY); err != nil {
		return nil, err
	}
	if prof.Realtime, err = askBool("  Print realtime gaze updates", prof.Realtime); err != nil {
		return nil, err
	}

	fmt.Fprintln(out)
	return prof, nil
}
