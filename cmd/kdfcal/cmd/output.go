package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// tableFormats are the --output values every command understands
var tableFormats = []string{"text", "json", "yaml"}

// outputFormat returns the --output value if the command supports it
func outputFormat(supported ...string) (string, error) {
	format := strings.ToLower(viper.GetString("output"))
	if !slices.Contains(supported, format) {
		return "", fmt.Errorf("unsupported output format %q, want one of: %s", format, strings.Join(supported, ", "))
	}
	return format, nil
}

// encode writes v as indented JSON or YAML
func encode(w io.Writer, format string, v interface{}) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(v)
	case "yaml":
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(v); err != nil {
			return err
		}
		return encoder.Close()
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

func isStructured(format string) bool {
	return format == "json" || format == "yaml"
}

func formatRate(opsPerSecond float64) string {
	switch {
	case opsPerSecond >= 1e9:
		return fmt.Sprintf("%.3f G ops/s", opsPerSecond/1e9)
	case opsPerSecond >= 1e6:
		return fmt.Sprintf("%.3f M ops/s", opsPerSecond/1e6)
	case opsPerSecond >= 1e3:
		return fmt.Sprintf("%.3f k ops/s", opsPerSecond/1e3)
	default:
		return fmt.Sprintf("%.3f ops/s", opsPerSecond)
	}
}
