package report

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// WriteYAML encodes the full report, including chart series, as YAML.
func WriteYAML(w io.Writer, r Report) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(r); err != nil {
		return fmt.Errorf("encode report yaml: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("encode report yaml: %w", err)
	}
	return nil
}
