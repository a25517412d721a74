package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"
)

// AsmviewConfig represents configuration for the asmview tool
type AsmviewConfig struct {
	Debug           bool   `json:"debug" jsonschema:"title=Debug,description=Enable debug logging"`
	NoColor         bool   `json:"noColor" jsonschema:"title=No Color,description=Disable ANSI colors in listing output"`
	MaxInstructions int    `json:"maxInstructions" jsonschema:"title=Max Instructions,description=Decode at most this many instructions per binary"`
	ProfilePath     string `json:"profilePath" jsonschema:"title=Profile Path,description=Path for CPU profile output"`
}

var schemaCmd = &cobra.Command{
	Use:    "schema",
	Short:  "Generate JSON schema for configuration",
	Long:   "Generate JSON schema for the asmview configuration",
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		reflector := new(jsonschema.Reflector)
		bts, err := json.MarshalIndent(reflector.Reflect(&AsmviewConfig{}), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal schema: %w", err)
		}
		fmt.Println(string(bts))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}
