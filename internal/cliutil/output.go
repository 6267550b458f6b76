package cliutil

import (
	"encoding/json"
	"fmt"
	"text/template"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/uploadkit/uploader/internal/upload"
)

// ResponseResult is how an upload response is printed.
//
// JSON bodies are printed as values, other bodies as text.
func ResponseResult(resp *upload.Response) map[string]interface{} {
	result := map[string]interface{}{
		"status":      resp.Status,
		"status_text": resp.StatusText,
		"headers":     resp.Header,
	}

	var body interface{}
	if err := json.Unmarshal(resp.Body, &body); err == nil {
		result["body"] = body
	} else {
		result["body"] = string(resp.Body)
	}
	return result
}

// HandleOutput prints the result according to the template or format flag.
func HandleOutput(cmd *cobra.Command, result interface{}) error {
	templateFlag, _ := cmd.Flags().GetString("template")
	formatFlag, _ := cmd.Flags().GetString("format")

	if templateFlag != "" {
		tmpl, err := template.New("output").Parse(templateFlag)
		if err != nil {
			return fmt.Errorf("failed to parse template: %w", err)
		}

		if err := tmpl.Execute(cmd.OutOrStdout(), result); err != nil {
			return fmt.Errorf("failed to execute template: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout())
		return nil
	}

	var output []byte
	var err error

	switch formatFlag {
	case "yaml":
		output, err = yaml.Marshal(result)
		if err != nil {
			return fmt.Errorf("failed to marshal to YAML: %w", err)
		}
	default:
		output, err = json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal to JSON: %w", err)
		}
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(output))
	return nil
}
