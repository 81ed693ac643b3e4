package main

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

func validateOutput(format string) error {
	switch format {
	case "yaml", "json":
		return nil
	}
	return eris.Errorf("unsupported output format %q (want yaml or json)", format)
}

// printOutput writes v to w in the requested format. YAML output goes
// through the JSON encoding so both formats share field names and order.
func printOutput(w io.Writer, format string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrap(err, "encode json")
	}
	if format == "json" {
		_, err = w.Write(append(b, '\n'))
		return eris.Wrap(err, "write output")
	}

	var node yaml.Node
	if err := yaml.Unmarshal(b, &node); err != nil {
		return eris.Wrap(err, "convert to yaml")
	}
	blockStyle(&node)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return eris.Wrap(err, "encode yaml")
	}
	return eris.Wrap(enc.Close(), "encode yaml")
}

// blockStyle drops the flow and quoting styles inherited from JSON.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}
