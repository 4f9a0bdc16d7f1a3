package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

func checkFormat(format string) error {
	switch format {
	case formatText, formatJSON, formatYAML:
		return nil
	default:
		return errors.Errorf("unknown output format %q", format)
	}
}

// write renders v as JSON or YAML, or calls text for the text format.
func (a *app) write(v interface{}, text func(w io.Writer) error) error {
	switch a.format {
	case formatJSON:
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(a.out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return text(a.out)
	}
}

// confirm asks question on stderr and reads the answer. --yes skips it.
func (a *app) confirm(title, question string) (bool, error) {
	if a.yes {
		return true, nil
	}
	fmt.Fprintf(a.errOut, "%s\n%s [y/N] ", title, question)
	answer, err := bufio.NewReader(a.in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, errors.Wrap(err, "reading answer")
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
