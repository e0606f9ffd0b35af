package project

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/villain/internal/errors"
	"github.com/vango-dev/villain/pkg/compiler"
)

// State is the content of a component state file:
//
//	props: [title]
//	state:
//	  count: 0
//	  items: [a, b]
//	computed:
//	  double: count * 2
type State struct {
	Props          []string `yaml:"props"`
	compiler.State `yaml:",inline"`
}

// ReadState reads a component state file.
func ReadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	st := &State{}
	if err := decodeStrict(data, st); err != nil {
		return nil, errors.New("V063").WithDetail(fmt.Sprintf("%s: %v", path, err)).Wrap(err)
	}
	return st, nil
}

// ReadValues reads a YAML mapping of names to values, as used for the
// props of a rendered root.
func ReadValues(r io.Reader) (map[string]any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	values := map[string]any{}
	if len(bytes.TrimSpace(data)) == 0 {
		return values, nil
	}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, errors.New("V063").WithDetail(err.Error()).Wrap(err)
	}
	return values, nil
}

// ReadValuesFile is ReadValues on a file.
func ReadValuesFile(path string) (map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadValues(f)
}

func decodeStrict(data []byte, v any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil && err != io.EOF {
		return err
	}
	return nil
}
