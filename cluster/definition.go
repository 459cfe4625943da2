package cluster

import (
	"fmt"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"

	"github.com/james-lawrence/tpm"
	"github.com/james-lawrence/tpm/properties"
)

// Load the yaml cluster definition at the path into a property store.
// environment variables are expanded before decoding, key order is preserved.
func Load(path string) (s *properties.Store, err error) {
	var (
		definition yaml.MapSlice
	)

	if err = tpm.ExpandAndDecodeFile(path, &definition); err != nil {
		return nil, errors.Wrapf(err, "unable to read cluster definition %s", path)
	}

	return FromDefinition(definition)
}

// Decode a yaml cluster definition.
func Decode(raw []byte) (s *properties.Store, err error) {
	var (
		definition yaml.MapSlice
	)

	if err = tpm.ExpandAndDecode(raw, &definition); err != nil {
		return nil, err
	}

	return FromDefinition(definition)
}

// FromDefinition converts the decoded definition into a property store. mappings
// become maps, sequences become lists and every other value is a scalar.
func FromDefinition(definition yaml.MapSlice) (s *properties.Store, err error) {
	s = properties.New()

	if err = s.Update(func(e properties.Editor) error {
		return definitionMap(e, nil, definition)
	}); err != nil {
		return nil, err
	}

	return s, nil
}

func definitionMap(e properties.Editor, prefix properties.Path, m yaml.MapSlice) error {
	for _, item := range m {
		if err := definitionValue(e, prefix.Append(fmt.Sprint(item.Key)), item.Value); err != nil {
			return err
		}
	}

	return nil
}

func definitionValue(e properties.Editor, p properties.Path, v interface{}) error {
	switch v := v.(type) {
	case yaml.MapSlice:
		return definitionMap(e, p, v)
	case []interface{}:
		values := make([]string, 0, len(v))
		for _, el := range v {
			switch el.(type) {
			case yaml.MapSlice, []interface{}:
				return errors.Errorf("%s: lists may only contain scalars", p)
			case nil:
				values = append(values, "")
			default:
				values = append(values, fmt.Sprint(el))
			}
		}

		return e.Set(p, properties.List(values...))
	case nil:
		return e.Set(p, properties.Scalar(""))
	default:
		return e.Set(p, properties.Scalar(fmt.Sprint(v)))
	}
}
