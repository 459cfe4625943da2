package commands

import (
	"github.com/pkg/errors"

	"github.com/james-lawrence/tpm/cluster"
	"github.com/james-lawrence/tpm/properties"
)

// Configure merges the yaml cluster definition and the overrides into the
// property file at output. values already in the file and absent from the
// definition are kept.
func Configure(definition, output string, overrides ...string) (s *properties.Store, err error) {
	var (
		defined *properties.Store
	)

	if s, err = properties.Load(output); err != nil {
		return nil, err
	}

	if definition != "" {
		if defined, err = cluster.Load(definition); err != nil {
			return nil, err
		}

		for _, a := range defined.Flatten() {
			if err = s.Set(a.Path, a.Node); err != nil {
				return nil, errors.Wrapf(err, "unable to merge %s", a.Path)
			}
		}
	}

	if err = properties.ApplyOverrides(s, overrides...); err != nil {
		return nil, err
	}

	hosts, err := cluster.Hosts(s)
	if err != nil {
		return nil, err
	}

	if _, err = cluster.Coordinator(s, hosts); err != nil {
		return nil, err
	}

	if err = s.Save(output); err != nil {
		return nil, errors.Wrap(err, "unable to save the configuration")
	}

	return s, nil
}
