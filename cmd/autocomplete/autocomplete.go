// Package autocomplete shell completion predictors.
package autocomplete

import (
	"strings"

	"github.com/posener/complete"

	"github.com/james-lawrence/tpm"
	"github.com/james-lawrence/tpm/cluster"
	"github.com/james-lawrence/tpm/internal/envx"
	"github.com/james-lawrence/tpm/properties"
)

// Dataservices configured in the property file.
func Dataservices(args complete.Args) (results []string) {
	s, err := properties.Load(envx.String(tpm.DefaultWorkingConfig(), tpm.EnvConfig))
	if err != nil {
		return nil
	}

	seen := map[string]bool{}
	for _, alias := range s.Members(cluster.GroupHosts) {
		name := s.StringOr(cluster.HostPath(alias, cluster.KeyDataservice), "")
		if name == "" || seen[name] || !strings.HasPrefix(name, args.Last) {
			continue
		}

		seen[name] = true
		results = append(results, name)
	}

	return results
}
