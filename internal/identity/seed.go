package identity

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/iot-bridge/internal/deviceclient"
)

// seedFile is the YAML layout of an identity seed file:
//
//	identities:
//	  - node_id: meter-17
//	    device_id: 64f0_meter-17
//	    secret: s3cr3t
type seedFile struct {
	Identities []seedEntry `yaml:"identities"`
}

type seedEntry struct {
	NodeID   string `yaml:"node_id"`
	DeviceID string `yaml:"device_id"`
	Secret   string `yaml:"secret"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// LoadSeedFile parses and validates a seed file. Every invalid entry is
// reported; nothing is returned unless all entries are valid.
func LoadSeedFile(path string) ([]deviceclient.Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}

	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing seed file: %w", err)
	}

	ids := make([]deviceclient.Identity, 0, len(f.Identities))
	seen := make(map[string]string, len(f.Identities))
	var problems []error
	for i, e := range f.Identities {
		id := deviceclient.Identity{
			NodeID:   e.NodeID,
			DeviceID: e.DeviceID,
			Secret:   e.Secret,
			CertFile: e.CertFile,
			KeyFile:  e.KeyFile,
		}
		if err := Validate(id); err != nil {
			problems = append(problems, fmt.Errorf("identities[%d]: %w", i, err))
			continue
		}
		if other, dup := seen[id.DeviceID]; dup && other != id.NodeID {
			problems = append(problems, fmt.Errorf("identities[%d]: %w: %s also used by %s", i, ErrExists, id.DeviceID, other))
			continue
		}
		seen[id.DeviceID] = id.NodeID
		ids = append(ids, id)
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("seed file %s: %w", path, errors.Join(problems...))
	}
	return ids, nil
}

// Import registers every identity and returns how many were stored.
func (r *Registry) Import(ctx context.Context, ids []deviceclient.Identity) (int, error) {
	for i, id := range ids {
		if err := r.Register(ctx, id); err != nil {
			return i, fmt.Errorf("importing %s: %w", id.NodeID, err)
		}
	}
	return len(ids), nil
}
