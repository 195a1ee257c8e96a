package expert

import (
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// UnmarshalJSON decodes a descriptor, treating absent enabled/version as
// true and DefaultVersion.
func (d *Descriptor) UnmarshalJSON(b []byte) error {
	type plain Descriptor
	p := plain{Enabled: true, Version: DefaultVersion}
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*d = Descriptor(p)
	return nil
}

// UnmarshalYAML mirrors UnmarshalJSON for YAML documents.
func (d *Descriptor) UnmarshalYAML(n *yaml.Node) error {
	type plain Descriptor
	p := plain{Enabled: true, Version: DefaultVersion}
	if err := n.Decode(&p); err != nil {
		return err
	}
	*d = Descriptor(p)
	return nil
}
