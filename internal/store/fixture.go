// Drivelog - Driving Journal GPS Trip Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivelog

package store

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// LoadFixture reads a YAML or JSON fixture file:
//
//	users:
//	  - id: U1
//	    email: anna@example.com
//	    role: user
//	vehicles:
//	  - id: V1
//	    registrationNumber: ABC123
//	    gpsDeviceId: "358901"
//	    assignedDriver: anna@example.com
func LoadFixture(path string) (*Fixture, error) {
	// Field names are camelCase and may not be split on ".".
	k := koanf.New("::")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load fixture %s: %w", path, err)
	}

	f := &Fixture{}
	if err := k.Unmarshal("", f); err != nil {
		return nil, fmt.Errorf("decode fixture %s: %w", path, err)
	}
	return f, nil
}
