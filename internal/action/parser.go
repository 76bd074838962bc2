package action

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/atelierhq/atelier/internal/normalize"
)

const (
	manifestName = "package.json"
	devCommand   = "npm run dev"
)

// Parse turns a validated file map into an ordered action list and the UI
// events that mirror it. Ordering is fixed: one write_file per entry in file
// map insertion order, then at most one install, then at most one run.
//
// An install is synthesized when the map contains a package.json with at
// least one dependency. A run is synthesized only when an install was, and
// the project looks startable (a manifest or a framework config file is
// present). A manifest that fails to parse is logged and skipped; the file
// itself is still written.
func Parse(fm *normalize.FileMap) ([]Action, []Event) {
	actions := make([]Action, 0, fm.Len()+2)
	events := make([]Event, 0, fm.Len()+2)

	var manifest string
	hasManifest := false
	startable := false

	for _, e := range fm.Entries() {
		actions = append(actions, Action{
			Type:      TypeWriteFile,
			ID:        newID(),
			Timestamp: now(),
			Path:      e.Path,
			Content:   e.Content,
			Mode:      WriteCreate,
		})
		events = append(events, Event{
			Type:   EventFileCreate,
			Path:   e.Path,
			Status: "pending",
		})

		base := path.Base(e.Path)
		if base == manifestName {
			manifest = e.Content
			hasManifest = true
			startable = true
		}
		if isFrameworkConfig(base) {
			startable = true
		}
	}

	if hasManifest {
		pkgs, err := manifestPackages(manifest)
		if err != nil {
			log.Warn().Err(err).Msg("skipping install, package.json did not parse")
		} else if len(pkgs) > 0 {
			actions = append(actions, Action{
				Type:           TypeInstall,
				ID:             newID(),
				Timestamp:      now(),
				Packages:       pkgs,
				PackageManager: "npm",
			})
			events = append(events, Event{
				Type:   EventCommand,
				Cmd:    "npm install " + strings.Join(pkgs, " "),
				Status: "pending",
			})

			if startable {
				actions = append(actions, Action{
					Type:      TypeRun,
					ID:        newID(),
					Timestamp: now(),
					Command:   devCommand,
				})
				events = append(events, Event{
					Type:   EventCommand,
					Cmd:    devCommand,
					Status: "pending",
				})
			}
		}
	}

	return actions, events
}

func isFrameworkConfig(base string) bool {
	return strings.HasPrefix(base, "next.config.") || strings.HasPrefix(base, "vite.config.")
}

// manifestPackages extracts dependency names from a package.json, regular
// dependencies first, then dev dependencies, each group in the order the
// manifest declares them. encoding/json maps do not preserve key order, so
// this walks tokens directly.
func manifestPackages(manifest string) ([]string, error) {
	dec := json.NewDecoder(strings.NewReader(manifest))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("manifest root is not an object")
	}

	deps := map[string][]string{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("read manifest key: %w", err)
		}
		key := keyTok.(string)

		switch key {
		case "dependencies", "devDependencies":
			names, err := objectKeys(dec)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", key, err)
			}
			deps[key] = names
		default:
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, fmt.Errorf("skip manifest field %q: %w", key, err)
			}
		}
	}

	return append(deps["dependencies"], deps["devDependencies"]...), nil
}

// objectKeys consumes one JSON object from the decoder and returns its keys
// in declaration order.
func objectKeys(dec *json.Decoder) ([]string, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	var keys []string
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		keys = append(keys, keyTok.(string))
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	// closing brace
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return keys, nil
}
