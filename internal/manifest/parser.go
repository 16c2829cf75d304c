// Package manifest extracts service roles, volume declarations and mount
// paths from compose-style documents. Coolify manifests are hand-authored
// and frequently not strictly valid YAML, and the minimal containers this
// tool targets rarely ship a YAML toolchain, so parsing works on raw text
// with indentation heuristics rather than a full YAML engine. The package
// boundary is narrow (Parse in, ServiceMap out) so a structured parser can
// replace the internals later without touching callers.
package manifest

import (
	"bufio"
	"strings"
)

// Volume is one declared storage mount of a service role.
type Volume struct {
	// Name is the declared volume name, often a compound value like
	// "x4kw0s_app_storage".
	Name string
	// Path is the container-internal mount path.
	Path string
}

// Suffix returns the trailing underscore-delimited token of the volume
// name, used to derive friendly snapshot filenames.
func (v Volume) Suffix() string {
	name := v.Name
	if idx := strings.LastIndex(name, "_"); idx >= 0 && idx < len(name)-1 {
		name = name[idx+1:]
	}
	return name
}

// Service is one named service role within a manifest.
type Service struct {
	Name          string
	Image         string
	ContainerName string
	Volumes       []Volume
}

// ServiceMap is the parsed view of a manifest, keyed by role name. Order
// holds the roles in declaration order.
type ServiceMap struct {
	Services map[string]*Service
	Order    []string
}

// Service returns the role with the given name, or nil.
func (m *ServiceMap) Service(name string) *Service {
	if m == nil {
		return nil
	}
	return m.Services[name]
}

// propertyKeys are compose property keys that must never be mistaken for a
// service role when they appear as bare "<name>:" lines inside the services
// region.
var propertyKeys = map[string]bool{
	"volumes": true, "image": true, "environment": true, "depends_on": true,
	"labels": true, "networks": true, "command": true, "build": true,
	"ports": true, "expose": true, "healthcheck": true, "restart": true,
	"container_name": true, "env_file": true, "working_dir": true,
	"user": true, "entrypoint": true, "stdin_open": true, "tty": true,
	"privileged": true, "devices": true, "dns": true, "logging": true,
	"configs": true, "secrets": true, "deploy": true,
}

// Parse reads a compose-style document and returns its service roles with
// their declared volumes. Scope transitions are driven by indentation
// heuristics, not a parse stack; manifests with irregular mixed indentation
// are handled approximately (see package doc).
func Parse(text string) *ServiceMap {
	m := &ServiceMap{Services: map[string]*Service{}}

	inServices := false
	inVolumes := false
	volumesIndent := 0
	var current *Service

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		raw := scanner.Text()
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		indent := leadingIndent(raw)

		// Root-level keys open or close the services region.
		if indent == 0 {
			inServices = trimmed == "services:"
			inVolumes = false
			current = nil
			continue
		}
		if !inServices {
			continue
		}

		isItem := strings.HasPrefix(trimmed, "-")

		if inVolumes {
			if isItem {
				if current != nil {
					if vol, ok := parseVolumeItem(trimmed); ok {
						current.Volumes = append(current.Volumes, vol)
					}
				}
				continue
			}
			if indent > volumesIndent {
				// Deeper-indented continuation of a long-form list entry;
				// the list is still open.
				continue
			}
			// A non-list line back at the volumes key's depth (or shallower)
			// closes the volume list.
			inVolumes = false
		}

		if isItem {
			continue
		}

		key, value, hasValue := splitKeyValue(trimmed)
		if key == "" {
			continue
		}

		if !hasValue {
			if key == "volumes" {
				inVolumes = true
				volumesIndent = indent
				continue
			}
			if !propertyKeys[key] {
				if existing, ok := m.Services[key]; ok {
					// A role name surfacing again (a nested block that slipped
					// past the deny-list, or a genuinely repeated scope) must
					// not register twice in Order.
					current = existing
				} else {
					current = &Service{Name: key}
					m.Services[key] = current
					m.Order = append(m.Order, key)
				}
			}
			continue
		}

		if current == nil {
			continue
		}
		switch key {
		case "image":
			current.Image = stripQuotes(value)
		case "container_name":
			current.ContainerName = stripQuotes(value)
		}
	}

	return m
}

// ContainerNameFor extracts an explicit container_name override for a role
// from raw manifest text, using the same scope tracking as Parse. It exists
// as the static fallback of container resolution and returns "" when the
// role declares no override.
func ContainerNameFor(text, role string) string {
	if svc := Parse(text).Service(role); svc != nil {
		return svc.ContainerName
	}
	return ""
}

// parseVolumeItem parses a "- name:/container/path[:mode]" list entry.
// Bind mounts, anonymous volumes and long-form map entries ("- type: bind")
// are skipped: a named volume needs a volume-shaped name and an absolute
// container path.
func parseVolumeItem(item string) (Volume, bool) {
	s := strings.TrimSpace(strings.TrimPrefix(item, "-"))
	s = stripQuotes(s)
	if s == "" {
		return Volume{}, false
	}
	parts := strings.Split(s, ":")
	if len(parts) < 2 {
		return Volume{}, false
	}
	name := strings.TrimSpace(parts[0])
	path := strings.TrimSpace(parts[1])
	if name == "" || path == "" {
		return Volume{}, false
	}
	if strings.HasPrefix(name, "/") || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~") {
		return Volume{}, false
	}
	if !strings.HasPrefix(path, "/") {
		return Volume{}, false
	}
	return Volume{Name: name, Path: path}, true
}

func splitKeyValue(trimmed string) (key, value string, hasValue bool) {
	idx := strings.Index(trimmed, ":")
	if idx < 0 {
		return "", "", false
	}
	key = strings.TrimSpace(trimmed[:idx])
	value = strings.TrimSpace(trimmed[idx+1:])
	return key, value, value != ""
}

func stripQuotes(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

func leadingIndent(line string) int {
	n := 0
	for _, r := range line {
		switch r {
		case ' ':
			n++
		case '\t':
			// Hand-authored manifests occasionally mix tabs in; count one
			// level per tab rather than rejecting the line.
			n += 2
		default:
			return n
		}
	}
	return n
}
