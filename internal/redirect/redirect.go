// Package redirect holds the schema-evolution rename tables consulted while
// a package is linked: class, instance-only, object-only, subobject,
// game-name, struct and plugin-path redirects.
//
// A Registry is built once from configuration and never changes afterwards;
// every lookup is a pure function of its inputs.
package redirect

import (
	"sort"
	"strings"

	"github.com/package-linker/pkg/config"
	"github.com/package-linker/pkg/utils"
)

// NoneName is the name that removes an object when used as a redirect target.
const NoneName = "None"

// SubobjectRedirect renames a subobject of instances of MatchClass.
type SubobjectRedirect struct {
	MatchClass string
	NewName    string
}

// Registry is an immutable set of redirect tables. Name keys compare
// case-insensitively; replacement values keep their configured spelling.
type Registry struct {
	classes      map[string]string
	instanceOnly map[string]string
	objectOnly   map[string]string
	subobjects   map[string]SubobjectRedirect
	gameNames    map[string]string
	structs      map[string]string
	plugins      []prefixRedirect

	// original keys for reverse lookup, in configuration order
	classKeys    []string
	instanceKeys []string
}

type prefixRedirect struct {
	old string
	new string
}

func key(name string) string {
	return strings.ToLower(name)
}

// Empty returns a registry without any redirects.
func Empty() *Registry {
	return &Registry{
		classes:      map[string]string{},
		instanceOnly: map[string]string{},
		objectOnly:   map[string]string{},
		subobjects:   map[string]SubobjectRedirect{},
		gameNames:    map[string]string{},
		structs:      map[string]string{},
	}
}

// Build creates a registry from configuration. Invalid rules are logged and
// skipped; they never fail the build.
func Build(cfg config.RedirectsConfig, logger utils.Logger) *Registry {
	if logger == nil {
		logger = &utils.NullLogger{}
	}
	r := Empty()

	for _, c := range cfg.Classes {
		switch {
		case c.OldSubobjName != "" || c.NewSubobjName != "":
			if c.OldSubobjName == "" || c.OldClassName == "" {
				logger.Error("subobject redirect %q -> %q needs old_subobj_name and old_class_name",
					c.OldSubobjName, c.NewSubobjName)
				continue
			}
			newName := c.NewSubobjName
			if newName == "" {
				newName = NoneName
			}
			r.subobjects[key(c.OldSubobjName)] = SubobjectRedirect{MatchClass: c.OldClassName, NewName: newName}
		case c.OldClassName == "":
			logger.Error("class redirect to %q has no old_class_name", c.NewClassName)
		case c.InstanceOnly:
			if _, dup := r.instanceOnly[key(c.OldClassName)]; !dup {
				r.instanceKeys = append(r.instanceKeys, c.OldClassName)
			}
			r.instanceOnly[key(c.OldClassName)] = orNone(c.NewClassName)
		case c.ObjectName != "":
			r.objectOnly[key(c.ObjectName)] = orNone(c.NewClassName)
		default:
			if strings.Count(c.NewClassName, ".") > 1 {
				logger.Error("cannot rename nested objects for '%s'; to leave the outer alone specify the name with no path",
					c.NewClassName)
				continue
			}
			if _, dup := r.classes[key(c.OldClassName)]; !dup {
				r.classKeys = append(r.classKeys, c.OldClassName)
			}
			r.classes[key(c.OldClassName)] = orNone(c.NewClassName)
		}
	}

	for _, g := range cfg.GameNames {
		if g.OldName != "" {
			r.gameNames[key(g.OldName)] = g.NewName
		}
	}
	for _, s := range cfg.Structs {
		if s.OldName != "" {
			r.structs[key(s.OldName)] = s.NewName
		}
	}
	for _, p := range cfg.Plugins {
		if p.OldName == "" {
			continue
		}
		r.plugins = append(r.plugins, prefixRedirect{old: wrapPlugin(p.OldName), new: wrapPlugin(p.NewName)})
	}
	// Longest prefix first so nested plugin roots win.
	sort.SliceStable(r.plugins, func(i, j int) bool { return len(r.plugins[i].old) > len(r.plugins[j].old) })

	logger.Debug("redirects: %d class, %d instance-only, %d object-only, %d subobject, %d game, %d struct, %d plugin",
		len(r.classes), len(r.instanceOnly), len(r.objectOnly), len(r.subobjects),
		len(r.gameNames), len(r.structs), len(r.plugins))
	return r
}

func orNone(name string) string {
	if name == "" {
		return NoneName
	}
	return name
}

func wrapPlugin(name string) string {
	return "/" + strings.Trim(name, "/") + "/"
}

// SplitClassPath splits "Package.Class" into its parts. A name without a
// dot returns an empty package.
func SplitClassPath(path string) (pkg, name string) {
	if i := strings.Index(path, "."); i >= 0 {
		return path[:i], path[i+1:]
	}
	return "", path
}

// Class returns the full redirect for an old class or type name.
func (r *Registry) Class(oldName string) (string, bool) {
	v, ok := r.classes[key(oldName)]
	return v, ok
}

// InstanceOnly returns the instance-only redirect for an old class name.
func (r *Registry) InstanceOnly(oldClass string) (string, bool) {
	v, ok := r.instanceOnly[key(oldClass)]
	return v, ok
}

// ObjectOnly returns the class redirect for one object, keyed by
// "PackageName.ObjectName".
func (r *Registry) ObjectOnly(objectPath string) (string, bool) {
	v, ok := r.objectOnly[key(objectPath)]
	return v, ok
}

// Subobject returns the subobject rename for an object name.
func (r *Registry) Subobject(name string) (SubobjectRedirect, bool) {
	v, ok := r.subobjects[key(name)]
	return v, ok
}

// SubobjectName returns the new subobject name, or "" when none applies.
func (r *Registry) SubobjectName(name string) string {
	if v, ok := r.Subobject(name); ok {
		return v.NewName
	}
	return ""
}

// GameName returns the redirect for a package name.
func (r *Registry) GameName(oldName string) (string, bool) {
	v, ok := r.gameNames[key(oldName)]
	return v, ok
}

// Struct returns the redirect for a struct name.
func (r *Registry) Struct(oldName string) (string, bool) {
	v, ok := r.structs[key(oldName)]
	return v, ok
}

// PluginPath rewrites a package path whose leading segment matches a plugin
// redirect. Prefixes match case-sensitively, as paths are stored.
func (r *Registry) PluginPath(path string) (string, bool) {
	for _, p := range r.plugins {
		if strings.HasPrefix(path, p.old) {
			return p.new + path[len(p.old):], true
		}
	}
	return path, false
}

// FindNewNameForClass returns the replacement for an old class name:
// full redirects first, then instance-only ones when isInstance is set.
func (r *Registry) FindNewNameForClass(oldClass string, isInstance bool) (string, bool) {
	if v, ok := r.Class(oldClass); ok {
		return v, true
	}
	if isInstance {
		return r.InstanceOnly(oldClass)
	}
	return "", false
}

// PreviousNamesForClass lists old class names that redirect to current.
// The inverse mapping is informational; the loader never applies it.
func (r *Registry) PreviousNamesForClass(current string, isInstance bool) []string {
	var names []string
	for _, old := range r.classKeys {
		if r.classes[key(old)] == current {
			names = append(names, old)
		}
	}
	if isInstance {
		for _, old := range r.instanceKeys {
			if r.instanceOnly[key(old)] == current {
				names = append(names, old)
			}
		}
	}
	return names
}

// Len returns the total number of rules held.
func (r *Registry) Len() int {
	return len(r.classes) + len(r.instanceOnly) + len(r.objectOnly) + len(r.subobjects) +
		len(r.gameNames) + len(r.structs) + len(r.plugins)
}
