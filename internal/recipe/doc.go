// Package recipe describes clone operations in files and runs them.
//
// A recipe names a source type, one or more targets and the weaves applied
// while cloning. Recipes are written in YAML or TOML; the format follows the
// file extension. A recipe may instead wrap an existing method of a single
// merge target with a decorator, see Decorate.
package recipe
