// Package engine wraps a pongo2 template set into the templating environment
// used by template tasks. An Environment is bound to one base directory and a
// caching policy; template names and includes resolve against that directory
// and template sources are optionally kept in an LRU cache.
package engine
