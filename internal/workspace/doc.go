// Package workspace maps an engine project directory onto the paths appbuilder
// reads and writes: the state directory holding staleness markers, the build
// log directory, per-platform outputs, and the cache directories removed by
// --clean-cache.
//
// Relative paths resolve against the project root. A leading "~/" resolves
// against the user's home directory, which is how the Xcode DerivedData cache
// is addressed.
package workspace
