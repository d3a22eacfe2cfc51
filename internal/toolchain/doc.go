// Package toolchain resolves which engine editor installation builds a project.
//
// The requested version comes from, in order: an explicit override, the
// APPBUILDER_TOOLCHAIN_VERSION environment variable, the project version file
// and finally the configured default. The version is then looked up under the
// configured installation roots by an ordered list of strategies: an exact
// match first, then the newest installation sharing the version's
// major.minor prefix.
//
// Resolution is a pure lookup; nothing on disk is modified.
package toolchain
