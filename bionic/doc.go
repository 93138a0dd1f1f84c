// Package bionic keeps the bionic font stylesheet of one document in line
// with the current settings.
//
// An Orchestrator reacts to every settings snapshot by deciding whether the
// document's site is filtered, building the stylesheet and swapping the
// document's single injected style. Triggers are numbered as they arrive; a
// trigger whose build finishes after a newer trigger started is dropped, so
// the document always ends up reflecting the latest settings.
package bionic
