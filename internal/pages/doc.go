// Package pages keeps the registry of user-defined portal pages.
//
// Applications embedding the portal can add their own paths next to the
// built-in routes: static content, a GET handler, a POST handler, or any
// mix. The registry merges repeated registrations for a path rather than
// duplicating entries, keeps insertion order, and is append-only. The
// transport layer consults it dynamically, so pages registered after
// startup are served without rebuilding the route table.
package pages
