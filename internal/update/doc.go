// Package update drives the firmware update engine.
//
// The portal streams uploaded image chunks into an Engine and, whether
// the update succeeds or fails, schedules a device restart shortly after
// responding - the restart is a deliberate terminal action of the
// session, not an error path. FileEngine is the host-side engine,
// staging the image to a file.
package update
