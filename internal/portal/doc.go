// Package portal is the connectivity and session-lifecycle core of the
// device.
//
// Controller owns the periodic control loop that arbitrates between
// background events - scan completions, network-failure recovery,
// pairing verdicts - and the synchronous requests arriving from the
// transport layer. It exposes the operations the HTTP surface calls
// into: mode resolution and bring-up, credential save/erase,
// scan-or-cached publishing, pairing submission, debug console output,
// and custom page registration.
//
// # Concurrency
//
// One long-lived task runs the control loop on a short fixed period;
// transport callbacks execute on their own contexts. Shared state lives
// behind the component mutexes and every externally reachable operation
// keeps its transitions atomic (flag flips, whole-value replacement).
// Connect attempts are the only blocking operations and run from the
// control-loop task, never from a transport callback.
package portal
