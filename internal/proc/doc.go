// Package proc owns the operating-system side of a pipeline: the pipe
// links between stages, process creation with descriptor wiring, and the
// reaping of children into per-stage records.
//
// Descriptor discipline: every pipe end is created close-on-exec, so a
// child only ever keeps the two ends the launcher installs as its stdin
// and stdout. The parent closes each end as soon as the stage that owns
// it has been launched, which is what lets readers observe end-of-stream.
package proc
