// Package transcoder converts uploaded media to MP4 by running FFmpeg.
//
// A conversion is a bounded search over FFmpeg invocations:
//   - Mode selection: without a decryption key only a plain read is tried.
//     With a key, CENC (-decryption_key on the plain path) and TS crypto
//     (-decryption_key on a crypto: input) are both tried, transport-stream
//     extensions first preferring TS crypto.
//   - Rounds: round 1 runs the mode search as is; round 2 repeats it with
//     timestamp repair flags (-fflags +genpts -use_wallclock_as_timestamps 1).
//     No more than two rounds are run.
//
// An attempt succeeds only when FFmpeg exits 0 and the output file exists.
// Every attempt is recorded with its command line and captured output so the
// full diagnostic log can be shown to the user.
//
// FFmpeg must be installed; its path is part of the configuration.
package transcoder
