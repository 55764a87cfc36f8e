// Command convert runs the converter from the command line.
//
//	convert run [flags] <input>
//	convert history [--limit N]
//
// run converts one file with the same mode search and retry rounds as the
// web service and writes <stem>_converted.mp4 next to the input (or into
// --output-dir). The decryption key is taken from --key, or read from the
// terminal without echo with --key-prompt. On failure the full attempt log
// is written to stderr and the exit status is 1.
//
// history lists the conversions recorded by the web service in
// DATABASE_DIR.
package main
